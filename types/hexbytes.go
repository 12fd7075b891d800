package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HexBytes is a byte slice that marshals to/from JSON as a lowercase hex
// string (no 0x prefix), matching the canonical-json rule of spec §6.
type HexBytes []byte

// String returns the lowercase hex representation.
func (h HexBytes) String() string {
	return hex.EncodeToString(h)
}

// MarshalJSON implements json.Marshaler.
func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("hexbytes: %w", err)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("hexbytes: invalid hex: %w", err)
	}
	*h = b
	return nil
}

// HexBytesFromHex decodes a hex string into a HexBytes value.
func HexBytesFromHex(s string) (HexBytes, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("hexbytes: invalid hex: %w", err)
	}
	return b, nil
}
