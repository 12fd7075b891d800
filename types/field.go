package types

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/vocdoni/arbo"
)

// FieldElem is a non-negative integer strictly less than some race modulus
// m (spec §3 "Field element"). It carries no reference to m itself — every
// operation that needs m takes it as an explicit parameter, per spec §9
// ("Global arithmetic context... never as process-wide state").
type FieldElem struct {
	v *big.Int
}

// NewFieldElem reduces v modulo m and returns the resulting field element.
// m must be positive.
func NewFieldElem(v *big.Int, m *big.Int) FieldElem {
	r := new(big.Int).Mod(v, m)
	return FieldElem{v: r}
}

// FieldElemFromInt64 is a convenience constructor for small literal values.
func FieldElemFromInt64(v int64, m *big.Int) FieldElem {
	return NewFieldElem(big.NewInt(v), m)
}

// Int returns the underlying big.Int. Callers must not mutate it.
func (f FieldElem) Int() *big.Int {
	if f.v == nil {
		return big.NewInt(0)
	}
	return f.v
}

// Add returns (f + other) mod m.
func (f FieldElem) Add(other FieldElem, m *big.Int) FieldElem {
	return NewFieldElem(new(big.Int).Add(f.Int(), other.Int()), m)
}

// Sub returns (f - other) mod m.
func (f FieldElem) Sub(other FieldElem, m *big.Int) FieldElem {
	return NewFieldElem(new(big.Int).Sub(f.Int(), other.Int()), m)
}

// Equal reports whether f and other represent the same integer.
func (f FieldElem) Equal(other FieldElem) bool {
	return f.Int().Cmp(other.Int()) == 0
}

// ByteWidth returns the number of bytes needed to hold any element of
// Z/mZ in fixed-width big-endian form.
func ByteWidth(m *big.Int) int {
	return (m.BitLen() + 7) / 8
}

// Bytes returns the fixed-width big-endian encoding of f, sized for modulus
// m, per spec §4.1 ("fixed-width big-endian for field elements").
func (f FieldElem) Bytes(m *big.Int) []byte {
	return arbo.BigIntToBytes(ByteWidth(m), f.Int())
}

// FieldElemFromBytes decodes a fixed-width big-endian encoding back into a
// field element, reduced modulo m.
func FieldElemFromBytes(b []byte, m *big.Int) FieldElem {
	return NewFieldElem(arbo.BytesToBigInt(b), m)
}

// GobEncode implements gob.GobEncoder. FieldElem's only field is
// unexported, so without this the gob package would silently drop it when
// encoding a struct that embeds a FieldElem (e.g. server.Cell persisted by
// server.Store) — delegate to big.Int's own GobEncoder instead.
func (f FieldElem) GobEncode() ([]byte, error) {
	return f.Int().GobEncode()
}

// GobDecode implements gob.GobDecoder.
func (f *FieldElem) GobDecode(data []byte) error {
	v := new(big.Int)
	if err := v.GobDecode(data); err != nil {
		return err
	}
	f.v = v
	return nil
}

// MarshalJSON implements json.Marshaler. FieldElem's only field is
// unexported, so without this encoding/json would serialize it as an empty
// object; encode as a decimal integer string instead (spec §6 "integers in
// decimal").
func (f FieldElem) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Int().String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FieldElem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("types: FieldElem: invalid decimal integer %q", s)
	}
	f.v = v
	return nil
}
