// Package race implements spec §4.2: a race's choice list, its derived
// modulus, and encode/decode between ballot choices and field elements.
package race

import (
	"fmt"
	"math/big"

	"github.com/mitmedialab/split-value-voting/log"
	"github.com/mitmedialab/split-value-voting/types"
)

// Race is one contest on a ballot: an ordered list of named choices, an
// optional write-in slot, and the derived race modulus.
type Race struct {
	RaceID       string
	Choices      []string // as declared, including the write-in placeholder if present
	named        []string // Choices minus the write-in placeholder
	writeInMax   int      // 0 if no write-in slot
	RaceModulus  *big.Int
}

// New builds a Race from a race id and its declared choice list (spec §4.2,
// §6 "ballot_style"). At most one write-in placeholder is allowed.
func New(raceID string, choices []string) (*Race, error) {
	if raceID == "" {
		return nil, fmt.Errorf("%w: empty race_id", types.ErrConfigInvalid)
	}
	if len(choices) == 0 {
		return nil, fmt.Errorf("%w: race %q has no choices", types.ErrConfigInvalid, raceID)
	}

	var named []string
	writeInMax := 0
	for _, ch := range choices {
		if types.IsWriteInPlaceholder(ch) {
			if writeInMax != 0 {
				return nil, fmt.Errorf("%w: race %q declares more than one write-in slot", types.ErrConfigInvalid, raceID)
			}
			writeInMax = types.WriteInMaxLen(ch)
			continue
		}
		named = append(named, ch)
	}

	bound := big.NewInt(int64(len(named)))
	if writeInMax > 0 {
		capSpace := new(big.Int).Lsh(big.NewInt(1), uint(8*writeInMax)) // 256^writeInMax
		bound.Add(bound, capSpace)
	}
	if bound.Sign() <= 0 {
		bound.SetInt64(1)
	}

	modulus := smallestPrimeAtLeast(bound)

	log.Debugw("race modulus derived", "race_id", raceID, "named_choices", len(named), "write_in_max", writeInMax, "race_modulus_bits", modulus.BitLen())

	return &Race{
		RaceID:      raceID,
		Choices:     choices,
		named:       named,
		writeInMax:  writeInMax,
		RaceModulus: modulus,
	}, nil
}

// smallestPrimeAtLeast returns the smallest prime p >= bound (spec §4.2,
// §9 "Big integers").
func smallestPrimeAtLeast(bound *big.Int) *big.Int {
	p := new(big.Int).Set(bound)
	if p.Cmp(big.NewInt(2)) <= 0 {
		return big.NewInt(2)
	}
	if p.Bit(0) == 0 {
		p.Add(p, big.NewInt(1))
	}
	for !p.ProbablyPrime(24) {
		p.Add(p, big.NewInt(2))
	}
	return p
}

// Encode maps a ballot choice (a named candidate or a write-in string no
// longer than this race's write-in slot) to a field element in [0,
// RaceModulus). Named choices occupy [0, len(named)); write-ins occupy
// [len(named), len(named)+256^writeInMax) by canonical byte-interpretation
// of the write-in text (spec §3 "Choice encoding").
func (r *Race) Encode(choice string) (types.FieldElem, error) {
	for i, c := range r.named {
		if c == choice {
			return types.FieldElemFromInt64(int64(i), r.RaceModulus), nil
		}
	}
	if r.writeInMax == 0 {
		return types.FieldElem{}, fmt.Errorf("%w: %q is not a valid choice for race %q", types.ErrEncodingTooLarge, choice, r.RaceID)
	}
	if len(choice) > r.writeInMax {
		return types.FieldElem{}, fmt.Errorf("%w: write-in %q exceeds max length %d for race %q", types.ErrEncodingTooLarge, choice, r.writeInMax, r.RaceID)
	}
	offset := big.NewInt(int64(len(r.named)))
	v := new(big.Int).Add(offset, new(big.Int).SetBytes([]byte(choice)))
	if v.Cmp(r.RaceModulus) >= 0 {
		return types.FieldElem{}, fmt.Errorf("%w: write-in %q does not fit race modulus for race %q", types.ErrEncodingTooLarge, choice, r.RaceID)
	}
	return types.NewFieldElem(v, r.RaceModulus), nil
}

// Decode maps a field element back to its ballot choice: a named candidate,
// a write-in string, or ok=false if the element is outside every valid
// encoding (should not happen for a value produced by Encode).
func (r *Race) Decode(fe types.FieldElem) (choice string, ok bool) {
	x := fe.Int()
	named := big.NewInt(int64(len(r.named)))
	if x.Cmp(named) < 0 {
		return r.named[x.Int64()], true
	}
	if r.writeInMax == 0 {
		return "", false
	}
	rem := new(big.Int).Sub(x, named)
	capSpace := new(big.Int).Lsh(big.NewInt(1), uint(8*r.writeInMax))
	if rem.Cmp(capSpace) >= 0 {
		return "", false
	}
	return string(rem.Bytes()), true
}

// NamedChoices returns the candidate names excluding any write-in placeholder.
func (r *Race) NamedChoices() []string {
	out := make([]string, len(r.named))
	copy(out, r.named)
	return out
}

// HasWriteIn reports whether this race has a write-in slot, and its max length.
func (r *Race) HasWriteIn() (bool, int) {
	return r.writeInMax > 0, r.writeInMax
}
