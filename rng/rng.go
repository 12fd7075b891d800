// Package rng provides the pluggable CSPRNG seam spec §9 calls for: shares,
// randomizers, ballot ids, and permutations all draw from a Source so that
// tests can substitute a seeded deterministic source (spec §8 property 6,
// reproducibility).
package rng

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"

	"github.com/mitmedialab/split-value-voting/types"
)

// Source is the entropy interface every randomized operation in the core
// draws from. A real election uses CryptoSource; reproducibility tests use
// a Seeded source.
type Source interface {
	// Int returns a uniform random integer in [0, max).
	Int(max *big.Int) (*big.Int, error)
	// Bytes fills and returns n uniform random bytes.
	Bytes(n int) ([]byte, error)
	// Perm returns a uniform random permutation of [0, n).
	Perm(n int) []int
}

// CryptoSource draws from crypto/rand, the only acceptable source for a
// real election (spec §5 "a cryptographic CSPRNG").
type CryptoSource struct{}

// Int implements Source.
func (CryptoSource) Int(max *big.Int) (*big.Int, error) {
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrRngFailure, err)
	}
	return v, nil
}

// Bytes implements Source.
func (CryptoSource) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrRngFailure, err)
	}
	return b, nil
}

// Perm implements Source using a Fisher-Yates shuffle driven by crypto/rand.
func (c CryptoSource) Perm(n int) []int {
	p := identityPerm(n)
	for i := n - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			panic(fmt.Errorf("%w: %v", types.ErrRngFailure, err))
		}
		j := int(jBig.Int64())
		p[i], p[j] = p[j], p[i]
	}
	return p
}

// Seeded is a deterministic source built on math/rand/v2, seeded once. It
// exists solely so that two election runs with the same seed produce
// byte-identical SBB transcripts (spec §8 property 6) — it MUST NOT be used
// for a real election.
type Seeded struct {
	r *mrand.Rand
}

// NewSeeded returns a deterministic Source seeded with seed1/seed2.
func NewSeeded(seed1, seed2 uint64) *Seeded {
	return &Seeded{r: mrand.New(mrand.NewPCG(seed1, seed2))}
}

// Int implements Source.
func (s *Seeded) Int(max *big.Int) (*big.Int, error) {
	if max.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive bound", types.ErrRngFailure)
	}
	if max.IsUint64() && max.Uint64() <= (1<<63) {
		return new(big.Int).SetUint64(s.r.Uint64N(max.Uint64())), nil
	}
	// Rejection sampling over the byte width of max for arbitrarily large
	// moduli (long write-ins can exceed 64 bits, spec §9 "Big integers").
	width := (max.BitLen() + 7) / 8
	for {
		b := make([]byte, width)
		for i := range b {
			b[i] = byte(s.r.UintN(256))
		}
		v := new(big.Int).SetBytes(b)
		if v.Cmp(max) < 0 {
			return v, nil
		}
	}
}

// Bytes implements Source.
func (s *Seeded) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(s.r.UintN(256))
	}
	return b, nil
}

// Perm implements Source.
func (s *Seeded) Perm(n int) []int {
	p := identityPerm(n)
	s.r.Shuffle(n, func(i, j int) { p[i], p[j] = p[j], p[i] })
	return p
}

func identityPerm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}
