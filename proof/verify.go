package proof

import (
	"fmt"
	"math/big"

	"github.com/mitmedialab/split-value-voting/commitment"
	"github.com/mitmedialab/split-value-voting/types"
)

// CommitPair is the posted (cu, cv) commitment pair for one (row, position)
// cell, as it appears on the SBB.
type CommitPair struct {
	CU []byte
	CV []byte
}

// Column0Commitments maps row -> position -> posted commitment pair.
type Column0Commitments map[string]map[string]CommitPair

// OutputCommitments maps pass -> row -> position -> posted commitment pair.
type OutputCommitments map[string]map[string]map[string]CommitPair

// Verify checks a Transcript against the publicly posted commitments for
// one race (spec §4.5 points 2-3). It returns ErrPermutationInvalid if a
// disclosed permutation is not a bijection, or ErrCommitmentMismatch if any
// disclosed opening fails to reproduce a posted commitment.
func Verify(m *big.Int, positions []string, col0 Column0Commitments, out OutputCommitments, t *Transcript) error {
	for _, d := range t.ICL {
		if err := verifyPermutation(positions, d.Perm); err != nil {
			return fmt.Errorf("proof: race %q pass %q: %w", t.RaceID, d.Pass, err)
		}
		passCommits, ok := out[d.Pass]
		if !ok {
			return fmt.Errorf("proof: race %q pass %q: %w: no posted output commitments", t.RaceID, d.Pass, types.ErrNotFound)
		}

		for row, positionsOpened := range d.Column0 {
			rowCol0Commits, ok := col0[row]
			if !ok {
				return fmt.Errorf("proof: race %q pass %q row %q: %w: no posted column0 commitments", t.RaceID, d.Pass, row, types.ErrNotFound)
			}
			rowOutCommits, ok := passCommits[row]
			if !ok {
				return fmt.Errorf("proof: race %q pass %q row %q: %w: no posted output commitments", t.RaceID, d.Pass, row, types.ErrNotFound)
			}

			for px, opening := range positionsOpened {
				posted, ok := rowCol0Commits[px]
				if !ok {
					return fmt.Errorf("proof: race %q pass %q row %q position %q: %w: no posted column0 commitment", t.RaceID, d.Pass, row, px, types.ErrNotFound)
				}
				if !commitment.Open(posted.CU, opening.U.Bytes(m), opening.RU) {
					return fmt.Errorf("proof: race %q pass %q row %q position %q: %w: column0 cu", t.RaceID, d.Pass, row, px, types.ErrCommitmentMismatch)
				}
				if !commitment.Open(posted.CV, opening.V.Bytes(m), opening.RV) {
					return fmt.Errorf("proof: race %q pass %q row %q position %q: %w: column0 cv", t.RaceID, d.Pass, row, px, types.ErrCommitmentMismatch)
				}

				delta, ok := d.Deltas[px]
				if !ok {
					return fmt.Errorf("proof: race %q pass %q position %q: missing disclosed delta", t.RaceID, d.Pass, px)
				}
				wantU := opening.U.Add(delta, m)
				wantV := opening.V.Sub(delta, m)

				outPos := d.Perm[px]
				outOpening, ok := d.Output[row][outPos]
				if !ok {
					return fmt.Errorf("proof: race %q pass %q row %q position %q: missing output opening", t.RaceID, d.Pass, row, outPos)
				}
				if !wantU.Equal(outOpening.U) || !wantV.Equal(outOpening.V) {
					return fmt.Errorf("proof: race %q pass %q row %q position %q: %w: linkage (delta does not reproduce output shares)", t.RaceID, d.Pass, row, px, types.ErrCommitmentMismatch)
				}

				postedOut, ok := rowOutCommits[outPos]
				if !ok {
					return fmt.Errorf("proof: race %q pass %q row %q position %q: %w: no posted output commitment", t.RaceID, d.Pass, row, outPos, types.ErrNotFound)
				}
				if !commitment.Open(postedOut.CU, outOpening.U.Bytes(m), outOpening.RU) {
					return fmt.Errorf("proof: race %q pass %q row %q position %q: %w: output cu", t.RaceID, d.Pass, row, outPos, types.ErrCommitmentMismatch)
				}
				if !commitment.Open(postedOut.CV, outOpening.V.Bytes(m), outOpening.RV) {
					return fmt.Errorf("proof: race %q pass %q row %q position %q: %w: output cv", t.RaceID, d.Pass, row, outPos, types.ErrCommitmentMismatch)
				}
			}
		}
	}

	for _, d := range t.OPL {
		passCommits, ok := out[d.Pass]
		if !ok {
			return fmt.Errorf("proof: race %q pass %q: %w: no posted output commitments", t.RaceID, d.Pass, types.ErrNotFound)
		}
		for row, positionsOpened := range d.Output {
			rowCommits, ok := passCommits[row]
			if !ok {
				return fmt.Errorf("proof: race %q pass %q row %q: %w: no posted output commitments", t.RaceID, d.Pass, row, types.ErrNotFound)
			}
			for pos, opening := range positionsOpened {
				posted, ok := rowCommits[pos]
				if !ok {
					return fmt.Errorf("proof: race %q pass %q row %q position %q: %w: no posted output commitment", t.RaceID, d.Pass, row, pos, types.ErrNotFound)
				}
				if !commitment.Open(posted.CU, opening.U.Bytes(m), opening.RU) {
					return fmt.Errorf("proof: race %q pass %q row %q position %q: %w: output cu", t.RaceID, d.Pass, row, pos, types.ErrCommitmentMismatch)
				}
				if !commitment.Open(posted.CV, opening.V.Bytes(m), opening.RV) {
					return fmt.Errorf("proof: race %q pass %q row %q position %q: %w: output cv", t.RaceID, d.Pass, row, pos, types.ErrCommitmentMismatch)
				}
			}
		}
	}

	return nil
}

// verifyPermutation checks that perm is a bijection on positions (spec §8
// property 3, §7 PermutationInvalid).
func verifyPermutation(positions []string, perm map[string]string) error {
	if len(perm) != len(positions) {
		return fmt.Errorf("%w: permutation has %d entries, want %d", types.ErrPermutationInvalid, len(perm), len(positions))
	}
	seen := make(map[string]bool, len(positions))
	valid := make(map[string]bool, len(positions))
	for _, p := range positions {
		valid[p] = true
	}
	for px, out := range perm {
		if !valid[px] || !valid[out] {
			return fmt.Errorf("%w: permutation references unknown position", types.ErrPermutationInvalid)
		}
		if seen[out] {
			return fmt.Errorf("%w: permutation is not injective (%q used twice)", types.ErrPermutationInvalid, out)
		}
		seen[out] = true
	}
	return nil
}
