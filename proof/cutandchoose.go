// Package proof implements spec §4.5: the cut-and-choose proof engine that
// splits the grid's n_reps passes into an Input-Comparison List (ICL) and
// Output-Production List (OPL), discloses one opening per pass, and lets a
// verifier check both linkage and tally correctness without either jointly
// revealing both for the same pass.
package proof

import (
	"crypto/sha256"
	"fmt"

	"github.com/mitmedialab/split-value-voting/rng"
	"github.com/mitmedialab/split-value-voting/server"
	"github.com/mitmedialab/split-value-voting/types"
)

// Column0Opening is the disclosed column-0 content for one (row, position):
// the shares and their randomizers (spec §4.5 point 2).
type Column0Opening struct {
	U, V types.FieldElem
	RU   []byte
	RV   []byte
}

// OutputOpening is the disclosed output-column content for one (row,
// position): the re-randomized shares and their randomizers (spec §4.5
// points 2 and 3).
type OutputOpening struct {
	U, V types.FieldElem
	RU   []byte
	RV   []byte
}

// ICLDisclosure is the full opening of one Input-Comparison-List pass: its
// permutation, its per-position re-randomization deltas, the column-0
// openings, and the resulting output openings, so a verifier can check
// linkage end to end (spec §4.5 point 2).
type ICLDisclosure struct {
	Pass    string
	Perm    map[string]string // px -> π_k(px)
	Deltas  map[string]types.FieldElem
	Column0 map[string]map[string]Column0Opening // row -> px -> opening
	Output  map[string]map[string]OutputOpening  // row -> π_k(px) -> opening
}

// OPLDisclosure is the opening of one Output-Production-List pass: only its
// output column, never its permutation (spec §4.5 point 3 — "hides the
// linkage to individual voters").
type OPLDisclosure struct {
	Pass   string
	Output map[string]map[string]OutputOpening // row -> position -> opening
}

// Transcript is the full non-interactive proof artifact for one race (spec
// §4.5, §6 "proof:icl"/"proof:opl").
type Transcript struct {
	RaceID string
	ICL    []ICLDisclosure
	OPL    []OPLDisclosure
}

// SplitPasses partitions kList into an ICL half and an OPL half (spec §4.5
// point 1). When deterministic is true it uses the original source's fixed
// first-half/second-half rule (sv_election.py has no visible challenge
// derivation, so it is effectively this); otherwise it derives the split
// from a Fiat-Shamir hash of challengeSeed (e.g. the SBB state digest at the
// end of the mix phase), per spec §9's production recommendation. kList
// must have even length.
func SplitPasses(kList []string, deterministic bool, challengeSeed []byte) (icl, opl []string, err error) {
	n := len(kList)
	if n == 0 || n%2 != 0 {
		return nil, nil, fmt.Errorf("%w: n_reps must be a positive even number, got %d", types.ErrConfigInvalid, n)
	}

	if deterministic {
		half := n / 2
		return append([]string{}, kList[:half]...), append([]string{}, kList[half:]...), nil
	}

	digest := sha256.Sum256(challengeSeed)
	seed1 := uint64(digest[0])<<56 | uint64(digest[1])<<48 | uint64(digest[2])<<40 | uint64(digest[3])<<32 |
		uint64(digest[4])<<24 | uint64(digest[5])<<16 | uint64(digest[6])<<8 | uint64(digest[7])
	seed2 := uint64(digest[8])<<56 | uint64(digest[9])<<48 | uint64(digest[10])<<40 | uint64(digest[11])<<32 |
		uint64(digest[12])<<24 | uint64(digest[13])<<16 | uint64(digest[14])<<8 | uint64(digest[15])

	src := rng.NewSeeded(seed1, seed2)
	perm := src.Perm(n)

	half := n / 2
	for i, idx := range perm {
		if i < half {
			icl = append(icl, kList[idx])
		} else {
			opl = append(opl, kList[idx])
		}
	}
	return icl, opl, nil
}

// BuildTranscript discloses every ICL and OPL pass from a completed Grid
// (spec §4.5).
func BuildTranscript(g *server.Grid, iclPasses, oplPasses []string) (*Transcript, error) {
	t := &Transcript{RaceID: g.RaceID}

	for _, label := range iclPasses {
		pr, ok := g.Passes[label]
		if !ok {
			return nil, fmt.Errorf("%w: icl pass %q not found for race %q", types.ErrNotFound, label, g.RaceID)
		}
		d := ICLDisclosure{
			Pass:    label,
			Perm:    copyStringMap(pr.Perm),
			Deltas:  pr.Deltas,
			Column0: make(map[string]map[string]Column0Opening, len(g.Rows)),
			Output:  make(map[string]map[string]OutputOpening, len(g.Rows)),
		}
		for _, row := range g.Rows {
			d.Column0[row] = make(map[string]Column0Opening, len(g.Positions))
			for px, cell := range g.Column0[row] {
				d.Column0[row][px] = Column0Opening{U: cell.U, V: cell.V, RU: cell.RU, RV: cell.RV}
			}
			d.Output[row] = make(map[string]OutputOpening, len(g.Positions))
			for pos, cell := range pr.Output[row] {
				d.Output[row][pos] = OutputOpening{U: cell.U, V: cell.V, RU: cell.RU, RV: cell.RV}
			}
		}
		t.ICL = append(t.ICL, d)
	}

	for _, label := range oplPasses {
		pr, ok := g.Passes[label]
		if !ok {
			return nil, fmt.Errorf("%w: opl pass %q not found for race %q", types.ErrNotFound, label, g.RaceID)
		}
		d := OPLDisclosure{
			Pass:   label,
			Output: make(map[string]map[string]OutputOpening, len(g.Rows)),
		}
		for _, row := range g.Rows {
			d.Output[row] = make(map[string]OutputOpening, len(g.Positions))
			for pos, cell := range pr.Output[row] {
				d.Output[row][pos] = OutputOpening{U: cell.U, V: cell.V, RU: cell.RU, RV: cell.RV}
			}
		}
		t.OPL = append(t.OPL, d)
	}

	return t, nil
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
