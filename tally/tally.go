// Package tally implements spec §4.6: aggregating the Output-Production-List
// passes of a completed mix into per-choice vote totals, with a consistency
// check across passes before the totals are trusted.
package tally

import (
	"fmt"

	"github.com/mitmedialab/split-value-voting/log"
	"github.com/mitmedialab/split-value-voting/race"
	"github.com/mitmedialab/split-value-voting/server"
	"github.com/mitmedialab/split-value-voting/types"
)

// Totals maps a ballot choice (named candidate or write-in text) to its
// vote count (spec §4.6 "counts_dict").
type Totals map[string]int

// FromPass decodes one OPL pass's output column into a Totals map, summing
// u+v per cell and decoding the resulting field element back to a choice
// (spec §4.6 point 1).
func FromPass(r *race.Race, pr *server.PassRecord, row string) (Totals, error) {
	out, ok := pr.Output[row]
	if !ok {
		return nil, fmt.Errorf("%w: pass %q has no output for row %q", types.ErrNotFound, pr.Pass, row)
	}

	totals := make(Totals)
	for pos, cell := range out {
		sum := cell.U.Add(cell.V, r.RaceModulus)
		choice, ok := r.Decode(sum)
		if !ok {
			return nil, fmt.Errorf("%w: pass %q position %q decodes to no valid choice for race %q", types.ErrTallyInconsistent, pr.Pass, pos, r.RaceID)
		}
		totals[choice]++
	}
	return totals, nil
}

// Compute aggregates every OPL pass of a completed grid and checks that they
// all agree (spec §4.6 point 2, §8 property 4 "every OPL pass yields the
// same tally"). It returns the agreed totals, or ErrTallyInconsistent if any
// pass disagrees with the first.
func Compute(r *race.Race, g *server.Grid, oplPasses []string) (Totals, error) {
	if len(oplPasses) == 0 {
		return nil, fmt.Errorf("%w: no OPL passes to tally for race %q", types.ErrConfigInvalid, r.RaceID)
	}

	row := g.Rows[0]
	var agreed Totals
	for i, label := range oplPasses {
		pr, ok := g.Passes[label]
		if !ok {
			return nil, fmt.Errorf("%w: opl pass %q not found for race %q", types.ErrNotFound, label, r.RaceID)
		}
		totals, err := FromPass(r, pr, row)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			agreed = totals
			continue
		}
		if !totals.equal(agreed) {
			return nil, fmt.Errorf("%w: pass %q disagrees with pass %q for race %q", types.ErrTallyInconsistent, label, oplPasses[0], r.RaceID)
		}
	}

	log.Infow("tally computed", "race_id", r.RaceID, "opl_passes", len(oplPasses), "choices", len(agreed))
	return agreed, nil
}

func (t Totals) equal(other Totals) bool {
	if len(t) != len(other) {
		return false
	}
	for choice, count := range t {
		if other[choice] != count {
			return false
		}
	}
	return true
}
