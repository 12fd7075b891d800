package server

import (
	"fmt"
	"math/big"

	"github.com/mitmedialab/split-value-voting/commitment"
	"github.com/mitmedialab/split-value-voting/log"
	"github.com/mitmedialab/split-value-voting/rng"
	"github.com/mitmedialab/split-value-voting/types"
)

// MixPass performs one independent mix pass over the grid's column 0,
// producing and recording an output column (spec §4.4). Each pass draws its
// own permutation and its own re-randomization deltas, sharing no
// randomness with any other pass (spec §3 "Invariants... no shared
// randomness across passes").
func (g *Grid) MixPass(passLabel string, m *big.Int, src rng.Source) (*PassRecord, error) {
	n := len(g.Positions)
	permIdx := src.Perm(n)

	perm := make(map[string]string, n)
	for i, px := range g.Positions {
		perm[px] = g.Positions[permIdx[i]]
	}

	// One delta per input position, shared by every row of this pass.
	deltas := make(map[string]types.FieldElem, n)
	for _, px := range g.Positions {
		deltaInt, err := src.Int(m)
		if err != nil {
			return nil, fmt.Errorf("server: pass %s: draw delta: %w", passLabel, err)
		}
		deltas[px] = types.NewFieldElem(deltaInt, m)
	}
	output := make(map[string]map[string]Cell, len(g.Rows))

	for _, row := range g.Rows {
		rowOut := make(map[string]Cell, n)
		inputCells := g.Column0[row]

		for _, px := range g.Positions {
			in, ok := inputCells[px]
			if !ok {
				return nil, fmt.Errorf("server: pass %s: missing column0 cell for race %q row %q position %q", passLabel, g.RaceID, row, px)
			}

			delta := deltas[px] // identical across rows since the pass shares one permutation and delta set

			uPrime := in.U.Add(delta, m)
			vPrime := in.V.Sub(delta, m)

			ru, err := src.Bytes(32)
			if err != nil {
				return nil, fmt.Errorf("server: pass %s: draw ru: %w", passLabel, err)
			}
			rv, err := src.Bytes(32)
			if err != nil {
				return nil, fmt.Errorf("server: pass %s: draw rv: %w", passLabel, err)
			}

			cu := commitment.Commit(uPrime.Bytes(m), ru)
			cv := commitment.Commit(vPrime.Bytes(m), rv)

			outPos := perm[px]
			rowOut[outPos] = Cell{
				BallotID: in.BallotID,
				X:        in.X,
				U:        uPrime,
				V:        vPrime,
				RU:       ru,
				RV:       rv,
				CU:       cu,
				CV:       cv,
			}
		}
		output[row] = rowOut
	}

	pr := &PassRecord{
		Pass:   passLabel,
		Perm:   perm,
		Deltas: deltas,
		Output: output,
	}

	log.Debugw("mix pass complete", "race_id", g.RaceID, "pass", passLabel, "positions", n, "rows", len(g.Rows))

	if err := g.recordPass(pr); err != nil {
		return nil, err
	}
	return pr, nil
}

// MixAll runs MixPass once per label in passLabels (spec §3 "n_reps
// independent passes"), in order. Passes are independent by construction
// (spec §5) and MAY be parallelized by a caller that fans this call out
// across goroutines per label; this sequential driver keeps the reference
// behavior simple and deterministic for a single seeded source.
func (g *Grid) MixAll(passLabels []string, m *big.Int, src rng.Source) error {
	for _, label := range passLabels {
		if _, err := g.MixPass(label, m, src); err != nil {
			return err
		}
	}
	return nil
}
