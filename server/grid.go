// Package server implements spec §4.4: the rows×columns mix-server grid,
// column-0 distribution of cast votes, and the per-pass mix.
package server

import (
	"fmt"
	"sort"

	"github.com/mitmedialab/split-value-voting/types"
	"github.com/mitmedialab/split-value-voting/voter"
)

// Cell is the server-grid record for one (row, position) in one column: a
// cast-vote record for column 0, or a re-randomized descendant of one for
// every later column (spec §3 "Pass record").
type Cell = voter.CastVoteRecord

// PassRecord is the complete internal state of one independent mix pass
// (spec §3 "Pass record", §4.4): the permutation applied, the
// re-randomization delta drawn for every input position, and the resulting
// output cells, one grid per row.
type PassRecord struct {
	Pass string
	// Perm maps an input position (column 0) to the position it lands on
	// in this pass's output column: Perm[px] = π_k(px).
	Perm map[string]string
	// Deltas maps an input position to the re-randomization delta applied
	// to it before the permutation (spec §4.4 step 2).
	Deltas map[string]types.FieldElem
	// Output maps row -> output position -> cell.
	Output map[string]map[string]Cell
}

// Grid holds, for one race, the shared column-0 cells and every pass's
// output (spec §3 "Invariants... per race, per position, per row").
type Grid struct {
	RaceID    string
	Rows      []string
	Positions []string // sorted p_list, tie-breaking per spec §4.5

	// Column0 maps row -> position -> cell.
	Column0 map[string]map[string]Cell
	// Passes maps pass label (k_list entry) -> pass record.
	Passes map[string]*PassRecord

	store *Store // optional durable backing, nil for an in-memory-only grid
}

// NewGrid creates an empty grid for one race.
func NewGrid(raceID string, rows, positions []string) *Grid {
	sortedPositions := make([]string, len(positions))
	copy(sortedPositions, positions)
	sort.Strings(sortedPositions)

	col0 := make(map[string]map[string]Cell, len(rows))
	for _, row := range rows {
		col0[row] = make(map[string]Cell, len(positions))
	}

	return &Grid{
		RaceID:    raceID,
		Rows:      rows,
		Positions: sortedPositions,
		Column0:   col0,
		Passes:    make(map[string]*PassRecord),
	}
}

// WithStore attaches a durable backing store to the grid; every subsequent
// SetColumn0/recordPass call also persists to it (spec §13 "typed records").
func (g *Grid) WithStore(s *Store) *Grid {
	g.store = s
	return g
}

// SetColumn0 distributes one voter's cast-vote record for one row into
// column 0 of the grid (spec §4.3 point 5, §12.2 "distribution as an
// explicit phase"). In the simulation this is called once per (row,
// position) with an identical copy; a generalized implementation MAY call
// it with distinct per-row records.
func (g *Grid) SetColumn0(position, row string, cell Cell) error {
	rowCells, ok := g.Column0[row]
	if !ok {
		return fmt.Errorf("server: unknown row %q for race %q", row, g.RaceID)
	}
	rowCells[position] = cell
	if g.store != nil {
		if err := g.store.saveColumn0(g.RaceID, row, position, cell); err != nil {
			return fmt.Errorf("server: persist column0: %w", err)
		}
	}
	return nil
}

// recordPass stores a completed pass and persists it if a store is attached.
func (g *Grid) recordPass(pr *PassRecord) error {
	g.Passes[pr.Pass] = pr
	if g.store != nil {
		if err := g.store.savePass(g.RaceID, pr); err != nil {
			return fmt.Errorf("server: persist pass %s: %w", pr.Pass, err)
		}
	}
	return nil
}

// OutputColumn returns the final cells of a completed pass, keyed by
// position (spec §4.4 "out_k").
func (g *Grid) OutputColumn(pass string) (map[string]Cell, error) {
	pr, ok := g.Passes[pass]
	if !ok {
		return nil, fmt.Errorf("%w: pass %q", types.ErrNotFound, pass)
	}
	// Passes store output per row; for tally purposes every row of the
	// same pass carries the same plaintext sum (spec §3 invariant), so
	// callers needing one canonical view use row "a" — but expose a full
	// per-row view for verification purposes too.
	first := g.Rows[0]
	return pr.Output[first], nil
}
