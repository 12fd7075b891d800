package election

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/mitmedialab/split-value-voting/config"
	"github.com/mitmedialab/split-value-voting/proof"
	"github.com/mitmedialab/split-value-voting/rng"
	"github.com/mitmedialab/split-value-voting/server"
	"github.com/mitmedialab/split-value-voting/transcriptapi"
	"github.com/mitmedialab/split-value-voting/types"
)

func newDB(c *qt.C) db.Database {
	database, err := metadb.New(db.TypePebble, c.TempDir())
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { database.Close() })
	return database
}

// ballotsFor builds the per-race, per-position ballot map this package's
// Run expects, from a simple position -> race -> choice table.
func ballotsFor(positions []string, perPosition map[string]map[string]string) map[string]map[string]string {
	byRace := make(map[string]map[string]string)
	for _, px := range positions {
		for raceID, choice := range perPosition[px] {
			if byRace[raceID] == nil {
				byRace[raceID] = make(map[string]string)
			}
			byRace[raceID][px] = choice
		}
	}
	return byRace
}

func TestS1_UnanimousVote(t *testing.T) {
	c := qt.New(t)

	params := config.ElectionParameters{
		ElectionID:  "E1",
		BallotStyle: types.BallotStyle{{RaceID: "P", Choices: []string{"A", "B"}}},
		NVoters:     2,
		NReps:       2,
	}
	e, err := New(params, rng.NewSeeded(1, 2), newDB(c))
	c.Assert(err, qt.IsNil)

	positions := types.PList(2)
	ballots := ballotsFor(positions, map[string]map[string]string{
		positions[0]: {"P": "A"},
		positions[1]: {"P": "A"},
	})
	c.Assert(e.Run(ballots), qt.IsNil)

	totals := e.Totals("P")
	c.Assert(totals["A"], qt.Equals, 2)
	c.Assert(totals["B"], qt.Equals, 0)

	labels := make([]string, 0)
	for _, entry := range e.Board().ReadAll() {
		labels = append(labels, entry.Label)
	}
	c.Assert(labels[0], qt.Equals, "setup:start")
	c.Assert(labels[len(labels)-1], qt.Equals, "election:done.")
}

func TestS2_SplitVote(t *testing.T) {
	c := qt.New(t)

	params := config.ElectionParameters{
		ElectionID:  "E2",
		BallotStyle: types.BallotStyle{{RaceID: "P", Choices: []string{"A", "B"}}},
		NVoters:     2,
		NReps:       2,
	}
	e, err := New(params, rng.NewSeeded(3, 4), newDB(c))
	c.Assert(err, qt.IsNil)

	positions := types.PList(2)
	ballots := ballotsFor(positions, map[string]map[string]string{
		positions[0]: {"P": "A"},
		positions[1]: {"P": "B"},
	})
	c.Assert(e.Run(ballots), qt.IsNil)

	totals := e.Totals("P")
	c.Assert(totals["A"], qt.Equals, 1)
	c.Assert(totals["B"], qt.Equals, 1)
}

func TestS3_TwoRacesWithWriteIn(t *testing.T) {
	c := qt.New(t)

	params := config.ElectionParameters{
		ElectionID: "E3",
		BallotStyle: types.BallotStyle{
			{RaceID: "P", Choices: []string{"X", "Y"}},
			{RaceID: "V", Choices: []string{"Y", "N", "****"}},
		},
		NVoters: 3,
		NReps:   4,
	}
	e, err := New(params, rng.NewSeeded(5, 6), newDB(c))
	c.Assert(err, qt.IsNil)

	positions := types.PList(3)
	ballots := ballotsFor(positions, map[string]map[string]string{
		positions[0]: {"P": "X", "V": "Y"},
		positions[1]: {"P": "Y", "V": "Y"},
		positions[2]: {"P": "X", "V": "abcd"},
	})
	c.Assert(e.Run(ballots), qt.IsNil)

	pTotals := e.Totals("P")
	c.Assert(pTotals["X"], qt.Equals, 2)
	c.Assert(pTotals["Y"], qt.Equals, 1)

	vTotals := e.Totals("V")
	c.Assert(vTotals["Y"], qt.Equals, 2)
	c.Assert(vTotals["N"], qt.Equals, 0)
	c.Assert(vTotals["abcd"], qt.Equals, 1)
}

func TestS4_TamperedOPLShareFailsVerification(t *testing.T) {
	c := qt.New(t)

	params := config.ElectionParameters{
		ElectionID:  "E4",
		BallotStyle: types.BallotStyle{{RaceID: "P", Choices: []string{"A", "B"}}},
		NVoters:     3,
		NReps:       2,
	}
	e, err := New(params, rng.NewSeeded(7, 8), newDB(c))
	c.Assert(err, qt.IsNil)

	positions := types.PList(3)
	ballots := ballotsFor(positions, map[string]map[string]string{
		positions[0]: {"P": "A"},
		positions[1]: {"P": "B"},
		positions[2]: {"P": "A"},
	})
	c.Assert(e.Run(ballots), qt.IsNil)

	r := e.races["P"]
	g := e.grids["P"]
	col0, out := postedCommitments(g, e.rows, e.passLabels)

	transcript := e.Transcript("P")
	c.Assert(transcript.OPL, qt.Not(qt.HasLen), 0)
	row := e.rows[0]
	for pos, opening := range transcript.OPL[0].Output[row] {
		opening.U = opening.U.Add(types.FieldElemFromInt64(1, r.RaceModulus), r.RaceModulus)
		transcript.OPL[0].Output[row][pos] = opening
		break
	}

	err = proof.Verify(r.RaceModulus, e.positions, col0, out, transcript)
	c.Assert(err, qt.ErrorMatches, ".*commitment mismatch.*")
}

func TestS5_SwappedPermutationFailsVerification(t *testing.T) {
	c := qt.New(t)

	params := config.ElectionParameters{
		ElectionID:  "E5",
		BallotStyle: types.BallotStyle{{RaceID: "P", Choices: []string{"A", "B"}}},
		NVoters:     3,
		NReps:       2,
	}
	e, err := New(params, rng.NewSeeded(9, 10), newDB(c))
	c.Assert(err, qt.IsNil)

	positions := types.PList(3)
	ballots := ballotsFor(positions, map[string]map[string]string{
		positions[0]: {"P": "A"},
		positions[1]: {"P": "B"},
		positions[2]: {"P": "A"},
	})
	c.Assert(e.Run(ballots), qt.IsNil)

	r := e.races["P"]
	g := e.grids["P"]
	col0, out := postedCommitments(g, e.rows, e.passLabels)

	transcript := e.Transcript("P")
	c.Assert(transcript.ICL, qt.Not(qt.HasLen), 0)
	perm := transcript.ICL[0].Perm
	c.Assert(len(e.positions) >= 2, qt.IsTrue)
	p0, p1 := e.positions[0], e.positions[1]
	perm[p0], perm[p1] = perm[p1], perm[p0]

	err = proof.Verify(r.RaceModulus, e.positions, col0, out, transcript)
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestS6_ReproducibleTranscriptGivenSameSeed(t *testing.T) {
	c := qt.New(t)

	runOnce := func() []byte {
		params := config.ElectionParameters{
			ElectionID:  "E6",
			BallotStyle: types.BallotStyle{{RaceID: "P", Choices: []string{"A", "B"}}},
			NVoters:     2,
			NReps:       2,
		}
		e, err := New(params, rng.NewSeeded(42, 42), newDB(c))
		c.Assert(err, qt.IsNil)

		positions := types.PList(2)
		ballots := ballotsFor(positions, map[string]map[string]string{
			positions[0]: {"P": "A"},
			positions[1]: {"P": "B"},
		})
		c.Assert(e.Run(ballots), qt.IsNil)

		var out []byte
		for _, entry := range e.Board().ReadAll() {
			out = append(out, []byte(entry.Label)...)
			out = append(out, entry.Payload...)
		}
		return out
	}

	first := runOnce()
	second := runOnce()
	c.Assert(first, qt.DeepEquals, second)
}

func TestBoundarySingleVoter(t *testing.T) {
	c := qt.New(t)

	params := config.ElectionParameters{
		ElectionID:  "E7",
		BallotStyle: types.BallotStyle{{RaceID: "P", Choices: []string{"A", "B"}}},
		NVoters:     1,
		NReps:       2,
	}
	e, err := New(params, rng.NewSeeded(11, 12), newDB(c))
	c.Assert(err, qt.IsNil)

	positions := types.PList(1)
	ballots := ballotsFor(positions, map[string]map[string]string{positions[0]: {"P": "A"}})
	c.Assert(e.Run(ballots), qt.IsNil)

	c.Assert(e.Totals("P")["A"], qt.Equals, 1)
}

func TestVerifyFuncAcceptsGenuineTranscript(t *testing.T) {
	c := qt.New(t)

	params := config.ElectionParameters{
		ElectionID:  "E8",
		BallotStyle: types.BallotStyle{{RaceID: "P", Choices: []string{"A", "B"}}},
		NVoters:     2,
		NReps:       2,
	}
	e, err := New(params, rng.NewSeeded(13, 14), newDB(c))
	c.Assert(err, qt.IsNil)

	positions := types.PList(2)
	ballots := ballotsFor(positions, map[string]map[string]string{
		positions[0]: {"P": "A"},
		positions[1]: {"P": "B"},
	})
	c.Assert(e.Run(ballots), qt.IsNil)

	verify := e.VerifyFunc()
	err = verify(transcriptapi.VerifyRequest{RaceID: "P", Transcript: e.Transcript("P")})
	c.Assert(err, qt.IsNil)

	err = verify(transcriptapi.VerifyRequest{RaceID: "does-not-exist", Transcript: e.Transcript("P")})
	c.Assert(err, qt.Not(qt.IsNil))
}

// postedCommitments mirrors what a verifier reads off the SBB: the column-0
// and per-pass output commitment pairs for every row and position.
func postedCommitments(g *server.Grid, rows, passLabels []string) (proof.Column0Commitments, proof.OutputCommitments) {
	col0 := make(proof.Column0Commitments, len(rows))
	for _, row := range rows {
		col0[row] = make(map[string]proof.CommitPair, len(g.Positions))
		for _, px := range g.Positions {
			cell := g.Column0[row][px]
			col0[row][px] = proof.CommitPair{CU: cell.CU, CV: cell.CV}
		}
	}

	out := make(proof.OutputCommitments, len(passLabels))
	for _, label := range passLabels {
		pr := g.Passes[label]
		out[label] = make(map[string]map[string]proof.CommitPair, len(rows))
		for _, row := range rows {
			out[label][row] = make(map[string]proof.CommitPair, len(g.Positions))
			for pos, cell := range pr.Output[row] {
				out[label][row][pos] = proof.CommitPair{CU: cell.CU, CV: cell.CV}
			}
		}
	}
	return col0, out
}
