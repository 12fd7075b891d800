// Package election implements spec §4.8: the top-level election
// orchestrator state machine that drives every other package from setup
// through proof and closes the bulletin board.
package election

import (
	"crypto/sha256"
	"fmt"

	"go.vocdoni.io/dvote/db"

	"github.com/mitmedialab/split-value-voting/config"
	"github.com/mitmedialab/split-value-voting/log"
	"github.com/mitmedialab/split-value-voting/proof"
	"github.com/mitmedialab/split-value-voting/race"
	"github.com/mitmedialab/split-value-voting/rng"
	"github.com/mitmedialab/split-value-voting/sbb"
	"github.com/mitmedialab/split-value-voting/server"
	"github.com/mitmedialab/split-value-voting/tally"
	"github.com/mitmedialab/split-value-voting/transcriptapi"
	"github.com/mitmedialab/split-value-voting/types"
	"github.com/mitmedialab/split-value-voting/voter"
)

// aboutText and legendText are posted once at setup:start (spec §12
// "about/legend preamble", supplemented from sv_election.py's about_text /
// legend_text).
var (
	aboutText = []string{
		"Secure Bulletin Board for Split-Value Voting Method Demo.",
		"by Michael O. Rabin and Ronald L. Rivest",
		"For paper: see http://people.csail.mit.edu/rivest/pubs.html#RR14a",
	}
	legendText = []string{
		"Indices between 0 and n_voters-1 indicated by p0, p1, ...",
		"Rows of server array indicated by a, b, c, d, ...",
		"Copies (n_reps passes) indicated by A, B, C, D, ...",
		"'*' run in a ballot style choice indicates a write-in option",
		"    (number of stars is max write-in length)",
		"Values represented are represented modulo race_modulus.",
		"'x' equals u+v (mod race_modulus), a (Shamir-)share of the vote.",
		"'cu' and 'cv' are commitments to u and v, respectively.",
		"'ru' and 'rv' are randomization values for cu and cv.",
		"'icl' stands for 'input comparison list',",
		"'opl' for 'output production list';",
		"      these are the 'cut-and-choose' results.",
	}
)

// Election runs one split-value voting election end to end (spec §4.8).
type Election struct {
	params config.ElectionParameters
	board  *sbb.Board
	src    rng.Source

	races      map[string]*race.Race
	raceOrder  []string
	positions  []string
	rows       []string
	passLabels []string

	voters []*voter.Voter

	grids       map[string]*server.Grid
	totals      map[string]tally.Totals
	transcripts map[string]*proof.Transcript

	// castVotesCache holds every voter's cast-vote records between
	// castVotes and distributeToGrid: race -> position -> row -> record.
	castVotesCache castVotesResult

	challengeSeed []byte // set once mixing completes, used for a non-deterministic split
}

// New validates params and runs the setup phases of spec §4.8:
// Init → SetupRaces → SetupVoters → SetupKeys.
func New(params config.ElectionParameters, src rng.Source, database db.Database) (*Election, error) {
	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	e := &Election{
		params:      params,
		board:       sbb.New(database),
		src:         src,
		races:       make(map[string]*race.Race),
		grids:       make(map[string]*server.Grid),
		totals:      make(map[string]tally.Totals),
		transcripts: make(map[string]*proof.Transcript),
	}

	if _, err := e.board.Post("setup:start", map[string]any{
		"about":       aboutText,
		"election_id": params.ElectionID,
		"legend":      legendText,
	}); err != nil {
		return nil, err
	}

	if err := e.setupRaces(); err != nil {
		return nil, e.abort(err)
	}
	if err := e.setupVoters(); err != nil {
		return nil, e.abort(err)
	}
	e.setupKeys()

	if _, err := e.board.Post("setup:finished", map[string]any{}); err != nil {
		return nil, e.abort(err)
	}

	log.Infow("election initialized", "election_id", params.ElectionID, "n_voters", params.NVoters, "n_reps", params.NReps)
	return e, nil
}

func (e *Election) setupRaces() error {
	raceDict := make(map[string]any, len(e.params.BallotStyle))
	for _, spec := range e.params.BallotStyle {
		r, err := race.New(spec.RaceID, spec.Choices)
		if err != nil {
			return err
		}
		e.races[spec.RaceID] = r
		e.raceOrder = append(e.raceOrder, spec.RaceID)
		raceDict[spec.RaceID] = map[string]any{
			"choices":      spec.Choices,
			"race_modulus": r.RaceModulus.String(),
		}
	}
	_, err := e.board.PostUntimestamped("setup:races", map[string]any{"ballot_style_race_dict": raceDict})
	return err
}

func (e *Election) setupVoters() error {
	e.positions = types.PList(e.params.NVoters)
	for i, px := range e.positions {
		v := voter.New(fmt.Sprintf("voter:%d", i), px, e.src)
		e.voters = append(e.voters, v)
	}
	_, err := e.board.PostUntimestamped("setup:voters", map[string]any{
		"n_voters":      e.params.NVoters,
		"ballot_id_len": e.params.BallotIDLen,
	})
	return err
}

// setupKeys exists to mirror spec §4.8's state-machine step; real key
// distribution is out of scope for the core (spec §1 "Out of scope").
func (e *Election) setupKeys() {}

// Run executes the remaining phases of the state machine in order:
// CastVotes → DistributeToGrid → PostCommitments → PostReceipts → Mix →
// Tally → PostTally → Proof → Close (spec §4.8). ballots maps race id ->
// position -> chosen value. The server grid's row count is derived here
// (spec §3 "derived from n_fail, n_leak per the server module's policy" —
// see DESIGN.md for the adopted n_fail+n_leak+1 rule).
func (e *Election) Run(ballots map[string]map[string]string) error {
	e.rows = types.RowList(e.params.NFail + e.params.NLeak + 1)
	e.passLabels = types.KList(e.params.NReps)

	if err := e.castVotes(ballots); err != nil {
		return e.abort(err)
	}
	if err := e.distributeToGrid(); err != nil {
		return e.abort(err)
	}
	if err := e.postCommitments(); err != nil {
		return e.abort(err)
	}
	if err := e.postReceipts(); err != nil {
		return e.abort(err)
	}
	if err := e.mix(); err != nil {
		return e.abort(err)
	}
	e.deriveChallengeSeed()
	if err := e.computeTally(); err != nil {
		return e.abort(err)
	}
	if err := e.postTally(); err != nil {
		return e.abort(err)
	}
	if err := e.prove(); err != nil {
		return e.abort(err)
	}

	if _, err := e.board.Post("election:done.", map[string]any{"election_id": e.params.ElectionID}); err != nil {
		return err
	}
	e.board.Close()
	log.Infow("election complete", "election_id", e.params.ElectionID)
	return nil
}

// castVotesResult holds every voter's cast-vote records, per race, keyed by
// position, pending distribution into the server grid.
type castVotesResult map[string]map[string]map[string]voter.CastVoteRecord // race -> px -> row -> record

func (e *Election) castVotes(ballots map[string]map[string]string) error {
	e.castVotesCache = make(castVotesResult, len(e.raceOrder))
	for _, raceID := range e.raceOrder {
		e.castVotesCache[raceID] = make(map[string]map[string]voter.CastVoteRecord, len(e.voters))
	}

	r := e.races
	for _, v := range e.voters {
		for _, raceID := range e.raceOrder {
			choice, ok := ballots[raceID][v.Position]
			if !ok {
				return fmt.Errorf("election: no ballot choice for race %q position %q", raceID, v.Position)
			}
			records, err := v.CastVote(r[raceID], choice, e.rows)
			if err != nil {
				return fmt.Errorf("election: cast vote for race %q position %q: %w", raceID, v.Position, err)
			}
			e.castVotesCache[raceID][v.Position] = records
		}
	}
	return nil
}

func (e *Election) distributeToGrid() error {
	for _, raceID := range e.raceOrder {
		g := server.NewGrid(raceID, e.rows, e.positions)
		for _, px := range e.positions {
			for _, row := range e.rows {
				cell := e.castVotesCache[raceID][px][row]
				if err := g.SetColumn0(px, row, cell); err != nil {
					return fmt.Errorf("election: distribute race %q position %q row %q: %w", raceID, px, row, err)
				}
			}
		}
		e.grids[raceID] = g
	}
	return nil
}

func (e *Election) postCommitments() error {
	cvcs := make(map[string]any, len(e.raceOrder))
	for _, raceID := range e.raceOrder {
		g := e.grids[raceID]
		perPosition := make(map[string]any, len(e.positions))
		for _, px := range e.positions {
			perRow := make(map[string]any, len(e.rows))
			for _, row := range e.rows {
				cell := g.Column0[row][px]
				perRow[row] = map[string]any{
					"ballot_id": cell.BallotID,
					"cu":        types.HexBytes(cell.CU),
					"cv":        types.HexBytes(cell.CV),
				}
			}
			perPosition[px] = perRow
		}
		cvcs[raceID] = perPosition
	}
	_, err := e.board.PostUntimestamped("casting:votes", map[string]any{"cast_vote_dict": cvcs})
	return err
}

func (e *Election) postReceipts() error {
	receipts := make(map[string]any)
	for _, v := range e.voters {
		for ballotIDHex, r := range v.Receipts {
			receipts[ballotIDHex] = r
		}
	}
	_, err := e.board.PostUntimestamped("casting:receipts", map[string]any{"receipt_dict": receipts})
	return err
}

func (e *Election) mix() error {
	for _, raceID := range e.raceOrder {
		m := e.races[raceID].RaceModulus
		if err := e.grids[raceID].MixAll(e.passLabels, m, e.src); err != nil {
			return fmt.Errorf("election: mix race %q: %w", raceID, err)
		}

		entries := make(map[string]any, len(e.passLabels))
		for _, label := range e.passLabels {
			pr := e.grids[raceID].Passes[label]
			entries[label] = passCommitmentsPayload(pr, e.rows)
		}
		if _, err := e.board.Post(fmt.Sprintf("mix:%s", raceID), map[string]any{"passes": entries}); err != nil {
			return err
		}
	}
	return nil
}

func passCommitmentsPayload(pr *server.PassRecord, rows []string) map[string]any {
	perm := make(map[string]string, len(pr.Perm))
	for k, v := range pr.Perm {
		perm[k] = v
	}
	output := make(map[string]any, len(rows))
	for _, row := range rows {
		perPosition := make(map[string]any, len(pr.Output[row]))
		for pos, cell := range pr.Output[row] {
			perPosition[pos] = map[string]any{
				"cu": types.HexBytes(cell.CU),
				"cv": types.HexBytes(cell.CV),
			}
		}
		output[row] = perPosition
	}
	return map[string]any{"perm": perm, "output": output}
}

// deriveChallengeSeed computes the Fiat-Shamir challenge seed for a
// non-deterministic cut-and-choose split (spec §9 "derive the split from a
// Fiat-Shamir hash of the SBB state at the end of the mix phase") by
// hashing every entry posted so far, in order. Only consulted when
// params.DeterministicSplit is false.
func (e *Election) deriveChallengeSeed() {
	h := sha256.New()
	for _, entry := range e.board.ReadAll() {
		h.Write([]byte(entry.Label))
		h.Write(entry.Payload)
	}
	e.challengeSeed = h.Sum(nil)
}

func (e *Election) computeTally() error {
	for _, raceID := range e.raceOrder {
		_, opl, err := proof.SplitPasses(e.passLabels, e.params.DeterministicSplit, e.challengeSeed)
		if err != nil {
			return err
		}
		totals, err := tally.Compute(e.races[raceID], e.grids[raceID], opl)
		if err != nil {
			return fmt.Errorf("election: tally race %q: %w", raceID, err)
		}
		e.totals[raceID] = totals
	}
	return nil
}

func (e *Election) postTally() error {
	payload := make(map[string]any, len(e.raceOrder))
	for _, raceID := range e.raceOrder {
		payload[raceID] = e.totals[raceID]
	}
	_, err := e.board.Post("tally", map[string]any{"tally_dict": payload})
	return err
}

func (e *Election) prove() error {
	for _, raceID := range e.raceOrder {
		icl, opl, err := proof.SplitPasses(e.passLabels, e.params.DeterministicSplit, e.challengeSeed)
		if err != nil {
			return err
		}
		transcript, err := proof.BuildTranscript(e.grids[raceID], icl, opl)
		if err != nil {
			return fmt.Errorf("election: build transcript for race %q: %w", raceID, err)
		}
		e.transcripts[raceID] = transcript

		if _, err := e.board.Post(fmt.Sprintf("proof:icl:%s", raceID), map[string]any{"disclosures": transcript.ICL}); err != nil {
			return err
		}
		if _, err := e.board.Post(fmt.Sprintf("proof:opl:%s", raceID), map[string]any{"disclosures": transcript.OPL}); err != nil {
			return err
		}
	}
	return nil
}

// abort writes a best-effort election:aborted entry, if the board is still
// open, and returns err unchanged (spec §7 "Propagation policy").
func (e *Election) abort(err error) error {
	if !e.board.Closed() {
		_, _ = e.board.Post("election:aborted", map[string]any{
			"election_id": e.params.ElectionID,
			"reason":      err.Error(),
		})
	}
	return err
}

// Board returns the election's bulletin board, the sole public output of
// the core (spec §4.7 "The SBB is the sole public output of the core").
func (e *Election) Board() *sbb.Board {
	return e.board
}

// Totals returns the agreed per-choice tally for raceID, valid only after
// Run has completed successfully.
func (e *Election) Totals(raceID string) tally.Totals {
	return e.totals[raceID]
}

// Transcript returns the cut-and-choose proof transcript for raceID, valid
// only after Run has completed successfully.
func (e *Election) Transcript(raceID string) *proof.Transcript {
	return e.transcripts[raceID]
}

// VerifyFunc builds a transcriptapi.VerifyRequest handler that checks a
// disclosed transcript against this election's posted commitments, wiring
// the verifier-facing HTTP API (spec §4.8 "Verifier Transcript API") to the
// live election state instead of requiring callers to re-derive it.
func (e *Election) VerifyFunc() func(req transcriptapi.VerifyRequest) error {
	return func(req transcriptapi.VerifyRequest) error {
		r, ok := e.races[req.RaceID]
		if !ok {
			return fmt.Errorf("election: %w: race %q", types.ErrNotFound, req.RaceID)
		}
		if req.Transcript == nil {
			return fmt.Errorf("election: verify race %q: no transcript in request", req.RaceID)
		}
		g := e.grids[req.RaceID]
		return proof.Verify(r.RaceModulus, e.positions, column0Commitments(g), outputCommitments(g, e.passLabels), req.Transcript)
	}
}

func column0Commitments(g *server.Grid) proof.Column0Commitments {
	out := make(proof.Column0Commitments, len(g.Column0))
	for row, byPosition := range g.Column0 {
		perRow := make(map[string]proof.CommitPair, len(byPosition))
		for px, cell := range byPosition {
			perRow[px] = proof.CommitPair{CU: cell.CU, CV: cell.CV}
		}
		out[row] = perRow
	}
	return out
}

func outputCommitments(g *server.Grid, passLabels []string) proof.OutputCommitments {
	out := make(proof.OutputCommitments, len(passLabels))
	for _, label := range passLabels {
		pr, ok := g.Passes[label]
		if !ok {
			continue
		}
		perRow := make(map[string]map[string]proof.CommitPair, len(pr.Output))
		for row, byPosition := range pr.Output {
			perPos := make(map[string]proof.CommitPair, len(byPosition))
			for px, cell := range byPosition {
				perPos[px] = proof.CommitPair{CU: cell.CU, CV: cell.CV}
			}
			perRow[row] = perPos
		}
		out[label] = perRow
	}
	return out
}
