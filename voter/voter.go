// Package voter implements spec §4.3: split-value encoding of a cast vote,
// commitments, and the voter's public, ballot-id-keyed receipt.
package voter

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/mitmedialab/split-value-voting/commitment"
	"github.com/mitmedialab/split-value-voting/race"
	"github.com/mitmedialab/split-value-voting/rng"
	"github.com/mitmedialab/split-value-voting/types"
)

// RandomizerLen is the byte length of a commitment randomizer (ru, rv).
const RandomizerLen = 32

// CastVoteRecord is one row's worth of a cast vote (spec §3 "Cast-vote
// record"): the Shamir-split shares, their randomizers, and their
// commitments.
type CastVoteRecord struct {
	BallotID types.HexBytes
	X        types.FieldElem // x = u + v mod m, redundant with choice
	U        types.FieldElem
	V        types.FieldElem
	RU       []byte
	RV       []byte
	CU       []byte
	CV       []byte
}

// Receipt is the public, ballot-id-keyed record a voter can later use to
// locate their own vote on the SBB (spec §4.3 point 6). It never carries
// the voter's identity — only the opaque ballot id, the race id, the
// voter's p-list position label and the posted commitments, matching the teacher's privacy posture of keying public
// records by opaque ids rather than identities.
type Receipt struct {
	BallotID types.HexBytes
	RaceID   string
	Position string
	CU       map[string]types.HexBytes // row -> cu
	CV       map[string]types.HexBytes // row -> cv
}

// Voter casts votes into one ballot position. VoterID is kept private: it
// never appears on any SBB post. The registration key (regID) exists only
// to let an operator correlate a Voter value with its private records
// in-memory/in-storage, also never posted — it is the same non-posted,
// internal-only key role the teacher's census DB gives uuid.UUID-keyed
// entries.
type Voter struct {
	voterID  string
	regID    uuid.UUID
	Position string // px, this voter's p-list slot
	rng      rng.Source

	// Receipts accumulates this voter's receipts across races, keyed by
	// ballot id hex string, matching sv_election.py's voter.receipts dict.
	Receipts map[string]Receipt
}

// New creates a Voter for position px using src as its entropy source.
func New(voterID, px string, src rng.Source) *Voter {
	return &Voter{
		voterID:  voterID,
		regID:    uuid.New(),
		Position: px,
		rng:      src,
		Receipts: make(map[string]Receipt),
	}
}

// RegistrationID returns the voter's private registration key. Never post
// this value on the SBB.
func (v *Voter) RegistrationID() uuid.UUID {
	return v.regID
}

// CastVote produces the split-value encoding of choice for r, then writes
// an identical copy of the cast-vote record into every row (spec §4.3 point
// 5: "in the simulation every row receives an identical copy; in the
// abstract protocol the voter can send different rows to different
// servers"). rows names the server grid's row labels. The ballot id is
// always 32 random bytes; no ballot-id length setting is consulted.
func (v *Voter) CastVote(r *race.Race, choice string, rows []string) (map[string]CastVoteRecord, error) {
	encoded, err := r.Encode(choice)
	if err != nil {
		return nil, err
	}

	ballotIDBytes, err := v.rng.Bytes(32)
	if err != nil {
		return nil, fmt.Errorf("voter %s: draw ballot id: %w", v.position(), err)
	}
	ballotID := types.HexBytes(ballotIDBytes)

	m := r.RaceModulus
	uInt, err := v.rng.Int(m)
	if err != nil {
		return nil, fmt.Errorf("voter %s: draw u: %w", v.position(), err)
	}
	u := types.NewFieldElem(uInt, m)
	vShare := encoded.Sub(u, m) // v = (choice - u) mod m
	x := u.Add(vShare, m)       // x = (u + v) mod m, == encoded

	ru, err := v.rng.Bytes(RandomizerLen)
	if err != nil {
		return nil, fmt.Errorf("voter %s: draw ru: %w", v.position(), err)
	}
	rv, err := v.rng.Bytes(RandomizerLen)
	if err != nil {
		return nil, fmt.Errorf("voter %s: draw rv: %w", v.position(), err)
	}
	cu := commitment.Commit(u.Bytes(m), ru)
	cv := commitment.Commit(vShare.Bytes(m), rv)

	records := make(map[string]CastVoteRecord, len(rows))
	cuByRow := make(map[string]types.HexBytes, len(rows))
	cvByRow := make(map[string]types.HexBytes, len(rows))

	for _, row := range rows {
		records[row] = CastVoteRecord{
			BallotID: ballotID,
			X:        x,
			U:        u,
			V:        vShare,
			RU:       ru,
			RV:       rv,
			CU:       cu,
			CV:       cv,
		}
		cuByRow[row] = types.HexBytes(cu)
		cvByRow[row] = types.HexBytes(cv)
	}

	v.Receipts[hex.EncodeToString(ballotID)] = Receipt{
		BallotID: ballotID,
		RaceID:   r.RaceID,
		Position: v.Position,
		CU:       cuByRow,
		CV:       cvByRow,
	}

	return records, nil
}

func (v *Voter) position() string {
	return v.Position
}
