// Package config implements spec §6: the orchestrator's recognized
// configuration options and their validation rules.
package config

import (
	"fmt"

	"github.com/mitmedialab/split-value-voting/types"
)

// ElectionParameters is the full set of options the election orchestrator
// recognizes (spec §6 "Configuration"). It is validated once, at Init, and
// never mutated afterward.
type ElectionParameters struct {
	ElectionID  string
	BallotStyle types.BallotStyle

	NVoters     int
	NReps       int
	NFail       int
	NLeak       int
	BallotIDLen int // default 32; validated and posted on setup:voters, but voter ballot ids are always 32 bytes
	JSONIndent  int // default 0

	// DeterministicSplit selects the cut-and-choose challenge derivation
	// rule (spec §4.5 point 1, §9 "Open Questions"): true uses the fixed
	// first-half/second-half split, false derives the split from a
	// Fiat-Shamir hash of a verifier-furnished or SBB-state challenge seed.
	// See DESIGN.md "Open Question decisions" for why the zero value is
	// false.
	DeterministicSplit bool
}

// DefaultBallotIDLen and DefaultJSONIndent mirror spec §6's stated defaults.
const (
	DefaultBallotIDLen = 32
	DefaultJSONIndent  = 0
)

// WithDefaults returns a copy of p with BallotIDLen and JSONIndent filled in
// if left at their Go zero value (spec §6 "ballot_id_len (default 32)",
// "json_indent (default 0)" — zero is already the json_indent default, so
// only ballot_id_len needs filling).
func (p ElectionParameters) WithDefaults() ElectionParameters {
	if p.BallotIDLen == 0 {
		p.BallotIDLen = DefaultBallotIDLen
	}
	return p
}

// Validate checks every rule spec §6 states, returning ConfigInvalid with a
// human-readable reason on the first violation found.
func (p ElectionParameters) Validate() error {
	if p.ElectionID == "" {
		return fmt.Errorf("%w: election_id must be non-empty", types.ErrConfigInvalid)
	}
	if len(p.BallotStyle) == 0 {
		return fmt.Errorf("%w: ballot_style must declare at least one race", types.ErrConfigInvalid)
	}

	seenRaceIDs := make(map[string]bool, len(p.BallotStyle))
	for _, race := range p.BallotStyle {
		if race.RaceID == "" {
			return fmt.Errorf("%w: ballot_style contains a race with an empty race_id", types.ErrConfigInvalid)
		}
		if seenRaceIDs[race.RaceID] {
			return fmt.Errorf("%w: duplicate race_id %q in ballot_style", types.ErrConfigInvalid, race.RaceID)
		}
		seenRaceIDs[race.RaceID] = true

		if len(race.Choices) == 0 {
			return fmt.Errorf("%w: race %q has an empty choice list", types.ErrConfigInvalid, race.RaceID)
		}
		writeIns := 0
		for _, ch := range race.Choices {
			if types.IsWriteInPlaceholder(ch) {
				writeIns++
			}
		}
		if writeIns > 1 {
			return fmt.Errorf("%w: race %q declares more than one write-in slot", types.ErrConfigInvalid, race.RaceID)
		}
	}

	if p.NVoters <= 0 {
		return fmt.Errorf("%w: n_voters must be positive, got %d", types.ErrConfigInvalid, p.NVoters)
	}
	if p.NReps <= 0 || p.NReps%2 != 0 {
		return fmt.Errorf("%w: n_reps must be a positive even number, got %d", types.ErrConfigInvalid, p.NReps)
	}
	if p.NReps > 26 {
		return fmt.Errorf("%w: n_reps must be <= 26, got %d", types.ErrConfigInvalid, p.NReps)
	}
	if p.NFail < 0 {
		return fmt.Errorf("%w: n_fail must be non-negative, got %d", types.ErrConfigInvalid, p.NFail)
	}
	if p.NLeak < 0 {
		return fmt.Errorf("%w: n_leak must be non-negative, got %d", types.ErrConfigInvalid, p.NLeak)
	}
	if p.BallotIDLen < 0 {
		return fmt.Errorf("%w: ballot_id_len must be non-negative, got %d", types.ErrConfigInvalid, p.BallotIDLen)
	}
	if p.JSONIndent < 0 {
		return fmt.Errorf("%w: json_indent must be non-negative, got %d", types.ErrConfigInvalid, p.JSONIndent)
	}

	return nil
}
