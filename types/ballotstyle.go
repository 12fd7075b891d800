package types

import "strings"

// writeInRune is the placeholder character used in a ballot-style choice
// list to indicate a write-in slot; the number of stars is the maximum
// write-in length (spec §3 "Choice encoding").
const writeInRune = '*'

// RaceSpec is one (race_id, choices) entry of an election's ballot_style
// (spec §6 "ballot_style"). Choices may include one write-in placeholder of
// stars, e.g. "********".
type RaceSpec struct {
	RaceID  string
	Choices []string
}

// BallotStyle is the ordered list of races on a ballot.
type BallotStyle []RaceSpec

// IsWriteInPlaceholder reports whether choice is a run of one or more stars,
// i.e. a write-in slot declaration rather than a concrete choice name.
func IsWriteInPlaceholder(choice string) bool {
	if choice == "" {
		return false
	}
	return strings.Count(choice, string(writeInRune)) == len(choice)
}

// WriteInMaxLen returns the maximum write-in length declared by choice, or 0
// if choice is not a write-in placeholder.
func WriteInMaxLen(choice string) int {
	if !IsWriteInPlaceholder(choice) {
		return 0
	}
	return len(choice)
}
