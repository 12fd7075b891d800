package types

import "fmt"

// PList returns the position labels ["p0", "p1", ..., "p(n-1)"], zero-padded
// so that lexicographic sort order matches numeric order (spec §3
// "Position list"). These are opaque slot labels, never voter identities.
func PList(n int) []string {
	width := len(fmt.Sprintf("%d", n-1))
	if n <= 1 {
		width = 1
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = fmt.Sprintf("p%0*d", width, i)
	}
	return out
}

// RowList returns n lowercase-ascii row labels: a, b, c, ... (spec §3 "Row
// list"). The grid never needs more than 26 rows in practice (n_fail/n_leak
// bound it); a caller asking for more gets a panic rather than a silently
// wrong label, since that would indicate a misconfigured server module.
func RowList(n int) []string {
	if n > 26 {
		panic(fmt.Sprintf("types: RowList: %d rows exceeds the 26-letter row alphabet", n))
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = string(rune('a' + i))
	}
	return out
}

// KList returns n_reps uppercase-ascii pass labels: A, B, C, ... (spec §3
// "row list / column list" and §6 "n_reps... ≤ 26").
func KList(nReps int) []string {
	if nReps > 26 {
		panic(fmt.Sprintf("types: KList: %d reps exceeds the 26-letter pass alphabet", nReps))
	}
	out := make([]string, nReps)
	for i := 0; i < nReps; i++ {
		out[i] = string(rune('A' + i))
	}
	return out
}
