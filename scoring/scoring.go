// Package scoring defines the alignment scoring configuration shared by
// the alignment engine and the alignment cache, kept separate from both
// so neither has to import the other just to compare configs.
package scoring

import "fmt"

// Config is the four-integer affine-gap scoring scheme.
// Two configs are equal iff the four numbers are equal; Description is
// informational only and does not participate in equality or cache
// compatibility checks.
type Config struct {
	MatchScore      int
	MismatchPenalty int
	GapOpen         int
	GapExtend       int
	Description     string
}

// DefaultDNA returns the conventional DNA scoring scheme used across the
// test scenarios here (match +2, mismatch -1, gap-open -5,
// gap-extend -2).
func DefaultDNA() Config {
	return Config{MatchScore: 2, MismatchPenalty: -1, GapOpen: 5, GapExtend: 2, Description: "default DNA scoring"}
}

// Equal compares the four scoring numbers only.
func (c Config) Equal(other Config) bool {
	return c.MatchScore == other.MatchScore &&
		c.MismatchPenalty == other.MismatchPenalty &&
		c.GapOpen == other.GapOpen &&
		c.GapExtend == other.GapExtend
}

// String renders the config for logging and cache metadata display.
func (c Config) String() string {
	if c.Description != "" {
		return fmt.Sprintf("%s (match=%d, mismatch=%d, gap_open=%d, gap_extend=%d)",
			c.Description, c.MatchScore, c.MismatchPenalty, c.GapOpen, c.GapExtend)
	}
	return fmt.Sprintf("match=%d, mismatch=%d, gap_open=%d, gap_extend=%d",
		c.MatchScore, c.MismatchPenalty, c.GapOpen, c.GapExtend)
}
