// Package numerator holds the counter arithmetic behind human-readable
// document numbers (INV-2026-000123). It knows nothing about storage: callers
// load a Sequence, mutate it under their own lock and persist the result.
package numerator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultPadding is the zero-padding width used when none is configured.
const DefaultPadding = 6

var (
	// ErrInvalidPadding is returned for a padding width below 1.
	ErrInvalidPadding = errors.New("numerator: padding must be at least 1")
	// ErrInvalidNext is returned for a counter below 1.
	ErrInvalidNext = errors.New("numerator: next number must be at least 1")
)

// Sequence is the mutable counter state of one numbering scope.
type Sequence struct {
	Prefix        string `db:"prefix" json:"prefix"`
	Padding       int    `db:"padding" json:"padding"`
	NextNumber    int64  `db:"next_number" json:"nextNumber"`
	ResetYearly   bool   `db:"reset_yearly" json:"resetYearly"`
	LastResetYear *int   `db:"last_reset_year" json:"lastResetYear,omitempty"`
}

// New returns a sequence starting at 1 with the default padding.
func New(prefix string) Sequence {
	return Sequence{Prefix: prefix, Padding: DefaultPadding, NextNumber: 1}
}

// Validate checks the counter configuration.
func (s *Sequence) Validate() error {
	if s.Padding < 1 {
		return ErrInvalidPadding
	}
	if s.NextNumber < 1 {
		return ErrInvalidNext
	}
	return nil
}

// MaybeReset restarts the counter at 1 when yearly reset is on and year
// differs from the last reset year. It reports whether anything changed;
// a second call for the same year is a no-op.
func (s *Sequence) MaybeReset(year int) bool {
	if !s.ResetYearly {
		return false
	}
	if s.LastResetYear != nil && *s.LastResetYear == year {
		return false
	}
	s.NextNumber = 1
	s.LastResetYear = &year
	return true
}

// Peek applies the yearly reset and returns the number the next Consume will
// hand out. The bool reports whether the reset modified the sequence and
// must be persisted.
func (s *Sequence) Peek(year int) (string, bool) {
	changed := s.MaybeReset(year)
	return s.Current(), changed
}

// Consume applies the yearly reset, returns the current number and advances
// the counter by one.
func (s *Sequence) Consume(year int) string {
	s.MaybeReset(year)
	value := s.Current()
	s.NextNumber++
	return value
}

// Current formats NextNumber without touching any state.
func (s *Sequence) Current() string {
	return Format(s.Prefix, s.Padding, s.NextNumber)
}

// Format renders prefix followed by n zero-padded to padding digits.
// Numbers wider than padding are never truncated.
func Format(prefix string, padding int, n int64) string {
	if padding < 1 {
		padding = 1
	}
	return prefix + fmt.Sprintf("%0*d", padding, n)
}

// ParseSuffix extracts the counter value from a formatted number.
func ParseSuffix(prefix, formatted string) (int64, error) {
	digits, ok := strings.CutPrefix(formatted, prefix)
	if !ok {
		return 0, fmt.Errorf("numerator: %q does not start with %q", formatted, prefix)
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("numerator: parse suffix of %q: %w", formatted, err)
	}
	return n, nil
}
