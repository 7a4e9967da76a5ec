// Package lottery implements the tee-time allocation engine: the one subsystem
// of the club backend with real algorithmic weight. Given a day's configured
// tee sheet, the pending entries and groups for that date, and each member's
// speed profile and fairness history, it decides who tees off when.
//
// Everything here is deliberately deterministic: no clock reads and no
// randomness inside scoring or allocation, so two runs over the same snapshot
// produce identical assignments. Fairness across members is achieved across
// runs via the persistent fairness score, not by searching for a within-run
// optimum — the allocator is a single greedy pass by design.
package lottery

import (
	"errors"
	"fmt"
)

// Run-level errors. These abort the whole run; nothing is committed.
var (
	// ErrBadConfiguration means the day's tee-sheet configuration cannot
	// produce a usable slot list (start after end, non-positive interval or
	// capacity, or no configuration row at all). Fatal to the run.
	ErrBadConfiguration = errors.New("invalid tee sheet configuration")

	// ErrConcurrentRun means another run for the same date already holds the
	// per-date lock. The new invocation must abort without touching anything —
	// the in-flight run will settle every pending entry, so there is nothing
	// left for this one to do anyway.
	ErrConcurrentRun = errors.New("a lottery run for this date is already in progress")
)

// RunFailedError wraps any unexpected failure that occurs after the run began
// mutating state. The surrounding transaction is rolled back, so the caller can
// trust that no partial bookings or fairness updates survived. Cause carries
// the original error for errors.Is / errors.As inspection.
type RunFailedError struct {
	Date  string // "2006-01-02" of the failed run
	Cause error
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("lottery run for %s failed and was rolled back: %v", e.Date, e.Cause)
}

// Unwrap exposes the cause so errors.Is(err, something) keeps working
// through the wrapper.
func (e *RunFailedError) Unwrap() error { return e.Cause }

// Per-entry outcomes. These are recorded on the entry, never returned as
// errors — a full tee sheet is a normal result of a popular morning, not a
// failure of the run.
const (
	// ReasonNoCapacity: neither the preferred nor the backup window had a slot
	// with enough remaining seats for the party.
	ReasonNoCapacity = "NO_CAPACITY"

	// ReasonGroupTooLarge: the party is bigger than any slot's configured
	// capacity, so no amount of priority could ever place it whole. The group
	// is never split — one outcome for everyone is the whole point of a group.
	ReasonGroupTooLarge = "GROUP_TOO_LARGE"
)
