// allocator.go — the single-pass greedy Allocator.
// Entries are scored against their preferred window, sorted into a strict
// priority order, and walked once: each candidate takes the earliest slot with
// room in its preferred window, falls back to its backup window, or records
// why it could not be placed. No backtracking and no global optimum search —
// the fairness score corrects imbalance across runs, so the within-run
// algorithm stays simple enough to explain to a member over the counter.
package lottery

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fairwaygreens/club-api/internal/models"
)

// Candidate is one unit of allocation: an individual entry (party of one) or a
// group (party of its full membership, placed whole or not at all). Groups are
// scored by their leader's snapshot.
type Candidate struct {
	ID          uuid.UUID   // The entry's or group's primary key
	IsGroup     bool        // Distinguishes which table ID points into
	LeaderID    uuid.UUID   // Scoring profile owner; equals Members[0]
	Members     []uuid.UUID // Everyone sharing the outcome; len(Members) is the party size
	Preferred   models.PreferenceWindow
	Backup      *models.PreferenceWindow
	SubmittedAt time.Time
	Score       int // Filled in by Allocate before sorting
}

// PartySize is the number of seats the candidate needs in a single slot.
func (c *Candidate) PartySize() int { return len(c.Members) }

// AllocationResult is the ephemeral outcome for one candidate. It drives
// booking creation and the fairness update, and is never persisted as its own
// entity.
type AllocationResult struct {
	Candidate *Candidate
	Assigned  bool
	Slot      *Slot  // The slot taken; nil when unassigned
	Reason    string // ReasonNoCapacity / ReasonGroupTooLarge when unassigned

	// GrantedPreferred is true only when the slot sits inside the candidate's
	// preferred window — a backup-window placement still counts as a "bad"
	// day for fairness purposes.
	GrantedPreferred bool
}

// Allocate runs the full allocation pass. It mutates slot Remaining counters
// inside windows and returns one result per candidate, in the priority order
// they were processed. Given identical candidates, snapshots, and windows,
// two calls produce identical results.
func Allocate(candidates []*Candidate, windows []WindowSlots, snaps Snapshots) []AllocationResult {
	// Score every candidate against its preferred window. A member with no
	// profile or fairness row scores from the zero snapshot.
	for _, c := range candidates {
		c.Score = Score(snaps[c.LeaderID], c.Preferred)
	}

	// Strict total order: score desc, submission asc, member id asc. sort.Slice
	// is fine here because Less never reports two candidates as equivalent.
	ordered := make([]*Candidate, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool { return Less(ordered[i], ordered[j]) })

	maxCap := maxSlotCapacity(windows)

	results := make([]AllocationResult, 0, len(ordered))
	for _, c := range ordered {
		// A party bigger than every slot on the sheet can never fit whole.
		// Settle it immediately rather than letting it fail both windows and
		// look like an ordinary capacity miss.
		if c.PartySize() > maxCap {
			results = append(results, AllocationResult{Candidate: c, Reason: ReasonGroupTooLarge})
			continue
		}

		if slot := takeSlot(windows, c.Preferred, c.PartySize()); slot != nil {
			results = append(results, AllocationResult{
				Candidate: c, Assigned: true, Slot: slot, GrantedPreferred: true,
			})
			continue
		}
		if c.Backup != nil {
			if slot := takeSlot(windows, *c.Backup, c.PartySize()); slot != nil {
				results = append(results, AllocationResult{
					Candidate: c, Assigned: true, Slot: slot,
				})
				continue
			}
		}
		results = append(results, AllocationResult{Candidate: c, Reason: ReasonNoCapacity})
	}
	return results
}

// takeSlot finds the earliest slot in the named window with room for the whole
// party, decrements its remaining seats, and returns it. Returns nil when the
// window doesn't exist, is empty today, or has no slot with enough room.
func takeSlot(windows []WindowSlots, name models.PreferenceWindow, partySize int) *Slot {
	ws := findWindow(windows, name)
	if ws == nil {
		return nil
	}
	for _, slot := range ws.Slots {
		if slot.Remaining >= partySize {
			slot.Remaining -= partySize
			return slot
		}
	}
	return nil
}
