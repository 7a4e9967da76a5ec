// scoring.go — the Scoring Engine.
// Pure functions only: a score is computed from snapshotted profile and
// fairness values captured at run start, never from live rows mid-allocation.
// That is what makes a run reproducible — re-score the same snapshot anywhere
// and you get the same numbers, the same order, the same assignments.
package lottery

import (
	"math"

	"github.com/google/uuid"

	"github.com/fairwaygreens/club-api/internal/models"
)

// MemberSnapshot is the immutable per-member view the scorer works from:
// the speed tier and manual adjustment from the profile, and the current
// fairness score for the run's month. Missing rows default to zero values
// (average tier, no adjustment, no fairness history).
type MemberSnapshot struct {
	Tier            models.SpeedTier
	AdminAdjustment int
	Fairness        int
}

// Snapshots maps member id to snapshot for the whole run.
type Snapshots map[uuid.UUID]MemberSnapshot

// speedBonus is the window-dependent pace bonus table.
//
// Fast players get the biggest boost into the early windows: the course is
// busiest then, and a quick group at the front reduces backup for everyone
// behind. Average pace is the neutral baseline. Slow players carry a small
// penalty in the same busy windows and compete evenly everywhere else.
// These concrete numbers were chosen to satisfy the qualitative contract
// (largest fast bonus early, smaller midday, zero afternoon) while staying
// small relative to the fairness component, so pace never drowns out history.
var speedBonus = map[models.SpeedTier]map[models.PreferenceWindow]int{
	models.SpeedTierFast: {
		models.WindowEarlyMorning: 5,
		models.WindowMorning:      4,
		models.WindowMidday:       2,
		models.WindowAfternoon:    0,
	},
	models.SpeedTierAverage: {
		models.WindowEarlyMorning: 0,
		models.WindowMorning:      0,
		models.WindowMidday:       0,
		models.WindowAfternoon:    0,
	},
	models.SpeedTierSlow: {
		models.WindowEarlyMorning: -2,
		models.WindowMorning:      -2,
		models.WindowMidday:       0,
		models.WindowAfternoon:    0,
	},
}

// SpeedBonus returns the pace bonus for a tier targeting a window.
// Unknown tiers score as average.
func SpeedBonus(tier models.SpeedTier, window models.PreferenceWindow) int {
	if row, ok := speedBonus[tier]; ok {
		return row[window]
	}
	return 0
}

// Score computes the priority score for one member (or a group, scored by its
// leader's snapshot) targeting a window:
//
//	score = fairness + speedBonus(tier, window) + adminAdjustment
//
// Higher scores are served first. No side effects, no clock, no randomness.
func Score(snap MemberSnapshot, window models.PreferenceWindow) int {
	return snap.Fairness + SpeedBonus(snap.Tier, window) + snap.AdminAdjustment
}

// FairnessScore derives the fairness component from a member's monthly history.
//
//	score = 2*daysWithoutGoodTime + round(10 * (1 - fulfillmentRate))
//
// Both terms grow with under-service: each consecutive run without a
// preferred-window placement adds two points, and a poor historical
// fulfillment rate adds up to ten more. A granted preference resets the streak
// and lifts the rate, pulling the score back down — so nobody starves and
// nobody stays over-privileged. A member with no processed entries yet this
// month scores from the streak alone (rate term zero), so brand-new months
// start neutral rather than maximally boosted.
func FairnessScore(daysWithoutGoodTime, entriesMonth, preferencesGranted int) int {
	score := 2 * daysWithoutGoodTime
	if entriesMonth > 0 {
		rate := float64(preferencesGranted) / float64(entriesMonth)
		score += int(math.Round(10 * (1 - rate)))
	}
	return score
}

// Less is the deterministic ordering for the allocation pass: higher score
// first, then earlier submission, then lowest member id. The final id
// comparison guarantees a total order — two candidates are never "equal", so
// sorting is reproducible and auditable with no random selection anywhere.
func Less(a, b *Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.LeaderID.String() < b.LeaderID.String()
}
