// fairness.go — the Fairness Updater.
// After allocation, every member whose entry was processed gets their monthly
// accumulator moved: granted preferences reset the bad-day streak and lift the
// fulfillment rate; denials and backup-window placements lengthen the streak.
// The derived score feeds the next run's priority order, closing the loop that
// keeps chronically unlucky members from staying unlucky.
//
// Speed profiles are not touched here. Pace data comes from completed rounds
// via the pace-of-play process; this package only ever reads it.
package lottery

import (
	"time"

	"github.com/google/uuid"

	"github.com/fairwaygreens/club-api/internal/models"
)

// MonthKey renders the year-month accumulator key for a lottery date, e.g.
// "2026-04". Fairness history is monthly so a bad spring doesn't haunt a
// member all season.
func MonthKey(date time.Time) string {
	return date.Format("2006-01")
}

// ApplyOutcome folds one processed entry into a member's monthly fairness row,
// in place. grantedPreferred is true only for a preferred-window placement;
// backup placements and unassigned outcomes both count as a denial.
//
// The update is monotone: a denial can only raise Score (streak +2, rate term
// non-decreasing) and a grant can only lower it (streak reset, rate term
// non-increasing).
func ApplyOutcome(row *models.MemberFairnessScore, grantedPreferred bool) {
	row.EntriesMonth++
	if grantedPreferred {
		row.PreferencesGranted++
		row.DaysWithoutGoodTime = 0
	} else {
		row.DaysWithoutGoodTime++
	}
	row.FulfillmentRate = float64(row.PreferencesGranted) / float64(row.EntriesMonth)
	row.Score = FairnessScore(row.DaysWithoutGoodTime, row.EntriesMonth, row.PreferencesGranted)
}

// fairnessUpdates walks the allocation results and produces the updated
// monthly rows for every member that shared an outcome — all group members,
// not just the leader. existing holds the current-month rows loaded with the
// run snapshot; members without one get a fresh row created lazily, carrying
// the member id and month key but zero history.
//
// The same member can only appear once per date (one entry OR one group seat,
// enforced at submission), so each row is touched at most once per run.
func fairnessUpdates(results []AllocationResult, existing map[uuid.UUID]models.MemberFairnessScore, month string) []*models.MemberFairnessScore {
	updated := make([]*models.MemberFairnessScore, 0, len(results))
	for _, res := range results {
		for _, memberID := range res.Candidate.Members {
			row, ok := existing[memberID]
			if !ok {
				row = models.MemberFairnessScore{MemberID: memberID, Month: month}
			}
			ApplyOutcome(&row, res.GrantedPreferred)
			updated = append(updated, &row)
		}
	}
	return updated
}
