package lottery

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/fairwaygreens/club-api/internal/models"
)

func TestSpeedBonus_TableShape(t *testing.T) {
	// The exact numbers are a policy choice; what matters is the qualitative
	// contract: fast players get their biggest boost early, a smaller one
	// midday, and nothing in the afternoon; average is the zero baseline;
	// slow players never score above average anywhere.
	fastEarly := SpeedBonus(models.SpeedTierFast, models.WindowEarlyMorning)
	fastMorning := SpeedBonus(models.SpeedTierFast, models.WindowMorning)
	fastMidday := SpeedBonus(models.SpeedTierFast, models.WindowMidday)

	assert.Greater(t, fastEarly, fastMidday)
	assert.Greater(t, fastMorning, fastMidday)
	assert.Greater(t, fastMidday, 0)
	assert.Equal(t, 0, SpeedBonus(models.SpeedTierFast, models.WindowAfternoon))

	for _, w := range models.Windows() {
		assert.Equal(t, 0, SpeedBonus(models.SpeedTierAverage, w), "average must be neutral in %s", w)
		assert.LessOrEqual(t, SpeedBonus(models.SpeedTierSlow, w), 0, "slow must never out-score average in %s", w)
	}
}

func TestScore_SumsComponents(t *testing.T) {
	snap := MemberSnapshot{Tier: models.SpeedTierFast, AdminAdjustment: 3, Fairness: 7}
	want := 7 + SpeedBonus(models.SpeedTierFast, models.WindowEarlyMorning) + 3
	assert.Equal(t, want, Score(snap, models.WindowEarlyMorning))

	// The zero snapshot (member with no history at all) scores as the pure
	// window bonus for an average player: zero.
	assert.Equal(t, 0, Score(MemberSnapshot{Tier: models.SpeedTierAverage}, models.WindowMidday))
}

func TestFairnessScore_GrowsWithUnderService(t *testing.T) {
	t.Run("streak term", func(t *testing.T) {
		prev := -1
		for days := 0; days <= 10; days++ {
			got := FairnessScore(days, 4, 2)
			assert.Greater(t, got, prev, "score must strictly grow with the denial streak")
			prev = got
		}
	})

	t.Run("fulfillment term", func(t *testing.T) {
		// With a fixed streak, a worse historical rate can never score lower.
		entries := 10
		prev := FairnessScore(3, entries, entries) // perfect month
		for granted := entries - 1; granted >= 0; granted-- {
			got := FairnessScore(3, entries, granted)
			assert.GreaterOrEqual(t, got, prev)
			prev = got
		}
	})

	t.Run("fresh month starts neutral", func(t *testing.T) {
		assert.Equal(t, 0, FairnessScore(0, 0, 0))
	})
}

func TestLess_TieBreaks(t *testing.T) {
	early := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	idLow := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	idHigh := uuid.MustParse("99999999-9999-9999-9999-999999999999")

	t.Run("score wins first", func(t *testing.T) {
		a := &Candidate{Score: 5, SubmittedAt: late, LeaderID: idHigh}
		b := &Candidate{Score: 3, SubmittedAt: early, LeaderID: idLow}
		assert.True(t, Less(a, b))
		assert.False(t, Less(b, a))
	})

	t.Run("equal score falls to submission time", func(t *testing.T) {
		a := &Candidate{Score: 5, SubmittedAt: early, LeaderID: idHigh}
		b := &Candidate{Score: 5, SubmittedAt: late, LeaderID: idLow}
		assert.True(t, Less(a, b))
		assert.False(t, Less(b, a))
	})

	t.Run("identical score and time fall to member id", func(t *testing.T) {
		a := &Candidate{Score: 5, SubmittedAt: early, LeaderID: idLow}
		b := &Candidate{Score: 5, SubmittedAt: early, LeaderID: idHigh}
		assert.True(t, Less(a, b))
		assert.False(t, Less(b, a))
	})
}
