package lottery

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairwaygreens/club-api/internal/models"
)

var runDate = time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

// onePerWindowConfig yields exactly one slot in each of the four windows:
// 07:00 early, 07:15 morning, 07:30 midday, 07:45 afternoon.
func onePerWindowConfig(capacity int) models.TeeSheetConfig {
	return models.TeeSheetConfig{
		StartTime: "07:00", EndTime: "08:00", IntervalMins: 15, SlotCapacity: capacity,
	}
}

func pendingEntry(memberID uuid.UUID, preferred models.PreferenceWindow, backup *models.PreferenceWindow, submitted time.Time) models.LotteryEntry {
	return models.LotteryEntry{
		ID:          uuid.New(),
		MemberID:    memberID,
		LotteryDate: runDate,
		Preferred:   preferred,
		Backup:      backup,
		MemberClass: "full",
		Status:      models.EntryStatusPending,
		SubmittedAt: submitted,
	}
}

func TestProcessDate_AssignsAndUpdatesFairness(t *testing.T) {
	store := NewMemoryStore()
	store.SetConfig(runDate, onePerWindowConfig(4))

	base := time.Date(2026, 4, 8, 9, 0, 0, 0, time.UTC)
	e1 := pendingEntry(memberN(1), models.WindowEarlyMorning, nil, base)
	e2 := pendingEntry(memberN(2), models.WindowMorning, nil, base.Add(time.Minute))
	store.AddEntry(e1)
	store.AddEntry(e2)

	p := NewProcessor(store, quietLogger())
	summary, err := p.ProcessDate(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{ProcessedCount: 2, TotalEntries: 2, BookingsCreated: 2}, summary)

	bookings := store.BookingsFor(runDate)
	require.Len(t, bookings, 2)
	assert.Equal(t, "07:00", bookings[0].SlotTime)
	assert.Equal(t, models.WindowEarlyMorning, bookings[0].Window)
	require.NotNil(t, bookings[0].EntryID)
	assert.Equal(t, e1.ID, *bookings[0].EntryID)

	for _, id := range []uuid.UUID{e1.ID, e2.ID} {
		entry, ok := store.EntryByID(id)
		require.True(t, ok)
		assert.Equal(t, models.EntryStatusAssigned, entry.Status)
		assert.NotNil(t, entry.ProcessedAt)
		assert.Nil(t, entry.UnassignedReason)
	}

	// Both members were granted their preference, so their lazily created
	// fairness rows show a clean month.
	for _, id := range []uuid.UUID{memberN(1), memberN(2)} {
		row, ok := store.FairnessFor(id, "2026-04")
		require.True(t, ok, "fairness row should be created on first processed entry")
		assert.Equal(t, 1, row.EntriesMonth)
		assert.Equal(t, 1, row.PreferencesGranted)
		assert.Equal(t, 0, row.DaysWithoutGoodTime)
		assert.Equal(t, 0, row.Score)
	}
}

func TestProcessDate_SecondRunIsNoOp(t *testing.T) {
	store := NewMemoryStore()
	store.SetConfig(runDate, onePerWindowConfig(4))
	store.AddEntry(pendingEntry(memberN(1), models.WindowEarlyMorning, nil, time.Date(2026, 4, 8, 9, 0, 0, 0, time.UTC)))

	p := NewProcessor(store, quietLogger())
	first, err := p.ProcessDate(context.Background(), runDate)
	require.NoError(t, err)
	require.Equal(t, 1, first.ProcessedCount)

	row1, _ := store.FairnessFor(memberN(1), "2026-04")

	second, err := p.ProcessDate(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{}, second, "re-running a settled date must be a no-op")

	assert.Len(t, store.BookingsFor(runDate), 1, "no double-booking on re-run")
	row2, _ := store.FairnessFor(memberN(1), "2026-04")
	assert.Equal(t, row1, row2, "fairness state must not move on re-run")
}

func TestProcessDate_UnassignedEntryIsTerminal(t *testing.T) {
	// Capacity one, two contenders, no backups: the loser is recorded with
	// NO_CAPACITY and is not picked up again by a later run.
	store := NewMemoryStore()
	store.SetConfig(runDate, models.TeeSheetConfig{
		StartTime: "07:00", EndTime: "07:15", IntervalMins: 15, SlotCapacity: 1,
	})

	base := time.Date(2026, 4, 8, 9, 0, 0, 0, time.UTC)
	winner := pendingEntry(memberN(1), models.WindowEarlyMorning, nil, base)
	loser := pendingEntry(memberN(2), models.WindowEarlyMorning, nil, base.Add(time.Minute))
	store.AddEntry(winner)
	store.AddEntry(loser)

	p := NewProcessor(store, quietLogger())
	summary, err := p.ProcessDate(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{ProcessedCount: 2, TotalEntries: 2, BookingsCreated: 1}, summary)

	got, _ := store.EntryByID(loser.ID)
	assert.Equal(t, models.EntryStatusPending, got.Status, "an unplaced entry stays pending")
	require.NotNil(t, got.ProcessedAt)
	require.NotNil(t, got.UnassignedReason)
	assert.Equal(t, ReasonNoCapacity, *got.UnassignedReason)

	// The loser carries a denial in fairness, boosting them next time.
	row, _ := store.FairnessFor(memberN(2), "2026-04")
	assert.Equal(t, 1, row.DaysWithoutGoodTime)
	assert.Greater(t, row.Score, 0)

	second, err := p.ProcessDate(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{}, second)
}

func TestProcessDate_DeniedMemberWinsNextRun(t *testing.T) {
	// Member M was denied repeatedly: streak of 5, nothing granted from two
	// entries, fairness score 20. With a free slot and no stronger contender,
	// M is granted, the streak resets, and the score falls.
	store := NewMemoryStore()
	store.SetConfig(runDate, onePerWindowConfig(4))
	store.SetFairness(models.MemberFairnessScore{
		MemberID:            memberN(1),
		Month:               "2026-04",
		EntriesMonth:        2,
		PreferencesGranted:  0,
		DaysWithoutGoodTime: 5,
		Score:               FairnessScore(5, 2, 0),
	})
	store.AddEntry(pendingEntry(memberN(1), models.WindowEarlyMorning, nil, time.Date(2026, 4, 8, 9, 0, 0, 0, time.UTC)))

	before, _ := store.FairnessFor(memberN(1), "2026-04")
	require.Equal(t, 20, before.Score)

	p := NewProcessor(store, quietLogger())
	summary, err := p.ProcessDate(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.BookingsCreated)

	after, _ := store.FairnessFor(memberN(1), "2026-04")
	assert.Equal(t, 0, after.DaysWithoutGoodTime)
	assert.Equal(t, 1, after.PreferencesGranted)
	assert.Equal(t, 3, after.EntriesMonth)
	assert.Less(t, after.Score, before.Score)
}

func TestProcessDate_GroupBookedWhole(t *testing.T) {
	store := NewMemoryStore()
	store.SetConfig(runDate, onePerWindowConfig(4))

	groupID := uuid.New()
	store.AddGroup(models.LotteryGroup{
		ID:          groupID,
		LeaderID:    memberN(1),
		LotteryDate: runDate,
		Preferred:   models.WindowMidday,
		Status:      models.EntryStatusPending,
		SubmittedAt: time.Date(2026, 4, 8, 9, 0, 0, 0, time.UTC),
		Members: []models.LotteryGroupMember{
			{GroupID: groupID, MemberID: memberN(1), Position: 0},
			{GroupID: groupID, MemberID: memberN(2), Position: 1},
			{GroupID: groupID, MemberID: memberN(3), Position: 2},
		},
	})

	p := NewProcessor(store, quietLogger())
	summary, err := p.ProcessDate(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{ProcessedCount: 1, TotalEntries: 1, BookingsCreated: 1}, summary)

	bookings := store.BookingsFor(runDate)
	require.Len(t, bookings, 1)
	assert.Equal(t, 3, bookings[0].PartySize)
	require.NotNil(t, bookings[0].GroupID)
	assert.Equal(t, groupID, *bookings[0].GroupID)
	require.Len(t, bookings[0].Players, 3)
	assert.Equal(t, memberN(1), bookings[0].Players[0].MemberID)

	group, _ := store.GroupByID(groupID)
	assert.Equal(t, models.EntryStatusAssigned, group.Status)

	// Every group member shares the granted outcome.
	for _, id := range []uuid.UUID{memberN(1), memberN(2), memberN(3)} {
		row, ok := store.FairnessFor(id, "2026-04")
		require.True(t, ok)
		assert.Equal(t, 1, row.PreferencesGranted)
	}
}

func TestProcessDate_ConcurrentRunRejected(t *testing.T) {
	store := NewMemoryStore()
	store.SetConfig(runDate, onePerWindowConfig(4))
	store.AddEntry(pendingEntry(memberN(1), models.WindowEarlyMorning, nil, time.Date(2026, 4, 8, 9, 0, 0, 0, time.UTC)))

	release := store.HoldLock(runDate)
	defer release()

	p := NewProcessor(store, quietLogger())
	_, err := p.ProcessDate(context.Background(), runDate)
	require.ErrorIs(t, err, ErrConcurrentRun)

	// The rejected invocation touched nothing.
	assert.Empty(t, store.BookingsFor(runDate))
	release()

	summary, err := p.ProcessDate(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ProcessedCount)
}

func TestProcessDate_ConfigurationErrors(t *testing.T) {
	t.Run("no config row", func(t *testing.T) {
		store := NewMemoryStore()
		p := NewProcessor(store, quietLogger())
		_, err := p.ProcessDate(context.Background(), runDate)
		require.ErrorIs(t, err, ErrBadConfiguration)
	})

	t.Run("unusable config row", func(t *testing.T) {
		store := NewMemoryStore()
		store.SetConfig(runDate, models.TeeSheetConfig{
			StartTime: "09:00", EndTime: "07:00", IntervalMins: 10, SlotCapacity: 4,
		})
		store.AddEntry(pendingEntry(memberN(1), models.WindowEarlyMorning, nil, time.Date(2026, 4, 8, 9, 0, 0, 0, time.UTC)))
		p := NewProcessor(store, quietLogger())
		_, err := p.ProcessDate(context.Background(), runDate)
		require.ErrorIs(t, err, ErrBadConfiguration)
	})
}

func TestProcessDate_FailureRollsBackEverything(t *testing.T) {
	store := NewMemoryStore()
	store.SetConfig(runDate, onePerWindowConfig(4))
	entry := pendingEntry(memberN(1), models.WindowEarlyMorning, nil, time.Date(2026, 4, 8, 9, 0, 0, 0, time.UTC))
	store.AddEntry(entry)
	store.FailOn = "save_fairness"

	p := NewProcessor(store, quietLogger())
	_, err := p.ProcessDate(context.Background(), runDate)

	var runErr *RunFailedError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "2026-04-10", runErr.Date)

	// Nothing half-committed: no bookings, the entry is untouched, no
	// fairness row appeared.
	assert.Empty(t, store.BookingsFor(runDate))
	got, _ := store.EntryByID(entry.ID)
	assert.Equal(t, models.EntryStatusPending, got.Status)
	assert.Nil(t, got.ProcessedAt)
	_, ok := store.FairnessFor(memberN(1), "2026-04")
	assert.False(t, ok)

	// Once the fault clears, the same entry processes cleanly — proof the
	// failed run left a consistent state behind.
	store.FailOn = ""
	summary, err := p.ProcessDate(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{ProcessedCount: 1, TotalEntries: 1, BookingsCreated: 1}, summary)
}

func TestResetAdminAdjustments(t *testing.T) {
	store := NewMemoryStore()
	store.SetProfile(models.MemberSpeedProfile{MemberID: memberN(1), Tier: models.SpeedTierFast, AdminAdjustment: 5})
	store.SetProfile(models.MemberSpeedProfile{MemberID: memberN(2), Tier: models.SpeedTierSlow, AdminAdjustment: -3})
	store.SetProfile(models.MemberSpeedProfile{MemberID: memberN(3), Tier: models.SpeedTierAverage})

	p := NewProcessor(store, quietLogger())
	count, err := p.ResetAdminAdjustments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "only rows with a live adjustment count as updated")
}
