package lottery

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairwaygreens/club-api/internal/models"
)

// fourWindows builds a full window set by hand so allocator tests control
// exactly which slots exist where, independent of the resolver's partitioning.
func fourWindows(slots map[models.PreferenceWindow][]int, capacity int) []WindowSlots {
	out := make([]WindowSlots, 0, 4)
	for _, name := range models.Windows() {
		ws := WindowSlots{Window: name}
		for _, mins := range slots[name] {
			ws.Slots = append(ws.Slots, &Slot{
				StartMins: mins,
				Label:     clockLabel(mins),
				Window:    name,
				Capacity:  capacity,
				Remaining: capacity,
			})
		}
		out = append(out, ws)
	}
	return out
}

func individual(memberID uuid.UUID, preferred models.PreferenceWindow, backup *models.PreferenceWindow, submitted time.Time) *Candidate {
	return &Candidate{
		ID:          uuid.New(),
		LeaderID:    memberID,
		Members:     []uuid.UUID{memberID},
		Preferred:   preferred,
		Backup:      backup,
		SubmittedAt: submitted,
	}
}

func windowPtr(w models.PreferenceWindow) *models.PreferenceWindow { return &w }

// memberN builds a deterministic uuid so tests are reproducible run to run.
func memberN(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

func TestAllocate_FourteenEntriesThreeSlots(t *testing.T) {
	// The reference scenario: EARLY_MORNING holds 3 slots of capacity 4
	// (12 seats). 14 individuals all want it, all with identical zero
	// snapshots except that entry A was submitted first. Exactly 12 get in;
	// the 2 latest submissions miss out with NO_CAPACITY.
	windows := fourWindows(map[models.PreferenceWindow][]int{
		models.WindowEarlyMorning: {420, 430, 440},
	}, 4)

	base := time.Date(2026, 4, 10, 6, 0, 0, 0, time.UTC)
	candidates := make([]*Candidate, 0, 14)
	for i := 0; i < 14; i++ {
		candidates = append(candidates,
			individual(memberN(i+1), models.WindowEarlyMorning, nil, base.Add(time.Duration(i)*time.Minute)))
	}
	entryA := candidates[0]

	results := Allocate(candidates, windows, Snapshots{})
	require.Len(t, results, 14)

	// A was submitted first and every score ties, so A is processed first and
	// takes the first seat of the earliest slot.
	assert.Equal(t, entryA.ID, results[0].Candidate.ID)
	require.True(t, results[0].Assigned)
	assert.Equal(t, "07:00", results[0].Slot.Label)

	assigned, unassigned := 0, 0
	for _, res := range results {
		if res.Assigned {
			assigned++
			assert.True(t, res.GrantedPreferred)
		} else {
			unassigned++
			assert.Equal(t, ReasonNoCapacity, res.Reason)
		}
	}
	assert.Equal(t, 12, assigned)
	assert.Equal(t, 2, unassigned)

	// The two losers are exactly the two latest submissions.
	assert.False(t, results[12].Assigned)
	assert.False(t, results[13].Assigned)
	assert.Equal(t, candidates[12].ID, results[12].Candidate.ID)
	assert.Equal(t, candidates[13].ID, results[13].Candidate.ID)
}

func TestAllocate_GroupTooLargeIsNeverSplit(t *testing.T) {
	windows := fourWindows(map[models.PreferenceWindow][]int{
		models.WindowMorning: {540, 550},
	}, 4)

	group := &Candidate{
		ID:       uuid.New(),
		IsGroup:  true,
		LeaderID: memberN(1),
		Members:  []uuid.UUID{memberN(1), memberN(2), memberN(3), memberN(4), memberN(5)},
		Preferred: models.WindowMorning,
		SubmittedAt: time.Date(2026, 4, 10, 6, 0, 0, 0, time.UTC),
	}

	results := Allocate([]*Candidate{group}, windows, Snapshots{})
	require.Len(t, results, 1)
	assert.False(t, results[0].Assigned)
	assert.Equal(t, ReasonGroupTooLarge, results[0].Reason)

	// No partial placement of 4 of the 5: every seat is still open.
	for _, ws := range windows {
		for _, s := range ws.Slots {
			assert.Equal(t, s.Capacity, s.Remaining)
		}
	}
}

func TestAllocate_BackupWindowFallback(t *testing.T) {
	// One seat early, plenty midday. The higher-priority entry takes the early
	// seat; the second falls through to its backup and is recorded as NOT
	// granted its preference.
	windows := fourWindows(map[models.PreferenceWindow][]int{
		models.WindowEarlyMorning: {420},
		models.WindowMidday:       {720, 730},
	}, 1)

	base := time.Date(2026, 4, 10, 6, 0, 0, 0, time.UTC)
	first := individual(memberN(1), models.WindowEarlyMorning, nil, base)
	second := individual(memberN(2), models.WindowEarlyMorning, windowPtr(models.WindowMidday), base.Add(time.Minute))
	third := individual(memberN(3), models.WindowEarlyMorning, nil, base.Add(2*time.Minute))

	results := Allocate([]*Candidate{first, second, third}, windows, Snapshots{})
	require.Len(t, results, 3)

	require.True(t, results[0].Assigned)
	assert.True(t, results[0].GrantedPreferred)
	assert.Equal(t, "07:00", results[0].Slot.Label)

	require.True(t, results[1].Assigned, "second entry should land in its backup window")
	assert.False(t, results[1].GrantedPreferred)
	assert.Equal(t, models.WindowMidday, results[1].Slot.Window)
	assert.Equal(t, "12:00", results[1].Slot.Label)

	assert.False(t, results[2].Assigned, "no backup means preferred-or-nothing")
	assert.Equal(t, ReasonNoCapacity, results[2].Reason)
}

func TestAllocate_FairnessOutranksSubmissionOrder(t *testing.T) {
	windows := fourWindows(map[models.PreferenceWindow][]int{
		models.WindowEarlyMorning: {420},
	}, 1)

	base := time.Date(2026, 4, 10, 6, 0, 0, 0, time.UTC)
	early := individual(memberN(1), models.WindowEarlyMorning, nil, base)
	boosted := individual(memberN(2), models.WindowEarlyMorning, nil, base.Add(time.Hour))

	snaps := Snapshots{
		memberN(2): {Tier: models.SpeedTierAverage, Fairness: 12},
	}

	results := Allocate([]*Candidate{early, boosted}, windows, snaps)
	assert.Equal(t, boosted.ID, results[0].Candidate.ID, "the under-served member outranks an earlier submission")
	assert.True(t, results[0].Assigned)
	assert.False(t, results[1].Assigned)
}

func TestAllocate_CapacityInvariant(t *testing.T) {
	windows := fourWindows(map[models.PreferenceWindow][]int{
		models.WindowEarlyMorning: {420, 440},
		models.WindowMorning:      {560, 580},
		models.WindowMidday:       {720},
		models.WindowAfternoon:    {900, 920, 940},
	}, 4)

	base := time.Date(2026, 4, 10, 6, 0, 0, 0, time.UTC)
	var candidates []*Candidate
	// A spread of individuals and groups of 2–4 across all windows, enough to
	// oversubscribe several of them.
	for i := 0; i < 20; i++ {
		window := models.Windows()[i%4]
		partySize := i%4 + 1
		members := make([]uuid.UUID, partySize)
		for j := range members {
			members[j] = memberN(i*10 + j + 1)
		}
		candidates = append(candidates, &Candidate{
			ID:          uuid.New(),
			IsGroup:     partySize > 1,
			LeaderID:    members[0],
			Members:     members,
			Preferred:   window,
			Backup:      windowPtr(models.Windows()[(i+1)%4]),
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	results := Allocate(candidates, windows, Snapshots{})

	// Recompute per-slot load from the results and check it against capacity
	// and against the slot's own bookkeeping.
	load := make(map[string]int)
	for _, res := range results {
		if res.Assigned {
			load[res.Slot.Label] += res.Candidate.PartySize()
		}
	}
	for _, ws := range windows {
		for _, s := range ws.Slots {
			assert.LessOrEqual(t, load[s.Label], s.Capacity, "slot %s over capacity", s.Label)
			assert.Equal(t, s.Capacity-s.Remaining, load[s.Label], "slot %s bookkeeping mismatch", s.Label)
		}
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	build := func() ([]*Candidate, []WindowSlots) {
		windows := fourWindows(map[models.PreferenceWindow][]int{
			models.WindowEarlyMorning: {420, 440},
			models.WindowMorning:      {560},
		}, 2)
		base := time.Date(2026, 4, 10, 6, 0, 0, 0, time.UTC)
		var cs []*Candidate
		for i := 0; i < 9; i++ {
			c := individual(memberN(i+1), models.WindowEarlyMorning, windowPtr(models.WindowMorning), base.Add(time.Duration(i%3)*time.Minute))
			c.ID = memberN(100 + i) // fixed ids so the two builds are byte-identical
			cs = append(cs, c)
		}
		return cs, windows
	}

	snaps := Snapshots{
		memberN(4): {Tier: models.SpeedTierFast},
		memberN(7): {Tier: models.SpeedTierSlow, AdminAdjustment: 1},
	}

	c1, w1 := build()
	c2, w2 := build()
	r1 := Allocate(c1, w1, snaps)
	r2 := Allocate(c2, w2, snaps)

	require.Equal(t, len(r1), len(r2))
	for i := range r1 {
		assert.Equal(t, r1[i].Candidate.ID, r2[i].Candidate.ID, "processing order diverged at %d", i)
		assert.Equal(t, r1[i].Assigned, r2[i].Assigned)
		assert.Equal(t, r1[i].Reason, r2[i].Reason)
		if r1[i].Assigned {
			assert.Equal(t, r1[i].Slot.Label, r2[i].Slot.Label)
		}
	}
}
