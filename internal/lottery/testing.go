// testing.go — in-memory Store used by the engine tests (and handy for local
// experimentation). It mirrors the transactional semantics of the Postgres
// store: mutations inside WithRunLock land on a copy of the state and are
// swapped in only if fn succeeds, so a mid-run failure leaves the store
// exactly as it was — the same all-or-nothing guarantee the real transaction
// provides.
package lottery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairwaygreens/club-api/internal/models"
)

// MemoryStore implements Store entirely in memory.
type MemoryStore struct {
	mu     sync.Mutex
	held   map[int64]bool // Advisory locks currently held, keyed like the real ones
	state  memoryState
	FailOn string // Name of an operation ("create_booking", "save_fairness") forced to error, for rollback tests
}

type memoryState struct {
	Configs  map[string]models.TeeSheetConfig // keyed by "2006-01-02"
	Entries  []models.LotteryEntry
	Groups   []models.LotteryGroup
	Profiles map[uuid.UUID]models.MemberSpeedProfile
	Fairness map[string]models.MemberFairnessScore // keyed by memberID|month
	Bookings []models.TeeTimeBooking
}

// NewMemoryStore returns an empty store ready to be seeded.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		held: make(map[int64]bool),
		state: memoryState{
			Configs:  make(map[string]models.TeeSheetConfig),
			Profiles: make(map[uuid.UUID]models.MemberSpeedProfile),
			Fairness: make(map[string]models.MemberFairnessScore),
		},
	}
}

func fairnessKey(memberID uuid.UUID, month string) string {
	return memberID.String() + "|" + month
}

// --- Seeding helpers ---

// SetConfig installs the tee-sheet configuration for a date.
func (s *MemoryStore) SetConfig(date time.Time, cfg models.TeeSheetConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.SheetDate = dateOnly(date)
	s.state.Configs[dateOnly(date).Format("2006-01-02")] = cfg
}

// AddEntry stores an individual entry.
func (s *MemoryStore) AddEntry(e models.LotteryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Entries = append(s.state.Entries, e)
}

// AddGroup stores a group with its membership.
func (s *MemoryStore) AddGroup(g models.LotteryGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Groups = append(s.state.Groups, g)
}

// SetProfile stores a speed profile.
func (s *MemoryStore) SetProfile(p models.MemberSpeedProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Profiles[p.MemberID] = p
}

// SetFairness stores a monthly fairness row.
func (s *MemoryStore) SetFairness(f models.MemberFairnessScore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	s.state.Fairness[fairnessKey(f.MemberID, f.Month)] = f
}

// --- Inspection helpers ---

// BookingsFor returns the bookings created for a date, in creation order.
func (s *MemoryStore) BookingsFor(date time.Time) []models.TeeTimeBooking {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := dateOnly(date)
	var out []models.TeeTimeBooking
	for _, b := range s.state.Bookings {
		if b.BookingDate.Equal(d) {
			out = append(out, b)
		}
	}
	return out
}

// FairnessFor returns a member's fairness row for a month, if any.
func (s *MemoryStore) FairnessFor(memberID uuid.UUID, month string) (models.MemberFairnessScore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.state.Fairness[fairnessKey(memberID, month)]
	return f, ok
}

// EntryByID returns a stored entry by primary key.
func (s *MemoryStore) EntryByID(id uuid.UUID) (models.LotteryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.state.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return models.LotteryEntry{}, false
}

// GroupByID returns a stored group by primary key.
func (s *MemoryStore) GroupByID(id uuid.UUID) (models.LotteryGroup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.state.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return models.LotteryGroup{}, false
}

// HoldLock takes the per-date lock out-of-band, simulating an in-flight run.
// The returned release function gives it back.
func (s *MemoryStore) HoldLock(date time.Time) (release func()) {
	key := lockKey(dateOnly(date))
	s.mu.Lock()
	s.held[key] = true
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.held, key)
		s.mu.Unlock()
	}
}

// --- Store implementation ---

// WithRunLock mimics the Postgres advisory-lock transaction: fail fast if the
// date is locked, run fn against a scratch copy, commit by swapping the copy in.
func (s *MemoryStore) WithRunLock(_ context.Context, date time.Time, fn func(RunStore) error) error {
	key := lockKey(dateOnly(date))

	s.mu.Lock()
	if s.held[key] {
		s.mu.Unlock()
		return ErrConcurrentRun
	}
	s.held[key] = true
	scratch := s.state.clone()
	s.mu.Unlock()

	err := fn(&memoryRunStore{state: &scratch, failOn: s.FailOn})

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, key)
	if err != nil {
		return err // scratch copy discarded — rollback
	}
	s.state = scratch
	return nil
}

// ResetAdminAdjustments zeroes every profile's manual override.
func (s *MemoryStore) ResetAdminAdjustments(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, p := range s.state.Profiles {
		if p.AdminAdjustment != 0 {
			p.AdminAdjustment = 0
			s.state.Profiles[id] = p
			count++
		}
	}
	return count, nil
}

func (st memoryState) clone() memoryState {
	out := memoryState{
		Configs:  make(map[string]models.TeeSheetConfig, len(st.Configs)),
		Entries:  append([]models.LotteryEntry(nil), st.Entries...),
		Groups:   make([]models.LotteryGroup, len(st.Groups)),
		Profiles: make(map[uuid.UUID]models.MemberSpeedProfile, len(st.Profiles)),
		Fairness: make(map[string]models.MemberFairnessScore, len(st.Fairness)),
		Bookings: append([]models.TeeTimeBooking(nil), st.Bookings...),
	}
	for k, v := range st.Configs {
		out.Configs[k] = v
	}
	for i, g := range st.Groups {
		g.Members = append([]models.LotteryGroupMember(nil), g.Members...)
		out.Groups[i] = g
	}
	for k, v := range st.Profiles {
		out.Profiles[k] = v
	}
	for k, v := range st.Fairness {
		out.Fairness[k] = v
	}
	return out
}

// memoryRunStore mutates the scratch copy of the state.
type memoryRunStore struct {
	state  *memoryState
	failOn string
}

func (r *memoryRunStore) LoadSnapshot(date time.Time) (*RunSnapshot, error) {
	d := dateOnly(date)
	cfgRow, ok := r.state.Configs[d.Format("2006-01-02")]
	if !ok {
		return nil, fmt.Errorf("%w: no tee sheet configured for %s", ErrBadConfiguration, d.Format("2006-01-02"))
	}
	cfg, err := ParseSheetConfig(cfgRow)
	if err != nil {
		return nil, err
	}

	snap := &RunSnapshot{
		Config:   cfg,
		Members:  make(Snapshots),
		Fairness: make(map[uuid.UUID]models.MemberFairnessScore),
	}

	memberSet := make(map[uuid.UUID]struct{})
	for _, e := range r.state.Entries {
		if e.LotteryDate.Equal(d) && e.Status == models.EntryStatusPending && e.ProcessedAt == nil {
			snap.Entries = append(snap.Entries, e)
			memberSet[e.MemberID] = struct{}{}
		}
	}
	for _, g := range r.state.Groups {
		if g.LotteryDate.Equal(d) && g.Status == models.EntryStatusPending && g.ProcessedAt == nil {
			snap.Groups = append(snap.Groups, g)
			memberSet[g.LeaderID] = struct{}{}
			for _, m := range g.Members {
				memberSet[m.MemberID] = struct{}{}
			}
		}
	}

	month := MonthKey(d)
	for id := range memberSet {
		if f, ok := r.state.Fairness[fairnessKey(id, month)]; ok {
			snap.Fairness[id] = f
		}
		ms := MemberSnapshot{Tier: models.SpeedTierAverage, Fairness: snap.Fairness[id].Score}
		if p, ok := r.state.Profiles[id]; ok {
			ms.Tier = p.Tier
			ms.AdminAdjustment = p.AdminAdjustment
		}
		snap.Members[id] = ms
	}
	return snap, nil
}

func (r *memoryRunStore) CreateBooking(booking *models.TeeTimeBooking) error {
	if r.failOn == "create_booking" {
		return errors.New("injected booking failure")
	}
	b := *booking
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	r.state.Bookings = append(r.state.Bookings, b)
	return nil
}

func (r *memoryRunStore) FinalizeEntry(id uuid.UUID, assigned bool, reason *string, processedAt time.Time) error {
	for i := range r.state.Entries {
		if r.state.Entries[i].ID == id {
			r.state.Entries[i].ProcessedAt = &processedAt
			r.state.Entries[i].UnassignedReason = reason
			if assigned {
				r.state.Entries[i].Status = models.EntryStatusAssigned
			}
			return nil
		}
	}
	return fmt.Errorf("entry %s not found", id)
}

func (r *memoryRunStore) FinalizeGroup(id uuid.UUID, assigned bool, reason *string, processedAt time.Time) error {
	for i := range r.state.Groups {
		if r.state.Groups[i].ID == id {
			r.state.Groups[i].ProcessedAt = &processedAt
			r.state.Groups[i].UnassignedReason = reason
			if assigned {
				r.state.Groups[i].Status = models.EntryStatusAssigned
			}
			return nil
		}
	}
	return fmt.Errorf("group %s not found", id)
}

func (r *memoryRunStore) SaveFairness(rows []*models.MemberFairnessScore) error {
	if r.failOn == "save_fairness" {
		return errors.New("injected fairness failure")
	}
	for _, row := range rows {
		saved := *row
		if saved.ID == uuid.Nil {
			saved.ID = uuid.New()
		}
		r.state.Fairness[fairnessKey(saved.MemberID, saved.Month)] = saved
	}
	return nil
}
