// store.go — persistence boundary for the lottery run.
// The engine's algorithms (windows, scoring, allocation, fairness math) are
// pure; everything that touches the database goes through the Store interface
// so the processor can be exercised against an in-memory double in tests.
// The production implementation wraps GORM and scopes each run in a single
// Postgres transaction guarded by a per-date advisory lock.
package lottery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairwaygreens/club-api/internal/models"
)

// RunSnapshot is everything a run reads, captured once at run start inside the
// transaction. Members holds the immutable scoring view; Fairness holds the
// current-month accumulator rows (absent members get lazily created rows when
// the updater runs). Nothing in the snapshot is re-read mid-allocation.
type RunSnapshot struct {
	Config   SheetConfig
	Entries  []models.LotteryEntry
	Groups   []models.LotteryGroup
	Members  Snapshots
	Fairness map[uuid.UUID]models.MemberFairnessScore
}

// RunStore is the mutation surface available inside a locked run. Every call
// happens in the same transaction, so a failure anywhere rolls back the lot:
// bookings, entry finalization, and fairness updates land together or not at all.
type RunStore interface {
	LoadSnapshot(date time.Time) (*RunSnapshot, error)
	CreateBooking(booking *models.TeeTimeBooking) error
	FinalizeEntry(id uuid.UUID, assigned bool, reason *string, processedAt time.Time) error
	FinalizeGroup(id uuid.UUID, assigned bool, reason *string, processedAt time.Time) error
	SaveFairness(rows []*models.MemberFairnessScore) error
}

// Store is what the processor needs from persistence: a locked transactional
// scope per date, plus the bulk adjustment reset exposed to admins.
type Store interface {
	// WithRunLock opens a transaction, takes the per-date advisory lock, and
	// runs fn. If another run already holds the lock it returns
	// ErrConcurrentRun without invoking fn. Any error from fn rolls the
	// transaction back and is returned unchanged.
	WithRunLock(ctx context.Context, date time.Time, fn func(RunStore) error) error

	// ResetAdminAdjustments zeroes every profile's manual priority adjustment
	// and reports how many rows changed.
	ResetAdminAdjustments(ctx context.Context) (int64, error)
}

// GormStore is the production Store backed by Postgres via GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a connected GORM handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// lockNamespace distinguishes lottery-run advisory locks from any other
// advisory lock the application might take on the same database.
const lockNamespace int64 = 0x4C6F7479 // "Loty"

// lockKey derives the 64-bit advisory lock key for a date: the namespace in
// the high half, the day number since the Unix epoch in the low half.
func lockKey(date time.Time) int64 {
	days := date.Unix() / 86400
	return lockNamespace<<32 | (days & 0xFFFFFFFF)
}

// WithRunLock implements the per-date mutual-exclusion scope with
// pg_try_advisory_xact_lock: the lock is tied to the transaction, so it is
// released automatically on commit or rollback — no cleanup path to forget.
func (s *GormStore) WithRunLock(ctx context.Context, date time.Time, fn func(RunStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked bool
		if err := tx.Raw("SELECT pg_try_advisory_xact_lock(?)", lockKey(date)).Scan(&locked).Error; err != nil {
			return fmt.Errorf("acquiring run lock: %w", err)
		}
		if !locked {
			return ErrConcurrentRun
		}
		return fn(&gormRunStore{tx: tx})
	})
}

// ResetAdminAdjustments zeroes the manual override column in bulk. Rows
// already at zero are skipped so the reported count reflects real corrections.
func (s *GormStore) ResetAdminAdjustments(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.MemberSpeedProfile{}).
		Where("admin_adjustment <> 0").
		Update("admin_adjustment", 0)
	if res.Error != nil {
		return 0, fmt.Errorf("resetting admin adjustments: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// gormRunStore is the in-transaction view handed to the processor.
type gormRunStore struct {
	tx *gorm.DB
}

func (r *gormRunStore) LoadSnapshot(date time.Time) (*RunSnapshot, error) {
	var cfgRow models.TeeSheetConfig
	if err := r.tx.Where("sheet_date = ?", date).First(&cfgRow).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no tee sheet configured for %s", ErrBadConfiguration, date.Format("2006-01-02"))
		}
		return nil, fmt.Errorf("loading tee sheet config: %w", err)
	}
	cfg, err := ParseSheetConfig(cfgRow)
	if err != nil {
		return nil, err
	}

	// Only pending, not-yet-processed submissions enter the run. Entries that
	// a previous run already settled — assigned, cancelled, or processed but
	// unplaced — are excluded entirely, which is what makes re-running a date
	// a no-op rather than a double-booking.
	var entries []models.LotteryEntry
	if err := r.tx.
		Where("lottery_date = ? AND status = ? AND processed_at IS NULL", date, models.EntryStatusPending).
		Order("submitted_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}

	var groups []models.LotteryGroup
	if err := r.tx.Preload("Members").
		Where("lottery_date = ? AND status = ? AND processed_at IS NULL", date, models.EntryStatusPending).
		Order("submitted_at ASC").
		Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("loading groups: %w", err)
	}

	// Collect every member touching the run so profiles and fairness rows can
	// be fetched in two queries instead of one per member.
	memberSet := make(map[uuid.UUID]struct{})
	for _, e := range entries {
		memberSet[e.MemberID] = struct{}{}
	}
	for _, g := range groups {
		memberSet[g.LeaderID] = struct{}{}
		for _, m := range g.Members {
			memberSet[m.MemberID] = struct{}{}
		}
	}
	memberIDs := make([]uuid.UUID, 0, len(memberSet))
	for id := range memberSet {
		memberIDs = append(memberIDs, id)
	}

	snaps := make(Snapshots, len(memberIDs))
	fairness := make(map[uuid.UUID]models.MemberFairnessScore, len(memberIDs))

	if len(memberIDs) > 0 {
		var profiles []models.MemberSpeedProfile
		if err := r.tx.Where("member_id IN ?", memberIDs).Find(&profiles).Error; err != nil {
			return nil, fmt.Errorf("loading speed profiles: %w", err)
		}
		var scores []models.MemberFairnessScore
		if err := r.tx.Where("member_id IN ? AND month = ?", memberIDs, MonthKey(date)).Find(&scores).Error; err != nil {
			return nil, fmt.Errorf("loading fairness scores: %w", err)
		}

		for _, f := range scores {
			fairness[f.MemberID] = f
		}
		for _, p := range profiles {
			snaps[p.MemberID] = MemberSnapshot{
				Tier:            p.Tier,
				AdminAdjustment: p.AdminAdjustment,
				Fairness:        fairness[p.MemberID].Score,
			}
		}
		// Members with fairness history but no speed profile still carry their
		// fairness into scoring; the zero snapshot covers everything else.
		for id, f := range fairness {
			if _, ok := snaps[id]; !ok {
				snaps[id] = MemberSnapshot{Tier: models.SpeedTierAverage, Fairness: f.Score}
			}
		}
	}

	return &RunSnapshot{
		Config:   cfg,
		Entries:  entries,
		Groups:   groups,
		Members:  snaps,
		Fairness: fairness,
	}, nil
}

func (r *gormRunStore) CreateBooking(booking *models.TeeTimeBooking) error {
	if err := r.tx.Create(booking).Error; err != nil {
		return fmt.Errorf("creating booking: %w", err)
	}
	return nil
}

func (r *gormRunStore) FinalizeEntry(id uuid.UUID, assigned bool, reason *string, processedAt time.Time) error {
	updates := map[string]interface{}{
		"processed_at":      processedAt,
		"unassigned_reason": reason,
	}
	if assigned {
		updates["status"] = models.EntryStatusAssigned
	}
	if err := r.tx.Model(&models.LotteryEntry{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("finalizing entry %s: %w", id, err)
	}
	return nil
}

func (r *gormRunStore) FinalizeGroup(id uuid.UUID, assigned bool, reason *string, processedAt time.Time) error {
	updates := map[string]interface{}{
		"processed_at":      processedAt,
		"unassigned_reason": reason,
	}
	if assigned {
		updates["status"] = models.EntryStatusAssigned
	}
	if err := r.tx.Model(&models.LotteryGroup{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("finalizing group %s: %w", id, err)
	}
	return nil
}

func (r *gormRunStore) SaveFairness(rows []*models.MemberFairnessScore) error {
	// Deterministic write order keeps runs reproducible down to the SQL they
	// emit and avoids deadlock-prone interleavings if anything else ever
	// touches these rows.
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].MemberID.String() < rows[j].MemberID.String()
	})
	for _, row := range rows {
		if row.ID == uuid.Nil {
			// Lazily created this run — first processed entry of the month.
			if err := r.tx.Create(row).Error; err != nil {
				return fmt.Errorf("creating fairness row for %s: %w", row.MemberID, err)
			}
			continue
		}
		if err := r.tx.Save(row).Error; err != nil {
			return fmt.Errorf("saving fairness row for %s: %w", row.MemberID, err)
		}
	}
	return nil
}
