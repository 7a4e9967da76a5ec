// Package models defines the data structures (models) that map to database tables.
// GORM uses these structs to generate SQL queries and map database rows back to Go values.
// The struct field tags (the backtick strings like `gorm:"..."`) tell GORM how to handle
// each field: its column type, constraints, default values, and relationships.
//
// The data model represents the club's tee-time lottery:
//   - Members submit LotteryEntries (or a leader submits a LotteryGroup) for a date
//   - A TeeSheetConfig describes the bookable day: operating hours, interval, slot capacity
//   - A lottery run turns pending entries into TeeTimeBookings
//   - MemberSpeedProfile and MemberFairnessScore carry the long-running state that
//     drives the priority order of future runs
//
// There is no separate "booking request" concept — a non-cancelled entry for a date
// IS the member's request. This keeps the hierarchy simple: Entry → Run → Booking.
package models

import (
	"time"

	// uuid provides universally unique identifiers for primary keys.
	// Using UUIDs instead of auto-incrementing integers makes IDs safe to generate
	// client-side and avoids leaking record counts to end users.
	"github.com/google/uuid"
)

// --- Enums ---
// Go doesn't have a built-in enum keyword, so we simulate them using a named string type
// plus constants. This gives us type safety — you can't accidentally pass a MemberRole
// where an EntryStatus is expected — while keeping the values human-readable in the database.

// MemberRole represents a member's permission level across the platform.
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"  // Full access: run the lottery, reset adjustments, manage everything
	MemberRoleStaff  MemberRole = "staff"  // Pro-shop staff: run the lottery, edit the tee sheet, view all entries
	MemberRoleMember MemberRole = "member" // Regular member: submit, edit, and cancel their own entries
)

// EntryStatus tracks the lifecycle of a lottery entry or group.
// Entries are never deleted — cancellation is a status change, so the
// submission history stays auditable.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"   // Submitted and waiting for the lottery run
	EntryStatusAssigned  EntryStatus = "assigned"  // The run placed the entry in a slot; a booking exists
	EntryStatusCancelled EntryStatus = "cancelled" // Withdrawn by the member (or leader) before the run
)

// An entry that was processed but could not be placed keeps status "pending"
// with ProcessedAt set and UnassignedReason recorded. The run only ever picks
// up pending entries whose ProcessedAt is NULL, so a processed-but-unplaced
// entry is terminal for run purposes without inventing an extra status.

// PreferenceWindow names one of the four contiguous ranges the day's tee sheet
// is partitioned into. Members state preferences in terms of windows, never
// concrete slots, so the lottery keeps freedom to place them.
type PreferenceWindow string

const (
	WindowEarlyMorning PreferenceWindow = "early_morning"
	WindowMorning      PreferenceWindow = "morning"
	WindowMidday       PreferenceWindow = "midday"
	WindowAfternoon    PreferenceWindow = "afternoon"
)

// Windows returns the four preference windows in tee-sheet order.
// Order matters: the Time-Window Resolver partitions the day in this sequence.
func Windows() []PreferenceWindow {
	return []PreferenceWindow{WindowEarlyMorning, WindowMorning, WindowMidday, WindowAfternoon}
}

// ValidWindow reports whether s names a known preference window.
func ValidWindow(s PreferenceWindow) bool {
	switch s {
	case WindowEarlyMorning, WindowMorning, WindowMidday, WindowAfternoon:
		return true
	}
	return false
}

// SpeedTier classifies a member's pace of play from their rolling average round time.
// Fast players get a scoring bonus for busy early windows because they clear the
// course quickly and reduce backup risk.
type SpeedTier string

const (
	SpeedTierFast    SpeedTier = "fast"    // Average round of 3:55 or quicker
	SpeedTierAverage SpeedTier = "average" // Between 3:55 and 4:05
	SpeedTierSlow    SpeedTier = "slow"    // Slower than 4:05
)

// Speed tier thresholds in minutes. The tier is derived from AvgRoundMinutes
// and never stored independently of it, unless ManualOverride pins it.
const (
	FastThresholdMinutes = 235 // 3h55m
	SlowThresholdMinutes = 245 // 4h05m
)

// TierForMinutes derives the speed tier for an average round length.
// A zero or negative average (no recorded rounds yet) is treated as average pace.
func TierForMinutes(minutes int) SpeedTier {
	switch {
	case minutes <= 0:
		return SpeedTierAverage
	case minutes <= FastThresholdMinutes:
		return SpeedTierFast
	case minutes > SlowThresholdMinutes:
		return SpeedTierSlow
	default:
		return SpeedTierAverage
	}
}

// --- Models ---
// Each struct below maps to a database table. GORM uses the struct name (snake_cased and
// pluralized) as the table name by default: Member -> members, LotteryEntry -> lottery_entries.

// Member represents a registered person in the system.
// Members are created automatically the first time an authenticated user hits the API.
// The ExternalID links our internal record to the identity provider.
type Member struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ExternalID  *string    `gorm:"uniqueIndex:idx_members_external_id"` // Identity-provider user ID; pointer = nullable for legacy rows
	DisplayName string     `gorm:"not null"`
	Email       string     `gorm:"uniqueIndex;not null"`
	MemberClass string     `gorm:"not null;default:'full'"` // Club membership class (full, senior, junior, social); snapshotted onto entries
	Role        MemberRole `gorm:"type:member_role;not null;default:'member'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LotteryEntry is one individual member's request for one lottery date.
//
// Invariant: at most one non-cancelled entry per (member, date) — enforced by a
// partial unique index in the migration plus a check at submission time. A member
// also may not hold an individual entry and appear in a group for the same date.
//
// Lifecycle: created pending; editable/cancellable only while pending and
// unprocessed; a lottery run either assigns it or records why it couldn't.
type LotteryEntry struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MemberID         uuid.UUID         `gorm:"type:uuid;not null;index:idx_entries_member_date"`
	Member           Member            `gorm:"foreignKey:MemberID"`
	LotteryDate      time.Time         `gorm:"type:date;not null;index:idx_entries_member_date"` // The calendar day being drawn for, stored date-only
	Preferred        PreferenceWindow  `gorm:"type:preference_window;not null"`
	Backup           *PreferenceWindow `gorm:"type:preference_window"` // Optional fallback window; nil means preferred-or-nothing
	PreferredAt      *time.Time        // Optional specific time wish inside the window; advisory only
	MemberClass      string            `gorm:"not null"` // Snapshot of Member.MemberClass at submission time
	Status           EntryStatus       `gorm:"type:entry_status;not null;default:'pending'"`
	SubmittedAt      time.Time         `gorm:"not null"` // Drives the deterministic tie-break: earlier submissions win ties
	ProcessedAt      *time.Time        // Set by the run that handled this entry, whether or not it was placed
	UnassignedReason *string           // "NO_CAPACITY" etc. when processed but not placed
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LotteryGroup is a leader-submitted entry on behalf of multiple members who
// share one outcome: the whole group is placed in one slot or not at all.
// Membership is fixed at submission; only the leader edits or cancels.
type LotteryGroup struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	LeaderID         uuid.UUID         `gorm:"type:uuid;not null;index:idx_groups_leader_date"`
	Leader           Member            `gorm:"foreignKey:LeaderID"`
	LotteryDate      time.Time         `gorm:"type:date;not null;index:idx_groups_leader_date"`
	Preferred        PreferenceWindow  `gorm:"type:preference_window;not null"`
	Backup           *PreferenceWindow `gorm:"type:preference_window"`
	Status           EntryStatus       `gorm:"type:entry_status;not null;default:'pending'"`
	SubmittedAt      time.Time         `gorm:"not null"`
	ProcessedAt      *time.Time
	UnassignedReason *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Members          []LotteryGroupMember `gorm:"foreignKey:GroupID"` // Ordered membership, leader included at position 0
}

// LotteryGroupMember is a join table fixing a member's place in a group.
// Position preserves the order the leader listed players in; the leader is position 0.
type LotteryGroupMember struct {
	GroupID  uuid.UUID    `gorm:"type:uuid;primaryKey"`
	MemberID uuid.UUID    `gorm:"type:uuid;primaryKey"`
	Group    LotteryGroup `gorm:"foreignKey:GroupID"`
	Member   Member       `gorm:"foreignKey:MemberID"`
	Position int          `gorm:"not null"`
}

// MemberSpeedProfile is the per-member rolling estimate of pace of play.
// AvgRoundMinutes and Tier are written by the pace-of-play process from completed
// round timings; the lottery only reads them. AdminAdjustment is a manual signed
// override applied on top of the computed score, set by staff and cleared in bulk
// via the reset endpoint. Rows are never deleted.
type MemberSpeedProfile struct {
	MemberID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Member          Member    `gorm:"foreignKey:MemberID"`
	AvgRoundMinutes int       `gorm:"not null;default:0"`
	Tier            SpeedTier `gorm:"type:speed_tier;not null;default:'average'"`
	AdminAdjustment int       `gorm:"not null;default:0"`     // Signed manual priority bump, independent of pace data
	ManualOverride  bool      `gorm:"not null;default:false"` // When true, Tier was pinned by staff and pace data won't move it
	LastCalculated  *time.Time
	UpdatedAt       time.Time
}

// MemberFairnessScore is the per-member, per-month accumulator the lottery uses
// to correct imbalance across runs. Exactly one row per (member, month), created
// lazily the first time a member's entry is processed in a new month.
//
// Score must move monotonically with under-service: denied preferred windows push
// it up, granted preferences pull it back down. That feedback loop, not within-run
// optimality, is what keeps the lottery fair over time.
type MemberFairnessScore struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	MemberID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_fairness_member_month"`
	Member              Member    `gorm:"foreignKey:MemberID"`
	Month               string    `gorm:"type:char(7);not null;uniqueIndex:idx_fairness_member_month"` // "2026-04" year-month key
	EntriesMonth        int       `gorm:"not null;default:0"` // Entries processed for this member this month
	PreferencesGranted  int       `gorm:"not null;default:0"` // How many of those landed in the preferred window
	FulfillmentRate     float64   `gorm:"not null;default:0"` // PreferencesGranted / EntriesMonth
	DaysWithoutGoodTime int       `gorm:"not null;default:0"` // Consecutive runs without a preferred-window placement
	Score               int       `gorm:"not null;default:0"` // Derived priority boost; higher = served sooner next run
	UpdatedAt           time.Time
}

// TeeSheetConfig describes the bookable day: when the tee sheet opens and closes,
// how far apart start times are, and how many players each start time holds.
// One row per date; staff edit it ahead of the lottery run. Configurations vary
// by day type (weekend hours differ from midweek), so nothing here is hardcoded.
type TeeSheetConfig struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SheetDate    time.Time `gorm:"type:date;not null;uniqueIndex"`
	StartTime    string    `gorm:"type:char(5);not null"` // "07:00" first tee time of the day
	EndTime      string    `gorm:"type:char(5);not null"` // "17:00" exclusive upper bound
	IntervalMins int       `gorm:"not null"`              // Minutes between consecutive start times
	SlotCapacity int       `gorm:"not null;default:4"`    // Max players per start time (a standard fourball is 4)
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TeeTimeBooking is the durable output of a lottery run: one row per placed
// entry or group, recording who plays, when, and which submission produced it.
// Exactly one of EntryID / GroupID is set.
type TeeTimeBooking struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BookingDate time.Time        `gorm:"type:date;not null;index"`
	SlotTime    string           `gorm:"type:char(5);not null"`           // "HH:MM" start time of the assigned slot
	Window      PreferenceWindow `gorm:"type:preference_window;not null"` // Which window the slot fell in at allocation time
	EntryID     *uuid.UUID       `gorm:"type:uuid;uniqueIndex"`           // Provenance: the individual entry this booking fulfils
	GroupID     *uuid.UUID       `gorm:"type:uuid;uniqueIndex"`           // Provenance: the group this booking fulfils
	PartySize   int              `gorm:"not null"`
	CreatedAt   time.Time
	Players     []TeeTimeBookingPlayer `gorm:"foreignKey:BookingID"`
}

// TeeTimeBookingPlayer lists the members covered by one booking, in tee-off order.
type TeeTimeBookingPlayer struct {
	BookingID uuid.UUID `gorm:"type:uuid;primaryKey"`
	MemberID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Member    Member    `gorm:"foreignKey:MemberID"`
	Position  int       `gorm:"not null"`
}
