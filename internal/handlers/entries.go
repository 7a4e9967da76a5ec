// entries.go — the /api/v1/lottery/entries routes: submitting, listing,
// editing, and cancelling individual lottery entries.
//
// An "entry" is one member's request to play on one date, stated as a
// preferred window plus an optional backup. Two invariants are enforced at
// submission time (and backed by database constraints):
//
//  1. At most one non-cancelled entry per (member, date).
//  2. A member may not hold an individual entry and also appear in a group
//     for the same date — one submission, one outcome.
//
// Each exported function follows the handler factory pattern: it takes a
// *gorm.DB and returns a fiber.Handler, so the database is injected without
// global variables.
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairwaygreens/club-api/internal/models"
)

// EntryResponse is what we send back to clients. A dedicated response struct
// (instead of the raw GORM model) controls exactly which fields are serialized.
type EntryResponse struct {
	ID               string  `json:"id"`
	MemberID         string  `json:"member_id"`
	LotteryDate      string  `json:"lottery_date"` // "YYYY-MM-DD"
	Preferred        string  `json:"preferred"`
	Backup           *string `json:"backup"`
	PreferredTime    *string `json:"preferred_time"` // "HH:MM" or null
	Status           string  `json:"status"`
	UnassignedReason *string `json:"unassigned_reason"`
	SubmittedAt      string  `json:"submitted_at"` // RFC 3339
}

// SubmitEntryRequest is the JSON body for POST /api/v1/lottery/entries.
type SubmitEntryRequest struct {
	Date          string  `json:"date"`           // Required: "YYYY-MM-DD"
	Preferred     string  `json:"preferred"`      // Required: window name
	Backup        *string `json:"backup"`         // Optional fallback window
	PreferredTime *string `json:"preferred_time"` // Optional "HH:MM" wish inside the window
}

// UpdateEntryRequest is the JSON body for PATCH /api/v1/lottery/entries/:id.
// Only preference fields are editable; the date and member are fixed at submission.
type UpdateEntryRequest struct {
	Preferred     *string `json:"preferred"`
	Backup        *string `json:"backup"`
	PreferredTime *string `json:"preferred_time"`
}

func entryResponse(e models.LotteryEntry) EntryResponse {
	resp := EntryResponse{
		ID:               e.ID.String(),
		MemberID:         e.MemberID.String(),
		LotteryDate:      e.LotteryDate.UTC().Format("2006-01-02"),
		Preferred:        string(e.Preferred),
		Status:           string(e.Status),
		UnassignedReason: e.UnassignedReason,
		SubmittedAt:      e.SubmittedAt.UTC().Format(time.RFC3339),
	}
	if e.Backup != nil {
		b := string(*e.Backup)
		resp.Backup = &b
	}
	if e.PreferredAt != nil {
		t := e.PreferredAt.UTC().Format("15:04")
		resp.PreferredTime = &t
	}
	return resp
}

// parseDate parses a required "YYYY-MM-DD" string into a midnight-UTC time.
func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// requestMember reads the authenticated member's UUID from the request context
// (set by the Auth middleware).
func requestMember(c *fiber.Ctx) (uuid.UUID, error) {
	idStr, _ := c.Locals("memberID").(string)
	return uuid.Parse(idStr)
}

// hasConflictingSubmission reports whether the member already has a live
// individual entry or group seat for the date. Used by both entry and group
// submission to enforce the one-submission-per-date invariant.
func hasConflictingSubmission(db *gorm.DB, memberID uuid.UUID, date time.Time) (bool, error) {
	var entryCount int64
	if err := db.Model(&models.LotteryEntry{}).
		Where("member_id = ? AND lottery_date = ? AND status <> ?", memberID, date, models.EntryStatusCancelled).
		Count(&entryCount).Error; err != nil {
		return false, err
	}
	if entryCount > 0 {
		return true, nil
	}

	var groupCount int64
	if err := db.Model(&models.LotteryGroupMember{}).
		Joins("JOIN lottery_groups ON lottery_groups.id = lottery_group_members.group_id").
		Where("lottery_group_members.member_id = ? AND lottery_groups.lottery_date = ? AND lottery_groups.status <> ?",
			memberID, date, models.EntryStatusCancelled).
		Count(&groupCount).Error; err != nil {
		return false, err
	}
	return groupCount > 0, nil
}

// SubmitEntry returns the handler for POST /api/v1/lottery/entries.
// Any authenticated member can submit for themselves.
func SubmitEntry(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		memberID, err := requestMember(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid member ID"})
		}

		var req SubmitEntryRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		date, err := parseDate(req.Date)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be in YYYY-MM-DD format"})
		}

		preferred := models.PreferenceWindow(req.Preferred)
		if !models.ValidWindow(preferred) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "preferred must be one of early_morning, morning, midday, afternoon",
			})
		}

		var backup *models.PreferenceWindow
		if req.Backup != nil && *req.Backup != "" {
			b := models.PreferenceWindow(*req.Backup)
			if !models.ValidWindow(b) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "backup is not a valid window"})
			}
			if b == preferred {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "backup must differ from preferred"})
			}
			backup = &b
		}

		var preferredAt *time.Time
		if req.PreferredTime != nil && *req.PreferredTime != "" {
			clock, err := time.Parse("15:04", *req.PreferredTime)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "preferred_time must be in HH:MM format"})
			}
			t := time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)
			preferredAt = &t
		}

		conflict, err := hasConflictingSubmission(db, memberID, date)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
		}
		if conflict {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "you already have an entry or group submission for this date",
			})
		}

		// Snapshot the member class at submission time: class changes later in
		// the season must not retroactively change how this entry is treated.
		var member models.Member
		if err := db.First(&member, "id = ?", memberID).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
		}

		entry := models.LotteryEntry{
			MemberID:    memberID,
			LotteryDate: date,
			Preferred:   preferred,
			Backup:      backup,
			PreferredAt: preferredAt,
			MemberClass: member.MemberClass,
			Status:      models.EntryStatusPending,
			SubmittedAt: time.Now().UTC(),
		}
		if err := db.Create(&entry).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create entry"})
		}

		return c.Status(fiber.StatusCreated).JSON(entryResponse(entry))
	}
}

// GetEntries returns the handler for GET /api/v1/lottery/entries.
//   - Members see only their own entries.
//   - Staff and admins see everyone's (the pro-shop view).
//   - Optional filter: ?date=YYYY-MM-DD
func GetEntries(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		memberID, err := requestMember(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid member ID"})
		}
		memberRole, _ := c.Locals("memberRole").(string)

		query := db.Model(&models.LotteryEntry{}).Order("submitted_at ASC")

		if dateFilter := c.Query("date"); dateFilter != "" {
			date, err := parseDate(dateFilter)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be in YYYY-MM-DD format"})
			}
			query = query.Where("lottery_date = ?", date)
		}

		if memberRole != string(models.MemberRoleAdmin) && memberRole != string(models.MemberRoleStaff) {
			query = query.Where("member_id = ?", memberID)
		}

		var entries []models.LotteryEntry
		if err := query.Find(&entries).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch entries"})
		}

		response := make([]EntryResponse, 0, len(entries))
		for _, e := range entries {
			response = append(response, entryResponse(e))
		}
		return c.JSON(response)
	}
}

// editableEntry loads an entry and checks it belongs to the caller and is
// still editable (pending and untouched by any run). Writes the error
// response itself and returns ok=false when the caller should bail out.
func editableEntry(c *fiber.Ctx, db *gorm.DB) (models.LotteryEntry, bool) {
	var entry models.LotteryEntry

	memberID, err := requestMember(c)
	if err != nil {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid member ID"})
		return entry, false
	}

	entryID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid entry ID"})
		return entry, false
	}

	if err := db.First(&entry, "id = ?", entryID).Error; err != nil {
		_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "entry not found"})
		return entry, false
	}
	if entry.MemberID != memberID {
		_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your entry"})
		return entry, false
	}
	if entry.Status != models.EntryStatusPending || entry.ProcessedAt != nil {
		_ = c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "entry has already been processed or cancelled",
		})
		return entry, false
	}
	return entry, true
}

// UpdateEntry returns the handler for PATCH /api/v1/lottery/entries/:id.
// Only the owner may edit, and only while the entry is still pending.
func UpdateEntry(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entry, ok := editableEntry(c, db)
		if !ok {
			return nil
		}

		var req UpdateEntryRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		if req.Preferred != nil {
			p := models.PreferenceWindow(*req.Preferred)
			if !models.ValidWindow(p) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "preferred is not a valid window"})
			}
			entry.Preferred = p
		}
		if req.Backup != nil {
			if *req.Backup == "" {
				entry.Backup = nil
			} else {
				b := models.PreferenceWindow(*req.Backup)
				if !models.ValidWindow(b) {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "backup is not a valid window"})
				}
				entry.Backup = &b
			}
		}
		if entry.Backup != nil && *entry.Backup == entry.Preferred {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "backup must differ from preferred"})
		}
		if req.PreferredTime != nil {
			if *req.PreferredTime == "" {
				entry.PreferredAt = nil
			} else {
				clock, err := time.Parse("15:04", *req.PreferredTime)
				if err != nil {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "preferred_time must be in HH:MM format"})
				}
				d := entry.LotteryDate
				t := time.Date(d.Year(), d.Month(), d.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)
				entry.PreferredAt = &t
			}
		}

		if err := db.Save(&entry).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update entry"})
		}
		return c.JSON(entryResponse(entry))
	}
}

// CancelEntry returns the handler for DELETE /api/v1/lottery/entries/:id.
// Cancelling is a status change, never a row delete — history stays auditable.
func CancelEntry(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entry, ok := editableEntry(c, db)
		if !ok {
			return nil
		}

		if err := db.Model(&entry).Update("status", models.EntryStatusCancelled).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to cancel entry"})
		}
		entry.Status = models.EntryStatusCancelled
		return c.JSON(entryResponse(entry))
	}
}
