// teesheet.go — staff management of the daily tee-sheet configuration that a
// lottery run resolves into time windows. The upsert validates the same way
// the engine does, so a config that saves here will never fail window
// resolution later.
package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fairwaygreens/club-api/internal/lottery"
	"github.com/fairwaygreens/club-api/internal/models"
)

// quietValidationLogger discards the empty-window warnings ResolveWindows
// emits; for validation only the hard errors matter.
var quietValidationLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// TeeSheetRequest is the JSON body for PUT /api/v1/admin/tee-sheet/:date.
type TeeSheetRequest struct {
	StartTime    string `json:"start_time"`    // Required: "HH:MM"
	EndTime      string `json:"end_time"`      // Required: "HH:MM", exclusive
	IntervalMins int    `json:"interval_mins"` // Required: minutes between start times
	SlotCapacity int    `json:"slot_capacity"` // Optional: defaults to 4
}

// TeeSheetResponse is the JSON shape for a tee-sheet config.
type TeeSheetResponse struct {
	ID           string `json:"id"`
	SheetDate    string `json:"sheet_date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	IntervalMins int    `json:"interval_mins"`
	SlotCapacity int    `json:"slot_capacity"`
}

func teeSheetResponse(cfg models.TeeSheetConfig) TeeSheetResponse {
	return TeeSheetResponse{
		ID:           cfg.ID.String(),
		SheetDate:    cfg.SheetDate.Format("2006-01-02"),
		StartTime:    cfg.StartTime,
		EndTime:      cfg.EndTime,
		IntervalMins: cfg.IntervalMins,
		SlotCapacity: cfg.SlotCapacity,
	}
}

// UpsertTeeSheet returns the handler for PUT /api/v1/admin/tee-sheet/:date.
// Creates or replaces the configuration for the given date. Editing the
// config after a run has already produced bookings is allowed but has no
// effect on them; runs are whole-or-nothing and never re-process.
func UpsertTeeSheet(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		date, err := parseDate(c.Params("date"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid date, expected YYYY-MM-DD",
			})
		}

		var req TeeSheetRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
		if req.SlotCapacity == 0 {
			req.SlotCapacity = 4
		}

		cfg := models.TeeSheetConfig{
			SheetDate:    date,
			StartTime:    req.StartTime,
			EndTime:      req.EndTime,
			IntervalMins: req.IntervalMins,
			SlotCapacity: req.SlotCapacity,
		}

		// Run the engine's own validation up front so a saved config is
		// guaranteed to resolve into windows at run time.
		sheet, err := lottery.ParseSheetConfig(cfg)
		if err == nil {
			_, err = lottery.ResolveWindows(sheet, quietValidationLogger)
		}
		if err != nil {
			if errors.Is(err, lottery.ErrBadConfiguration) {
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
					"error": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to validate tee-sheet configuration",
			})
		}

		// One config per date: insert, or update the row already there.
		err = db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "sheet_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"start_time", "end_time", "interval_mins", "slot_capacity", "updated_at",
			}),
		}).Create(&cfg).Error
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to save tee-sheet configuration",
			})
		}

		// Re-read so the response carries the persisted row's ID either way.
		var saved models.TeeSheetConfig
		if err := db.Where("sheet_date = ?", date).First(&saved).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to load saved configuration",
			})
		}
		return c.JSON(teeSheetResponse(saved))
	}
}

// GetTeeSheet returns the handler for GET /api/v1/admin/tee-sheet/:date.
func GetTeeSheet(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		date, err := parseDate(c.Params("date"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid date, expected YYYY-MM-DD",
			})
		}

		var cfg models.TeeSheetConfig
		if err := db.Where("sheet_date = ?", date).First(&cfg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "No tee-sheet configuration for this date",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to load tee-sheet configuration",
			})
		}
		return c.JSON(teeSheetResponse(cfg))
	}
}
