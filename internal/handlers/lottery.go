// lottery.go — the admin lottery routes: triggering a run for a date,
// resetting accumulated manual priority adjustments, and reading back the
// bookings a run produced.
//
// The run endpoint is the only place the allocation engine is invoked. Error
// mapping follows the engine's taxonomy: a bad tee-sheet configuration is the
// caller's problem (422), a concurrent run is a conflict (409), and a
// rolled-back run failure is ours (500). Partial success is never reported —
// the engine guarantees the run either committed whole or not at all.
package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/fairwaygreens/club-api/internal/lottery"
	"github.com/fairwaygreens/club-api/internal/models"
	"github.com/fairwaygreens/club-api/internal/websocket"
)

// RunLotteryRequest is the JSON body for POST /api/v1/admin/lottery/run.
type RunLotteryRequest struct {
	Date string `json:"date"` // Required: "YYYY-MM-DD"
}

// BookingResponse is the JSON shape for one booking on the results view.
type BookingResponse struct {
	ID        string   `json:"id"`
	SlotTime  string   `json:"slot_time"`
	Window    string   `json:"window"`
	PartySize int      `json:"party_size"`
	EntryID   *string  `json:"entry_id"`
	GroupID   *string  `json:"group_id"`
	MemberIDs []string `json:"member_ids"`
}

// RunLottery returns the handler for POST /api/v1/admin/lottery/run.
// Requires admin or staff (enforced by RequireRole on the route). On success
// the run summary is also pushed to every websocket client watching the date.
func RunLottery(proc *lottery.Processor, hub *websocket.Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req RunLotteryRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		date, err := parseDate(req.Date)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be in YYYY-MM-DD format"})
		}

		summary, err := proc.ProcessDate(c.Context(), date)
		if err != nil {
			switch {
			case errors.Is(err, lottery.ErrBadConfiguration):
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
			case errors.Is(err, lottery.ErrConcurrentRun):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
			default:
				// A *RunFailedError (or anything unexpected): the run was rolled
				// back, so the client sees a clean failure, never partial results.
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
			}
		}

		if payload, err := json.Marshal(summary); err == nil {
			hub.BroadcastToDate(req.Date, payload)
		}

		return c.JSON(summary)
	}
}

// ResetAdjustments returns the handler for POST /api/v1/admin/lottery/reset-adjustments.
// Admin only: zeroes every member's manual priority adjustment in one action,
// the operational correction for months of accumulated hand-tuning.
func ResetAdjustments(proc *lottery.Processor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		count, err := proc.ResetAdminAdjustments(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to reset adjustments"})
		}
		return c.JSON(fiber.Map{"updated_count": count})
	}
}

// GetResults returns the handler for GET /api/v1/admin/lottery/results/:date.
// Staff and admins read back the bookings a run created, ordered by tee time;
// this feeds the tee-sheet screen in the pro shop.
func GetResults(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		date, err := parseDate(c.Params("date"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be in YYYY-MM-DD format"})
		}

		var bookings []models.TeeTimeBooking
		if err := db.Preload("Players").
			Where("booking_date = ?", date).
			Order("slot_time ASC").
			Find(&bookings).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch bookings"})
		}

		response := make([]BookingResponse, 0, len(bookings))
		for _, b := range bookings {
			resp := BookingResponse{
				ID:        b.ID.String(),
				SlotTime:  b.SlotTime,
				Window:    string(b.Window),
				PartySize: b.PartySize,
			}
			if b.EntryID != nil {
				s := b.EntryID.String()
				resp.EntryID = &s
			}
			if b.GroupID != nil {
				s := b.GroupID.String()
				resp.GroupID = &s
			}
			for _, p := range b.Players {
				resp.MemberIDs = append(resp.MemberIDs, p.MemberID.String())
			}
			response = append(response, resp)
		}
		return c.JSON(response)
	}
}
