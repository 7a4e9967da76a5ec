// groups.go — the /api/v1/lottery/groups routes.
//
// A group is a leader-submitted entry for several members who want to play
// together and share one outcome: the whole party lands in one slot or nobody
// does. Membership is fixed at submission — only the leader can cancel, and
// nobody can be edited in or out afterwards, because the lottery scores the
// group by its leader and fairness-credits every member.
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fairwaygreens/club-api/internal/models"
)

// GroupResponse is the JSON shape for a lottery group.
type GroupResponse struct {
	ID               string   `json:"id"`
	LeaderID         string   `json:"leader_id"`
	LotteryDate      string   `json:"lottery_date"`
	Preferred        string   `json:"preferred"`
	Backup           *string  `json:"backup"`
	Status           string   `json:"status"`
	UnassignedReason *string  `json:"unassigned_reason"`
	MemberIDs        []string `json:"member_ids"` // In tee-off order, leader first
	SubmittedAt      string   `json:"submitted_at"`
}

// CreateGroupRequest is the JSON body for POST /api/v1/lottery/groups.
// The leader is taken from the auth context and is always included, so
// MemberIDs lists only the other players.
type CreateGroupRequest struct {
	Date      string   `json:"date"`
	Preferred string   `json:"preferred"`
	Backup    *string  `json:"backup"`
	MemberIDs []string `json:"member_ids"`
}

func groupResponse(g models.LotteryGroup) GroupResponse {
	resp := GroupResponse{
		ID:               g.ID.String(),
		LeaderID:         g.LeaderID.String(),
		LotteryDate:      g.LotteryDate.UTC().Format("2006-01-02"),
		Preferred:        string(g.Preferred),
		Status:           string(g.Status),
		UnassignedReason: g.UnassignedReason,
		SubmittedAt:      g.SubmittedAt.UTC().Format(time.RFC3339),
	}
	if g.Backup != nil {
		b := string(*g.Backup)
		resp.Backup = &b
	}
	for _, m := range g.Members {
		resp.MemberIDs = append(resp.MemberIDs, m.MemberID.String())
	}
	return resp
}

// CreateGroup returns the handler for POST /api/v1/lottery/groups.
func CreateGroup(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		leaderID, err := requestMember(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid member ID"})
		}

		var req CreateGroupRequest
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

		if len(req.MemberIDs) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "a group needs at least one member besides the leader",
			})
		}

		// Assemble the full party: leader first, then the listed members, with
		// duplicates rejected rather than silently collapsed.
		partyIDs := []uuid.UUID{leaderID}
		seen := map[uuid.UUID]struct{}{leaderID: {}}
		for _, idStr := range req.MemberIDs {
			id, err := uuid.Parse(idStr)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "member_ids contains an invalid UUID"})
			}
			if _, dup := seen[id]; dup {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "member_ids contains duplicates"})
			}
			seen[id] = struct{}{}
			partyIDs = append(partyIDs, id)
		}

		// Every listed player must be a real member.
		var memberCount int64
		if err := db.Model(&models.Member{}).Where("id IN ?", partyIDs).Count(&memberCount).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
		}
		if int(memberCount) != len(partyIDs) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "one or more member IDs do not exist"})
		}

		// No player may already hold an entry or a seat in another group for
		// this date — one submission per member per date, full stop.
		for _, id := range partyIDs {
			conflict, err := hasConflictingSubmission(db, id, date)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
			}
			if conflict {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "member " + id.String() + " already has a submission for this date",
				})
			}
		}

		// Group and membership rows commit together or not at all.
		var created models.LotteryGroup
		txErr := db.Transaction(func(tx *gorm.DB) error {
			group := models.LotteryGroup{
				LeaderID:    leaderID,
				LotteryDate: date,
				Preferred:   preferred,
				Backup:      backup,
				Status:      models.EntryStatusPending,
				SubmittedAt: time.Now().UTC(),
			}
			if err := tx.Create(&group).Error; err != nil {
				return err
			}
			for i, id := range partyIDs {
				gm := models.LotteryGroupMember{GroupID: group.ID, MemberID: id, Position: i}
				if err := tx.Create(&gm).Error; err != nil {
					return err
				}
				group.Members = append(group.Members, gm)
			}
			created = group
			return nil
		})
		if txErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create group"})
		}

		return c.Status(fiber.StatusCreated).JSON(groupResponse(created))
	}
}

// GetGroups returns the handler for GET /api/v1/lottery/groups.
// Members see groups they belong to; staff and admins see all.
// Optional filter: ?date=YYYY-MM-DD
func GetGroups(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		memberID, err := requestMember(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid member ID"})
		}
		memberRole, _ := c.Locals("memberRole").(string)

		query := db.Preload("Members").Order("submitted_at ASC")

		if dateFilter := c.Query("date"); dateFilter != "" {
			date, err := parseDate(dateFilter)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be in YYYY-MM-DD format"})
			}
			query = query.Where("lottery_date = ?", date)
		}

		if memberRole != string(models.MemberRoleAdmin) && memberRole != string(models.MemberRoleStaff) {
			query = query.
				Joins("JOIN lottery_group_members ON lottery_group_members.group_id = lottery_groups.id").
				Where("lottery_group_members.member_id = ?", memberID)
		}

		var groups []models.LotteryGroup
		if err := query.Find(&groups).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch groups"})
		}

		response := make([]GroupResponse, 0, len(groups))
		for _, g := range groups {
			response = append(response, groupResponse(g))
		}
		return c.JSON(response)
	}
}

// CancelGroup returns the handler for DELETE /api/v1/lottery/groups/:id.
// Leader only, and only while the group is still pending and unprocessed.
func CancelGroup(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		memberID, err := requestMember(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid member ID"})
		}

		groupID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid group ID"})
		}

		var group models.LotteryGroup
		if err := db.Preload("Members").First(&group, "id = ?", groupID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "group not found"})
		}
		if group.LeaderID != memberID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only the group leader can cancel"})
		}
		if group.Status != models.EntryStatusPending || group.ProcessedAt != nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "group has already been processed or cancelled",
			})
		}

		if err := db.Model(&group).Update("status", models.EntryStatusCancelled).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to cancel group"})
		}
		group.Status = models.EntryStatusCancelled
		return c.JSON(groupResponse(group))
	}
}
