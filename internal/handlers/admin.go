package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/helpdeskpro/internal/models"
	"github.com/example/helpdeskpro/internal/utils"
)

const defaultUserLimit = 20

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

type groupCount struct {
	Label string
	Count int64
}

func (h *AdminHandler) countBy(model interface{}, column string) (map[string]int64, error) {
	var rows []groupCount
	if err := h.db.Model(model).
		Select(column + " as label, count(*) as count").
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Label] = r.Count
	}
	return out, nil
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	usersByRole, err := h.countBy(&models.User{}, "role")
	if err != nil {
		return err
	}

	ticketsByStatus, err := h.countBy(&models.Ticket{}, "status")
	if err != nil {
		return err
	}

	var totalOrders int64
	if err := h.db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return err
	}

	var totalRevenue float64
	if err := h.db.Model(&models.Order{}).
		Where("status = ?", models.OrderPaid).
		Select("COALESCE(SUM(total), 0)").
		Scan(&totalRevenue).Error; err != nil {
		return err
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var todayRevenue float64
	if err := h.db.Model(&models.Order{}).
		Where("status = ? AND created_at >= ?", models.OrderPaid, startOfDay).
		Select("COALESCE(SUM(total), 0)").
		Scan(&todayRevenue).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"users_by_role":     usersByRole,
			"tickets_by_status": ticketsByStatus,
			"total_orders":      totalOrders,
			"total_revenue":     totalRevenue,
			"today_revenue":     todayRevenue,
		},
	})
}

// ListAllUsers returns all registered users with pagination and search.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c, defaultUserLimit)
	query := h.db.Model(&models.User{})

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", q, q)
	}
	if role := c.Query("role"); models.ValidRole(role) {
		query = query.Where("role = ?", role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	users := []models.User{}
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       users,
		"pagination": pg.Meta(total),
	})
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=client support admin"`
}

// UpdateUserRole changes a user's role. Open tickets assigned to a user who
// loses staff access are released. The new role applies from the next token.
func (h *AdminHandler) UpdateUserRole(c *fiber.Ctx) error {
	actorID, _, err := requireIdentity(c)
	if err != nil {
		return err
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if id == actorID {
		return fiber.NewError(fiber.StatusBadRequest, "you cannot change your own role")
	}

	var req updateRoleRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	user, err := loadUser(h.db, id)
	if err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("role", req.Role).Error; err != nil {
			return err
		}
		if req.Role != models.RoleClient {
			return nil
		}
		return tx.Model(&models.Ticket{}).
			Where("assigned_to_id = ? AND status IN ?", id, []string{models.TicketOpen, models.TicketInProgress}).
			Update("assigned_to_id", nil).Error
	})
	if err != nil {
		return err
	}
	user.Role = req.Role

	return c.JSON(fiber.Map{"success": true, "data": user})
}

// ListAllTickets returns every ticket with the list filters.
func (h *AdminHandler) ListAllTickets(c *fiber.Ctx) error {
	actorID, _, err := requireIdentity(c)
	if err != nil {
		return err
	}
	return listTickets(c, h.db, ticketActor{ID: actorID, Role: models.RoleAdmin})
}

type agentWorkload struct {
	Agent       models.User     `json:"agent"`
	OpenTickets int             `json:"open_tickets"`
	Tickets     []models.Ticket `json:"tickets"`
}

// ListAgents returns support users with the tickets assigned to them.
func (h *AdminHandler) ListAgents(c *fiber.Ctx) error {
	var agents []models.User
	if err := h.db.Where("role = ?", models.RoleSupport).Order("name asc").Find(&agents).Error; err != nil {
		return err
	}

	result := make([]agentWorkload, 0, len(agents))
	if len(agents) == 0 {
		return c.JSON(fiber.Map{"success": true, "data": result})
	}

	ids := make([]uuid.UUID, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
	}

	var tickets []models.Ticket
	if err := h.db.Preload("CreatedBy").
		Where("assigned_to_id IN ?", ids).
		Order("created_at desc").
		Find(&tickets).Error; err != nil {
		return err
	}

	byAgent := make(map[uuid.UUID][]models.Ticket, len(agents))
	for _, t := range tickets {
		byAgent[*t.AssignedToID] = append(byAgent[*t.AssignedToID], t)
	}

	for _, a := range agents {
		w := agentWorkload{Agent: a, Tickets: byAgent[a.ID]}
		if w.Tickets == nil {
			w.Tickets = []models.Ticket{}
		}
		for _, t := range w.Tickets {
			if !models.IsTerminalStatus(t.Status) {
				w.OpenTickets++
			}
		}
		result = append(result, w)
	}

	return c.JSON(fiber.Map{"success": true, "data": result})
}
