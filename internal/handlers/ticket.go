package handlers

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/helpdeskpro/internal/models"
	"github.com/example/helpdeskpro/internal/services"
	"github.com/example/helpdeskpro/internal/utils"
)

const defaultTicketLimit = 10

// TicketHandler serves the helpdesk ticket lifecycle.
type TicketHandler struct {
	db       *gorm.DB
	notifier *services.Notifier
	alerts   services.AdminAlerter
	activity services.ActivityLog
}

// NewTicketHandler constructs TicketHandler.
func NewTicketHandler(db *gorm.DB, notifier *services.Notifier, alerts services.AdminAlerter, activity services.ActivityLog) *TicketHandler {
	return &TicketHandler{db: db, notifier: notifier, alerts: alerts, activity: activity}
}

func currentActor(c *fiber.Ctx) (ticketActor, error) {
	id, role, err := requireIdentity(c)
	if err != nil {
		return ticketActor{}, err
	}
	return ticketActor{ID: id, Role: role}, nil
}

// scopedTickets applies role visibility and list filters.
func scopedTickets(c *fiber.Ctx, db *gorm.DB, actor ticketActor) *gorm.DB {
	query := db.Model(&models.Ticket{})

	switch actor.Role {
	case models.RoleClient:
		query = query.Where("created_by_id = ?", actor.ID)
	default:
		switch c.Query("assigned") {
		case "mine":
			query = query.Where("assigned_to_id = ?", actor.ID)
		case "unassigned":
			query = query.Where("assigned_to_id IS NULL")
		}
	}

	if status := c.Query("status"); models.ValidTicketStatus(status) {
		query = query.Where("status = ?", status)
	}
	switch priority := c.Query("priority"); priority {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
		query = query.Where("priority = ?", priority)
	}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		query = query.Where("category = ?", category)
	}

	return query
}

func listTickets(c *fiber.Ctx, db *gorm.DB, actor ticketActor) error {
	pg := utils.ParsePagination(c, defaultTicketLimit)
	query := scopedTickets(c, db, actor)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	tickets := []models.Ticket{}
	if err := query.Preload("CreatedBy").Preload("AssignedTo").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&tickets).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       tickets,
		"pagination": pg.Meta(total),
	})
}

// ListTickets returns the tickets visible to the caller.
func (h *TicketHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	return listTickets(c, h.db, actor)
}

func (h *TicketHandler) loadTicket(id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := h.db.
		Preload("CreatedBy").
		Preload("AssignedTo").
		Preload("Attachments", "message_id IS NULL").
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		Preload("Messages.Sender").
		Preload("Messages.Attachments").
		First(&ticket, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "ticket not found")
	}
	return &ticket, nil
}

// loadVisibleTicket loads a ticket and enforces read access.
func (h *TicketHandler) loadVisibleTicket(c *fiber.Ctx) (*models.Ticket, ticketActor, error) {
	actor, err := currentActor(c)
	if err != nil {
		return nil, actor, err
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, actor, err
	}

	ticket, err := h.loadTicket(id)
	if err != nil {
		return nil, actor, err
	}

	if !canViewTicket(actor, ticket) {
		return nil, actor, fiber.NewError(fiber.StatusForbidden, "forbidden")
	}
	return ticket, actor, nil
}

type createTicketRequest struct {
	Title       string              `json:"title" validate:"required,max=120"`
	Description string              `json:"description" validate:"required,max=2000"`
	Priority    string              `json:"priority" validate:"omitempty,oneof=low medium high"`
	Category    string              `json:"category" validate:"max=50"`
	Attachments []attachmentRequest `json:"attachments" validate:"dive"`
}

// CreateTicket files a new ticket. Only clients may create tickets.
func (h *TicketHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleClient {
		return fiber.NewError(fiber.StatusForbidden, "only clients can create tickets")
	}

	var req createTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.TrimSpace(req.Category)
	if err := utils.Validate(&req); err != nil {
		return err
	}

	creator, err := loadUser(h.db, actor.ID)
	if err != nil {
		return err
	}

	ticket := models.Ticket{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TicketOpen,
		Priority:    req.Priority,
		Category:    req.Category,
		CreatedByID: actor.ID,
	}
	if ticket.Priority == "" {
		ticket.Priority = models.PriorityMedium
	}
	if ticket.Category == "" {
		ticket.Category = models.DefaultTicketCategory
	}
	for _, a := range req.Attachments {
		ticket.Attachments = append(ticket.Attachments, a.model(uuid.Nil, nil))
	}

	if err := h.db.Create(&ticket).Error; err != nil {
		return err
	}

	recordActivity(c.UserContext(), h.activity, services.Activity{
		SubjectType: services.SubjectTicket,
		SubjectID:   ticket.ID.String(),
		Action:      "created",
		ActorID:     actor.ID.String(),
		Data:        map[string]interface{}{"priority": ticket.Priority, "category": ticket.Category},
	})

	h.notifier.TicketCreated(&ticket, creator)

	if ticket.Priority == models.PriorityHigh {
		n := services.TicketNotification{
			TicketID:    ticket.ID.String(),
			Title:       ticket.Title,
			Priority:    ticket.Priority,
			Category:    ticket.Category,
			CreatorName: creator.Name,
		}
		go func() {
			if err := h.alerts.NotifyUrgentTicket(n); err != nil {
				log.Printf("[Ticket] Failed to alert admins about %s: %v", n.TicketID, err)
			}
		}()
	}

	created, err := h.loadTicket(ticket.ID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": created})
}

// GetTicket returns a ticket with its conversation.
func (h *TicketHandler) GetTicket(c *fiber.Ctx) error {
	ticket, _, err := h.loadVisibleTicket(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": ticket})
}

// UpdateTicket applies a partial update according to the caller's role.
func (h *TicketHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var patch ticketPatch
	if err := c.BodyParser(&patch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	trimPtr(patch.Title)
	trimPtr(patch.Description)
	trimPtr(patch.Category)
	if err := utils.Validate(&patch); err != nil {
		return err
	}

	if actor.Role == models.RoleAdmin && patch.AssignedTo.ID != nil {
		assignee, err := loadUser(h.db, *patch.AssignedTo.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "assignee not found")
		}
		if assignee.Role != models.RoleSupport && assignee.Role != models.RoleAdmin {
			return fiber.NewError(fiber.StatusBadRequest, "assignee must be a support agent or admin")
		}
	}

	var ticket models.Ticket
	var changes *ticketChanges
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&ticket, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "ticket not found")
		}

		changes, err = applyTicketPatch(actor, &ticket, &patch, time.Now())
		if err != nil {
			return err
		}

		if changes.Attachments != nil {
			if err := tx.Where("ticket_id = ? AND message_id IS NULL", ticket.ID).
				Delete(&models.TicketAttachment{}).Error; err != nil {
				return err
			}
			if len(*changes.Attachments) > 0 {
				rows := make([]models.TicketAttachment, 0, len(*changes.Attachments))
				for _, a := range *changes.Attachments {
					rows = append(rows, a.model(ticket.ID, nil))
				}
				if err := tx.Create(&rows).Error; err != nil {
					return err
				}
			}
		}

		return tx.Omit(clause.Associations).Save(&ticket).Error
	})
	if err != nil {
		return err
	}

	updated, err := h.loadTicket(id)
	if err != nil {
		return err
	}

	if len(changes.Fields) > 0 {
		data := map[string]interface{}{"fields": changes.Fields}
		if changes.StatusChanged {
			data["from"] = changes.OldStatus
			data["to"] = updated.Status
		}
		action := "updated"
		if changes.AssignmentChanged {
			action = "assigned"
			if updated.AssignedToID != nil {
				data["assigned_to"] = updated.AssignedToID.String()
			} else {
				data["assigned_to"] = nil
			}
		}
		recordActivity(c.UserContext(), h.activity, services.Activity{
			SubjectType: services.SubjectTicket,
			SubjectID:   updated.ID.String(),
			Action:      action,
			ActorID:     actor.ID.String(),
			Data:        data,
		})
	}

	if changes.StatusChanged && models.IsTerminalStatus(updated.Status) && updated.CreatedBy != nil {
		h.notifier.TicketResolved(updated, updated.CreatedBy)
	}

	return c.JSON(fiber.Map{"success": true, "data": updated})
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

type ticketMessageRequest struct {
	Message     string              `json:"message" validate:"required,max=2000"`
	Attachments []attachmentRequest `json:"attachments" validate:"dive"`
}

// AddMessage appends a message to the ticket conversation.
func (h *TicketHandler) AddMessage(c *fiber.Ctx) error {
	ticket, actor, err := h.loadVisibleTicket(c)
	if err != nil {
		return err
	}

	var req ticketMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := utils.Validate(&req); err != nil {
		return err
	}

	sender, err := loadUser(h.db, actor.ID)
	if err != nil {
		return err
	}

	now := time.Now()
	err = h.db.Transaction(func(tx *gorm.DB) error {
		msg := models.TicketMessage{
			TicketID: ticket.ID,
			SenderID: actor.ID,
			Message:  req.Message,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}

		if len(req.Attachments) > 0 {
			rows := make([]models.TicketAttachment, 0, len(req.Attachments))
			for _, a := range req.Attachments {
				rows = append(rows, a.model(ticket.ID, &msg.ID))
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Ticket{}).Where("id = ?", ticket.ID).
			Update("updated_at", now).Error; err != nil {
			return err
		}
		if actor.ID == ticket.CreatedByID {
			return nil
		}
		return tx.Model(&models.Ticket{}).
			Where("id = ? AND first_response_at IS NULL", ticket.ID).
			Update("first_response_at", now).Error
	})
	if err != nil {
		return err
	}

	recordActivity(c.UserContext(), h.activity, services.Activity{
		SubjectType: services.SubjectTicket,
		SubjectID:   ticket.ID.String(),
		Action:      "message",
		ActorID:     actor.ID.String(),
		Data:        map[string]interface{}{"attachments": len(req.Attachments)},
	})

	if actor.Role != models.RoleClient && actor.ID != ticket.CreatedByID && ticket.CreatedBy != nil {
		h.notifier.TicketReply(ticket, ticket.CreatedBy, sender, req.Message)
	}

	updated, err := h.loadTicket(ticket.ID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": updated})
}

// DeleteTicket removes a ticket with its conversation.
func (h *TicketHandler) DeleteTicket(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ticket_id = ?", id).Delete(&models.TicketAttachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("ticket_id = ?", id).Delete(&models.TicketMessage{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Ticket{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "ticket not found")
		}
		return nil
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

// TicketHistory returns the activity timeline of a ticket.
func (h *TicketHandler) TicketHistory(c *fiber.Ctx) error {
	ticket, _, err := h.loadVisibleTicket(c)
	if err != nil {
		return err
	}

	entries, err := h.activity.List(c.UserContext(), services.SubjectTicket, ticket.ID.String())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": entries})
}
