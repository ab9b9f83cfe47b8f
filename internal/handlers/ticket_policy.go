package handlers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/helpdeskpro/internal/models"
)

// optionalID distinguishes an absent field from an explicit null.
type optionalID struct {
	Set bool
	ID  *uuid.UUID
}

func (o *optionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.ID = nil
	if string(data) == "null" {
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw = strings.TrimSpace(raw); raw == "" {
		return nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return err
	}
	o.ID = &id
	return nil
}

type attachmentRequest struct {
	URL          string `json:"url" validate:"required"`
	PublicID     string `json:"public_id"`
	Format       string `json:"format"`
	Size         *int64 `json:"size" validate:"omitempty,gte=0"`
	OriginalName string `json:"original_name"`
}

func (a attachmentRequest) model(ticketID uuid.UUID, messageID *uuid.UUID) models.TicketAttachment {
	return models.TicketAttachment{
		TicketID:     ticketID,
		MessageID:    messageID,
		URL:          a.URL,
		PublicID:     a.PublicID,
		Format:       a.Format,
		Size:         a.Size,
		OriginalName: a.OriginalName,
	}
}

type ticketPatch struct {
	Title       *string              `json:"title" validate:"omitempty,min=1,max=120"`
	Description *string              `json:"description" validate:"omitempty,min=1,max=2000"`
	Priority    *string              `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status      *string              `json:"status" validate:"omitempty,oneof=open in_progress resolved closed"`
	Category    *string              `json:"category" validate:"omitempty,min=1,max=50"`
	Attachments *[]attachmentRequest `json:"attachments" validate:"omitempty,dive"`
	AssignedTo  optionalID           `json:"assigned_to"`
}

func (p *ticketPatch) touchesContent() bool {
	return p.Title != nil || p.Description != nil || p.Attachments != nil
}

type ticketActor struct {
	ID   uuid.UUID
	Role string
}

func canViewTicket(actor ticketActor, ticket *models.Ticket) bool {
	return actor.Role != models.RoleClient || ticket.CreatedByID == actor.ID
}

// ticketChanges reports what applyTicketPatch changed.
type ticketChanges struct {
	Fields            []string
	OldStatus         string
	StatusChanged     bool
	AssignmentChanged bool
	Attachments       *[]attachmentRequest
}

func (ch *ticketChanges) touch(field string) {
	ch.Fields = append(ch.Fields, field)
}

// applyTicketPatch enforces the role rules and applies patch to ticket in memory.
//
//   - admin: any field.
//   - support: claim an unassigned ticket or release their own; change status,
//     priority and category only as assignee or on an unassigned ticket, which claims it.
//   - client: only their own ticket; content and category, and status only to resolved.
//     Priority and assignment are ignored.
func applyTicketPatch(actor ticketActor, ticket *models.Ticket, patch *ticketPatch, now time.Time) (*ticketChanges, error) {
	changes := &ticketChanges{OldStatus: ticket.Status}

	switch actor.Role {
	case models.RoleAdmin:
		if patch.AssignedTo.Set {
			assign(ticket, patch.AssignedTo.ID, changes)
		}

	case models.RoleSupport:
		if patch.touchesContent() {
			return nil, fiber.NewError(fiber.StatusForbidden, "only the creator can edit ticket content")
		}

		if patch.AssignedTo.Set {
			switch {
			case patch.AssignedTo.ID != nil && *patch.AssignedTo.ID == actor.ID && ticket.AssignedToID == nil:
				assign(ticket, &actor.ID, changes)
			case patch.AssignedTo.ID != nil && *patch.AssignedTo.ID == actor.ID && *ticket.AssignedToID == actor.ID:
			case patch.AssignedTo.ID == nil && ticket.AssignedToID != nil && *ticket.AssignedToID == actor.ID:
				assign(ticket, nil, changes)
			default:
				return nil, fiber.NewError(fiber.StatusForbidden, "support agents can only claim unassigned tickets or release their own")
			}
		}

		if patch.Status != nil || patch.Priority != nil || patch.Category != nil {
			switch {
			case ticket.AssignedToID == nil:
				assign(ticket, &actor.ID, changes)
			case *ticket.AssignedToID != actor.ID:
				return nil, fiber.NewError(fiber.StatusForbidden, "ticket is assigned to another agent")
			}
		}

	case models.RoleClient:
		if ticket.CreatedByID != actor.ID {
			return nil, fiber.NewError(fiber.StatusForbidden, "forbidden")
		}
		if patch.Status != nil && *patch.Status != models.TicketResolved {
			return nil, fiber.NewError(fiber.StatusForbidden, "clients can only mark tickets as resolved")
		}
		patch.Priority = nil
		patch.AssignedTo = optionalID{}

	default:
		return nil, fiber.NewError(fiber.StatusForbidden, "forbidden")
	}

	if patch.Title != nil && *patch.Title != ticket.Title {
		ticket.Title = *patch.Title
		changes.touch("title")
	}
	if patch.Description != nil && *patch.Description != ticket.Description {
		ticket.Description = *patch.Description
		changes.touch("description")
	}
	if patch.Category != nil && *patch.Category != ticket.Category {
		ticket.Category = *patch.Category
		changes.touch("category")
	}
	if patch.Priority != nil && *patch.Priority != ticket.Priority {
		ticket.Priority = *patch.Priority
		changes.touch("priority")
	}
	if patch.Attachments != nil {
		changes.Attachments = patch.Attachments
		changes.touch("attachments")
	}
	if patch.Status != nil && *patch.Status != ticket.Status {
		ticket.Status = *patch.Status
		changes.StatusChanged = true
		changes.touch("status")
	}

	stampResolution(ticket, now)

	return changes, nil
}

func assign(ticket *models.Ticket, to *uuid.UUID, changes *ticketChanges) {
	same := (ticket.AssignedToID == nil && to == nil) ||
		(ticket.AssignedToID != nil && to != nil && *ticket.AssignedToID == *to)
	if same {
		return
	}
	if to != nil {
		id := *to
		ticket.AssignedToID = &id
	} else {
		ticket.AssignedToID = nil
	}
	ticket.AssignedTo = nil
	changes.AssignmentChanged = true
	changes.touch("assigned_to")
}

// stampResolution keeps resolved_at in sync with the status: set once when the
// ticket becomes resolved or closed, cleared when it is reopened.
func stampResolution(ticket *models.Ticket, now time.Time) {
	if models.IsTerminalStatus(ticket.Status) {
		if ticket.ResolvedAt == nil {
			ticket.ResolvedAt = &now
		}
		return
	}
	ticket.ResolvedAt = nil
}
