package models

import (
	"time"

	"github.com/google/uuid"
)

// Ticket statuses.
const (
	TicketOpen       = "open"
	TicketInProgress = "in_progress"
	TicketResolved   = "resolved"
	TicketClosed     = "closed"
)

// Ticket priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// DefaultTicketCategory is used when a client does not pick one.
const DefaultTicketCategory = "general"

// Ticket is a support request filed by a client.
type Ticket struct {
	BaseModel
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Status          string             `gorm:"index" json:"status"`
	Priority        string             `gorm:"index" json:"priority"`
	Category        string             `gorm:"index" json:"category"`
	CreatedByID     uuid.UUID          `gorm:"type:uuid;index" json:"created_by_id"`
	CreatedBy       *User              `json:"created_by,omitempty"`
	AssignedToID    *uuid.UUID         `gorm:"type:uuid;index" json:"assigned_to_id"`
	AssignedTo      *User              `json:"assigned_to,omitempty"`
	Attachments     []TicketAttachment `gorm:"constraint:OnDelete:CASCADE" json:"attachments"`
	Messages        []TicketMessage    `gorm:"constraint:OnDelete:CASCADE" json:"messages,omitempty"`
	FirstResponseAt *time.Time         `json:"first_response_at"`
	ResolvedAt      *time.Time         `json:"resolved_at"`
}

// TicketMessage is one entry of a ticket conversation.
type TicketMessage struct {
	BaseModel
	TicketID    uuid.UUID          `gorm:"type:uuid;index" json:"ticket_id"`
	SenderID    uuid.UUID          `gorm:"type:uuid;index" json:"sender_id"`
	Sender      *User              `json:"sender,omitempty"`
	Message     string             `json:"message"`
	Attachments []TicketAttachment `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"attachments"`
}

// TicketAttachment references a hosted file. Ticket level attachments have no MessageID.
type TicketAttachment struct {
	BaseModel
	TicketID     uuid.UUID  `gorm:"type:uuid;index" json:"ticket_id"`
	MessageID    *uuid.UUID `gorm:"type:uuid;index" json:"message_id,omitempty"`
	URL          string     `json:"url"`
	PublicID     string     `json:"public_id"`
	Format       string     `json:"format"`
	Size         *int64     `json:"size"`
	OriginalName string     `json:"original_name"`
}

// ValidTicketStatus reports whether status is a known ticket status.
func ValidTicketStatus(status string) bool {
	switch status {
	case TicketOpen, TicketInProgress, TicketResolved, TicketClosed:
		return true
	}
	return false
}

// IsTerminalStatus reports whether status marks the ticket as done.
func IsTerminalStatus(status string) bool {
	return status == TicketResolved || status == TicketClosed
}
