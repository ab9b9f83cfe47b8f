package handlers

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/helpdeskpro/internal/models"
)

func strPtr(s string) *string { return &s }

func assertStatus(t *testing.T, err error, code int) {
	t.Helper()
	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, code, fe.Code)
}

func TestOptionalIDUnmarshal(t *testing.T) {
	var p ticketPatch
	require.NoError(t, p.AssignedTo.UnmarshalJSON([]byte("null")))
	assert.True(t, p.AssignedTo.Set)
	assert.Nil(t, p.AssignedTo.ID)

	id := uuid.New()
	require.NoError(t, p.AssignedTo.UnmarshalJSON([]byte(`"`+id.String()+`"`)))
	require.NotNil(t, p.AssignedTo.ID)
	assert.Equal(t, id, *p.AssignedTo.ID)

	assert.Error(t, p.AssignedTo.UnmarshalJSON([]byte(`"nope"`)))
}

func TestApplyTicketPatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	creator := uuid.New()
	agent := uuid.New()
	other := uuid.New()

	newTicket := func(assigned *uuid.UUID) *models.Ticket {
		return &models.Ticket{
			Title:        "T",
			Status:       models.TicketOpen,
			Priority:     models.PriorityMedium,
			Category:     "general",
			CreatedByID:  creator,
			AssignedToID: assigned,
		}
	}

	t.Run("support claims unassigned ticket on status change", func(t *testing.T) {
		ticket := newTicket(nil)
		ch, err := applyTicketPatch(ticketActor{agent, models.RoleSupport}, ticket,
			&ticketPatch{Status: strPtr(models.TicketInProgress)}, now)
		require.NoError(t, err)
		require.NotNil(t, ticket.AssignedToID)
		assert.Equal(t, agent, *ticket.AssignedToID)
		assert.True(t, ch.AssignmentChanged)
		assert.True(t, ch.StatusChanged)
		assert.Equal(t, models.TicketOpen, ch.OldStatus)
	})

	t.Run("support cannot take another agent's ticket", func(t *testing.T) {
		ticket := newTicket(&other)
		_, err := applyTicketPatch(ticketActor{agent, models.RoleSupport}, ticket,
			&ticketPatch{AssignedTo: optionalID{Set: true, ID: &agent}}, now)
		assertStatus(t, err, fiber.StatusForbidden)
	})

	t.Run("support re-claiming own ticket is a no-op", func(t *testing.T) {
		ticket := newTicket(&agent)
		ch, err := applyTicketPatch(ticketActor{agent, models.RoleSupport}, ticket,
			&ticketPatch{AssignedTo: optionalID{Set: true, ID: &agent}}, now)
		require.NoError(t, err)
		assert.Empty(t, ch.Fields)
	})

	t.Run("client priority and assignment are ignored", func(t *testing.T) {
		ticket := newTicket(nil)
		ch, err := applyTicketPatch(ticketActor{creator, models.RoleClient}, ticket,
			&ticketPatch{Priority: strPtr(models.PriorityHigh), AssignedTo: optionalID{Set: true, ID: &other}}, now)
		require.NoError(t, err)
		assert.Equal(t, models.PriorityMedium, ticket.Priority)
		assert.Nil(t, ticket.AssignedToID)
		assert.Empty(t, ch.Fields)
	})

	t.Run("resolved_at is stamped once and cleared on reopen", func(t *testing.T) {
		ticket := newTicket(nil)
		admin := ticketActor{uuid.New(), models.RoleAdmin}

		_, err := applyTicketPatch(admin, ticket, &ticketPatch{Status: strPtr(models.TicketResolved)}, now)
		require.NoError(t, err)
		require.NotNil(t, ticket.ResolvedAt)
		assert.Equal(t, now, *ticket.ResolvedAt)

		later := now.Add(time.Hour)
		_, err = applyTicketPatch(admin, ticket, &ticketPatch{Status: strPtr(models.TicketClosed)}, later)
		require.NoError(t, err)
		assert.Equal(t, now, *ticket.ResolvedAt)

		_, err = applyTicketPatch(admin, ticket, &ticketPatch{Status: strPtr(models.TicketOpen)}, later)
		require.NoError(t, err)
		assert.Nil(t, ticket.ResolvedAt)
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		_, err := applyTicketPatch(ticketActor{uuid.New(), "guest"}, newTicket(nil), &ticketPatch{}, now)
		assertStatus(t, err, fiber.StatusForbidden)
	})
}
