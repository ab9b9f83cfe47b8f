package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/helpdeskpro/internal/models"
)

func (e *testEnv) createTicket(token string, body map[string]interface{}) map[string]interface{} {
	e.t.Helper()
	res := e.request(http.MethodPost, "/api/tickets", token, body)
	require.Equal(e.t, http.StatusCreated, res.Status, res.Body)
	return res.data()
}

func TestCreateTicketDefaultsAndRoles(t *testing.T) {
	env := newTestEnv(t)
	_, clientToken := env.createUser("client", models.RoleClient)
	_, supportToken := env.createUser("agent", models.RoleSupport)

	ticket := env.createTicket(clientToken, map[string]interface{}{
		"title":       "  Order never arrived ",
		"description": "It has been two weeks",
		"attachments": []map[string]interface{}{{"url": "https://cdn.test/a.png", "original_name": "a.png"}},
	})
	assert.Equal(t, "Order never arrived", ticket["title"])
	assert.Equal(t, models.TicketOpen, ticket["status"])
	assert.Equal(t, models.PriorityMedium, ticket["priority"])
	assert.Equal(t, models.DefaultTicketCategory, ticket["category"])
	assert.Len(t, ticket["attachments"], 1)
	assert.Nil(t, ticket["assigned_to_id"])
	assert.Contains(t, env.mailer.subjects(), "Ticket received: Order never arrived")
	assert.Empty(t, env.alerts.ticketAlerts())

	res := env.request(http.MethodPost, "/api/tickets", supportToken, map[string]interface{}{
		"title": "x", "description": "y",
	})
	assert.Equal(t, http.StatusForbidden, res.Status)

	res = env.request(http.MethodPost, "/api/tickets", clientToken, map[string]interface{}{
		"title": "x", "description": "y", "priority": "urgent",
	})
	assert.Equal(t, http.StatusBadRequest, res.Status)

	env.createTicket(clientToken, map[string]interface{}{"title": "Fire", "description": "Now", "priority": "high"})
	require.Eventually(t, func() bool { return len(env.alerts.ticketAlerts()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "Fire", env.alerts.ticketAlerts()[0].Title)
}

func TestUrgentTicketAlertDoesNotDelayResponse(t *testing.T) {
	env := newTestEnv(t)
	_, clientToken := env.createUser("client", models.RoleClient)
	env.alerts.hold = make(chan struct{})

	started := time.Now()
	env.createTicket(clientToken, map[string]interface{}{"title": "Outage", "description": "Down", "priority": "high"})
	assert.Less(t, time.Since(started), time.Second)

	close(env.alerts.hold)
	assert.Eventually(t, func() bool { return len(env.alerts.ticketAlerts()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestTicketVisibility(t *testing.T) {
	env := newTestEnv(t)
	_, aliceToken := env.createUser("alice", models.RoleClient)
	_, bobToken := env.createUser("bob", models.RoleClient)
	_, supportToken := env.createUser("agent", models.RoleSupport)

	ticket := env.createTicket(aliceToken, map[string]interface{}{"title": "Mine", "description": "Private"})
	env.createTicket(bobToken, map[string]interface{}{"title": "Bob's", "description": "Other"})
	path := "/api/tickets/" + ticket["id"].(string)

	res := env.request(http.MethodGet, "/api/tickets", aliceToken, nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Len(t, res.list(), 1)
	assert.EqualValues(t, 1, res.Body["pagination"].(map[string]interface{})["total_items"])

	res = env.request(http.MethodGet, "/api/tickets", supportToken, nil)
	assert.Len(t, res.list(), 2)

	res = env.request(http.MethodGet, "/api/tickets?assigned=unassigned&status=open", supportToken, nil)
	assert.Len(t, res.list(), 2)

	res = env.request(http.MethodGet, path, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, res.Status)

	res = env.request(http.MethodGet, path, supportToken, nil)
	assert.Equal(t, http.StatusOK, res.Status)

	res = env.request(http.MethodGet, "/api/tickets/not-a-uuid", aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, res.Status)
}

func TestSupportClaimsAndResolvesTicket(t *testing.T) {
	env := newTestEnv(t)
	_, clientToken := env.createUser("client", models.RoleClient)
	agent, agentToken := env.createUser("agent", models.RoleSupport)
	_, otherToken := env.createUser("other", models.RoleSupport)

	ticket := env.createTicket(clientToken, map[string]interface{}{"title": "Help", "description": "Please"})
	path := "/api/tickets/" + ticket["id"].(string)

	// Support may not edit content.
	res := env.request(http.MethodPatch, path, agentToken, map[string]interface{}{"title": "Changed"})
	assert.Equal(t, http.StatusForbidden, res.Status)

	// Changing status on an unassigned ticket claims it.
	res = env.request(http.MethodPatch, path, agentToken, map[string]interface{}{"status": "in_progress"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, agent.ID.String(), res.data()["assigned_to_id"])
	assert.Nil(t, res.data()["resolved_at"])

	res = env.request(http.MethodPatch, path, otherToken, map[string]interface{}{"priority": "high"})
	assert.Equal(t, http.StatusForbidden, res.Status)

	res = env.request(http.MethodPatch, path, otherToken, map[string]interface{}{"assigned_to": nil})
	assert.Equal(t, http.StatusForbidden, res.Status)

	res = env.request(http.MethodPatch, path, agentToken, map[string]interface{}{"status": "resolved"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.NotNil(t, res.data()["resolved_at"])
	assert.Contains(t, env.mailer.subjects(), "Ticket resolved: Help")

	// Reopening clears resolved_at.
	res = env.request(http.MethodPatch, path, agentToken, map[string]interface{}{"status": "open"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Nil(t, res.data()["resolved_at"])

	// Releasing the ticket.
	res = env.request(http.MethodPatch, path, agentToken, map[string]interface{}{"assigned_to": nil})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Nil(t, res.data()["assigned_to_id"])

	history := env.request(http.MethodGet, path+"/history", clientToken, nil)
	require.Equal(t, http.StatusOK, history.Status)
	actions := []string{}
	for _, e := range history.list() {
		actions = append(actions, e.(map[string]interface{})["action"].(string))
	}
	assert.Equal(t, []string{"created", "assigned", "updated", "updated", "assigned"}, actions)
}

func TestClientTicketUpdates(t *testing.T) {
	env := newTestEnv(t)
	_, clientToken := env.createUser("client", models.RoleClient)
	_, otherToken := env.createUser("other", models.RoleClient)

	ticket := env.createTicket(clientToken, map[string]interface{}{"title": "Old", "description": "Desc"})
	path := "/api/tickets/" + ticket["id"].(string)

	res := env.request(http.MethodPatch, path, clientToken, map[string]interface{}{
		"title":       "New title",
		"priority":    "high",
		"attachments": []map[string]interface{}{},
	})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "New title", res.data()["title"])
	assert.Equal(t, models.PriorityMedium, res.data()["priority"])

	res = env.request(http.MethodPatch, path, clientToken, map[string]interface{}{"status": "closed"})
	assert.Equal(t, http.StatusForbidden, res.Status)

	res = env.request(http.MethodPatch, path, otherToken, map[string]interface{}{"title": "Hijack"})
	assert.Equal(t, http.StatusForbidden, res.Status)

	res = env.request(http.MethodPatch, path, clientToken, map[string]interface{}{"status": "resolved"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, models.TicketResolved, res.data()["status"])
}

func TestAdminAssignsTicket(t *testing.T) {
	env := newTestEnv(t)
	client, clientToken := env.createUser("client", models.RoleClient)
	agent, _ := env.createUser("agent", models.RoleSupport)
	_, adminToken := env.createUser("admin", models.RoleAdmin)

	ticket := env.createTicket(clientToken, map[string]interface{}{"title": "Assign me", "description": "Please"})
	path := "/api/tickets/" + ticket["id"].(string)

	res := env.request(http.MethodPatch, path, adminToken, map[string]interface{}{"assigned_to": client.ID.String()})
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = env.request(http.MethodPatch, path, adminToken, map[string]interface{}{
		"assigned_to": agent.ID.String(),
		"priority":    "low",
		"status":      "closed",
	})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, agent.ID.String(), res.data()["assigned_to_id"])
	assert.Equal(t, models.PriorityLow, res.data()["priority"])
	assert.NotNil(t, res.data()["resolved_at"])

	res = env.request(http.MethodDelete, path, clientToken, nil)
	assert.Equal(t, http.StatusForbidden, res.Status)

	res = env.request(http.MethodDelete, path, adminToken, nil)
	assert.Equal(t, http.StatusOK, res.Status)

	res = env.request(http.MethodGet, path, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, res.Status)
}

func TestTicketMessages(t *testing.T) {
	env := newTestEnv(t)
	_, clientToken := env.createUser("client", models.RoleClient)
	_, agentToken := env.createUser("agent", models.RoleSupport)

	ticket := env.createTicket(clientToken, map[string]interface{}{
		"title": "Chat", "description": "Start",
		"attachments": []map[string]interface{}{{"url": "https://cdn.test/ticket.png"}},
	})
	path := "/api/tickets/" + ticket["id"].(string) + "/messages"

	res := env.request(http.MethodPost, path, clientToken, map[string]interface{}{"message": "Any news?"})
	require.Equal(t, http.StatusCreated, res.Status)
	assert.Nil(t, res.data()["first_response_at"])

	res = env.request(http.MethodPost, path, agentToken, map[string]interface{}{
		"message":     "Looking into it",
		"attachments": []map[string]interface{}{{"url": "https://cdn.test/reply.png"}},
	})
	require.Equal(t, http.StatusCreated, res.Status)
	data := res.data()
	firstResponse := data["first_response_at"]
	assert.NotNil(t, firstResponse)
	assert.Len(t, data["attachments"], 1, "message attachments stay off the ticket")

	messages := data["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "Any news?", messages[0].(map[string]interface{})["message"])
	assert.Len(t, messages[1].(map[string]interface{})["attachments"], 1)
	assert.Contains(t, env.mailer.subjects(), "New reply: Chat")

	res = env.request(http.MethodPost, path, agentToken, map[string]interface{}{"message": "Second"})
	require.Equal(t, http.StatusCreated, res.Status)
	assert.Equal(t, firstResponse, res.data()["first_response_at"])

	res = env.request(http.MethodPost, path, agentToken, map[string]interface{}{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, res.Status)
}
