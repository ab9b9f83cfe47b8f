package handlers_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/helpdeskpro/internal/models"
)

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	client, clientToken := env.createUser("client", models.RoleClient)
	env.createUser("agent", models.RoleSupport)
	_, adminToken := env.createUser("admin", models.RoleAdmin)

	env.createTicket(clientToken, map[string]interface{}{"title": "One", "description": "A"})
	env.createTicket(clientToken, map[string]interface{}{"title": "Two", "description": "B"})

	yesterday := time.Now().Add(-48 * time.Hour)
	orders := []models.Order{
		{UserID: client.ID, PaypalOrderID: "P-1", Total: 100, Status: models.OrderPaid},
		{UserID: client.ID, PaypalOrderID: "P-2", Total: 50, Status: models.OrderPaid},
		{UserID: client.ID, PaypalOrderID: "T-1", Total: 999, Status: models.OrderPending},
	}
	require.NoError(t, env.db.Create(&orders).Error)
	require.NoError(t, env.db.Model(&orders[1]).Update("created_at", yesterday).Error)

	res := env.request(http.MethodGet, "/api/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, res.Status)
	data := res.data()
	assert.Equal(t, map[string]interface{}{"client": 1.0, "support": 1.0, "admin": 1.0}, data["users_by_role"])
	assert.Equal(t, map[string]interface{}{"open": 2.0}, data["tickets_by_status"])
	assert.EqualValues(t, 3, data["total_orders"])
	assert.EqualValues(t, 150, data["total_revenue"])
	assert.EqualValues(t, 100, data["today_revenue"])
}

func TestListUsersAndSearch(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("zelda", models.RoleClient)
	env.createUser("link", models.RoleSupport)
	_, adminToken := env.createUser("admin", models.RoleAdmin)

	res := env.request(http.MethodGet, "/api/admin/users?search=ZEL", adminToken, nil)
	require.Equal(t, http.StatusOK, res.Status)
	require.Len(t, res.list(), 1)
	assert.Equal(t, "zelda@example.com", res.list()[0].(map[string]interface{})["email"])

	res = env.request(http.MethodGet, "/api/admin/users?role=support", adminToken, nil)
	require.Len(t, res.list(), 1)

	res = env.request(http.MethodGet, "/api/admin/users?limit=2", adminToken, nil)
	assert.Len(t, res.list(), 2)
	pagination := res.Body["pagination"].(map[string]interface{})
	assert.EqualValues(t, 3, pagination["total_items"])
	assert.EqualValues(t, 2, pagination["total_pages"])
}

func TestUpdateUserRole(t *testing.T) {
	env := newTestEnv(t)
	_, clientToken := env.createUser("client", models.RoleClient)
	agent, agentToken := env.createUser("agent", models.RoleSupport)
	admin, adminToken := env.createUser("admin", models.RoleAdmin)

	open := env.createTicket(clientToken, map[string]interface{}{"title": "Open", "description": "A"})
	done := env.createTicket(clientToken, map[string]interface{}{"title": "Done", "description": "B"})
	env.request(http.MethodPatch, "/api/tickets/"+open["id"].(string), agentToken, map[string]interface{}{"status": "in_progress"})
	env.request(http.MethodPatch, "/api/tickets/"+done["id"].(string), agentToken, map[string]interface{}{"status": "resolved"})

	res := env.request(http.MethodPatch, "/api/admin/users/"+admin.ID.String()+"/role", adminToken, map[string]string{"role": "client"})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "you cannot change your own role", res.Body["error"])

	res = env.request(http.MethodPatch, "/api/admin/users/"+agent.ID.String()+"/role", adminToken, map[string]string{"role": "boss"})
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = env.request(http.MethodGet, "/api/admin/agents", adminToken, nil)
	require.Equal(t, http.StatusOK, res.Status)
	require.Len(t, res.list(), 1)
	workload := res.list()[0].(map[string]interface{})
	assert.EqualValues(t, 1, workload["open_tickets"])
	assert.Len(t, workload["tickets"], 2)

	res = env.request(http.MethodPatch, "/api/admin/users/"+agent.ID.String()+"/role", adminToken, map[string]string{"role": "client"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, models.RoleClient, res.data()["role"])

	var openTicket, doneTicket models.Ticket
	require.NoError(t, env.db.First(&openTicket, "id = ?", open["id"]).Error)
	require.NoError(t, env.db.First(&doneTicket, "id = ?", done["id"]).Error)
	assert.Nil(t, openTicket.AssignedToID)
	require.NotNil(t, doneTicket.AssignedToID)
	assert.Equal(t, agent.ID, *doneTicket.AssignedToID)

	res = env.request(http.MethodGet, "/api/admin/agents", adminToken, nil)
	assert.Empty(t, res.list())
}

func TestAdminListsOrdersWithSearch(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := env.createUser("alice", models.RoleClient)
	bob, _ := env.createUser("bob", models.RoleClient)
	_, adminToken := env.createUser("admin", models.RoleAdmin)

	require.NoError(t, env.db.Create(&[]models.Order{
		{UserID: alice.ID, PaypalOrderID: "PAY-A", Total: 10, Status: models.OrderPaid, ShippingStatus: models.ShippingPending},
		{UserID: bob.ID, PaypalOrderID: "PAY-B", Total: 20, Status: models.OrderPaid, ShippingStatus: models.ShippingShipped},
	}).Error)

	res := env.request(http.MethodGet, "/api/admin/orders?search=alice", adminToken, nil)
	require.Equal(t, http.StatusOK, res.Status)
	require.Len(t, res.list(), 1)
	assert.Equal(t, "PAY-A", res.list()[0].(map[string]interface{})["paypal_order_id"])

	res = env.request(http.MethodGet, "/api/admin/orders?shipping_status=shipped", adminToken, nil)
	require.Len(t, res.list(), 1)
	id := res.list()[0].(map[string]interface{})["id"].(string)

	res = env.request(http.MethodPatch, "/api/admin/orders/"+id, adminToken, map[string]string{"shipping_status": "delivered"})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, models.ShippingDelivered, res.data()["shipping_status"])

	res = env.request(http.MethodGet, "/api/admin/orders/"+id, adminToken, nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "bob@example.com", res.data()["user"].(map[string]interface{})["email"])
}

func TestAdminListsAllTickets(t *testing.T) {
	env := newTestEnv(t)
	_, clientToken := env.createUser("client", models.RoleClient)
	_, adminToken := env.createUser("admin", models.RoleAdmin)

	env.createTicket(clientToken, map[string]interface{}{"title": "Low", "description": "A", "priority": "low"})
	env.createTicket(clientToken, map[string]interface{}{"title": "High", "description": "B", "priority": "high"})

	res := env.request(http.MethodGet, "/api/admin/tickets?priority=high", adminToken, nil)
	require.Equal(t, http.StatusOK, res.Status)
	require.Len(t, res.list(), 1)
	assert.Equal(t, "High", res.list()[0].(map[string]interface{})["title"])
}

func TestCronEndpoints(t *testing.T) {
	env := newTestEnv(t)
	client, _ := env.createUser("client", models.RoleClient)

	res := env.request(http.MethodGet, "/api/cron/pending-reminders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Status)

	res = env.request(http.MethodGet, "/api/cron/pending-reminders", "", nil, "x-cron-secret", "nope")
	assert.Equal(t, http.StatusUnauthorized, res.Status)

	stale := models.Ticket{Title: "Stale", Description: "Old", Status: models.TicketOpen, Priority: models.PriorityMedium, CreatedByID: client.ID}
	require.NoError(t, env.db.Create(&stale).Error)
	require.NoError(t, env.db.Model(&stale).Update("created_at", time.Now().Add(-30*time.Hour)).Error)

	res = env.request(http.MethodGet, "/api/cron/pending-reminders", "", nil, "x-cron-secret", testCronSecret)
	require.Equal(t, http.StatusOK, res.Status)
	assert.EqualValues(t, 1, res.data()["reminders_sent"])
	assert.Contains(t, env.mailer.subjects(), "Reminder: ticket without reply")

	res = env.request(http.MethodGet, "/api/cron/daily-new-products", "", nil, "x-cron-secret", testCronSecret)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "No new products today", res.data()["message"])

	env.createProduct("Fresh", 12, 0, models.ProductActive)
	res = env.request(http.MethodGet, "/api/cron/daily-new-products", "", nil, "x-cron-secret", testCronSecret)
	require.Equal(t, http.StatusOK, res.Status)
	assert.EqualValues(t, 1, res.data()["products"])
	assert.EqualValues(t, 1, res.data()["sent_to"])

	release, ok, err := env.cache.TryLock(context.Background(), "job:daily-new-products", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	res = env.request(http.MethodGet, "/api/cron/daily-new-products", "", nil, "x-cron-secret", testCronSecret)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, true, res.Body["skipped"])
}

func TestUploadProxiesToMediaStore(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createUser("admin", models.RoleAdmin)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, env.media.uploads, 1)
	assert.Equal(t, "products", env.media.uploads[0].Folder)
	assert.Equal(t, "photo.png", env.media.uploads[0].Filename)

	res := env.request(http.MethodDelete, "/api/upload", token, nil)
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = env.request(http.MethodDelete, "/api/upload?public_id=products/abc", token, nil)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, []string{"products/abc"}, env.media.destroyed)
}
