package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/helpdeskpro/internal/config"
	"github.com/example/helpdeskpro/internal/database"
	"github.com/example/helpdeskpro/internal/middleware"
	"github.com/example/helpdeskpro/internal/models"
	"github.com/example/helpdeskpro/internal/routes"
	"github.com/example/helpdeskpro/internal/services"
	"github.com/example/helpdeskpro/internal/utils"
)

const (
	testSecret     = "test-secret"
	testCronSecret = "cron-secret"
	testPublicURL  = "https://shop.test"
)

type sentMail struct {
	To, Subject, HTML string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, html})
	return nil
}

func (m *fakeMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, s.Subject)
	}
	return out
}

type fakeMedia struct {
	mu        sync.Mutex
	uploads   []services.UploadOptions
	destroyed []string
	failing   bool
}

func (f *fakeMedia) Upload(_ context.Context, r io.Reader, opts services.UploadOptions) (services.UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return services.UploadResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return services.UploadResult{}, errors.New("storage unavailable")
	}
	f.uploads = append(f.uploads, opts)
	id := opts.Folder + "/" + uuid.NewString()
	return services.UploadResult{
		URL:      "https://cdn.test/" + id + ".png",
		PublicID: id,
		Format:   "png",
		Size:     int64(len(data)),
	}, nil
}

func (f *fakeMedia) Destroy(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = append(f.destroyed, publicID)
	return nil
}

type fakePayments struct {
	mu       sync.Mutex
	created  []services.CheckoutRequest
	captures map[string]services.CaptureResult
	captured int
	// afterCapture runs once PayPal reports a capture, before the order is stored.
	afterCapture func()
}

func (f *fakePayments) CreateOrder(_ context.Context, req services.CheckoutRequest) (services.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	return services.CheckoutSession{ID: "PAYPAL-1", ApproveURL: "https://paypal.test/approve?token=PAYPAL-1"}, nil
}

func (f *fakePayments) CaptureOrder(_ context.Context, orderID string) (services.CaptureResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result, ok := f.captures[orderID]
	if !ok {
		return services.CaptureResult{}, services.ErrPaymentNotCompleted
	}
	f.captured++
	if f.afterCapture != nil {
		f.afterCapture()
	}
	return result, nil
}

type fakeGoogle struct{}

func (fakeGoogle) Verify(_ context.Context, token string) (services.GoogleProfile, error) {
	switch token {
	case "good-token":
		return services.GoogleProfile{Email: "G.User@Gmail.com", EmailVerified: true, Name: "Google User", Picture: "https://img.test/g.png"}, nil
	case "unverified-token":
		return services.GoogleProfile{Email: "bob@example.com", Name: "Not Bob"}, nil
	}
	return services.GoogleProfile{}, errors.New("bad token")
}

// fakeAlerts records admin alerts. When hold is set each send waits on it
// (at most two seconds), like a slow Telegram API.
type fakeAlerts struct {
	mu      sync.Mutex
	hold    chan struct{}
	orders  []services.OrderNotification
	tickets []services.TicketNotification
}

func (f *fakeAlerts) wait() {
	if f.hold == nil {
		return
	}
	select {
	case <-f.hold:
	case <-time.After(2 * time.Second):
	}
}

func (f *fakeAlerts) NotifyNewOrder(n services.OrderNotification) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, n)
	return nil
}

func (f *fakeAlerts) NotifyUrgentTicket(n services.TicketNotification) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets = append(f.tickets, n)
	return nil
}

func (f *fakeAlerts) orderAlerts() []services.OrderNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]services.OrderNotification(nil), f.orders...)
}

func (f *fakeAlerts) ticketAlerts() []services.TicketNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]services.TicketNotification(nil), f.tickets...)
}

type memoryActivity struct {
	mu      sync.Mutex
	entries []services.Activity
}

func (m *memoryActivity) Record(_ context.Context, entry services.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryActivity) List(_ context.Context, subjectType, subjectID string) ([]services.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []services.Activity{}
	for _, e := range m.entries {
		if e.SubjectType == subjectType && e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	return out, nil
}

// mapCache is an in-memory Cache that actually stores values.
type mapCache struct {
	*services.MemoryCache
	mu       sync.Mutex
	values   map[string][]byte
	versions map[string]int64
}

func newMapCache() *mapCache {
	return &mapCache{
		MemoryCache: services.NewMemoryCache(),
		values:      map[string][]byte{},
		versions:    map[string]int64{},
	}
}

func (c *mapCache) GetJSON(_ context.Context, key string, out interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.values[key]
	if !ok {
		return services.ErrCacheMiss
	}
	return json.Unmarshal(raw, out)
}

func (c *mapCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = raw
	return nil
}

func (c *mapCache) Version(_ context.Context, namespace string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[namespace], nil
}

func (c *mapCache) Bump(_ context.Context, namespace string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[namespace]++
	return nil
}

type testEnv struct {
	t        *testing.T
	app      *fiber.App
	db       *gorm.DB
	cfg      *config.Config
	mailer   *fakeMailer
	media    *fakeMedia
	payments *fakePayments
	alerts   *fakeAlerts
	activity *memoryActivity
	cache    *mapCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")+"?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		AppName:      "HelpDesk Pro",
		PublicURL:    testPublicURL,
		JWTSecret:    testSecret,
		TokenExpires: time.Hour,
		CronSecret:   testCronSecret,
		SupportEmail: "support@shop.test",
	}

	env := &testEnv{
		t:        t,
		db:       db,
		cfg:      cfg,
		mailer:   &fakeMailer{},
		media:    &fakeMedia{},
		payments: &fakePayments{captures: map[string]services.CaptureResult{}},
		alerts:   &fakeAlerts{},
		activity: &memoryActivity{},
		cache:    newMapCache(),
	}

	notifier := services.NewNotifier(env.mailer, cfg.AppName, cfg.PublicURL, false)
	env.app = fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	routes.Register(env.app, routes.Deps{
		DB:       db,
		Config:   cfg,
		Notifier: notifier,
		Media:    env.media,
		Payments: env.payments,
		Google:   fakeGoogle{},
		Cache:    env.cache,
		Activity: env.activity,
		Alerts:   env.alerts,
		Jobs:     services.NewJobRunner(db, notifier, env.cache, cfg.SupportEmail),
	})
	return env
}

// createUser inserts a user and returns it with a bearer token.
func (e *testEnv) createUser(name, role string) (*models.User, string) {
	e.t.Helper()
	hash, err := utils.HashPassword("secret123")
	require.NoError(e.t, err)

	user := &models.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: hash,
		Provider:     models.ProviderCredentials,
		Role:         role,
	}
	require.NoError(e.t, e.db.Create(user).Error)

	token, err := utils.GenerateToken(testSecret, user.ID, role, time.Hour)
	require.NoError(e.t, err)
	return user, token
}

func (e *testEnv) createCategory(name, kind string) *models.Category {
	e.t.Helper()
	category := &models.Category{Name: name, Slug: utils.Slugify(name), Kind: kind}
	require.NoError(e.t, e.db.Create(category).Error)
	return category
}

func (e *testEnv) createProduct(title string, price, discount float64, status string) *models.Product {
	e.t.Helper()
	category := &models.Category{Name: title + " cat", Slug: utils.Slugify(title + " cat"), Kind: models.KindCategory}
	require.NoError(e.t, e.db.Create(category).Error)

	product := &models.Product{
		Title:      title,
		Brand:      "Acme",
		CategoryID: category.ID,
		Price:      price,
		Discount:   discount,
		Status:     status,
		Images:     []models.ProductImage{{URL: "https://cdn.test/" + utils.Slugify(title) + ".png"}},
	}
	require.NoError(e.t, e.db.Create(product).Error)
	return product
}

type response struct {
	Status int
	Header http.Header
	Body   map[string]interface{}
}

func (r response) data() map[string]interface{} {
	data, _ := r.Body["data"].(map[string]interface{})
	return data
}

func (r response) list() []interface{} {
	list, _ := r.Body["data"].([]interface{})
	return list
}

func (e *testEnv) request(method, path, token string, body interface{}, headers ...string) response {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)

	out := response{Status: resp.StatusCode, Header: resp.Header}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out.Body)
	}
	return out
}
