package services

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/example/helpdeskpro/internal/models"
)

// Job names, shared by the HTTP trigger, the scheduler and the lock keys.
const (
	JobPendingReminders = "pending-reminders"
	JobDailyNewProducts = "daily-new-products"
)

const (
	pendingTicketAge = 24 * time.Hour
	digestWindow     = 24 * time.Hour
	digestLimit      = 10
	jobLockTTL       = 10 * time.Minute
)

// ErrJobRunning is returned when another run of the same job holds the lock.
var ErrJobRunning = errors.New("job already running")

// ReminderResult summarises a pending reminders run.
type ReminderResult struct {
	RemindersSent int `json:"reminders_sent"`
}

// DigestResult summarises a daily new products run.
type DigestResult struct {
	SentTo   int    `json:"sent_to"`
	Products int    `json:"products"`
	Message  string `json:"message,omitempty"`
}

// JobRunner executes the scheduled maintenance jobs.
type JobRunner struct {
	db           *gorm.DB
	notifier     *Notifier
	cache        Cache
	supportEmail string
	now          func() time.Time
}

// NewJobRunner creates a JobRunner.
func NewJobRunner(db *gorm.DB, notifier *Notifier, cache Cache, supportEmail string) *JobRunner {
	return &JobRunner{db: db, notifier: notifier, cache: cache, supportEmail: supportEmail, now: time.Now}
}

func (r *JobRunner) locked(ctx context.Context, name string, fn func() error) error {
	release, ok, err := r.cache.TryLock(ctx, "job:"+name, jobLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return ErrJobRunning
	}
	defer release()
	return fn()
}

// PendingReminders emails the assignee (or the support inbox) about every
// open ticket older than a day that the assignee has not answered yet.
func (r *JobRunner) PendingReminders(ctx context.Context) (ReminderResult, error) {
	var result ReminderResult
	err := r.locked(ctx, JobPendingReminders, func() error {
		var tickets []models.Ticket
		if err := r.db.WithContext(ctx).
			Preload("AssignedTo").
			Preload("Messages").
			Where("status IN ? AND created_at <= ?",
				[]string{models.TicketOpen, models.TicketInProgress},
				r.now().Add(-pendingTicketAge)).
			Order("created_at asc").
			Find(&tickets).Error; err != nil {
			return err
		}

		for i := range tickets {
			tk := &tickets[i]
			if assigneeReplied(tk) {
				continue
			}

			target := r.supportEmail
			if tk.AssignedTo != nil && tk.AssignedTo.Email != "" {
				target = tk.AssignedTo.Email
			}
			if target == "" {
				continue
			}

			if err := r.notifier.PendingReminder(target, tk); err != nil {
				log.Printf("[Cron] Reminder for ticket %s failed: %v", tk.ID, err)
				continue
			}
			result.RemindersSent++
		}
		return nil
	})
	return result, err
}

func assigneeReplied(tk *models.Ticket) bool {
	if tk.AssignedToID == nil {
		return false
	}
	for _, msg := range tk.Messages {
		if msg.SenderID == *tk.AssignedToID {
			return true
		}
	}
	return false
}

// DailyNewProducts mails every user a digest of products added in the last day.
func (r *JobRunner) DailyNewProducts(ctx context.Context) (DigestResult, error) {
	var result DigestResult
	err := r.locked(ctx, JobDailyNewProducts, func() error {
		var products []models.Product
		if err := r.db.WithContext(ctx).
			Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("display_order asc") }).
			Where("created_at >= ?", r.now().Add(-digestWindow)).
			Order("created_at desc").
			Limit(digestLimit).
			Find(&products).Error; err != nil {
			return err
		}

		if len(products) == 0 {
			result.Message = "No new products today"
			return nil
		}
		result.Products = len(products)

		digest := make([]DigestProduct, len(products))
		for i := range products {
			digest[i] = DigestProduct{
				Title: products[i].Title,
				Price: FormatPrice(products[i].EffectivePrice()),
				Image: products[i].PrimaryImage(""),
			}
		}

		var emails []string
		if err := r.db.WithContext(ctx).Model(&models.User{}).Pluck("email", &emails).Error; err != nil {
			return err
		}

		for _, email := range emails {
			if err := r.notifier.NewProductsDigest(email, digest); err != nil {
				log.Printf("[Cron] Digest to %s failed: %v", email, err)
				continue
			}
			result.SentTo++
		}
		return nil
	})
	return result, err
}
