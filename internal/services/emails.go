package services

import (
	"bytes"
	"fmt"
	"html/template"
	"log"

	"github.com/example/helpdeskpro/internal/models"
)

const emailLayout = `{{define "layout"}}<div style="font-family:Arial,sans-serif;padding:20px;color:#111">
{{template "body" .}}
<p style="margin-top:24px;color:#777;font-size:12px">{{.AppName}}</p>
</div>{{end}}
{{define "button"}}<a href="{{.}}" style="display:inline-block;margin-top:12px;padding:10px 18px;background:#111;color:#fff;text-decoration:none;border-radius:6px">{{end}}`

var emailBodies = map[string]string{
	"welcome": `{{define "body"}}<h2>Welcome, {{.User.Name}}!</h2>
<p>Your account is ready. You can open support tickets and shop from your dashboard.</p>
{{template "button" .Link}}Go to dashboard</a>{{end}}`,

	"ticket_created": `{{define "body"}}<h2>We received your ticket</h2>
<p><strong>{{.Ticket.Title}}</strong></p>
<p>Priority: {{.Ticket.Priority}} · Category: {{.Ticket.Category}}</p>
<p>Our support team will get back to you soon.</p>
{{template "button" .Link}}View ticket</a>{{end}}`,

	"ticket_reply": `{{define "body"}}<h2>New reply on your ticket</h2>
<p><strong>{{.Ticket.Title}}</strong></p>
<blockquote style="border-left:3px solid #ddd;padding-left:12px">{{.Message}}</blockquote>
<p>{{.Sender.Name}} from support</p>
{{template "button" .Link}}Reply</a>{{end}}`,

	"ticket_resolved": `{{define "body"}}<h2>Your ticket is {{.Ticket.Status}}</h2>
<p><strong>{{.Ticket.Title}}</strong></p>
<p>If the problem persists you can reopen it from your dashboard.</p>
{{template "button" .Link}}View ticket</a>{{end}}`,

	"pending_reminder": `{{define "body"}}<h2>Ticket waiting for a reply</h2>
<p>The following ticket needs attention:</p>
<p><strong>{{.Ticket.Title}}</strong></p>
<p>It was created more than 24 hours ago without an agent reply.</p>
{{template "button" .Link}}Open ticket</a>{{end}}`,

	"new_products": `{{define "body"}}<h2>New arrivals in the last 24 hours</h2>
{{range .Products}}<div style="margin-bottom:20px">
{{with .Image}}<img src="{{.}}" width="220" style="border-radius:8px">{{end}}
<h3>{{.Title}}</h3>
<p><strong>{{.Price}}</strong></p>
</div>{{end}}
{{template "button" .Link}}Shop now</a>{{end}}`,

	"reset_code": `{{define "body"}}<h2>Password reset</h2>
<p>Use this code to reset your password. It expires in 10 minutes.</p>
<p style="font-size:28px;letter-spacing:6px"><strong>{{.Code}}</strong></p>
<p>If you did not request a reset you can ignore this email.</p>{{end}}`,
}

var emailTemplates = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(emailBodies))
	for name, body := range emailBodies {
		out[name] = template.Must(template.Must(template.New(name).Parse(emailLayout)).Parse(body))
	}
	return out
}()

// DigestProduct is one entry of the new products email.
type DigestProduct struct {
	Title string
	Price string
	Image string
}

// Notifier renders and sends the application's emails.
type Notifier struct {
	mailer    Mailer
	appName   string
	publicURL string
	async     bool
}

// NewNotifier creates a Notifier. When async is set, fire and forget
// notifications are sent from a goroutine.
func NewNotifier(mailer Mailer, appName, publicURL string, async bool) *Notifier {
	return &Notifier{mailer: mailer, appName: appName, publicURL: publicURL, async: async}
}

func (n *Notifier) render(name string, data map[string]interface{}) (string, error) {
	data["AppName"] = n.appName
	var buf bytes.Buffer
	if err := emailTemplates[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (n *Notifier) send(to, subject, name string, data map[string]interface{}) error {
	html, err := n.render(name, data)
	if err != nil {
		return err
	}
	return n.mailer.Send(to, subject, html)
}

// dispatch sends a notification whose failure must not affect the caller.
func (n *Notifier) dispatch(to, subject, name string, data map[string]interface{}) {
	if to == "" {
		return
	}
	run := func() {
		if err := n.send(to, subject, name, data); err != nil {
			log.Printf("[Mail] %s to %s failed: %v", name, to, err)
		}
	}
	if n.async {
		go run()
		return
	}
	run()
}

func (n *Notifier) ticketLink(ticket *models.Ticket) string {
	return fmt.Sprintf("%s/tickets/%s", n.publicURL, ticket.ID)
}

// Welcome greets a newly registered user.
func (n *Notifier) Welcome(user *models.User) {
	n.dispatch(user.Email, "Welcome to "+n.appName, "welcome", map[string]interface{}{
		"User": user,
		"Link": n.publicURL + "/dashboard",
	})
}

// TicketCreated confirms a new ticket to its creator.
func (n *Notifier) TicketCreated(ticket *models.Ticket, creator *models.User) {
	n.dispatch(creator.Email, "Ticket received: "+ticket.Title, "ticket_created", map[string]interface{}{
		"Ticket": ticket,
		"Link":   n.ticketLink(ticket),
	})
}

// TicketReply tells the creator that support answered.
func (n *Notifier) TicketReply(ticket *models.Ticket, creator, sender *models.User, message string) {
	n.dispatch(creator.Email, "New reply: "+ticket.Title, "ticket_reply", map[string]interface{}{
		"Ticket":  ticket,
		"Sender":  sender,
		"Message": message,
		"Link":    n.ticketLink(ticket),
	})
}

// TicketResolved tells the creator that the ticket reached a terminal status.
func (n *Notifier) TicketResolved(ticket *models.Ticket, creator *models.User) {
	n.dispatch(creator.Email, "Ticket "+ticket.Status+": "+ticket.Title, "ticket_resolved", map[string]interface{}{
		"Ticket": ticket,
		"Link":   n.ticketLink(ticket),
	})
}

// PendingReminder nudges an agent about a ticket without reply.
func (n *Notifier) PendingReminder(to string, ticket *models.Ticket) error {
	return n.send(to, "Reminder: ticket without reply", "pending_reminder", map[string]interface{}{
		"Ticket": ticket,
		"Link":   fmt.Sprintf("%s/agent/%s", n.publicURL, ticket.ID),
	})
}

// NewProductsDigest announces recently added products.
func (n *Notifier) NewProductsDigest(to string, products []DigestProduct) error {
	return n.send(to, "New drops today at "+n.appName, "new_products", map[string]interface{}{
		"Products": products,
		"Link":     n.publicURL + "/products",
	})
}

// PasswordResetCode emails a reset code.
func (n *Notifier) PasswordResetCode(to, code string) error {
	return n.send(to, "Your password reset code", "reset_code", map[string]interface{}{
		"Code": code,
	})
}
