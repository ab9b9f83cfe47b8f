package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"
)

// AdminAlerter pushes operational alerts to the admin team.
type AdminAlerter interface {
	NotifyNewOrder(order OrderNotification) error
	NotifyUrgentTicket(ticket TicketNotification) error
}

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	client      *http.Client
	baseURL     string
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		client:      &http.Client{Timeout: 10 * time.Second},
		baseURL:     "https://api.telegram.org",
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		log.Println("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// OrderNotification contains order data for Telegram notification.
type OrderNotification struct {
	OrderID       string
	PaypalOrderID string
	Items         []OrderItemNotification
	TotalAmount   float64
	CustomerName  string
	CustomerEmail string
	PaymentMethod string
	Status        string
}

// OrderItemNotification contains order item data.
type OrderItemNotification struct {
	Name     string
	Quantity int
	Price    float64
}

// TicketNotification describes a ticket that needs admin attention.
type TicketNotification struct {
	TicketID    string
	Title       string
	Priority    string
	Category    string
	CreatorName string
}

// FormatPrice renders a USD amount with thousand separators and cents.
func FormatPrice(amount float64) string {
	cents := int64(amount*100 + 0.5)
	str := fmt.Sprintf("%d", cents/100)

	var result strings.Builder
	length := len(str)
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}

	return fmt.Sprintf("$%s.%02d", result.String(), cents%100)
}

// FormatOrderMessage builds the admin chat text for a new order.
func FormatOrderMessage(order OrderNotification) string {
	var itemsList strings.Builder
	for i, item := range order.Items {
		itemsList.WriteString(fmt.Sprintf("%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.Name),
			item.Quantity,
			FormatPrice(item.Price),
			FormatPrice(item.Price*float64(item.Quantity)),
		))
	}

	message := fmt.Sprintf(`<b>🛒 NEW ORDER</b>
<b>📋 Order:</b> %s
<b>👤 Customer:</b> %s (%s)
<b>📦 Items:</b>
%s
<b>💰 Total:</b> %s
<b>💳 Payment:</b> %s
<b>📍 Status:</b> %s`,
		order.PaypalOrderID,
		html.EscapeString(order.CustomerName),
		html.EscapeString(order.CustomerEmail),
		itemsList.String(),
		FormatPrice(order.TotalAmount),
		order.PaymentMethod,
		order.Status,
	)

	return strings.TrimSpace(message)
}

// NotifyNewOrder sends notification about new order to admin chat.
func (s *TelegramService) NotifyNewOrder(order OrderNotification) error {
	if s.adminChatID == "" {
		return nil
	}
	return s.SendToAdmin(FormatOrderMessage(order))
}

// NotifyUrgentTicket alerts admins about a high priority ticket.
func (s *TelegramService) NotifyUrgentTicket(ticket TicketNotification) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>🚨 HIGH PRIORITY TICKET</b>
<b>📝 Title:</b> %s
<b>🏷 Category:</b> %s
<b>👤 From:</b> %s
<b>🆔 ID:</b> %s`,
		html.EscapeString(ticket.Title),
		html.EscapeString(ticket.Category),
		html.EscapeString(ticket.CreatorName),
		ticket.TicketID,
	)

	return s.SendToAdmin(message)
}
