package models

import (
	"github.com/google/uuid"
)

// Payment statuses.
const (
	OrderPending = "pending"
	OrderPaid    = "paid"
	OrderFailed  = "failed"
)

// Payment methods.
const (
	PaymentPaypal  = "paypal"
	PaymentTesting = "testing"
)

// Shipping statuses.
const (
	ShippingPending    = "pending"
	ShippingProcessing = "processing"
	ShippingShipped    = "shipped"
	ShippingDelivered  = "delivered"
	ShippingCancelled  = "cancelled"
)

type Order struct {
	BaseModel
	UserID         uuid.UUID   `gorm:"type:uuid;index" json:"user_id"`
	User           *User       `json:"user,omitempty"`
	PaypalOrderID  string      `gorm:"uniqueIndex" json:"paypal_order_id"`
	Items          []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Total          float64     `json:"total"`
	Status         string      `gorm:"index" json:"status"`
	PaymentMethod  string      `json:"payment_method"`
	ShippingStatus string      `gorm:"index" json:"shipping_status"`
}

// OrderItem is a product snapshot taken when the order was placed.
type OrderItem struct {
	BaseModel
	OrderID    uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	ProductID  uuid.UUID `gorm:"type:uuid" json:"product_id"`
	Quantity   int       `json:"qty"`
	PriceAtAdd float64   `json:"price_at_add"`
	Variant    string    `json:"variant,omitempty"`
	Title      string    `json:"title"`
	Image      string    `json:"image"`
}

// ValidShippingStatus reports whether status is a known shipping status.
func ValidShippingStatus(status string) bool {
	switch status {
	case ShippingPending, ShippingProcessing, ShippingShipped, ShippingDelivered, ShippingCancelled:
		return true
	}
	return false
}
