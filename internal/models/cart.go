package models

import "github.com/google/uuid"

// Cart is the pending product selection of a signed-in user.
type Cart struct {
	BaseModel
	UserID uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	Items  []CartItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
}

// CartItem is unique per cart, product and variant. PriceAtAdd is captured once.
type CartItem struct {
	BaseModel
	CartID     uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_line" json:"cart_id"`
	ProductID  uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_cart_line" json:"product_id"`
	Variant    string    `gorm:"uniqueIndex:idx_cart_line;not null;default:''" json:"variant"`
	Quantity   int       `json:"qty"`
	PriceAtAdd float64   `json:"price_at_add"`
}
