package models

import "github.com/google/uuid"

// Product statuses.
const (
	ProductActive   = "active"
	ProductInactive = "inactive"
)

type Product struct {
	BaseModel
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Brand        string           `json:"brand"`
	CategoryID   uuid.UUID        `gorm:"type:uuid;index" json:"category_id"`
	Category     *Category        `json:"category,omitempty"`
	CollectionID *uuid.UUID       `gorm:"type:uuid;index" json:"collection_id"`
	Collection   *Category        `json:"collection,omitempty"`
	Price        float64          `json:"price"`
	Discount     float64          `json:"discount"`
	Colors       []string         `gorm:"serializer:json" json:"colors"`
	Sizes        []string         `gorm:"serializer:json" json:"sizes"`
	Variants     []ProductVariant `gorm:"constraint:OnDelete:CASCADE" json:"variants"`
	Images       []ProductImage   `gorm:"constraint:OnDelete:CASCADE" json:"images"`
	Status       string           `gorm:"index" json:"status"`
}

type ProductVariant struct {
	BaseModel
	ProductID uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	Color     string    `json:"color"`
	Size      string    `json:"size"`
	Stock     int       `json:"stock"`
}

type ProductImage struct {
	BaseModel
	ProductID    uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	URL          string    `json:"url"`
	PublicID     string    `json:"public_id"`
	DisplayOrder int       `json:"display_order"`
}

// EffectivePrice applies the percentage discount to the list price.
func (p *Product) EffectivePrice() float64 {
	if p.Discount > 0 {
		return p.Price - p.Price*(p.Discount/100)
	}
	return p.Price
}

// PrimaryImage returns the first image URL or fallback.
func (p *Product) PrimaryImage(fallback string) string {
	if len(p.Images) > 0 && p.Images[0].URL != "" {
		return p.Images[0].URL
	}
	return fallback
}
