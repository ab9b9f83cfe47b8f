package models

// Category kinds.
const (
	KindCategory   = "category"
	KindCollection = "collection"
)

// Category groups products. A collection is a category with kind "collection".
type Category struct {
	BaseModel
	Name        string `json:"name"`
	Slug        string `gorm:"uniqueIndex" json:"slug"`
	Description string `json:"description"`
	Kind        string `gorm:"index" json:"kind"`
}
