package models

// HeroSlide is a storefront landing carousel entry.
type HeroSlide struct {
	BaseModel
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	ButtonLabel string `json:"button_label"`
	ButtonLink  string `json:"button_link"`
	Image       string `json:"image"`
}
