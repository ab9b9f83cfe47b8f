package models

// StoreSettings holds the contact details shown in the storefront footer and
// on the help center. There is at most one row.
type StoreSettings struct {
	BaseModel
	SupportEmail  string `json:"support_email"`
	SupportPhone  string `json:"support_phone"`
	Address       string `json:"address"`
	BusinessHours string `json:"business_hours"`
	Copyright     string `json:"copyright"`

	Instagram string `json:"instagram"`
	Facebook  string `json:"facebook"`
	TikTok    string `json:"tiktok"`
	Youtube   string `json:"youtube"`

	InstagramEnabled bool `json:"instagram_enabled"`
	FacebookEnabled  bool `json:"facebook_enabled"`
	TikTokEnabled    bool `json:"tiktok_enabled"`
	YoutubeEnabled   bool `json:"youtube_enabled"`
}
