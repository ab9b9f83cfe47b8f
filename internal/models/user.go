package models

import (
	"time"
)

// Roles a user can hold.
const (
	RoleClient  = "client"
	RoleSupport = "support"
	RoleAdmin   = "admin"
)

// Authentication providers.
const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
)

// User is a client, support agent or administrator.
type User struct {
	BaseModel
	Name          string `json:"name"`
	Email         string `gorm:"uniqueIndex" json:"email"`
	PasswordHash  string `json:"-"`
	Provider      string `json:"provider"`
	Role          string `gorm:"index" json:"role"`
	ImageURL      string `json:"image_url"`
	ImagePublicID string `json:"image_public_id"`
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleClient, RoleSupport, RoleAdmin:
		return true
	}
	return false
}

// PasswordResetToken keeps track of reset codes e-mailed to users.
type PasswordResetToken struct {
	BaseModel
	Email     string     `gorm:"index" json:"email"`
	Token     string     `gorm:"uniqueIndex" json:"-"`
	Code      string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	Verified  bool       `json:"verified"`
	UsedAt    *time.Time `json:"used_at"`
}
