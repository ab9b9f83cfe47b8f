package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/helpdeskpro/internal/config"
	"github.com/example/helpdeskpro/internal/models"
	"github.com/example/helpdeskpro/internal/services"
	"github.com/example/helpdeskpro/internal/utils"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	db       *gorm.DB
	cfg      *config.Config
	notifier *services.Notifier
	google   services.GoogleVerifier
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, notifier *services.Notifier, google services.GoogleVerifier) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, notifier: notifier, google: google}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *AuthHandler) authResponse(c *fiber.Ctx, status int, user *models.User) error {
	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, user.Role, h.cfg.TokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

// Register creates a new client account.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if err := utils.Validate(&req); err != nil {
		return err
	}

	var count int64
	if err := h.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fiber.NewError(fiber.StatusConflict, "email already registered")
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Provider:     models.ProviderCredentials,
		Role:         models.RoleClient,
	}
	if err := h.db.Create(&user).Error; err != nil {
		return err
	}

	h.notifier.Welcome(&user)

	return h.authResponse(c, fiber.StatusCreated, &user)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates an existing user with email and password.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = normalizeEmail(req.Email)
	if err := utils.Validate(&req); err != nil {
		return err
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}

	if user.PasswordHash == "" || !utils.CheckPassword(user.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	return h.authResponse(c, fiber.StatusOK, &user)
}

type googleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// GoogleLogin signs a user in with a Google ID token, creating the account on first use.
func (h *AuthHandler) GoogleLogin(c *fiber.Ctx) error {
	var req googleLoginRequest
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}

	profile, err := h.google.Verify(c.UserContext(), req.IDToken)
	if err != nil {
		log.Printf("[Auth] Google token rejected: %v", err)
		return fiber.NewError(fiber.StatusUnauthorized, "invalid google token")
	}
	if !profile.EmailVerified {
		return fiber.NewError(fiber.StatusUnauthorized, "google email is not verified")
	}

	email := normalizeEmail(profile.Email)
	var user models.User
	err = h.db.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		return h.authResponse(c, fiber.StatusOK, &user)
	case err != gorm.ErrRecordNotFound:
		return err
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	user = models.User{
		Name:     name,
		Email:    email,
		Provider: models.ProviderGoogle,
		Role:     models.RoleClient,
		ImageURL: profile.Picture,
	}
	if err := h.db.Create(&user).Error; err != nil {
		return err
	}

	h.notifier.Welcome(&user)

	return h.authResponse(c, fiber.StatusCreated, &user)
}
