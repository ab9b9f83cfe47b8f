package services

import (
	"context"
	"errors"

	"google.golang.org/api/idtoken"
)

// GoogleProfile is the identity extracted from a Google ID token.
type GoogleProfile struct {
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// ErrEmailNotVerified is returned for tokens whose email Google has not verified.
var ErrEmailNotVerified = errors.New("google email is not verified")

// GoogleVerifier validates Google sign-in tokens.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (GoogleProfile, error)
}

// GoogleAuthService validates ID tokens against the OAuth client id.
type GoogleAuthService struct {
	ClientID string
}

// NewGoogleAuthService creates a GoogleAuthService.
func NewGoogleAuthService(clientID string) *GoogleAuthService {
	return &GoogleAuthService{ClientID: clientID}
}

// Verify validates the token signature, audience and expiry.
func (g *GoogleAuthService) Verify(ctx context.Context, token string) (GoogleProfile, error) {
	if g.ClientID == "" {
		return GoogleProfile{}, errors.New("google sign-in is not configured")
	}

	payload, err := idtoken.Validate(ctx, token, g.ClientID)
	if err != nil {
		return GoogleProfile{}, err
	}

	return profileFromClaims(payload.Claims)
}

// profileFromClaims reads the identity claims of a validated token.
func profileFromClaims(claims map[string]interface{}) (GoogleProfile, error) {
	email, _ := claims["email"].(string)
	if email == "" {
		return GoogleProfile{}, errors.New("google token has no email")
	}

	// email_verified is a JSON boolean, older tokens carry it as a string.
	verified := false
	switch v := claims["email_verified"].(type) {
	case bool:
		verified = v
	case string:
		verified = v == "true"
	}
	if !verified {
		return GoogleProfile{}, ErrEmailNotVerified
	}

	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)

	return GoogleProfile{Email: email, EmailVerified: true, Name: name, Picture: picture}, nil
}
