package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// CronSecretHeader carries the shared secret of scheduled job triggers.
const CronSecretHeader = "x-cron-secret"

// CronSecret guards job endpoints. An empty secret rejects every call.
func CronSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := c.Get(CronSecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		return c.Next()
	}
}
