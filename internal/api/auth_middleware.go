package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/notifmoo/notif/internal/apperrors"
	"github.com/notifmoo/notif/internal/auth"
)

const localsUserID = "user_id"

// RequireUser validates the Bearer token and stores the user id in locals.
func RequireUser(jwt *auth.JWTManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return apperrors.Auth("missing bearer token")
		}

		userID, err := jwt.Validate(token)
		if err != nil {
			return apperrors.Auth("invalid or expired token")
		}

		c.Locals(localsUserID, userID)
		return c.Next()
	}
}

// currentUserID returns the authenticated user id set by RequireUser.
func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := c.Locals(localsUserID).(uuid.UUID)
	if !ok {
		return uuid.Nil, apperrors.Auth("not authenticated")
	}
	return id, nil
}
