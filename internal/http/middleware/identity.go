package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	di "github.com/open-builders/giveaway-draw/internal/domain/identity"
)

// Context keys for the resolved caller.
const (
	UserIdCtxParam     = "user_id"
	ExternalIdCtxParam = "external_id"
)

// Header names carrying the caller's messaging-platform identity.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

// IdentityResolver finds the caller by external id, creating it on first
// contact.
type IdentityResolver interface {
	Resolve(ctx context.Context, externalID, displayName string) (*di.Identity, error)
}

// IdentityMiddleware resolves the caller from the X-User-ID header and stores
// its internal id in context. Requests without the header are rejected with 401.
func IdentityMiddleware(resolver IdentityResolver, onError fiber.ErrorHandler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		externalID := strings.TrimSpace(c.Get(HeaderUserID))
		if externalID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing " + HeaderUserID})
		}

		u, err := resolver.Resolve(c.UserContext(), externalID, c.Get(HeaderUserName))
		if err != nil {
			return onError(c, err)
		}

		c.Locals(UserIdCtxParam, u.ID)
		c.Locals(ExternalIdCtxParam, u.ExternalID)
		return c.Next()
	}
}

// UserID returns the caller id stored by IdentityMiddleware, or 0.
func UserID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(UserIdCtxParam).(int64)
	return id
}
