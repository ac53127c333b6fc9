package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/veloshop/veloshop_auth/internal/apperr"
	"github.com/veloshop/veloshop_auth/internal/token"
)

const identityLocal = "identity"

// BearerToken extracts the bearer credential from the Authorization header,
// empty when absent or malformed.
func BearerToken(c *fiber.Ctx) string {
	authz := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("Bearer "):])
}

// RequireAuth verifies the access token on every call and stores the
// resulting identity for handlers. There is no ambient session: a request
// without a live, signature-valid, unexpired token never reaches a handler.
func RequireAuth(tokens *token.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := BearerToken(c)
		if tokenString == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		id, err := tokens.VerifyAccess(c.UserContext(), tokenString)
		if err != nil {
			return fiber.NewError(apperr.Status(err), apperr.Message(err))
		}
		c.Locals(identityLocal, id)
		return c.Next()
	}
}

// IdentityFrom returns the identity stored by RequireAuth.
func IdentityFrom(c *fiber.Ctx) (token.Identity, error) {
	id, ok := c.Locals(identityLocal).(token.Identity)
	if !ok {
		return token.Identity{}, apperr.E(apperr.KindUnauthorized, "missing bearer token")
	}
	return id, nil
}
