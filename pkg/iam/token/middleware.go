package token

import (
	"strings"

	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// Middleware guards routes with access-token validation.
type Middleware struct {
	signer Signer
}

func NewMiddleware(signer Signer) *Middleware {
	return &Middleware{signer: signer}
}

// Authenticate validates the bearer token and injects the AuthContext into
// fiber locals under "auth".
func (m *Middleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return errx.New("Missing Authorization header", errx.TypeAuthorization)
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return errx.New("Malformed Authorization header", errx.TypeAuthorization)
		}

		claims, err := m.signer.ValidateAccessToken(parts[1])
		if err != nil {
			return err
		}

		c.Locals("auth", &kernel.AuthContext{
			UserID: claims.UserID,
			Email:  claims.Email,
			Roles:  claims.Roles,
		})

		return c.Next()
	}
}

// RequireAdmin allows only authenticated callers carrying the ADMIN role.
// It must run after Authenticate.
func (m *Middleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authCtx, ok := c.Locals("auth").(*kernel.AuthContext)
		if !ok || !authCtx.IsValid() {
			return errx.New("Authentication required", errx.TypeAuthorization)
		}

		if !authCtx.IsAdmin() {
			return errx.New("Admin role required", errx.TypeForbidden)
		}

		return c.Next()
	}
}

// AuthFromLocals returns the AuthContext stored by Authenticate, or nil.
func AuthFromLocals(c *fiber.Ctx) *kernel.AuthContext {
	authCtx, ok := c.Locals("auth").(*kernel.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}
