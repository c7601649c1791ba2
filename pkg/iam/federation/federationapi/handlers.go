package federationapi

import (
	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/iam/federation/federationsrv"
	"github.com/gofiber/fiber/v2"
)

// Handlers exposes the federated login routes.
type Handlers struct {
	service *federationsrv.FederationService
}

func NewHandlers(service *federationsrv.FederationService) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes mounts the Google login routes under /api/v1/auth/google.
func (h *Handlers) RegisterRoutes(app fiber.Router) {
	group := app.Group("/api/v1/auth/google")
	group.Get("/login", h.login)
	group.Get("/callback", h.callback)
}

// login redirects the browser to the provider consent screen.
func (h *Handlers) login(c *fiber.Ctx) error {
	authURL, err := h.service.Begin(c.Context())
	if err != nil {
		return err
	}
	return c.Redirect(authURL, fiber.StatusFound)
}

// callback completes the flow and answers with the account and tokens.
func (h *Handlers) callback(c *fiber.Ctx) error {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		return errx.New("state and code are required", errx.TypeValidation)
	}

	result, err := h.service.Complete(c.Context(), state, code)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
