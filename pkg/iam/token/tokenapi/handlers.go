package tokenapi

import (
	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/iam/token/tokensrv"
	"github.com/gofiber/fiber/v2"
)

// Handlers exposes the token lifecycle endpoints.
type Handlers struct {
	service *tokensrv.TokenService
}

func NewHandlers(service *tokensrv.TokenService) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes mounts the token routes under /api/v1/auth.
func (h *Handlers) RegisterRoutes(app fiber.Router) {
	auth := app.Group("/api/v1/auth")
	auth.Post("/refresh", h.refresh)
	auth.Post("/logout", h.logout)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// refresh rotates a refresh token into a new token pair.
func (h *Handlers) refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("Invalid request body", errx.TypeValidation)
	}
	if req.RefreshToken == "" {
		return errx.New("refresh_token is required", errx.TypeValidation)
	}

	pair, err := h.service.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return c.JSON(pair)
}

// logout consumes the refresh token and revokes every session of its owner.
// Unknown tokens still answer 204 so logout is safe to retry.
func (h *Handlers) logout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("Invalid request body", errx.TypeValidation)
	}
	if req.RefreshToken == "" {
		return errx.New("refresh_token is required", errx.TypeValidation)
	}

	if err := h.service.Revoke(c.Context(), req.RefreshToken); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
