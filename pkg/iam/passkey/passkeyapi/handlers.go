package passkeyapi

import (
	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/iam/passkey"
	"github.com/aibles/iam/pkg/iam/passkey/passkeysrv"
	"github.com/aibles/iam/pkg/iam/token"
	"github.com/aibles/iam/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// Handlers exposes the passkey ceremony and credential management routes.
type Handlers struct {
	service *passkeysrv.PasskeyService
}

func NewHandlers(service *passkeysrv.PasskeyService) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes mounts the passkey routes under /api/v1/auth/passkey.
// Registration and credential management require an authenticated caller;
// the authentication ceremony is public.
func (h *Handlers) RegisterRoutes(app fiber.Router, mw *token.Middleware) {
	group := app.Group("/api/v1/auth/passkey")

	group.Post("/register/start", mw.Authenticate(), h.registerStart)
	group.Post("/register/finish", mw.Authenticate(), h.registerFinish)

	group.Post("/authenticate/start", h.authenticateStart)
	group.Post("/authenticate/finish", h.authenticateFinish)

	group.Get("/credentials", mw.Authenticate(), h.listCredentials)
	group.Delete("/credentials/:id", mw.Authenticate(), h.deleteCredential)
}

func (h *Handlers) registerStart(c *fiber.Ctx) error {
	authCtx := token.AuthFromLocals(c)
	if authCtx == nil {
		return errx.New("Authentication required", errx.TypeAuthorization)
	}

	options, err := h.service.RegisterStart(c.Context(), authCtx.UserID)
	if err != nil {
		return err
	}
	return c.JSON(options)
}

// registerFinishRequest is flat on the wire: the ceremony fields sit next
// to sessionId rather than under a nested credential object.
type registerFinishRequest struct {
	passkey.AttestationResponse
	SessionID   string  `json:"sessionId"`
	DisplayName *string `json:"displayName,omitempty"`
}

func (h *Handlers) registerFinish(c *fiber.Ctx) error {
	authCtx := token.AuthFromLocals(c)
	if authCtx == nil {
		return errx.New("Authentication required", errx.TypeAuthorization)
	}

	var req registerFinishRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("Invalid request body", errx.TypeValidation)
	}
	if req.SessionID == "" {
		return errx.New("sessionId is required", errx.TypeValidation)
	}

	credential, err := h.service.RegisterFinish(c.Context(), authCtx.UserID, req.SessionID, req.AttestationResponse, req.DisplayName)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(credential)
}

func (h *Handlers) authenticateStart(c *fiber.Ctx) error {
	options, err := h.service.AuthenticateStart(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(options)
}

type authenticateFinishRequest struct {
	passkey.AssertionResponse
	SessionID string `json:"sessionId"`
}

func (h *Handlers) authenticateFinish(c *fiber.Ctx) error {
	var req authenticateFinishRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("Invalid request body", errx.TypeValidation)
	}
	if req.SessionID == "" {
		return errx.New("sessionId is required", errx.TypeValidation)
	}

	result, err := h.service.AuthenticateFinish(c.Context(), req.SessionID, req.AssertionResponse)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *Handlers) listCredentials(c *fiber.Ctx) error {
	authCtx := token.AuthFromLocals(c)
	if authCtx == nil {
		return errx.New("Authentication required", errx.TypeAuthorization)
	}

	credentials, err := h.service.List(c.Context(), authCtx.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"credentials": credentials})
}

func (h *Handlers) deleteCredential(c *fiber.Ctx) error {
	authCtx := token.AuthFromLocals(c)
	if authCtx == nil {
		return errx.New("Authentication required", errx.TypeAuthorization)
	}

	id, err := kernel.ParseCredentialID(c.Params("id"))
	if err != nil {
		return errx.New("Invalid credential id", errx.TypeValidation)
	}

	if err := h.service.Delete(c.Context(), authCtx.UserID, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
