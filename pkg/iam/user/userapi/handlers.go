package userapi

import (
	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/iam/token"
	"github.com/aibles/iam/pkg/iam/user"
	"github.com/aibles/iam/pkg/iam/user/usersrv"
	"github.com/aibles/iam/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// Handlers exposes the user directory routes.
type Handlers struct {
	service *usersrv.UserService
}

func NewHandlers(service *usersrv.UserService) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes mounts the user routes under /api/v1/users. Directory
// management is admin-only; every account can read and edit itself.
func (h *Handlers) RegisterRoutes(app fiber.Router, mw *token.Middleware) {
	group := app.Group("/api/v1/users", mw.Authenticate())

	group.Get("/me", h.me)

	group.Post("/", mw.RequireAdmin(), h.create)
	group.Get("/", mw.RequireAdmin(), h.list)
	group.Patch("/:id/status", mw.RequireAdmin(), h.changeStatus)
	group.Delete("/:id", mw.RequireAdmin(), h.delete)

	group.Get("/:id", h.get)
	group.Patch("/:id", h.updateProfile)
}

func (h *Handlers) me(c *fiber.Ctx) error {
	authCtx := token.AuthFromLocals(c)
	if authCtx == nil {
		return errx.New("Authentication required", errx.TypeAuthorization)
	}

	u, err := h.service.Get(c.Context(), authCtx.UserID)
	if err != nil {
		return err
	}
	return c.JSON(u)
}

type createUserRequest struct {
	Email       string  `json:"email"`
	DisplayName *string `json:"display_name,omitempty"`
}

func (h *Handlers) create(c *fiber.Ctx) error {
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("Invalid request body", errx.TypeValidation)
	}

	u, err := h.service.Create(c.Context(), req.Email, req.DisplayName)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(u)
}

func (h *Handlers) list(c *fiber.Ctx) error {
	opts := kernel.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	}

	page, err := h.service.List(c.Context(), opts)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// pathUserID resolves the :id parameter and enforces that non-admin
// callers only reach their own account.
func pathUserID(c *fiber.Ctx) (kernel.UserID, error) {
	authCtx := token.AuthFromLocals(c)
	if authCtx == nil {
		return "", errx.New("Authentication required", errx.TypeAuthorization)
	}

	id, err := kernel.ParseUserID(c.Params("id"))
	if err != nil {
		return "", errx.New("Invalid user id", errx.TypeValidation)
	}

	if id != authCtx.UserID && !authCtx.IsAdmin() {
		return "", errx.New("Access denied", errx.TypeForbidden)
	}
	return id, nil
}

func (h *Handlers) get(c *fiber.Ctx) error {
	id, err := pathUserID(c)
	if err != nil {
		return err
	}

	u, err := h.service.Get(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(u)
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
}

func (h *Handlers) updateProfile(c *fiber.Ctx) error {
	id, err := pathUserID(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("Invalid request body", errx.TypeValidation)
	}
	if req.DisplayName == "" {
		return errx.New("display_name is required", errx.TypeValidation)
	}

	u, err := h.service.UpdateProfile(c.Context(), id, req.DisplayName)
	if err != nil {
		return err
	}
	return c.JSON(u)
}

type changeStatusRequest struct {
	Status user.Status `json:"status"`
}

func (h *Handlers) changeStatus(c *fiber.Ctx) error {
	id, err := kernel.ParseUserID(c.Params("id"))
	if err != nil {
		return errx.New("Invalid user id", errx.TypeValidation)
	}

	var req changeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("Invalid request body", errx.TypeValidation)
	}
	if req.Status != user.StatusActive && req.Status != user.StatusDisabled {
		return errx.New("status must be ACTIVE or DISABLED", errx.TypeValidation)
	}

	u, err := h.service.ChangeStatus(c.Context(), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(u)
}

func (h *Handlers) delete(c *fiber.Ctx) error {
	id, err := kernel.ParseUserID(c.Params("id"))
	if err != nil {
		return errx.New("Invalid user id", errx.TypeValidation)
	}

	if err := h.service.Delete(c.Context(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
