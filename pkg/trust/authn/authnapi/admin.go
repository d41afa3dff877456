package authnapi

import (
	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/trust/authn"
	"github.com/Abraxas-365/trustgate/pkg/trust/providerkey/keysrv"
	"github.com/gofiber/fiber/v2"
)

// AdminHandlers exposes operator-only endpoints: account unlock and
// signing-key lifecycle. The caller supplies the gate middleware; these
// handlers assume it already ran.
type AdminHandlers struct {
	orchestrator *authn.Orchestrator
	keys         *keysrv.KeyService
}

// NewAdminHandlers creates the administrative handlers.
func NewAdminHandlers(orchestrator *authn.Orchestrator, keys *keysrv.KeyService) *AdminHandlers {
	return &AdminHandlers{orchestrator: orchestrator, keys: keys}
}

// RegisterRoutes mounts the admin surface behind the given gate.
func (h *AdminHandlers) RegisterRoutes(app *fiber.App, gate fiber.Handler) {
	admin := app.Group("/admin", gate)
	admin.Post("/users/:id/unlock", h.unlockUser)
	admin.Post("/keys/rotate", h.rotateKey)
	admin.Post("/keys/:id/revoke", h.revokeKey)
	admin.Get("/keys/active", h.activeKey)
}

func (h *AdminHandlers) unlockUser(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return errx.New("Missing user id", errx.TypeValidation)
	}

	if err := h.orchestrator.UnlockAccount(c.Context(), kernel.NewUserID(id)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"unlocked": true})
}

func (h *AdminHandlers) rotateKey(c *fiber.Ctx) error {
	key, err := h.keys.Rotate(c.Context(), "admin-api")
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(key)
}

func (h *AdminHandlers) revokeKey(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return errx.New("Missing key id", errx.TypeValidation)
	}

	if err := h.keys.Revoke(c.Context(), kernel.NewKeyID(id)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"revoked": true})
}

func (h *AdminHandlers) activeKey(c *fiber.Ctx) error {
	key, _, err := h.keys.SigningKey(c.Context())
	if err != nil {
		return err
	}
	// The JSON tags already hide the encrypted private half.
	return c.JSON(key)
}
