package authnapi

import (
	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/trust"
	"github.com/Abraxas-365/trustgate/pkg/trust/authn"
	"github.com/Abraxas-365/trustgate/pkg/trust/mfa"
	"github.com/Abraxas-365/trustgate/pkg/trust/mfa/mfasrv"
	"github.com/gofiber/fiber/v2"
)

// AuthHandlers exposes the broker's authentication flows over HTTP.
type AuthHandlers struct {
	orchestrator *authn.Orchestrator
	mfaEngine    *mfasrv.Engine
}

// NewAuthHandlers creates the authentication handlers.
func NewAuthHandlers(orchestrator *authn.Orchestrator, mfaEngine *mfasrv.Engine) *AuthHandlers {
	return &AuthHandlers{orchestrator: orchestrator, mfaEngine: mfaEngine}
}

// RegisterRoutes mounts the authentication surface.
//
// The login endpoints sit outside the bearer middleware; everything under
// /api/v1 requires a verified consumer request.
func (h *AuthHandlers) RegisterRoutes(app *fiber.App, mw *authn.Middleware) {
	auth := app.Group("/auth")
	auth.Post("/login", h.login)
	auth.Post("/challenge", h.challenge)
	auth.Post("/logout", h.logout)

	api := app.Group("/api/v1", mw.Authenticate())
	api.Get("/me", h.me)
	api.Post("/password", h.changePassword)
	api.Post("/logout-everywhere", h.logoutEverywhere)

	mfaGroup := api.Group("/mfa")
	mfaGroup.Post("/totp/setup", h.setupTOTP)
	mfaGroup.Post("/delivery/setup", h.setupDelivery)
	mfaGroup.Post("/enable", h.enableMFA)
	mfaGroup.Post("/disable", h.disableMFA)
	mfaGroup.Post("/backup-codes", h.regenerateBackupCodes)
}

func (h *AuthHandlers) login(c *fiber.Ctx) error {
	var req authn.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("Invalid request body", errx.TypeValidation)
	}
	req.CallerIP = c.IP()

	result, err := h.orchestrator.Login(c.Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *AuthHandlers) challenge(c *fiber.Ctx) error {
	var req authn.ChallengeRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("Invalid request body", errx.TypeValidation)
	}
	req.CallerIP = c.IP()

	if err := h.orchestrator.Challenge(c.Context(), req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"sent": true})
}

func (h *AuthHandlers) logout(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return errx.New("Invalid request body", errx.TypeValidation)
	}

	if err := h.orchestrator.Logout(c.Context(), req.Token); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"revoked": true})
}

func (h *AuthHandlers) me(c *fiber.Ctx) error {
	authCtx := authn.AuthFrom(c)
	if authCtx == nil {
		return trust.ErrUnauthorized()
	}
	return c.JSON(authCtx)
}

func (h *AuthHandlers) changePassword(c *fiber.Ctx) error {
	authCtx := authn.AuthFrom(c)
	if authCtx == nil {
		return trust.ErrUnauthorized()
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errx.New("Invalid request body", errx.TypeValidation)
	}

	if err := h.orchestrator.ChangePassword(c.Context(), authCtx.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"changed": true})
}

func (h *AuthHandlers) logoutEverywhere(c *fiber.Ctx) error {
	authCtx := authn.AuthFrom(c)
	if authCtx == nil {
		return trust.ErrUnauthorized()
	}

	n, err := h.orchestrator.LogoutEverywhere(c.Context(), authCtx.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"revoked": n})
}

func (h *AuthHandlers) setupTOTP(c *fiber.Ctx) error {
	authCtx := authn.AuthFrom(c)
	if authCtx == nil {
		return trust.ErrUnauthorized()
	}

	result, err := h.mfaEngine.SetupTOTP(c.Context(), authCtx.UserID, authCtx.UserID.String())
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *AuthHandlers) setupDelivery(c *fiber.Ctx) error {
	authCtx := authn.AuthFrom(c)
	if authCtx == nil {
		return trust.ErrUnauthorized()
	}

	var req struct {
		Method      string `json:"method"`
		Destination string `json:"destination"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errx.New("Invalid request body", errx.TypeValidation)
	}

	if err := h.mfaEngine.SetupDelivery(c.Context(), authCtx.UserID, mfa.Method(req.Method), req.Destination); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"sent": true})
}

func (h *AuthHandlers) enableMFA(c *fiber.Ctx) error {
	authCtx := authn.AuthFrom(c)
	if authCtx == nil {
		return trust.ErrUnauthorized()
	}

	var req struct {
		Method string `json:"method"`
		Code   string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errx.New("Invalid request body", errx.TypeValidation)
	}

	backupCodes, err := h.mfaEngine.VerifyAndEnable(c.Context(), authCtx.UserID, mfa.Method(req.Method), req.Code)
	if err != nil {
		return err
	}

	response := fiber.Map{"enabled": true}
	if backupCodes != nil {
		response["backup_codes"] = backupCodes
	}
	return c.JSON(response)
}

func (h *AuthHandlers) disableMFA(c *fiber.Ctx) error {
	authCtx := authn.AuthFrom(c)
	if authCtx == nil {
		return trust.ErrUnauthorized()
	}

	var req struct {
		Method   string `json:"method"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return errx.New("Invalid request body", errx.TypeValidation)
	}

	if err := h.orchestrator.DisableMFA(c.Context(), authCtx.UserID, mfa.Method(req.Method), req.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"disabled": true})
}

func (h *AuthHandlers) regenerateBackupCodes(c *fiber.Ctx) error {
	authCtx := authn.AuthFrom(c)
	if authCtx == nil {
		return trust.ErrUnauthorized()
	}

	codes, err := h.mfaEngine.RegenerateBackupCodes(c.Context(), authCtx.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"backup_codes": codes})
}
