package authn

import (
	"strings"

	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/trust"
	"github.com/gofiber/fiber/v2"
)

// SignatureHeader carries the consumer's detached request signature.
const SignatureHeader = "X-Signature"

// Middleware authenticates consumer-relayed requests with Fiber.
type Middleware struct {
	orchestrator *Orchestrator
}

// NewMiddleware creates the request-verification middleware.
func NewMiddleware(orchestrator *Orchestrator) *Middleware {
	return &Middleware{orchestrator: orchestrator}
}

// Authenticate validates the consumer API key, the optional request
// signature, and the bearer token, then stores the resulting identity in
// the request locals.
func (m *Middleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authCtx, err := m.orchestrator.VerifyRequest(c.Context(), VerifyRequestInput{
			APIKey:          apiKeyFrom(c),
			CallerIP:        c.IP(),
			Bearer:          bearerFrom(c),
			SignatureHeader: c.Get(SignatureHeader),
			Method:          c.Method(),
			Path:            c.Path(),
			Body:            c.Body(),
		})
		if err != nil {
			return err
		}

		c.Locals("auth", authCtx)
		return c.Next()
	}
}

// RequireSigned rejects requests that authenticated without a request
// signature. For endpoints where bearer possession alone is not enough.
func (m *Middleware) RequireSigned() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authCtx := AuthFrom(c)
		if authCtx == nil || !authCtx.Signed {
			return trust.ErrUnauthorized()
		}
		return c.Next()
	}
}

// AuthFrom extracts the identity placed by Authenticate, or nil.
func AuthFrom(c *fiber.Ctx) *kernel.AuthContext {
	authCtx, ok := c.Locals("auth").(*kernel.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

func apiKeyFrom(c *fiber.Ctx) string {
	return c.Get("X-API-Key")
}

func bearerFrom(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
