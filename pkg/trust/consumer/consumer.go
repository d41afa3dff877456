package consumer

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/cryptox"
	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
)

// Consumer is a registered client application trusted to authenticate end
// users through the broker. It signs its requests with its own private key;
// the broker stores only the public half.
type Consumer struct {
	ID           kernel.ConsumerID `db:"id" json:"id"`
	Name         string            `db:"name" json:"name"`
	APIKeyHash   string            `db:"api_key_hash" json:"-"`
	PublicKeyPEM string            `db:"public_key_pem" json:"public_key_pem"`
	KeyAlgorithm cryptox.Algorithm `db:"key_algorithm" json:"key_algorithm"`
	KeyVersion   int               `db:"key_version" json:"key_version"`
	AllowedIPs   []string          `db:"allowed_ips" json:"allowed_ips,omitempty"`
	IsActive     bool              `db:"is_active" json:"is_active"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

// AllowsIP reports whether the caller IP passes the allow-list. An empty
// allow-list admits any address.
func (c *Consumer) AllowsIP(ip string) bool {
	if len(c.AllowedIPs) == 0 {
		return true
	}
	for _, allowed := range c.AllowedIPs {
		if allowed == ip {
			return true
		}
	}
	return false
}

// CanSignRequests reports whether the consumer has a registered public key.
func (c *Consumer) CanSignRequests() bool {
	return c.PublicKeyPEM != "" && c.KeyAlgorithm != ""
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("CONSUMER")

var (
	CodeConsumerNotFound  = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Consumer not found")
	CodeConsumerInactive  = ErrRegistry.Register("INACTIVE", errx.TypeAuthorization, http.StatusForbidden, "Consumer is not active")
	CodeConsumerIPDenied  = ErrRegistry.Register("IP_DENIED", errx.TypeAuthorization, http.StatusForbidden, "Caller address is not allowed for this consumer")
	CodeInvalidAPIKey     = ErrRegistry.Register("INVALID_API_KEY", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid API key")
)

func ErrConsumerNotFound() *errx.Error {
	return ErrRegistry.New(CodeConsumerNotFound)
}

func ErrConsumerInactive() *errx.Error {
	return ErrRegistry.New(CodeConsumerInactive)
}

func ErrConsumerIPDenied() *errx.Error {
	return ErrRegistry.New(CodeConsumerIPDenied)
}

func ErrInvalidAPIKey() *errx.Error {
	return ErrRegistry.New(CodeInvalidAPIKey)
}
