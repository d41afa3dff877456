package providerkey

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/cryptox"
	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
)

// Status is the lifecycle state of a provider signing key.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusRevoked  Status = "revoked"
)

// ProviderKey is one generation of the broker's own signing key. The
// private half is encrypted at rest; version increases globally across
// algorithms.
type ProviderKey struct {
	ID                  kernel.KeyID      `db:"id" json:"id"`
	PublicKeyPEM        string            `db:"public_key_pem" json:"public_key_pem"`
	PrivateKeyEncrypted string            `db:"private_key_encrypted" json:"-"`
	Algorithm           cryptox.Algorithm `db:"algorithm" json:"algorithm"`
	Version             int               `db:"version" json:"version"`
	Status              Status            `db:"status" json:"status"`
	ValidFrom           time.Time         `db:"valid_from" json:"valid_from"`
	ValidUntil          time.Time         `db:"valid_until" json:"valid_until"`
	CreatedBy           string            `db:"created_by" json:"created_by"`
	CreatedAt           time.Time         `db:"created_at" json:"created_at"`
	RevokedAt           *time.Time        `db:"revoked_at" json:"revoked_at,omitempty"`
}

// ExpiresWithin reports whether the validity window ends inside the
// warning threshold.
func (k *ProviderKey) ExpiresWithin(threshold time.Duration) bool {
	return time.Now().Add(threshold).After(k.ValidUntil)
}

// IsUsable reports whether the key may sign new tokens.
func (k *ProviderKey) IsUsable() bool {
	now := time.Now()
	return k.Status == StatusActive && now.After(k.ValidFrom) && now.Before(k.ValidUntil)
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("PKEY")

var (
	// CodeNoActiveKey is fatal: token issuance is impossible until an
	// operator rotates in a key.
	CodeNoActiveKey        = ErrRegistry.Register("NO_ACTIVE_KEY", errx.TypeInternal, http.StatusInternalServerError, "No active signing key configured")
	CodeMultipleActiveKeys = ErrRegistry.Register("MULTIPLE_ACTIVE_KEYS", errx.TypeInternal, http.StatusInternalServerError, "More than one active signing key")
	CodeKeyNotFound        = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Signing key not found")
	CodeRotationFailed     = ErrRegistry.Register("ROTATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Key rotation failed")
)

func ErrNoActiveKey() *errx.Error {
	return ErrRegistry.New(CodeNoActiveKey)
}

func ErrMultipleActiveKeys(count int) *errx.Error {
	return ErrRegistry.New(CodeMultipleActiveKeys).WithDetail("active_count", count)
}

func ErrKeyNotFound() *errx.Error {
	return ErrRegistry.New(CodeKeyNotFound)
}

func ErrRotationFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeRotationFailed, cause)
}
