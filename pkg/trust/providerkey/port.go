package providerkey

import (
	"context"

	"github.com/Abraxas-365/trustgate/pkg/kernel"
)

// Store defines the contract for provider key persistence.
//
// Rotate must be a single transaction: flip every active key to inactive,
// assign version = max existing version + 1, and insert the new key as
// active. A crash mid-rotation must never leave zero or two active keys.
//
// ActiveKey re-derives the current key by query on every call; callers must
// not cache the result across a rotation boundary. Finding more than one
// active row is an invariant violation to surface, never repair silently.
type Store interface {
	ActiveKey(ctx context.Context) (*ProviderKey, error)
	FindByID(ctx context.Context, id kernel.KeyID) (*ProviderKey, error)
	FindByVersion(ctx context.Context, version int) (*ProviderKey, error)
	Rotate(ctx context.Context, k *ProviderKey) error

	// Revoke flips an active or inactive key to revoked. Terminal: a
	// revoked key never returns to any other status. Revoking an already
	// revoked key is a no-op.
	Revoke(ctx context.Context, id kernel.KeyID) error
}
