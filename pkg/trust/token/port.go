package token

import (
	"context"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/kernel"
)

// Repository defines the contract for token persistence.
type Repository interface {
	Save(ctx context.Context, t Token) error
	FindByID(ctx context.Context, id kernel.TokenID) (*Token, error)

	// FindBySecretHash is the validation lookup: the raw secret never
	// reaches storage, only its hash does.
	FindBySecretHash(ctx context.Context, hash string) (*Token, error)

	// Revoke stamps revoked_at once. Returns false when the token was
	// already revoked or does not exist; both are success for callers.
	Revoke(ctx context.Context, id kernel.TokenID) (bool, error)

	// RevokeAllForUser revokes every live token of one user. Returns the
	// number revoked.
	RevokeAllForUser(ctx context.Context, userID kernel.UserID) (int64, error)

	// PurgeStale deletes tokens whose expiry is older than before.
	// Revocation state is irrelevant past the retention horizon.
	PurgeStale(ctx context.Context, before time.Time) (int64, error)
}
