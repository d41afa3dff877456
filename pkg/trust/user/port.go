package user

import (
	"context"

	"github.com/Abraxas-365/trustgate/pkg/kernel"
)

// Repository defines the contract for user persistence.
//
// RecordFailedAttempt must be a single atomic read-modify-write: two
// concurrent failures at attempt four must still produce exactly one lock.
type Repository interface {
	FindByID(ctx context.Context, id kernel.UserID) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	Save(ctx context.Context, u User) error

	// RecordFailedAttempt increments failed_attempts and locks the account
	// in the same statement once the post-increment count reaches
	// threshold. Returns the post-increment count and the lock state.
	RecordFailedAttempt(ctx context.Context, id kernel.UserID, threshold int) (attempts int, locked bool, err error)

	// RecordSuccessfulLogin resets failed_attempts and stamps last_login_at.
	RecordSuccessfulLogin(ctx context.Context, id kernel.UserID) error

	// Unlock clears the lock flag and the failure counter. Administrative.
	Unlock(ctx context.Context, id kernel.UserID) error

	// UpdatePasswordHash sets a new hash and stamps password_changed_at.
	UpdatePasswordHash(ctx context.Context, id kernel.UserID, hash string) error
}
