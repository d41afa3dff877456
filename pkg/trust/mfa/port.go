package mfa

import (
	"context"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/kernel"
)

// Repository defines the contract for MFA persistence.
//
// ConsumePendingCode and ConsumeBackupCode must each be a single atomic
// statement: two concurrent verifications of the same code must succeed at
// most once.
type Repository interface {
	FindEnrollment(ctx context.Context, userID kernel.UserID, method Method) (*Enrollment, error)
	FindEnabled(ctx context.Context, userID kernel.UserID) ([]Enrollment, error)
	SaveEnrollment(ctx context.Context, e Enrollment) error
	EnableEnrollment(ctx context.Context, userID kernel.UserID, method Method) error
	DeleteEnrollment(ctx context.Context, userID kernel.UserID, method Method) error

	// SavePendingCode stores a delivered code, replacing any outstanding
	// code for the same user and method.
	SavePendingCode(ctx context.Context, c PendingCode) error

	// LatestCodeSentAt returns when the newest outstanding code for the
	// user/method pair was created, or the zero time if none exists.
	LatestCodeSentAt(ctx context.Context, userID kernel.UserID, method Method) (time.Time, error)

	// ConsumePendingCode atomically deletes the matching unexpired code.
	// Returns false when no live code matched the hash.
	ConsumePendingCode(ctx context.Context, userID kernel.UserID, method Method, codeHash string, now time.Time) (bool, error)

	// PurgeExpiredCodes removes codes past their expiry. Returns the count.
	PurgeExpiredCodes(ctx context.Context, before time.Time) (int64, error)

	// ReplaceBackupCodes swaps the user's full backup-code set in one
	// transaction.
	ReplaceBackupCodes(ctx context.Context, userID kernel.UserID, hashes []string) error

	// ConsumeBackupCode atomically deletes one matching backup code.
	// Returns false when the hash matched nothing, including codes that
	// were already spent.
	ConsumeBackupCode(ctx context.Context, userID kernel.UserID, codeHash string) (bool, error)

	CountBackupCodes(ctx context.Context, userID kernel.UserID) (int, error)
}
