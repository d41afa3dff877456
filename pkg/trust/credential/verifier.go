package credential

import (
	"context"

	"github.com/Abraxas-365/trustgate/pkg/cryptox"
	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/logx"
	"github.com/Abraxas-365/trustgate/pkg/trust/user"
)

// Verifier checks passwords against stored hashes and drives the
// failed-attempt counter.
type Verifier struct {
	users             user.Repository
	hasher            *cryptox.PasswordHasher
	lockoutThreshold  int
	minPasswordLength int
}

// NewVerifier creates a password verifier. threshold is the failed-attempt
// count at which an account locks.
func NewVerifier(users user.Repository, hasher *cryptox.PasswordHasher, threshold, minPasswordLength int) *Verifier {
	if threshold <= 0 {
		threshold = 5
	}
	if minPasswordLength <= 0 {
		minPasswordLength = 12
	}
	return &Verifier{
		users:             users,
		hasher:            hasher,
		lockoutThreshold:  threshold,
		minPasswordLength: minPasswordLength,
	}
}

// Verify authenticates username/password and applies the lockout policy.
//
// Unknown usernames and wrong passwords return the same error, and both
// paths cost one hash comparison so timing does not reveal which happened.
// Lock state is checked before the password: a locked account reports
// locked even when the supplied password is correct.
func (v *Verifier) Verify(ctx context.Context, username, password string) (*user.User, error) {
	u, err := v.users.FindByUsername(ctx, username)
	if err != nil {
		if !errx.IsCode(err, user.CodeUserNotFound) {
			return nil, err
		}
		v.hasher.VerifyDecoy(password)
		return nil, ErrInvalidCredentials()
	}

	if u.IsLocked {
		return nil, ErrAccountLocked()
	}

	if !u.IsActive {
		v.hasher.VerifyDecoy(password)
		return nil, ErrInvalidCredentials()
	}

	if !v.hasher.Verify(u.PasswordHash, password) {
		attempts, locked, err := v.users.RecordFailedAttempt(ctx, u.ID, v.lockoutThreshold)
		if err != nil {
			return nil, err
		}

		logx.WithFields(logx.Fields{
			"user_id":  u.ID.String(),
			"attempts": attempts,
			"locked":   locked,
		}).Warn("failed login attempt")

		if locked {
			return nil, ErrAccountLocked()
		}
		return nil, ErrInvalidCredentials()
	}

	if err := v.users.RecordSuccessfulLogin(ctx, u.ID); err != nil {
		return nil, err
	}
	u.FailedAttempts = 0

	return u, nil
}

// VerifyForUser re-checks the password of an already-identified account,
// without touching the failure counter. Used for step-down operations such
// as disabling MFA or changing the password.
func (v *Verifier) VerifyForUser(ctx context.Context, id kernel.UserID, password string) error {
	u, err := v.users.FindByID(ctx, id)
	if err != nil {
		if !errx.IsCode(err, user.CodeUserNotFound) {
			return err
		}
		v.hasher.VerifyDecoy(password)
		return ErrPasswordMismatch()
	}
	if !v.hasher.Verify(u.PasswordHash, password) {
		return ErrPasswordMismatch()
	}
	return nil
}

// Unlock clears the lock and the failure counter. Administrative only;
// there is no self-service unlock.
func (v *Verifier) Unlock(ctx context.Context, id kernel.UserID) error {
	if _, err := v.users.FindByID(ctx, id); err != nil {
		return err
	}
	if err := v.users.Unlock(ctx, id); err != nil {
		return err
	}
	logx.WithField("user_id", id.String()).Info("account unlocked by administrator")
	return nil
}

// ChangePassword replaces the stored hash after re-verifying the current
// password. Callers are expected to revoke outstanding tokens afterwards.
func (v *Verifier) ChangePassword(ctx context.Context, id kernel.UserID, current, next string) error {
	if len(next) < v.minPasswordLength {
		return ErrWeakPassword(v.minPasswordLength)
	}
	if err := v.VerifyForUser(ctx, id, current); err != nil {
		return err
	}

	hash, err := v.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := v.users.UpdatePasswordHash(ctx, id, hash); err != nil {
		return err
	}

	logx.WithField("user_id", id.String()).Info("password changed")
	return nil
}
