package user

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
)

// User is an end-user account authenticated by the broker.
type User struct {
	ID                kernel.UserID `db:"id" json:"id"`
	Username          string        `db:"username" json:"username"`
	Email             *string       `db:"email" json:"email,omitempty"`
	PasswordHash      string        `db:"password_hash" json:"-"`
	IsActive          bool          `db:"is_active" json:"is_active"`
	IsLocked          bool          `db:"is_locked" json:"is_locked"`
	FailedAttempts    int           `db:"failed_attempts" json:"failed_attempts"`
	LastLoginAt       *time.Time    `db:"last_login_at" json:"last_login_at,omitempty"`
	PasswordChangedAt *time.Time    `db:"password_changed_at" json:"password_changed_at,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// CanAuthenticate reports whether the account is in a state where a
// password check is even worth attempting.
func (u *User) CanAuthenticate() bool {
	return u.IsActive && !u.IsLocked
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("USER")

var (
	CodeUserNotFound = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User not found")
	CodeUserInactive = ErrRegistry.Register("INACTIVE", errx.TypeAuthorization, http.StatusForbidden, "User account is inactive")
)

func ErrUserNotFound() *errx.Error {
	return ErrRegistry.New(CodeUserNotFound)
}

func ErrUserInactive() *errx.Error {
	return ErrRegistry.New(CodeUserInactive)
}
