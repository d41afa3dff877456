// Package credential verifies first-factor passwords and enforces the
// brute-force lockout policy.
package credential

import (
	"net/http"

	"github.com/Abraxas-365/trustgate/pkg/errx"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("CRED")

var (
	// CodeInvalidCredentials covers unknown user and wrong password alike
	// so callers cannot probe which usernames exist.
	CodeInvalidCredentials = ErrRegistry.Register("INVALID_CREDENTIALS", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid username or password")
	CodeAccountLocked      = ErrRegistry.Register("ACCOUNT_LOCKED", errx.TypeAuthorization, http.StatusLocked, "Account is locked due to repeated failed attempts")
	CodePasswordMismatch   = ErrRegistry.Register("PASSWORD_MISMATCH", errx.TypeAuthorization, http.StatusUnauthorized, "Current password is incorrect")
	CodeWeakPassword       = ErrRegistry.Register("WEAK_PASSWORD", errx.TypeValidation, http.StatusBadRequest, "Password does not meet minimum length")
)

func ErrInvalidCredentials() *errx.Error {
	return ErrRegistry.New(CodeInvalidCredentials)
}

func ErrAccountLocked() *errx.Error {
	return ErrRegistry.New(CodeAccountLocked)
}

func ErrPasswordMismatch() *errx.Error {
	return ErrRegistry.New(CodePasswordMismatch)
}

func ErrWeakPassword(min int) *errx.Error {
	return ErrRegistry.New(CodeWeakPassword).WithDetail("min_length", min)
}
