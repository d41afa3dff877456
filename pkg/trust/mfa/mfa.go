// Package mfa implements second-factor verification: TOTP authenticator
// apps, one-time codes delivered over SMS or email, and single-use backup
// codes.
package mfa

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/notifx"
)

// Method identifies a second-factor mechanism.
type Method string

const (
	MethodTOTP  Method = "totp"
	MethodSMS   Method = "sms"
	MethodEmail Method = "email"
)

// IsValid reports whether m is a known method.
func (m Method) IsValid() bool {
	switch m {
	case MethodTOTP, MethodSMS, MethodEmail:
		return true
	}
	return false
}

// Channel maps a delivery-based method onto its notification channel.
// TOTP has no channel.
func (m Method) Channel() (notifx.Channel, bool) {
	switch m {
	case MethodSMS:
		return notifx.ChannelSMS, true
	case MethodEmail:
		return notifx.ChannelEmail, true
	}
	return "", false
}

// Enrollment is one configured second factor for a user. TOTP enrollments
// carry the shared secret encrypted at rest; SMS and email enrollments
// carry the delivery destination instead.
type Enrollment struct {
	ID              string        `db:"id" json:"id"`
	UserID          kernel.UserID `db:"user_id" json:"user_id"`
	Method          Method        `db:"method" json:"method"`
	SecretEncrypted string        `db:"secret_encrypted" json:"-"`
	Destination     string        `db:"destination" json:"destination,omitempty"`
	Enabled         bool          `db:"enabled" json:"enabled"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	EnabledAt       *time.Time    `db:"enabled_at" json:"enabled_at,omitempty"`
}

// PendingCode is a delivered one-time code awaiting verification. Only the
// hash is stored; consumption is a conditional update so a code verifies
// at most once.
type PendingCode struct {
	ID        string        `db:"id"`
	UserID    kernel.UserID `db:"user_id"`
	Method    Method        `db:"method"`
	CodeHash  string        `db:"code_hash"`
	ExpiresAt time.Time     `db:"expires_at"`
	CreatedAt time.Time     `db:"created_at"`
}

// SetupResult is returned from TOTP enrollment: the base32 secret for
// manual entry plus the otpauth:// provisioning URL for QR rendering.
// Neither is ever shown again.
type SetupResult struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("MFA")

var (
	CodeMFARequired    = ErrRegistry.Register("REQUIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Second factor required")
	CodeInvalidCode    = ErrRegistry.Register("INVALID_CODE", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid or expired verification code")
	CodeNotConfigured  = ErrRegistry.Register("NOT_CONFIGURED", errx.TypeBusiness, http.StatusBadRequest, "No second factor configured for this method")
	CodeAlreadyEnabled = ErrRegistry.Register("ALREADY_ENABLED", errx.TypeConflict, http.StatusConflict, "Second factor already enabled for this method")
	CodeResendTooSoon  = ErrRegistry.Register("RESEND_TOO_SOON", errx.TypeBusiness, http.StatusTooManyRequests, "A code was sent recently, wait before requesting another")
	CodeUnknownMethod  = ErrRegistry.Register("UNKNOWN_METHOD", errx.TypeValidation, http.StatusBadRequest, "Unknown MFA method")
)

func ErrMFARequired(methods []Method) *errx.Error {
	return ErrRegistry.New(CodeMFARequired).WithDetail("methods", methods)
}

func ErrInvalidCode() *errx.Error {
	return ErrRegistry.New(CodeInvalidCode)
}

func ErrNotConfigured(method Method) *errx.Error {
	return ErrRegistry.New(CodeNotConfigured).WithDetail("method", method)
}

func ErrAlreadyEnabled(method Method) *errx.Error {
	return ErrRegistry.New(CodeAlreadyEnabled).WithDetail("method", method)
}

func ErrResendTooSoon() *errx.Error {
	return ErrRegistry.New(CodeResendTooSoon)
}

func ErrUnknownMethod(method string) *errx.Error {
	return ErrRegistry.New(CodeUnknownMethod).WithDetail("method", method)
}
