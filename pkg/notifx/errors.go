package notifx

import "github.com/Abraxas-365/trustgate/pkg/errx"

var notifxErrors = errx.NewRegistry("NOTIFX")

var (
	ErrSendFailed     = notifxErrors.Register("SEND_FAILED", errx.TypeExternal, 502, "Failed to deliver one-time code")
	ErrInvalidMessage = notifxErrors.Register("INVALID_MESSAGE", errx.TypeValidation, 400, "Invalid code message")
	ErrNoProvider     = notifxErrors.Register("NO_PROVIDER", errx.TypeInternal, 500, "No provider configured for channel")
)

// Registry exposes the notifx error registry for provider subpackages.
func Registry() *errx.Registry { return notifxErrors }

// SendFailed wraps a provider failure.
func SendFailed(cause error) *errx.Error {
	return notifxErrors.NewWithCause(ErrSendFailed, cause)
}
