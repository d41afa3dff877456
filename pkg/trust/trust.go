// Package trust is the identity and trust broker bounded context: it
// authenticates end users on behalf of registered consumer applications,
// issues provider-signed bearer tokens, and verifies consumer-signed
// requests.
package trust

import (
	"net/http"

	"github.com/Abraxas-365/trustgate/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("TRUST")

var (
	CodeUnauthorized = ErrRegistry.Register("UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "Unauthorized")
	CodeSystemError  = ErrRegistry.Register("SYSTEM_ERROR", errx.TypeInternal, http.StatusInternalServerError, "Internal error")
)

func ErrUnauthorized() *errx.Error {
	return ErrRegistry.New(CodeUnauthorized)
}

func ErrSystem(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeSystemError, cause)
}
