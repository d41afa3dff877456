package cryptox

import (
	"net/http"

	"github.com/Abraxas-365/trustgate/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("CRYPTO")

var (
	CodeKeyGeneration    = ErrRegistry.Register("KEY_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Key generation failed")
	CodeUnsupportedAlg   = ErrRegistry.Register("UNSUPPORTED_ALGORITHM", errx.TypeValidation, http.StatusBadRequest, "Unsupported signing algorithm")
	CodeInvalidKey       = ErrRegistry.Register("INVALID_KEY", errx.TypeInternal, http.StatusInternalServerError, "Invalid key material")
	CodeCipherFailed     = ErrRegistry.Register("CIPHER_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Encryption or decryption failed")
	CodeSignatureInvalid = ErrRegistry.Register("SIGNATURE_INVALID", errx.TypeAuthorization, http.StatusUnauthorized, "Signature verification failed")
)

func ErrKeyGeneration(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeKeyGeneration, cause)
}

func ErrUnsupportedAlg(alg string) *errx.Error {
	return ErrRegistry.New(CodeUnsupportedAlg).WithDetail("algorithm", alg)
}

func ErrInvalidKey(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeInvalidKey, cause)
}

func ErrCipherFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeCipherFailed, cause)
}

func ErrSignatureInvalid() *errx.Error {
	return ErrRegistry.New(CodeSignatureInvalid)
}
