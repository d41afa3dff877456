// Package signature verifies consumer request signatures: a detached
// signature over a canonical rendering of the request, carried in a single
// header alongside its timestamp and nonce.
package signature

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/errx"
)

// SignedRequest is the parsed form of the signature header
// "signature:timestamp:nonce". The signature is base64; the timestamp is
// unix seconds.
type SignedRequest struct {
	Signature []byte
	Timestamp time.Time
	Nonce     string
}

// ParseHeader splits and decodes the signature header. Base64 never
// contains a colon, so three segments are unambiguous.
func ParseHeader(header string) (*SignedRequest, error) {
	parts := strings.Split(header, ":")
	if len(parts) != 3 {
		return nil, ErrMalformedHeader("expected signature:timestamp:nonce")
	}

	sig, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(sig) == 0 {
		return nil, ErrMalformedHeader("signature is not valid base64")
	}

	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, ErrMalformedHeader("timestamp is not unix seconds")
	}

	if parts[2] == "" {
		return nil, ErrMalformedHeader("empty nonce")
	}

	return &SignedRequest{
		Signature: sig,
		Timestamp: time.Unix(unix, 0).UTC(),
		Nonce:     parts[2],
	}, nil
}

// CanonicalPayload renders the request into the exact byte string both
// sides sign: "timestamp:nonce:METHOD:path:body", with the body re-encoded
// as JSON with sorted keys so formatting differences cannot break
// verification. An empty body canonicalizes to "{}".
func CanonicalPayload(timestamp time.Time, nonce, method, path string, body []byte) ([]byte, error) {
	canonical, err := canonicalJSON(body)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("%d:%s:%s:%s:%s",
		timestamp.Unix(), nonce, strings.ToUpper(method), path, canonical)), nil
}

// canonicalJSON re-marshals through interface{} so object keys come out
// sorted at every depth.
func canonicalJSON(body []byte) (string, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "{}", nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return "", ErrMalformedBody(err)
	}
	encoded, err := json.Marshal(decoded)
	if err != nil {
		return "", ErrMalformedBody(err)
	}
	return string(encoded), nil
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("SIG")

var (
	CodeMissingSignature  = ErrRegistry.Register("MISSING", errx.TypeAuthorization, http.StatusUnauthorized, "Request signature required for this consumer")
	CodeMalformedHeader   = ErrRegistry.Register("MALFORMED", errx.TypeValidation, http.StatusBadRequest, "Malformed signature header")
	CodeMalformedBody     = ErrRegistry.Register("MALFORMED_BODY", errx.TypeValidation, http.StatusBadRequest, "Request body is not valid JSON")
	CodeSignatureExpired  = ErrRegistry.Register("EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Signature timestamp outside the accepted window")
	CodeInvalidSignature  = ErrRegistry.Register("INVALID", errx.TypeAuthorization, http.StatusUnauthorized, "Request signature does not verify")
	CodeReplayedSignature = ErrRegistry.Register("REPLAYED", errx.TypeAuthorization, http.StatusUnauthorized, "Request nonce already seen")
)

func ErrMissingSignature() *errx.Error {
	return ErrRegistry.New(CodeMissingSignature)
}

func ErrMalformedHeader(reason string) *errx.Error {
	return ErrRegistry.New(CodeMalformedHeader).WithDetail("reason", reason)
}

func ErrMalformedBody(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeMalformedBody, cause)
}

func ErrSignatureExpired() *errx.Error {
	return ErrRegistry.New(CodeSignatureExpired)
}

func ErrInvalidSignature() *errx.Error {
	return ErrRegistry.New(CodeInvalidSignature)
}

func ErrReplayedSignature() *errx.Error {
	return ErrRegistry.New(CodeReplayedSignature)
}
