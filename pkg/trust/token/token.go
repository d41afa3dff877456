// Package token issues, validates, and revokes the broker's access tokens.
//
// A token lives in two halves: an opaque record in storage holding only the
// SHA-256 hash of the secret plus a provider signature pinned to the key
// generation that produced it, and a bearer string carried by the client.
package token

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
)

// Token is the stored half of an issued access token. The raw secret never
// persists; only its hash does.
type Token struct {
	ID         kernel.TokenID    `db:"id" json:"id"`
	UserID     kernel.UserID     `db:"user_id" json:"user_id"`
	ConsumerID kernel.ConsumerID `db:"consumer_id" json:"consumer_id"`
	SecretHash string            `db:"secret_hash" json:"-"`
	KeyVersion int               `db:"key_version" json:"key_version"`
	Signature  string            `db:"signature" json:"-"`
	IssuedAt   time.Time         `db:"issued_at" json:"issued_at"`
	ExpiresAt  time.Time         `db:"expires_at" json:"expires_at"`
	RevokedAt  *time.Time        `db:"revoked_at" json:"revoked_at,omitempty"`
}

// IsExpired reports whether the token's lifetime has passed.
func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsRevoked reports whether the token was explicitly revoked.
func (t *Token) IsRevoked() bool {
	return t.RevokedAt != nil
}

// SigningPayload is the canonical byte string the provider key signs. Any
// change to the identity binding, the secret, or the lifetime invalidates
// the signature.
func (t *Token) SigningPayload() []byte {
	return []byte(fmt.Sprintf("%s|%s|%s|%d",
		t.UserID.String(), t.ConsumerID.String(), t.SecretHash, t.ExpiresAt.Unix()))
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("TOKEN")

var (
	// CodeInvalidToken covers unknown, malformed, and tampered tokens so a
	// caller cannot distinguish which.
	CodeInvalidToken     = ErrRegistry.Register("INVALID", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid token")
	CodeTokenExpired     = ErrRegistry.Register("EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Token has expired")
	CodeTokenRevoked     = ErrRegistry.Register("REVOKED", errx.TypeAuthorization, http.StatusUnauthorized, "Token has been revoked")
	CodeConsumerMismatch = ErrRegistry.Register("CONSUMER_MISMATCH", errx.TypeAuthorization, http.StatusUnauthorized, "Token was issued for a different consumer")
	CodeIssuanceBlocked  = ErrRegistry.Register("ISSUANCE_BLOCKED", errx.TypeInternal, http.StatusInternalServerError, "Token issuance is not possible")
)

func ErrInvalidToken() *errx.Error {
	return ErrRegistry.New(CodeInvalidToken)
}

func ErrTokenExpired() *errx.Error {
	return ErrRegistry.New(CodeTokenExpired)
}

func ErrTokenRevoked() *errx.Error {
	return ErrRegistry.New(CodeTokenRevoked)
}

func ErrConsumerMismatch() *errx.Error {
	return ErrRegistry.New(CodeConsumerMismatch)
}

func ErrIssuanceBlocked(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeIssuanceBlocked, cause)
}
