// Package authn orchestrates the broker's two trust surfaces: the login
// flow that turns credentials into a token, and the per-request
// verification that turns a bearer plus consumer proof into an identity.
package authn

import (
	"context"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/trust/mfa"
)

// EventType classifies audit events.
type EventType string

const (
	EventLoginSucceeded  EventType = "login_succeeded"
	EventLoginFailed     EventType = "login_failed"
	EventMFAChallenged   EventType = "mfa_challenged"
	EventTokenRevoked    EventType = "token_revoked"
	EventPasswordChanged EventType = "password_changed"
	EventAccountUnlocked EventType = "account_unlocked"
)

// Event is one audit record.
type Event struct {
	Type       EventType         `json:"type"`
	UserID     kernel.UserID     `json:"user_id,omitempty"`
	Username   string            `json:"username,omitempty"`
	ConsumerID kernel.ConsumerID `json:"consumer_id,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	At         time.Time         `json:"at"`
}

// AuditService records security-relevant events. Recording must never
// fail a request; implementations swallow their own errors.
type AuditService interface {
	Record(ctx context.Context, e Event)
}

// LoginRequest carries one authentication attempt.
type LoginRequest struct {
	ConsumerName string `json:"consumer_name"`
	CallerIP     string `json:"-"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	// MFACode is empty on the first leg of a two-step login.
	MFACode string `json:"mfa_code,omitempty"`
}

// LoginResult is a completed authentication: the bearer plus its metadata.
type LoginResult struct {
	Bearer    string         `json:"token"`
	TokenID   kernel.TokenID `json:"token_id"`
	UserID    kernel.UserID  `json:"user_id"`
	ExpiresAt time.Time      `json:"expires_at"`
	// BackupCodeUsed warns the client that one of the user's recovery
	// codes was spent on this login.
	BackupCodeUsed bool `json:"backup_code_used,omitempty"`
}

// ChallengeRequest asks for a fresh OTP delivery during a two-step login.
type ChallengeRequest struct {
	ConsumerName string     `json:"consumer_name"`
	CallerIP     string     `json:"-"`
	Username     string     `json:"username"`
	Password     string     `json:"password"`
	Method       mfa.Method `json:"method"`
}

// VerifyRequestInput carries everything needed to authenticate one
// consumer request.
type VerifyRequestInput struct {
	APIKey          string
	CallerIP        string
	Bearer          string
	SignatureHeader string
	Method          string
	Path            string
	Body            []byte
}
