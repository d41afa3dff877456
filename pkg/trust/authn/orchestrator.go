package authn

import (
	"context"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/trust/consumer"
	"github.com/Abraxas-365/trustgate/pkg/trust/consumer/consumersrv"
	"github.com/Abraxas-365/trustgate/pkg/trust/credential"
	"github.com/Abraxas-365/trustgate/pkg/trust/mfa"
	"github.com/Abraxas-365/trustgate/pkg/trust/mfa/mfasrv"
	"github.com/Abraxas-365/trustgate/pkg/trust/signature"
	"github.com/Abraxas-365/trustgate/pkg/trust/token/tokensrv"
	"github.com/Abraxas-365/trustgate/pkg/trust/user"
)

// Orchestrator wires the trust pipeline end to end. Every step owns its
// own rules; the orchestrator only fixes their order.
type Orchestrator struct {
	consumers *consumersrv.ConsumerService
	verifier  *credential.Verifier
	mfa       *mfasrv.Engine
	tokens    *tokensrv.TokenService
	guard     *signature.Guard
	audit     AuditService
}

// NewOrchestrator creates the authentication orchestrator.
func NewOrchestrator(
	consumers *consumersrv.ConsumerService,
	verifier *credential.Verifier,
	mfaEngine *mfasrv.Engine,
	tokens *tokensrv.TokenService,
	guard *signature.Guard,
	audit AuditService,
) *Orchestrator {
	return &Orchestrator{
		consumers: consumers,
		verifier:  verifier,
		mfa:       mfaEngine,
		tokens:    tokens,
		guard:     guard,
		audit:     audit,
	}
}

// Login runs the full authentication pipeline: consumer trust, password,
// second factor when enrolled, then token issuance.
//
// Accounts with MFA answer the first leg (no code) with an MFA-required
// error listing the enrolled methods; the client repeats the call with a
// code. Password and code travel together on the second leg so no
// half-authenticated state lives server side.
func (o *Orchestrator) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	cons, err := o.consumers.TrustCheck(ctx, req.ConsumerName, req.CallerIP)
	if err != nil {
		return nil, err
	}

	u, err := o.verifier.Verify(ctx, req.Username, req.Password)
	if err != nil {
		o.audit.Record(ctx, Event{
			Type:       EventLoginFailed,
			Username:   req.Username,
			ConsumerID: cons.ID,
			Reason:     err.Error(),
			At:         time.Now().UTC(),
		})
		return nil, err
	}

	backupUsed, err := o.secondFactor(ctx, u, req.MFACode)
	if err != nil {
		o.audit.Record(ctx, Event{
			Type:       EventLoginFailed,
			UserID:     u.ID,
			Username:   req.Username,
			ConsumerID: cons.ID,
			Reason:     err.Error(),
			At:         time.Now().UTC(),
		})
		return nil, err
	}

	bearer, issued, err := o.tokens.Issue(ctx, u.ID, cons)
	if err != nil {
		return nil, err
	}

	o.audit.Record(ctx, Event{
		Type:       EventLoginSucceeded,
		UserID:     u.ID,
		Username:   req.Username,
		ConsumerID: cons.ID,
		At:         time.Now().UTC(),
	})

	return &LoginResult{
		Bearer:         bearer,
		TokenID:        issued.ID,
		UserID:         u.ID,
		ExpiresAt:      issued.ExpiresAt,
		BackupCodeUsed: backupUsed,
	}, nil
}

func (o *Orchestrator) secondFactor(ctx context.Context, u *user.User, code string) (bool, error) {
	methods, err := o.mfa.EnabledMethods(ctx, u.ID)
	if err != nil {
		return false, err
	}
	if len(methods) == 0 {
		return false, nil
	}
	if code == "" {
		return false, mfa.ErrMFARequired(methods)
	}

	return o.mfa.VerifyLogin(ctx, u.ID, code)
}

// Challenge re-verifies credentials and delivers a login OTP over an
// enrolled SMS or email factor. Credentials gate the delivery so the
// endpoint cannot be used to spam a victim's phone.
func (o *Orchestrator) Challenge(ctx context.Context, req ChallengeRequest) error {
	cons, err := o.consumers.TrustCheck(ctx, req.ConsumerName, req.CallerIP)
	if err != nil {
		return err
	}

	u, err := o.verifier.Verify(ctx, req.Username, req.Password)
	if err != nil {
		return err
	}

	if err := o.mfa.SendCode(ctx, u.ID, req.Method); err != nil {
		return err
	}

	o.audit.Record(ctx, Event{
		Type:       EventMFAChallenged,
		UserID:     u.ID,
		Username:   req.Username,
		ConsumerID: cons.ID,
		Reason:     string(req.Method),
		At:         time.Now().UTC(),
	})
	return nil
}

// VerifyRequest authenticates one consumer-relayed request: API key first,
// then the optional request signature, then the bearer. Returns the
// identity context downstream handlers run under.
func (o *Orchestrator) VerifyRequest(ctx context.Context, in VerifyRequestInput) (*kernel.AuthContext, error) {
	cons, err := o.consumers.VerifyAPIKey(ctx, in.APIKey)
	if err != nil {
		return nil, err
	}
	if !cons.AllowsIP(in.CallerIP) {
		return nil, consumer.ErrConsumerIPDenied()
	}

	if err := o.guard.Verify(ctx, cons, in.SignatureHeader, in.Method, in.Path, in.Body, time.Now().UTC()); err != nil {
		return nil, err
	}

	t, err := o.tokens.Validate(ctx, in.Bearer, cons.ID)
	if err != nil {
		return nil, err
	}

	return &kernel.AuthContext{
		UserID:       t.UserID,
		ConsumerID:   cons.ID,
		ConsumerName: cons.Name,
		TokenID:      t.ID,
		Signed:       in.SignatureHeader != "",
	}, nil
}

// Logout revokes the token behind a bearer. Safe to repeat.
func (o *Orchestrator) Logout(ctx context.Context, bearer string) error {
	if err := o.tokens.RevokeBearer(ctx, bearer); err != nil {
		return err
	}
	o.audit.Record(ctx, Event{Type: EventTokenRevoked, At: time.Now().UTC()})
	return nil
}

// LogoutEverywhere revokes every live token of one user.
func (o *Orchestrator) LogoutEverywhere(ctx context.Context, userID kernel.UserID) (int64, error) {
	return o.tokens.RevokeAllForUser(ctx, userID)
}

// ChangePassword rotates the password and kills every outstanding session,
// so a stolen token does not outlive the credential it was minted from.
func (o *Orchestrator) ChangePassword(ctx context.Context, userID kernel.UserID, current, next string) error {
	if err := o.verifier.ChangePassword(ctx, userID, current, next); err != nil {
		return err
	}
	if _, err := o.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}
	o.audit.Record(ctx, Event{
		Type:   EventPasswordChanged,
		UserID: userID,
		At:     time.Now().UTC(),
	})
	return nil
}

// UnlockAccount is the administrative unlock; there is no self-service
// path out of a lockout.
func (o *Orchestrator) UnlockAccount(ctx context.Context, userID kernel.UserID) error {
	if err := o.verifier.Unlock(ctx, userID); err != nil {
		return err
	}
	o.audit.Record(ctx, Event{
		Type:   EventAccountUnlocked,
		UserID: userID,
		At:     time.Now().UTC(),
	})
	return nil
}

// DisableMFA removes a second factor after re-verifying the password.
func (o *Orchestrator) DisableMFA(ctx context.Context, userID kernel.UserID, method mfa.Method, password string) error {
	if err := o.verifier.VerifyForUser(ctx, userID, password); err != nil {
		return err
	}
	return o.mfa.Disable(ctx, userID, method)
}
