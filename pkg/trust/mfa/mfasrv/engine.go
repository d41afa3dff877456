package mfasrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/cryptox"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/logx"
	"github.com/Abraxas-365/trustgate/pkg/notifx"
	"github.com/Abraxas-365/trustgate/pkg/trust/mfa"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const backupCodeCount = 10

// Options tunes code generation and delivery.
type Options struct {
	Issuer       string
	OTPLength    int
	OTPTTL       time.Duration
	ResendWindow time.Duration
}

func (o *Options) fillDefaults() {
	if o.Issuer == "" {
		o.Issuer = "trustgate"
	}
	if o.OTPLength == 0 {
		o.OTPLength = 6
	}
	if o.OTPTTL == 0 {
		o.OTPTTL = 10 * time.Minute
	}
	if o.ResendWindow == 0 {
		o.ResendWindow = time.Minute
	}
}

// Engine drives second-factor enrollment and verification.
type Engine struct {
	repo   mfa.Repository
	cipher *cryptox.KeyCipher
	sender *notifx.Client
	opts   Options
}

// NewEngine creates an MFA engine. cipher protects TOTP secrets at rest;
// sender delivers SMS and email codes.
func NewEngine(repo mfa.Repository, cipher *cryptox.KeyCipher, sender *notifx.Client, opts Options) *Engine {
	opts.fillDefaults()
	return &Engine{repo: repo, cipher: cipher, sender: sender, opts: opts}
}

// EnabledMethods lists the user's active second factors. Empty means the
// account has no MFA and password alone completes authentication.
func (e *Engine) EnabledMethods(ctx context.Context, userID kernel.UserID) ([]mfa.Method, error) {
	enrollments, err := e.repo.FindEnabled(ctx, userID)
	if err != nil {
		return nil, err
	}
	methods := make([]mfa.Method, 0, len(enrollments))
	for _, en := range enrollments {
		methods = append(methods, en.Method)
	}
	return methods, nil
}

// SetupTOTP starts authenticator-app enrollment. The returned secret and
// provisioning URL are shown exactly once; the enrollment stays disabled
// until the user proves possession via VerifyAndEnable.
func (e *Engine) SetupTOTP(ctx context.Context, userID kernel.UserID, accountName string) (*mfa.SetupResult, error) {
	if err := e.ensureNotEnabled(ctx, userID, mfa.MethodTOTP); err != nil {
		return nil, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.opts.Issuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, cryptox.ErrKeyGeneration(err)
	}

	encrypted, err := e.cipher.Encrypt([]byte(key.Secret()))
	if err != nil {
		return nil, err
	}

	enrollment := mfa.Enrollment{
		ID:              uuid.NewString(),
		UserID:          userID,
		Method:          mfa.MethodTOTP,
		SecretEncrypted: encrypted,
		CreatedAt:       time.Now().UTC(),
	}
	if err := e.repo.SaveEnrollment(ctx, enrollment); err != nil {
		return nil, err
	}

	return &mfa.SetupResult{Secret: key.Secret(), URL: key.String()}, nil
}

// SetupDelivery starts SMS or email enrollment and sends the first code to
// the destination. The enrollment stays disabled until VerifyAndEnable.
func (e *Engine) SetupDelivery(ctx context.Context, userID kernel.UserID, method mfa.Method, destination string) error {
	if _, ok := method.Channel(); !ok {
		return mfa.ErrUnknownMethod(string(method))
	}
	if err := e.ensureNotEnabled(ctx, userID, method); err != nil {
		return err
	}

	enrollment := mfa.Enrollment{
		ID:          uuid.NewString(),
		UserID:      userID,
		Method:      method,
		Destination: destination,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.repo.SaveEnrollment(ctx, enrollment); err != nil {
		return err
	}

	return e.dispatchCode(ctx, &enrollment)
}

// SendCode delivers a fresh login code over an enrolled SMS or email
// factor. At most one code per resend window; a new code replaces any
// outstanding one.
func (e *Engine) SendCode(ctx context.Context, userID kernel.UserID, method mfa.Method) error {
	enrollment, err := e.repo.FindEnrollment(ctx, userID, method)
	if err != nil {
		return err
	}
	if _, ok := method.Channel(); !ok {
		return mfa.ErrUnknownMethod(string(method))
	}

	sentAt, err := e.repo.LatestCodeSentAt(ctx, userID, method)
	if err != nil {
		return err
	}
	if !sentAt.IsZero() && time.Since(sentAt) < e.opts.ResendWindow {
		return mfa.ErrResendTooSoon()
	}

	return e.dispatchCode(ctx, enrollment)
}

// VerifyAndEnable confirms a setup code and activates the enrollment. On
// the user's first enabled factor it also mints the backup-code set and
// returns the raw codes, which are never shown again.
func (e *Engine) VerifyAndEnable(ctx context.Context, userID kernel.UserID, method mfa.Method, code string) ([]string, error) {
	enrollment, err := e.repo.FindEnrollment(ctx, userID, method)
	if err != nil {
		return nil, err
	}

	ok, err := e.verifyWith(ctx, enrollment, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mfa.ErrInvalidCode()
	}

	if err := e.repo.EnableEnrollment(ctx, userID, method); err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{
		"user_id": userID.String(),
		"method":  string(method),
	}).Info("second factor enabled")

	existing, err := e.repo.CountBackupCodes(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, nil
	}
	return e.RegenerateBackupCodes(ctx, userID)
}

// VerifyLogin checks a login challenge answer against every enabled factor.
// Backup codes are tried first so a user without their device can always
// burn one; the return reports when that happened. All failures collapse
// into the same error.
func (e *Engine) VerifyLogin(ctx context.Context, userID kernel.UserID, code string) (usedBackup bool, err error) {
	consumed, err := e.repo.ConsumeBackupCode(ctx, userID, cryptox.SHA256Hex(code))
	if err != nil {
		return false, err
	}
	if consumed {
		remaining, err := e.repo.CountBackupCodes(ctx, userID)
		if err == nil {
			logx.WithFields(logx.Fields{
				"user_id":   userID.String(),
				"remaining": remaining,
			}).Warn("backup code used for login")
		}
		return true, nil
	}

	enrollments, err := e.repo.FindEnabled(ctx, userID)
	if err != nil {
		return false, err
	}
	if len(enrollments) == 0 {
		return false, mfa.ErrNotConfigured("")
	}

	for i := range enrollments {
		ok, err := e.verifyWith(ctx, &enrollments[i], code)
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}
	}
	return false, mfa.ErrInvalidCode()
}

// Disable removes an enrolled factor. Password re-verification is the
// caller's responsibility. When the last factor goes, the backup-code set
// goes with it.
func (e *Engine) Disable(ctx context.Context, userID kernel.UserID, method mfa.Method) error {
	if _, err := e.repo.FindEnrollment(ctx, userID, method); err != nil {
		return err
	}
	if err := e.repo.DeleteEnrollment(ctx, userID, method); err != nil {
		return err
	}

	remaining, err := e.repo.FindEnabled(ctx, userID)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		if err := e.repo.ReplaceBackupCodes(ctx, userID, nil); err != nil {
			return err
		}
	}

	logx.WithFields(logx.Fields{
		"user_id": userID.String(),
		"method":  string(method),
	}).Info("second factor disabled")
	return nil
}

// RegenerateBackupCodes mints a fresh set of single-use codes, invalidating
// any previous set. Raw codes are returned once; only hashes persist.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID kernel.UserID) ([]string, error) {
	raw := make([]string, backupCodeCount)
	hashes := make([]string, backupCodeCount)
	for i := range raw {
		code, err := cryptox.BackupCode()
		if err != nil {
			return nil, err
		}
		raw[i] = code
		hashes[i] = cryptox.SHA256Hex(code)
	}

	if err := e.repo.ReplaceBackupCodes(ctx, userID, hashes); err != nil {
		return nil, err
	}
	return raw, nil
}

// PurgeExpiredCodes removes stale delivered codes. Intended to run from the
// maintenance runner.
func (e *Engine) PurgeExpiredCodes(ctx context.Context) (int64, error) {
	return e.repo.PurgeExpiredCodes(ctx, time.Now().UTC())
}

func (e *Engine) ensureNotEnabled(ctx context.Context, userID kernel.UserID, method mfa.Method) error {
	existing, err := e.repo.FindEnrollment(ctx, userID, method)
	if err == nil && existing.Enabled {
		return mfa.ErrAlreadyEnabled(method)
	}
	return nil
}

func (e *Engine) verifyWith(ctx context.Context, enrollment *mfa.Enrollment, code string) (bool, error) {
	switch enrollment.Method {
	case mfa.MethodTOTP:
		return e.validateTOTP(enrollment, code)
	case mfa.MethodSMS, mfa.MethodEmail:
		return e.repo.ConsumePendingCode(ctx, enrollment.UserID, enrollment.Method, cryptox.SHA256Hex(code), time.Now().UTC())
	}
	return false, mfa.ErrUnknownMethod(string(enrollment.Method))
}

// validateTOTP accepts the current 30-second step plus one step either
// side to absorb clock drift.
func (e *Engine) validateTOTP(enrollment *mfa.Enrollment, code string) (bool, error) {
	secret, err := e.cipher.Decrypt(enrollment.SecretEncrypted)
	if err != nil {
		return false, err
	}

	ok, err := totp.ValidateCustom(code, string(secret), time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, mfa.ErrInvalidCode()
	}
	return ok, nil
}

func (e *Engine) dispatchCode(ctx context.Context, enrollment *mfa.Enrollment) error {
	code, err := cryptox.NumericCode(e.opts.OTPLength)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	pending := mfa.PendingCode{
		ID:        uuid.NewString(),
		UserID:    enrollment.UserID,
		Method:    enrollment.Method,
		CodeHash:  cryptox.SHA256Hex(code),
		ExpiresAt: now.Add(e.opts.OTPTTL),
		CreatedAt: now,
	}
	if err := e.repo.SavePendingCode(ctx, pending); err != nil {
		return err
	}

	channel, _ := enrollment.Method.Channel()
	return e.sender.SendCode(ctx, notifx.CodeMessage{
		Destination: enrollment.Destination,
		Code:        code,
		Channel:     channel,
		AppName:     e.opts.Issuer,
	})
}
