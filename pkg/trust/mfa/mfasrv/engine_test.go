package mfasrv_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/cryptox"
	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/notifx"
	"github.com/Abraxas-365/trustgate/pkg/trust/mfa"
	"github.com/Abraxas-365/trustgate/pkg/trust/mfa/mfasrv"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// memoryMFARepo mimics the atomic consume semantics in memory.
type memoryMFARepo struct {
	enrollments map[string]*mfa.Enrollment
	pending     map[string]*mfa.PendingCode
	backup      map[kernel.UserID]map[string]bool
}

func newMemoryMFARepo() *memoryMFARepo {
	return &memoryMFARepo{
		enrollments: make(map[string]*mfa.Enrollment),
		pending:     make(map[string]*mfa.PendingCode),
		backup:      make(map[kernel.UserID]map[string]bool),
	}
}

func enrollKey(userID kernel.UserID, method mfa.Method) string {
	return userID.String() + "/" + string(method)
}

func (r *memoryMFARepo) FindEnrollment(ctx context.Context, userID kernel.UserID, method mfa.Method) (*mfa.Enrollment, error) {
	if e, ok := r.enrollments[enrollKey(userID, method)]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, mfa.ErrNotConfigured(method)
}

func (r *memoryMFARepo) FindEnabled(ctx context.Context, userID kernel.UserID) ([]mfa.Enrollment, error) {
	var out []mfa.Enrollment
	for _, e := range r.enrollments {
		if e.UserID == userID && e.Enabled {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *memoryMFARepo) SaveEnrollment(ctx context.Context, e mfa.Enrollment) error {
	cp := e
	r.enrollments[enrollKey(e.UserID, e.Method)] = &cp
	return nil
}

func (r *memoryMFARepo) EnableEnrollment(ctx context.Context, userID kernel.UserID, method mfa.Method) error {
	e, ok := r.enrollments[enrollKey(userID, method)]
	if !ok {
		return mfa.ErrNotConfigured(method)
	}
	now := time.Now()
	e.Enabled = true
	e.EnabledAt = &now
	return nil
}

func (r *memoryMFARepo) DeleteEnrollment(ctx context.Context, userID kernel.UserID, method mfa.Method) error {
	key := enrollKey(userID, method)
	if _, ok := r.enrollments[key]; !ok {
		return mfa.ErrNotConfigured(method)
	}
	delete(r.enrollments, key)
	delete(r.pending, key)
	return nil
}

func (r *memoryMFARepo) SavePendingCode(ctx context.Context, c mfa.PendingCode) error {
	cp := c
	r.pending[enrollKey(c.UserID, c.Method)] = &cp
	return nil
}

func (r *memoryMFARepo) LatestCodeSentAt(ctx context.Context, userID kernel.UserID, method mfa.Method) (time.Time, error) {
	if c, ok := r.pending[enrollKey(userID, method)]; ok {
		return c.CreatedAt, nil
	}
	return time.Time{}, nil
}

func (r *memoryMFARepo) ConsumePendingCode(ctx context.Context, userID kernel.UserID, method mfa.Method, codeHash string, now time.Time) (bool, error) {
	key := enrollKey(userID, method)
	c, ok := r.pending[key]
	if !ok || c.CodeHash != codeHash || !c.ExpiresAt.After(now) {
		return false, nil
	}
	delete(r.pending, key)
	return true, nil
}

func (r *memoryMFARepo) PurgeExpiredCodes(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	for key, c := range r.pending {
		if !c.ExpiresAt.After(before) {
			delete(r.pending, key)
			purged++
		}
	}
	return purged, nil
}

func (r *memoryMFARepo) ReplaceBackupCodes(ctx context.Context, userID kernel.UserID, hashes []string) error {
	set := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		set[h] = true
	}
	r.backup[userID] = set
	return nil
}

func (r *memoryMFARepo) ConsumeBackupCode(ctx context.Context, userID kernel.UserID, codeHash string) (bool, error) {
	set := r.backup[userID]
	if !set[codeHash] {
		return false, nil
	}
	delete(set, codeHash)
	return true, nil
}

func (r *memoryMFARepo) CountBackupCodes(ctx context.Context, userID kernel.UserID) (int, error) {
	return len(r.backup[userID]), nil
}

// captureSender records the last code handed to the delivery channel.
type captureSender struct {
	lastCode        string
	lastDestination string
	sent            int
}

func (s *captureSender) SendCode(ctx context.Context, msg notifx.CodeMessage) error {
	s.lastCode = msg.Code
	s.lastDestination = msg.Destination
	s.sent++
	return nil
}

func newEngine(t *testing.T, repo mfa.Repository, sender notifx.CodeSender) *mfasrv.Engine {
	t.Helper()
	cipher, err := cryptox.NewKeyCipher("mfa-test-passphrase")
	if err != nil {
		t.Fatalf("NewKeyCipher: %v", err)
	}
	return mfasrv.NewEngine(repo, cipher, notifx.NewClient(sender, sender), mfasrv.Options{
		Issuer: "trustgate-test",
	})
}

func totpCodeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}
	return code
}

func TestTOTP_SetupEnableAndLogin(t *testing.T) {
	repo := newMemoryMFARepo()
	engine := newEngine(t, repo, &captureSender{})
	ctx := context.Background()
	userID := kernel.NewUserID("user-1")

	setup, err := engine.SetupTOTP(ctx, userID, "alice")
	if err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}
	if setup.Secret == "" || setup.URL == "" {
		t.Fatal("setup must return secret and provisioning URL")
	}

	backup, err := engine.VerifyAndEnable(ctx, userID, mfa.MethodTOTP, totpCodeAt(t, setup.Secret, time.Now()))
	if err != nil {
		t.Fatalf("VerifyAndEnable: %v", err)
	}
	if len(backup) != 10 {
		t.Fatalf("expected 10 backup codes, got %d", len(backup))
	}
	format := regexp.MustCompile(`^[0-9A-Z]{5}-[0-9A-Z]{5}$`)
	for _, code := range backup {
		if !format.MatchString(code) {
			t.Errorf("backup code %q does not match XXXXX-XXXXX", code)
		}
	}

	usedBackup, err := engine.VerifyLogin(ctx, userID, totpCodeAt(t, setup.Secret, time.Now()))
	if err != nil {
		t.Errorf("login with current TOTP code: %v", err)
	}
	if usedBackup {
		t.Error("TOTP login should not burn a backup code")
	}
}

func TestTOTP_AcceptsAdjacentStepOnly(t *testing.T) {
	repo := newMemoryMFARepo()
	engine := newEngine(t, repo, &captureSender{})
	ctx := context.Background()
	userID := kernel.NewUserID("user-1")

	setup, err := engine.SetupTOTP(ctx, userID, "alice")
	if err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}
	if _, err := engine.VerifyAndEnable(ctx, userID, mfa.MethodTOTP, totpCodeAt(t, setup.Secret, time.Now())); err != nil {
		t.Fatalf("VerifyAndEnable: %v", err)
	}

	cases := []struct {
		name   string
		offset time.Duration
		accept bool
	}{
		{"previous step", -30 * time.Second, true},
		{"next step", 30 * time.Second, true},
		{"two steps back", -90 * time.Second, false},
		{"two steps ahead", 90 * time.Second, false},
	}
	for _, tc := range cases {
		code := totpCodeAt(t, setup.Secret, time.Now().Add(tc.offset))
		_, err := engine.VerifyLogin(ctx, userID, code)
		if tc.accept && err != nil {
			t.Errorf("%s: expected accept, got %v", tc.name, err)
		}
		if !tc.accept && !errx.IsCode(err, mfa.CodeInvalidCode) {
			t.Errorf("%s: expected INVALID_CODE, got %v", tc.name, err)
		}
	}
}

func TestDelivery_SetupAndSingleUse(t *testing.T) {
	repo := newMemoryMFARepo()
	sender := &captureSender{}
	engine := newEngine(t, repo, sender)
	ctx := context.Background()
	userID := kernel.NewUserID("user-1")

	if err := engine.SetupDelivery(ctx, userID, mfa.MethodSMS, "+15550100"); err != nil {
		t.Fatalf("SetupDelivery: %v", err)
	}
	if sender.lastDestination != "+15550100" {
		t.Errorf("code sent to %q", sender.lastDestination)
	}

	if _, err := engine.VerifyAndEnable(ctx, userID, mfa.MethodSMS, sender.lastCode); err != nil {
		t.Fatalf("VerifyAndEnable: %v", err)
	}

	// The enable consumed the code; replaying it must fail.
	_, err := engine.VerifyLogin(ctx, userID, sender.lastCode)
	if !errx.IsCode(err, mfa.CodeInvalidCode) {
		t.Errorf("replayed code: expected INVALID_CODE, got %v", err)
	}
}

func TestDelivery_ResendWindow(t *testing.T) {
	repo := newMemoryMFARepo()
	sender := &captureSender{}
	engine := newEngine(t, repo, sender)
	ctx := context.Background()
	userID := kernel.NewUserID("user-1")

	if err := engine.SetupDelivery(ctx, userID, mfa.MethodEmail, "alice@example.com"); err != nil {
		t.Fatalf("SetupDelivery: %v", err)
	}

	err := engine.SendCode(ctx, userID, mfa.MethodEmail)
	if !errx.IsCode(err, mfa.CodeResendTooSoon) {
		t.Errorf("immediate resend: expected RESEND_TOO_SOON, got %v", err)
	}
	if sender.sent != 1 {
		t.Errorf("expected exactly one delivery, got %d", sender.sent)
	}
}

func TestDelivery_ExpiredCodeRejected(t *testing.T) {
	repo := newMemoryMFARepo()
	sender := &captureSender{}
	engine := newEngine(t, repo, sender)
	ctx := context.Background()
	userID := kernel.NewUserID("user-1")

	if err := engine.SetupDelivery(ctx, userID, mfa.MethodSMS, "+15550100"); err != nil {
		t.Fatalf("SetupDelivery: %v", err)
	}

	// Age the stored code past its TTL.
	key := userID.String() + "/" + string(mfa.MethodSMS)
	repo.pending[key].ExpiresAt = time.Now().Add(-time.Second)

	_, err := engine.VerifyAndEnable(ctx, userID, mfa.MethodSMS, sender.lastCode)
	if !errx.IsCode(err, mfa.CodeInvalidCode) {
		t.Errorf("expired code: expected INVALID_CODE, got %v", err)
	}
}

func TestBackupCode_SingleUse(t *testing.T) {
	repo := newMemoryMFARepo()
	engine := newEngine(t, repo, &captureSender{})
	ctx := context.Background()
	userID := kernel.NewUserID("user-1")

	setup, err := engine.SetupTOTP(ctx, userID, "alice")
	if err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}
	backup, err := engine.VerifyAndEnable(ctx, userID, mfa.MethodTOTP, totpCodeAt(t, setup.Secret, time.Now()))
	if err != nil {
		t.Fatalf("VerifyAndEnable: %v", err)
	}

	usedBackup, err := engine.VerifyLogin(ctx, userID, backup[0])
	if err != nil {
		t.Fatalf("first use of backup code: %v", err)
	}
	if !usedBackup {
		t.Error("expected backup-code path to report itself")
	}

	_, err = engine.VerifyLogin(ctx, userID, backup[0])
	if !errx.IsCode(err, mfa.CodeInvalidCode) {
		t.Errorf("second use of backup code: expected INVALID_CODE, got %v", err)
	}

	remaining, err := repo.CountBackupCodes(ctx, userID)
	if err != nil {
		t.Fatalf("CountBackupCodes: %v", err)
	}
	if remaining != 9 {
		t.Errorf("expected 9 codes remaining, got %d", remaining)
	}
}

func TestDisable_LastFactorClearsBackupCodes(t *testing.T) {
	repo := newMemoryMFARepo()
	engine := newEngine(t, repo, &captureSender{})
	ctx := context.Background()
	userID := kernel.NewUserID("user-1")

	setup, err := engine.SetupTOTP(ctx, userID, "alice")
	if err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}
	if _, err := engine.VerifyAndEnable(ctx, userID, mfa.MethodTOTP, totpCodeAt(t, setup.Secret, time.Now())); err != nil {
		t.Fatalf("VerifyAndEnable: %v", err)
	}

	if err := engine.Disable(ctx, userID, mfa.MethodTOTP); err != nil {
		t.Fatalf("Disable: %v", err)
	}

	methods, err := engine.EnabledMethods(ctx, userID)
	if err != nil {
		t.Fatalf("EnabledMethods: %v", err)
	}
	if len(methods) != 0 {
		t.Errorf("expected no enabled methods, got %v", methods)
	}

	count, err := repo.CountBackupCodes(ctx, userID)
	if err != nil {
		t.Fatalf("CountBackupCodes: %v", err)
	}
	if count != 0 {
		t.Errorf("expected backup codes cleared, got %d", count)
	}
}

func TestSetup_AlreadyEnabled(t *testing.T) {
	repo := newMemoryMFARepo()
	engine := newEngine(t, repo, &captureSender{})
	ctx := context.Background()
	userID := kernel.NewUserID("user-1")

	setup, err := engine.SetupTOTP(ctx, userID, "alice")
	if err != nil {
		t.Fatalf("SetupTOTP: %v", err)
	}
	if _, err := engine.VerifyAndEnable(ctx, userID, mfa.MethodTOTP, totpCodeAt(t, setup.Secret, time.Now())); err != nil {
		t.Fatalf("VerifyAndEnable: %v", err)
	}

	_, err = engine.SetupTOTP(ctx, userID, "alice")
	if !errx.IsCode(err, mfa.CodeAlreadyEnabled) {
		t.Errorf("expected ALREADY_ENABLED, got %v", err)
	}
}
