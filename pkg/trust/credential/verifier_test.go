package credential_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Abraxas-365/trustgate/pkg/cryptox"
	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/trust/credential"
	"github.com/Abraxas-365/trustgate/pkg/trust/user"
	"golang.org/x/crypto/bcrypt"
)

type memoryUserRepo struct {
	byID map[kernel.UserID]*user.User
}

func newMemoryUserRepo(users ...*user.User) *memoryUserRepo {
	repo := &memoryUserRepo{byID: make(map[kernel.UserID]*user.User)}
	for _, u := range users {
		repo.byID[u.ID] = u
	}
	return repo
}

func (r *memoryUserRepo) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	if u, ok := r.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, user.ErrUserNotFound()
}

func (r *memoryUserRepo) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	for _, u := range r.byID {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrUserNotFound()
}

func (r *memoryUserRepo) Save(ctx context.Context, u user.User) error {
	cp := u
	r.byID[u.ID] = &cp
	return nil
}

func (r *memoryUserRepo) RecordFailedAttempt(ctx context.Context, id kernel.UserID, threshold int) (int, bool, error) {
	u, ok := r.byID[id]
	if !ok {
		return 0, false, user.ErrUserNotFound()
	}
	u.FailedAttempts++
	if u.FailedAttempts >= threshold {
		u.IsLocked = true
	}
	return u.FailedAttempts, u.IsLocked, nil
}

func (r *memoryUserRepo) RecordSuccessfulLogin(ctx context.Context, id kernel.UserID) error {
	u, ok := r.byID[id]
	if !ok {
		return user.ErrUserNotFound()
	}
	u.FailedAttempts = 0
	return nil
}

func (r *memoryUserRepo) Unlock(ctx context.Context, id kernel.UserID) error {
	u, ok := r.byID[id]
	if !ok {
		return user.ErrUserNotFound()
	}
	u.IsLocked = false
	u.FailedAttempts = 0
	return nil
}

func (r *memoryUserRepo) UpdatePasswordHash(ctx context.Context, id kernel.UserID, hash string) error {
	u, ok := r.byID[id]
	if !ok {
		return user.ErrUserNotFound()
	}
	u.PasswordHash = hash
	return nil
}

// failingUserRepo simulates a storage outage on lookups.
type failingUserRepo struct {
	*memoryUserRepo
}

func (r *failingUserRepo) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	return nil, errx.Wrap(errors.New("connection refused"), "failed to find user by username", errx.TypeInternal)
}

func (r *failingUserRepo) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	return nil, errx.Wrap(errors.New("connection refused"), "failed to find user", errx.TypeInternal)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func testUser(t *testing.T, username, password string) *user.User {
	t.Helper()
	return &user.User{
		ID:           kernel.NewUserID("user-" + username),
		Username:     username,
		PasswordHash: mustHash(t, password),
		IsActive:     true,
	}
}

func newVerifier(repo user.Repository) *credential.Verifier {
	return credential.NewVerifier(repo, cryptox.NewPasswordHasher(bcrypt.MinCost), 5, 12)
}

func TestVerify_Success(t *testing.T) {
	repo := newMemoryUserRepo(testUser(t, "alice", "correct horse battery"))
	v := newVerifier(repo)

	u, err := v.Verify(context.Background(), "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("expected alice, got %s", u.Username)
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	repo := newMemoryUserRepo(testUser(t, "alice", "correct horse battery"))
	v := newVerifier(repo)

	_, err := v.Verify(context.Background(), "alice", "wrong")
	if !errx.IsCode(err, credential.CodeInvalidCredentials) {
		t.Errorf("expected INVALID_CREDENTIALS, got %v", err)
	}
}

func TestVerify_UnknownUserSameError(t *testing.T) {
	repo := newMemoryUserRepo()
	v := newVerifier(repo)

	_, err := v.Verify(context.Background(), "ghost", "whatever")
	if !errx.IsCode(err, credential.CodeInvalidCredentials) {
		t.Errorf("unknown user must not be distinguishable, got %v", err)
	}
}

func TestVerify_StorageFailurePropagates(t *testing.T) {
	v := newVerifier(&failingUserRepo{newMemoryUserRepo()})

	_, err := v.Verify(context.Background(), "alice", "correct horse battery")
	if errx.IsCode(err, credential.CodeInvalidCredentials) || errx.IsCode(err, credential.CodeAccountLocked) {
		t.Fatalf("storage failure reported as an authentication failure: %v", err)
	}
	var e *errx.Error
	if !errx.As(err, &e) || e.Type != errx.TypeInternal {
		t.Errorf("expected an internal error, got %v", err)
	}
}

func TestVerifyForUser_StorageFailurePropagates(t *testing.T) {
	v := newVerifier(&failingUserRepo{newMemoryUserRepo()})

	err := v.VerifyForUser(context.Background(), kernel.NewUserID("user-alice"), "correct horse battery")
	if errx.IsCode(err, credential.CodePasswordMismatch) {
		t.Fatalf("storage failure reported as a password mismatch: %v", err)
	}
	var e *errx.Error
	if !errx.As(err, &e) || e.Type != errx.TypeInternal {
		t.Errorf("expected an internal error, got %v", err)
	}
}

func TestVerify_LockoutAtThreshold(t *testing.T) {
	repo := newMemoryUserRepo(testUser(t, "alice", "correct horse battery"))
	v := newVerifier(repo)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		_, err := v.Verify(ctx, "alice", "wrong")
		if !errx.IsCode(err, credential.CodeInvalidCredentials) {
			t.Fatalf("attempt %d: expected INVALID_CREDENTIALS, got %v", i, err)
		}
	}

	// The fifth failure crosses the threshold and reports the lock.
	_, err := v.Verify(ctx, "alice", "wrong")
	if !errx.IsCode(err, credential.CodeAccountLocked) {
		t.Fatalf("attempt 5: expected ACCOUNT_LOCKED, got %v", err)
	}

	// Correct password no longer helps once locked.
	_, err = v.Verify(ctx, "alice", "correct horse battery")
	if !errx.IsCode(err, credential.CodeAccountLocked) {
		t.Errorf("locked account accepted a login: %v", err)
	}
}

func TestVerify_SuccessResetsCounter(t *testing.T) {
	u := testUser(t, "alice", "correct horse battery")
	u.FailedAttempts = 4
	repo := newMemoryUserRepo(u)
	v := newVerifier(repo)
	ctx := context.Background()

	if _, err := v.Verify(ctx, "alice", "correct horse battery"); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// Four more failures fit before the threshold again.
	for i := 1; i <= 4; i++ {
		_, err := v.Verify(ctx, "alice", "wrong")
		if !errx.IsCode(err, credential.CodeInvalidCredentials) {
			t.Fatalf("attempt %d after reset: expected INVALID_CREDENTIALS, got %v", i, err)
		}
	}
}

func TestVerify_InactiveUser(t *testing.T) {
	u := testUser(t, "bob", "correct horse battery")
	u.IsActive = false
	repo := newMemoryUserRepo(u)
	v := newVerifier(repo)

	_, err := v.Verify(context.Background(), "bob", "correct horse battery")
	if !errx.IsCode(err, credential.CodeInvalidCredentials) {
		t.Errorf("inactive account must not be distinguishable, got %v", err)
	}
}

func TestUnlock(t *testing.T) {
	u := testUser(t, "alice", "correct horse battery")
	u.IsLocked = true
	u.FailedAttempts = 5
	repo := newMemoryUserRepo(u)
	v := newVerifier(repo)
	ctx := context.Background()

	if err := v.Unlock(ctx, u.ID); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	if _, err := v.Verify(ctx, "alice", "correct horse battery"); err != nil {
		t.Errorf("login after unlock: %v", err)
	}
}

func TestUnlock_UnknownUser(t *testing.T) {
	v := newVerifier(newMemoryUserRepo())

	err := v.Unlock(context.Background(), kernel.NewUserID("ghost"))
	if !errx.IsCode(err, user.CodeUserNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	u := testUser(t, "alice", "correct horse battery")
	repo := newMemoryUserRepo(u)
	v := newVerifier(repo)
	ctx := context.Background()

	if err := v.ChangePassword(ctx, u.ID, "correct horse battery", "a brand new secret"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := v.Verify(ctx, "alice", "correct horse battery"); err == nil {
		t.Error("old password still accepted after change")
	}
	if _, err := v.Verify(ctx, "alice", "a brand new secret"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	u := testUser(t, "alice", "correct horse battery")
	v := newVerifier(newMemoryUserRepo(u))

	err := v.ChangePassword(context.Background(), u.ID, "wrong", "a brand new secret")
	if !errx.IsCode(err, credential.CodePasswordMismatch) {
		t.Errorf("expected PASSWORD_MISMATCH, got %v", err)
	}
}

func TestChangePassword_TooShort(t *testing.T) {
	u := testUser(t, "alice", "correct horse battery")
	v := newVerifier(newMemoryUserRepo(u))

	err := v.ChangePassword(context.Background(), u.ID, "correct horse battery", "short")
	if !errx.IsCode(err, credential.CodeWeakPassword) {
		t.Errorf("expected WEAK_PASSWORD, got %v", err)
	}
}
