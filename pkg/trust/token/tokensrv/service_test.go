package tokensrv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/cryptox"
	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/trust/consumer"
	"github.com/Abraxas-365/trustgate/pkg/trust/providerkey"
	"github.com/Abraxas-365/trustgate/pkg/trust/providerkey/keysrv"
	"github.com/Abraxas-365/trustgate/pkg/trust/token"
	"github.com/Abraxas-365/trustgate/pkg/trust/token/tokensrv"
)

type memoryKeyStore struct {
	keys []*providerkey.ProviderKey
}

func (s *memoryKeyStore) ActiveKey(ctx context.Context) (*providerkey.ProviderKey, error) {
	for _, k := range s.keys {
		if k.Status == providerkey.StatusActive {
			return k, nil
		}
	}
	return nil, providerkey.ErrNoActiveKey()
}

func (s *memoryKeyStore) FindByID(ctx context.Context, id kernel.KeyID) (*providerkey.ProviderKey, error) {
	for _, k := range s.keys {
		if k.ID == id {
			return k, nil
		}
	}
	return nil, providerkey.ErrKeyNotFound()
}

func (s *memoryKeyStore) FindByVersion(ctx context.Context, version int) (*providerkey.ProviderKey, error) {
	for _, k := range s.keys {
		if k.Version == version {
			return k, nil
		}
	}
	return nil, providerkey.ErrKeyNotFound()
}

func (s *memoryKeyStore) Rotate(ctx context.Context, key *providerkey.ProviderKey) error {
	maxVersion := 0
	for _, k := range s.keys {
		if k.Status == providerkey.StatusActive {
			k.Status = providerkey.StatusInactive
		}
		if k.Version > maxVersion {
			maxVersion = k.Version
		}
	}
	key.Version = maxVersion + 1
	key.Status = providerkey.StatusActive
	s.keys = append(s.keys, key)
	return nil
}

func (s *memoryKeyStore) Revoke(ctx context.Context, id kernel.KeyID) error {
	for _, k := range s.keys {
		if k.ID == id {
			k.Status = providerkey.StatusRevoked
			now := time.Now().UTC()
			k.RevokedAt = &now
			return nil
		}
	}
	return providerkey.ErrKeyNotFound()
}

type memoryTokenRepo struct {
	byID map[kernel.TokenID]*token.Token
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{byID: make(map[kernel.TokenID]*token.Token)}
}

func (r *memoryTokenRepo) Save(ctx context.Context, t token.Token) error {
	cp := t
	r.byID[t.ID] = &cp
	return nil
}

func (r *memoryTokenRepo) FindByID(ctx context.Context, id kernel.TokenID) (*token.Token, error) {
	if t, ok := r.byID[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, token.ErrInvalidToken()
}

func (r *memoryTokenRepo) FindBySecretHash(ctx context.Context, hash string) (*token.Token, error) {
	for _, t := range r.byID {
		if t.SecretHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, token.ErrInvalidToken()
}

func (r *memoryTokenRepo) Revoke(ctx context.Context, id kernel.TokenID) (bool, error) {
	t, ok := r.byID[id]
	if !ok || t.RevokedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	t.RevokedAt = &now
	return true, nil
}

func (r *memoryTokenRepo) RevokeAllForUser(ctx context.Context, userID kernel.UserID) (int64, error) {
	now := time.Now().UTC()
	var n int64
	for _, t := range r.byID {
		if t.UserID == userID && t.RevokedAt == nil && t.ExpiresAt.After(now) {
			t.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *memoryTokenRepo) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	for id, t := range r.byID {
		if t.ExpiresAt.Before(before) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

// failingTokenRepo simulates a storage outage on the validation lookup.
type failingTokenRepo struct {
	*memoryTokenRepo
}

func (r *failingTokenRepo) FindBySecretHash(ctx context.Context, hash string) (*token.Token, error) {
	return nil, errx.Wrap(errors.New("connection refused"), "failed to find token by secret hash", errx.TypeInternal)
}

type fixture struct {
	svc      *tokensrv.TokenService
	keys     *keysrv.KeyService
	repo     *memoryTokenRepo
	keyStore *memoryKeyStore
	consumer *consumer.Consumer
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	cipher, err := cryptox.NewKeyCipher("token-test-passphrase")
	if err != nil {
		t.Fatalf("NewKeyCipher: %v", err)
	}

	keyStore := &memoryKeyStore{}
	keys := keysrv.NewKeyService(keyStore, cipher, cryptox.AlgorithmES256, 90*24*time.Hour, 10*24*time.Hour)
	repo := newMemoryTokenRepo()
	codec := token.NewBearerCodec("bearer-hmac-secret", "trustgate")

	return &fixture{
		svc:      tokensrv.NewTokenService(repo, keys, codec, ttl, 30*24*time.Hour),
		keys:     keys,
		repo:     repo,
		keyStore: keyStore,
		consumer: &consumer.Consumer{
			ID:       kernel.NewConsumerID("consumer-1"),
			Name:     "billing-portal",
			IsActive: true,
		},
	}
}

func TestIssueAndValidate(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	if _, err := f.keys.Rotate(ctx, "admin"); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	userID := kernel.NewUserID("user-1")
	bearer, issued, err := f.svc.Issue(ctx, userID, f.consumer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.KeyVersion != 1 {
		t.Errorf("expected key version 1, got %d", issued.KeyVersion)
	}

	got, err := f.svc.Validate(ctx, bearer, f.consumer.ID)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.ID != issued.ID {
		t.Errorf("expected token %s, got %s", issued.ID, got.ID)
	}
	if got.UserID != userID {
		t.Errorf("expected user %s, got %s", userID, got.UserID)
	}
}

func TestIssue_NoActiveKey(t *testing.T) {
	f := newFixture(t, time.Hour)

	_, _, err := f.svc.Issue(context.Background(), kernel.NewUserID("user-1"), f.consumer)
	if !errx.IsCode(err, token.CodeIssuanceBlocked) {
		t.Errorf("expected ISSUANCE_BLOCKED, got %v", err)
	}
}

func TestValidate_GarbageBearer(t *testing.T) {
	f := newFixture(t, time.Hour)

	_, err := f.svc.Validate(context.Background(), "not-a-token", f.consumer.ID)
	if !errx.IsCode(err, token.CodeInvalidToken) {
		t.Errorf("expected INVALID, got %v", err)
	}
}

func TestValidate_StorageFailurePropagates(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	if _, err := f.keys.Rotate(ctx, "admin"); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	bearer, _, err := f.svc.Issue(ctx, kernel.NewUserID("user-1"), f.consumer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	svc := tokensrv.NewTokenService(
		&failingTokenRepo{f.repo},
		f.keys,
		token.NewBearerCodec("bearer-hmac-secret", "trustgate"),
		time.Hour,
		30*24*time.Hour,
	)

	_, err = svc.Validate(ctx, bearer, f.consumer.ID)
	if errx.IsCode(err, token.CodeInvalidToken) {
		t.Fatalf("storage failure reported as an invalid token: %v", err)
	}
	var e *errx.Error
	if !errx.As(err, &e) || e.Type != errx.TypeInternal {
		t.Errorf("expected an internal error, got %v", err)
	}
}

func TestValidate_ExpiredRecord(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	if _, err := f.keys.Rotate(ctx, "admin"); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	bearer, issued, err := f.svc.Issue(ctx, kernel.NewUserID("user-1"), f.consumer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Age the stored record past its lifetime. The bearer's own exp claim
	// still has leeway headroom, so the record check is what trips.
	f.repo.byID[issued.ID].ExpiresAt = time.Now().UTC().Add(-time.Second)

	_, err = f.svc.Validate(ctx, bearer, f.consumer.ID)
	if !errx.IsCode(err, token.CodeTokenExpired) {
		t.Errorf("expected EXPIRED, got %v", err)
	}
}

func TestValidate_ConsumerMismatch(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	if _, err := f.keys.Rotate(ctx, "admin"); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	bearer, _, err := f.svc.Issue(ctx, kernel.NewUserID("user-1"), f.consumer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = f.svc.Validate(ctx, bearer, kernel.NewConsumerID("other-consumer"))
	if !errx.IsCode(err, token.CodeConsumerMismatch) {
		t.Errorf("expected CONSUMER_MISMATCH, got %v", err)
	}
}

func TestRevoke_Idempotent(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	if _, err := f.keys.Rotate(ctx, "admin"); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	bearer, issued, err := f.svc.Issue(ctx, kernel.NewUserID("user-1"), f.consumer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := f.svc.Revoke(ctx, issued.ID); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := f.svc.Revoke(ctx, issued.ID); err != nil {
		t.Fatalf("second revoke must be a no-op: %v", err)
	}
	if err := f.svc.Revoke(ctx, kernel.NewTokenID("missing")); err != nil {
		t.Fatalf("revoking unknown token must be a no-op: %v", err)
	}

	_, err = f.svc.Validate(ctx, bearer, f.consumer.ID)
	if !errx.IsCode(err, token.CodeTokenRevoked) {
		t.Errorf("expected REVOKED, got %v", err)
	}
}

func TestValidate_SurvivesKeyRotation(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	if _, err := f.keys.Rotate(ctx, "admin"); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	bearer, issued, err := f.svc.Issue(ctx, kernel.NewUserID("user-1"), f.consumer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Rotation retires the key for new signatures but the token stays
	// valid: verification pins to the version it was issued under.
	if _, err := f.keys.Rotate(ctx, "admin"); err != nil {
		t.Fatalf("second rotate: %v", err)
	}

	got, err := f.svc.Validate(ctx, bearer, f.consumer.ID)
	if err != nil {
		t.Fatalf("Validate after rotation: %v", err)
	}
	if got.KeyVersion != issued.KeyVersion {
		t.Errorf("key version changed: %d != %d", got.KeyVersion, issued.KeyVersion)
	}
}

func TestValidate_RevokedKeyInvalidatesTokens(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	first, err := f.keys.Rotate(ctx, "admin")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	bearer, _, err := f.svc.Issue(ctx, kernel.NewUserID("user-1"), f.consumer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := f.keys.Rotate(ctx, "admin"); err != nil {
		t.Fatalf("second rotate: %v", err)
	}
	if err := f.keys.Revoke(ctx, first.ID); err != nil {
		t.Fatalf("revoke key: %v", err)
	}

	_, err = f.svc.Validate(ctx, bearer, f.consumer.ID)
	if !errx.IsCode(err, token.CodeInvalidToken) {
		t.Errorf("token under revoked key: expected INVALID, got %v", err)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	if _, err := f.keys.Rotate(ctx, "admin"); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	userID := kernel.NewUserID("user-1")
	var bearers []string
	for i := 0; i < 3; i++ {
		bearer, _, err := f.svc.Issue(ctx, userID, f.consumer)
		if err != nil {
			t.Fatalf("Issue %d: %v", i, err)
		}
		bearers = append(bearers, bearer)
	}
	otherBearer, _, err := f.svc.Issue(ctx, kernel.NewUserID("user-2"), f.consumer)
	if err != nil {
		t.Fatalf("Issue other: %v", err)
	}

	n, err := f.svc.RevokeAllForUser(ctx, userID)
	if err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 revoked, got %d", n)
	}

	for i, bearer := range bearers {
		if _, err := f.svc.Validate(ctx, bearer, f.consumer.ID); !errx.IsCode(err, token.CodeTokenRevoked) {
			t.Errorf("bearer %d: expected REVOKED, got %v", i, err)
		}
	}
	if _, err := f.svc.Validate(ctx, otherBearer, f.consumer.ID); err != nil {
		t.Errorf("other user's token swept up in revocation: %v", err)
	}
}

func TestCleanup_RespectsRetention(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	if _, err := f.keys.Rotate(ctx, "admin"); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	_, fresh, err := f.svc.Issue(ctx, kernel.NewUserID("user-1"), f.consumer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, old, err := f.svc.Issue(ctx, kernel.NewUserID("user-2"), f.consumer)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	f.repo.byID[old.ID].ExpiresAt = time.Now().UTC().Add(-31 * 24 * time.Hour)

	purged, err := f.svc.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged, got %d", purged)
	}
	if _, ok := f.repo.byID[fresh.ID]; !ok {
		t.Error("token inside retention window was purged")
	}
}
