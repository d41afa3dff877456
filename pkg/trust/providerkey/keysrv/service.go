package keysrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/cryptox"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/logx"
	"github.com/Abraxas-365/trustgate/pkg/trust/providerkey"
	"github.com/google/uuid"
)

// KeyService manages the provider signing key lifecycle: generation,
// rotation, revocation, and decryption of the active private key for
// signing.
type KeyService struct {
	store         providerkey.Store
	cipher        *cryptox.KeyCipher
	algorithm     cryptox.Algorithm
	validity      time.Duration
	warnThreshold time.Duration
}

// NewKeyService creates a new key service.
func NewKeyService(
	store providerkey.Store,
	cipher *cryptox.KeyCipher,
	algorithm cryptox.Algorithm,
	validity time.Duration,
	warnThreshold time.Duration,
) *KeyService {
	if validity == 0 {
		validity = 90 * 24 * time.Hour
	}
	if warnThreshold == 0 {
		warnThreshold = 10 * 24 * time.Hour
	}
	return &KeyService{
		store:         store,
		cipher:        cipher,
		algorithm:     algorithm,
		validity:      validity,
		warnThreshold: warnThreshold,
	}
}

// Rotate generates a new key pair, encrypts the private half, and installs
// it as the single active key. The store performs deactivate-old plus
// insert-new in one transaction and assigns the next global version.
func (s *KeyService) Rotate(ctx context.Context, createdBy string) (*providerkey.ProviderKey, error) {
	pair, err := cryptox.GenerateKeyPair(s.algorithm)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.cipher.Encrypt([]byte(pair.PrivatePEM))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	key := &providerkey.ProviderKey{
		ID:                  kernel.NewKeyID(uuid.NewString()),
		PublicKeyPEM:        pair.PublicPEM,
		PrivateKeyEncrypted: encrypted,
		Algorithm:           s.algorithm,
		Status:              providerkey.StatusActive,
		ValidFrom:           now,
		ValidUntil:          now.Add(s.validity),
		CreatedBy:           createdBy,
		CreatedAt:           now,
	}

	if err := s.store.Rotate(ctx, key); err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{
		"key_id":      key.ID.String(),
		"version":     key.Version,
		"algorithm":   string(key.Algorithm),
		"valid_until": key.ValidUntil,
	}).Info("provider signing key rotated")

	return key, nil
}

// Revoke retires a specific key generation. Terminal; tokens signed under
// it will no longer verify.
func (s *KeyService) Revoke(ctx context.Context, id kernel.KeyID) error {
	if err := s.store.Revoke(ctx, id); err != nil {
		return err
	}
	logx.WithField("key_id", id.String()).Warn("provider signing key revoked")
	return nil
}

// SigningKey returns the current active key together with its decrypted
// private PEM. Re-derived by query on every call.
func (s *KeyService) SigningKey(ctx context.Context) (*providerkey.ProviderKey, string, error) {
	key, err := s.store.ActiveKey(ctx)
	if err != nil {
		return nil, "", err
	}

	privPEM, err := s.cipher.Decrypt(key.PrivateKeyEncrypted)
	if err != nil {
		return nil, "", err
	}
	return key, string(privPEM), nil
}

// VerificationKey returns the key generation a token was signed under,
// regardless of whether it has since been rotated out.
func (s *KeyService) VerificationKey(ctx context.Context, version int) (*providerkey.ProviderKey, error) {
	return s.store.FindByVersion(ctx, version)
}

// RotateIfExpiring performs one proactive rotation check: when the active
// key's validity window ends inside the warning threshold, rotate now
// rather than risk a window with no usable key. Returns whether a rotation
// happened. Intended to run from the maintenance runner.
func (s *KeyService) RotateIfExpiring(ctx context.Context) (bool, error) {
	key, err := s.store.ActiveKey(ctx)
	if err != nil {
		return false, err
	}

	if !key.ExpiresWithin(s.warnThreshold) {
		return false, nil
	}

	logx.WithFields(logx.Fields{
		"key_id":      key.ID.String(),
		"valid_until": key.ValidUntil,
	}).Warn("active signing key near expiry, rotating proactively")

	if _, err := s.Rotate(ctx, "scheduler"); err != nil {
		return false, err
	}
	return true, nil
}
