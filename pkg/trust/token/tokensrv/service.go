package tokensrv

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/cryptox"
	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/logx"
	"github.com/Abraxas-365/trustgate/pkg/trust/consumer"
	"github.com/Abraxas-365/trustgate/pkg/trust/providerkey"
	"github.com/Abraxas-365/trustgate/pkg/trust/providerkey/keysrv"
	"github.com/Abraxas-365/trustgate/pkg/trust/token"
	"github.com/google/uuid"
)

const secretBytes = 32

// TokenService issues and validates access tokens.
type TokenService struct {
	repo      token.Repository
	keys      *keysrv.KeyService
	codec     *token.BearerCodec
	ttl       time.Duration
	retention time.Duration
}

// NewTokenService creates a token service. ttl is the token lifetime;
// retention is how long expired and revoked records stay queryable before
// cleanup removes them.
func NewTokenService(repo token.Repository, keys *keysrv.KeyService, codec *token.BearerCodec, ttl, retention time.Duration) *TokenService {
	if ttl == 0 {
		ttl = time.Hour
	}
	if retention == 0 {
		retention = 30 * 24 * time.Hour
	}
	return &TokenService{repo: repo, keys: keys, codec: codec, ttl: ttl, retention: retention}
}

// Issue mints a token for an authenticated user on behalf of a consumer.
// The record stores only the secret's hash, plus a provider signature over
// the identity binding pinned to the active key's version. With no active
// key, issuance fails outright.
func (s *TokenService) Issue(ctx context.Context, userID kernel.UserID, cons *consumer.Consumer) (string, *token.Token, error) {
	key, privPEM, err := s.keys.SigningKey(ctx)
	if err != nil {
		if errx.IsCode(err, providerkey.CodeNoActiveKey) || errx.IsCode(err, providerkey.CodeMultipleActiveKeys) {
			return "", nil, token.ErrIssuanceBlocked(err)
		}
		return "", nil, err
	}

	secret, err := cryptox.TokenSecret(secretBytes)
	if err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	t := token.Token{
		ID:         kernel.NewTokenID(uuid.NewString()),
		UserID:     userID,
		ConsumerID: cons.ID,
		SecretHash: cryptox.SHA256Hex(secret),
		KeyVersion: key.Version,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.ttl),
	}

	sig, err := cryptox.Sign(privPEM, key.Algorithm, t.SigningPayload())
	if err != nil {
		return "", nil, err
	}
	t.Signature = base64.StdEncoding.EncodeToString(sig)

	if err := s.repo.Save(ctx, t); err != nil {
		return "", nil, err
	}

	bearer, err := s.codec.Encode(&t, secret, cons.Name)
	if err != nil {
		return "", nil, err
	}

	logx.WithFields(logx.Fields{
		"token_id":    t.ID.String(),
		"user_id":     userID.String(),
		"consumer_id": cons.ID.String(),
		"key_version": t.KeyVersion,
		"expires_at":  t.ExpiresAt,
	}).Info("token issued")

	return bearer, &t, nil
}

// Validate checks a bearer string presented by consumerID and returns the
// backing record. The bearer only transports the secret; trust is
// established against the stored hash and the provider signature under the
// key generation the token was issued with.
func (s *TokenService) Validate(ctx context.Context, bearer string, consumerID kernel.ConsumerID) (*token.Token, error) {
	claims, err := s.codec.Decode(bearer)
	if err != nil {
		return nil, err
	}

	t, err := s.repo.FindBySecretHash(ctx, cryptox.SHA256Hex(claims.Secret))
	if err != nil {
		return nil, err
	}

	if t.IsRevoked() {
		return nil, token.ErrTokenRevoked()
	}
	if t.IsExpired(time.Now().UTC()) {
		return nil, token.ErrTokenExpired()
	}
	if t.ConsumerID != consumerID {
		return nil, token.ErrConsumerMismatch()
	}

	key, err := s.keys.VerificationKey(ctx, t.KeyVersion)
	if err != nil {
		if errx.IsCode(err, providerkey.CodeKeyNotFound) {
			return nil, token.ErrInvalidToken()
		}
		return nil, err
	}
	// A rotated-out key still verifies; a revoked one never does.
	if key.Status == providerkey.StatusRevoked {
		return nil, token.ErrInvalidToken()
	}

	sig, err := base64.StdEncoding.DecodeString(t.Signature)
	if err != nil {
		return nil, token.ErrInvalidToken()
	}
	if err := cryptox.Verify(key.PublicKeyPEM, key.Algorithm, t.SigningPayload(), sig); err != nil {
		return nil, token.ErrInvalidToken()
	}

	return t, nil
}

// Revoke retires a token by ID. Revoking an already-revoked or unknown
// token is a no-op, not an error.
func (s *TokenService) Revoke(ctx context.Context, id kernel.TokenID) error {
	revoked, err := s.repo.Revoke(ctx, id)
	if err != nil {
		return err
	}
	if revoked {
		logx.WithField("token_id", id.String()).Info("token revoked")
	}
	return nil
}

// RevokeBearer retires the token behind a bearer string. Expired bearers
// are a no-op; malformed ones are an error.
func (s *TokenService) RevokeBearer(ctx context.Context, bearer string) error {
	claims, err := s.codec.Decode(bearer)
	if errx.IsCode(err, token.CodeTokenExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.Revoke(ctx, kernel.NewTokenID(claims.ID))
}

// RevokeAllForUser retires every live token of one user, for password
// changes and account compromise.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID kernel.UserID) (int64, error) {
	n, err := s.repo.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logx.WithFields(logx.Fields{
			"user_id": userID.String(),
			"revoked": n,
		}).Info("all user tokens revoked")
	}
	return n, nil
}

// Cleanup deletes records whose expiry fell out of the retention window.
// Intended to run from the maintenance runner.
func (s *TokenService) Cleanup(ctx context.Context) (int64, error) {
	purged, err := s.repo.PurgeStale(ctx, time.Now().UTC().Add(-s.retention))
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		logx.WithField("purged", purged).Info("stale tokens purged")
	}
	return purged, nil
}
