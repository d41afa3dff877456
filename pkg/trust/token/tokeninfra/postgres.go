package tokeninfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/trust/token"
	"github.com/jmoiron/sqlx"
)

// PostgresTokenRepository implements token.Repository backed by PostgreSQL.
type PostgresTokenRepository struct {
	db *sqlx.DB
}

// NewPostgresTokenRepository creates a new PostgreSQL token repository.
func NewPostgresTokenRepository(db *sqlx.DB) *PostgresTokenRepository {
	return &PostgresTokenRepository{db: db}
}

type tokenPersistence struct {
	ID         string       `db:"id"`
	UserID     string       `db:"user_id"`
	ConsumerID string       `db:"consumer_id"`
	SecretHash string       `db:"secret_hash"`
	KeyVersion int          `db:"key_version"`
	Signature  string       `db:"signature"`
	IssuedAt   time.Time    `db:"issued_at"`
	ExpiresAt  time.Time    `db:"expires_at"`
	RevokedAt  sql.NullTime `db:"revoked_at"`
}

func (p *tokenPersistence) toDomain() *token.Token {
	t := &token.Token{
		ID:         kernel.TokenID(p.ID),
		UserID:     kernel.UserID(p.UserID),
		ConsumerID: kernel.ConsumerID(p.ConsumerID),
		SecretHash: p.SecretHash,
		KeyVersion: p.KeyVersion,
		Signature:  p.Signature,
		IssuedAt:   p.IssuedAt,
		ExpiresAt:  p.ExpiresAt,
	}
	if p.RevokedAt.Valid {
		t.RevokedAt = &p.RevokedAt.Time
	}
	return t
}

const tokenColumns = `id, user_id, consumer_id, secret_hash, key_version, signature, issued_at, expires_at, revoked_at`

// Save inserts a freshly issued token. Tokens are immutable except for
// revocation, so there is no upsert.
func (r *PostgresTokenRepository) Save(ctx context.Context, t token.Token) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tokens (id, user_id, consumer_id, secret_hash, key_version, signature, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID.String(), t.UserID.String(), t.ConsumerID.String(),
		t.SecretHash, t.KeyVersion, t.Signature, t.IssuedAt, t.ExpiresAt,
	)
	if err != nil {
		return errx.Wrap(err, "failed to save token", errx.TypeInternal)
	}
	return nil
}

// FindByID retrieves a token record by identifier.
func (r *PostgresTokenRepository) FindByID(ctx context.Context, id kernel.TokenID) (*token.Token, error) {
	return r.findOne(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, id.String())
}

// FindBySecretHash retrieves a token record by the hash of its secret.
func (r *PostgresTokenRepository) FindBySecretHash(ctx context.Context, hash string) (*token.Token, error) {
	return r.findOne(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE secret_hash = $1`, hash)
}

func (r *PostgresTokenRepository) findOne(ctx context.Context, query, arg string) (*token.Token, error) {
	var p tokenPersistence
	err := r.db.GetContext(ctx, &p, query, arg)
	if err == sql.ErrNoRows {
		return nil, token.ErrInvalidToken()
	}
	if err != nil {
		return nil, errx.Wrap(err, "failed to query token", errx.TypeInternal)
	}
	return p.toDomain(), nil
}

// Revoke stamps revoked_at once; a second call matches no rows.
func (r *PostgresTokenRepository) Revoke(ctx context.Context, id kernel.TokenID) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tokens SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`,
		id.String(),
	)
	if err != nil {
		return false, errx.Wrap(err, "failed to revoke token", errx.TypeInternal)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errx.Wrap(err, "failed to check revoke result", errx.TypeInternal)
	}
	return affected == 1, nil
}

// RevokeAllForUser revokes every live token of one user.
func (r *PostgresTokenRepository) RevokeAllForUser(ctx context.Context, userID kernel.UserID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE tokens SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()`,
		userID.String(),
	)
	if err != nil {
		return 0, errx.Wrap(err, "failed to revoke user tokens", errx.TypeInternal)
	}
	return result.RowsAffected()
}

// PurgeStale deletes tokens whose expiry predates the retention horizon,
// revoked or not.
func (r *PostgresTokenRepository) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE expires_at < $1`, before,
	)
	if err != nil {
		return 0, errx.Wrap(err, "failed to purge stale tokens", errx.TypeInternal)
	}
	return result.RowsAffected()
}
