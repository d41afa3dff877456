package keyinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/cryptox"
	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/trust/providerkey"
	"github.com/jmoiron/sqlx"
)

// PostgresKeyStore implements providerkey.Store backed by PostgreSQL.
type PostgresKeyStore struct {
	db *sqlx.DB
}

// NewPostgresKeyStore creates a new PostgreSQL key store.
func NewPostgresKeyStore(db *sqlx.DB) *PostgresKeyStore {
	return &PostgresKeyStore{db: db}
}

type keyPersistence struct {
	ID                  string       `db:"id"`
	PublicKeyPEM        string       `db:"public_key_pem"`
	PrivateKeyEncrypted string       `db:"private_key_encrypted"`
	Algorithm           string       `db:"algorithm"`
	Version             int          `db:"version"`
	Status              string       `db:"status"`
	ValidFrom           time.Time    `db:"valid_from"`
	ValidUntil          time.Time    `db:"valid_until"`
	CreatedBy           string       `db:"created_by"`
	CreatedAt           time.Time    `db:"created_at"`
	RevokedAt           sql.NullTime `db:"revoked_at"`
}

func (p *keyPersistence) toDomain() *providerkey.ProviderKey {
	key := &providerkey.ProviderKey{
		ID:                  kernel.KeyID(p.ID),
		PublicKeyPEM:        p.PublicKeyPEM,
		PrivateKeyEncrypted: p.PrivateKeyEncrypted,
		Algorithm:           cryptox.Algorithm(p.Algorithm),
		Version:             p.Version,
		Status:              providerkey.Status(p.Status),
		ValidFrom:           p.ValidFrom,
		ValidUntil:          p.ValidUntil,
		CreatedBy:           p.CreatedBy,
		CreatedAt:           p.CreatedAt,
	}
	if p.RevokedAt.Valid {
		key.RevokedAt = &p.RevokedAt.Time
	}
	return key
}

const keyColumns = `id, public_key_pem, private_key_encrypted, algorithm, version, status, valid_from, valid_until, created_by, created_at, revoked_at`

// ActiveKey returns the single active signing key. More than one active
// row is an invariant violation and is surfaced as an error.
func (s *PostgresKeyStore) ActiveKey(ctx context.Context) (*providerkey.ProviderKey, error) {
	var rows []keyPersistence
	query := `SELECT ` + keyColumns + ` FROM provider_keys WHERE status = 'active'`

	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errx.Wrap(err, "failed to query active key", errx.TypeInternal)
	}

	switch len(rows) {
	case 0:
		return nil, providerkey.ErrNoActiveKey()
	case 1:
		return rows[0].toDomain(), nil
	default:
		return nil, providerkey.ErrMultipleActiveKeys(len(rows))
	}
}

// FindByID retrieves a key by its identifier.
func (s *PostgresKeyStore) FindByID(ctx context.Context, id kernel.KeyID) (*providerkey.ProviderKey, error) {
	return s.findOne(ctx, `SELECT `+keyColumns+` FROM provider_keys WHERE id = $1`, id.String())
}

// FindByVersion retrieves a key by its global version number.
func (s *PostgresKeyStore) FindByVersion(ctx context.Context, version int) (*providerkey.ProviderKey, error) {
	return s.findOne(ctx, `SELECT `+keyColumns+` FROM provider_keys WHERE version = $1`, version)
}

func (s *PostgresKeyStore) findOne(ctx context.Context, query string, arg any) (*providerkey.ProviderKey, error) {
	var p keyPersistence
	err := s.db.GetContext(ctx, &p, query, arg)
	if err == sql.ErrNoRows {
		return nil, providerkey.ErrKeyNotFound()
	}
	if err != nil {
		return nil, errx.Wrap(err, "failed to query provider key", errx.TypeInternal)
	}
	return p.toDomain(), nil
}

// Rotate installs key as the new active generation in one transaction:
// every currently active key is flipped to inactive, the new key takes
// version max+1, and both changes commit together or not at all.
func (s *PostgresKeyStore) Rotate(ctx context.Context, key *providerkey.ProviderKey) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin rotation transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE provider_keys SET status = 'inactive' WHERE status = 'active'`,
	); err != nil {
		return providerkey.ErrRotationFailed(err)
	}

	var nextVersion int
	if err := tx.QueryRowxContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM provider_keys`,
	).Scan(&nextVersion); err != nil {
		return providerkey.ErrRotationFailed(err)
	}
	key.Version = nextVersion

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO provider_keys (
			id, public_key_pem, private_key_encrypted, algorithm, version,
			status, valid_from, valid_until, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, 'active', $6, $7, $8, $9)`,
		key.ID.String(), key.PublicKeyPEM, key.PrivateKeyEncrypted,
		string(key.Algorithm), key.Version, key.ValidFrom, key.ValidUntil,
		key.CreatedBy, key.CreatedAt,
	); err != nil {
		return providerkey.ErrRotationFailed(err)
	}

	if err := tx.Commit(); err != nil {
		return providerkey.ErrRotationFailed(err)
	}
	return nil
}

// Revoke marks a key as permanently retired. Revocation never flips back.
func (s *PostgresKeyStore) Revoke(ctx context.Context, id kernel.KeyID) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE provider_keys
		SET status = 'revoked', revoked_at = NOW()
		WHERE id = $1 AND status != 'revoked'`,
		id.String(),
	)
	if err != nil {
		return errx.Wrap(err, "failed to revoke provider key", errx.TypeInternal)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to check revocation result", errx.TypeInternal)
	}
	if affected == 0 {
		return providerkey.ErrKeyNotFound().WithDetail("id", id.String())
	}
	return nil
}
