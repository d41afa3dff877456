package consumerinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/cryptox"
	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/trust/consumer"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresConsumerRepository is the PostgreSQL implementation of
// consumer.Repository.
type PostgresConsumerRepository struct {
	db *sqlx.DB
}

// NewPostgresConsumerRepository creates a new repository instance.
func NewPostgresConsumerRepository(db *sqlx.DB) consumer.Repository {
	return &PostgresConsumerRepository{db: db}
}

func (r *PostgresConsumerRepository) FindByID(ctx context.Context, id kernel.ConsumerID) (*consumer.Consumer, error) {
	return r.findOne(ctx, `SELECT * FROM consumers WHERE id = $1`, id.String())
}

func (r *PostgresConsumerRepository) FindByName(ctx context.Context, name string) (*consumer.Consumer, error) {
	return r.findOne(ctx, `SELECT * FROM consumers WHERE name = $1`, name)
}

func (r *PostgresConsumerRepository) FindByAPIKeyHash(ctx context.Context, hash string) (*consumer.Consumer, error) {
	return r.findOne(ctx, `SELECT * FROM consumers WHERE api_key_hash = $1`, hash)
}

func (r *PostgresConsumerRepository) findOne(ctx context.Context, query string, arg interface{}) (*consumer.Consumer, error) {
	var p consumerPersistence
	if err := r.db.GetContext(ctx, &p, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, consumer.ErrConsumerNotFound()
		}
		return nil, errx.Wrap(err, "failed to find consumer", errx.TypeInternal)
	}
	c := toDomain(p)
	return &c, nil
}

func (r *PostgresConsumerRepository) Save(ctx context.Context, c consumer.Consumer) error {
	query := `
		INSERT INTO consumers (
			id, name, api_key_hash, public_key_pem, key_algorithm, key_version,
			allowed_ips, is_active, created_at, updated_at
		) VALUES (
			:id, :name, :api_key_hash, :public_key_pem, :key_algorithm, :key_version,
			:allowed_ips, :is_active, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			api_key_hash = EXCLUDED.api_key_hash,
			public_key_pem = EXCLUDED.public_key_pem,
			key_algorithm = EXCLUDED.key_algorithm,
			key_version = EXCLUDED.key_version,
			allowed_ips = EXCLUDED.allowed_ips,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.NamedExecContext(ctx, query, toPersistence(c))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return errx.New("consumer name already exists", errx.TypeConflict)
		}
		return errx.Wrap(err, "failed to save consumer", errx.TypeInternal).
			WithDetail("consumer_id", c.ID.String())
	}
	return nil
}

// consumerPersistence maps the consumers table row.
type consumerPersistence struct {
	ID           kernel.ConsumerID `db:"id"`
	Name         string            `db:"name"`
	APIKeyHash   string            `db:"api_key_hash"`
	PublicKeyPEM string            `db:"public_key_pem"`
	KeyAlgorithm string            `db:"key_algorithm"`
	KeyVersion   int               `db:"key_version"`
	AllowedIPs   pq.StringArray    `db:"allowed_ips"`
	IsActive     bool              `db:"is_active"`
	CreatedAt    time.Time         `db:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at"`
}

func toPersistence(c consumer.Consumer) consumerPersistence {
	return consumerPersistence{
		ID:           c.ID,
		Name:         c.Name,
		APIKeyHash:   c.APIKeyHash,
		PublicKeyPEM: c.PublicKeyPEM,
		KeyAlgorithm: string(c.KeyAlgorithm),
		KeyVersion:   c.KeyVersion,
		AllowedIPs:   c.AllowedIPs,
		IsActive:     c.IsActive,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func toDomain(p consumerPersistence) consumer.Consumer {
	return consumer.Consumer{
		ID:           p.ID,
		Name:         p.Name,
		APIKeyHash:   p.APIKeyHash,
		PublicKeyPEM: p.PublicKeyPEM,
		KeyAlgorithm: cryptox.Algorithm(p.KeyAlgorithm),
		KeyVersion:   p.KeyVersion,
		AllowedIPs:   p.AllowedIPs,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
