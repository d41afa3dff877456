package userinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/trust/user"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresUserRepository is the PostgreSQL implementation of user.Repository.
type PostgresUserRepository struct {
	db *sqlx.DB
}

// NewPostgresUserRepository creates a new repository instance.
func NewPostgresUserRepository(db *sqlx.DB) user.Repository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	var p userPersistence
	query := `SELECT * FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &p, query, id.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by ID", errx.TypeInternal)
	}
	u := toDomain(p)
	return &u, nil
}

func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	var p userPersistence
	// Case-sensitive exact match; username collation is bytewise.
	query := `SELECT * FROM users WHERE username = $1`
	if err := r.db.GetContext(ctx, &p, query, username); err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by username", errx.TypeInternal)
	}
	u := toDomain(p)
	return &u, nil
}

func (r *PostgresUserRepository) Save(ctx context.Context, u user.User) error {
	query := `
		INSERT INTO users (
			id, username, email, password_hash, is_active, is_locked,
			failed_attempts, last_login_at, password_changed_at, created_at, updated_at
		) VALUES (
			:id, :username, :email, :password_hash, :is_active, :is_locked,
			:failed_attempts, :last_login_at, :password_changed_at, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			is_active = EXCLUDED.is_active,
			is_locked = EXCLUDED.is_locked,
			failed_attempts = EXCLUDED.failed_attempts,
			last_login_at = EXCLUDED.last_login_at,
			password_changed_at = EXCLUDED.password_changed_at,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.NamedExecContext(ctx, query, toPersistence(u))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return errx.New("username or email already exists", errx.TypeConflict)
		}
		return errx.Wrap(err, "failed to save user", errx.TypeInternal).
			WithDetail("user_id", u.ID.String())
	}
	return nil
}

func (r *PostgresUserRepository) RecordFailedAttempt(ctx context.Context, id kernel.UserID, threshold int) (int, bool, error) {
	// Single statement so two racing failures cannot both observe a
	// sub-threshold count and skip the lock.
	query := `
		UPDATE users
		   SET failed_attempts = failed_attempts + 1,
		       is_locked = is_locked OR (failed_attempts + 1 >= $2),
		       updated_at = NOW()
		 WHERE id = $1
		 RETURNING failed_attempts, is_locked`

	var attempts int
	var locked bool
	row := r.db.QueryRowxContext(ctx, query, id.String(), threshold)
	if err := row.Scan(&attempts, &locked); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, user.ErrUserNotFound()
		}
		return 0, false, errx.Wrap(err, "failed to record failed attempt", errx.TypeInternal)
	}
	return attempts, locked, nil
}

func (r *PostgresUserRepository) RecordSuccessfulLogin(ctx context.Context, id kernel.UserID) error {
	query := `
		UPDATE users
		   SET failed_attempts = 0,
		       last_login_at = NOW(),
		       updated_at = NOW()
		 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to record successful login", errx.TypeInternal)
	}
	return requireRowAffected(result)
}

func (r *PostgresUserRepository) Unlock(ctx context.Context, id kernel.UserID) error {
	query := `
		UPDATE users
		   SET is_locked = false,
		       failed_attempts = 0,
		       updated_at = NOW()
		 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to unlock user", errx.TypeInternal)
	}
	return requireRowAffected(result)
}

func (r *PostgresUserRepository) UpdatePasswordHash(ctx context.Context, id kernel.UserID, hash string) error {
	query := `
		UPDATE users
		   SET password_hash = $2,
		       password_changed_at = NOW(),
		       updated_at = NOW()
		 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id.String(), hash)
	if err != nil {
		return errx.Wrap(err, "failed to update password hash", errx.TypeInternal)
	}
	return requireRowAffected(result)
}

func requireRowAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if n == 0 {
		return user.ErrUserNotFound()
	}
	return nil
}

// userPersistence maps the users table row.
type userPersistence struct {
	ID                kernel.UserID  `db:"id"`
	Username          string         `db:"username"`
	Email             sql.NullString `db:"email"`
	PasswordHash      string         `db:"password_hash"`
	IsActive          bool           `db:"is_active"`
	IsLocked          bool           `db:"is_locked"`
	FailedAttempts    int            `db:"failed_attempts"`
	LastLoginAt       *time.Time     `db:"last_login_at"`
	PasswordChangedAt *time.Time     `db:"password_changed_at"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func toPersistence(u user.User) userPersistence {
	p := userPersistence{
		ID:                u.ID,
		Username:          u.Username,
		PasswordHash:      u.PasswordHash,
		IsActive:          u.IsActive,
		IsLocked:          u.IsLocked,
		FailedAttempts:    u.FailedAttempts,
		LastLoginAt:       u.LastLoginAt,
		PasswordChangedAt: u.PasswordChangedAt,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
	if u.Email != nil {
		p.Email = sql.NullString{String: *u.Email, Valid: true}
	}
	return p
}

func toDomain(p userPersistence) user.User {
	u := user.User{
		ID:                p.ID,
		Username:          p.Username,
		PasswordHash:      p.PasswordHash,
		IsActive:          p.IsActive,
		IsLocked:          p.IsLocked,
		FailedAttempts:    p.FailedAttempts,
		LastLoginAt:       p.LastLoginAt,
		PasswordChangedAt: p.PasswordChangedAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if p.Email.Valid {
		email := p.Email.String
		u.Email = &email
	}
	return u
}
