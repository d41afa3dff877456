package mfainfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/trust/mfa"
	"github.com/jmoiron/sqlx"
)

// PostgresMFARepository implements mfa.Repository backed by PostgreSQL.
type PostgresMFARepository struct {
	db *sqlx.DB
}

// NewPostgresMFARepository creates a new PostgreSQL MFA repository.
func NewPostgresMFARepository(db *sqlx.DB) *PostgresMFARepository {
	return &PostgresMFARepository{db: db}
}

type enrollmentPersistence struct {
	ID              string       `db:"id"`
	UserID          string       `db:"user_id"`
	Method          string       `db:"method"`
	SecretEncrypted string       `db:"secret_encrypted"`
	Destination     string       `db:"destination"`
	Enabled         bool         `db:"enabled"`
	CreatedAt       time.Time    `db:"created_at"`
	EnabledAt       sql.NullTime `db:"enabled_at"`
}

func (p *enrollmentPersistence) toDomain() mfa.Enrollment {
	e := mfa.Enrollment{
		ID:              p.ID,
		UserID:          kernel.UserID(p.UserID),
		Method:          mfa.Method(p.Method),
		SecretEncrypted: p.SecretEncrypted,
		Destination:     p.Destination,
		Enabled:         p.Enabled,
		CreatedAt:       p.CreatedAt,
	}
	if p.EnabledAt.Valid {
		e.EnabledAt = &p.EnabledAt.Time
	}
	return e
}

// FindEnrollment retrieves one user/method enrollment, enabled or not.
func (r *PostgresMFARepository) FindEnrollment(ctx context.Context, userID kernel.UserID, method mfa.Method) (*mfa.Enrollment, error) {
	var p enrollmentPersistence
	err := r.db.GetContext(ctx, &p, `
		SELECT id, user_id, method, secret_encrypted, destination, enabled, created_at, enabled_at
		FROM mfa_enrollments
		WHERE user_id = $1 AND method = $2`,
		userID.String(), string(method),
	)
	if err == sql.ErrNoRows {
		return nil, mfa.ErrNotConfigured(method)
	}
	if err != nil {
		return nil, errx.Wrap(err, "failed to query mfa enrollment", errx.TypeInternal)
	}
	e := p.toDomain()
	return &e, nil
}

// FindEnabled lists the user's active factors.
func (r *PostgresMFARepository) FindEnabled(ctx context.Context, userID kernel.UserID) ([]mfa.Enrollment, error) {
	var rows []enrollmentPersistence
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, method, secret_encrypted, destination, enabled, created_at, enabled_at
		FROM mfa_enrollments
		WHERE user_id = $1 AND enabled = TRUE
		ORDER BY created_at`,
		userID.String(),
	)
	if err != nil {
		return nil, errx.Wrap(err, "failed to query enabled factors", errx.TypeInternal)
	}

	enrollments := make([]mfa.Enrollment, len(rows))
	for i := range rows {
		enrollments[i] = rows[i].toDomain()
	}
	return enrollments, nil
}

// SaveEnrollment upserts on (user_id, method) so restarting setup replaces
// the half-finished enrollment instead of conflicting.
func (r *PostgresMFARepository) SaveEnrollment(ctx context.Context, e mfa.Enrollment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_enrollments (id, user_id, method, secret_encrypted, destination, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, method) DO UPDATE SET
			secret_encrypted = EXCLUDED.secret_encrypted,
			destination = EXCLUDED.destination,
			enabled = EXCLUDED.enabled,
			created_at = EXCLUDED.created_at,
			enabled_at = NULL`,
		e.ID, e.UserID.String(), string(e.Method), e.SecretEncrypted,
		e.Destination, e.Enabled, e.CreatedAt,
	)
	if err != nil {
		return errx.Wrap(err, "failed to save mfa enrollment", errx.TypeInternal)
	}
	return nil
}

// EnableEnrollment activates a verified enrollment.
func (r *PostgresMFARepository) EnableEnrollment(ctx context.Context, userID kernel.UserID, method mfa.Method) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE mfa_enrollments
		SET enabled = TRUE, enabled_at = NOW()
		WHERE user_id = $1 AND method = $2`,
		userID.String(), string(method),
	)
	if err != nil {
		return errx.Wrap(err, "failed to enable mfa enrollment", errx.TypeInternal)
	}
	return requireRowAffected(result, mfa.ErrNotConfigured(method))
}

// DeleteEnrollment removes a factor and any codes in flight for it.
func (r *PostgresMFARepository) DeleteEnrollment(ctx context.Context, userID kernel.UserID, method mfa.Method) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM mfa_enrollments WHERE user_id = $1 AND method = $2`,
		userID.String(), string(method),
	)
	if err != nil {
		return errx.Wrap(err, "failed to delete mfa enrollment", errx.TypeInternal)
	}
	if err := requireRowAffected(result, mfa.ErrNotConfigured(method)); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM mfa_pending_codes WHERE user_id = $1 AND method = $2`,
		userID.String(), string(method),
	); err != nil {
		return errx.Wrap(err, "failed to delete pending codes", errx.TypeInternal)
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit enrollment deletion", errx.TypeInternal)
	}
	return nil
}

// SavePendingCode replaces any outstanding code for the user/method pair.
func (r *PostgresMFARepository) SavePendingCode(ctx context.Context, c mfa.PendingCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_pending_codes (id, user_id, method, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, method) DO UPDATE SET
			id = EXCLUDED.id,
			code_hash = EXCLUDED.code_hash,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at`,
		c.ID, c.UserID.String(), string(c.Method), c.CodeHash, c.ExpiresAt, c.CreatedAt,
	)
	if err != nil {
		return errx.Wrap(err, "failed to save pending code", errx.TypeInternal)
	}
	return nil
}

// LatestCodeSentAt returns the creation time of the outstanding code, or
// zero when none exists.
func (r *PostgresMFARepository) LatestCodeSentAt(ctx context.Context, userID kernel.UserID, method mfa.Method) (time.Time, error) {
	var createdAt time.Time
	err := r.db.GetContext(ctx, &createdAt, `
		SELECT created_at FROM mfa_pending_codes
		WHERE user_id = $1 AND method = $2`,
		userID.String(), string(method),
	)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errx.Wrap(err, "failed to query pending code", errx.TypeInternal)
	}
	return createdAt, nil
}

// ConsumePendingCode deletes the matching live code in one statement so a
// code can never verify twice.
func (r *PostgresMFARepository) ConsumePendingCode(ctx context.Context, userID kernel.UserID, method mfa.Method, codeHash string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM mfa_pending_codes
		WHERE user_id = $1 AND method = $2 AND code_hash = $3 AND expires_at > $4`,
		userID.String(), string(method), codeHash, now,
	)
	if err != nil {
		return false, errx.Wrap(err, "failed to consume pending code", errx.TypeInternal)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errx.Wrap(err, "failed to check consume result", errx.TypeInternal)
	}
	return affected == 1, nil
}

// PurgeExpiredCodes removes codes past their expiry.
func (r *PostgresMFARepository) PurgeExpiredCodes(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_pending_codes WHERE expires_at <= $1`, before,
	)
	if err != nil {
		return 0, errx.Wrap(err, "failed to purge expired codes", errx.TypeInternal)
	}
	return result.RowsAffected()
}

// ReplaceBackupCodes swaps the user's full set in one transaction.
func (r *PostgresMFARepository) ReplaceBackupCodes(ctx context.Context, userID kernel.UserID, hashes []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM mfa_backup_codes WHERE user_id = $1`, userID.String(),
	); err != nil {
		return errx.Wrap(err, "failed to clear backup codes", errx.TypeInternal)
	}

	for _, hash := range hashes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mfa_backup_codes (user_id, code_hash, created_at)
			VALUES ($1, $2, NOW())`,
			userID.String(), hash,
		); err != nil {
			return errx.Wrap(err, "failed to insert backup code", errx.TypeInternal)
		}
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit backup codes", errx.TypeInternal)
	}
	return nil
}

// ConsumeBackupCode deletes one matching code in a single statement.
func (r *PostgresMFARepository) ConsumeBackupCode(ctx context.Context, userID kernel.UserID, codeHash string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_backup_codes WHERE user_id = $1 AND code_hash = $2`,
		userID.String(), codeHash,
	)
	if err != nil {
		return false, errx.Wrap(err, "failed to consume backup code", errx.TypeInternal)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errx.Wrap(err, "failed to check consume result", errx.TypeInternal)
	}
	return affected == 1, nil
}

// CountBackupCodes reports how many unused codes remain.
func (r *PostgresMFARepository) CountBackupCodes(ctx context.Context, userID kernel.UserID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM mfa_backup_codes WHERE user_id = $1`, userID.String(),
	)
	if err != nil {
		return 0, errx.Wrap(err, "failed to count backup codes", errx.TypeInternal)
	}
	return count, nil
}

func requireRowAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to check update result", errx.TypeInternal)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
