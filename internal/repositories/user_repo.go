package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/ewhitmore/riskledger/internal/database"
	"github.com/ewhitmore/riskledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, password_hash, name, role, active,
	mfa_enabled, mfa_secret_enc, mfa_secret_nonce, mfa_pending_enc, mfa_pending_nonce,
	failed_login_attempts, locked_until, password_expires_at, password_changed_at, last_login_at,
	avatar_url, created_by, updated_by, created_at, updated_at`

// UserRepository is the credential store: it owns password hashes, lockout
// counters, expiry timestamps, and MFA secrets. Every mutation is a single
// atomic UPDATE; callers never read-modify-write credential state.
type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var passwordHash *string

	err := scanner.Scan(
		&user.ID, &user.Email, &passwordHash, &user.Name, &user.Role, &user.Active,
		&user.MFAEnabled, &user.MFASecretEnc, &user.MFASecretNonce, &user.MFAPendingEnc, &user.MFAPendingNonce,
		&user.FailedLoginAttempts, &user.LockedUntil, &user.PasswordExpiresAt, &user.PasswordChangedAt, &user.LastLoginAt,
		&user.AvatarURL, &user.CreatedBy, &user.UpdatedBy, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}

	return &user, nil
}

func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = models.RoleAuditor
	}

	query := `
		INSERT INTO users (id, email, password_hash, name, role, active,
			password_expires_at, password_changed_at, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + userColumns

	var passwordHash *string
	if user.PasswordHash != "" {
		passwordHash = &user.PasswordHash
	}

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Email, passwordHash, user.Name, user.Role, user.Active,
		user.PasswordExpiresAt, user.PasswordChangedAt, user.CreatedBy, user.UpdatedBy,
		user.CreatedAt, user.UpdatedAt,
	))
}

// Update applies a typed partial update. Only non-nil patch fields become
// SET clauses, all values are bound parameters.
func (r *UserRepository) Update(ctx context.Context, id string, patch *models.UserPatch) (*models.User, error) {
	setClauses := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)

	add := func(column string, value interface{}) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Role != nil {
		add("role", *patch.Role)
	}
	if patch.Active != nil {
		add("active", *patch.Active)
	}
	if patch.AvatarURL != nil {
		add("avatar_url", *patch.AvatarURL)
	}
	if patch.UpdatedBy != nil {
		add("updated_by", *patch.UpdatedBy)
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, id)
	}

	add("updated_at", time.Now())

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s",
		joinClauses(setClauses), len(args), userColumns)

	return scanUserRow(r.db.Pool.QueryRow(ctx, query, args...))
}

func joinClauses(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// IncrementFailedAttempts bumps the failed-login counter in a single
// statement and returns the new count. Concurrent attempts cannot write
// back a stale value because the increment happens in the database.
func (r *UserRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING failed_login_attempts
	`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// SetLockout sets or clears the lockout expiry. Pass nil to clear.
func (r *UserRepository) SetLockout(ctx context.Context, id string, until *time.Time) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET locked_until = $1, updated_at = NOW() WHERE id = $2`, until, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClearFailedAttempts resets the counter and lockout together, the
// invariant on every successful password verification.
func (r *UserRepository) ClearFailedAttempts(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

const updatePasswordQuery = `
	UPDATE users
	SET password_hash = $1, password_expires_at = $2, password_changed_at = NOW(),
		failed_login_attempts = 0, locked_until = NULL, updated_at = NOW()
	WHERE id = $3
`

// UpdatePasswordHash replaces the stored hash, sets the new expiry, and
// clears lockout state in one statement.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, hash string, expiresAt time.Time) error {
	result, err := r.db.Pool.Exec(ctx, updatePasswordQuery, hash, expiresAt, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdatePasswordHashTx is the transactional variant used by reset
// redemption, where the password change and the token consumption must
// commit together.
func (r *UserRepository) UpdatePasswordHashTx(ctx context.Context, tx pgx.Tx, id, hash string, expiresAt time.Time) error {
	result, err := tx.Exec(ctx, updatePasswordQuery, hash, expiresAt, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetMFAPendingSecret stores the encrypted secret generated during setup.
// Pass nils to clear an abandoned setup.
func (r *UserRepository) SetMFAPendingSecret(ctx context.Context, id string, secretEnc, nonce []byte) error {
	result, err := r.db.Pool.Exec(ctx, `
		UPDATE users
		SET mfa_pending_enc = $1, mfa_pending_nonce = $2, updated_at = NOW()
		WHERE id = $3
	`, secretEnc, nonce, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetMFASecret promotes a verified secret to confirmed, enables the MFA
// flag, and clears the pending pair in the same statement so the
// "enabled implies confirmed, not pending" invariant cannot be observed
// broken.
func (r *UserRepository) SetMFASecret(ctx context.Context, id string, secretEnc, nonce []byte) error {
	result, err := r.db.Pool.Exec(ctx, `
		UPDATE users
		SET mfa_enabled = TRUE, mfa_secret_enc = $1, mfa_secret_nonce = $2,
			mfa_pending_enc = NULL, mfa_pending_nonce = NULL, updated_at = NOW()
		WHERE id = $3
	`, secretEnc, nonce, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClearMFA disables MFA and removes confirmed and pending secrets.
func (r *UserRepository) ClearMFA(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `
		UPDATE users
		SET mfa_enabled = FALSE, mfa_secret_enc = NULL, mfa_secret_nonce = NULL,
			mfa_pending_enc = NULL, mfa_pending_nonce = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RecordLogin stamps last_login_at. Callers treat failures as best-effort.
func (r *UserRepository) RecordLogin(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}
