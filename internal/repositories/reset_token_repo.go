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

// ResetTokenRepository stores password-reset tokens. Only token hashes are
// persisted; the used flag is monotonic false-to-true.
type ResetTokenRepository struct {
	db *database.DB
}

func NewResetTokenRepository(db *database.DB) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

func scanResetTokenRow(scanner rowScanner) (*models.ResetToken, error) {
	var token models.ResetToken

	err := scanner.Scan(
		&token.ID, &token.UserID, &token.TokenHash,
		&token.ExpiresAt, &token.UsedAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &token, nil
}

// Create stores a new token hash with its expiry. Multiple outstanding
// tokens per user are allowed; each is independently redeemable.
func (r *ResetTokenRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.ResetToken, error) {
	query := `
		INSERT INTO reset_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, token_hash, expires_at, used_at, created_at
	`

	token, err := scanResetTokenRow(r.db.Pool.QueryRow(ctx, query, uuid.New().String(), userID, tokenHash, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create reset token: %w", err)
	}

	return token, nil
}

// GetValidByHash returns the token matching hash only if it is unexpired
// and unused. Expired, used, and absent all collapse to ErrNotFound so the
// caller cannot distinguish them.
func (r *ResetTokenRepository) GetValidByHash(ctx context.Context, tokenHash string) (*models.ResetToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM reset_tokens
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
	`

	return scanResetTokenRow(r.db.Pool.QueryRow(ctx, query, tokenHash))
}

// MarkUsedTx flips the used flag inside the redemption transaction. The
// used_at IS NULL guard makes the transition single-shot even under
// concurrent redemption of the same token.
func (r *ResetTokenRepository) MarkUsedTx(ctx context.Context, tx pgx.Tx, id string) error {
	result, err := tx.Exec(ctx, `
		UPDATE reset_tokens SET used_at = NOW() WHERE id = $1 AND used_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark reset token used: %w", err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// CleanupExpired removes tokens whose expiry is well past; run by the
// background cleanup task.
func (r *ResetTokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `
		DELETE FROM reset_tokens
		WHERE expires_at < NOW() - INTERVAL '7 days' OR used_at IS NOT NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup reset tokens: %w", err)
	}

	return result.RowsAffected(), nil
}
