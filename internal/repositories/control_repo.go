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

const controlColumns = `id, risk_id, name, description, type, effectiveness, status,
	created_by, updated_by, created_at, updated_at`

// ControlRepository handles mitigations attached to risks.
type ControlRepository struct {
	db *database.DB
}

func NewControlRepository(db *database.DB) *ControlRepository {
	return &ControlRepository{db: db}
}

func scanControlRow(scanner rowScanner) (*models.Control, error) {
	var control models.Control

	err := scanner.Scan(
		&control.ID, &control.RiskID, &control.Name, &control.Description,
		&control.Type, &control.Effectiveness, &control.Status,
		&control.CreatedBy, &control.UpdatedBy, &control.CreatedAt, &control.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &control, nil
}

func scanControlRows(rows pgx.Rows) ([]*models.Control, error) {
	defer rows.Close()

	controls := make([]*models.Control, 0)
	for rows.Next() {
		control, err := scanControlRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan control: %w", err)
		}
		controls = append(controls, control)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating control rows: %w", err)
	}

	return controls, nil
}

func (r *ControlRepository) GetByID(ctx context.Context, id string) (*models.Control, error) {
	query := `SELECT ` + controlColumns + ` FROM controls WHERE id = $1`
	return scanControlRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *ControlRepository) ListByRisk(ctx context.Context, riskID string) ([]*models.Control, error) {
	query := `SELECT ` + controlColumns + ` FROM controls WHERE risk_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.Pool.Query(ctx, query, riskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query controls: %w", err)
	}

	return scanControlRows(rows)
}

func (r *ControlRepository) Create(ctx context.Context, control *models.Control) (*models.Control, error) {
	control.ID = uuid.New().String()

	now := time.Now()
	control.CreatedAt = now
	control.UpdatedAt = now

	if control.Status == "" {
		control.Status = models.ControlStatusPlanned
	}
	if control.Effectiveness == 0 {
		control.Effectiveness = 3
	}

	query := `
		INSERT INTO controls (id, risk_id, name, description, type, effectiveness, status,
			created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + controlColumns

	return scanControlRow(r.db.Pool.QueryRow(ctx, query,
		control.ID, control.RiskID, control.Name, control.Description,
		control.Type, control.Effectiveness, control.Status,
		control.CreatedBy, control.UpdatedBy, control.CreatedAt, control.UpdatedAt,
	))
}

func (r *ControlRepository) Update(ctx context.Context, id string, control *models.Control) (*models.Control, error) {
	control.UpdatedAt = time.Now()

	query := `
		UPDATE controls
		SET name = $1, description = $2, type = $3, effectiveness = $4, status = $5,
			updated_by = $6, updated_at = $7
		WHERE id = $8
		RETURNING ` + controlColumns

	return scanControlRow(r.db.Pool.QueryRow(ctx, query,
		control.Name, control.Description, control.Type, control.Effectiveness, control.Status,
		control.UpdatedBy, control.UpdatedAt, id,
	))
}

func (r *ControlRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM controls WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// CountByStatus returns control counts grouped by status.
func (r *ControlRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT status, COUNT(*) FROM controls GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count controls by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan control count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}
