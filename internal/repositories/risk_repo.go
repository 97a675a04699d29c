package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/ewhitmore/riskledger/internal/database"
	"github.com/ewhitmore/riskledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

const riskColumns = `id, title, description, category, likelihood, impact, status,
	owner_id, treatment_plan, tags, review_date, created_by, updated_by, created_at, updated_at`

// RiskRepository handles register entries and the dashboard aggregates
// derived from them.
type RiskRepository struct {
	db *database.DB
}

func NewRiskRepository(db *database.DB) *RiskRepository {
	return &RiskRepository{db: db}
}

func scanRiskRow(scanner rowScanner) (*models.Risk, error) {
	var risk models.Risk

	err := scanner.Scan(
		&risk.ID, &risk.Title, &risk.Description, &risk.Category,
		&risk.Likelihood, &risk.Impact, &risk.Status,
		&risk.OwnerID, &risk.TreatmentPlan, pq.Array(&risk.Tags), &risk.ReviewDate,
		&risk.CreatedBy, &risk.UpdatedBy, &risk.CreatedAt, &risk.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &risk, nil
}

func scanRiskRows(rows pgx.Rows) ([]*models.Risk, error) {
	defer rows.Close()

	risks := make([]*models.Risk, 0)
	for rows.Next() {
		risk, err := scanRiskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan risk: %w", err)
		}
		risks = append(risks, risk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating risk rows: %w", err)
	}

	return risks, nil
}

func (r *RiskRepository) GetByID(ctx context.Context, id string) (*models.Risk, error) {
	query := `SELECT ` + riskColumns + ` FROM risks WHERE id = $1`
	return scanRiskRow(r.db.Pool.QueryRow(ctx, query, id))
}

// List returns risks matching the filter, newest first. Filters compose as
// AND; all values are bound parameters.
func (r *RiskRepository) List(ctx context.Context, filter models.RiskFilter, limit, offset int) ([]*models.Risk, error) {
	query := `SELECT ` + riskColumns + ` FROM risks WHERE 1=1`
	args := make([]interface{}, 0, 5)

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		query += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query risks: %w", err)
	}

	return scanRiskRows(rows)
}

func (r *RiskRepository) Create(ctx context.Context, risk *models.Risk) (*models.Risk, error) {
	risk.ID = uuid.New().String()

	now := time.Now()
	risk.CreatedAt = now
	risk.UpdatedAt = now

	if risk.Status == "" {
		risk.Status = models.RiskStatusOpen
	}
	if risk.Tags == nil {
		risk.Tags = []string{}
	}

	query := `
		INSERT INTO risks (id, title, description, category, likelihood, impact, status,
			owner_id, treatment_plan, tags, review_date, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + riskColumns

	return scanRiskRow(r.db.Pool.QueryRow(ctx, query,
		risk.ID, risk.Title, risk.Description, risk.Category, risk.Likelihood, risk.Impact, risk.Status,
		risk.OwnerID, risk.TreatmentPlan, pq.Array(risk.Tags), risk.ReviewDate,
		risk.CreatedBy, risk.UpdatedBy, risk.CreatedAt, risk.UpdatedAt,
	))
}

func (r *RiskRepository) Update(ctx context.Context, id string, risk *models.Risk) (*models.Risk, error) {
	risk.UpdatedAt = time.Now()

	if risk.Tags == nil {
		risk.Tags = []string{}
	}

	query := `
		UPDATE risks
		SET title = $1, description = $2, category = $3, likelihood = $4, impact = $5,
			status = $6, owner_id = $7, treatment_plan = $8, tags = $9, review_date = $10,
			updated_by = $11, updated_at = $12
		WHERE id = $13
		RETURNING ` + riskColumns

	return scanRiskRow(r.db.Pool.QueryRow(ctx, query,
		risk.Title, risk.Description, risk.Category, risk.Likelihood, risk.Impact,
		risk.Status, risk.OwnerID, risk.TreatmentPlan, pq.Array(risk.Tags), risk.ReviewDate,
		risk.UpdatedBy, risk.UpdatedAt, id,
	))
}

func (r *RiskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM risks WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// CountByStatus returns risk counts grouped by status.
func (r *RiskRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT status, COUNT(*) FROM risks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count risks by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// CountBySeverityBand buckets risks by likelihood*impact into the
// dashboard severity bands.
func (r *RiskRepository) CountBySeverityBand(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT CASE
			WHEN likelihood * impact >= 16 THEN 'critical'
			WHEN likelihood * impact >= 10 THEN 'high'
			WHEN likelihood * impact >= 5 THEN 'medium'
			ELSE 'low'
		END AS band, COUNT(*)
		FROM risks
		GROUP BY band
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count risks by severity: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var band string
		var count int
		if err := rows.Scan(&band, &count); err != nil {
			return nil, fmt.Errorf("failed to scan severity count: %w", err)
		}
		counts[band] = count
	}

	return counts, rows.Err()
}

// TopOpenRisks returns the highest-scoring open risks for the dashboard.
func (r *RiskRepository) TopOpenRisks(ctx context.Context, limit int) ([]*models.Risk, error) {
	query := `SELECT ` + riskColumns + `
		FROM risks
		WHERE status = 'open'
		ORDER BY likelihood * impact DESC, created_at ASC
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top risks: %w", err)
	}

	return scanRiskRows(rows)
}
