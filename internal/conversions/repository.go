package conversions

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balkly/backend/internal/models"
)

// Repository provides conversion persistence over PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a conversions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const conversionCols = `id, partner_id, voucher_id, redemption_id, type, amount,
	commission_rate, commission_amount, status, confirmed_at, paid_at, created_at, updated_at`

func scanConversion(row pgx.Row) (*models.Conversion, error) {
	var cv models.Conversion
	err := row.Scan(&cv.ID, &cv.PartnerID, &cv.VoucherID, &cv.RedemptionID, &cv.Type, &cv.Amount,
		&cv.CommissionRate, &cv.CommissionAmount, &cv.Status, &cv.ConfirmedAt, &cv.PaidAt, &cv.CreatedAt, &cv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cv, nil
}

// GetByID returns a conversion, or nil when unknown.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversion, error) {
	cv, err := scanConversion(r.pool.QueryRow(ctx, `SELECT `+conversionCols+` FROM conversions WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return cv, nil
}

// ListByPartner returns a partner's conversions, newest first. status and
// convType filter when non-empty.
func (r *Repository) ListByPartner(ctx context.Context, partnerID uuid.UUID, status, convType string) ([]models.Conversion, error) {
	const q = `SELECT ` + conversionCols + ` FROM conversions
		WHERE partner_id = $1
		AND ($2 = '' OR status = $2)
		AND ($3 = '' OR type = $3)
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, partnerID, status, convType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Conversion
	for rows.Next() {
		cv, err := scanConversion(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *cv)
	}
	return list, rows.Err()
}

// Create inserts a conversion (manual digital entry).
func (r *Repository) Create(ctx context.Context, cv *models.Conversion) error {
	const q = `INSERT INTO conversions (partner_id, voucher_id, redemption_id, type, amount, commission_rate, commission_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, cv.PartnerID, cv.VoucherID, cv.RedemptionID, string(cv.Type), cv.Amount,
		cv.CommissionRate, cv.CommissionAmount, string(cv.Status)).
		Scan(&cv.ID, &cv.CreatedAt, &cv.UpdatedAt)
}

// UpdateStatus moves a conversion to next, stamping confirmed_at/paid_at.
// The WHERE clause re-checks the current status so two racing updates apply
// the transition once.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, current, next models.ConversionStatus) (*models.Conversion, error) {
	const q = `UPDATE conversions SET status = $3,
		confirmed_at = CASE WHEN $3 = 'confirmed' THEN NOW() ELSE confirmed_at END,
		paid_at = CASE WHEN $3 = 'paid' THEN NOW() ELSE paid_at END,
		updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + conversionCols
	cv, err := scanConversion(r.pool.QueryRow(ctx, q, id, string(current), string(next)))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return cv, nil
}
