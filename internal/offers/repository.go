package offers

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balkly/backend/internal/models"
)

// Repository provides offer persistence over PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an offers repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const offerCols = `id, partner_id, title, COALESCE(description, ''), benefit_type, benefit_value,
	min_purchase, COALESCE(image_key, ''), active, created_at, updated_at`

func scanOffer(row pgx.Row) (*models.Offer, error) {
	var o models.Offer
	err := row.Scan(&o.ID, &o.PartnerID, &o.Title, &o.Description, &o.BenefitType, &o.BenefitValue,
		&o.MinPurchase, &o.ImageKey, &o.Active, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOffer returns an offer by id, or nil when unknown.
func (r *Repository) GetOffer(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	o, err := scanOffer(r.pool.QueryRow(ctx, `SELECT `+offerCols+` FROM offers WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// GetDefaultActiveOffer returns the partner's newest active offer, or nil.
// Claims that name no offer land here.
func (r *Repository) GetDefaultActiveOffer(ctx context.Context, partnerID uuid.UUID) (*models.Offer, error) {
	o, err := scanOffer(r.pool.QueryRow(ctx, `SELECT `+offerCols+` FROM offers
		WHERE partner_id = $1 AND active = TRUE ORDER BY created_at DESC LIMIT 1`, partnerID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// ListByPartner returns a partner's offers, newest first.
func (r *Repository) ListByPartner(ctx context.Context, partnerID uuid.UUID, activeOnly bool) ([]models.Offer, error) {
	q := `SELECT ` + offerCols + ` FROM offers WHERE partner_id = $1`
	if activeOnly {
		q += ` AND active = TRUE`
	}
	q += ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, partnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *o)
	}
	return list, rows.Err()
}

// Create inserts an offer.
func (r *Repository) Create(ctx context.Context, o *models.Offer) error {
	const q = `INSERT INTO offers (partner_id, title, description, benefit_type, benefit_value, min_purchase, active)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, o.PartnerID, o.Title, o.Description, string(o.BenefitType), o.BenefitValue, o.MinPurchase, o.Active).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

// Update applies non-nil fields to an offer within the partner's scope.
func (r *Repository) Update(ctx context.Context, partnerID, id uuid.UUID, u OfferUpdate) (*models.Offer, error) {
	const q = `UPDATE offers SET
		title = COALESCE($3, title),
		description = COALESCE($4, description),
		benefit_type = COALESCE($5, benefit_type),
		benefit_value = COALESCE($6, benefit_value),
		min_purchase = COALESCE($7, min_purchase),
		active = COALESCE($8, active),
		updated_at = NOW()
		WHERE id = $1 AND partner_id = $2
		RETURNING ` + offerCols
	var benefitType *string
	if u.BenefitType != nil {
		s := string(*u.BenefitType)
		benefitType = &s
	}
	o, err := scanOffer(r.pool.QueryRow(ctx, q, id, partnerID,
		u.Title, u.Description, benefitType, u.BenefitValue, u.MinPurchase, u.Active))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// SetImageKey records the uploaded image object key for an offer.
func (r *Repository) SetImageKey(ctx context.Context, partnerID, id uuid.UUID, key string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE offers SET image_key = NULLIF($3,''), updated_at = NOW()
		WHERE id = $1 AND partner_id = $2`, id, partnerID, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes an offer within the partner's scope.
func (r *Repository) Delete(ctx context.Context, partnerID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM offers WHERE id = $1 AND partner_id = $2`, id, partnerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// OfferUpdate carries optional fields for partial updates.
type OfferUpdate struct {
	Title        *string             `json:"title"`
	Description  *string             `json:"description"`
	BenefitType  *models.BenefitType `json:"benefit_type"`
	BenefitValue *float64            `json:"benefit_value"`
	MinPurchase  *float64            `json:"min_purchase"`
	Active       *bool               `json:"active"`
}
