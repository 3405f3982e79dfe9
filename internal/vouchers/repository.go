package vouchers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balkly/backend/internal/models"
)

// Repository implements VoucherStore over PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a vouchers repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const detailQuery = `SELECT v.id, v.code, v.user_id, v.partner_id, v.offer_id, v.status,
	v.expires_at, v.redeemed_at, v.created_at, v.updated_at,
	p.name, o.title, o.benefit_type, o.benefit_value, o.min_purchase,
	u.full_name, u.email
	FROM vouchers v
	JOIN partners p ON p.id = v.partner_id
	JOIN offers o ON o.id = v.offer_id
	JOIN users u ON u.id = v.user_id`

func scanDetail(row pgx.Row) (*models.VoucherDetail, error) {
	var d models.VoucherDetail
	err := row.Scan(&d.ID, &d.Code, &d.UserID, &d.PartnerID, &d.OfferID, &d.Status,
		&d.ExpiresAt, &d.RedeemedAt, &d.CreatedAt, &d.UpdatedAt,
		&d.PartnerName, &d.OfferTitle, &d.BenefitType, &d.BenefitValue, &d.MinPurchase,
		&d.UserName, &d.UserEmail)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDetailByCode returns the joined voucher detail, or nil when unknown.
func (r *Repository) GetDetailByCode(ctx context.Context, code string) (*models.VoucherDetail, error) {
	d, err := scanDetail(r.pool.QueryRow(ctx, detailQuery+` WHERE v.code = $1`, code))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// FindActive returns the user's issued, unexpired voucher for a partner, or nil.
func (r *Repository) FindActive(ctx context.Context, userID, partnerID uuid.UUID, now time.Time) (*models.Voucher, error) {
	const q = `SELECT id, code, user_id, partner_id, offer_id, status, expires_at, redeemed_at, created_at, updated_at
		FROM vouchers WHERE user_id = $1 AND partner_id = $2 AND status = 'issued' AND expires_at > $3`
	var v models.Voucher
	err := r.pool.QueryRow(ctx, q, userID, partnerID, now).
		Scan(&v.ID, &v.Code, &v.UserID, &v.PartnerID, &v.OfferID, &v.Status, &v.ExpiresAt, &v.RedeemedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// ExpireLapsedFor flips the user's lapsed issued vouchers for one partner to
// expired. A lapsed row still holds the one-active slot in the partial unique
// index, so claims clear it before inserting.
func (r *Repository) ExpireLapsedFor(ctx context.Context, userID, partnerID uuid.UUID, now time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE vouchers SET status = 'expired', updated_at = NOW()
		WHERE user_id = $1 AND partner_id = $2 AND status = 'issued' AND expires_at <= $3`,
		userID, partnerID, now)
	return err
}

// Create inserts a voucher. The partial unique index on (user_id, partner_id)
// WHERE status='issued' rejects a second active voucher; callers treat that
// conflict as "claim race lost" and re-fetch.
func (r *Repository) Create(ctx context.Context, v *models.Voucher) error {
	const q = `INSERT INTO vouchers (code, user_id, partner_id, offer_id, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, v.Code, v.UserID, v.PartnerID, v.OfferID, string(v.Status), v.ExpiresAt).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
}

// Redeem performs the atomic issued -> redeemed transition and writes the
// redemption receipt plus the physical conversion in one transaction. The
// conditional UPDATE re-checks expires_at in SQL so a stale issued row can
// never be redeemed, and two racing staff get exactly one winner.
func (r *Repository) Redeem(ctx context.Context, p RedeemParams) (*models.Redemption, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var redeemedAt time.Time
	err = tx.QueryRow(ctx, `UPDATE vouchers
		SET status = 'redeemed', redeemed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'issued' AND expires_at > NOW()
		RETURNING redeemed_at`, p.VoucherID).Scan(&redeemedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, r.classifyRefusal(ctx, p.VoucherID)
		}
		return nil, err
	}

	var red models.Redemption
	red.VoucherID = p.VoucherID
	red.StaffUserID = p.StaffUserID
	red.Amount = p.Amount
	red.BenefitApplied = p.BenefitApplied
	red.Notes = p.Notes
	red.CommissionAmount = p.CommissionAmount
	err = tx.QueryRow(ctx, `INSERT INTO redemptions (voucher_id, staff_user_id, amount, benefit_applied, notes, commission_amount)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), $6)
		RETURNING id, created_at`,
		p.VoucherID, p.StaffUserID, p.Amount, p.BenefitApplied, p.Notes, p.CommissionAmount).
		Scan(&red.ID, &red.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}

	amount := 0.0
	if p.Amount != nil {
		amount = *p.Amount
	}
	_, err = tx.Exec(ctx, `INSERT INTO conversions (partner_id, voucher_id, redemption_id, type, amount, commission_rate, commission_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.PartnerID, p.VoucherID, red.ID, string(models.ConversionPhysical), amount, p.CommissionRate, p.CommissionAmount, string(models.ConversionPending))
	if err != nil {
		return nil, fmt.Errorf("insert conversion: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &red, nil
}

// classifyRefusal explains why the conditional redeem UPDATE matched nothing.
func (r *Repository) classifyRefusal(ctx context.Context, voucherID uuid.UUID) error {
	var status string
	var expiresAt time.Time
	err := r.pool.QueryRow(ctx, `SELECT status, expires_at FROM vouchers WHERE id = $1`, voucherID).
		Scan(&status, &expiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrVoucherNotFound
		}
		return err
	}
	if models.VoucherStatus(status) == models.VoucherRedeemed {
		return ErrVoucherRedeemed
	}
	return ErrVoucherExpired
}

// ListByUser returns the user's vouchers with partner/offer context, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.VoucherDetail, error) {
	rows, err := r.pool.Query(ctx, detailQuery+` WHERE v.user_id = $1 ORDER BY v.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.VoucherDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *d)
	}
	return list, rows.Err()
}

// ExpireLapsed marks issued vouchers past their expiry as expired. Advisory
// tidy-up for the worker; reads never trust stored status for expiry.
func (r *Repository) ExpireLapsed(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE vouchers SET status = 'expired', updated_at = NOW()
		WHERE status = 'issued' AND expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
