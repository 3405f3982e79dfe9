package emaillogs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balkly/backend/internal/models"
)

// Repository persists transactional email logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordSent inserts a sent log entry.
func (r *Repository) RecordSent(ctx context.Context, l *models.EmailLog) error {
	now := time.Now()
	l.Status = models.EmailLogStatusSent
	l.SentAt = &now
	const q = `INSERT INTO email_logs (partner_id, voucher_id, email_type, recipient_email, subject, status, sent_at)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, $7)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, l.PartnerID, l.VoucherID, l.EmailType, l.RecipientEmail, l.Subject, l.Status, l.SentAt).
		Scan(&l.ID, &l.CreatedAt)
}

// RecordFailed inserts a failed log entry with the delivery error.
func (r *Repository) RecordFailed(ctx context.Context, l *models.EmailLog, sendErr error) error {
	l.Status = models.EmailLogStatusFailed
	if sendErr != nil {
		l.ErrorMessage = sendErr.Error()
	}
	const q = `INSERT INTO email_logs (partner_id, voucher_id, email_type, recipient_email, subject, status, error_message)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, NULLIF($7,''))
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, l.PartnerID, l.VoucherID, l.EmailType, l.RecipientEmail, l.Subject, l.Status, l.ErrorMessage).
		Scan(&l.ID, &l.CreatedAt)
}

// ListByPartner returns a partner's email logs, newest first, capped at limit.
func (r *Repository) ListByPartner(ctx context.Context, partnerID uuid.UUID, limit int) ([]models.EmailLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `SELECT id, partner_id, voucher_id, email_type, recipient_email, COALESCE(subject, ''),
		status, sent_at, COALESCE(error_message, ''), created_at
		FROM email_logs WHERE partner_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, partnerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.EmailLog
	for rows.Next() {
		var l models.EmailLog
		if err := rows.Scan(&l.ID, &l.PartnerID, &l.VoucherID, &l.EmailType, &l.RecipientEmail, &l.Subject,
			&l.Status, &l.SentAt, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
