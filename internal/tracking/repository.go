package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists tracking clicks.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tracking repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordClick inserts a click row for a partner.
func (r *Repository) RecordClick(ctx context.Context, partnerID uuid.UUID, referrer string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO clicks (partner_id, referrer) VALUES ($1, NULLIF($2,''))`, partnerID, referrer)
	return err
}

// CountClicks returns the number of clicks for a partner since a point in time.
func (r *Repository) CountClicks(ctx context.Context, partnerID uuid.UUID, since time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clicks WHERE partner_id = $1 AND created_at >= $2`, partnerID, since).Scan(&n)
	return n, err
}
