package partners

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balkly/backend/internal/models"
)

// Repository handles partner and partner staff persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a partners repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const partnerCols = `id, name, slug, COALESCE(site_url,''), tracking_code, commission_rate,
	COALESCE(category,''), COALESCE(city,''), active, created_at, updated_at`

func scanPartner(row pgx.Row) (*models.Partner, error) {
	var p models.Partner
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.SiteURL, &p.TrackingCode, &p.CommissionRate,
		&p.Category, &p.City, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID returns a partner by ID, or nil when no such partner exists.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	p, err := scanPartner(r.pool.QueryRow(ctx, `SELECT `+partnerCols+` FROM partners WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// GetByTrackingCode returns a partner by its tracking code, or nil when the
// code is unknown.
func (r *Repository) GetByTrackingCode(ctx context.Context, code string) (*models.Partner, error) {
	p, err := scanPartner(r.pool.QueryRow(ctx, `SELECT `+partnerCols+` FROM partners WHERE tracking_code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// List returns partners, optionally only active ones, ordered by name.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]models.Partner, error) {
	q := `SELECT ` + partnerCols + ` FROM partners`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// Create inserts a partner.
func (r *Repository) Create(ctx context.Context, p *models.Partner) error {
	const q = `INSERT INTO partners (name, slug, site_url, tracking_code, commission_rate, category, city, active)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, NULLIF($6,''), NULLIF($7,''), $8)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.Name, p.Slug, p.SiteURL, p.TrackingCode, p.CommissionRate, p.Category, p.City, p.Active).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// Update applies mutable partner fields.
func (r *Repository) Update(ctx context.Context, p *models.Partner) error {
	const q = `UPDATE partners SET name = $2, site_url = NULLIF($3,''), commission_rate = $4,
		category = NULLIF($5,''), city = NULLIF($6,''), active = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, p.ID, p.Name, p.SiteURL, p.CommissionRate, p.Category, p.City, p.Active).
		Scan(&p.UpdatedAt)
}

// GetMembership returns the caller's staff membership, or nil when the user
// belongs to no partner.
func (r *Repository) GetMembership(ctx context.Context, userID uuid.UUID) (*models.PartnerStaff, error) {
	const q = `SELECT id, partner_id, user_id, role, created_at, updated_at
		FROM partner_staff WHERE user_id = $1`
	var m models.PartnerStaff
	err := r.pool.QueryRow(ctx, q, userID).Scan(&m.ID, &m.PartnerID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ListStaff returns the staff roster for a partner.
func (r *Repository) ListStaff(ctx context.Context, partnerID uuid.UUID) ([]models.StaffMember, error) {
	const q = `SELECT ps.id, ps.partner_id, ps.user_id, u.email, u.full_name, ps.role, ps.created_at
		FROM partner_staff ps JOIN users u ON u.id = ps.user_id
		WHERE ps.partner_id = $1 ORDER BY u.full_name`
	rows, err := r.pool.Query(ctx, q, partnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.StaffMember
	for rows.Next() {
		var s models.StaffMember
		if err := rows.Scan(&s.ID, &s.PartnerID, &s.UserID, &s.Email, &s.FullName, &s.Role, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// AddStaff links a user to a partner with a role.
func (r *Repository) AddStaff(ctx context.Context, partnerID, userID uuid.UUID, role models.StaffRole) (*models.PartnerStaff, error) {
	const q = `INSERT INTO partner_staff (partner_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, partner_id, user_id, role, created_at, updated_at`
	var m models.PartnerStaff
	err := r.pool.QueryRow(ctx, q, partnerID, userID, string(role)).
		Scan(&m.ID, &m.PartnerID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateStaffRole changes a staff member's role within the partner.
func (r *Repository) UpdateStaffRole(ctx context.Context, id, partnerID uuid.UUID, role models.StaffRole) error {
	const q = `UPDATE partner_staff SET role = $3, updated_at = NOW() WHERE id = $1 AND partner_id = $2`
	tag, err := r.pool.Exec(ctx, q, id, partnerID, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// RemoveStaff deletes a staff membership within the partner.
func (r *Repository) RemoveStaff(ctx context.Context, id, partnerID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM partner_staff WHERE id = $1 AND partner_id = $2`, id, partnerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
