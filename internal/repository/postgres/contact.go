package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/service/contact"
)

// ContactRepo implements contact.Repository against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

const contactColumns = `id, organization_id, email, name, company, role, status, tags, created_at, updated_at`

func scanContact(s rowScanner) (*domain.Contact, error) {
	var (
		c    domain.Contact
		tags pq.StringArray
	)
	if err := s.Scan(&c.ID, &c.OrganizationID, &c.Email, &c.Name, &c.Company, &c.Role,
		&c.Status, &tags, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Tags = []string(tags)
	return &c, nil
}

func (r *ContactRepo) Get(ctx context.Context, orgID, id string) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1 AND organization_id = $2`, id, orgID))
	if err == sql.ErrNoRows {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

func (r *ContactRepo) List(ctx context.Context, orgID string, f contact.ListFilter) ([]domain.Contact, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	where := ` WHERE organization_id = $1`
	args := []interface{}{orgID}
	idx := 2

	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Tag != "" {
		where += fmt.Sprintf(" AND $%d = ANY(tags)", idx)
		args = append(args, f.Tag)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND (email ILIKE $%d OR name ILIKE $%d)", idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	q := `SELECT ` + contactColumns + ` FROM contacts` + where +
		fmt.Sprintf(" ORDER BY email LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	out, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	return out, total, nil
}

func (r *ContactRepo) ListActive(ctx context.Context, orgID string) ([]domain.Contact, error) {
	out, err := r.query(ctx, `SELECT `+contactColumns+`
		FROM contacts
		WHERE organization_id = $1 AND status = 'active'
		ORDER BY email`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list active contacts: %w", err)
	}
	return out, nil
}

func (r *ContactRepo) query(ctx context.Context, q string, args ...interface{}) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Upsert keys on (organization_id, email). xmax is zero only for a row the
// statement inserted, which tells a create from an update.
func (r *ContactRepo) Upsert(ctx context.Context, c *domain.Contact) (string, bool, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = domain.ContactActive
	}
	var (
		id      string
		created bool
	)
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO contacts (id, organization_id, email, name, company, role, status, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (organization_id, email) DO UPDATE
		SET name = EXCLUDED.name, company = EXCLUDED.company, role = EXCLUDED.role,
		    status = EXCLUDED.status, tags = EXCLUDED.tags, updated_at = NOW()
		RETURNING id, (xmax = 0)
	`, c.ID, c.OrganizationID, domain.NormalizeEmail(c.Email), c.Name, c.Company, c.Role,
		c.Status, pq.Array(nonNilTags(c.Tags))).Scan(&id, &created)
	if err != nil {
		return "", false, fmt.Errorf("upsert contact: %w", err)
	}
	return id, created, nil
}
