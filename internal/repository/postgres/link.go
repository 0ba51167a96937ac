package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/service/ingest"
)

// LinkRepo stores tracked links keyed by code.
type LinkRepo struct{ db *sql.DB }

// NewLinkRepo creates a Postgres-backed tracked link repository.
func NewLinkRepo(db *sql.DB) *LinkRepo { return &LinkRepo{db: db} }

// SaveLinks inserts links in one transaction, ignoring codes already present.
func (r *LinkRepo) SaveLinks(ctx context.Context, links []domain.TrackedLink) error {
	if len(links) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tracked_links (code, campaign_id, original_url, clicks, created_at)
		VALUES ($1, $2, $3, 0, NOW())
		ON CONFLICT (code) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, l := range links {
		if _, err := stmt.ExecContext(ctx, l.Code, l.CampaignID, l.OriginalURL); err != nil {
			return fmt.Errorf("save link %s: %w", l.Code, err)
		}
	}
	return tx.Commit()
}

func (r *LinkRepo) GetByCode(ctx context.Context, code string) (*domain.TrackedLink, error) {
	l := &domain.TrackedLink{}
	err := r.db.QueryRowContext(ctx, `
		SELECT code, campaign_id, original_url, clicks, created_at
		FROM tracked_links WHERE code = $1
	`, code).Scan(&l.Code, &l.CampaignID, &l.OriginalURL, &l.Clicks, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ingest.ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return l, nil
}

func (r *LinkRepo) IncrementClicks(ctx context.Context, code string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE tracked_links SET clicks = clicks + 1 WHERE code = $1`, code); err != nil {
		return fmt.Errorf("increment clicks: %w", err)
	}
	return nil
}

// TopLinks returns a campaign's links by descending raw clicks.
func (r *LinkRepo) TopLinks(ctx context.Context, campaignID string, limit int) ([]domain.TrackedLink, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT code, campaign_id, original_url, clicks, created_at
		FROM tracked_links
		WHERE campaign_id = $1
		ORDER BY clicks DESC, original_url
		LIMIT $2
	`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("top links: %w", err)
	}
	defer rows.Close()

	out := []domain.TrackedLink{}
	for rows.Next() {
		var l domain.TrackedLink
		if err := rows.Scan(&l.Code, &l.CampaignID, &l.OriginalURL, &l.Clicks, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
