package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/announce/internal/domain"
)

// FeedbackRepo stores one NPS response per (campaign, contact).
type FeedbackRepo struct{ db *sql.DB }

// NewFeedbackRepo creates a Postgres-backed NPS response repository.
func NewFeedbackRepo(db *sql.DB) *FeedbackRepo { return &FeedbackRepo{db: db} }

// Upsert replaces the score and keeps any stored comment.
func (r *FeedbackRepo) Upsert(ctx context.Context, resp *domain.NPSResponse) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO nps_responses (campaign_id, contact_id, score, comment, created_at, updated_at)
		VALUES ($1, $2, $3, '', NOW(), NOW())
		ON CONFLICT (campaign_id, contact_id) DO UPDATE
		SET score = EXCLUDED.score, updated_at = NOW()
	`, resp.CampaignID, resp.ContactID, resp.Score)
	if err != nil {
		return fmt.Errorf("upsert nps response: %w", err)
	}
	return nil
}

func (r *FeedbackRepo) UpdateComment(ctx context.Context, campaignID, contactID, comment string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE nps_responses SET comment = $1, updated_at = NOW()
		WHERE campaign_id = $2 AND contact_id = $3
	`, comment, campaignID, contactID)
	if err != nil {
		return fmt.Errorf("update nps comment: %w", err)
	}
	return nil
}

// ListByCampaign returns a campaign's responses, newest first.
func (r *FeedbackRepo) ListByCampaign(ctx context.Context, campaignID string) ([]domain.NPSResponse, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT campaign_id, contact_id, score, comment, created_at, updated_at
		FROM nps_responses
		WHERE campaign_id = $1
		ORDER BY updated_at DESC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list nps responses: %w", err)
	}
	defer rows.Close()

	out := []domain.NPSResponse{}
	for rows.Next() {
		var n domain.NPSResponse
		if err := rows.Scan(&n.CampaignID, &n.ContactID, &n.Score, &n.Comment, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan nps response: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
