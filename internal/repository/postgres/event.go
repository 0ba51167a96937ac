package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/service/ingest"
)

// EventRepo is the append-only campaign event log.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed event log.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Append derives the organization from the campaign row in the same
// statement. Zero inserted rows means the campaign does not exist.
func (r *EventRepo) Append(ctx context.Context, e *domain.CampaignEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode event metadata: %w", err)
	}
	var createdAt interface{}
	if !e.CreatedAt.IsZero() {
		createdAt = e.CreatedAt
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO campaign_events (id, campaign_id, organization_id, contact_id, email, type, metadata, created_at)
		SELECT $1, c.id, c.organization_id, NULLIF($3, ''), $4, $5, $6, COALESCE($7::timestamptz, NOW())
		FROM campaigns c
		WHERE c.id = $2
	`, e.ID, e.CampaignID, e.ContactID, domain.NormalizeEmail(e.Email), e.Type, meta, createdAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ingest.ErrUnknownCampaign
	}
	return nil
}

func (r *EventRepo) SentRecipients(ctx context.Context, campaignID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT email FROM campaign_events
		WHERE campaign_id = $1 AND type = 'sent'
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("sent recipients: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out[domain.NormalizeEmail(email)] = true
	}
	return out, rows.Err()
}

// ListByCampaign returns a campaign's events oldest first.
func (r *EventRepo) ListByCampaign(ctx context.Context, campaignID string) ([]domain.CampaignEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, organization_id, COALESCE(contact_id, ''), email, type, metadata, created_at
		FROM campaign_events
		WHERE campaign_id = $1
		ORDER BY created_at, id
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := []domain.CampaignEvent{}
	for rows.Next() {
		var (
			e    domain.CampaignEvent
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.OrganizationID, &e.ContactID,
			&e.Email, &e.Type, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
