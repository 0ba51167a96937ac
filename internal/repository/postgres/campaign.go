package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `
	id, organization_id, title, subject, preview_text, from_name, from_email,
	blocks, audience_type, tags, status, scheduled_at,
	sent_count, failed_count, delivered_count, open_count, click_count,
	bounce_count, complaint_count, sent_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(s rowScanner) (*domain.Campaign, error) {
	var (
		c           domain.Campaign
		blocks      []byte
		tags        pq.StringArray
		scheduledAt sql.NullTime
		sentAt      sql.NullTime
	)
	if err := s.Scan(
		&c.ID, &c.OrganizationID, &c.Title, &c.Subject, &c.PreviewText, &c.FromName, &c.FromEmail,
		&blocks, &c.AudienceType, &tags, &c.Status, &scheduledAt,
		&c.SentCount, &c.FailedCount, &c.DeliveredCount, &c.OpenCount, &c.ClickCount,
		&c.BounceCount, &c.ComplaintCount, &sentAt, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		if err := json.Unmarshal(blocks, &c.Blocks); err != nil {
			return nil, fmt.Errorf("decode blocks of %s: %w", c.ID, err)
		}
	}
	c.Tags = []string(tags)
	if scheduledAt.Valid {
		t := scheduledAt.Time
		c.ScheduledAt = &t
	}
	if sentAt.Valid {
		t := sentAt.Time
		c.SentAt = &t
	}
	return &c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+campaignColumns+`
		FROM campaigns
		WHERE id = $1 AND organization_id = $2`, id, orgID)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, orgID string, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ` WHERE organization_id = $1`
	args := []interface{}{orgID}
	idx := 2

	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND (title ILIKE $%d OR subject ILIKE $%d)", idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	out, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	return out, total, nil
}

func (r *CampaignRepo) query(ctx context.Context, q string, args ...interface{}) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = domain.CampaignDraft
	}
	if c.AudienceType == "" {
		c.AudienceType = domain.AudienceAll
	}
	blocks, err := encodeBlocks(c.Blocks)
	if err != nil {
		return "", err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, organization_id, title, subject, preview_text, from_name, from_email,
			 blocks, audience_type, tags, status, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	`, c.ID, c.OrganizationID, c.Title, c.Subject, c.PreviewText, c.FromName, c.FromEmail,
		blocks, c.AudienceType, pq.Array(nonNilTags(c.Tags)), c.Status, c.ScheduledAt)
	if err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	return c.ID, nil
}

func (r *CampaignRepo) Update(ctx context.Context, orgID, id string, u campaign.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Subject != nil {
		add("subject", *u.Subject)
	}
	if u.PreviewText != nil {
		add("preview_text", *u.PreviewText)
	}
	if u.FromName != nil {
		add("from_name", *u.FromName)
	}
	if u.FromEmail != nil {
		add("from_email", *u.FromEmail)
	}
	if u.Blocks != nil {
		blocks, err := encodeBlocks(*u.Blocks)
		if err != nil {
			return err
		}
		add("blocks", blocks)
	}
	if u.AudienceType != nil {
		add("audience_type", *u.AudienceType)
	}
	if u.Tags != nil {
		add("tags", pq.Array(nonNilTags(*u.Tags)))
	}
	if u.ScheduledAt != nil {
		add("scheduled_at", *u.ScheduledAt)
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	q := fmt.Sprintf("UPDATE campaigns SET %s WHERE id = $%d AND organization_id = $%d",
		strings.Join(sets, ", "), idx, idx+1)
	args = append(args, id, orgID)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM campaigns
		WHERE id = $1 AND organization_id = $2 AND status IN ('draft','cancelled')
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// TransitionStatus is a compare-and-set on status. It distinguishes a
// missing campaign from one in the wrong state with a second lookup.
func (r *CampaignRepo) TransitionStatus(ctx context.Context, orgID, id string, from []domain.CampaignStatus, to domain.CampaignStatus) error {
	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = $1,
		    sent_at = CASE WHEN $1::text = 'sent' THEN NOW() ELSE sent_at END,
		    updated_at = NOW()
		WHERE id = $2 AND organization_id = $3 AND status = ANY($4)
	`, to, id, orgID, pq.Array(allowed))
	if err != nil {
		return fmt.Errorf("transition campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM campaigns WHERE id = $1 AND organization_id = $2)`,
		id, orgID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("transition campaign: %w", err)
	}
	if !exists {
		return campaign.ErrNotFound
	}
	return campaign.ErrInvalidTransition
}

func (r *CampaignRepo) RecordProgress(ctx context.Context, orgID, id string, sent, failed int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET sent_count = sent_count + $1, failed_count = failed_count + $2, updated_at = NOW()
		WHERE id = $3 AND organization_id = $4
	`, sent, failed, id, orgID)
	if err != nil {
		return fmt.Errorf("record progress: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

var counterColumns = map[domain.EventType]string{
	domain.EventDelivered: "delivered_count",
	domain.EventOpen:      "open_count",
	domain.EventClick:     "click_count",
	domain.EventBounce:    "bounce_count",
	domain.EventComplaint: "complaint_count",
}

// IncrementEventCount is a no-op for event types without a counter and for
// unknown campaigns.
func (r *CampaignRepo) IncrementEventCount(ctx context.Context, campaignID string, t domain.EventType) error {
	col, ok := counterColumns[t]
	if !ok {
		return nil
	}
	// col comes from the fixed map above.
	q := fmt.Sprintf("UPDATE campaigns SET %s = %s + 1 WHERE id = $1", col, col)
	if _, err := r.db.ExecContext(ctx, q, campaignID); err != nil {
		return fmt.Errorf("increment %s: %w", col, err)
	}
	return nil
}

func (r *CampaignRepo) ListDue(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	out, err := r.query(ctx, `SELECT `+campaignColumns+`
		FROM campaigns
		WHERE status = 'scheduled' AND scheduled_at IS NOT NULL AND scheduled_at <= $1
		ORDER BY scheduled_at`, now)
	if err != nil {
		return nil, fmt.Errorf("list due campaigns: %w", err)
	}
	return out, nil
}

func (r *CampaignRepo) ListStale(ctx context.Context, before time.Time) ([]domain.Campaign, error) {
	out, err := r.query(ctx, `SELECT `+campaignColumns+`
		FROM campaigns
		WHERE status = 'sending' AND updated_at < $1
		ORDER BY updated_at`, before)
	if err != nil {
		return nil, fmt.Errorf("list stale campaigns: %w", err)
	}
	return out, nil
}

func encodeBlocks(blocks []domain.Block) ([]byte, error) {
	if blocks == nil {
		blocks = []domain.Block{}
	}
	b, err := json.Marshal(blocks)
	if err != nil {
		return nil, fmt.Errorf("encode blocks: %w", err)
	}
	return b, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
