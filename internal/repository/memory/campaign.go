// Package memory provides in-process repositories for development mode
// and tests. Every type is safe for concurrent use.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository.
type CampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
	now       func() time.Time
}

func NewCampaignRepo() *CampaignRepo {
	return &CampaignRepo{campaigns: make(map[string]*domain.Campaign), now: time.Now}
}

func copyCampaign(c *domain.Campaign) *domain.Campaign {
	cp := *c
	cp.Blocks = append([]domain.Block(nil), c.Blocks...)
	cp.Tags = append([]string(nil), c.Tags...)
	return &cp
}

func (r *CampaignRepo) Get(_ context.Context, orgID, id string) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return nil, campaign.ErrNotFound
	}
	return copyCampaign(c), nil
}

// OrganizationOf returns the owner of a campaign.
func (r *CampaignRepo) OrganizationOf(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return "", false
	}
	return c.OrganizationID, true
}

func (r *CampaignRepo) List(_ context.Context, orgID string, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Campaign
	search := strings.ToLower(f.Search)
	for _, c := range r.campaigns {
		if c.OrganizationID != orgID {
			continue
		}
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Title), search) &&
			!strings.Contains(strings.ToLower(c.Subject), search) {
			continue
		}
		out = append(out, *copyCampaign(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	total := len(out)
	if f.Offset >= len(out) {
		return []domain.Campaign{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > len(out) || f.Limit <= 0 {
		end = len(out)
	}
	return out[f.Offset:end], total, nil
}

func (r *CampaignRepo) Create(_ context.Context, c *domain.Campaign) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := copyCampaign(c)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = r.now().UTC()
	}
	cp.UpdatedAt = cp.CreatedAt
	r.campaigns[cp.ID] = cp
	return cp.ID, nil
}

func (r *CampaignRepo) Update(_ context.Context, orgID, id string, u campaign.UpdateFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return campaign.ErrNotFound
	}
	if u.Title != nil {
		c.Title = *u.Title
	}
	if u.Subject != nil {
		c.Subject = *u.Subject
	}
	if u.PreviewText != nil {
		c.PreviewText = *u.PreviewText
	}
	if u.FromName != nil {
		c.FromName = *u.FromName
	}
	if u.FromEmail != nil {
		c.FromEmail = *u.FromEmail
	}
	if u.Blocks != nil {
		c.Blocks = append([]domain.Block(nil), (*u.Blocks)...)
	}
	if u.AudienceType != nil {
		c.AudienceType = *u.AudienceType
	}
	if u.Tags != nil {
		c.Tags = append([]string(nil), (*u.Tags)...)
	}
	if u.ScheduledAt != nil {
		at := *u.ScheduledAt
		c.ScheduledAt = &at
	}
	c.UpdatedAt = r.now().UTC()
	return nil
}

func (r *CampaignRepo) Delete(_ context.Context, orgID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return campaign.ErrNotFound
	}
	delete(r.campaigns, id)
	return nil
}

func (r *CampaignRepo) TransitionStatus(_ context.Context, orgID, id string, from []domain.CampaignStatus, to domain.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return campaign.ErrNotFound
	}
	for _, st := range from {
		if c.Status == st {
			now := r.now().UTC()
			c.Status = to
			c.UpdatedAt = now
			if to == domain.CampaignSent {
				c.SentAt = &now
			}
			return nil
		}
	}
	return campaign.ErrInvalidTransition
}

func (r *CampaignRepo) RecordProgress(_ context.Context, orgID, id string, sent, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return campaign.ErrNotFound
	}
	c.SentCount += sent
	c.FailedCount += failed
	c.UpdatedAt = r.now().UTC()
	return nil
}

func (r *CampaignRepo) IncrementEventCount(_ context.Context, campaignID string, t domain.EventType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok {
		return nil
	}
	switch t {
	case domain.EventDelivered:
		c.DeliveredCount++
	case domain.EventOpen:
		c.OpenCount++
	case domain.EventClick:
		c.ClickCount++
	case domain.EventBounce:
		c.BounceCount++
	case domain.EventComplaint:
		c.ComplaintCount++
	}
	return nil
}

func (r *CampaignRepo) ListDue(_ context.Context, now time.Time) ([]domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Campaign
	for _, c := range r.campaigns {
		if c.Status == domain.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			out = append(out, *copyCampaign(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(*out[j].ScheduledAt) })
	return out, nil
}

func (r *CampaignRepo) ListStale(_ context.Context, before time.Time) ([]domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Campaign
	for _, c := range r.campaigns {
		if c.Status == domain.CampaignSending && c.UpdatedAt.Before(before) {
			out = append(out, *copyCampaign(c))
		}
	}
	return out, nil
}
