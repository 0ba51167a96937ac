package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/service/ingest"
)

// OrgResolver maps a campaign to its organization.
type OrgResolver interface {
	OrganizationOf(campaignID string) (string, bool)
}

// EventRepo is an append-only event log.
type EventRepo struct {
	mu     sync.Mutex
	events []domain.CampaignEvent
	orgs   OrgResolver
}

// NewEventRepo creates an event log. Events for campaigns orgs does not
// know are rejected with ingest.ErrUnknownCampaign.
func NewEventRepo(orgs OrgResolver) *EventRepo {
	return &EventRepo{orgs: orgs}
}

func (r *EventRepo) Append(_ context.Context, e *domain.CampaignEvent) error {
	orgID, ok := r.orgs.OrganizationOf(e.CampaignID)
	if !ok {
		return ingest.ErrUnknownCampaign
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	cp.OrganizationID = orgID
	r.events = append(r.events, cp)
	return nil
}

func (r *EventRepo) SentRecipients(_ context.Context, campaignID string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool)
	for _, e := range r.events {
		if e.CampaignID == campaignID && e.Type == domain.EventSent {
			out[domain.NormalizeEmail(e.Email)] = true
		}
	}
	return out, nil
}

// ListByCampaign returns a campaign's events oldest first.
func (r *EventRepo) ListByCampaign(_ context.Context, campaignID string) ([]domain.CampaignEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CampaignEvent
	for _, e := range r.events {
		if e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
