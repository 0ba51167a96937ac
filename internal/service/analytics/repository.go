package analytics

import (
	"context"

	"github.com/ignite/announce/internal/domain"
)

// CampaignReader loads a campaign scoped to its organization.
type CampaignReader interface {
	Get(ctx context.Context, orgID, id string) (*domain.Campaign, error)
}

// EventReader reads the event log of a campaign, oldest first.
type EventReader interface {
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.CampaignEvent, error)
}

// LinkReader returns a campaign's tracked links ordered by raw clicks.
type LinkReader interface {
	TopLinks(ctx context.Context, campaignID string, limit int) ([]domain.TrackedLink, error)
}

// FeedbackReader lists the NPS responses of a campaign.
type FeedbackReader interface {
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.NPSResponse, error)
}
