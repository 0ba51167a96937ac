package dispatch

import (
	"context"

	"github.com/ignite/announce/internal/domain"
)

// EventStore is the event log as seen by dispatch.
type EventStore interface {
	Append(ctx context.Context, e *domain.CampaignEvent) error
	// SentRecipients returns the normalized emails that already have a sent
	// event for the campaign.
	SentRecipients(ctx context.Context, campaignID string) (map[string]bool, error)
}
