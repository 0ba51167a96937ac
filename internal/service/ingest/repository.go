package ingest

import (
	"context"

	"github.com/ignite/announce/internal/domain"
)

// EventSink receives tracking events for persistence. The organization of
// an event is derived from its campaign by the store.
type EventSink interface {
	Append(ctx context.Context, e *domain.CampaignEvent) error
}

// EventAppender is the event log write path. Returns ErrUnknownCampaign
// when the campaign does not exist.
type EventAppender interface {
	Append(ctx context.Context, e *domain.CampaignEvent) error
}

// Counters maintains the denormalized campaign counters.
type Counters interface {
	IncrementEventCount(ctx context.Context, campaignID string, t domain.EventType) error
}

// LinkRepository resolves tracking codes.
type LinkRepository interface {
	// GetByCode returns ErrLinkNotFound for unknown codes.
	GetByCode(ctx context.Context, code string) (*domain.TrackedLink, error)
	IncrementClicks(ctx context.Context, code string) error
}

// FeedbackRepository stores NPS answers.
type FeedbackRepository interface {
	// Upsert inserts or replaces the score for (campaign, contact). The
	// stored comment is kept.
	Upsert(ctx context.Context, r *domain.NPSResponse) error
	// UpdateComment sets the comment of an existing response. A missing
	// response is not an error.
	UpdateComment(ctx context.Context, campaignID, contactID, comment string) error
}
