package campaign

import (
	"context"
	"time"

	"github.com/ignite/announce/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, orgID, id string) (*domain.Campaign, error)

	// List returns campaigns matching the given filter, ordered by created_at DESC.
	List(ctx context.Context, orgID string, filter ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign and returns its ID.
	Create(ctx context.Context, c *domain.Campaign) (string, error)

	// Update modifies a campaign. Only non-nil fields in the update are applied.
	Update(ctx context.Context, orgID, id string, u UpdateFields) error

	// Delete removes a campaign.
	Delete(ctx context.Context, orgID, id string) error

	// TransitionStatus moves a campaign to status `to` only if its current
	// status is one of `from`. Returns ErrInvalidTransition otherwise.
	// Moving to sent stamps sent_at.
	TransitionStatus(ctx context.Context, orgID, id string, from []domain.CampaignStatus, to domain.CampaignStatus) error

	// RecordProgress adds to the sent/failed counters and refreshes
	// updated_at, which serves as the dispatch heartbeat.
	RecordProgress(ctx context.Context, orgID, id string, sent, failed int) error

	// IncrementEventCount bumps the denormalized counter for an ingested
	// event type. Unknown campaigns are ignored.
	IncrementEventCount(ctx context.Context, campaignID string, t domain.EventType) error

	// ListDue returns scheduled campaigns of every organization whose
	// scheduled_at is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]domain.Campaign, error)

	// ListStale returns sending campaigns whose heartbeat is older than before.
	ListStale(ctx context.Context, before time.Time) ([]domain.Campaign, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateFields struct {
	Title        *string
	Subject      *string
	PreviewText  *string
	FromName     *string
	FromEmail    *string
	Blocks       *[]domain.Block
	AudienceType *domain.AudienceType
	Tags         *[]string
	ScheduledAt  *time.Time
}

// Audience resolves the recipients of a campaign.
type Audience interface {
	Resolve(ctx context.Context, orgID string, c *domain.Campaign) ([]domain.Contact, error)
}
