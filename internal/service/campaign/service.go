package campaign

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/queue"
)

// Dispatchable lists the statuses a new dispatch may start from.
var Dispatchable = []domain.CampaignStatus{domain.CampaignDraft, domain.CampaignScheduled, domain.CampaignFailed}

// Service implements campaign business logic. It coordinates between the
// repository layer, audience resolution and the dispatch queue.
// All public methods are safe for concurrent use if the underlying
// repository is concurrency-safe.
type Service struct {
	repo     Repository
	audience Audience
	jobs     queue.Queue
	cancels  queue.CancelFlags
	now      func() time.Time
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository, audience Audience, jobs queue.Queue, cancels queue.CancelFlags) *Service {
	return &Service{repo: repo, audience: audience, jobs: jobs, cancels: cancels, now: time.Now}
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, orgID string, f ListFilter) ([]domain.Campaign, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return s.repo.List(ctx, orgID, f)
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Title        string              `json:"title"`
	Subject      string              `json:"subject"`
	PreviewText  string              `json:"preview_text"`
	FromName     string              `json:"from_name"`
	FromEmail    string              `json:"from_email"`
	Blocks       []domain.Block      `json:"blocks"`
	AudienceType domain.AudienceType `json:"audience_type"`
	Tags         []string            `json:"tags"`
}

// Create validates and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, orgID string, input CreateInput) (*domain.Campaign, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Subject) == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	audience, err := normalizeAudience(input.AudienceType, input.Tags)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &domain.Campaign{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Title:          input.Title,
		Subject:        input.Subject,
		PreviewText:    input.PreviewText,
		FromName:       input.FromName,
		FromEmail:      input.FromEmail,
		Blocks:         input.Blocks,
		AudienceType:   audience,
		Tags:           input.Tags,
		Status:         domain.CampaignDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if c.Blocks == nil {
		c.Blocks = []domain.Block{}
	}

	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

func normalizeAudience(t domain.AudienceType, tags []string) (domain.AudienceType, error) {
	switch t {
	case "", domain.AudienceAll:
		return domain.AudienceAll, nil
	case domain.AudienceTags:
		if len(tags) == 0 {
			return "", fmt.Errorf("%w: tag audience requires at least one tag", ErrInvalidInput)
		}
		return domain.AudienceTags, nil
	}
	return "", fmt.Errorf("%w: unknown audience type %q", ErrInvalidInput, t)
}

// Update modifies mutable campaign fields. Content of a campaign that left
// draft/scheduled is frozen.
func (s *Service) Update(ctx context.Context, orgID, id string, u UpdateFields) error {
	c, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if !c.IsEditable() {
		return ErrNotEditable
	}
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if u.Subject != nil && strings.TrimSpace(*u.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if u.AudienceType != nil {
		tags := c.Tags
		if u.Tags != nil {
			tags = *u.Tags
		}
		if _, err := normalizeAudience(*u.AudienceType, tags); err != nil {
			return err
		}
	}
	return s.repo.Update(ctx, orgID, id, u)
}

// Delete removes a campaign (only draft/cancelled).
func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	c, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignDraft && c.Status != domain.CampaignCancelled {
		return ErrNotDeletable
	}
	return s.repo.Delete(ctx, orgID, id)
}

// Schedule sets a future send time and moves the campaign to scheduled.
// The scheduler enqueues it once the time is reached.
func (s *Service) Schedule(ctx context.Context, orgID, id string, at time.Time) error {
	if !at.After(s.now()) {
		return ErrInvalidSchedule
	}
	c, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if !c.IsEditable() {
		return ErrNotEditable
	}
	at = at.UTC()
	if err := s.repo.Update(ctx, orgID, id, UpdateFields{ScheduledAt: &at}); err != nil {
		return err
	}
	if c.Status == domain.CampaignScheduled {
		return nil
	}
	return s.repo.TransitionStatus(ctx, orgID, id, []domain.CampaignStatus{domain.CampaignDraft}, domain.CampaignScheduled)
}

// CheckDispatchable verifies a campaign can be dispatched now and returns
// the resolved audience size.
func (s *Service) CheckDispatchable(ctx context.Context, orgID, id string) (*domain.Campaign, int, error) {
	c, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, 0, err
	}
	if !isDispatchable(c.Status) {
		return nil, 0, ErrNotDispatchable
	}
	recipients, err := s.audience.Resolve(ctx, orgID, c)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve audience: %w", err)
	}
	if len(recipients) == 0 {
		return nil, 0, ErrEmptyAudience
	}
	return c, len(recipients), nil
}

func isDispatchable(st domain.CampaignStatus) bool {
	for _, d := range Dispatchable {
		if st == d {
			return true
		}
	}
	return false
}

// Send validates the campaign and enqueues a dispatch job. Returns the
// number of recipients the job will target.
func (s *Service) Send(ctx context.Context, orgID, campaignID string, resend bool) (int, error) {
	_, n, err := s.CheckDispatchable(ctx, orgID, campaignID)
	if err != nil {
		return 0, err
	}
	if err := s.cancels.Clear(ctx, campaignID); err != nil {
		log.Printf("[campaign.Service] clear cancel flag for %s: %v", campaignID, err)
	}
	job := queue.Job{OrganizationID: orgID, CampaignID: campaignID, Resend: resend, EnqueuedAt: s.now().UTC()}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		return 0, fmt.Errorf("enqueue dispatch: %w", err)
	}

	log.Printf("[campaign.Service] Campaign %s: queued for %d recipients", campaignID, n)
	return n, nil
}

// Cancel stops a campaign. A campaign that has not started goes straight
// to cancelled; a running dispatch stops at its next batch boundary.
func (s *Service) Cancel(ctx context.Context, orgID, id string) error {
	c, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	switch c.Status {
	case domain.CampaignDraft, domain.CampaignScheduled:
		err := s.repo.TransitionStatus(ctx, orgID, id, []domain.CampaignStatus{domain.CampaignDraft, domain.CampaignScheduled}, domain.CampaignCancelled)
		if !errors.Is(err, ErrInvalidTransition) {
			return err
		}
		// Picked up by a worker in the meantime; fall through to the flag.
	case domain.CampaignSending:
	default:
		return ErrInvalidTransition
	}
	if err := s.cancels.RequestCancel(ctx, id); err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	log.Printf("[campaign.Service] Campaign %s: cancellation requested", id)
	return nil
}
