package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/storage"
)

const (
	TopLinksLimit     = 10
	RecentEventsLimit = 50
)

// CampaignHeader identifies the campaign a report describes.
type CampaignHeader struct {
	ID       string                `json:"id"`
	Title    string                `json:"title"`
	Subject  string                `json:"subject"`
	Status   domain.CampaignStatus `json:"status"`
	SentAt   *time.Time            `json:"sent_at"`
	Counters Counters              `json:"counters"`
}

// Counters are the denormalized campaign counters, shown next to the
// metrics derived from the log.
type Counters struct {
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Delivered  int `json:"delivered"`
	Opens      int `json:"opens"`
	Clicks     int `json:"clicks"`
	Bounces    int `json:"bounces"`
	Complaints int `json:"complaints"`
}

// Report is the full analytics view of a campaign.
type Report struct {
	Campaign    CampaignHeader         `json:"campaign"`
	Metrics     Metrics                `json:"metrics"`
	TopLinks    []domain.TrackedLink   `json:"top_links"`
	Feedback    NPSSummary             `json:"feedback"`
	Recent      []domain.CampaignEvent `json:"recent_activity"`
	Recipients  []Recipient            `json:"recipients"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// Deps are the read sides the analytics service queries.
type Deps struct {
	Campaigns CampaignReader
	Events    EventReader
	Links     LinkReader
	Feedback  FeedbackReader
	// Objects is optional; without it Archive returns ErrArchiveDisabled.
	Objects storage.ObjectStore
	// ReportPrefix is the key prefix of archived reports, "reports/" when
	// empty.
	ReportPrefix string
}

// Service answers analytics queries.
type Service struct {
	deps Deps
	now  func() time.Time
}

// NewService creates an analytics service.
func NewService(deps Deps) *Service {
	return &Service{deps: deps, now: time.Now}
}

// Stats returns only the derived metrics of a campaign.
func (s *Service) Stats(ctx context.Context, orgID, campaignID string) (*CampaignHeader, *Metrics, error) {
	c, err := s.deps.Campaigns.Get(ctx, orgID, campaignID)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.deps.Events.ListByCampaign(ctx, c.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list events: %w", err)
	}
	h := header(c)
	m := Summarize(events)
	return &h, &m, nil
}

// Report builds the full report of a campaign.
func (s *Service) Report(ctx context.Context, orgID, campaignID string) (*Report, error) {
	c, err := s.deps.Campaigns.Get(ctx, orgID, campaignID)
	if err != nil {
		return nil, err
	}
	events, err := s.deps.Events.ListByCampaign(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	links, err := s.deps.Links.TopLinks(ctx, c.ID, TopLinksLimit)
	if err != nil {
		return nil, fmt.Errorf("top links: %w", err)
	}
	responses, err := s.deps.Feedback.ListByCampaign(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	m, recipients := summarize(events)
	if links == nil {
		links = []domain.TrackedLink{}
	}
	return &Report{
		Campaign:    header(c),
		Metrics:     m,
		TopLinks:    links,
		Feedback:    SummarizeNPS(responses),
		Recent:      recent(events, RecentEventsLimit),
		Recipients:  recipients,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// Feedback lists the NPS responses of a campaign with their summary.
func (s *Service) Feedback(ctx context.Context, orgID, campaignID string) ([]domain.NPSResponse, NPSSummary, error) {
	c, err := s.deps.Campaigns.Get(ctx, orgID, campaignID)
	if err != nil {
		return nil, NPSSummary{}, err
	}
	responses, err := s.deps.Feedback.ListByCampaign(ctx, c.ID)
	if err != nil {
		return nil, NPSSummary{}, fmt.Errorf("list feedback: %w", err)
	}
	if responses == nil {
		responses = []domain.NPSResponse{}
	}
	return responses, SummarizeNPS(responses), nil
}

// Archive renders the XLSX report and stores it in the object store.
// It returns the object URL.
func (s *Service) Archive(ctx context.Context, orgID, campaignID string) (string, error) {
	if s.deps.Objects == nil {
		return "", ErrArchiveDisabled
	}
	r, err := s.Report(ctx, orgID, campaignID)
	if err != nil {
		return "", err
	}
	body, err := XLSX(r)
	if err != nil {
		return "", err
	}
	prefix := s.deps.ReportPrefix
	if prefix == "" {
		prefix = "reports/"
	}
	key := fmt.Sprintf("%s%s/%s/%s.xlsx", prefix, orgID, r.Campaign.ID, r.GeneratedAt.Format("20060102T150405Z"))
	if err := s.deps.Objects.Put(ctx, key, body, XLSXContentType); err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}
	log.Printf("[analytics.Service] archived report for campaign %s to %s", r.Campaign.ID, key)
	return s.deps.Objects.URL(key), nil
}

func header(c *domain.Campaign) CampaignHeader {
	return CampaignHeader{
		ID:      c.ID,
		Title:   c.Title,
		Subject: c.Subject,
		Status:  c.Status,
		SentAt:  c.SentAt,
		Counters: Counters{
			Sent:       c.SentCount,
			Failed:     c.FailedCount,
			Delivered:  c.DeliveredCount,
			Opens:      c.OpenCount,
			Clicks:     c.ClickCount,
			Bounces:    c.BounceCount,
			Complaints: c.ComplaintCount,
		},
	}
}

// recent returns the latest n events, newest first.
func recent(events []domain.CampaignEvent, n int) []domain.CampaignEvent {
	if len(events) < n {
		n = len(events)
	}
	out := make([]domain.CampaignEvent, 0, n)
	for i := len(events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, events[i])
	}
	return out
}
