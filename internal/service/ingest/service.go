// Package ingest records recipient engagement: provider webhooks, open
// pixels, redirect clicks and NPS feedback.
package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/metrics"
	"github.com/ignite/announce/internal/pkg/logger"
)

// Service turns tracking signals into event-log entries. Apart from
// malformed webhook bodies and invalid scores, every failure is logged and
// swallowed so tracking endpoints never fail the recipient.
type Service struct {
	sink     EventSink
	links    LinkRepository
	feedback FeedbackRepository
	log      *logger.Entry
	now      func() time.Time
}

// NewService creates an ingestion service.
func NewService(sink EventSink, links LinkRepository, feedback FeedbackRepository) *Service {
	return &Service{
		sink:     sink,
		links:    links,
		feedback: feedback,
		log:      logger.With("component", "ingest"),
		now:      time.Now,
	}
}

// IngestWebhook records one provider webhook delivery.
func (s *Service) IngestWebhook(ctx context.Context, body []byte) error {
	ev, err := ParseWebhook(body)
	if err != nil {
		metrics.IncWebhookEvent("malformed")
		return err
	}
	if ev.Type == "" {
		s.log.Debug("webhook type ignored", "provider", ev.Provider, "type", ev.RawType)
		metrics.IncWebhookEvent("ignored")
		return nil
	}

	campaignID := ev.Tags[domain.TagCampaignID]
	if campaignID == domain.ManualTestTag {
		metrics.IncWebhookEvent("ignored")
		return nil
	}
	if _, err := uuid.Parse(campaignID); err != nil {
		s.log.Warn("webhook without valid campaign tag",
			"provider", ev.Provider, "type", ev.RawType, "message_id", ev.MessageID, "campaign_id", campaignID)
		metrics.IncWebhookEvent("skipped")
		return nil
	}

	at := ev.OccurredAt
	if at.IsZero() {
		at = s.now().UTC()
	}
	recipients := ev.Recipients
	if len(recipients) == 0 {
		recipients = []string{""}
	}
	for _, to := range recipients {
		e := &domain.CampaignEvent{
			ID:         uuid.New().String(),
			CampaignID: campaignID,
			ContactID:  ev.Tags[domain.TagContactID],
			Email:      domain.NormalizeEmail(to),
			Type:       ev.Type,
			Metadata: domain.EventMetadata{
				IP:          ev.IP,
				UserAgent:   ev.UserAgent,
				OriginalURL: ev.URL,
				MessageID:   ev.MessageID,
				Error:       ev.Reason,
			},
			CreatedAt: at,
		}
		if err := s.sink.Append(ctx, e); err != nil {
			outcome := "error"
			if errors.Is(err, ErrUnknownCampaign) {
				outcome = "skipped"
			}
			s.log.Warn("webhook event not recorded",
				"campaign_id", campaignID, "type", string(ev.Type), "email", to, "error", err)
			metrics.IncWebhookEvent(outcome)
			continue
		}
		metrics.IncWebhookEvent("recorded")
		metrics.IncTrackingEvent(string(ev.Type))
	}
	return nil
}

// RecordOpen appends an open event. Errors are logged, never returned.
func (s *Service) RecordOpen(ctx context.Context, campaignID, email string, meta domain.EventMetadata) {
	if _, err := uuid.Parse(campaignID); err != nil {
		s.log.Debug("open for invalid campaign id", "campaign_id", campaignID)
		return
	}
	e := &domain.CampaignEvent{
		ID:         uuid.New().String(),
		CampaignID: campaignID,
		Email:      domain.NormalizeEmail(email),
		Type:       domain.EventOpen,
		Metadata:   meta,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.sink.Append(ctx, e); err != nil {
		s.log.Warn("open not recorded", "campaign_id", campaignID, "email", email, "error", err)
		return
	}
	metrics.IncTrackingEvent(string(domain.EventOpen))
}

// RecordClick resolves a tracking code, bumps the link's raw counter and
// appends a click event when the recipient is known. ok is false for
// unknown codes and lookup failures.
func (s *Service) RecordClick(ctx context.Context, code, email string, meta domain.EventMetadata) (string, bool) {
	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, ErrLinkNotFound) {
			s.log.Error("link lookup failed", "code", code, "error", err)
		}
		return "", false
	}

	if err := s.links.IncrementClicks(ctx, code); err != nil {
		s.log.Warn("link counter not updated", "code", code, "error", err)
	}

	email = domain.NormalizeEmail(email)
	if email != "" {
		meta.OriginalURL = link.OriginalURL
		meta.TrackingCode = code
		e := &domain.CampaignEvent{
			ID:         uuid.New().String(),
			CampaignID: link.CampaignID,
			Email:      email,
			Type:       domain.EventClick,
			Metadata:   meta,
			CreatedAt:  s.now().UTC(),
		}
		if err := s.sink.Append(ctx, e); err != nil {
			s.log.Warn("click not recorded", "campaign_id", link.CampaignID, "email", email, "error", err)
		} else {
			metrics.IncTrackingEvent(string(domain.EventClick))
		}
	}
	return link.OriginalURL, true
}

// IsPreview reports whether identifiers come from an editor preview render,
// whose feedback is acknowledged but not stored.
func IsPreview(campaignID, contactID string) bool {
	return strings.Contains(campaignID, "preview") || strings.Contains(contactID, "preview")
}

// SubmitFeedback validates and stores an NPS score.
func (s *Service) SubmitFeedback(ctx context.Context, campaignID, contactID string, score int) error {
	if !domain.ValidScore(score) {
		return ErrInvalidScore
	}
	if IsPreview(campaignID, contactID) {
		return nil
	}
	now := s.now().UTC()
	err := s.feedback.Upsert(ctx, &domain.NPSResponse{
		CampaignID: campaignID,
		ContactID:  contactID,
		Score:      score,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		s.log.Error("feedback not stored", "campaign_id", campaignID, "contact_id", contactID, "error", err)
		return err
	}
	return nil
}

const maxCommentRunes = 2000

// AddFeedbackComment attaches a free-text comment to a response.
func (s *Service) AddFeedbackComment(ctx context.Context, campaignID, contactID, comment string) error {
	comment = strings.TrimSpace(comment)
	if comment == "" || IsPreview(campaignID, contactID) {
		return nil
	}
	if r := []rune(comment); len(r) > maxCommentRunes {
		comment = string(r[:maxCommentRunes])
	}
	if err := s.feedback.UpdateComment(ctx, campaignID, contactID, comment); err != nil {
		s.log.Error("feedback comment not stored", "campaign_id", campaignID, "contact_id", contactID, "error", err)
		return err
	}
	return nil
}
