// Package dispatch fans a campaign out to its audience.
//
// A dispatch renders the block document once, then for each recipient
// personalizes it, injects link and open tracking, and hands the message
// to the provider. Recipients are sent in concurrent batches with a pause
// between batches. Every recipient gets exactly one sent or failed event.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/linktrack"
	"github.com/ignite/announce/internal/metrics"
	"github.com/ignite/announce/internal/personalize"
	"github.com/ignite/announce/internal/pkg/logger"
	"github.com/ignite/announce/internal/queue"
	"github.com/ignite/announce/internal/ratelimit"
	"github.com/ignite/announce/internal/render"
	"github.com/ignite/announce/internal/sending"
	"github.com/ignite/announce/internal/service/campaign"
)

const (
	DefaultBatchSize   = 10
	DefaultPacingDelay = 600 * time.Millisecond

	// TestSubjectPrefix marks test sends in the recipient's inbox.
	TestSubjectPrefix = "[TEST] "
	previewID         = "preview"
)

// Config holds the deployment settings of the orchestrator.
type Config struct {
	BaseURL        string
	UnsubscribeURL string
	FromName       string
	FromEmail      string
	BatchSize      int
	PacingDelay    time.Duration
	Footer         render.Footer
	Labels         render.Labels
}

// Options tune one dispatch run.
type Options struct {
	// Resume accepts a campaign already in sending.
	Resume bool
	// Resend sends to recipients that already have a sent event.
	Resend      bool
	BatchSize   int
	PacingDelay time.Duration
}

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Campaigns campaign.Repository
	Audience  campaign.Audience
	Events    EventStore
	Links     linktrack.LinkStore
	Sender    sending.Sender
	Tracker   *linktrack.Tracker
	Cancels   queue.CancelFlags
}

// Service runs campaign dispatches. It is safe for concurrent use; callers
// serialize dispatches of the same campaign with a distributed lock.
type Service struct {
	deps     Deps
	cfg      Config
	person   *personalize.Personalizer
	provider string
	log      *logger.Entry
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewService creates a dispatch orchestrator.
func NewService(deps Deps, cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PacingDelay < 0 {
		cfg.PacingDelay = 0
	}
	provider := "unknown"
	if n, ok := deps.Sender.(sending.Named); ok {
		provider = string(n.Provider())
	}
	return &Service{
		deps:     deps,
		cfg:      cfg,
		person:   personalize.New(),
		provider: provider,
		log:      logger.With("component", "dispatch", "provider", provider),
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Service) renderOptions(feedback *render.FeedbackContext) render.Options {
	return render.Options{IncludeFooter: true, Feedback: feedback, Footer: s.cfg.Footer, Labels: s.cfg.Labels}
}

func allowedFrom(resume bool) []domain.CampaignStatus {
	from := append([]domain.CampaignStatus(nil), campaign.Dispatchable...)
	if resume {
		from = append(from, domain.CampaignSending)
	}
	return from
}

func statusIn(st domain.CampaignStatus, set []domain.CampaignStatus) bool {
	for _, s := range set {
		if s == st {
			return true
		}
	}
	return false
}

// Dispatch sends a campaign to its audience. Precondition failures return
// an error with the campaign status unchanged; per-recipient failures are
// reported in the summary.
func (s *Service) Dispatch(ctx context.Context, orgID, campaignID string, opts Options) (*domain.DispatchSummary, error) {
	started := time.Now()
	if opts.BatchSize <= 0 {
		opts.BatchSize = s.cfg.BatchSize
	}
	if opts.PacingDelay <= 0 {
		opts.PacingDelay = s.cfg.PacingDelay
	}

	c, err := s.deps.Campaigns.Get(ctx, orgID, campaignID)
	if err != nil {
		return nil, err
	}
	if !statusIn(c.Status, allowedFrom(opts.Resume)) {
		return nil, campaign.ErrNotDispatchable
	}

	audience, err := s.deps.Audience.Resolve(ctx, orgID, c)
	if err != nil {
		return nil, fmt.Errorf("resolve audience: %w", err)
	}
	if len(audience) == 0 {
		return nil, campaign.ErrEmptyAudience
	}

	doc, err := render.Render(c.Blocks, c.Subject, c.PreviewText, s.renderOptions(nil))
	if err != nil {
		return nil, fmt.Errorf("render campaign: %w", err)
	}

	already := map[string]bool{}
	if !opts.Resend {
		already, err = s.deps.Events.SentRecipients(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("load sent recipients: %w", err)
		}
	}

	summary := &domain.DispatchSummary{CampaignID: c.ID, Total: len(audience), Errors: []domain.RecipientError{}}
	recipients := make([]domain.Contact, 0, len(audience))
	seen := make(map[string]bool, len(audience))
	for _, ct := range audience {
		email := domain.NormalizeEmail(ct.Email)
		if email == "" || already[email] || seen[email] {
			summary.Skipped++
			continue
		}
		seen[email] = true
		ct.Email = email
		recipients = append(recipients, ct)
	}

	if c.Status != domain.CampaignSending {
		err := s.deps.Campaigns.TransitionStatus(ctx, orgID, c.ID, campaign.Dispatchable, domain.CampaignSending)
		if errors.Is(err, campaign.ErrInvalidTransition) {
			return nil, campaign.ErrNotDispatchable
		}
		if err != nil {
			return nil, fmt.Errorf("start dispatch: %w", err)
		}
	}

	log := s.log.With("campaign_id", c.ID)
	log.Info("dispatch started", "recipients", len(recipients), "skipped", summary.Skipped, "batch_size", opts.BatchSize)

	run := &run{svc: s, campaign: c, doc: doc, log: log}
	for start := 0; start < len(recipients); start += opts.BatchSize {
		if start > 0 {
			if err := s.sleep(ctx, opts.PacingDelay); err != nil {
				log.Warn("dispatch interrupted", "error", err, "sent", summary.Sent, "failed", summary.Failed)
				metrics.ObserveDispatch("interrupted", time.Since(started).Seconds())
				return summary, err
			}
		}
		if s.isCancelled(ctx, c.ID) {
			return s.finishCancelled(ctx, orgID, c.ID, summary, started)
		}

		end := start + opts.BatchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		results := run.sendBatch(ctx, recipients[start:end])

		sent, failed := 0, 0
		var fatal error
		for _, r := range results {
			if r.err != nil {
				failed++
				summary.Errors = append(summary.Errors, domain.RecipientError{Email: r.email, Error: r.err.Error()})
				if errors.Is(r.err, ratelimit.ErrDailyLimit) {
					fatal = r.err
				}
				continue
			}
			sent++
		}
		summary.Sent += sent
		summary.Failed += failed
		metrics.IncDispatchBatch()

		if err := s.deps.Campaigns.RecordProgress(context.WithoutCancel(ctx), orgID, c.ID, sent, failed); err != nil {
			log.Warn("progress not recorded", "error", err)
		}

		// A spent daily quota fails every remaining send, so the run stops
		// here and the campaign goes to failed. Dispatching it again later
		// skips the recipients that already have a sent event.
		if fatal != nil {
			log.Error("dispatch aborted", "error", fatal, "sent", summary.Sent, "failed", summary.Failed)
			if err := s.deps.Campaigns.TransitionStatus(ctx, orgID, c.ID, []domain.CampaignStatus{domain.CampaignSending}, domain.CampaignFailed); err != nil {
				log.Error("failed status not recorded", "error", err)
			}
			metrics.ObserveDispatch("failed", time.Since(started).Seconds())
			return summary, fatal
		}
		if ctx.Err() != nil {
			metrics.ObserveDispatch("interrupted", time.Since(started).Seconds())
			return summary, ctx.Err()
		}
	}

	if err := s.deps.Campaigns.TransitionStatus(ctx, orgID, c.ID, []domain.CampaignStatus{domain.CampaignSending}, domain.CampaignSent); err != nil {
		return summary, fmt.Errorf("complete dispatch: %w", err)
	}
	if err := s.deps.Cancels.Clear(ctx, c.ID); err != nil {
		log.Warn("cancel flag not cleared", "error", err)
	}

	log.Info("dispatch completed", "sent", summary.Sent, "failed", summary.Failed, "skipped", summary.Skipped,
		"duration", time.Since(started).Round(time.Millisecond).String())
	metrics.ObserveDispatch("sent", time.Since(started).Seconds())
	return summary, nil
}

func (s *Service) isCancelled(ctx context.Context, campaignID string) bool {
	cancelled, err := s.deps.Cancels.IsCancelled(ctx, campaignID)
	if err != nil {
		s.log.Warn("cancel flag check failed", "campaign_id", campaignID, "error", err)
		return false
	}
	return cancelled
}

func (s *Service) finishCancelled(ctx context.Context, orgID, campaignID string, summary *domain.DispatchSummary, started time.Time) (*domain.DispatchSummary, error) {
	summary.Cancelled = true
	if err := s.deps.Campaigns.TransitionStatus(ctx, orgID, campaignID, []domain.CampaignStatus{domain.CampaignSending}, domain.CampaignCancelled); err != nil {
		return summary, fmt.Errorf("cancel dispatch: %w", err)
	}
	if err := s.deps.Cancels.Clear(ctx, campaignID); err != nil {
		s.log.Warn("cancel flag not cleared", "campaign_id", campaignID, "error", err)
	}
	s.log.Info("dispatch cancelled", "campaign_id", campaignID, "sent", summary.Sent, "failed", summary.Failed)
	metrics.ObserveDispatch("cancelled", time.Since(started).Seconds())
	return summary, nil
}

type result struct {
	email string
	err   error
}

// run is the per-dispatch state shared by the batch goroutines.
type run struct {
	svc       *Service
	campaign  *domain.Campaign
	doc       string
	log       *logger.Entry
	persisted sync.Map // tracking code -> struct{}
}

func (r *run) sendBatch(ctx context.Context, batch []domain.Contact) []result {
	results := make([]result, len(batch))
	var wg sync.WaitGroup
	for i := range batch {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					results[i] = result{email: batch[i].Email, err: fmt.Errorf("panic: %v", p)}
				}
			}()
			results[i] = r.sendOne(ctx, &batch[i])
		}(i)
	}
	wg.Wait()
	return results
}

func (r *run) sendOne(ctx context.Context, ct *domain.Contact) result {
	s := r.svc
	c := r.campaign
	res, err := r.deliver(ctx, ct)

	e := &domain.CampaignEvent{
		ID:             uuid.New().String(),
		CampaignID:     c.ID,
		OrganizationID: c.OrganizationID,
		ContactID:      ct.ID,
		Email:          ct.Email,
		CreatedAt:      time.Now().UTC(),
	}
	if err != nil {
		e.Type = domain.EventFailed
		e.Metadata.Error = err.Error()
		r.log.Warn("send failed", "email", ct.Email, "error", err)
		metrics.IncDispatchSend(s.provider, "failed")
	} else {
		e.Type = domain.EventSent
		e.Metadata.MessageID = res.MessageID
		metrics.IncDispatchSend(s.provider, "sent")
	}
	// Record even when the dispatch context is done; the send already
	// happened.
	if aerr := s.deps.Events.Append(context.WithoutCancel(ctx), e); aerr != nil {
		r.log.Error("event not recorded", "email", ct.Email, "type", string(e.Type), "error", aerr)
	}
	return result{email: ct.Email, err: err}
}

func (r *run) deliver(ctx context.Context, ct *domain.Contact) (*domain.SendResult, error) {
	s := r.svc
	c := r.campaign
	vars := personalize.VarsFor(ct, c.ID, s.cfg.BaseURL, s.cfg.UnsubscribeURL)
	body := s.person.HTML(r.doc, vars)

	tracked, links, err := s.deps.Tracker.Track(body, c.ID, ct.Email)
	if err != nil {
		return nil, fmt.Errorf("inject tracking: %w", err)
	}
	if err := r.persistLinks(ctx, links); err != nil {
		return nil, err
	}

	msg := &domain.EmailMessage{
		CampaignID: c.ID,
		ContactID:  ct.ID,
		To:         ct.Email,
		FromName:   firstNonEmpty(c.FromName, s.cfg.FromName),
		FromEmail:  firstNonEmpty(c.FromEmail, s.cfg.FromEmail),
		Subject:    s.person.Text(c.Subject, vars),
		HTML:       tracked,
		Tags: map[string]string{
			domain.TagCampaignID: c.ID,
			domain.TagContactID:  ct.ID,
		},
		IdempotencyKey: c.ID + "/" + firstNonEmpty(ct.ID, ct.Email),
	}
	if ct.ID == "" {
		delete(msg.Tags, domain.TagContactID)
	}
	return s.deps.Sender.Send(ctx, msg)
}

// persistLinks saves links not yet stored during this run. Codes are stable
// per (campaign, url), so most recipients add nothing new.
func (r *run) persistLinks(ctx context.Context, links []domain.TrackedLink) error {
	fresh := links[:0:0]
	for _, l := range links {
		if _, ok := r.persisted.Load(l.Code); !ok {
			fresh = append(fresh, l)
		}
	}
	if err := linktrack.Persist(ctx, r.svc.deps.Links, fresh); err != nil {
		return err
	}
	for _, l := range fresh {
		r.persisted.Store(l.Code, struct{}{})
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// SendTest sends the campaign to a single address. The message uses
// preview identifiers, carries the manual_test tag and records no events.
func (s *Service) SendTest(ctx context.Context, orgID, campaignID, to string) (*domain.SendResult, error) {
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return nil, ErrInvalidRecipient
	}
	c, err := s.deps.Campaigns.Get(ctx, orgID, campaignID)
	if err != nil {
		return nil, err
	}

	body, vars, err := s.renderPreview(c, domain.NormalizeEmail(addr.Address))
	if err != nil {
		return nil, err
	}

	msg := &domain.EmailMessage{
		CampaignID:     domain.ManualTestTag,
		To:             vars.Email,
		FromName:       firstNonEmpty(c.FromName, s.cfg.FromName),
		FromEmail:      firstNonEmpty(c.FromEmail, s.cfg.FromEmail),
		Subject:        TestSubjectPrefix + s.person.Text(c.Subject, vars),
		HTML:           body,
		Tags:           map[string]string{domain.TagCampaignID: domain.ManualTestTag},
		IdempotencyKey: "test/" + c.ID + "/" + uuid.New().String(),
	}
	res, err := s.deps.Sender.Send(ctx, msg)
	if err != nil {
		s.log.Warn("test send failed", "campaign_id", c.ID, "email", vars.Email, "error", err)
		return nil, err
	}
	s.log.Info("test send", "campaign_id", c.ID, "email", vars.Email, "message_id", res.MessageID)
	return res, nil
}

// Preview renders the campaign as a recipient would see it, without
// tracking. fragment returns only the block table.
func (s *Service) Preview(ctx context.Context, orgID, campaignID string, fragment bool) (string, error) {
	c, err := s.deps.Campaigns.Get(ctx, orgID, campaignID)
	if err != nil {
		return "", err
	}
	if fragment {
		opts := s.renderOptions(s.previewFeedback())
		opts.IncludeFooter = false
		return render.Render(c.Blocks, c.Subject, c.PreviewText, opts)
	}
	body, _, err := s.renderPreview(c, "")
	return body, err
}

func (s *Service) previewFeedback() *render.FeedbackContext {
	return &render.FeedbackContext{BaseURL: s.cfg.BaseURL, CampaignID: previewID, ContactID: previewID}
}

func (s *Service) renderPreview(c *domain.Campaign, email string) (string, personalize.Vars, error) {
	doc, err := render.Render(c.Blocks, c.Subject, c.PreviewText, s.renderOptions(s.previewFeedback()))
	if err != nil {
		return "", personalize.Vars{}, fmt.Errorf("render campaign: %w", err)
	}
	vars := personalize.VarsFor(&domain.Contact{ID: previewID, Email: email}, previewID, s.cfg.BaseURL, s.cfg.UnsubscribeURL)
	return s.person.HTML(doc, vars), vars, nil
}
