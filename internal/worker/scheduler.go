package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/queue"
)

const (
	DefaultSchedulerSpec = "@every 1m"
	DefaultStaleAfter    = 10 * time.Minute
	tickTimeout          = 30 * time.Second
)

// CampaignLister finds campaigns that need a dispatch job.
type CampaignLister interface {
	// ListDue returns scheduled campaigns whose time has come.
	ListDue(ctx context.Context, now time.Time) ([]domain.Campaign, error)
	// ListStale returns sending campaigns whose last progress is older
	// than before.
	ListStale(ctx context.Context, before time.Time) ([]domain.Campaign, error)
}

// Starter validates a campaign and enqueues its dispatch.
type Starter interface {
	Send(ctx context.Context, orgID, campaignID string, resend bool) (int, error)
}

// Scheduler enqueues due scheduled campaigns and re-enqueues stalled
// dispatches with Resume on a cron schedule.
type Scheduler struct {
	campaigns  CampaignLister
	starter    Starter
	jobs       queue.Queue
	spec       string
	staleAfter time.Duration
	now        func() time.Time
	cron       *cron.Cron

	// enqueued remembers recent jobs so a campaign waiting in the queue
	// is not enqueued again on every tick.
	mu       sync.Mutex
	enqueued map[string]time.Time
}

// NewScheduler creates a scheduler. An empty spec runs every minute.
func NewScheduler(campaigns CampaignLister, starter Starter, jobs queue.Queue, spec string, staleAfter time.Duration) *Scheduler {
	if spec == "" {
		spec = DefaultSchedulerSpec
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Scheduler{
		campaigns:  campaigns,
		starter:    starter,
		jobs:       jobs,
		spec:       spec,
		staleAfter: staleAfter,
		now:        time.Now,
		enqueued:   make(map[string]time.Time),
	}
}

// Start registers the tick and starts the cron runner.
func (s *Scheduler) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() { s.Tick(context.Background()) }); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	log.Printf("[Scheduler] Started with spec %q, stale after %s", s.spec, s.staleAfter)
	return nil
}

// Stop stops the cron runner and waits for a running tick.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	log.Printf("[Scheduler] Stopped")
}

// Tick runs one scheduling pass and returns the number of jobs enqueued.
func (s *Scheduler) Tick(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()
	now := s.now()
	s.forget(now)

	n := 0
	due, err := s.campaigns.ListDue(ctx, now)
	if err != nil {
		log.Printf("[Scheduler] list due campaigns: %v", err)
	}
	for _, c := range due {
		if s.recent(c.ID) {
			continue
		}
		if _, err := s.starter.Send(ctx, c.OrganizationID, c.ID, false); err != nil {
			log.Printf("[Scheduler] start scheduled campaign %s: %v", c.ID, err)
			continue
		}
		s.remember(c.ID, now)
		n++
	}

	stale, err := s.campaigns.ListStale(ctx, now.Add(-s.staleAfter))
	if err != nil {
		log.Printf("[Scheduler] list stale campaigns: %v", err)
	}
	for _, c := range stale {
		if s.recent(c.ID) {
			continue
		}
		job := queue.Job{OrganizationID: c.OrganizationID, CampaignID: c.ID, Resume: true, EnqueuedAt: now.UTC()}
		if err := s.jobs.Enqueue(ctx, job); err != nil {
			log.Printf("[Scheduler] resume campaign %s: %v", c.ID, err)
			continue
		}
		log.Printf("[Scheduler] Campaign %s: no progress since %s, resuming", c.ID, c.UpdatedAt.Format(time.RFC3339))
		s.remember(c.ID, now)
		n++
	}
	return n
}

func (s *Scheduler) recent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.enqueued[id]
	return ok
}

func (s *Scheduler) remember(id string, at time.Time) {
	s.mu.Lock()
	s.enqueued[id] = at
	s.mu.Unlock()
}

// forget drops entries older than the stale threshold, after which a
// campaign still waiting is eligible again.
func (s *Scheduler) forget(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, at := range s.enqueued {
		if now.Sub(at) >= s.staleAfter {
			delete(s.enqueued, id)
		}
	}
}
