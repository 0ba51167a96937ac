// Package worker runs the background side of campaign delivery: a pool
// that drains the dispatch queue and a cron scheduler that starts due
// campaigns and resumes stalled ones.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/metrics"
	"github.com/ignite/announce/internal/pkg/distlock"
	"github.com/ignite/announce/internal/pkg/logger"
	"github.com/ignite/announce/internal/queue"
	"github.com/ignite/announce/internal/service/campaign"
	"github.com/ignite/announce/internal/service/dispatch"
)

const (
	DefaultWorkers        = 2
	DefaultDequeueTimeout = 5 * time.Second
	dequeueErrorBackoff   = time.Second
)

// Dispatcher runs one campaign dispatch.
type Dispatcher interface {
	Dispatch(ctx context.Context, orgID, campaignID string, opts dispatch.Options) (*domain.DispatchSummary, error)
}

// keepAliver is implemented by locks whose lease must be extended while
// held. lost is called when the lease can no longer be kept.
type keepAliver interface {
	KeepAlive(ctx context.Context, lost func(error))
}

// PoolStats are the lifetime counters of a pool.
type PoolStats struct {
	Processed int64 `json:"processed"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
}

// DispatchPool pulls jobs off the queue and runs them, one campaign per
// lock holder across all processes.
type DispatchPool struct {
	jobs           queue.Queue
	dispatcher     Dispatcher
	locks          distlock.Factory
	workers        int
	dequeueTimeout time.Duration
	workerID       string
	log            *logger.Entry

	processed int64
	skipped   int64
	failed    int64

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewDispatchPool creates a pool of workers.
func NewDispatchPool(jobs queue.Queue, dispatcher Dispatcher, locks distlock.Factory, workers int) *DispatchPool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	host, _ := os.Hostname()
	id := fmt.Sprintf("dispatch-%s-%d", host, time.Now().UnixNano()%10000)
	return &DispatchPool{
		jobs:           jobs,
		dispatcher:     dispatcher,
		locks:          locks,
		workers:        workers,
		dequeueTimeout: DefaultDequeueTimeout,
		workerID:       id,
		log:            logger.With("component", "worker", "worker_id", id),
	}
}

// SetDequeueTimeout changes how long a worker blocks on an empty queue.
func (p *DispatchPool) SetDequeueTimeout(d time.Duration) {
	if d > 0 {
		p.dequeueTimeout = d
	}
}

// Start launches the workers.
func (p *DispatchPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("dispatch pool already running")
	}
	p.running = true
	ctx, p.cancel = context.WithCancel(ctx)

	p.log.Info("starting dispatch pool", "workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
	return nil
}

// Stop cancels the workers and waits for them. A dispatch interrupted by
// Stop leaves its campaign in sending; the scheduler resumes it.
func (p *DispatchPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	s := p.Stats()
	p.log.Info("dispatch pool stopped", "processed", s.Processed, "skipped", s.Skipped, "failed", s.Failed)
}

// Stats returns the pool counters.
func (p *DispatchPool) Stats() PoolStats {
	return PoolStats{
		Processed: atomic.LoadInt64(&p.processed),
		Skipped:   atomic.LoadInt64(&p.skipped),
		Failed:    atomic.LoadInt64(&p.failed),
	}
}

func (p *DispatchPool) loop(ctx context.Context, n int) {
	defer p.wg.Done()
	for ctx.Err() == nil {
		job, err := p.jobs.Dequeue(ctx, p.dequeueTimeout)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn("dequeue failed", "worker", n, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeueErrorBackoff):
			}
			continue
		}
		if depth, err := p.jobs.Len(ctx); err == nil {
			metrics.SetQueueDepth(depth)
		}
		p.Handle(ctx, job)
	}
}

// Handle runs one job under the campaign's lock. A job whose campaign is
// already being dispatched elsewhere is dropped.
func (p *DispatchPool) Handle(ctx context.Context, job *queue.Job) {
	log := p.log.With("campaign_id", job.CampaignID, "organization_id", job.OrganizationID)
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.failed, 1)
			log.Error("dispatch panicked", "panic", fmt.Sprint(r))
		}
	}()

	lock := p.locks(queue.LockKey(job.CampaignID))
	ok, err := lock.Acquire(ctx)
	if err != nil {
		atomic.AddInt64(&p.failed, 1)
		log.Error("lock acquire failed", "error", err)
		return
	}
	if !ok {
		atomic.AddInt64(&p.skipped, 1)
		log.Info("campaign already being dispatched, job dropped")
		return
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("lock release failed", "error", err)
		}
	}()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	if ka, ok := lock.(keepAliver); ok {
		// Another worker may take the campaign once the lease is gone, so
		// this run has to stop.
		go ka.KeepAlive(runCtx, func(err error) {
			log.Error("dispatch lock lost, stopping run", "error", err)
			stop()
		})
	}

	summary, err := p.dispatcher.Dispatch(runCtx, job.OrganizationID, job.CampaignID, dispatch.Options{
		Resume: job.Resume,
		Resend: job.Resend,
	})
	switch {
	case errors.Is(err, campaign.ErrNotDispatchable), errors.Is(err, campaign.ErrEmptyAudience), errors.Is(err, campaign.ErrNotFound):
		atomic.AddInt64(&p.skipped, 1)
		log.Info("job skipped", "reason", err.Error())
	case err != nil:
		atomic.AddInt64(&p.failed, 1)
		log.Error("dispatch failed", "error", err)
	default:
		atomic.AddInt64(&p.processed, 1)
		log.Info("job done", "sent", summary.Sent, "failed", summary.Failed, "skipped", summary.Skipped, "cancelled", summary.Cancelled)
	}
}
