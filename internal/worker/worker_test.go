package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/pkg/distlock"
	"github.com/ignite/announce/internal/queue"
	"github.com/ignite/announce/internal/repository/memory"
	"github.com/ignite/announce/internal/service/campaign"
	"github.com/ignite/announce/internal/service/dispatch"
)

// =============================================================================
// DISPATCH POOL TESTS
// =============================================================================

type call struct {
	orgID, campaignID string
	opts              dispatch.Options
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []call
	err   error
	done  chan struct{}
}

func (f *fakeDispatcher) Dispatch(_ context.Context, orgID, campaignID string, opts dispatch.Options) (*domain.DispatchSummary, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{orgID, campaignID, opts})
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.DispatchSummary{CampaignID: campaignID, Sent: 1}, nil
}

func localLocks(key string) distlock.DistLock { return distlock.NewLocalLock(key) }

func TestDispatchPool_ProcessesQueuedJobs(t *testing.T) {
	jobs := queue.NewMemoryQueue(10)
	d := &fakeDispatcher{done: make(chan struct{}, 2)}
	pool := NewDispatchPool(jobs, d, localLocks, 1)
	pool.SetDequeueTimeout(10 * time.Millisecond)

	ctx := context.Background()
	jobs.Enqueue(ctx, queue.Job{OrganizationID: "org-1", CampaignID: "c1"})
	jobs.Enqueue(ctx, queue.Job{OrganizationID: "org-1", CampaignID: "c2", Resume: true, Resend: true})

	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := pool.Start(ctx); err == nil {
		t.Error("Double Start() should return error")
	}
	for i := 0; i < 2; i++ {
		select {
		case <-d.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for dispatch")
		}
	}
	pool.Stop()

	if len(d.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(d.calls))
	}
	if d.calls[0].campaignID != "c1" || d.calls[0].opts.Resume {
		t.Errorf("unexpected first call %+v", d.calls[0])
	}
	if !d.calls[1].opts.Resume || !d.calls[1].opts.Resend {
		t.Errorf("job flags not forwarded: %+v", d.calls[1].opts)
	}
	if s := pool.Stats(); s.Processed != 2 {
		t.Errorf("Processed = %d, want 2", s.Processed)
	}
}

func TestDispatchPool_SkipsLockedCampaign(t *testing.T) {
	held := distlock.NewLocalLock("dispatch:c-locked")
	if ok, _ := held.Acquire(context.Background()); !ok {
		t.Fatal("could not take lock")
	}
	defer held.Release(context.Background())

	d := &fakeDispatcher{}
	pool := NewDispatchPool(queue.NewMemoryQueue(1), d, localLocks, 1)
	pool.Handle(context.Background(), &queue.Job{OrganizationID: "org-1", CampaignID: "c-locked"})

	if len(d.calls) != 0 {
		t.Fatal("dispatch ran without the lock")
	}
	if s := pool.Stats(); s.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", s.Skipped)
	}
}

func TestDispatchPool_ReleasesLockAfterRun(t *testing.T) {
	d := &fakeDispatcher{err: campaign.ErrNotDispatchable}
	pool := NewDispatchPool(queue.NewMemoryQueue(1), d, localLocks, 1)
	job := &queue.Job{OrganizationID: "org-1", CampaignID: "c-release"}

	pool.Handle(context.Background(), job)
	pool.Handle(context.Background(), job)

	if len(d.calls) != 2 {
		t.Fatalf("calls = %d, want 2 (lock not released)", len(d.calls))
	}
	if s := pool.Stats(); s.Skipped != 2 || s.Failed != 0 {
		t.Errorf("unexpected stats %+v", s)
	}

	d.err = errors.New("boom")
	pool.Handle(context.Background(), job)
	if s := pool.Stats(); s.Failed != 1 {
		t.Errorf("Failed = %d, want 1", s.Failed)
	}
}

// losingLock is a local lock whose lease is reported lost right away.
type losingLock struct {
	distlock.DistLock
}

func (l losingLock) KeepAlive(_ context.Context, lost func(error)) {
	lost(distlock.ErrNotOwner)
}

// blockingDispatcher runs until its context is cancelled.
type blockingDispatcher struct {
	err chan error
}

func (b *blockingDispatcher) Dispatch(ctx context.Context, _, campaignID string, _ dispatch.Options) (*domain.DispatchSummary, error) {
	select {
	case <-ctx.Done():
		b.err <- ctx.Err()
		return &domain.DispatchSummary{CampaignID: campaignID}, ctx.Err()
	case <-time.After(2 * time.Second):
		b.err <- nil
		return &domain.DispatchSummary{CampaignID: campaignID}, nil
	}
}

func TestDispatchPool_LostLockStopsRun(t *testing.T) {
	locks := func(key string) distlock.DistLock { return losingLock{distlock.NewLocalLock(key)} }
	d := &blockingDispatcher{err: make(chan error, 1)}
	pool := NewDispatchPool(queue.NewMemoryQueue(1), d, locks, 1)

	pool.Handle(context.Background(), &queue.Job{OrganizationID: "org-1", CampaignID: "c-lost"})

	if err := <-d.err; !errors.Is(err, context.Canceled) {
		t.Fatalf("dispatch context not cancelled, got %v", err)
	}
	if s := pool.Stats(); s.Failed != 1 {
		t.Errorf("Failed = %d, want 1", s.Failed)
	}
}

// =============================================================================
// SCHEDULER TESTS
// =============================================================================

type fakeStarter struct {
	started []string
	err     error
}

func (f *fakeStarter) Send(_ context.Context, _, campaignID string, _ bool) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.started = append(f.started, campaignID)
	return 1, nil
}

func TestScheduler_Tick(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCampaignRepo()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Minute), now.Add(time.Hour)

	repo.Create(ctx, &domain.Campaign{ID: "due", OrganizationID: "org-1", Status: domain.CampaignScheduled, ScheduledAt: &past})
	repo.Create(ctx, &domain.Campaign{ID: "later", OrganizationID: "org-1", Status: domain.CampaignScheduled, ScheduledAt: &future})
	repo.Create(ctx, &domain.Campaign{ID: "stuck", OrganizationID: "org-1", Status: domain.CampaignSending, CreatedAt: now.Add(-time.Hour)})
	repo.Create(ctx, &domain.Campaign{ID: "busy", OrganizationID: "org-1", Status: domain.CampaignSending, CreatedAt: now.Add(-time.Minute)})

	starter := &fakeStarter{}
	jobs := queue.NewMemoryQueue(10)
	s := NewScheduler(repo, starter, jobs, "", 10*time.Minute)
	s.now = func() time.Time { return now }

	if n := s.Tick(ctx); n != 2 {
		t.Fatalf("Tick() = %d, want 2", n)
	}
	if len(starter.started) != 1 || starter.started[0] != "due" {
		t.Errorf("started = %v, want [due]", starter.started)
	}
	job, err := jobs.Dequeue(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue() error: %v", err)
	}
	if job.CampaignID != "stuck" || !job.Resume {
		t.Errorf("unexpected resume job %+v", job)
	}

	// Already enqueued within the stale window.
	if n := s.Tick(ctx); n != 0 {
		t.Errorf("second Tick() = %d, want 0", n)
	}
	now = now.Add(11 * time.Minute)
	if n := s.Tick(ctx); n != 2 {
		t.Errorf("Tick() after window = %d, want 2", n)
	}
}

func TestScheduler_StartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(memory.NewCampaignRepo(), &fakeStarter{}, queue.NewMemoryQueue(1), "not a spec", 0)
	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatal("Start() should reject an invalid spec")
	}
	s = NewScheduler(memory.NewCampaignRepo(), &fakeStarter{}, queue.NewMemoryQueue(1), "", 0)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	s.Stop()
}
