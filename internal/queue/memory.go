package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process queue for single-binary development.
type MemoryQueue struct {
	ch chan Job
}

// NewMemoryQueue creates a queue holding up to size pending jobs.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 256
	}
	return &MemoryQueue{ch: make(chan Job, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case job := <-q.ch:
		return &job, nil
	case <-t.C:
		return nil, ErrEmpty
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Len(context.Context) (int64, error) {
	return int64(len(q.ch)), nil
}

// MemoryCancelFlags keeps flags in a map.
type MemoryCancelFlags struct {
	mu    sync.Mutex
	flags map[string]bool
}

func NewMemoryCancelFlags() *MemoryCancelFlags {
	return &MemoryCancelFlags{flags: make(map[string]bool)}
}

func (f *MemoryCancelFlags) RequestCancel(_ context.Context, campaignID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[campaignID] = true
	return nil
}

func (f *MemoryCancelFlags) IsCancelled(_ context.Context, campaignID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flags[campaignID], nil
}

func (f *MemoryCancelFlags) Clear(_ context.Context, campaignID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.flags, campaignID)
	return nil
}
