// Package queue carries dispatch jobs from the API to the workers and
// holds the per-campaign cancellation flags checked between batches.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrEmpty is returned by Dequeue when no job arrived before the timeout.
var ErrEmpty = errors.New("queue empty")

// Job asks a worker to dispatch one campaign.
type Job struct {
	OrganizationID string `json:"organization_id"`
	CampaignID     string `json:"campaign_id"`
	// Resume accepts a campaign already in sending, for jobs re-enqueued
	// after a crash.
	Resume bool `json:"resume,omitempty"`
	// Resend sends again to recipients that already have a sent event.
	Resend     bool      `json:"resend,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// LockKey is the distributed lock key serializing dispatches of a campaign.
func LockKey(campaignID string) string { return "dispatch:" + campaignID }

// Queue is a FIFO of dispatch jobs.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks up to timeout for the next job.
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
	Len(ctx context.Context) (int64, error)
}

// CancelFlags records cancellation requests for running dispatches.
type CancelFlags interface {
	RequestCancel(ctx context.Context, campaignID string) error
	IsCancelled(ctx context.Context, campaignID string) (bool, error)
	Clear(ctx context.Context, campaignID string) error
}
