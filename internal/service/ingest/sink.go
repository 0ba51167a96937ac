package ingest

import (
	"context"
	"log"

	"github.com/ignite/announce/internal/domain"
)

// StoreSink appends events to the event log and bumps the campaign
// counters. It is the direct sink and the target of the SQS consumer.
type StoreSink struct {
	events   EventAppender
	counters Counters
}

func NewStoreSink(events EventAppender, counters Counters) *StoreSink {
	return &StoreSink{events: events, counters: counters}
}

func (s *StoreSink) Append(ctx context.Context, e *domain.CampaignEvent) error {
	if err := s.events.Append(ctx, e); err != nil {
		return err
	}
	if s.counters == nil {
		return nil
	}
	// The event is durable at this point; a lost counter update only
	// skews the cached totals.
	if err := s.counters.IncrementEventCount(ctx, e.CampaignID, e.Type); err != nil {
		log.Printf("[ingest] counter update for campaign %s (%s): %v", e.CampaignID, e.Type, err)
	}
	return nil
}
