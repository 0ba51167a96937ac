package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/announce/internal/domain"
)

type feedbackKey struct{ campaignID, contactID string }

// FeedbackRepo stores one NPS response per (campaign, contact).
type FeedbackRepo struct {
	mu        sync.Mutex
	responses map[feedbackKey]*domain.NPSResponse
}

func NewFeedbackRepo() *FeedbackRepo {
	return &FeedbackRepo{responses: make(map[feedbackKey]*domain.NPSResponse)}
}

func (r *FeedbackRepo) Upsert(_ context.Context, resp *domain.NPSResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := feedbackKey{resp.CampaignID, resp.ContactID}
	if existing, ok := r.responses[k]; ok {
		existing.Score = resp.Score
		existing.UpdatedAt = resp.UpdatedAt
		return nil
	}
	cp := *resp
	r.responses[k] = &cp
	return nil
}

func (r *FeedbackRepo) UpdateComment(_ context.Context, campaignID, contactID, comment string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.responses[feedbackKey{campaignID, contactID}]
	if !ok {
		return nil
	}
	existing.Comment = comment
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

// ListByCampaign returns a campaign's responses, newest first.
func (r *FeedbackRepo) ListByCampaign(_ context.Context, campaignID string) ([]domain.NPSResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.NPSResponse
	for k, v := range r.responses {
		if k.campaignID == campaignID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
