package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/service/ingest"
)

// LinkRepo stores tracked links keyed by code.
type LinkRepo struct {
	mu    sync.Mutex
	links map[string]*domain.TrackedLink
}

func NewLinkRepo() *LinkRepo {
	return &LinkRepo{links: make(map[string]*domain.TrackedLink)}
}

// SaveLinks inserts links, ignoring codes already present.
func (r *LinkRepo) SaveLinks(_ context.Context, links []domain.TrackedLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range links {
		if _, ok := r.links[l.Code]; ok {
			continue
		}
		cp := l
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now().UTC()
		}
		r.links[cp.Code] = &cp
	}
	return nil
}

func (r *LinkRepo) GetByCode(_ context.Context, code string) (*domain.TrackedLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[code]
	if !ok {
		return nil, ingest.ErrLinkNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *LinkRepo) IncrementClicks(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.links[code]; ok {
		l.Clicks++
	}
	return nil
}

// TopLinks returns a campaign's links by descending raw clicks.
func (r *LinkRepo) TopLinks(_ context.Context, campaignID string, limit int) ([]domain.TrackedLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TrackedLink
	for _, l := range r.links {
		if l.CampaignID == campaignID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Clicks == out[j].Clicks {
			return out[i].OriginalURL < out[j].OriginalURL
		}
		return out[i].Clicks > out[j].Clicks
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
