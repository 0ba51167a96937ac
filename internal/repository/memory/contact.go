package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/service/contact"
)

// ContactRepo implements contact.Repository.
type ContactRepo struct {
	mu       sync.Mutex
	contacts map[string]*domain.Contact // keyed by id
}

func NewContactRepo() *ContactRepo {
	return &ContactRepo{contacts: make(map[string]*domain.Contact)}
}

func copyContact(c *domain.Contact) domain.Contact {
	cp := *c
	cp.Tags = append([]string(nil), c.Tags...)
	return cp
}

func (r *ContactRepo) Get(_ context.Context, orgID, id string) (*domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok || c.OrganizationID != orgID {
		return nil, contact.ErrNotFound
	}
	cp := copyContact(c)
	return &cp, nil
}

func (r *ContactRepo) sorted(orgID string, keep func(*domain.Contact) bool) []domain.Contact {
	var out []domain.Contact
	for _, c := range r.contacts {
		if c.OrganizationID == orgID && keep(c) {
			out = append(out, copyContact(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func (r *ContactRepo) List(_ context.Context, orgID string, f contact.ListFilter) ([]domain.Contact, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	search := strings.ToLower(f.Search)
	out := r.sorted(orgID, func(c *domain.Contact) bool {
		if f.Status != "" && string(c.Status) != f.Status {
			return false
		}
		if f.Tag != "" && !c.HasAnyTag([]string{f.Tag}) {
			return false
		}
		if search != "" && !strings.Contains(c.Email, search) && !strings.Contains(strings.ToLower(c.Name), search) {
			return false
		}
		return true
	})
	total := len(out)
	if f.Offset >= len(out) {
		return []domain.Contact{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > len(out) || f.Limit <= 0 {
		end = len(out)
	}
	return out[f.Offset:end], total, nil
}

func (r *ContactRepo) ListActive(_ context.Context, orgID string) ([]domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(orgID, func(c *domain.Contact) bool {
		return c.Status == domain.ContactActive || c.Status == ""
	}), nil
}

func (r *ContactRepo) Upsert(_ context.Context, c *domain.Contact) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := domain.NormalizeEmail(c.Email)
	for _, existing := range r.contacts {
		if existing.OrganizationID == c.OrganizationID && existing.Email == email {
			existing.Name = c.Name
			existing.Company = c.Company
			existing.Role = c.Role
			existing.Status = c.Status
			existing.Tags = append([]string(nil), c.Tags...)
			existing.UpdatedAt = c.UpdatedAt
			return existing.ID, false, nil
		}
	}
	cp := copyContact(c)
	cp.Email = email
	r.contacts[cp.ID] = &cp
	return cp.ID, true, nil
}
