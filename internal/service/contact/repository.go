package contact

import (
	"context"

	"github.com/ignite/announce/internal/domain"
)

// Repository defines the data access contract for contacts.
type Repository interface {
	Get(ctx context.Context, orgID, id string) (*domain.Contact, error)

	// List returns contacts ordered by email.
	List(ctx context.Context, orgID string, filter ListFilter) ([]domain.Contact, int, error)

	// ListActive returns every active contact of the organization in a
	// stable order.
	ListActive(ctx context.Context, orgID string) ([]domain.Contact, error)

	// Upsert inserts or updates a contact keyed on (organization, email).
	// Returns the contact ID and whether a new row was created.
	Upsert(ctx context.Context, c *domain.Contact) (string, bool, error)
}

// ListFilter controls pagination and filtering for contact lists.
type ListFilter struct {
	Status string
	Tag    string
	Search string
	Limit  int
	Offset int
}

// ObjectGetter fetches import files from object storage.
type ObjectGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}
