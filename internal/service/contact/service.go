// Package contact manages the organization's audience and bulk imports.
package contact

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/announce/internal/domain"
)

// Service implements contact business logic.
type Service struct {
	repo    Repository
	objects ObjectGetter
}

// NewService creates a contact service. objects may be nil when no object
// store is configured; ImportFromS3 then fails.
func NewService(repo Repository, objects ObjectGetter) *Service {
	return &Service{repo: repo, objects: objects}
}

// UpsertInput holds the writable fields of a contact.
type UpsertInput struct {
	Email   string               `json:"email"`
	Name    string               `json:"name"`
	Company string               `json:"company"`
	Role    string               `json:"cargo"`
	Status  domain.ContactStatus `json:"status"`
	Tags    []string             `json:"tags"`
}

// Upsert validates and stores a contact keyed on its email.
func (s *Service) Upsert(ctx context.Context, orgID string, in UpsertInput) (*domain.Contact, error) {
	c, err := newContact(orgID, in)
	if err != nil {
		return nil, err
	}
	id, _, err := s.repo.Upsert(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

func newContact(orgID string, in UpsertInput) (*domain.Contact, error) {
	email := domain.NormalizeEmail(in.Email)
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	status := in.Status
	switch status {
	case "":
		status = domain.ContactActive
	case domain.ContactActive, domain.ContactInactive:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	now := time.Now().UTC()
	return &domain.Contact{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Email:          email,
		Name:           strings.TrimSpace(in.Name),
		Company:        strings.TrimSpace(in.Company),
		Role:           strings.TrimSpace(in.Role),
		Status:         status,
		Tags:           cleanTags(in.Tags),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Get returns a single contact.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Contact, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns contacts matching the filter.
func (s *Service) List(ctx context.Context, orgID string, f ListFilter) ([]domain.Contact, int, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return s.repo.List(ctx, orgID, f)
}

// ListActive returns every active contact.
func (s *Service) ListActive(ctx context.Context, orgID string) ([]domain.Contact, error) {
	return s.repo.ListActive(ctx, orgID)
}

// Resolve returns the recipients of a campaign: active contacts, filtered
// by tag intersection for tag audiences.
func (s *Service) Resolve(ctx context.Context, orgID string, c *domain.Campaign) ([]domain.Contact, error) {
	active, err := s.repo.ListActive(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list active contacts: %w", err)
	}
	return domain.SelectAudience(c, active), nil
}

// RowError reports a rejected import row. Line is 1-based and counts the
// header.
type RowError struct {
	Line  int    `json:"line"`
	Email string `json:"email,omitempty"`
	Error string `json:"error"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Invalid []RowError `json:"invalid"`
}

// ImportCSV upserts every row of a CSV with a header row. Recognized columns
// are email, name, company, cargo (or role) and tags; tags are separated by
// ';'. Invalid rows are reported and skipped.
func (s *Service) ImportCSV(ctx context.Context, orgID string, r io.Reader) (*ImportResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingEmail
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := mapColumns(header)
	if _, ok := cols["email"]; !ok {
		return nil, ErrMissingEmail
	}

	res := &ImportResult{Invalid: []RowError{}}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			res.Invalid = append(res.Invalid, RowError{Line: line, Error: err.Error()})
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		in := UpsertInput{
			Email:   field(rec, cols, "email"),
			Name:    field(rec, cols, "name"),
			Company: field(rec, cols, "company"),
			Role:    field(rec, cols, "cargo"),
			Tags:    strings.Split(field(rec, cols, "tags"), ";"),
		}
		c, err := newContact(orgID, in)
		if err != nil {
			res.Invalid = append(res.Invalid, RowError{Line: line, Email: in.Email, Error: err.Error()})
			continue
		}
		_, created, err := s.repo.Upsert(ctx, c)
		if err != nil {
			res.Invalid = append(res.Invalid, RowError{Line: line, Email: c.Email, Error: err.Error()})
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	log.Printf("[contact.Service] Import for org %s: %d created, %d updated, %d invalid",
		orgID, res.Created, res.Updated, len(res.Invalid))
	return res, nil
}

// ImportFromS3 fetches a CSV from the object store and imports it.
func (s *Service) ImportFromS3(ctx context.Context, orgID, key string) (*ImportResult, error) {
	if s.objects == nil {
		return nil, ErrNoObjectStore
	}
	data, err := s.objects.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	return s.ImportCSV(ctx, orgID, bytes.NewReader(data))
}

var columnAliases = map[string]string{
	"e-mail":  "email",
	"mail":    "email",
	"nome":    "name",
	"empresa": "company",
	"role":    "cargo",
}

func mapColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func field(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func validEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
