package domain

import (
	"strings"
	"time"
)

// ContactStatus is the lifecycle state of a contact.
type ContactStatus string

const (
	ContactActive   ContactStatus = "active"
	ContactInactive ContactStatus = "inactive"
)

// Contact is an audience member of an organization.
type Contact struct {
	ID             string        `json:"id" db:"id"`
	OrganizationID string        `json:"organization_id" db:"organization_id"`
	Email          string        `json:"email" db:"email"`
	Name           string        `json:"name" db:"name"`
	Company        string        `json:"company" db:"company"`
	Role           string        `json:"cargo" db:"role"`
	Status         ContactStatus `json:"status" db:"status"`
	Tags           []string      `json:"tags" db:"tags"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// HasAnyTag reports whether the contact carries at least one of tags.
func (c *Contact) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range c.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// SelectAudience filters contacts for a campaign: only active contacts are
// candidates, and a tag audience further requires a tag intersection.
// Input order is preserved.
func SelectAudience(c *Campaign, contacts []Contact) []Contact {
	out := make([]Contact, 0, len(contacts))
	for i := range contacts {
		ct := &contacts[i]
		if ct.Status != "" && ct.Status != ContactActive {
			continue
		}
		if c.AudienceType == AudienceTags && !ct.HasAnyTag(c.Tags) {
			continue
		}
		out = append(out, *ct)
	}
	return out
}

// NormalizeEmail lowercases and trims an address for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
