package domain_test

import (
	"testing"

	"github.com/ignite/announce/internal/domain"
)

func TestSelectAudienceByTags(t *testing.T) {
	contacts := []domain.Contact{
		{Email: "a@x.io", Status: domain.ContactActive, Tags: []string{"A"}},
		{Email: "b@x.io", Status: domain.ContactActive, Tags: []string{"B"}},
		{Email: "ab@x.io", Status: domain.ContactActive, Tags: []string{"A", "B"}},
		{Email: "none@x.io", Status: domain.ContactActive},
	}
	c := &domain.Campaign{AudienceType: domain.AudienceTags, Tags: []string{"A"}}

	got := domain.SelectAudience(c, contacts)
	if len(got) != 2 {
		t.Fatalf("expected 2 recipients, got %d", len(got))
	}
	if got[0].Email != "a@x.io" || got[1].Email != "ab@x.io" {
		t.Fatalf("unexpected selection: %s, %s", got[0].Email, got[1].Email)
	}
}

func TestSelectAudienceSkipsInactive(t *testing.T) {
	contacts := []domain.Contact{
		{Email: "a@x.io", Status: domain.ContactActive},
		{Email: "b@x.io", Status: domain.ContactInactive},
	}
	got := domain.SelectAudience(&domain.Campaign{AudienceType: domain.AudienceAll}, contacts)
	if len(got) != 1 || got[0].Email != "a@x.io" {
		t.Fatalf("expected only the active contact, got %+v", got)
	}
}

func TestValidScore(t *testing.T) {
	for score, want := range map[int]bool{-1: false, 0: true, 7: true, 10: true, 11: false} {
		if got := domain.ValidScore(score); got != want {
			t.Errorf("ValidScore(%d) = %v, want %v", score, got, want)
		}
	}
}
