package analytics_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/service/analytics"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ev(email string, typ domain.EventType, minute int) domain.CampaignEvent {
	return domain.CampaignEvent{CampaignID: "c1", Email: email, Type: typ, CreatedAt: t0.Add(time.Duration(minute) * time.Minute)}
}

func TestSummarizeDistinctOpens(t *testing.T) {
	var events []domain.CampaignEvent
	for i := 0; i < 5; i++ {
		events = append(events, ev("a@x.com", domain.EventOpen, i))
	}
	m := analytics.Summarize(events)
	if m.Opened != 1 || m.Events[domain.EventOpen] != 5 {
		t.Fatalf("expected 1 distinct opener over 5 raw opens, got %d/%d", m.Opened, m.Events[domain.EventOpen])
	}

	events = nil
	for i := 0; i < 5; i++ {
		events = append(events, ev(string(rune('a'+i))+"@x.com", domain.EventOpen, i))
	}
	if m := analytics.Summarize(events); m.Opened != 5 {
		t.Fatalf("expected 5 distinct openers, got %d", m.Opened)
	}
}

func TestStatusPrecedenceIgnoresOrder(t *testing.T) {
	events := []domain.CampaignEvent{
		ev("a@x.com", domain.EventClick, 1),
		ev("a@x.com", domain.EventSent, 5),
		ev("a@x.com", domain.EventDelivered, 9),
		ev("b@x.com", domain.EventDelivered, 3),
		ev("b@x.com", domain.EventBounce, 2),
		ev("c@x.com", domain.EventSent, 1),
		ev("d@x.com", domain.EventFailed, 1),
		ev("e@x.com", domain.EventOpen, 4),
		ev("e@x.com", domain.EventBounce, 7),
	}
	want := map[string]analytics.RecipientStatus{
		"a@x.com": analytics.StatusClicked,
		"b@x.com": analytics.StatusBounced,
		"c@x.com": analytics.StatusSent,
		"d@x.com": analytics.StatusBounced,
		"e@x.com": analytics.StatusOpened,
	}
	got := analytics.Statuses(events)
	if len(got) != len(want) {
		t.Fatalf("expected %d recipients, got %d", len(want), len(got))
	}
	for _, r := range got {
		if r.Status != want[r.Email] {
			t.Errorf("%s: got %s, want %s", r.Email, r.Status, want[r.Email])
		}
	}
	if got[0].Email != "a@x.com" || !got[0].LastEventAt.Equal(t0.Add(9*time.Minute)) {
		t.Errorf("unexpected first row %+v", got[0])
	}
}

func TestSummarizeRates(t *testing.T) {
	events := []domain.CampaignEvent{
		ev("a@x.com", domain.EventDelivered, 0),
		ev("b@x.com", domain.EventDelivered, 0),
		ev("c@x.com", domain.EventDelivered, 0),
		ev("a@x.com", domain.EventOpen, 1),
		ev("b@x.com", domain.EventClick, 2),
		ev("d@x.com", domain.EventBounce, 0),
		ev("c@x.com", domain.EventComplaint, 3),
	}
	m := analytics.Summarize(events)
	if m.Recipients != 4 || m.Delivered != 3 || m.Bounced != 1 || m.Opened != 2 || m.Clicked != 1 || m.Complaints != 1 {
		t.Fatalf("unexpected counts %+v", m)
	}
	if m.OpenRate != 66.67 || m.ClickRate != 33.33 || m.ClickToOpenRate != 50 {
		t.Fatalf("unexpected rates open=%v click=%v cto=%v", m.OpenRate, m.ClickRate, m.ClickToOpenRate)
	}
}

func TestSummarizeRatesWithoutDeliveryEvents(t *testing.T) {
	var events []domain.CampaignEvent
	for i := 0; i < 100; i++ {
		events = append(events, ev(fmt.Sprintf("r%03d@x.com", i), domain.EventSent, 0))
	}
	events = append(events, ev("r007@x.com", domain.EventOpen, 5))

	m := analytics.Summarize(events)
	if m.Recipients != 100 || m.Opened != 1 {
		t.Fatalf("unexpected counts %+v", m)
	}
	if m.OpenRate != 1 || m.ClickRate != 0 {
		t.Fatalf("open rate over dispatched recipients: got open=%v click=%v", m.OpenRate, m.ClickRate)
	}
}

func TestSummarizeRatesExcludeBounces(t *testing.T) {
	events := []domain.CampaignEvent{
		ev("a@x.com", domain.EventSent, 0),
		ev("b@x.com", domain.EventSent, 0),
		ev("c@x.com", domain.EventSent, 0),
		ev("d@x.com", domain.EventSent, 0),
		ev("d@x.com", domain.EventBounce, 1),
		ev("c@x.com", domain.EventFailed, 1),
		ev("a@x.com", domain.EventClick, 2),
	}
	m := analytics.Summarize(events)
	if m.Bounced != 2 || m.OpenRate != 50 || m.ClickRate != 50 || m.ClickToOpenRate != 100 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	m := analytics.Summarize(nil)
	if m.Recipients != 0 || m.OpenRate != 0 || m.ClickRate != 0 || m.ClickToOpenRate != 0 {
		t.Fatalf("expected zero metrics, got %+v", m)
	}
}

func TestSummarizeNPS(t *testing.T) {
	resp := func(score int, comment string) domain.NPSResponse {
		return domain.NPSResponse{CampaignID: "c1", Score: score, Comment: comment}
	}
	s := analytics.SummarizeNPS([]domain.NPSResponse{
		resp(10, "great"), resp(9, ""), resp(8, ""), resp(3, "meh"), resp(0, ""),
	})
	if s.Responses != 5 || s.Promoters != 2 || s.Passives != 1 || s.Detractors != 2 || s.Comments != 2 {
		t.Fatalf("unexpected buckets %+v", s)
	}
	if s.Score != 0 || s.Average != 6 {
		t.Fatalf("unexpected score %d / average %v", s.Score, s.Average)
	}
	if empty := analytics.SummarizeNPS(nil); empty.Score != 0 || empty.Average != 0 {
		t.Fatalf("expected zero summary, got %+v", empty)
	}
}
