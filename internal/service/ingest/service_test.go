package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/repository/memory"
	"github.com/ignite/announce/internal/service/ingest"
)

const (
	testOrg      = "org-1"
	testCampaign = "6f1c2f0e-7c1b-4d55-9a51-3f3d2b4a9e10"
)

type fixture struct {
	campaigns *memory.CampaignRepo
	events    *memory.EventRepo
	links     *memory.LinkRepo
	feedback  *memory.FeedbackRepo
	svc       *ingest.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		campaigns: memory.NewCampaignRepo(),
		links:     memory.NewLinkRepo(),
		feedback:  memory.NewFeedbackRepo(),
	}
	f.events = memory.NewEventRepo(f.campaigns)
	_, err := f.campaigns.Create(context.Background(), &domain.Campaign{
		ID: testCampaign, OrganizationID: testOrg, Title: "T", Subject: "S", Status: domain.CampaignSent,
	})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	f.svc = ingest.NewService(ingest.NewStoreSink(f.events, f.campaigns), f.links, f.feedback)
	return f
}

func (f *fixture) listEvents(t *testing.T) []domain.CampaignEvent {
	t.Helper()
	evs, err := f.events.ListByCampaign(context.Background(), testCampaign)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	return evs
}

func TestIngestWebhook_ResendDelivered(t *testing.T) {
	f := newFixture(t)
	body := `{"type":"email.delivered","created_at":"2024-05-01T10:00:00.000Z",
		"data":{"email_id":"re_1","to":["Ana@Example.com"],"tags":[{"name":"campaign_id","value":"` + testCampaign + `"}]}}`

	if err := f.svc.IngestWebhook(context.Background(), []byte(body)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	evs := f.listEvents(t)
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	e := evs[0]
	if e.Type != domain.EventDelivered || e.Email != "ana@example.com" || e.Metadata.MessageID != "re_1" {
		t.Fatalf("unexpected event: %+v", e)
	}
	if e.OrganizationID != testOrg {
		t.Fatalf("organization not derived from campaign: %q", e.OrganizationID)
	}
	if !e.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("created_at = %v", e.CreatedAt)
	}
	c, _ := f.campaigns.Get(context.Background(), testOrg, testCampaign)
	if c.DeliveredCount != 1 {
		t.Fatalf("delivered counter = %d", c.DeliveredCount)
	}
}

func TestIngestWebhook_ObjectTags(t *testing.T) {
	f := newFixture(t)
	body := `{"type":"email.opened","data":{"email_id":"re_2","to":"a@x.com","tags":{"campaign_id":"` + testCampaign + `"}}}`
	if err := f.svc.IngestWebhook(context.Background(), []byte(body)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if evs := f.listEvents(t); len(evs) != 1 || evs[0].Type != domain.EventOpen {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestIngestWebhook_Malformed(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{`not json`, `[]`, `null`, `{"type":"email.opened","data":42}`} {
		err := f.svc.IngestWebhook(context.Background(), []byte(body))
		if !errors.Is(err, ingest.ErrMalformedPayload) {
			t.Errorf("%s: expected ErrMalformedPayload, got %v", body, err)
		}
	}
}

func TestIngestWebhook_SwallowedCases(t *testing.T) {
	f := newFixture(t)
	cases := map[string]string{
		"missing tag":      `{"type":"email.delivered","data":{"to":["a@x.com"]}}`,
		"non-uuid tag":     `{"type":"email.delivered","data":{"to":["a@x.com"],"tags":{"campaign_id":"abc"}}}`,
		"malformed tags":   `{"type":"email.delivered","data":{"to":["a@x.com"],"tags":42}}`,
		"manual test":      `{"type":"email.delivered","data":{"to":["a@x.com"],"tags":{"campaign_id":"manual_test"}}}`,
		"unknown campaign": `{"type":"email.delivered","data":{"to":["a@x.com"],"tags":{"campaign_id":"00000000-0000-0000-0000-000000000001"}}}`,
		"ignored type":     `{"type":"email.sent","data":{"to":["a@x.com"],"tags":{"campaign_id":"` + testCampaign + `"}}}`,
		"resend odd to":    `{"type":"email.delivered","data":{"to":{"x":1}}}`,
		"resend odd click": `{"type":"email.clicked","data":{"to":["a@x.com"],"click":"https://x","bounce":[1]}}`,
		"ses scalar tag":   `{"eventType":"Delivery","mail":{"tags":{"campaign_id":"not-a-list"}}}`,
		"ses tags list":    `{"eventType":"Delivery","mail":{"destination":"a@x.com","tags":["campaign_id"]}}`,
		"ses numeric tag":  `{"eventType":"Click","click":7,"mail":{"destination":{"a":1},"tags":{"campaign_id":[7]}}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if err := f.svc.IngestWebhook(context.Background(), []byte(body)); err != nil {
				t.Fatalf("expected nil, got %v", err)
			}
		})
	}
	if evs := f.listEvents(t); len(evs) != 0 {
		t.Fatalf("expected no events, got %d", len(evs))
	}
}

func TestIngestWebhook_OddRecipientsStillCorrelate(t *testing.T) {
	f := newFixture(t)
	body := `{"type":"email.opened","data":{"to":{"x":1},"tags":[{"name":"campaign_id","value":"` + testCampaign + `"},{"name":"contact_id","value":"ct-3"}]}}`
	if err := f.svc.IngestWebhook(context.Background(), []byte(body)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	evs := f.listEvents(t)
	if len(evs) != 1 || evs[0].ContactID != "ct-3" || evs[0].Email != "" {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestIngestWebhook_SESThroughSNS(t *testing.T) {
	f := newFixture(t)
	inner := `{"eventType":"Bounce","bounce":{"bounceType":"Permanent"},"mail":{"messageId":"ses-1","destination":["b@x.com"],"tags":{"campaign_id":["` + testCampaign + `"],"contact_id":["ct-9"]}}}`
	body := `{"Type":"Notification","Message":` + quote(inner) + `}`
	if err := f.svc.IngestWebhook(context.Background(), []byte(body)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	evs := f.listEvents(t)
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].Type != domain.EventBounce || evs[0].ContactID != "ct-9" || evs[0].Metadata.Error != "Permanent" {
		t.Fatalf("unexpected event: %+v", evs[0])
	}
}

func TestRecordOpen_UnknownCampaignIsSilent(t *testing.T) {
	f := newFixture(t)
	f.svc.RecordOpen(context.Background(), "00000000-0000-0000-0000-000000000002", "a@x.com", domain.EventMetadata{})
	f.svc.RecordOpen(context.Background(), "not-a-uuid", "a@x.com", domain.EventMetadata{})
	f.svc.RecordOpen(context.Background(), testCampaign, "a@x.com", domain.EventMetadata{IP: "1.2.3.4"})

	evs := f.listEvents(t)
	if len(evs) != 1 || evs[0].Metadata.IP != "1.2.3.4" {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestRecordClick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.links.SaveLinks(ctx, []domain.TrackedLink{{CampaignID: testCampaign, OriginalURL: "https://example.com/a", Code: "abc"}})

	url, ok := f.svc.RecordClick(ctx, "abc", "a@x.com", domain.EventMetadata{})
	if !ok || url != "https://example.com/a" {
		t.Fatalf("RecordClick = %q, %v", url, ok)
	}
	// Anonymous click: counted on the link, no event.
	if _, ok := f.svc.RecordClick(ctx, "abc", "", domain.EventMetadata{}); !ok {
		t.Fatal("expected ok for anonymous click")
	}

	link, _ := f.links.GetByCode(ctx, "abc")
	if link.Clicks != 2 {
		t.Fatalf("clicks = %d, want 2", link.Clicks)
	}
	evs := f.listEvents(t)
	if len(evs) != 1 || evs[0].Metadata.TrackingCode != "abc" || evs[0].Metadata.OriginalURL != "https://example.com/a" {
		t.Fatalf("unexpected events: %+v", evs)
	}

	if _, ok := f.svc.RecordClick(ctx, "missing", "a@x.com", domain.EventMetadata{}); ok {
		t.Fatal("expected ok=false for unknown code")
	}
}

func TestSubmitFeedback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SubmitFeedback(ctx, testCampaign, "ct-1", 11); !errors.Is(err, ingest.ErrInvalidScore) {
		t.Fatalf("expected ErrInvalidScore, got %v", err)
	}
	if err := f.svc.SubmitFeedback(ctx, testCampaign, "ct-1", -1); !errors.Is(err, ingest.ErrInvalidScore) {
		t.Fatalf("expected ErrInvalidScore, got %v", err)
	}
	if err := f.svc.SubmitFeedback(ctx, testCampaign, "ct-1", 7); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := f.svc.SubmitFeedback(ctx, testCampaign, "ct-1", 9); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if err := f.svc.AddFeedbackComment(ctx, testCampaign, "ct-1", "  great  "); err != nil {
		t.Fatalf("comment: %v", err)
	}
	if err := f.svc.SubmitFeedback(ctx, "preview", "preview-contact", 5); err != nil {
		t.Fatalf("preview: %v", err)
	}

	all, _ := f.feedback.ListByCampaign(ctx, testCampaign)
	if len(all) != 1 {
		t.Fatalf("expected one response, got %d", len(all))
	}
	if all[0].Score != 9 || all[0].Comment != "great" {
		t.Fatalf("unexpected response: %+v", all[0])
	}
	if prev, _ := f.feedback.ListByCampaign(ctx, "preview"); len(prev) != 0 {
		t.Fatal("preview feedback must not be stored")
	}
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
