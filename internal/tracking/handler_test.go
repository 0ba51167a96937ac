package tracking

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/repository/memory"
	"github.com/ignite/announce/internal/service/ingest"
)

const (
	testCampaign = "6f1c2f0e-7c1b-4d55-9a51-3f3d2b4a9e10"
	fallbackURL  = "https://intranet.example.com"
)

type fixture struct {
	events   *memory.EventRepo
	links    *memory.LinkRepo
	feedback *memory.FeedbackRepo
	router   http.Handler
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	ctx := context.Background()
	campaigns := memory.NewCampaignRepo()
	if _, err := campaigns.Create(ctx, &domain.Campaign{ID: testCampaign, OrganizationID: "org-1", Status: domain.CampaignSent}); err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	f := &fixture{
		events:   memory.NewEventRepo(campaigns),
		links:    memory.NewLinkRepo(),
		feedback: memory.NewFeedbackRepo(),
	}
	f.links.SaveLinks(ctx, []domain.TrackedLink{{CampaignID: testCampaign, OriginalURL: "https://example.com/news", Code: "abc123"}})
	svc := ingest.NewService(ingest.NewStoreSink(f.events, campaigns), f.links, f.feedback)
	h := NewHandler(svc, Config{FallbackURL: fallbackURL, WebhookSecret: secret}, http.NotFoundHandler())
	f.router = h.Routes()
	return f
}

func (f *fixture) do(method, target string, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) eventsOf(t *testing.T, typ domain.EventType) []domain.CampaignEvent {
	t.Helper()
	all, _ := f.events.ListByCampaign(context.Background(), testCampaign)
	var out []domain.CampaignEvent
	for _, e := range all {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func TestOpenPixel(t *testing.T) {
	f := newFixture(t, "")
	for _, target := range []string{
		"/track/open/" + testCampaign + "?email=ana%40example.com",
		"/track/open/00000000-0000-0000-0000-000000000000?email=x%40y.com",
		"/track/open/not-a-campaign",
	} {
		rec := f.do(http.MethodGet, target, nil, nil)
		if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/gif" {
			t.Fatalf("%s: status %d type %q", target, rec.Code, rec.Header().Get("Content-Type"))
		}
		if !bytes.Equal(rec.Body.Bytes(), pixelGIF) || rec.Header().Get("Content-Length") != pixelLength {
			t.Fatalf("%s: unexpected pixel body", target)
		}
		if cc := rec.Header().Get("Cache-Control"); cc != "no-store, no-cache, must-revalidate, proxy-revalidate" {
			t.Fatalf("%s: Cache-Control = %q", target, cc)
		}
	}
	opens := f.eventsOf(t, domain.EventOpen)
	if len(opens) != 1 || opens[0].Email != "ana@example.com" {
		t.Fatalf("expected one recorded open, got %+v", opens)
	}
}

func TestOpenRecordsMetadata(t *testing.T) {
	f := newFixture(t, "")
	hdr := http.Header{}
	hdr.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148")
	hdr.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	f.do(http.MethodGet, "/track/open/"+testCampaign+"?email=a%40x.com", nil, hdr)

	opens := f.eventsOf(t, domain.EventOpen)
	if len(opens) != 1 {
		t.Fatalf("expected one open, got %d", len(opens))
	}
	if m := opens[0].Metadata; m.Device != DeviceMobile || m.IP != "203.0.113.7" {
		t.Fatalf("unexpected metadata %+v", m)
	}
}

func TestClickRedirect(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(http.MethodGet, "/track/click/abc123?email=ana%40example.com", nil, nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "https://example.com/news" {
		t.Fatalf("known code: %d %q", rec.Code, rec.Header().Get("Location"))
	}
	rec = f.do(http.MethodGet, "/track/click/abc123", nil, nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("anonymous click: %d", rec.Code)
	}
	rec = f.do(http.MethodGet, "/track/click/unknown", nil, nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != fallbackURL {
		t.Fatalf("unknown code: %d %q", rec.Code, rec.Header().Get("Location"))
	}

	if clicks := f.eventsOf(t, domain.EventClick); len(clicks) != 1 || clicks[0].Metadata.OriginalURL != "https://example.com/news" {
		t.Fatalf("expected one click event, got %+v", clicks)
	}
	link, _ := f.links.GetByCode(context.Background(), "abc123")
	if link.Clicks != 2 {
		t.Fatalf("raw clicks = %d, want 2", link.Clicks)
	}
}

func TestWebhook(t *testing.T) {
	f := newFixture(t, "")
	delivered := `{"type":"email.delivered","data":{"email_id":"re_1","to":["a@x.com"],"tags":[{"name":"campaign_id","value":"` + testCampaign + `"}]}}`

	cases := []struct {
		name string
		body string
		code int
	}{
		{"delivered", delivered, http.StatusOK},
		{"malformed", `{not json`, http.StatusBadRequest},
		{"missing tag", `{"type":"email.delivered","data":{"to":["a@x.com"]}}`, http.StatusOK},
		{"bad tag structure", `{"type":"email.opened","data":{"to":["a@x.com"],"tags":"oops"}}`, http.StatusOK},
		{"ses scalar tag", `{"eventType":"Delivery","mail":{"tags":{"campaign_id":"not-a-list"}}}`, http.StatusOK},
		{"resend object recipients", `{"type":"email.delivered","data":{"to":{"x":1}}}`, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/track/webhook", []byte(tc.body), nil)
			if rec.Code != tc.code {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.code, rec.Body.String())
			}
			if tc.code == http.StatusOK && !strings.Contains(rec.Body.String(), `"received":true`) {
				t.Fatalf("unexpected body %s", rec.Body.String())
			}
		})
	}
	if n := len(f.eventsOf(t, domain.EventDelivered)); n != 1 {
		t.Fatalf("delivered events = %d, want 1", n)
	}
}

func TestWebhookSignature(t *testing.T) {
	secret := "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"
	f := newFixture(t, secret)
	body := []byte(`{"type":"email.delivered","data":{"to":["a@x.com"],"tags":{"campaign_id":"` + testCampaign + `"}}}`)

	v := NewVerifier(secret)
	now := time.Now()
	good := http.Header{}
	good.Set("svix-id", "msg_1")
	good.Set("svix-timestamp", strconvUnix(now))
	good.Set("svix-signature", "v1,bogus "+v.Sign("msg_1", now, body))

	if rec := f.do(http.MethodPost, "/track/webhook", body, good); rec.Code != http.StatusOK {
		t.Fatalf("valid signature: %d %s", rec.Code, rec.Body.String())
	}

	bad := good.Clone()
	bad.Set("svix-signature", "v1,"+NewVerifier("whsec_other").Sign("msg_1", now, body))
	if rec := f.do(http.MethodPost, "/track/webhook", body, bad); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature: %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/track/webhook", body, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing signature: %d", rec.Code)
	}
}

func TestFeedbackPages(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(http.MethodGet, "/feedback/"+testCampaign+"/ct-1/11", nil, nil)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Invalid link") {
		t.Fatalf("score 11: %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/feedback/"+testCampaign+"/ct-1/abc", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric score: %d", rec.Code)
	}

	rec = f.do(http.MethodGet, "/feedback/"+testCampaign+"/ct-1/9", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `action="/feedback/`+testCampaign+`/ct-1/comment"`) {
		t.Fatalf("score 9: %d %s", rec.Code, rec.Body.String())
	}

	form := url.Values{"comment": {"  Loved it  "}}
	hdr := http.Header{"Content-Type": {"application/x-www-form-urlencoded"}}
	rec = f.do(http.MethodPost, "/feedback/"+testCampaign+"/ct-1/comment", []byte(form.Encode()), hdr)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Comment received") {
		t.Fatalf("comment: %d", rec.Code)
	}

	responses, _ := f.feedback.ListByCampaign(context.Background(), testCampaign)
	if len(responses) != 1 || responses[0].Score != 9 || responses[0].Comment != "Loved it" {
		t.Fatalf("unexpected responses %+v", responses)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "")
	if rec := f.do(http.MethodGet, "/health", nil, nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
}

func TestDeviceClass(t *testing.T) {
	cases := map[string]string{
		"": DeviceUnknown,
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36":   DeviceDesktop,
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148": DeviceMobile,
		"Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148":          DeviceTablet,
		"Googlebot/2.1 (+http://www.google.com/bot.html)":                                                               DeviceBot,
	}
	for ua, want := range cases {
		if got := deviceClass(ua); got != want {
			t.Errorf("deviceClass(%q) = %q, want %q", ua, got, want)
		}
	}
}
