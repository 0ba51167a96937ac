package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/linktrack"
	"github.com/ignite/announce/internal/pkg/distlock"
	"github.com/ignite/announce/internal/queue"
	"github.com/ignite/announce/internal/repository/memory"
	"github.com/ignite/announce/internal/service/analytics"
	"github.com/ignite/announce/internal/service/campaign"
	"github.com/ignite/announce/internal/service/contact"
	"github.com/ignite/announce/internal/service/dispatch"
)

const testOrg = "org-1"

type stubSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *stubSender) Send(_ context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	s.mu.Lock()
	s.sent = append(s.sent, msg.To)
	s.mu.Unlock()
	return &domain.SendResult{MessageID: "m-" + msg.To, Provider: domain.ProviderSandbox, SentAt: time.Now()}, nil
}

func (s *stubSender) Provider() domain.Provider { return domain.ProviderSandbox }

type testEnv struct {
	router   http.Handler
	jobs     *queue.MemoryQueue
	contacts *memory.ContactRepo
	sender   *stubSender
}

func setupTestHandlers(t *testing.T) *testEnv {
	t.Helper()
	campaigns := memory.NewCampaignRepo()
	events := memory.NewEventRepo(campaigns)
	links := memory.NewLinkRepo()
	feedback := memory.NewFeedbackRepo()
	contacts := memory.NewContactRepo()
	jobs := queue.NewMemoryQueue(16)
	cancels := queue.NewMemoryCancelFlags()
	sender := &stubSender{}

	contactSvc := contact.NewService(contacts, nil)
	h := NewHandlers(Deps{
		Campaigns: campaign.NewService(campaigns, contactSvc, jobs, cancels),
		Contacts:  contactSvc,
		Dispatch: dispatch.NewService(dispatch.Deps{
			Campaigns: campaigns,
			Audience:  contactSvc,
			Events:    events,
			Links:     links,
			Sender:    sender,
			Tracker:   linktrack.New("https://t.example.com", "secret"),
			Cancels:   cancels,
		}, dispatch.Config{
			BaseURL:   "https://t.example.com",
			FromName:  "Comms",
			FromEmail: "comms@example.com",
			BatchSize: 10,
		}),
		Analytics: analytics.NewService(analytics.Deps{
			Campaigns: campaigns, Events: events, Links: links, Feedback: feedback,
		}),
		Locks: distlock.NewFactory(nil, nil, time.Minute),
	})

	router := SetupRoutes(h, RouterConfig{
		Orgs:   NewOrgContextProvider(false, ""),
		Health: NewHealthChecker(nil, nil, jobs),
	})
	return &testEnv{router: router, jobs: jobs, contacts: contacts, sender: sender}
}

func (e *testEnv) do(t *testing.T, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-Organization-ID", testOrg)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createCampaign(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/campaigns", "application/json",
		`{"title":"Launch","subject":"Hi {{name}}","blocks":[{"id":"b1","type":"button","content":{"text":"Go","url":"https://example.com"}}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c domain.Campaign
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	return c.ID
}

func (e *testEnv) addContacts(t *testing.T, emails ...string) {
	t.Helper()
	for _, em := range emails {
		_, _, err := e.contacts.Upsert(context.Background(), &domain.Contact{
			ID: "ct-" + em, OrganizationID: testOrg, Email: em, Status: domain.ContactActive,
		})
		require.NoError(t, err)
	}
}

// =============================================================================
// ORGANIZATION CONTEXT
// =============================================================================

func TestAPI_RequiresOrganization(t *testing.T) {
	env := setupTestHandlers(t)
	req := httptest.NewRequest(http.MethodGet, "/api/campaigns", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrgContextProvider_FallbackChain(t *testing.T) {
	p := NewOrgContextProvider(true, "dev-org")

	req := httptest.NewRequest(http.MethodGet, "/api/campaigns?org_id=from-query", nil)
	org, ok := p.ExtractOrgID(req)
	assert.True(t, ok)
	assert.Equal(t, "from-query", org)

	req.Header.Set("X-Organization-ID", "from-header")
	org, _ = p.ExtractOrgID(req)
	assert.Equal(t, "from-header", org)

	org, ok = p.ExtractOrgID(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, ok)
	assert.Equal(t, "dev-org", org)

	_, ok = NewOrgContextProvider(false, "dev-org").ExtractOrgID(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok, "default org only applies in dev mode")
}

// =============================================================================
// CAMPAIGNS
// =============================================================================

func TestAPI_CreateAndGetCampaign(t *testing.T) {
	env := setupTestHandlers(t)
	id := env.createCampaign(t)

	rec := env.do(t, http.MethodGet, "/api/campaigns/"+id, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"draft"`)

	rec = env.do(t, http.MethodGet, "/api/campaigns", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
}

func TestAPI_CreateValidation(t *testing.T) {
	env := setupTestHandlers(t)
	rec := env.do(t, http.MethodPost, "/api/campaigns", "application/json", `{"subject":"no title"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/campaigns", "application/json", `{"title":"T","subject":"S","blocks":[{"id":"x","type":"video"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown block type is a decode error")
}

func TestAPI_UnknownCampaign(t *testing.T) {
	env := setupTestHandlers(t)
	for _, path := range []string{"/api/campaigns/nope", "/api/campaigns/nope/stats", "/api/campaigns/nope/report.csv"} {
		rec := env.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestAPI_SendEmptyAudience(t *testing.T) {
	env := setupTestHandlers(t)
	id := env.createCampaign(t)

	rec := env.do(t, http.MethodPost, "/api/campaigns/"+id+"/send", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/campaigns/"+id+"/send?sync=true", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAPI_SendQueuesJob(t *testing.T) {
	env := setupTestHandlers(t)
	env.addContacts(t, "a@x.com", "b@x.com")
	id := env.createCampaign(t)

	rec := env.do(t, http.MethodPost, "/api/campaigns/"+id+"/send", "", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"recipients":2`)

	n, err := env.jobs.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAPI_SendSyncThenStats(t *testing.T) {
	env := setupTestHandlers(t)
	env.addContacts(t, "a@x.com", "b@x.com", "c@x.com")
	id := env.createCampaign(t)

	rec := env.do(t, http.MethodPost, "/api/campaigns/"+id+"/send?sync=true", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary domain.DispatchSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.Sent)
	assert.Len(t, env.sender.sent, 3)

	rec = env.do(t, http.MethodPost, "/api/campaigns/"+id+"/send?sync=true", "", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "sent campaigns are not dispatchable")

	rec = env.do(t, http.MethodPut, "/api/campaigns/"+id, "application/json", `{"title":"edited"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "sent campaigns are frozen")

	rec = env.do(t, http.MethodGet, "/api/campaigns/"+id+"/stats", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"sent"`)

	rec = env.do(t, http.MethodGet, "/api/campaigns/"+id+"/report.csv", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, analytics.CSVContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "campaign-"+id+".csv")
	assert.Contains(t, rec.Body.String(), "a@x.com")
}

func TestAPI_CancelDraft(t *testing.T) {
	env := setupTestHandlers(t)
	id := env.createCampaign(t)

	rec := env.do(t, http.MethodPost, "/api/campaigns/"+id+"/cancel", "", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/campaigns/"+id, "", "")
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)

	rec = env.do(t, http.MethodDelete, "/api/campaigns/"+id, "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPI_ScheduleInPast(t *testing.T) {
	env := setupTestHandlers(t)
	id := env.createCampaign(t)
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)

	rec := env.do(t, http.MethodPost, "/api/campaigns/"+id+"/schedule", "application/json", `{"scheduled_at":"`+past+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_PreviewAndTestSend(t *testing.T) {
	env := setupTestHandlers(t)
	id := env.createCampaign(t)

	rec := env.do(t, http.MethodGet, "/api/campaigns/"+id+"/preview", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.NotContains(t, rec.Body.String(), "/track/")

	rec = env.do(t, http.MethodPost, "/api/campaigns/"+id+"/test", "application/json", `{"email":"not an address"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/campaigns/"+id+"/test", "application/json", `{"email":"qa@x.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"qa@x.com"}, env.sender.sent)
}

func TestAPI_ArchiveWithoutStore(t *testing.T) {
	env := setupTestHandlers(t)
	id := env.createCampaign(t)
	rec := env.do(t, http.MethodPost, "/api/campaigns/"+id+"/report/archive", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// =============================================================================
// CONTACTS
// =============================================================================

func TestAPI_ImportCSVBody(t *testing.T) {
	env := setupTestHandlers(t)
	csv := "email,name,cargo,tags\nana@x.com,Ana,CTO,vip;beta\nbad-email,Bob,,\n"

	rec := env.do(t, http.MethodPost, "/api/contacts/import", "text/csv", csv)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res contact.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Created)
	assert.Len(t, res.Invalid, 1)

	rec = env.do(t, http.MethodGet, "/api/contacts?tag=vip", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ana@x.com")
}

func TestAPI_ImportFromS3WithoutStore(t *testing.T) {
	env := setupTestHandlers(t)
	rec := env.do(t, http.MethodPost, "/api/contacts/import", "application/json", `{"s3_key":"imports/a.csv"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/contacts/import", "application/json", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_UpsertContactValidation(t *testing.T) {
	env := setupTestHandlers(t)
	rec := env.do(t, http.MethodPost, "/api/contacts", "application/json", `{"email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(contact.UpsertInput{Email: "Zed@X.com", Name: "Zed"})
	rec = env.do(t, http.MethodPost, "/api/contacts", "application/json", buf.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"zed@x.com"`)
}

func TestHealth(t *testing.T) {
	env := setupTestHandlers(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queue"`)
}
