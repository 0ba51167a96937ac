package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/ignite/announce/internal/pkg/httputil"
)

// OrgContextKey is the key for storing the organization ID in a request
// context.
type OrgContextKey struct{}

// OrgContextProvider resolves the organization a request acts for.
type OrgContextProvider struct {
	defaultOrgID   string
	devModeEnabled bool
}

// NewOrgContextProvider creates a provider. The default organization is
// only used in dev mode.
func NewOrgContextProvider(devMode bool, defaultOrgID string) *OrgContextProvider {
	return &OrgContextProvider{defaultOrgID: strings.TrimSpace(defaultOrgID), devModeEnabled: devMode}
}

// ExtractOrgID extracts the organization ID with the fallback chain
// X-Organization-ID header, org_id query parameter, dev mode default.
func (p *OrgContextProvider) ExtractOrgID(r *http.Request) (string, bool) {
	if orgID, ok := r.Context().Value(OrgContextKey{}).(string); ok && orgID != "" {
		return orgID, true
	}
	if orgID := strings.TrimSpace(r.Header.Get("X-Organization-ID")); orgID != "" {
		return orgID, true
	}
	if orgID := strings.TrimSpace(r.URL.Query().Get("org_id")); orgID != "" {
		return orgID, true
	}
	if p.devModeEnabled && p.defaultOrgID != "" {
		return p.defaultOrgID, true
	}
	return "", false
}

// RequireOrgMiddleware stores the organization in the context and rejects
// requests without one.
func (p *OrgContextProvider) RequireOrgMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := p.ExtractOrgID(r)
		if !ok {
			httputil.Error(w, http.StatusUnauthorized, "organization context required")
			return
		}
		ctx := context.WithValue(r.Context(), OrgContextKey{}, orgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func orgID(r *http.Request) string {
	id, _ := r.Context().Value(OrgContextKey{}).(string)
	return id
}
