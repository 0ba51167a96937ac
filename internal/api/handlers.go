// Package api is the organization-scoped admin HTTP API: campaign and
// contact management, dispatch, previews and reports.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ignite/announce/internal/pkg/distlock"
	"github.com/ignite/announce/internal/pkg/httputil"
	"github.com/ignite/announce/internal/sending"
	"github.com/ignite/announce/internal/service/analytics"
	"github.com/ignite/announce/internal/service/campaign"
	"github.com/ignite/announce/internal/service/contact"
	"github.com/ignite/announce/internal/service/dispatch"
)

// Handlers holds the services behind the admin routes.
type Handlers struct {
	campaigns *campaign.Service
	contacts  *contact.Service
	dispatch  *dispatch.Service
	analytics *analytics.Service
	locks     distlock.Factory
}

// Deps are the collaborators of the admin API. Locks may be nil, which
// disables locking of synchronous dispatches.
type Deps struct {
	Campaigns *campaign.Service
	Contacts  *contact.Service
	Dispatch  *dispatch.Service
	Analytics *analytics.Service
	Locks     distlock.Factory
}

// NewHandlers creates the admin handlers.
func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		campaigns: d.Campaigns,
		contacts:  d.Contacts,
		dispatch:  d.Dispatch,
		analytics: d.Analytics,
		locks:     d.Locks,
	}
}

// writeError maps service errors to HTTP statuses. Anything unrecognized
// is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, err error) {
	var perr *sending.ProviderError
	switch {
	case errors.Is(err, campaign.ErrNotFound), errors.Is(err, contact.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, campaign.ErrNotDispatchable),
		errors.Is(err, campaign.ErrInvalidTransition),
		errors.Is(err, campaign.ErrNotEditable),
		errors.Is(err, campaign.ErrNotDeletable),
		errors.Is(err, errDispatchInProgress):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, campaign.ErrEmptyAudience):
		httputil.UnprocessableEntity(w, err.Error())
	case errors.Is(err, campaign.ErrInvalidInput),
		errors.Is(err, campaign.ErrInvalidSchedule),
		errors.Is(err, contact.ErrInvalidInput),
		errors.Is(err, contact.ErrInvalidEmail),
		errors.Is(err, contact.ErrMissingEmail),
		errors.Is(err, dispatch.ErrInvalidRecipient):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, analytics.ErrArchiveDisabled), errors.Is(err, contact.ErrNoObjectStore):
		httputil.Error(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &perr):
		httputil.Error(w, http.StatusBadGateway, perr.Error())
	default:
		httputil.InternalError(w, err)
	}
}

var errDispatchInProgress = errors.New("campaign dispatch already in progress")

// pagination reads limit and offset query parameters; invalid values are
// ignored.
func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// listResponse is the envelope of paginated lists.
type listResponse struct {
	Items  any `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
