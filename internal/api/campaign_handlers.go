package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/pkg/httputil"
	"github.com/ignite/announce/internal/queue"
	"github.com/ignite/announce/internal/service/campaign"
	"github.com/ignite/announce/internal/service/dispatch"
)

// HandleListCampaigns lists the organization's campaigns.
//
//	GET /api/campaigns?status=&search=&limit=&offset=
func (h *Handlers) HandleListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	f := campaign.ListFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	}
	items, total, err := h.campaigns.List(r.Context(), orgID(r), f)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, listResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}

// HandleCreateCampaign creates a draft.
//
//	POST /api/campaigns
func (h *Handlers) HandleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var in campaign.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.campaigns.Create(r.Context(), orgID(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, c)
}

// HandleGetCampaign returns one campaign.
//
//	GET /api/campaigns/{id}
func (h *Handlers) HandleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), orgID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, c)
}

type updateCampaignRequest struct {
	Title        *string              `json:"title"`
	Subject      *string              `json:"subject"`
	PreviewText  *string              `json:"preview_text"`
	FromName     *string              `json:"from_name"`
	FromEmail    *string              `json:"from_email"`
	Blocks       *[]domain.Block      `json:"blocks"`
	AudienceType *domain.AudienceType `json:"audience_type"`
	Tags         *[]string            `json:"tags"`
}

// HandleUpdateCampaign applies a partial update and returns the result.
//
//	PUT /api/campaigns/{id}
func (h *Handlers) HandleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var req updateCampaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	err := h.campaigns.Update(r.Context(), orgID(r), id, campaign.UpdateFields{
		Title:        req.Title,
		Subject:      req.Subject,
		PreviewText:  req.PreviewText,
		FromName:     req.FromName,
		FromEmail:    req.FromEmail,
		Blocks:       req.Blocks,
		AudienceType: req.AudienceType,
		Tags:         req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.HandleGetCampaign(w, r)
}

// HandleDeleteCampaign removes a draft or cancelled campaign.
//
//	DELETE /api/campaigns/{id}
func (h *Handlers) HandleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Delete(r.Context(), orgID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}

// HandleSendCampaign queues a dispatch, or runs it in the request with
// ?sync=true. A dispatch with failed recipients still answers 200 with the
// summary.
//
//	POST /api/campaigns/{id}/send?sync=&resend=
func (h *Handlers) HandleSendCampaign(w http.ResponseWriter, r *http.Request) {
	org, id := orgID(r), chi.URLParam(r, "id")
	resend := queryBool(r, "resend")

	if !queryBool(r, "sync") {
		n, err := h.campaigns.Send(r.Context(), org, id, resend)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.Accepted(w, map[string]interface{}{
			"status":      "queued",
			"campaign_id": id,
			"recipients":  n,
		})
		return
	}

	summary, err := h.dispatchSync(r.Context(), org, id, resend)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, summary)
}

// dispatchSync holds the same lock as the workers so an in-request run
// never overlaps a queued one.
func (h *Handlers) dispatchSync(ctx context.Context, org, id string, resend bool) (*domain.DispatchSummary, error) {
	if h.locks != nil {
		lock := h.locks(queue.LockKey(id))
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errDispatchInProgress
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.Printf("[API] release lock for %s: %v", id, err)
			}
		}()
	}
	return h.dispatch.Dispatch(ctx, org, id, dispatch.Options{Resend: resend})
}

type scheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

// HandleScheduleCampaign sets a future send time.
//
//	POST /api/campaigns/{id}/schedule
func (h *Handlers) HandleScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.campaigns.Schedule(r.Context(), orgID(r), chi.URLParam(r, "id"), req.ScheduledAt); err != nil {
		writeError(w, err)
		return
	}
	h.HandleGetCampaign(w, r)
}

// HandleCancelCampaign cancels a campaign or requests that its running
// dispatch stop.
//
//	POST /api/campaigns/{id}/cancel
func (h *Handlers) HandleCancelCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.campaigns.Cancel(r.Context(), orgID(r), id); err != nil {
		writeError(w, err)
		return
	}
	httputil.Accepted(w, map[string]string{"status": "cancelling", "campaign_id": id})
}

type testSendRequest struct {
	Email string `json:"email"`
}

// HandleSendTest sends one untracked test message.
//
//	POST /api/campaigns/{id}/test
func (h *Handlers) HandleSendTest(w http.ResponseWriter, r *http.Request) {
	var req testSendRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	res, err := h.dispatch.SendTest(r.Context(), orgID(r), chi.URLParam(r, "id"), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, res)
}

// HandlePreviewCampaign renders the campaign without tracking.
//
//	GET /api/campaigns/{id}/preview?fragment=
func (h *Handlers) HandlePreviewCampaign(w http.ResponseWriter, r *http.Request) {
	body, err := h.dispatch.Preview(r.Context(), orgID(r), chi.URLParam(r, "id"), queryBool(r, "fragment"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.HTML(w, http.StatusOK, body)
}
