package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/announce/internal/pkg/httputil"
	"github.com/ignite/announce/internal/service/analytics"
)

// HandleCampaignStats returns the campaign header and its aggregated
// metrics.
//
//	GET /api/campaigns/{id}/stats
func (h *Handlers) HandleCampaignStats(w http.ResponseWriter, r *http.Request) {
	header, m, err := h.analytics.Stats(r.Context(), orgID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"campaign": header, "metrics": m})
}

// HandleCampaignReport returns the full report as JSON.
//
//	GET /api/campaigns/{id}/report
func (h *Handlers) HandleCampaignReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.analytics.Report(r.Context(), orgID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, rep)
}

// HandleReportXLSX downloads the report workbook.
//
//	GET /api/campaigns/{id}/report.xlsx
func (h *Handlers) HandleReportXLSX(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, "xlsx", analytics.XLSXContentType, analytics.XLSX)
}

// HandleReportCSV downloads the per-recipient status list.
//
//	GET /api/campaigns/{id}/report.csv
func (h *Handlers) HandleReportCSV(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, "csv", analytics.CSVContentType, analytics.CSV)
}

func (h *Handlers) serveExport(w http.ResponseWriter, r *http.Request, ext, contentType string, encode func(*analytics.Report) ([]byte, error)) {
	id := chi.URLParam(r, "id")
	rep, err := h.analytics.Report(r.Context(), orgID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := encode(rep)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="campaign-%s.%s"`, id, ext))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// HandleArchiveReport stores the workbook in object storage.
//
//	POST /api/campaigns/{id}/report/archive
func (h *Handlers) HandleArchiveReport(w http.ResponseWriter, r *http.Request) {
	url, err := h.analytics.Archive(r.Context(), orgID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, map[string]string{"url": url})
}

// HandleCampaignFeedback lists NPS responses with their summary.
//
//	GET /api/campaigns/{id}/feedback
func (h *Handlers) HandleCampaignFeedback(w http.ResponseWriter, r *http.Request) {
	responses, summary, err := h.analytics.Feedback(r.Context(), orgID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"responses": responses, "summary": summary})
}
