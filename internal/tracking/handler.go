// Package tracking serves the public endpoints embedded in campaign email:
// the open pixel, click redirects, NPS feedback pages and the provider
// webhook.
package tracking

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/metrics"
	"github.com/ignite/announce/internal/pkg/httputil"
	"github.com/ignite/announce/internal/service/ingest"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

var pixelLength = strconv.Itoa(len(pixelGIF))

// MaxWebhookBytes caps provider webhook bodies.
const MaxWebhookBytes = 1 << 20

// Ingestor records tracking signals. It is implemented by ingest.Service.
type Ingestor interface {
	IngestWebhook(ctx context.Context, body []byte) error
	RecordOpen(ctx context.Context, campaignID, email string, meta domain.EventMetadata)
	RecordClick(ctx context.Context, code, email string, meta domain.EventMetadata) (string, bool)
	SubmitFeedback(ctx context.Context, campaignID, contactID string, score int) error
	AddFeedbackComment(ctx context.Context, campaignID, contactID, comment string) error
}

// Config holds the handler settings.
type Config struct {
	// FallbackURL receives clicks on unknown codes.
	FallbackURL string
	// WebhookSecret enables signature checks when set.
	WebhookSecret string
	// OrganizationName is shown on feedback pages.
	OrganizationName string
}

type Handler struct {
	ingest   Ingestor
	cfg      Config
	verifier *Verifier
	metrics  http.Handler
}

// NewHandler creates the tracking handler. metricsHandler may be nil.
func NewHandler(ing Ingestor, cfg Config, metricsHandler http.Handler) *Handler {
	h := &Handler{ingest: ing, cfg: cfg, metrics: metricsHandler}
	if cfg.WebhookSecret != "" {
		h.verifier = NewVerifier(cfg.WebhookSecret)
	}
	if h.cfg.OrganizationName == "" {
		h.cfg.OrganizationName = "Announce"
	}
	return h
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.HTTPMiddleware)

	r.Get("/track/open/{campaignId}", h.HandleOpen)
	r.Get("/track/click/{code}", h.HandleClick)
	r.Post("/track/webhook", h.HandleWebhook)
	r.Get("/feedback/{campaignId}/{contactId}/{score}", h.HandleFeedback)
	r.Post("/feedback/{campaignId}/{contactId}/comment", h.HandleFeedbackComment)
	r.Get("/health", h.HandleHealth)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}
	return r
}

// HandleOpen records an open and always serves the pixel.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignId")
	if email := r.URL.Query().Get("email"); email != "" {
		h.ingest.RecordOpen(r.Context(), campaignID, email, requestMeta(r))
	}
	h.servePixel(w)
}

// HandleClick records a click and always redirects, to the fallback when
// the code is unknown.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	target, ok := h.ingest.RecordClick(r.Context(), code, r.URL.Query().Get("email"), requestMeta(r))
	if !ok || target == "" {
		target = h.cfg.FallbackURL
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleWebhook accepts provider event deliveries. Only malformed JSON and
// bad signatures are rejected; everything else is acknowledged.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBytes))
	if err != nil {
		httputil.BadRequest(w, "invalid webhook")
		return
	}
	if h.verifier != nil {
		if err := h.verifier.Verify(r.Header, body); err != nil {
			log.Printf("[tracking] webhook rejected: %v", err)
			metrics.IncWebhookEvent("unauthorized")
			httputil.Error(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}
	if err := h.ingest.IngestWebhook(r.Context(), body); err != nil {
		if errors.Is(err, ingest.ErrMalformedPayload) {
			httputil.BadRequest(w, "invalid webhook")
			return
		}
		log.Printf("[tracking] webhook ingest: %v", err)
	}
	httputil.OK(w, map[string]bool{"received": true})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Content-Length", pixelLength)
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(pixelGIF)
}

func trimParam(r *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(r, key))
}
