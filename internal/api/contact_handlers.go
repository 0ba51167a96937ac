package api

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/announce/internal/pkg/httputil"
	"github.com/ignite/announce/internal/service/contact"
	"github.com/ignite/announce/internal/storage"
)

// MaxImportBytes caps a CSV import body.
const MaxImportBytes = 32 << 20

// HandleListContacts lists contacts ordered by email.
//
//	GET /api/contacts?status=&tag=&search=&limit=&offset=
func (h *Handlers) HandleListContacts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	q := r.URL.Query()
	items, total, err := h.contacts.List(r.Context(), orgID(r), contact.ListFilter{
		Status: q.Get("status"),
		Tag:    q.Get("tag"),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, listResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}

// HandleUpsertContact creates or updates a contact keyed on email.
//
//	POST /api/contacts
func (h *Handlers) HandleUpsertContact(w http.ResponseWriter, r *http.Request) {
	var in contact.UpsertInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.contacts.Upsert(r.Context(), orgID(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, c)
}

// HandleGetContact returns one contact.
//
//	GET /api/contacts/{id}
func (h *Handlers) HandleGetContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.contacts.Get(r.Context(), orgID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, c)
}

type importRequest struct {
	S3Key string `json:"s3_key"`
}

// HandleImportContacts imports a CSV sent as the body, or fetched from
// object storage when the body is JSON {"s3_key": "..."}.
//
//	POST /api/contacts/import
func (h *Handlers) HandleImportContacts(w http.ResponseWriter, r *http.Request) {
	body, err := storage.ReadAllLimited(r.Body, MaxImportBytes)
	if err != nil {
		httputil.Error(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	var res *contact.ImportResult
	if isJSON(r) {
		var req importRequest
		if err := json.Unmarshal(body, &req); err != nil || strings.TrimSpace(req.S3Key) == "" {
			httputil.BadRequest(w, `expected {"s3_key": "..."}`)
			return
		}
		res, err = h.contacts.ImportFromS3(r.Context(), orgID(r), req.S3Key)
	} else {
		res, err = h.contacts.ImportCSV(r.Context(), orgID(r), bytes.NewReader(body))
	}
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, res)
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
