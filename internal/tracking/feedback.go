package tracking

import (
	"bytes"
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ignite/announce/internal/pkg/httputil"
	"github.com/ignite/announce/internal/service/ingest"
)

const (
	maxCommentBody = 64 << 10

	pageHead = `<!DOCTYPE html><html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1.0">` +
		`<title>{{.Org}}</title><style>` +
		`body{margin:0;padding:40px 16px;background:#f4f4f7;font-family:sans-serif;color:#333;text-align:center}` +
		`.card{max-width:480px;margin:0 auto;background:#fff;border-radius:8px;padding:32px;box-shadow:0 1px 3px rgba(0,0,0,.1)}` +
		`.score{display:inline-block;width:56px;height:56px;line-height:56px;border-radius:50%;background:#8257e6;color:#fff;font-size:24px;font-weight:bold}` +
		`textarea{width:100%;box-sizing:border-box;min-height:100px;margin:16px 0;padding:8px;border:1px solid #e1e1e6;border-radius:4px;font-family:inherit}` +
		`button{background:#8257e6;color:#fff;border:0;border-radius:6px;padding:10px 24px;font-size:15px;cursor:pointer}` +
		`</style></head><body><div class="card">`
	pageTail = `</div></body></html>`
)

func page(name, body string) *template.Template {
	return template.Must(template.New(name).Parse(pageHead + body + pageTail))
}

var (
	thanksPage = page("thanks", `<p class="score">{{.Score}}</p>
<h1>Thank you for your feedback!</h1>
<p>Your answer helps {{.Org}} improve its communication.</p>
<form method="post" action="{{.CommentAction}}">
<label for="comment">Anything you would like to add?</label>
<textarea id="comment" name="comment" maxlength="2000"></textarea>
<button type="submit">Send comment</button>
</form>`)

	commentPage = page("comment", `<h1>Comment received</h1>
<p>Thank you for taking the time to tell us more.</p>`)

	invalidPage = page("invalid", `<h1>Invalid link</h1>
<p>This feedback link is not valid. Please use the buttons in the original email.</p>`)
)

type pageData struct {
	Org           string
	Score         int
	CommentAction string
}

func (h *Handler) render(w http.ResponseWriter, status int, t *template.Template, data pageData) {
	data.Org = h.cfg.OrganizationName
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		log.Printf("[tracking] render %s page: %v", t.Name(), err)
		httputil.HTML(w, http.StatusInternalServerError, "<h1>Something went wrong</h1>")
		return
	}
	httputil.HTML(w, status, buf.String())
}

// HandleFeedback stores an NPS score from an email link and shows the
// comment form.
func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	campaignID := trimParam(r, "campaignId")
	contactID := trimParam(r, "contactId")
	score, err := strconv.Atoi(trimParam(r, "score"))
	if err != nil || campaignID == "" || contactID == "" {
		h.render(w, http.StatusBadRequest, invalidPage, pageData{})
		return
	}
	err = h.ingest.SubmitFeedback(r.Context(), campaignID, contactID, score)
	if errors.Is(err, ingest.ErrInvalidScore) {
		h.render(w, http.StatusBadRequest, invalidPage, pageData{})
		return
	}
	// A storage failure still thanks the recipient.
	if err != nil {
		log.Printf("[tracking] feedback %s/%s: %v", campaignID, contactID, err)
	}
	h.render(w, http.StatusOK, thanksPage, pageData{
		Score:         score,
		CommentAction: "/feedback/" + url.PathEscape(campaignID) + "/" + url.PathEscape(contactID) + "/comment",
	})
}

// HandleFeedbackComment stores the optional comment of a response.
func (h *Handler) HandleFeedbackComment(w http.ResponseWriter, r *http.Request) {
	campaignID := trimParam(r, "campaignId")
	contactID := trimParam(r, "contactId")
	r.Body = http.MaxBytesReader(w, r.Body, maxCommentBody)
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, invalidPage, pageData{})
		return
	}
	if err := h.ingest.AddFeedbackComment(r.Context(), campaignID, contactID, r.PostForm.Get("comment")); err != nil {
		log.Printf("[tracking] feedback comment %s/%s: %v", campaignID, contactID, err)
	}
	h.render(w, http.StatusOK, commentPage, pageData{})
}
