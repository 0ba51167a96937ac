// Package linktrack rewrites campaign HTML for click and open tracking.
//
// Every trackable anchor is pointed at {baseURL}/track/click/{code} and a
// 1x1 open pixel is appended to the body. Codes are stable per
// (campaign, URL) so repeated renders and different recipients share one
// TrackedLink row.
package linktrack

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/ignite/announce/internal/domain"
)

// OriginalURLAttr keeps the pre-rewrite href on the anchor.
const OriginalURLAttr = "data-original-url"

// LinkStore persists tracked links with insert-or-ignore semantics.
type LinkStore interface {
	SaveLinks(ctx context.Context, links []domain.TrackedLink) error
}

// Tracker injects tracking into rendered HTML. It holds no mutable state
// and is safe for concurrent use.
type Tracker struct {
	baseURL   string
	namespace uuid.UUID
}

// New creates a Tracker. The secret seeds the code namespace so codes
// cannot be derived from a campaign id and URL alone.
func New(baseURL, secret string) *Tracker {
	return &Tracker{
		baseURL:   strings.TrimRight(baseURL, "/"),
		namespace: uuid.NewSHA1(uuid.NameSpaceURL, []byte("announce/linktrack/"+secret)),
	}
}

// Code returns the tracking code for a link of a campaign.
func (t *Tracker) Code(campaignID, originalURL string) string {
	id := uuid.NewSHA1(t.namespace, []byte(campaignID+"\x00"+originalURL))
	return strings.ReplaceAll(id.String(), "-", "")
}

// ClickURL is the redirect URL that replaces an anchor's href.
func (t *Tracker) ClickURL(code, email string) string {
	return fmt.Sprintf("%s/track/click/%s?email=%s", t.baseURL, code, url.QueryEscape(email))
}

// PixelURL is the open-tracking image URL.
func (t *Tracker) PixelURL(campaignID, email string) string {
	return fmt.Sprintf("%s/track/open/%s?email=%s", t.baseURL, url.PathEscape(campaignID), url.QueryEscape(email))
}

// Track rewrites the anchors of doc and appends the open pixel. It returns
// the rewritten HTML and one TrackedLink per distinct original URL, in
// document order.
func (t *Tracker) Track(doc, campaignID, email string) (string, []domain.TrackedLink, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return "", nil, fmt.Errorf("parse html: %w", err)
	}

	var links []domain.TrackedLink
	seen := make(map[string]bool)

	d.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if !t.trackable(href) {
			return
		}
		code := t.Code(campaignID, href)
		s.SetAttr(OriginalURLAttr, href)
		s.SetAttr("href", t.ClickURL(code, email))
		if !seen[href] {
			seen[href] = true
			links = append(links, domain.TrackedLink{CampaignID: campaignID, OriginalURL: href, Code: code})
		}
	})

	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none;border:0;width:1px;height:1px;" />`,
		escapeAttr(t.PixelURL(campaignID, email)))
	d.Find("body").AppendHtml(pixel)

	out, err := d.Html()
	if err != nil {
		return "", nil, fmt.Errorf("render html: %w", err)
	}
	return out, links, nil
}

func (t *Tracker) trackable(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return false
	}
	// Already tracked. Feedback links are tracked like any other anchor so
	// score clicks show up in click analytics.
	return !strings.HasPrefix(href, t.baseURL+"/track/")
}

// Persist stores links, ignoring links already known.
func Persist(ctx context.Context, store LinkStore, links []domain.TrackedLink) error {
	if len(links) == 0 {
		return nil
	}
	if err := store.SaveLinks(ctx, links); err != nil {
		return fmt.Errorf("save tracked links: %w", err)
	}
	return nil
}

func escapeAttr(s string) string {
	return strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;").Replace(s)
}
