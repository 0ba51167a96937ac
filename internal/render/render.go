// Package render turns a campaign block document into email-safe HTML.
//
// Output is table-based with inline styles, the subset of HTML that mail
// clients render consistently. Rendering is pure: the same blocks and
// options always produce byte-identical HTML. Link and open tracking are
// applied later by the linktrack package.
package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/ignite/announce/internal/domain"
)

// FeedbackContext fills the NPS survey links. When nil, the links carry
// {{base_url}}, {{campaign_id}} and {{contact_id}} placeholders for the
// personalizer.
type FeedbackContext struct {
	BaseURL    string
	CampaignID string
	ContactID  string
}

// Footer is the organization footer appended in final mode.
type Footer struct {
	OrganizationName string
	CreditText       string
	UnsubscribeURL   string
	UnsubscribeText  string
}

// Labels are the fixed strings emitted inside blocks.
type Labels struct {
	FollowUs  string
	NPSPrompt string
}

// Options control a render.
type Options struct {
	// IncludeFooter selects the complete document with preheader and
	// footer. When false only the block table is returned.
	IncludeFooter bool
	Feedback      *FeedbackContext
	Footer        Footer
	Labels        Labels
}

// DefaultFooter is used for zero-valued Footer fields.
var DefaultFooter = Footer{
	OrganizationName: "Announce",
	CreditText:       "Produced and sent by the internal communications team of",
	UnsubscribeURL:   "{{unsubscribe_url}}",
	UnsubscribeText:  "I no longer want to receive this type of email",
}

// DefaultLabels is used for zero-valued Labels fields.
var DefaultLabels = Labels{
	FollowUs:  "Follow us",
	NPSPrompt: "From 0 to 10, how likely are you to recommend our team?",
}

var npsEmojis = [11]string{"😞", "🙁", "😐", "🙂", "😊", "😄", "🤩", "😍", "🔥", "🌟", "💯"}

const npsButtonStyle = "display:inline-block;width:32px;height:32px;line-height:32px;text-align:center;margin:3px;background:#8257e6;color:#fff;text-decoration:none;border-radius:4px;font-weight:bold;font-family:sans-serif;font-size:14px;"

// Render produces the HTML for blocks in order.
func Render(blocks []domain.Block, subject, previewText string, opts Options) (string, error) {
	opts = opts.withDefaults()

	var body strings.Builder
	for i := range blocks {
		if err := writeBlock(&body, &blocks[i], opts); err != nil {
			return "", err
		}
	}

	if !opts.IncludeFooter {
		return `<table width="100%" cellpadding="0" cellspacing="0" border="0">` + body.String() + `</table>`, nil
	}

	var doc strings.Builder
	doc.Grow(body.Len() + 2048)
	doc.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1.0">`)
	fmt.Fprintf(&doc, `<title>%s</title></head>`, html.EscapeString(subject))
	doc.WriteString(`<body style="margin: 0; padding: 0; background-color: #f4f4f7;">`)
	doc.WriteString(`<div style="display: none; max-height: 0px; overflow: hidden;">`)
	doc.WriteString(html.EscapeString(previewText))
	doc.WriteString(strings.Repeat("&nbsp;&zwnj;", 5))
	doc.WriteString(`</div>`)
	doc.WriteString(`<table width="100%" cellpadding="0" cellspacing="0" border="0" style="background-color: #f4f4f7;"><tr><td align="center" style="padding: 20px 0;">`)
	doc.WriteString(`<table width="600" cellpadding="0" cellspacing="0" border="0" style="background-color: #ffffff; max-width: 600px; width: 100%; box-shadow: 0 1px 3px rgba(0,0,0,0.1);">`)
	doc.WriteString(body.String())
	writeFooter(&doc, opts.Footer)
	doc.WriteString(`</table></td></tr></table></body></html>`)
	return doc.String(), nil
}

func (o Options) withDefaults() Options {
	if o.Footer.OrganizationName == "" {
		o.Footer.OrganizationName = DefaultFooter.OrganizationName
	}
	if o.Footer.CreditText == "" {
		o.Footer.CreditText = DefaultFooter.CreditText
	}
	if o.Footer.UnsubscribeURL == "" {
		o.Footer.UnsubscribeURL = DefaultFooter.UnsubscribeURL
	}
	if o.Footer.UnsubscribeText == "" {
		o.Footer.UnsubscribeText = DefaultFooter.UnsubscribeText
	}
	if o.Labels.FollowUs == "" {
		o.Labels.FollowUs = DefaultLabels.FollowUs
	}
	if o.Labels.NPSPrompt == "" {
		o.Labels.NPSPrompt = DefaultLabels.NPSPrompt
	}
	return o
}

func writeFooter(b *strings.Builder, f Footer) {
	b.WriteString(`<tr><td align="center" style="padding: 30px; background-color: #f4f4f7; color: #888; font-family: sans-serif; font-size: 12px; border-top: 1px solid #e1e1e6;">`)
	fmt.Fprintf(b, `<p style="margin: 0;">%s <strong>%s</strong></p>`, html.EscapeString(f.CreditText), html.EscapeString(f.OrganizationName))
	fmt.Fprintf(b, `<p style="margin: 5px 0 0 0;"><a href="%s" style="color: #888; text-decoration: underline;">%s</a></p>`, attr(f.UnsubscribeURL), html.EscapeString(f.UnsubscribeText))
	b.WriteString(`</td></tr>`)
}

// attr escapes a value for a double-quoted attribute. Template
// placeholders survive untouched.
func attr(s string) string {
	return html.EscapeString(s)
}
