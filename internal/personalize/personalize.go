// Package personalize fills per-recipient placeholders such as {{name}}
// and {{primeiro_nome}} using the Liquid template language.
package personalize

import (
	"html"
	"log"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/announce/internal/domain"
)

// FallbackName is used when a contact has no name.
const FallbackName = "Colaborador"

// Vars are the values available to a campaign template.
type Vars struct {
	ContactID      string
	Email          string
	Name           string
	Company        string
	Role           string
	CampaignID     string
	BaseURL        string
	UnsubscribeURL string
}

// VarsFor builds the template values for one recipient.
func VarsFor(c *domain.Contact, campaignID, baseURL, unsubscribeURL string) Vars {
	return Vars{
		ContactID:      c.ID,
		Email:          c.Email,
		Name:           c.Name,
		Company:        c.Company,
		Role:           c.Role,
		CampaignID:     campaignID,
		BaseURL:        strings.TrimRight(baseURL, "/"),
		UnsubscribeURL: unsubscribeURL,
	}
}

// FirstName is the first space-separated token of the display name.
func (v Vars) FirstName() string {
	fields := strings.Fields(v.displayName())
	if len(fields) == 0 {
		return FallbackName
	}
	return fields[0]
}

func (v Vars) displayName() string {
	if n := strings.TrimSpace(v.Name); n != "" {
		return n
	}
	return FallbackName
}

// Bindings returns the Liquid context. Recipient values are HTML-escaped
// when escape is set; identifiers and URLs are emitted as-is.
func (v Vars) Bindings(escape bool) map[string]any {
	enc := func(s string) string { return s }
	if escape {
		enc = html.EscapeString
	}
	return map[string]any{
		"name":            enc(v.displayName()),
		"primeiro_nome":   enc(v.FirstName()),
		"first_name":      enc(v.FirstName()),
		"email":           enc(v.Email),
		"company":         enc(v.Company),
		"cargo":           enc(v.Role),
		"contact_id":      v.ContactID,
		"campaign_id":     v.CampaignID,
		"base_url":        v.BaseURL,
		"unsubscribe_url": v.UnsubscribeURL,
	}
}

// Personalizer renders templates with parsed-template caching. It is safe
// for concurrent use.
type Personalizer struct {
	engine *liquid.Engine
	cache  sync.Map // template source -> *liquid.Template
}

// New creates a Personalizer.
func New() *Personalizer {
	return &Personalizer{engine: liquid.NewEngine()}
}

// HTML personalizes an HTML body. Values are escaped.
func (p *Personalizer) HTML(tpl string, v Vars) string {
	return p.render(tpl, v.Bindings(true))
}

// Text personalizes a plain-text field such as the subject.
func (p *Personalizer) Text(tpl string, v Vars) string {
	return p.render(tpl, v.Bindings(false))
}

func (p *Personalizer) render(src string, bindings map[string]any) string {
	if !strings.Contains(src, "{{") && !strings.Contains(src, "{%") {
		return src
	}

	var tpl *liquid.Template
	if cached, ok := p.cache.Load(src); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := p.engine.ParseString(src)
		if err != nil {
			log.Printf("[personalize] parse error, using plain substitution: %v", err)
			return substitute(src, bindings)
		}
		p.cache.Store(src, parsed)
		tpl = parsed
	}

	out, err := tpl.RenderString(bindings)
	if err != nil {
		log.Printf("[personalize] render error, using plain substitution: %v", err)
		return substitute(src, bindings)
	}
	return out
}

// substitute replaces the known {{key}} placeholders literally. It is the
// fallback for documents Liquid cannot parse.
func substitute(src string, bindings map[string]any) string {
	pairs := make([]string, 0, len(bindings)*4)
	for k, v := range bindings {
		s, _ := v.(string)
		pairs = append(pairs, "{{"+k+"}}", s, "{{ "+k+" }}", s)
	}
	return strings.NewReplacer(pairs...).Replace(src)
}
