package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/ignite/announce/internal/domain"
)

func writeBlock(b *strings.Builder, blk *domain.Block, opts Options) error {
	s := blk.Style
	switch c := blk.Content.(type) {
	case domain.HeaderContent:
		writeHeader(b, c, s)
	case domain.TextContent:
		writeText(b, c, s)
	case domain.ImageContent:
		writeImage(b, c, s)
	case domain.ImageTextContent:
		writeImageText(b, c, s)
	case domain.ButtonContent:
		writeButton(b, c, s)
	case domain.SpacerContent:
		writeSpacer(b, s)
	case domain.SocialContent:
		writeSocial(b, c, s, opts.Labels.FollowUs)
	case domain.NPSContent:
		writeNPS(b, c, s, opts)
	default:
		return fmt.Errorf("render: unsupported block %q (%T)", blk.ID, blk.Content)
	}
	return nil
}

// cssDecl renders " prop: value;", or nothing for an unset value.
func cssDecl(prop, value string) string {
	if value == "" {
		return ""
	}
	return " " + prop + ": " + attr(value) + ";"
}

// openCell starts the row shared by most variants.
func openCell(b *strings.Builder, align string, s domain.Style) {
	fmt.Fprintf(b, `<tr><td align="%s" style="padding: %dpx;%s">`, attr(align), s.Padding, cssDecl("background-color", s.BackgroundColor))
}

func closeCell(b *strings.Builder) {
	b.WriteString(`</td></tr>`)
}

func linked(href, inner string) string {
	if href == "" {
		return inner
	}
	return fmt.Sprintf(`<a href="%s" target="_blank" style="text-decoration:none;">%s</a>`, attr(href), inner)
}

func writeHeader(b *strings.Builder, c domain.HeaderContent, s domain.Style) {
	var logo string
	if c.ImageURL != "" {
		logo = fmt.Sprintf(`<img src="%s" alt="Logo" style="max-width: 200px; height: auto; border: 0; display: block;">`, attr(c.ImageURL))
	} else {
		logo = fmt.Sprintf(`<h2 style="margin: 0;%s font-family: sans-serif;">LOGO</h2>`, cssDecl("color", s.Color))
	}
	openCell(b, s.Align, s)
	b.WriteString(linked(c.URL, logo))
	closeCell(b)
}

// Text is editor output and is emitted verbatim. Plain text keeps its
// line breaks.
func writeText(b *strings.Builder, c domain.TextContent, s domain.Style) {
	txt := c.Text
	if !strings.Contains(txt, "<") {
		txt = strings.ReplaceAll(txt, "\n", "<br/>")
	}
	family := s.FontFamily
	if family == "" {
		family = "sans-serif"
	}
	openCell(b, s.Align, s)
	fmt.Fprintf(b, `<div style="font-family: %s; font-size: %dpx;%s line-height: 1.6;">%s</div>`, attr(family), s.FontSize, cssDecl("color", s.Color), txt)
	closeCell(b)
}

func writeImage(b *strings.Builder, c domain.ImageContent, s domain.Style) {
	width := s.Width
	if width == "" {
		width = "100%"
	}
	img := fmt.Sprintf(`<img src="%s" alt="Image" style="max-width: 100%%; width: %s; border-radius: %dpx; display: block; margin: 0 auto;">`, attr(c.URL), attr(width), s.BorderRadius)
	openCell(b, s.Align, s)
	b.WriteString(linked(c.Link, img))
	closeCell(b)
}

func writeImageText(b *strings.Builder, c domain.ImageTextContent, s domain.Style) {
	fmt.Fprintf(b, `<tr><td style="padding: %dpx;%s">`, s.Padding, cssDecl("background-color", s.BackgroundColor))
	b.WriteString(`<table width="100%" cellpadding="0" cellspacing="0" border="0"><tr>`)
	fmt.Fprintf(b, `<td width="40%%" valign="middle" style="padding-right: 15px;"><img src="%s" style="width: 100%%; border-radius: 4px; display: block;" /></td>`, attr(c.URL))
	fmt.Fprintf(b, `<td width="60%%" valign="middle" style="font-family: sans-serif; font-size: 14px;%s line-height: 1.5;">`, cssDecl("color", s.Color))
	fmt.Fprintf(b, `<strong style="font-size: 16px; display:block; margin-bottom:5px;">%s</strong>%s</td>`, html.EscapeString(c.Title), c.Text)
	b.WriteString(`</tr></table>`)
	closeCell(b)
}

func writeButton(b *strings.Builder, c domain.ButtonContent, s domain.Style) {
	openCell(b, s.Align, s)
	fmt.Fprintf(b, `<a href="%s" target="_blank" style="display: inline-block; padding: 12px 24px;%s%s text-decoration: none; border-radius: %dpx; font-weight: bold; font-family: sans-serif; font-size: 16px;">%s</a>`,
		attr(c.URL), cssDecl("background-color", s.ButtonColor), cssDecl("color", s.TextColor), s.BorderRadius, html.EscapeString(c.Text))
	closeCell(b)
}

func writeSpacer(b *strings.Builder, s domain.Style) {
	blank := fmt.Sprintf(`<div style="height: %dpx; line-height: %dpx; font-size: 0;">&nbsp;</div>`, s.Height, s.Height)
	fmt.Fprintf(b, `<tr><td style="padding: 0;%s">`, cssDecl("background-color", s.BackgroundColor))
	b.WriteString(blank)
	if s.ShowLine {
		fmt.Fprintf(b, `<div style="height: 1px;%s line-height: 1px; font-size: 0;">&nbsp;</div>`, cssDecl("background-color", s.LineColor))
		b.WriteString(blank)
	}
	closeCell(b)
}

func writeSocial(b *strings.Builder, c domain.SocialContent, s domain.Style, caption string) {
	style := fmt.Sprintf("margin: 0 8px; text-decoration: none;%s font-weight: bold; font-family: sans-serif; font-size: 14px;", cssDecl("color", s.Color))
	var links strings.Builder
	for _, l := range []struct{ href, label string }{
		{c.Instagram, "Instagram"},
		{c.LinkedIn, "LinkedIn"},
		{c.Website, "Site"},
	} {
		if l.href == "" {
			continue
		}
		fmt.Fprintf(&links, `<a href="%s" target="_blank" style="%s">%s</a>`, attr(l.href), style, l.label)
	}
	openCell(b, "center", s)
	fmt.Fprintf(b, `<p style="margin: 0 0 10px 0; font-family: sans-serif; font-size: 12px; color: #999;">%s</p><div>%s</div>`, html.EscapeString(caption), links.String())
	closeCell(b)
}

func writeNPS(b *strings.Builder, c domain.NPSContent, s domain.Style, opts Options) {
	base, cid, contact := "{{base_url}}", "{{campaign_id}}", "{{contact_id}}"
	if fc := opts.Feedback; fc != nil {
		base, cid, contact = fc.BaseURL, fc.CampaignID, fc.ContactID
	}
	prompt := c.Prompt
	if prompt == "" {
		prompt = opts.Labels.NPSPrompt
	}
	align := s.Align
	if align == "" {
		align = "center"
	}

	openCell(b, align, s)
	fmt.Fprintf(b, `<p style="margin:0 0 15px 0;font-family:sans-serif;font-size:16px;color:#333;font-weight:600;">%s</p><div>`, html.EscapeString(prompt))
	for i := domain.MinNPSScore; i <= domain.MaxNPSScore; i++ {
		label := fmt.Sprint(i)
		if c.UseEmojis {
			label = npsEmojis[i]
		}
		href := fmt.Sprintf("%s/feedback/%s/%s/%d", base, cid, contact, i)
		fmt.Fprintf(b, `<a href="%s" target="_blank" style="%s">%s</a>`, attr(href), npsButtonStyle, label)
	}
	b.WriteString(`</div>`)
	closeCell(b)
}
