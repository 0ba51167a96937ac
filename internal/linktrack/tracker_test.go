package linktrack_test

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/linktrack"
)

const page = `<!DOCTYPE html><html><head><title>x</title></head><body>` +
	`<a href="https://co.io/a" class="btn" target="_blank">First</a>` +
	`<a href="mailto:hr@co.io">Mail</a>` +
	`<a href="tel:+5511999">Call</a>` +
	`<a href="#top">Top</a>` +
	`<a href="https://co.io/b">Second</a>` +
	`<a href="https://co.io/a">Again</a>` +
	`</body></html>`

func parse(t *testing.T, s string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func TestTrackRewritesAnchors(t *testing.T) {
	tr := linktrack.New("https://t.io/", "secret")
	out, links, err := tr.Track(page, "c1", "ana+1@x.io")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 distinct links, got %d", len(links))
	}
	if links[0].OriginalURL != "https://co.io/a" || links[1].OriginalURL != "https://co.io/b" {
		t.Fatalf("unexpected link order: %+v", links)
	}

	d := parse(t, out)
	var hrefs, texts []string
	d.Find("a").Each(func(_ int, s *goquery.Selection) {
		h, _ := s.Attr("href")
		hrefs = append(hrefs, h)
		texts = append(texts, s.Text())
	})
	if strings.Join(texts, ",") != "First,Mail,Call,Top,Second,Again" {
		t.Fatalf("anchor text or order changed: %v", texts)
	}
	want0 := "https://t.io/track/click/" + links[0].Code + "?email=ana%2B1%40x.io"
	if hrefs[0] != want0 {
		t.Fatalf("href = %q, want %q", hrefs[0], want0)
	}
	if hrefs[1] != "mailto:hr@co.io" || hrefs[2] != "tel:+5511999" || hrefs[3] != "#top" {
		t.Fatalf("non-trackable links rewritten: %v", hrefs[1:4])
	}
	if hrefs[5] != want0 {
		t.Fatalf("duplicate URL got a different code: %q", hrefs[5])
	}

	first := d.Find("a").First()
	if orig, _ := first.Attr(linktrack.OriginalURLAttr); orig != "https://co.io/a" {
		t.Fatalf("original url attr = %q", orig)
	}
	if cls, _ := first.Attr("class"); cls != "btn" {
		t.Fatalf("class attribute lost: %q", cls)
	}
}

func TestTrackAppendsPixel(t *testing.T) {
	tr := linktrack.New("https://t.io", "secret")
	out, _, err := tr.Track(page, "c1", "a@x.io")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	d := parse(t, out)
	imgs := d.Find("body img")
	if imgs.Length() != 1 {
		t.Fatalf("expected 1 pixel, got %d", imgs.Length())
	}
	src, _ := imgs.Attr("src")
	if src != "https://t.io/track/open/c1?email=a%40x.io" {
		t.Fatalf("pixel src = %q", src)
	}
}

func TestCodesStableAcrossRecipients(t *testing.T) {
	tr := linktrack.New("https://t.io", "secret")
	_, a, _ := tr.Track(page, "c1", "a@x.io")
	_, b, _ := tr.Track(page, "c1", "b@x.io")
	for i := range a {
		if a[i].Code != b[i].Code {
			t.Fatalf("code for %s changed between recipients", a[i].OriginalURL)
		}
	}
	if tr.Code("c2", "https://co.io/a") == a[0].Code {
		t.Fatal("codes must differ across campaigns")
	}
	if linktrack.New("https://t.io", "other").Code("c1", "https://co.io/a") == a[0].Code {
		t.Fatal("codes must depend on the secret")
	}
}

func TestTrackSkipsAlreadyTracked(t *testing.T) {
	tr := linktrack.New("https://t.io", "secret")
	once, _, _ := tr.Track(page, "c1", "a@x.io")
	_, links, err := tr.Track(once, "c1", "a@x.io")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if len(links) != 0 {
		t.Fatalf("tracked links were tracked again: %+v", links)
	}
}

func TestTrackRewritesFeedbackLinks(t *testing.T) {
	tr := linktrack.New("https://t.io", "secret")
	doc := `<html><body><a href="https://t.io/feedback/c1/ct1/9">9</a><a href="https://t.io/feedback/c1/ct1/10">10</a></body></html>`
	out, links, err := tr.Track(doc, "c1", "a@x.io")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if len(links) != 2 || links[0].OriginalURL != "https://t.io/feedback/c1/ct1/9" {
		t.Fatalf("expected both feedback links tracked, got %+v", links)
	}
	if strings.Contains(out, `href="https://t.io/feedback/`) {
		t.Fatalf("feedback href left untracked: %s", out)
	}
	if !strings.Contains(out, `href="`+tr.ClickURL(links[1].Code, "a@x.io")) {
		t.Fatalf("feedback href not rewritten to click url: %s", out)
	}
}

type linkStore struct{ saved []domain.TrackedLink }

func (s *linkStore) SaveLinks(_ context.Context, links []domain.TrackedLink) error {
	s.saved = append(s.saved, links...)
	return nil
}

func TestPersist(t *testing.T) {
	s := &linkStore{}
	if err := linktrack.Persist(context.Background(), s, nil); err != nil {
		t.Fatalf("persist empty: %v", err)
	}
	if err := linktrack.Persist(context.Background(), s, []domain.TrackedLink{{Code: "x"}}); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if len(s.saved) != 1 {
		t.Fatalf("expected 1 saved link, got %d", len(s.saved))
	}
}
