package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/ignite/announce/internal/domain"
)

func TestBlockUnmarshalAppliesDefaults(t *testing.T) {
	raw := `{"id":"b1","type":"button","content":{"text":"Go","url":"https://x.io"},"style":{"align":"left"}}`
	var b domain.Block
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.Type() != domain.BlockButton {
		t.Fatalf("expected button, got %q", b.Type())
	}
	btn, ok := b.Content.(domain.ButtonContent)
	if !ok {
		t.Fatalf("expected ButtonContent, got %T", b.Content)
	}
	if btn.URL != "https://x.io" || btn.Text != "Go" {
		t.Fatalf("unexpected content %+v", btn)
	}
	if b.Style.Align != "left" {
		t.Fatalf("explicit style lost: %q", b.Style.Align)
	}
	if b.Style.ButtonColor != "#8257e6" || b.Style.TextColor != "#ffffff" || b.Style.BorderRadius != 6 {
		t.Fatalf("defaults not applied: %+v", b.Style)
	}
}

func TestBlockUnmarshalUnknownType(t *testing.T) {
	var b domain.Block
	if err := json.Unmarshal([]byte(`{"id":"x","type":"video"}`), &b); err == nil {
		t.Fatal("expected error for unknown block type")
	}
}

func TestBlockImageTextAlias(t *testing.T) {
	var b domain.Block
	if err := json.Unmarshal([]byte(`{"id":"x","type":"imageText","content":{"title":"T"}}`), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.Type() != domain.BlockImageText {
		t.Fatalf("expected imagetext, got %q", b.Type())
	}
}

func TestBlockRoundTripPreservesOrder(t *testing.T) {
	in := []domain.Block{
		domain.NewBlock("1", domain.HeaderContent{ImageURL: "https://cdn/logo.png"}),
		domain.NewBlock("2", domain.TextContent{Text: "hello"}),
		domain.NewBlock("3", domain.SpacerContent{}),
		domain.NewBlock("4", domain.NPSContent{UseEmojis: true}),
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out []domain.Block
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d blocks, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i].ID != in[i].ID || out[i].Type() != in[i].Type() {
			t.Fatalf("block %d: got %s/%s, want %s/%s", i, out[i].ID, out[i].Type(), in[i].ID, in[i].Type())
		}
		if out[i].Style != in[i].Style {
			t.Fatalf("block %d style changed: %+v vs %+v", i, out[i].Style, in[i].Style)
		}
	}
}

func TestDefaultStyleSpacer(t *testing.T) {
	s := domain.DefaultStyle(domain.BlockSpacer)
	if s.Height != 30 || !s.ShowLine || s.LineColor != "#e1e1e6" || s.BackgroundColor != "#ffffff" || s.Padding != 0 {
		t.Fatalf("unexpected spacer defaults: %+v", s)
	}
}
