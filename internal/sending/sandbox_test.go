package sending_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/sending"
)

func TestSandboxCaptureAndList(t *testing.T) {
	s, err := sending.OpenSandbox(filepath.Join(t.TempDir(), "sandbox.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	for _, to := range []string{"a@x.io", "b@x.io"} {
		if _, err := s.Send(ctx, &domain.EmailMessage{CampaignID: "c1", To: to, Subject: "S", HTML: "<p/>"}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	s.Send(ctx, &domain.EmailMessage{CampaignID: "c2", To: "c@x.io"})

	list, err := s.List(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 messages for c1, got %d", len(list))
	}
	if list[0].HTML != "" {
		t.Fatal("list must not include bodies")
	}

	full, err := s.Get(ctx, list[0].ID)
	if err != nil || full == nil {
		t.Fatalf("get: %v %v", full, err)
	}
	if full.HTML != "<p/>" {
		t.Fatalf("body not stored: %q", full.HTML)
	}

	all, _ := s.List(ctx, "", 2)
	if len(all) != 2 {
		t.Fatalf("limit not applied: %d", len(all))
	}
}
