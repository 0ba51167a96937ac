package sending_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/sending"
)

type countingSender struct{ calls int }

func (c *countingSender) Send(context.Context, *domain.EmailMessage) (*domain.SendResult, error) {
	c.calls++
	return &domain.SendResult{MessageID: "m"}, nil
}

type stubWaiter struct {
	err      error
	provider string
}

func (w *stubWaiter) Wait(_ context.Context, provider string) error {
	w.provider = provider
	return w.err
}

func TestThrottledDelegates(t *testing.T) {
	next := &countingSender{}
	w := &stubWaiter{}
	s := sending.NewThrottled(next, w, domain.ProviderSES)
	if _, err := s.Send(context.Background(), &domain.EmailMessage{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if next.calls != 1 || w.provider != "ses" {
		t.Fatalf("calls=%d provider=%q", next.calls, w.provider)
	}
}

func TestThrottledLimiterError(t *testing.T) {
	next := &countingSender{}
	quota := errors.New("quota")
	s := sending.NewThrottled(next, &stubWaiter{err: quota}, domain.ProviderResend)
	if _, err := s.Send(context.Background(), &domain.EmailMessage{}); !errors.Is(err, quota) {
		t.Fatalf("expected limiter error, got %v", err)
	}
	if next.calls != 0 {
		t.Fatal("message sent despite limiter error")
	}
}
