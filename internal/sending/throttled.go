package sending

import (
	"context"

	"github.com/ignite/announce/internal/domain"
)

// Waiter blocks until the provider may accept one more message.
type Waiter interface {
	Wait(ctx context.Context, provider string) error
}

// Throttled gates a Sender behind a rate limiter. A denied send waits the
// limiter's interval and retries; a daily quota error fails the send.
type Throttled struct {
	next     Sender
	limiter  Waiter
	provider domain.Provider
}

// NewThrottled wraps next. The provider name selects the limiter windows.
func NewThrottled(next Sender, limiter Waiter, provider domain.Provider) *Throttled {
	return &Throttled{next: next, limiter: limiter, provider: provider}
}

func (t *Throttled) Provider() domain.Provider { return t.provider }

// Send waits for capacity, then delegates.
func (t *Throttled) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx, string(t.provider)); err != nil {
			return nil, err
		}
	}
	return t.next.Send(ctx, msg)
}
