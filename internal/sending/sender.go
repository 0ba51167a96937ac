// Package sending delivers fully-rendered messages through an email
// provider.
//
// Each provider (Resend, SES, the local sandbox) implements Sender. The
// dispatch orchestrator stays provider-agnostic and wraps the configured
// sender with Throttled to respect provider rate limits.
package sending

import (
	"context"
	"fmt"

	"github.com/ignite/announce/internal/domain"
)

// Sender sends a single email. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error)
}

// Named is implemented by senders that report which provider they use.
type Named interface {
	Provider() domain.Provider
}

// ProviderError is a rejection returned by the provider API.
type ProviderError struct {
	Provider domain.Provider
	Status   int
	Name     string
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %d %s: %s", e.Provider, e.Status, e.Name, e.Message)
	}
	return fmt.Sprintf("%s: %d: %s", e.Provider, e.Status, e.Message)
}

// FormatFrom renders the RFC 5322 "Name <addr>" form.
func FormatFrom(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}
