package sending

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ignite/announce/internal/domain"
	"github.com/ignite/announce/internal/pkg/httpretry"
	"github.com/ignite/announce/internal/pkg/logger"
)

// DefaultResendURL is the public Resend API.
const DefaultResendURL = "https://api.resend.com"

// ResendSender sends through the Resend HTTP API.
type ResendSender struct {
	apiKey  string
	baseURL string
	client  httpretry.HTTPDoer
}

// NewResendSender creates a Resend sender. Only 429 and 5xx responses are
// retried, and every attempt carries the message's idempotency key so a
// retry never produces a second email.
func NewResendSender(apiKey, baseURL string, maxRetries int, client httpretry.HTTPDoer) *ResendSender {
	if baseURL == "" {
		baseURL = DefaultResendURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ResendSender{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpretry.NewRetryClient(client, maxRetries),
	}
}

func (s *ResendSender) Provider() domain.Provider { return domain.ProviderResend }

type resendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type resendEmail struct {
	From    string      `json:"from"`
	To      []string    `json:"to"`
	Subject string      `json:"subject"`
	HTML    string      `json:"html"`
	Tags    []resendTag `json:"tags,omitempty"`
}

type resendResponse struct {
	ID         string `json:"id"`
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// Send delivers one email.
func (s *ResendSender) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	payload := resendEmail{
		From:    FormatFrom(msg.FromName, msg.FromEmail),
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Tags:    resendTags(msg.Tags),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal resend email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build resend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if msg.IdempotencyKey != "" {
		req.Header.Set(httpretry.IdempotencyHeader, msg.IdempotencyKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resend request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var out resendResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := &ProviderError{Provider: domain.ProviderResend, Status: resp.StatusCode, Name: out.Name, Message: out.Message}
		if perr.Message == "" {
			perr.Message = strings.TrimSpace(string(raw))
		}
		log.Printf("[Resend] Rejected %s: %v", logger.RedactEmail(msg.To), perr)
		return nil, perr
	}

	return &domain.SendResult{
		MessageID: out.ID,
		Provider:  domain.ProviderResend,
		SentAt:    time.Now().UTC(),
	}, nil
}

// resendTags converts tags to the API's list form, sorted for stable
// request bodies.
func resendTags(tags map[string]string) []resendTag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]resendTag, 0, len(tags))
	for k, v := range tags {
		out = append(out, resendTag{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
