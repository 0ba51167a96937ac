package domain

import "time"

// Provider identifies the email delivery backend used for sending.
type Provider string

const (
	ProviderResend  Provider = "resend"
	ProviderSES     Provider = "ses"
	ProviderSandbox Provider = "sandbox"
)

// TagCampaignID is the provider tag that correlates webhook events with a
// campaign. Its value is the campaign id, or ManualTestTag for test sends.
const (
	TagCampaignID = "campaign_id"
	TagContactID  = "contact_id"
	ManualTestTag = "manual_test"
)

// EmailMessage is the fully-resolved message ready for a sender.
// By the time a message reaches this struct, personalization and
// tracking injection are complete.
type EmailMessage struct {
	CampaignID     string            `json:"campaign_id"`
	ContactID      string            `json:"contact_id"`
	To             string            `json:"to"`
	FromName       string            `json:"from_name"`
	FromEmail      string            `json:"from_email"`
	Subject        string            `json:"subject"`
	HTML           string            `json:"html"`
	Tags           map[string]string `json:"tags,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// SendResult is returned by a sender after the provider accepted a message.
type SendResult struct {
	MessageID string    `json:"message_id"`
	Provider  Provider  `json:"provider"`
	SentAt    time.Time `json:"sent_at"`
}
