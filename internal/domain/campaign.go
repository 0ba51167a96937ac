package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignFailed    CampaignStatus = "failed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// AudienceType selects which active contacts a campaign targets.
type AudienceType string

const (
	AudienceAll  AudienceType = "all"
	AudienceTags AudienceType = "tags"
)

// Campaign is an announcement: a block document plus its audience and
// delivery state. Counters are denormalized caches over the event log.
type Campaign struct {
	ID             string         `json:"id" db:"id"`
	OrganizationID string         `json:"organization_id" db:"organization_id"`
	Title          string         `json:"title" db:"title"`
	Subject        string         `json:"subject" db:"subject"`
	PreviewText    string         `json:"preview_text" db:"preview_text"`
	FromName       string         `json:"from_name" db:"from_name"`
	FromEmail      string         `json:"from_email" db:"from_email"`
	Blocks         []Block        `json:"blocks" db:"blocks"`
	AudienceType   AudienceType   `json:"audience_type" db:"audience_type"`
	Tags           []string       `json:"tags" db:"tags"`
	Status         CampaignStatus `json:"status" db:"status"`
	ScheduledAt    *time.Time     `json:"scheduled_at" db:"scheduled_at"`

	// Stats (read-only, maintained by dispatch and ingestion)
	SentCount      int `json:"sent_count" db:"sent_count"`
	FailedCount    int `json:"failed_count" db:"failed_count"`
	DeliveredCount int `json:"delivered_count" db:"delivered_count"`
	OpenCount      int `json:"open_count" db:"open_count"`
	ClickCount     int `json:"click_count" db:"click_count"`
	BounceCount    int `json:"bounce_count" db:"bounce_count"`
	ComplaintCount int `json:"complaint_count" db:"complaint_count"`

	SentAt    *time.Time `json:"sent_at" db:"sent_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	switch c.Status {
	case CampaignSent, CampaignFailed, CampaignCancelled:
		return true
	}
	return false
}

// IsEditable reports whether content may still change. Sent campaigns keep
// the exact document their recipients received.
func (c *Campaign) IsEditable() bool {
	return c.Status == CampaignDraft || c.Status == CampaignScheduled
}

// DispatchSummary is the outcome of one dispatch run.
type DispatchSummary struct {
	CampaignID string           `json:"campaign_id"`
	Total      int              `json:"total"`
	Sent       int              `json:"sent"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Cancelled  bool             `json:"cancelled"`
	Errors     []RecipientError `json:"errors"`
}

// RecipientError pairs a failed recipient with the provider's reason.
type RecipientError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}
