package domain

import "time"

// EventType enumerates the entries of the campaign event log.
type EventType string

const (
	EventSent      EventType = "sent"
	EventFailed    EventType = "failed"
	EventDelivered EventType = "delivered"
	EventOpen      EventType = "open"
	EventClick     EventType = "click"
	EventBounce    EventType = "bounce"
	EventComplaint EventType = "complaint"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventSent, EventFailed, EventDelivered, EventOpen, EventClick, EventBounce, EventComplaint:
		return true
	}
	return false
}

// EventMetadata carries the optional context of an event.
type EventMetadata struct {
	IP           string `json:"ip,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
	Referrer     string `json:"referrer,omitempty"`
	Device       string `json:"device,omitempty"`
	OriginalURL  string `json:"original_url,omitempty"`
	TrackingCode string `json:"tracking_code,omitempty"`
	MessageID    string `json:"message_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// CampaignEvent is one append-only entry of the event log.
type CampaignEvent struct {
	ID             string        `json:"id"`
	CampaignID     string        `json:"campaign_id"`
	OrganizationID string        `json:"organization_id"`
	ContactID      string        `json:"contact_id,omitempty"`
	Email          string        `json:"email"`
	Type           EventType     `json:"type"`
	Metadata       EventMetadata `json:"metadata"`
	CreatedAt      time.Time     `json:"created_at"`
}

// TrackedLink maps a tracking code back to the URL it replaced.
type TrackedLink struct {
	CampaignID  string    `json:"campaign_id"`
	OriginalURL string    `json:"original_url"`
	Code        string    `json:"code"`
	Clicks      int       `json:"clicks"`
	CreatedAt   time.Time `json:"created_at"`
}
