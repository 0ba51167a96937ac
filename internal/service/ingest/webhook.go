package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/announce/internal/domain"
)

// WebhookEvent is a provider event normalized for the event log.
type WebhookEvent struct {
	Provider   string
	RawType    string
	Type       domain.EventType // empty when the type is not tracked
	MessageID  string
	Recipients []string
	Tags       map[string]string
	URL        string
	IP         string
	UserAgent  string
	Reason     string
	OccurredAt time.Time
}

var resendTypes = map[string]domain.EventType{
	"email.delivered":  domain.EventDelivered,
	"email.opened":     domain.EventOpen,
	"email.clicked":    domain.EventClick,
	"email.bounced":    domain.EventBounce,
	"email.complained": domain.EventComplaint,
}

var sesTypes = map[string]domain.EventType{
	"Delivery":  domain.EventDelivered,
	"Open":      domain.EventOpen,
	"Click":     domain.EventClick,
	"Bounce":    domain.EventBounce,
	"Complaint": domain.EventComplaint,
}

// Only the event type and timestamps are decoded strictly. Recipients, tags
// and the per-type detail objects are decoded leniently: an odd structure
// there leaves the field empty and the event is skipped downstream instead
// of failing the whole delivery.
type resendPayload struct {
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Data      struct {
		EmailID string          `json:"email_id"`
		To      json.RawMessage `json:"to"`
		Tags    json.RawMessage `json:"tags"`
		Click   json.RawMessage `json:"click"`
		Bounce  json.RawMessage `json:"bounce"`
	} `json:"data"`
}

type sesPayload struct {
	EventType        string `json:"eventType"`
	NotificationType string `json:"notificationType"`
	Mail             struct {
		MessageID   string          `json:"messageId"`
		Timestamp   string          `json:"timestamp"`
		Destination json.RawMessage `json:"destination"`
		Tags        json.RawMessage `json:"tags"`
	} `json:"mail"`
	Click  json.RawMessage `json:"click"`
	Open   json.RawMessage `json:"open"`
	Bounce json.RawMessage `json:"bounce"`
}

type interaction struct {
	Link      string `json:"link"`
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
}

type resendBounce struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type sesBounce struct {
	BounceType string `json:"bounceType"`
}

// snsEnvelope wraps SES events delivered through an SNS subscription.
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// stringList accepts a JSON string or array of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = []string{s}
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	*l = arr
	return nil
}

// decodeLoose unmarshals raw into v and reports whether it succeeded.
// Absent and null values report false.
func decodeLoose(raw json.RawMessage, v any) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func looseList(raw json.RawMessage) []string {
	var l stringList
	if !decodeLoose(raw, &l) {
		return nil
	}
	return l
}

// ParseWebhook decodes a Resend or SES payload. A body that is not a JSON
// object yields ErrMalformedPayload.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, ErrMalformedPayload
	}

	if _, ok := fields["Message"]; ok {
		var env snsEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, ErrMalformedPayload
		}
		if env.Type != "Notification" {
			return &WebhookEvent{Provider: "ses", RawType: env.Type}, nil
		}
		return ParseWebhook([]byte(env.Message))
	}

	if _, ok := fields["eventType"]; ok {
		return parseSES(body)
	}
	if _, ok := fields["notificationType"]; ok {
		return parseSES(body)
	}
	return parseResend(body)
}

func parseResend(body []byte) (*WebhookEvent, error) {
	var p resendPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	// An unreadable tag structure leaves the event uncorrelated; the
	// service skips it like any untagged event.
	tags, err := parseResendTags(p.Data.Tags)
	if err != nil {
		tags = map[string]string{}
	}
	ev := &WebhookEvent{
		Provider:   string(domain.ProviderResend),
		RawType:    p.Type,
		Type:       resendTypes[p.Type],
		MessageID:  p.Data.EmailID,
		Recipients: looseList(p.Data.To),
		Tags:       tags,
		OccurredAt: parseTime(p.CreatedAt),
	}
	var c interaction
	if decodeLoose(p.Data.Click, &c) {
		ev.URL, ev.IP, ev.UserAgent = c.Link, c.IPAddress, c.UserAgent
	}
	var b resendBounce
	if decodeLoose(p.Data.Bounce, &b) {
		ev.Reason = strings.TrimSpace(b.Type + " " + b.Message)
	}
	return ev, nil
}

// parseResendTags accepts [{"name","value"}] or {"name":"value"}.
func parseResendTags(raw json.RawMessage) (map[string]string, error) {
	raw = bytes.TrimSpace(raw)
	tags := map[string]string{}
	if len(raw) == 0 || string(raw) == "null" {
		return tags, nil
	}
	if raw[0] == '[' {
		var list []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		for _, t := range list {
			tags[t.Name] = t.Value
		}
		return tags, nil
	}
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func parseSES(body []byte) (*WebhookEvent, error) {
	var p sesPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	raw := p.EventType
	if raw == "" {
		raw = p.NotificationType
	}
	ev := &WebhookEvent{
		Provider:   string(domain.ProviderSES),
		RawType:    raw,
		Type:       sesTypes[raw],
		MessageID:  p.Mail.MessageID,
		Recipients: looseList(p.Mail.Destination),
		Tags:       parseSESTags(p.Mail.Tags),
		OccurredAt: parseTime(p.Mail.Timestamp),
	}
	var c interaction
	if decodeLoose(p.Click, &c) {
		ev.URL, ev.IP, ev.UserAgent = c.Link, c.IPAddress, c.UserAgent
	}
	var o interaction
	if decodeLoose(p.Open, &o) {
		ev.IP, ev.UserAgent = o.IPAddress, o.UserAgent
	}
	var b sesBounce
	if decodeLoose(p.Bounce, &b) {
		ev.Reason = b.BounceType
	}
	return ev, nil
}

// parseSESTags reads {"name":["value"]}, keeping the first value. Entries
// that are neither a string nor a list of strings are dropped.
func parseSESTags(raw json.RawMessage) map[string]string {
	tags := map[string]string{}
	var entries map[string]json.RawMessage
	if !decodeLoose(raw, &entries) {
		return tags
	}
	for k, v := range entries {
		if vals := looseList(v); len(vals) > 0 {
			tags[k] = vals[0]
		}
	}
	return tags
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999-07", "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
