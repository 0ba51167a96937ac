// Package analytics derives campaign metrics from the event log.
//
// Opened and clicked are counts of distinct recipients. A recipient's
// status is the highest-precedence event observed for them, regardless of
// event order: clicked > opened > bounced > delivered > sent. A click
// implies an open, and an open implies delivery.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/ignite/announce/internal/domain"
)

// RecipientStatus is the summarized state of one recipient.
type RecipientStatus string

const (
	StatusSent      RecipientStatus = "sent"
	StatusDelivered RecipientStatus = "delivered"
	StatusBounced   RecipientStatus = "bounced"
	StatusOpened    RecipientStatus = "opened"
	StatusClicked   RecipientStatus = "clicked"
)

var rank = map[RecipientStatus]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusBounced:   3,
	StatusOpened:    4,
	StatusClicked:   5,
}

// statusOf maps an event to the status it proves. Complaints say nothing
// about delivery state and map to "".
func statusOf(t domain.EventType) RecipientStatus {
	switch t {
	case domain.EventSent:
		return StatusSent
	case domain.EventDelivered:
		return StatusDelivered
	case domain.EventBounce, domain.EventFailed:
		return StatusBounced
	case domain.EventOpen:
		return StatusOpened
	case domain.EventClick:
		return StatusClicked
	}
	return ""
}

// Recipient is one row of the per-recipient status list.
type Recipient struct {
	Email       string          `json:"email"`
	ContactID   string          `json:"contact_id,omitempty"`
	Status      RecipientStatus `json:"status"`
	LastEventAt time.Time       `json:"last_event_at"`
}

// Metrics are the derived analytics of a campaign. Rates are percentages
// rounded to two decimals. Open and click rates are taken over every
// recipient that was dispatched and did not bounce, since delivery
// notifications are optional and many providers never send them.
type Metrics struct {
	Recipients      int                      `json:"recipients"`
	Delivered       int                      `json:"delivered"`
	Bounced         int                      `json:"bounced"`
	Opened          int                      `json:"opened"`
	Clicked         int                      `json:"clicked"`
	Complaints      int                      `json:"complaints"`
	Events          map[domain.EventType]int `json:"events"`
	OpenRate        float64                  `json:"open_rate"`
	ClickRate       float64                  `json:"click_rate"`
	ClickToOpenRate float64                  `json:"click_to_open_rate"`
}

// Summarize computes Metrics over a campaign's events.
func Summarize(events []domain.CampaignEvent) Metrics {
	m, _ := summarize(events)
	return m
}

// Statuses returns the per-recipient terminal status list sorted by email.
func Statuses(events []domain.CampaignEvent) []Recipient {
	_, rs := summarize(events)
	return rs
}

func summarize(events []domain.CampaignEvent) (Metrics, []Recipient) {
	m := Metrics{Events: make(map[domain.EventType]int)}
	byEmail := make(map[string]*Recipient)
	complained := make(map[string]bool)

	for i := range events {
		e := &events[i]
		m.Events[e.Type]++
		email := domain.NormalizeEmail(e.Email)
		if email == "" {
			continue
		}
		if e.Type == domain.EventComplaint {
			complained[email] = true
		}
		r, ok := byEmail[email]
		if !ok {
			r = &Recipient{Email: email}
			byEmail[email] = r
		}
		if r.ContactID == "" {
			r.ContactID = e.ContactID
		}
		if e.CreatedAt.After(r.LastEventAt) {
			r.LastEventAt = e.CreatedAt
		}
		if st := statusOf(e.Type); rank[st] > rank[r.Status] {
			r.Status = st
		}
	}

	out := make([]Recipient, 0, len(byEmail))
	for _, r := range byEmail {
		// Only a complaint seen: the message evidently arrived.
		if r.Status == "" {
			r.Status = StatusDelivered
		}
		switch r.Status {
		case StatusClicked:
			m.Clicked++
			m.Opened++
			m.Delivered++
		case StatusOpened:
			m.Opened++
			m.Delivered++
		case StatusDelivered:
			m.Delivered++
		case StatusBounced:
			m.Bounced++
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })

	m.Recipients = len(byEmail)
	m.Complaints = len(complained)
	reached := m.Recipients - m.Bounced
	m.OpenRate = percent(m.Opened, reached)
	m.ClickRate = percent(m.Clicked, reached)
	m.ClickToOpenRate = percent(m.Clicked, m.Opened)
	return m, out
}

func percent(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return math.Round(float64(num)/float64(den)*10000) / 100
}
