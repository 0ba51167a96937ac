package sending

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/ignite/announce/internal/domain"
)

var bucketSandbox = []byte("sandbox")

// SandboxMessage is a message captured instead of delivered.
type SandboxMessage struct {
	ID         string            `json:"id"`
	CampaignID string            `json:"campaign_id"`
	ContactID  string            `json:"contact_id"`
	From       string            `json:"from"`
	To         string            `json:"to"`
	Subject    string            `json:"subject"`
	HTML       string            `json:"html,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	CapturedAt time.Time         `json:"captured_at"`
}

// SandboxSender stores messages in a local BoltDB file. Used in
// development and by the CLI to inspect what a dispatch would send.
type SandboxSender struct {
	db *bolt.DB
}

// OpenSandbox opens (or creates) the sandbox database at path.
func OpenSandbox(path string) (*SandboxSender, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open sandbox db: %w", err)
	}
	s, err := NewSandboxSender(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSandboxSender uses an open BoltDB instance.
func NewSandboxSender(db *bolt.DB) (*SandboxSender, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSandbox)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox bucket: %w", err)
	}
	return &SandboxSender{db: db}, nil
}

func (s *SandboxSender) Provider() domain.Provider { return domain.ProviderSandbox }

// Send captures the message.
func (s *SandboxSender) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := &SandboxMessage{
		ID:         uuid.NewString(),
		CampaignID: msg.CampaignID,
		ContactID:  msg.ContactID,
		From:       FormatFrom(msg.FromName, msg.FromEmail),
		To:         msg.To,
		Subject:    msg.Subject,
		HTML:       msg.HTML,
		Tags:       msg.Tags,
		CapturedAt: time.Now().UTC(),
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		return tx.Bucket(bucketSandbox).Put(makeIndexKey(m.CapturedAt, m.ID), data)
	})
	if err != nil {
		return nil, fmt.Errorf("sandbox save: %w", err)
	}

	return &domain.SendResult{MessageID: m.ID, Provider: domain.ProviderSandbox, SentAt: m.CapturedAt}, nil
}

// List returns captured messages newest first, without bodies. An empty
// campaignID lists all campaigns.
func (s *SandboxSender) List(ctx context.Context, campaignID string, limit int) ([]SandboxMessage, error) {
	var out []SandboxMessage
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSandbox).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var m SandboxMessage
			if err := json.Unmarshal(v, &m); err != nil {
				continue
			}
			if campaignID != "" && m.CampaignID != campaignID {
				continue
			}
			m.HTML = ""
			out = append(out, m)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// Get returns one captured message including its body, or nil.
func (s *SandboxSender) Get(ctx context.Context, id string) (*SandboxMessage, error) {
	var found *SandboxMessage
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSandbox).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var m SandboxMessage
			if err := json.Unmarshal(v, &m); err != nil {
				continue
			}
			if m.ID == id {
				found = &m
				return nil
			}
		}
		return nil
	})
	return found, err
}

// Close closes the underlying database.
func (s *SandboxSender) Close() error {
	return s.db.Close()
}

func makeIndexKey(t time.Time, id string) []byte {
	return []byte(t.Format(time.RFC3339Nano) + ":" + id)
}
