package domain

import "time"

const (
	MinNPSScore = 0
	MaxNPSScore = 10
)

// NPSResponse is one recipient's answer to a campaign's NPS block.
// There is at most one per (campaign, contact).
type NPSResponse struct {
	CampaignID string    `json:"campaign_id"`
	ContactID  string    `json:"contact_id"`
	Score      int       `json:"score"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ValidScore reports whether score is on the 0-10 scale.
func ValidScore(score int) bool {
	return score >= MinNPSScore && score <= MaxNPSScore
}
