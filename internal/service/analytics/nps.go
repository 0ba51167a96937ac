package analytics

import (
	"math"

	"github.com/ignite/announce/internal/domain"
)

// NPSSummary aggregates the feedback of a campaign. Promoters score 9-10,
// passives 7-8 and detractors 0-6.
type NPSSummary struct {
	Responses  int     `json:"responses"`
	Average    float64 `json:"average"`
	Promoters  int     `json:"promoters"`
	Passives   int     `json:"passives"`
	Detractors int     `json:"detractors"`
	Score      int     `json:"nps"`
	Comments   int     `json:"comments"`
}

// SummarizeNPS computes the NPS of responses. The score is
// %promoters - %detractors, from -100 to 100.
func SummarizeNPS(responses []domain.NPSResponse) NPSSummary {
	var s NPSSummary
	total := 0
	for _, r := range responses {
		if !domain.ValidScore(r.Score) {
			continue
		}
		s.Responses++
		total += r.Score
		switch {
		case r.Score >= 9:
			s.Promoters++
		case r.Score >= 7:
			s.Passives++
		default:
			s.Detractors++
		}
		if r.Comment != "" {
			s.Comments++
		}
	}
	if s.Responses == 0 {
		return s
	}
	s.Average = math.Round(float64(total)/float64(s.Responses)*100) / 100
	s.Score = int(math.Round(float64(s.Promoters-s.Detractors) / float64(s.Responses) * 100))
	return s
}
