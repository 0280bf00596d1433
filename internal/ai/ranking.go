package ai

import (
	"context"
	"encoding/json"
	"fmt"
)

// Candidate is a story offered to the ranker
type Candidate struct {
	Title  string
	Source string
	URL    string
}

// CandidateRanking is the AI's verdict on one candidate
type CandidateRanking struct {
	Index       int     `json:"index"`
	Score       float64 `json:"score"`
	WhyTrending string  `json:"why_trending"`
	FomoHook    string  `json:"fomo_hook"`
}

type candidateRankingResponse struct {
	Rankings []CandidateRanking `json:"rankings"`
}

// RankCandidates scores trending-story candidates for a niche. The result
// is ordered as returned by the model; callers pick by score. A ranking
// failure is recoverable - the research provider falls back to feed order.
func (c *Client) RankCandidates(ctx context.Context, nicheName, nicheDescription string, candidates []Candidate) ([]CandidateRanking, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	candidatesText := ""
	for i, cand := range candidates {
		candidatesText += fmt.Sprintf("\n[%d] %s (source: %s)", i, cand.Title, cand.Source)
	}

	userPrompt := fmt.Sprintf(CandidateRankingUserPrompt, nicheName, nicheDescription, candidatesText)

	response, err := c.CompleteWithJSON(ctx, CandidateRankingSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	var parsed candidateRankingResponse
	if err := json.Unmarshal([]byte(stripMarkdownCodeBlock(response)), &parsed); err != nil {
		c.log.Error().
			Err(err).
			Str("response", response).
			Msg("Failed to parse candidate ranking response")
		return nil, fmt.Errorf("failed to parse candidate ranking response: %w", err)
	}

	// Drop out-of-range indexes the model may hallucinate
	rankings := make([]CandidateRanking, 0, len(parsed.Rankings))
	for _, r := range parsed.Rankings {
		if r.Index >= 0 && r.Index < len(candidates) {
			rankings = append(rankings, r)
		}
	}

	return rankings, nil
}
