package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// stripMarkdownCodeBlock removes markdown code block delimiters from AI responses
func stripMarkdownCodeBlock(response string) string {
	response = strings.TrimSpace(response)

	// Find the first { which starts valid JSON
	startIdx := strings.Index(response, "{")
	if startIdx == -1 {
		return response
	}

	// Find the last } which ends valid JSON
	endIdx := strings.LastIndex(response, "}")
	if endIdx == -1 || endIdx < startIdx {
		return response
	}

	// Extract just the JSON object
	return response[startIdx : endIdx+1]
}

// GenerateRequest carries everything the article writer needs
type GenerateRequest struct {
	Topic       string
	FomoHook    string
	NicheName   string
	WritingTone string
	Summary     string
	Facts       []string
}

// GeneratedContent is the article produced for a topic
type GeneratedContent struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Excerpt     string   `json:"excerpt"`
	Labels      []string `json:"labels"`
	ImagePrompt string   `json:"image_prompt"`
}

// GenerateArticle writes a complete article scoped to the single given topic
func (c *Client) GenerateArticle(ctx context.Context, req GenerateRequest) (*GeneratedContent, error) {
	tone := req.WritingTone
	if tone == "" {
		tone = "clear, informative and engaging"
	}

	facts := "- (no additional facts)"
	if len(req.Facts) > 0 {
		facts = "- " + strings.Join(req.Facts, "\n- ")
	}

	systemPrompt := fmt.Sprintf(ArticleSystemPrompt, tone)
	userPrompt := fmt.Sprintf(ArticleUserPrompt, req.Topic, req.FomoHook, req.Summary, facts)

	response, err := c.CompleteWithJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	var content GeneratedContent
	if err := json.Unmarshal([]byte(stripMarkdownCodeBlock(response)), &content); err != nil {
		c.log.Error().
			Err(err).
			Str("response", response).
			Msg("Failed to parse article response")
		return nil, fmt.Errorf("failed to parse article response: %w", err)
	}

	if content.Title == "" || content.Content == "" {
		return nil, fmt.Errorf("article response missing title or content")
	}

	c.log.Info().
		Str("title", content.Title).
		Int("content_length", len(content.Content)).
		Int("labels", len(content.Labels)).
		Msg("Article generated")

	return &content, nil
}
