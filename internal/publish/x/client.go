// Package x mirrors published posts to X via the v2 tweet endpoint with
// OAuth1 user-context signing.
package x

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/blogger-agent/internal/models"
	"github.com/blogger-agent/internal/publish"
	"github.com/blogger-agent/pkg/logger"
	"github.com/blogger-agent/pkg/ratelimit"
)

const tweetEndpoint = "https://api.x.com/2/tweets"

// maxTweetRunes is the post length limit; text beyond it is truncated
// with an ellipsis while preserving the trailing URL.
const maxTweetRunes = 280

// Client implements publish.CrossPoster for X
type Client struct {
	rateLimiter *ratelimit.MultiLimiter
	timeout     time.Duration
	log         *logger.Logger
}

// NewClient creates an X cross-poster
func NewClient(limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	return &Client{
		rateLimiter: limiter,
		timeout:     30 * time.Second,
		log:         log.WithComponent("x"),
	}
}

// Platform returns the platform identifier
func (c *Client) Platform() models.Platform {
	return models.PlatformX
}

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

// Publish posts the article title + link as a tweet
func (c *Client) Publish(ctx context.Context, post *models.Post, conn *models.Connection) publish.Result {
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterX); err != nil {
		return publish.Failure(fmt.Sprintf("rate limit error: %v", err))
	}

	oauthConfig := oauth1.NewConfig(conn.ConsumerKey, conn.ConsumerSecret)
	token := oauth1.NewToken(conn.AccessToken, conn.AccessSecret)
	httpClient := oauthConfig.Client(ctx, token)
	httpClient.Timeout = c.timeout

	payload, err := json.Marshal(tweetRequest{Text: composeTweet(post)})
	if err != nil {
		return publish.Failure(fmt.Sprintf("failed to marshal tweet: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tweetEndpoint, bytes.NewReader(payload))
	if err != nil {
		return publish.Failure(fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return publish.Failure(fmt.Sprintf("x request failed: %v", err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed tweetResponse
	_ = json.Unmarshal(body, &parsed)

	if resp.StatusCode != http.StatusCreated {
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("detail", parsed.Detail).
			Msg("X post failed")
		return publish.Failure(fmt.Sprintf("x returned %s: %s %s", resp.Status, parsed.Title, parsed.Detail))
	}

	c.log.Info().
		Str("tweet_id", parsed.Data.ID).
		Msg("Cross-posted to X")

	return publish.Result{
		Success: true,
		PostID:  parsed.Data.ID,
		PostURL: fmt.Sprintf("https://x.com/i/web/status/%s", parsed.Data.ID),
		Message: "cross-posted",
	}
}

// composeTweet builds "title url", truncating the title to fit.
// X counts any URL as 23 characters.
func composeTweet(post *models.Post) string {
	const urlWeight = 23
	budget := maxTweetRunes - urlWeight - 1 // space separator

	title := []rune(post.Title)
	if len(title) > budget {
		title = append(title[:budget-1], '…')
	}

	if post.BloggerURL == "" {
		return string(title)
	}
	return string(title) + " " + post.BloggerURL
}
