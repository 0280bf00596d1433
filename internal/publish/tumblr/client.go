// Package tumblr mirrors published posts to a Tumblr blog via the legacy
// OAuth1-signed post endpoint.
package tumblr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/blogger-agent/internal/models"
	"github.com/blogger-agent/internal/publish"
	"github.com/blogger-agent/pkg/logger"
	"github.com/blogger-agent/pkg/ratelimit"
)

const baseURL = "https://api.tumblr.com/v2"

// Client implements publish.CrossPoster for Tumblr
type Client struct {
	rateLimiter *ratelimit.MultiLimiter
	timeout     time.Duration
	log         *logger.Logger
}

// NewClient creates a Tumblr cross-poster
func NewClient(limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	return &Client{
		rateLimiter: limiter,
		timeout:     30 * time.Second,
		log:         log.WithComponent("tumblr"),
	}
}

// Platform returns the platform identifier
func (c *Client) Platform() models.Platform {
	return models.PlatformTumblr
}

type postResponse struct {
	Meta struct {
		Status int    `json:"status"`
		Msg    string `json:"msg"`
	} `json:"meta"`
	Response struct {
		ID       json.Number `json:"id"`
		IDString string      `json:"id_string"`
	} `json:"response"`
}

// Publish creates a link post carrying the article excerpt and Blogger URL
func (c *Client) Publish(ctx context.Context, post *models.Post, conn *models.Connection) publish.Result {
	if conn.BlogName == "" {
		return publish.Failure("tumblr connection has no blog name")
	}
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterTumblr); err != nil {
		return publish.Failure(fmt.Sprintf("rate limit error: %v", err))
	}

	oauthConfig := oauth1.NewConfig(conn.ConsumerKey, conn.ConsumerSecret)
	token := oauth1.NewToken(conn.AccessToken, conn.AccessSecret)
	httpClient := oauthConfig.Client(ctx, token)
	httpClient.Timeout = c.timeout

	form := url.Values{}
	form.Set("type", "link")
	form.Set("title", post.Title)
	form.Set("url", post.BloggerURL)
	form.Set("description", post.Excerpt)
	if len(post.Labels) > 0 {
		form.Set("tags", strings.Join(post.Labels, ","))
	}

	endpoint := fmt.Sprintf("%s/blog/%s/post", baseURL, conn.BlogName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return publish.Failure(fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return publish.Failure(fmt.Sprintf("tumblr request failed: %v", err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("Tumblr post failed")
		return publish.Failure(fmt.Sprintf("tumblr returned %s: %s", resp.Status, string(body)))
	}

	var parsed postResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return publish.Failure(fmt.Sprintf("failed to decode tumblr response: %v", err))
	}

	postID := parsed.Response.IDString
	if postID == "" {
		postID = parsed.Response.ID.String()
	}

	c.log.Info().
		Str("blog", conn.BlogName).
		Str("tumblr_post_id", postID).
		Msg("Cross-posted to Tumblr")

	return publish.Result{
		Success: true,
		PostID:  postID,
		PostURL: fmt.Sprintf("https://%s/post/%s", conn.BlogName, postID),
		Message: "cross-posted",
	}
}
