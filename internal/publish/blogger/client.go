// Package blogger publishes posts through the Blogger v3 API with
// per-account OAuth2 refresh.
package blogger

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	bloggerapi "google.golang.org/api/blogger/v3"
	"google.golang.org/api/option"

	"github.com/blogger-agent/internal/config"
	"github.com/blogger-agent/internal/models"
	"github.com/blogger-agent/internal/publish"
	"github.com/blogger-agent/internal/storage"
	"github.com/blogger-agent/pkg/logger"
	"github.com/blogger-agent/pkg/ratelimit"
)

// Client implements publish.Publisher for Blogger
type Client struct {
	legacy      config.BloggerConfig
	repo        storage.Repository
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewClient creates a Blogger publisher. The legacy config is the
// fallback single-blog connection used when a run carries no account.
func NewClient(legacy config.BloggerConfig, repo storage.Repository, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	return &Client{
		legacy:      legacy,
		repo:        repo,
		rateLimiter: limiter,
		log:         log.WithComponent("blogger"),
	}
}

// Publish inserts the post into the destination blog. Tokens are
// refreshed transparently before the attempt; failure is reported via the
// result, never a panic or error return.
func (c *Client) Publish(ctx context.Context, post *models.Post, account *models.Account) publish.Result {
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterBlogger); err != nil {
		return publish.Failure(fmt.Sprintf("rate limit error: %v", err))
	}

	blogID, ts, err := c.tokenSource(ctx, account)
	if err != nil {
		return publish.Failure(fmt.Sprintf("authentication error: %v", err))
	}

	svc, err := bloggerapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return publish.Failure(fmt.Sprintf("failed to create blogger service: %v", err))
	}

	body := &bloggerapi.Post{
		Title:   post.Title,
		Content: renderContent(post, account),
		Labels:  []string(post.Labels),
	}

	c.log.Info().
		Str("blog_id", blogID).
		Str("title", post.Title).
		Msg("Publishing post to Blogger")

	inserted, err := svc.Posts.Insert(blogID, body).Context(ctx).Do()
	if err != nil {
		c.log.Error().Err(err).Str("blog_id", blogID).Msg("Blogger insert failed")
		return publish.Failure(fmt.Sprintf("blogger insert failed: %v", err))
	}

	// Persist the refreshed access token so later runs skip the refresh
	// round-trip. Best-effort: a save failure never fails the publish.
	if account != nil {
		c.persistToken(ctx, account.ID, ts)
	}

	return publish.Result{
		Success: true,
		PostID:  inserted.Id,
		PostURL: inserted.Url,
		Message: "published",
	}
}

// tokenSource builds an auto-refreshing token source for the account, or
// the legacy connection when account is nil.
func (c *Client) tokenSource(ctx context.Context, account *models.Account) (string, oauth2.TokenSource, error) {
	var (
		blogID string
		conf   *oauth2.Config
		token  *oauth2.Token
	)

	if account != nil {
		if account.RefreshToken == "" {
			return "", nil, fmt.Errorf("account %d has no refresh token", account.ID)
		}
		blogID = account.BlogID
		conf = &oauth2.Config{
			ClientID:     account.ClientID,
			ClientSecret: account.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{bloggerapi.BloggerScope},
		}
		token = account.OAuth2Token()
	} else {
		if c.legacy.RefreshToken == "" {
			return "", nil, fmt.Errorf("no account given and no legacy blogger connection configured")
		}
		blogID = c.legacy.BlogID
		conf = &oauth2.Config{
			ClientID:     c.legacy.ClientID,
			ClientSecret: c.legacy.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{bloggerapi.BloggerScope},
		}
		token = &oauth2.Token{RefreshToken: c.legacy.RefreshToken}
	}

	return blogID, conf.TokenSource(ctx, token), nil
}

// persistToken writes the current access token back onto the account row.
// The account is re-read first so a concurrent mutation is not clobbered.
func (c *Client) persistToken(ctx context.Context, accountID uint, ts oauth2.TokenSource) {
	tok, err := ts.Token()
	if err != nil {
		return
	}

	current, err := c.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		c.log.Warn().Err(err).Uint("account_id", accountID).Msg("Failed to re-read account for token save")
		return
	}
	current.ApplyToken(tok)
	if err := c.repo.UpdateAccount(ctx, current); err != nil {
		c.log.Warn().Err(err).Uint("account_id", accountID).Msg("Failed to save refreshed token")
	}
}

// renderContent assembles the final HTML: cover image, optional ad
// snippets, article body.
func renderContent(post *models.Post, account *models.Account) string {
	var b strings.Builder

	if account != nil && account.AdsHeaderCode != "" {
		b.WriteString(account.AdsHeaderCode)
		b.WriteString("\n")
	}

	if post.ImageURL != "" {
		fmt.Fprintf(&b, `<p><img src="%s" alt="%s" style="max-width:100%%;height:auto;"/></p>`+"\n",
			post.ImageURL, post.Title)
	}

	content := post.Content
	if account != nil && account.AdsInlineCode != "" {
		// Inject the inline ad after the first closing paragraph
		if idx := strings.Index(content, "</p>"); idx != -1 {
			content = content[:idx+4] + "\n" + account.AdsInlineCode + "\n" + content[idx+4:]
		} else {
			content += "\n" + account.AdsInlineCode
		}
	}
	b.WriteString(content)

	return b.String()
}
