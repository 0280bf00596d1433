// Package notify delivers best-effort WhatsApp notifications through the
// CallMeBot gateway. Delivery failures are logged, never surfaced.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/blogger-agent/internal/config"
	"github.com/blogger-agent/pkg/logger"
)

// Client sends WhatsApp messages
type Client struct {
	cfg        config.NotifyConfig
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a notifier; returns nil when notifications are
// disabled so callers can skip wiring entirely.
func NewClient(cfg config.NotifyConfig, log *logger.Logger) *Client {
	if !cfg.Enabled || cfg.Phone == "" || cfg.APIKey == "" {
		return nil
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log.WithComponent("notify"),
	}
}

// Notify sends one message. Errors are swallowed after logging.
func (c *Client) Notify(ctx context.Context, message string) {
	endpoint := fmt.Sprintf("%s?phone=%s&apikey=%s&text=%s",
		c.cfg.BaseURL,
		url.QueryEscape(c.cfg.Phone),
		url.QueryEscape(c.cfg.APIKey),
		url.QueryEscape(message),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to build notification request")
		return
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("Notification delivery failed")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Msg("Notification gateway returned non-200")
		return
	}
	c.log.Debug().Msg("Notification sent")
}
