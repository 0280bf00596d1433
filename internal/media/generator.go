// Package media turns an image prompt into a hosted image URL: an image
// is generated from the prompt, then re-hosted on ImgBB so the blog post
// embeds a stable link.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/blogger-agent/internal/config"
	"github.com/blogger-agent/pkg/logger"
	"github.com/blogger-agent/pkg/ratelimit"
)

// ErrImageUnavailable means no usable image could be produced after all
// internal attempts. The pipeline treats this as a hard abort: a post
// without an image is incomplete inventory.
var ErrImageUnavailable = errors.New("image generation failed after all attempts")

// Generator fetches generated images and re-hosts them
type Generator struct {
	cfg         config.MediaConfig
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewGenerator creates an image generator client
func NewGenerator(cfg config.MediaConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Generator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	return &Generator{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		rateLimiter: limiter,
		log:         log.WithComponent("media"),
	}
}

// Generate produces a hosted image URL for the prompt, retrying
// internally up to the configured attempt bound.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("empty image prompt")
	}

	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if err := g.rateLimiter.Wait(ctx, ratelimit.LimiterImage); err != nil {
			return "", fmt.Errorf("rate limit error: %w", err)
		}

		hostedURL, err := g.generateOnce(ctx, prompt)
		if err == nil {
			g.log.Info().
				Str("url", hostedURL).
				Int("attempt", attempt).
				Msg("Image generated and hosted")
			return hostedURL, nil
		}

		lastErr = err
		g.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", g.cfg.MaxAttempts).
			Msg("Image attempt failed")

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("%w: %v", ErrImageUnavailable, lastErr)
}

// generateOnce fetches one image and uploads it
func (g *Generator) generateOnce(ctx context.Context, prompt string) (string, error) {
	imageData, err := g.fetchImage(ctx, prompt)
	if err != nil {
		return "", err
	}
	return g.upload(ctx, imageData)
}

// fetchImage requests a generated image for the prompt
func (g *Generator) fetchImage(ctx context.Context, prompt string) ([]byte, error) {
	imageURL := fmt.Sprintf("%s/%s?width=%d&height=%d&nologo=true",
		g.cfg.GeneratorBaseURL, url.PathEscape(prompt), g.cfg.Width, g.cfg.Height)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("image generator returned %s: %s", resp.Status, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image generator returned empty body")
	}
	return data, nil
}

type imgbbResponse struct {
	Data struct {
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
}

// upload pushes image bytes to ImgBB and returns the hosted URL
func (g *Generator) upload(ctx context.Context, imageData []byte) (string, error) {
	if g.cfg.ImgBBAPIKey == "" {
		return "", fmt.Errorf("imgbb api key not configured")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "cover.jpg")
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return "", fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload form: %w", err)
	}

	uploadURL := fmt.Sprintf("%s?key=%s", g.cfg.ImgBBUploadURL, url.QueryEscape(g.cfg.ImgBBAPIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("image host returned %s: %s", resp.Status, string(body))
	}

	var parsed imgbbResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if !parsed.Success || parsed.Data.URL == "" {
		return "", fmt.Errorf("image host rejected upload (status %d)", parsed.Status)
	}

	return parsed.Data.URL, nil
}
