// Package research finds a trending topic for a niche and claims it in
// the topic lock so concurrent account runs never pick the same story.
package research

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/blogger-agent/internal/ai"
	"github.com/blogger-agent/internal/config"
	"github.com/blogger-agent/internal/models"
	"github.com/blogger-agent/internal/storage"
	"github.com/blogger-agent/internal/topic"
	"github.com/blogger-agent/pkg/logger"
	"github.com/blogger-agent/pkg/ratelimit"
)

// ErrNoUniqueTopic means every viable candidate is already locked by a
// concurrent account run. The pipeline aborts rather than publish a
// likely duplicate.
var ErrNoUniqueTopic = errors.New("no unique topic available: all candidates locked by concurrent runs")

// ErrNoCandidates means the feeds produced nothing usable for the niche
var ErrNoCandidates = errors.New("no topic candidates found for niche")

// Result is the outcome of a research pass
type Result struct {
	ResearchID               uint
	Topic                    string
	SourceURL                string
	Summary                  string
	WhyTrending              string
	FomoHook                 string
	Sources                  []string
	SearchQueries            []string
	Keywords                 []string
	TotalSourcesFound        int
	TopicCandidatesGenerated int
	NicheConfirmed           bool
}

// Provider researches trending topics for a niche via Google News RSS,
// filters out used and contended topics and records a TrendingResearch
// row for the winner.
type Provider struct {
	cfg         config.ResearchConfig
	repo        storage.Repository
	lock        *topic.LockService
	aiClient    *ai.Client
	parser      *gofeed.Parser
	rateLimiter *ratelimit.MultiLimiter
	threshold   float64
	log         *logger.Logger
}

// NewProvider creates a research provider. aiClient may be nil; ranking
// then falls back to feed order.
func NewProvider(
	cfg config.ResearchConfig,
	repo storage.Repository,
	lock *topic.LockService,
	aiClient *ai.Client,
	limiter *ratelimit.MultiLimiter,
	threshold float64,
	log *logger.Logger,
) *Provider {
	if threshold <= 0 {
		threshold = topic.DefaultThreshold
	}
	return &Provider{
		cfg:         cfg,
		repo:        repo,
		lock:        lock,
		aiClient:    aiClient,
		parser:      gofeed.NewParser(),
		rateLimiter: limiter,
		threshold:   threshold,
		log:         log.WithComponent("research"),
	}
}

type candidate struct {
	title    string
	url      string
	source   string
	summary  string
	score    float64
	whyTrend string
	fomoHook string
}

// Research selects and locks one trending topic for the niche. The
// accountID is required so lock contention is attributed correctly.
func (p *Provider) Research(ctx context.Context, nicheID string, accountID uint) (*Result, error) {
	niche, err := p.repo.GetNiche(ctx, nicheID)
	if err != nil {
		return nil, fmt.Errorf("unknown niche %q: %w", nicheID, err)
	}

	log := p.log.WithNiche(nicheID)

	queries := p.buildQueries(niche)
	candidates, err := p.fetchCandidates(ctx, queries)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("candidates", len(candidates)).
		Int("queries", len(queries)).
		Msg("Fetched topic candidates")

	// Drop anything already published for this niche or globally
	nicheUsed, err := p.repo.ListUsedTopics(ctx, nicheID)
	if err != nil {
		return nil, fmt.Errorf("failed to load used topics: %w", err)
	}
	globalUsed, err := p.repo.ListAllUsedTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load global used topics: %w", err)
	}

	fresh := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if topic.IsUsed(c.title, nicheUsed, p.threshold) || topic.IsUsed(c.title, globalUsed, p.threshold) {
			continue
		}
		fresh = append(fresh, c)
	}

	log.Info().
		Int("fresh", len(fresh)).
		Int("filtered_as_used", len(candidates)-len(fresh)).
		Msg("Filtered used topics")

	if len(fresh) == 0 {
		return nil, ErrNoCandidates
	}

	if len(fresh) > p.cfg.MaxCandidates && p.cfg.MaxCandidates > 0 {
		fresh = fresh[:p.cfg.MaxCandidates]
	}

	p.rankCandidates(ctx, niche, fresh)

	// Best-first: claim the first candidate the lock grants. A denial
	// means a concurrent account run holds the same story.
	for i := range fresh {
		c := &fresh[i]
		if !p.lock.TryLock(c.title, accountID, c.url) {
			log.Info().
				Str("title", c.title).
				Msg("Candidate contended, trying next")
			continue
		}

		return p.record(ctx, niche, c, queries, len(candidates))
	}

	return nil, ErrNoUniqueTopic
}

// buildQueries derives search queries from the niche keywords
func (p *Provider) buildQueries(niche *models.Niche) []string {
	if len(niche.Keywords) == 0 {
		return []string{niche.Name}
	}
	queries := make([]string, 0, len(niche.Keywords))
	for _, kw := range niche.Keywords {
		queries = append(queries, kw)
	}
	return queries
}

// fetchCandidates pulls Google News RSS results for every query
func (p *Provider) fetchCandidates(ctx context.Context, queries []string) ([]candidate, error) {
	seen := make(map[string]struct{})
	var out []candidate

	for _, query := range queries {
		if err := p.rateLimiter.Wait(ctx, ratelimit.LimiterResearch); err != nil {
			return nil, fmt.Errorf("rate limit error: %w", err)
		}

		feedURL := fmt.Sprintf("%s?q=%s&hl=%s", p.cfg.FeedBaseURL, url.QueryEscape(query), p.cfg.Language)
		feed, err := p.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			p.log.Warn().Err(err).Str("query", query).Msg("Feed fetch failed, skipping query")
			continue
		}

		for _, item := range feed.Items {
			// Skip stale items; trending means recent
			if item.PublishedParsed != nil && time.Since(*item.PublishedParsed) > 48*time.Hour {
				continue
			}
			title := cleanTitle(item.Title)
			if title == "" {
				continue
			}
			if _, dup := seen[item.Link]; dup {
				continue
			}
			seen[item.Link] = struct{}{}

			source := ""
			if item.Author != nil {
				source = item.Author.Name
			}
			out = append(out, candidate{
				title:   title,
				url:     item.Link,
				source:  source,
				summary: strings.TrimSpace(item.Description),
			})
		}
	}

	if len(out) == 0 {
		return nil, ErrNoCandidates
	}
	return out, nil
}

// rankCandidates sorts candidates best-first, via the AI ranker when
// configured, otherwise keeping feed order.
func (p *Provider) rankCandidates(ctx context.Context, niche *models.Niche, candidates []candidate) {
	if !p.cfg.RankWithAI || p.aiClient == nil {
		return
	}

	aiCandidates := make([]ai.Candidate, len(candidates))
	for i, c := range candidates {
		aiCandidates[i] = ai.Candidate{Title: c.title, Source: c.source, URL: c.url}
	}

	rankings, err := p.aiClient.RankCandidates(ctx, niche.Name, niche.Description, aiCandidates)
	if err != nil {
		p.log.Warn().Err(err).Msg("Candidate ranking failed, using feed order")
		return
	}

	for _, r := range rankings {
		candidates[r.Index].score = r.Score
		candidates[r.Index].whyTrend = r.WhyTrending
		candidates[r.Index].fomoHook = r.FomoHook
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
}

// record persists the TrendingResearch row for the locked winner
func (p *Provider) record(ctx context.Context, niche *models.Niche, c *candidate, queries []string, totalFound int) (*Result, error) {
	research := &models.TrendingResearch{
		Title:         c.title,
		Summary:       c.summary,
		Analysis:      c.whyTrend,
		Sources:       models.StringSlice{c.url},
		SearchQueries: models.StringSlice(queries),
		Keywords:      niche.Keywords,
		NicheID:       niche.ID,
		Status:        models.ResearchStatusPending,
	}
	if err := p.repo.CreateResearch(ctx, research); err != nil {
		return nil, fmt.Errorf("failed to save research record: %w", err)
	}

	p.log.Info().
		Str("topic", c.title).
		Uint("research_id", research.ID).
		Msg("Topic selected and locked")

	return &Result{
		ResearchID:               research.ID,
		Topic:                    c.title,
		SourceURL:                c.url,
		Summary:                  c.summary,
		WhyTrending:              c.whyTrend,
		FomoHook:                 c.fomoHook,
		Sources:                  []string{c.url},
		SearchQueries:            queries,
		Keywords:                 []string(niche.Keywords),
		TotalSourcesFound:        totalFound,
		TopicCandidatesGenerated: len(queries),
		NicheConfirmed:           true,
	}, nil
}

// cleanTitle strips the " - Publisher" suffix Google News appends
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		title = title[:idx]
	}
	return strings.TrimSpace(title)
}
