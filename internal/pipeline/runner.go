package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blogger-agent/internal/ai"
	"github.com/blogger-agent/internal/config"
	"github.com/blogger-agent/internal/models"
	"github.com/blogger-agent/internal/publish"
	"github.com/blogger-agent/internal/research"
	"github.com/blogger-agent/internal/storage"
	"github.com/blogger-agent/pkg/logger"
)

// Trigger describes why a run starts: a fired schedule or a manual
// invocation. Manual runs go through the same bounded pipeline.
type Trigger struct {
	ScheduleID *uint
	AccountID  *uint
	NicheID    string
	Manual     bool
}

// RunResult is the structured outcome of one pipeline run. Failures are
// values here, never panics escaping into the scheduler.
type RunResult struct {
	RunID   string
	Stage   Stage
	Topic   string
	Post    *models.Post
	Err     error
	Elapsed time.Duration
}

// Failed reports whether the run terminated before Done
func (r *RunResult) Failed() bool {
	return r.Err != nil
}

// Runner executes the publishing pipeline: ResolveAccount → ResearchTopic
// → GenerateContent → GenerateImage → SaveDraft → Publish → CrossPost.
// Stages are linear; each either advances or terminates the run.
type Runner struct {
	repo         storage.Repository
	research     ResearchProvider
	generator    ContentGenerator
	images       ImageGenerator
	blogger      publish.Publisher
	crossPosters map[models.Platform]publish.CrossPoster
	notifier     Notifier
	cfg          config.PipelineConfig
	legacyNiche  string
	log          *logger.Logger

	// Per-account overlap guard: a trigger firing while the same
	// account's previous run is still executing is skipped. Key 0 is the
	// legacy no-account connection.
	mu       sync.Mutex
	inFlight map[uint]struct{}
}

// NewRunner wires the pipeline. notifier may be nil.
func NewRunner(
	repo storage.Repository,
	researchProvider ResearchProvider,
	generator ContentGenerator,
	images ImageGenerator,
	bloggerPub publish.Publisher,
	crossPosters []publish.CrossPoster,
	notifier Notifier,
	cfg config.PipelineConfig,
	legacyNiche string,
	log *logger.Logger,
) *Runner {
	cpMap := make(map[models.Platform]publish.CrossPoster, len(crossPosters))
	for _, cp := range crossPosters {
		cpMap[cp.Platform()] = cp
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 2 * time.Minute
	}
	return &Runner{
		repo:         repo,
		research:     researchProvider,
		generator:    generator,
		images:       images,
		blogger:      bloggerPub,
		crossPosters: cpMap,
		notifier:     notifier,
		cfg:          cfg,
		legacyNiche:  legacyNiche,
		log:          log.WithComponent("pipeline"),
		inFlight:     make(map[uint]struct{}),
	}
}

// Run executes one full pipeline pass. It never panics and never returns
// a raw provider error: every outcome is folded into the RunResult.
func (r *Runner) Run(ctx context.Context, trigger Trigger) *RunResult {
	start := time.Now()
	result := &RunResult{
		RunID: uuid.NewString(),
		Stage: StageResolveAccount,
	}
	log := r.log.WithRunID(result.RunID)

	defer func() {
		result.Elapsed = time.Since(start)
		if rec := recover(); rec != nil {
			result.Err = fmt.Errorf("pipeline panic: %v", rec)
			log.Error().Interface("panic", rec).Msg("Pipeline run panicked")
		}
	}()

	// ResolveAccount
	account, nicheID, err := r.resolveAccount(ctx, trigger)
	if err != nil {
		result.Err = err
		log.Error().Err(err).Msg("Run aborted at account resolution")
		return result
	}

	var guardKey uint
	if account != nil {
		guardKey = account.ID
		log = log.WithAccount(account.ID, account.Name)
	}
	if !r.acquire(guardKey) {
		result.Err = ErrRunInProgress
		log.Warn().Msg("Skipping run: previous run for this account still in progress")
		return result
	}
	defer r.release(guardKey)

	log = log.WithNiche(nicheID)
	log.Info().Bool("manual", trigger.Manual).Msg("Pipeline run started")

	// ResearchTopic
	result.Stage = StageResearchTopic
	rr, err := r.researchTopic(ctx, nicheID, guardKey)
	if err != nil {
		result.Err = err
		if errors.Is(err, research.ErrNoUniqueTopic) {
			// Lock contention, not provider failure: a concurrent account
			// holds every viable candidate. Refusing beats duplicating.
			log.Warn().Msg("Run aborted: no unique topic available")
		} else {
			log.Error().Err(err).Msg("Run aborted at topic research")
		}
		return result
	}
	result.Topic = rr.Topic
	log.Info().Str("topic", rr.Topic).Msg("Topic selected")

	// GenerateContent
	result.Stage = StageGenerateContent
	content, err := r.generateContent(ctx, nicheID, rr)
	if err != nil {
		result.Err = fmt.Errorf("content generation failed: %w", err)
		log.Error().Err(err).Msg("Run aborted at content generation")
		return result
	}

	// GenerateImage: mandatory, and it runs before any draft is
	// persisted - an aborted run leaves no partial Post behind.
	result.Stage = StageGenerateImage
	imageURL, err := r.generateImage(ctx, content.ImagePrompt)
	if err != nil {
		result.Err = fmt.Errorf("image generation failed: %w", err)
		log.Error().Err(err).Msg("Run aborted at image generation")
		return result
	}

	// SaveDraft
	result.Stage = StageSaveDraft
	post := &models.Post{
		Title:    content.Title,
		Content:  content.Content,
		Excerpt:  content.Excerpt,
		Topic:    rr.Topic,
		NicheID:  nicheID,
		ImageURL: imageURL,
		Labels:   models.StringSlice(content.Labels),
		Status:   models.PostStatusDraft,
	}
	if account != nil {
		post.AccountID = &account.ID
	}
	if err := r.repo.CreatePost(ctx, post); err != nil {
		result.Err = fmt.Errorf("failed to save draft: %w", err)
		log.Error().Err(err).Msg("Run aborted saving draft")
		return result
	}
	result.Post = post
	log = log.WithPostID(post.ID)
	log.Info().Msg("Draft saved")

	// Publish
	result.Stage = StagePublish
	pubResult := publish.WithRetry(ctx, r.blogger, post, account,
		r.cfg.PublishAttempts, r.cfg.PublishBackoff, log)
	if !pubResult.Success {
		post.Status = models.PostStatusFailed
		post.ErrorMessage = pubResult.Message
		if err := r.repo.UpdatePost(ctx, post); err != nil {
			log.Error().Err(err).Msg("Failed to record publish failure")
		}
		result.Err = fmt.Errorf("publish failed: %s", pubResult.Message)
		log.Error().Str("message", pubResult.Message).Msg("Run ended: publish failed, cross-posting skipped")
		r.notify(ctx, fmt.Sprintf("❌ Publish failed: %s (%s)", post.Title, pubResult.Message))
		return result
	}

	now := time.Now()
	post.Status = models.PostStatusPublished
	post.BloggerPostID = pubResult.PostID
	post.BloggerURL = pubResult.PostURL
	post.PublishedAt = &now
	if err := r.repo.UpdatePost(ctx, post); err != nil {
		log.Error().Err(err).Msg("Failed to record publish success")
	}
	log.Info().Str("url", pubResult.PostURL).Msg("Post published")

	r.recordTopicUsed(ctx, rr, nicheID, post, log)

	// CrossPost: only after a successful Blogger publish, and only where
	// an active connection exists. Failures never revert the publish.
	result.Stage = StageCrossPost
	if account != nil {
		r.crossPost(ctx, post, account, log)
	}

	result.Stage = StageDone
	log.Info().Dur("elapsed", time.Since(start)).Msg("Pipeline run completed")
	r.notify(ctx, fmt.Sprintf("✅ Published: %s\n%s", post.Title, post.BloggerURL))
	return result
}

// resolveAccount loads and validates the run's account and niche. A nil
// account means the legacy single-blog connection.
func (r *Runner) resolveAccount(ctx context.Context, trigger Trigger) (*models.Account, string, error) {
	if trigger.AccountID == nil {
		nicheID := trigger.NicheID
		if nicheID == "" {
			nicheID = r.legacyNiche
		}
		if nicheID == "" {
			return nil, "", ErrNicheMissing
		}
		return nil, nicheID, nil
	}

	account, err := r.repo.GetAccountByID(ctx, *trigger.AccountID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: id %d", ErrAccountNotFound, *trigger.AccountID)
	}
	if !account.IsConnected {
		return nil, "", fmt.Errorf("%w: %s", ErrAccountNotConnected, account.Name)
	}

	nicheID := trigger.NicheID
	if nicheID == "" {
		nicheID = account.NicheID
	}
	if nicheID == "" {
		return nil, "", fmt.Errorf("%w: account %s", ErrNicheMissing, account.Name)
	}
	return account, nicheID, nil
}

func (r *Runner) researchTopic(ctx context.Context, nicheID string, accountID uint) (*research.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.StageTimeout)
	defer cancel()
	return r.research.Research(ctx, nicheID, accountID)
}

func (r *Runner) generateContent(ctx context.Context, nicheID string, rr *research.Result) (*ai.GeneratedContent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.StageTimeout)
	defer cancel()

	req := ai.GenerateRequest{
		Topic:    rr.Topic,
		FomoHook: rr.FomoHook,
		Summary:  rr.Summary,
		Facts:    rr.Sources,
	}
	if niche, err := r.repo.GetNiche(ctx, nicheID); err == nil {
		req.NicheName = niche.Name
		req.WritingTone = niche.WritingTone
	}
	return r.generator.GenerateArticle(ctx, req)
}

func (r *Runner) generateImage(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.StageTimeout)
	defer cancel()
	return r.images.Generate(ctx, prompt)
}

// recordTopicUsed appends the topic to the used history and sets the
// research record's back-reference to the produced post.
func (r *Runner) recordTopicUsed(ctx context.Context, rr *research.Result, nicheID string, post *models.Post, log *logger.Logger) {
	if err := r.repo.AppendUsedTopic(ctx, nicheID, rr.Topic); err != nil {
		log.Warn().Err(err).Msg("Failed to append used topic")
	}

	record, err := r.repo.GetResearchByID(ctx, rr.ResearchID)
	if err != nil {
		log.Warn().Err(err).Uint("research_id", rr.ResearchID).Msg("Failed to load research record")
		return
	}
	record.Status = models.ResearchStatusPublished
	record.PostID = &post.ID
	if err := r.repo.UpdateResearch(ctx, record); err != nil {
		log.Warn().Err(err).Msg("Failed to update research record")
	}
}

// crossPost mirrors the post to every active connection of the account.
// Tumblr first, then X; each failure is logged and swallowed.
func (r *Runner) crossPost(ctx context.Context, post *models.Post, account *models.Account, log *logger.Logger) {
	conns, err := r.repo.ListConnections(ctx, account.ID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load cross-post connections")
		return
	}

	ordered := []models.Platform{models.PlatformTumblr, models.PlatformX}
	for _, platform := range ordered {
		conn := findConnection(conns, platform)
		if conn == nil {
			continue
		}
		cp, ok := r.crossPosters[platform]
		if !ok {
			continue
		}

		cpCtx, cancel := context.WithTimeout(ctx, r.cfg.StageTimeout)
		res := cp.Publish(cpCtx, post, conn)
		cancel()

		if !res.Success {
			log.Warn().
				Str("platform", string(platform)).
				Str("message", res.Message).
				Msg("Cross-post failed (non-fatal)")
			continue
		}

		switch platform {
		case models.PlatformTumblr:
			post.TumblrPostID = res.PostID
		case models.PlatformX:
			post.XPostID = res.PostID
		}
		if err := r.repo.UpdatePost(ctx, post); err != nil {
			log.Warn().Err(err).Str("platform", string(platform)).Msg("Failed to record cross-post ID")
		}
		log.Info().
			Str("platform", string(platform)).
			Str("url", res.PostURL).
			Msg("Cross-posted")
	}
}

func findConnection(conns []*models.Connection, platform models.Platform) *models.Connection {
	for _, conn := range conns {
		if conn.Platform == platform && conn.IsActive {
			return conn
		}
	}
	return nil
}

func (r *Runner) notify(ctx context.Context, message string) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(ctx, message)
}

func (r *Runner) acquire(accountKey uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[accountKey]; busy {
		return false
	}
	r.inFlight[accountKey] = struct{}{}
	return true
}

func (r *Runner) release(accountKey uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, accountKey)
}
