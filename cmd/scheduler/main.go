package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blogger-agent/internal/ai"
	"github.com/blogger-agent/internal/api"
	"github.com/blogger-agent/internal/config"
	"github.com/blogger-agent/internal/media"
	"github.com/blogger-agent/internal/notify"
	"github.com/blogger-agent/internal/pipeline"
	"github.com/blogger-agent/internal/publish"
	"github.com/blogger-agent/internal/publish/blogger"
	"github.com/blogger-agent/internal/publish/tumblr"
	"github.com/blogger-agent/internal/publish/x"
	"github.com/blogger-agent/internal/research"
	"github.com/blogger-agent/internal/scheduler"
	"github.com/blogger-agent/internal/storage/sqlite"
	"github.com/blogger-agent/internal/topic"
	"github.com/blogger-agent/pkg/logger"
	"github.com/blogger-agent/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "blogger-scheduler",
		Short: "Background scheduler for the blog publishing agent",
		Long: `Runs scheduled research and publishing pipelines in the background.
This daemon should be run as a service for autonomous operation.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting Blogger Agent Scheduler")

	// Initialize storage
	repo, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize rate limiter
	limiter := ratelimit.NewDefaultLimiter()

	// Initialize AI client
	aiClient := ai.NewClient(cfg.Anthropic, limiter, log)

	// Topic lock shared by all per-account research runs
	lock := topic.NewLockService(cfg.Pipeline.LockTTL, cfg.Pipeline.SimilarityThreshold, log)

	// Research provider (Google News via RSS, AI-ranked)
	var rankClient *ai.Client
	if cfg.Research.RankWithAI {
		rankClient = aiClient
	}
	researcher := research.NewProvider(cfg.Research, repo, lock, rankClient, limiter, cfg.Pipeline.SimilarityThreshold, log)

	// Image generation and hosting
	images := media.NewGenerator(cfg.Media, limiter, log)

	// Publishing adapters
	bloggerPub := blogger.NewClient(cfg.Blogger, repo, limiter, log)
	crossPosters := []publish.CrossPoster{
		tumblr.NewClient(limiter, log),
		x.NewClient(limiter, log),
	}

	// Operator notifications (optional)
	var notifier pipeline.Notifier
	if nc := notify.NewClient(cfg.Notify, log); nc != nil {
		notifier = nc
	}

	// Pipeline runner
	runner := pipeline.NewRunner(
		repo,
		researcher,
		aiClient,
		images,
		bloggerPub,
		crossPosters,
		notifier,
		cfg.Pipeline,
		cfg.Blogger.NicheID,
		log,
	)

	// Cron scheduler driven by stored schedules
	sched := scheduler.New(repo, runner, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info().Int("triggers", sched.TriggerCount()).Msg("Scheduler started")

	// Admin API
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API.Addr, repo, sched, runner, log)
		go func() {
			if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("API server failed")
			}
		}()
		log.Info().Str("addr", cfg.API.Addr).Msg("Admin API started")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down scheduler")
	cancel()
	sched.Stop()

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown failed")
		}
	}

	return nil
}
