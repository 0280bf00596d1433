package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	bloggerapi "google.golang.org/api/blogger/v3"

	"github.com/blogger-agent/internal/ai"
	"github.com/blogger-agent/internal/config"
	"github.com/blogger-agent/internal/media"
	"github.com/blogger-agent/internal/models"
	"github.com/blogger-agent/internal/notify"
	"github.com/blogger-agent/internal/pipeline"
	"github.com/blogger-agent/internal/publish"
	"github.com/blogger-agent/internal/publish/blogger"
	"github.com/blogger-agent/internal/publish/tumblr"
	"github.com/blogger-agent/internal/publish/x"
	"github.com/blogger-agent/internal/research"
	"github.com/blogger-agent/internal/storage"
	"github.com/blogger-agent/internal/storage/sqlite"
	"github.com/blogger-agent/internal/topic"
	"github.com/blogger-agent/pkg/logger"
	"github.com/blogger-agent/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "blogger-agent",
		Short: "Autonomous blog publishing agent powered by AI",
		Long: `An autonomous agent that researches trending topics, writes articles
with Claude AI, publishes them to Blogger and cross-posts to Tumblr and X.`,
		PersistentPreRunE: initializeApp,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(publishCmd())
	rootCmd.AddCommand(schedulesCmd())
	rootCmd.AddCommand(accountsCmd())
	rootCmd.AddCommand(connectionsCmd())
	rootCmd.AddCommand(postsCmd())
	rootCmd.AddCommand(nichesCmd())
	rootCmd.AddCommand(researchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	// Initialize storage
	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// buildRunner wires the full pipeline the same way the daemon does
func buildRunner() *pipeline.Runner {
	limiter := ratelimit.NewDefaultLimiter()
	aiClient := ai.NewClient(cfg.Anthropic, limiter, log)

	lock := topic.NewLockService(cfg.Pipeline.LockTTL, cfg.Pipeline.SimilarityThreshold, log)

	var rankClient *ai.Client
	if cfg.Research.RankWithAI {
		rankClient = aiClient
	}
	researcher := research.NewProvider(cfg.Research, repo, lock, rankClient, limiter, cfg.Pipeline.SimilarityThreshold, log)

	images := media.NewGenerator(cfg.Media, limiter, log)
	bloggerPub := blogger.NewClient(cfg.Blogger, repo, limiter, log)
	crossPosters := []publish.CrossPoster{
		tumblr.NewClient(limiter, log),
		x.NewClient(limiter, log),
	}

	var notifier pipeline.Notifier
	if nc := notify.NewClient(cfg.Notify, log); nc != nil {
		notifier = nc
	}

	return pipeline.NewRunner(
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
}

// ============ PUBLISH COMMANDS ============

func publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publishing commands",
	}

	cmd.AddCommand(publishNowCmd())
	return cmd
}

func publishNowCmd() *cobra.Command {
	var nicheID string
	var accountID uint

	cmd := &cobra.Command{
		Use:   "now",
		Short: "Run the full research-and-publish pipeline immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			runner := buildRunner()

			trigger := pipeline.Trigger{NicheID: nicheID, Manual: true}
			if accountID != 0 {
				id := accountID
				trigger.AccountID = &id
			}

			result := runner.Run(ctx, trigger)

			fmt.Printf("\n=== Pipeline Run ===\n")
			fmt.Printf("Run ID:  %s\n", result.RunID)
			fmt.Printf("Stage:   %s\n", result.Stage)
			fmt.Printf("Elapsed: %s\n", result.Elapsed)

			if result.Failed() {
				fmt.Printf("Error:   %s\n", result.Err)
				if result.Post != nil {
					fmt.Printf("Post:    #%d (%s)\n", result.Post.ID, result.Post.Status)
				}
				return fmt.Errorf("pipeline run failed at stage %s", result.Stage)
			}

			fmt.Printf("Topic:   %s\n", result.Topic)
			if result.Post != nil {
				fmt.Printf("Post:    #%d %s\n", result.Post.ID, result.Post.Title)
				fmt.Printf("Status:  %s\n", result.Post.Status)
				if result.Post.BloggerURL != "" {
					fmt.Printf("URL:     %s\n", result.Post.BloggerURL)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&nicheID, "niche", "", "Niche ID to publish for (defaults to the legacy blogger niche)")
	cmd.Flags().UintVar(&accountID, "account-id", 0, "Account to publish through (defaults to the legacy connection)")

	return cmd
}

// ============ SCHEDULE COMMANDS ============

func schedulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Daily schedule commands",
	}

	cmd.AddCommand(schedulesListCmd())
	cmd.AddCommand(schedulesAddCmd())
	cmd.AddCommand(schedulesToggleCmd())
	cmd.AddCommand(schedulesDeleteCmd())
	return cmd
}

func schedulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			schedules, err := repo.ListSchedules(context.Background())
			if err != nil {
				return err
			}

			if len(schedules) == 0 {
				fmt.Println("No schedules configured.")
				return nil
			}

			fmt.Printf("\n=== Schedules (%d) ===\n", len(schedules))
			for _, s := range schedules {
				state := "active"
				if !s.IsActive {
					state = "paused"
				}
				account := "legacy"
				if s.AccountID != nil {
					account = fmt.Sprintf("account #%d", *s.AccountID)
				}
				lastRun := "never"
				if s.LastRunAt != nil {
					lastRun = s.LastRunAt.Format("2006-01-02 15:04")
				}
				fmt.Printf("[%d] %s %s  niche=%s  %s  %s  last run: %s\n",
					s.ID, s.Time, s.Timezone, s.NicheID, account, state, lastRun)
			}
			return nil
		},
	}
}

func schedulesAddCmd() *cobra.Command {
	var timeOfDay, timezone, nicheID string
	var accountID uint

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a daily publish schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule := &models.Schedule{
				Time:     timeOfDay,
				Timezone: timezone,
				NicheID:  nicheID,
				IsActive: true,
			}
			if accountID != 0 {
				id := accountID
				schedule.AccountID = &id
			}

			if err := schedule.Validate(); err != nil {
				return err
			}
			if err := repo.CreateSchedule(context.Background(), schedule); err != nil {
				return err
			}

			fmt.Printf("Schedule #%d created: daily at %s %s\n", schedule.ID, schedule.Time, schedule.Timezone)
			fmt.Println("A running scheduler daemon arms the trigger within a minute.")
			return nil
		},
	}

	cmd.Flags().StringVar(&timeOfDay, "time", "", "Time of day, HH:MM 24h (required)")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "IANA timezone name")
	cmd.Flags().StringVar(&nicheID, "niche", "", "Niche ID to publish for")
	cmd.Flags().UintVar(&accountID, "account-id", 0, "Account to publish through")
	cmd.MarkFlagRequired("time")

	return cmd
}

func schedulesToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [schedule-id]",
		Short: "Activate or pause a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUintArg(args[0])
			if err != nil {
				return fmt.Errorf("invalid schedule ID: %w", err)
			}

			ctx := context.Background()
			schedule, err := repo.GetScheduleByID(ctx, id)
			if err != nil {
				return err
			}

			schedule.IsActive = !schedule.IsActive
			if err := repo.UpdateSchedule(ctx, schedule); err != nil {
				return err
			}

			state := "paused"
			if schedule.IsActive {
				state = "active"
			}
			fmt.Printf("Schedule #%d is now %s.\n", schedule.ID, state)
			return nil
		},
	}
}

func schedulesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [schedule-id]",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUintArg(args[0])
			if err != nil {
				return fmt.Errorf("invalid schedule ID: %w", err)
			}

			if err := repo.DeleteSchedule(context.Background(), id); err != nil {
				return err
			}
			fmt.Printf("Schedule #%d deleted.\n", id)
			return nil
		},
	}
}

// ============ ACCOUNT COMMANDS ============

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Blogger account commands",
	}

	cmd.AddCommand(accountsListCmd())
	cmd.AddCommand(accountsConnectCmd())
	cmd.AddCommand(accountsDeleteCmd())
	return cmd
}

func accountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connected accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := repo.ListAccounts(context.Background())
			if err != nil {
				return err
			}

			if len(accounts) == 0 {
				fmt.Println("No accounts connected.")
				return nil
			}

			fmt.Printf("\n=== Accounts (%d) ===\n", len(accounts))
			for _, a := range accounts {
				state := "connected"
				if !a.IsConnected {
					state = "disconnected"
				}
				fmt.Printf("[%d] %s  blog=%s  niche=%s  %s\n", a.ID, a.Name, a.BlogID, a.NicheID, state)
			}
			return nil
		},
	}
}

func accountsConnectCmd() *cobra.Command {
	var name, blogID, nicheID, clientID, clientSecret, refreshToken string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect a Blogger account with an OAuth refresh token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if _, err := repo.GetNiche(ctx, nicheID); err != nil {
				return fmt.Errorf("unknown niche %q: %w", nicheID, err)
			}

			// Validate the refresh token before storing the account
			conf := &oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{bloggerapi.BloggerScope},
			}
			tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
			if err != nil {
				return fmt.Errorf("refresh token validation failed: %w", err)
			}

			account := &models.Account{
				Name:         name,
				BlogID:       blogID,
				NicheID:      nicheID,
				ClientID:     clientID,
				ClientSecret: clientSecret,
				RefreshToken: refreshToken,
				IsConnected:  true,
			}
			account.ApplyToken(tok)

			if err := repo.CreateAccount(ctx, account); err != nil {
				return err
			}

			fmt.Printf("Account #%d (%s) connected to blog %s.\n", account.ID, account.Name, account.BlogID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&blogID, "blog-id", "", "Blogger blog ID (required)")
	cmd.Flags().StringVar(&nicheID, "niche", "", "Niche ID (required)")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth client ID (required)")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth client secret (required)")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "OAuth refresh token (required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("blog-id")
	cmd.MarkFlagRequired("niche")
	cmd.MarkFlagRequired("client-id")
	cmd.MarkFlagRequired("client-secret")
	cmd.MarkFlagRequired("refresh-token")

	return cmd
}

func accountsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [account-id]",
		Short: "Delete an account and its schedules and connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUintArg(args[0])
			if err != nil {
				return fmt.Errorf("invalid account ID: %w", err)
			}

			if err := repo.DeleteAccount(context.Background(), id); err != nil {
				return err
			}
			fmt.Printf("Account #%d deleted.\n", id)
			return nil
		},
	}
}

// ============ CONNECTION COMMANDS ============

func connectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Cross-post connection commands (Tumblr, X)",
	}

	cmd.AddCommand(connectionsListCmd())
	cmd.AddCommand(connectionsAddCmd())
	cmd.AddCommand(connectionsDeleteCmd())
	return cmd
}

func connectionsListCmd() *cobra.Command {
	var accountID uint

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cross-post connections for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			conns, err := repo.ListConnections(context.Background(), accountID)
			if err != nil {
				return err
			}

			if len(conns) == 0 {
				fmt.Println("No connections configured.")
				return nil
			}

			fmt.Printf("\n=== Connections (%d) ===\n", len(conns))
			for _, conn := range conns {
				state := "active"
				if !conn.IsActive {
					state = "inactive"
				}
				extra := ""
				if conn.Platform == models.PlatformTumblr {
					extra = "  blog=" + conn.BlogName
				}
				fmt.Printf("[%d] %s%s  %s\n", conn.ID, conn.Platform, extra, state)
			}
			return nil
		},
	}

	cmd.Flags().UintVar(&accountID, "account-id", 0, "Account ID (required)")
	cmd.MarkFlagRequired("account-id")

	return cmd
}

func connectionsAddCmd() *cobra.Command {
	var accountID uint
	var platform, consumerKey, consumerSecret, accessToken, accessSecret, blogName string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a Tumblr or X cross-post connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := models.Platform(strings.ToLower(platform))
			if p != models.PlatformTumblr && p != models.PlatformX {
				return fmt.Errorf("platform must be %q or %q", models.PlatformTumblr, models.PlatformX)
			}
			if p == models.PlatformTumblr && blogName == "" {
				return fmt.Errorf("--blog-name is required for tumblr connections")
			}

			conn := &models.Connection{
				AccountID:      accountID,
				Platform:       p,
				ConsumerKey:    consumerKey,
				ConsumerSecret: consumerSecret,
				AccessToken:    accessToken,
				AccessSecret:   accessSecret,
				BlogName:       blogName,
				IsActive:       true,
			}

			if err := repo.SaveConnection(context.Background(), conn); err != nil {
				return err
			}

			fmt.Printf("Connection #%d (%s) saved for account #%d.\n", conn.ID, conn.Platform, conn.AccountID)
			return nil
		},
	}

	cmd.Flags().UintVar(&accountID, "account-id", 0, "Account ID (required)")
	cmd.Flags().StringVar(&platform, "platform", "", "Platform: tumblr or x (required)")
	cmd.Flags().StringVar(&consumerKey, "consumer-key", "", "OAuth1 consumer key (required)")
	cmd.Flags().StringVar(&consumerSecret, "consumer-secret", "", "OAuth1 consumer secret (required)")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "OAuth1 access token (required)")
	cmd.Flags().StringVar(&accessSecret, "access-secret", "", "OAuth1 access token secret (required)")
	cmd.Flags().StringVar(&blogName, "blog-name", "", "Tumblr blog identifier")
	cmd.MarkFlagRequired("account-id")
	cmd.MarkFlagRequired("platform")
	cmd.MarkFlagRequired("consumer-key")
	cmd.MarkFlagRequired("consumer-secret")
	cmd.MarkFlagRequired("access-token")
	cmd.MarkFlagRequired("access-secret")

	return cmd
}

func connectionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [connection-id]",
		Short: "Delete a cross-post connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUintArg(args[0])
			if err != nil {
				return fmt.Errorf("invalid connection ID: %w", err)
			}

			if err := repo.DeleteConnection(context.Background(), id); err != nil {
				return err
			}
			fmt.Printf("Connection #%d deleted.\n", id)
			return nil
		},
	}
}

// ============ POST COMMANDS ============

func postsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Post inspection commands",
	}

	cmd.AddCommand(postsListCmd())
	cmd.AddCommand(postsShowCmd())
	return cmd
}

func postsListCmd() *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.DefaultPostFilter()
			filter.Limit = limit
			if status != "" {
				st := models.PostStatus(status)
				filter.Status = &st
			}

			posts, err := repo.ListPosts(context.Background(), filter)
			if err != nil {
				return err
			}

			if len(posts) == 0 {
				fmt.Println("No posts found.")
				return nil
			}

			fmt.Printf("\n=== Posts (%d) ===\n", len(posts))
			for _, p := range posts {
				fmt.Printf("[%d] %-10s %s\n", p.ID, p.Status, p.Title)
				if p.BloggerURL != "" {
					fmt.Printf("      %s\n", p.BloggerURL)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status: draft, scheduled, published, failed")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum posts to show")

	return cmd
}

func postsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [post-id]",
		Short: "Show one post in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUintArg(args[0])
			if err != nil {
				return fmt.Errorf("invalid post ID: %w", err)
			}

			post, err := repo.GetPostByID(context.Background(), id)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Post #%d ===\n", post.ID)
			fmt.Printf("Title:   %s\n", post.Title)
			fmt.Printf("Status:  %s\n", post.Status)
			fmt.Printf("Topic:   %s\n", post.Topic)
			fmt.Printf("Niche:   %s\n", post.NicheID)
			if len(post.Labels) > 0 {
				fmt.Printf("Labels:  %s\n", strings.Join(post.Labels, ", "))
			}
			if post.ImageURL != "" {
				fmt.Printf("Image:   %s\n", post.ImageURL)
			}
			if post.BloggerURL != "" {
				fmt.Printf("URL:     %s\n", post.BloggerURL)
			}
			if post.TumblrPostID != "" {
				fmt.Printf("Tumblr:  %s\n", post.TumblrPostID)
			}
			if post.XPostID != "" {
				fmt.Printf("X:       %s\n", post.XPostID)
			}
			if post.PublishedAt != nil {
				fmt.Printf("Published: %s\n", post.PublishedAt.Format("2006-01-02 15:04"))
			}
			if post.ErrorMessage != "" {
				fmt.Printf("Error:   %s\n", post.ErrorMessage)
			}
			fmt.Printf("\n--- Content ---\n%s\n", post.Content)
			return nil
		},
	}
}

// ============ NICHE COMMANDS ============

func nichesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "niches",
		Short: "Niche commands",
	}

	cmd.AddCommand(nichesListCmd())
	return cmd
}

func nichesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured niches",
		RunE: func(cmd *cobra.Command, args []string) error {
			niches, err := repo.ListNiches(context.Background())
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Niches (%d) ===\n", len(niches))
			for _, n := range niches {
				fmt.Printf("[%s] %s\n", n.ID, n.Name)
				fmt.Printf("      %s\n", n.Description)
			}
			return nil
		},
	}
}

// ============ RESEARCH COMMANDS ============

func researchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "research",
		Short: "Trending research inspection commands",
	}

	cmd.AddCommand(researchListCmd())
	return cmd
}

func researchListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent research records",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := repo.ListResearch(context.Background(), limit)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Println("No research records found.")
				return nil
			}

			fmt.Printf("\n=== Research (%d) ===\n", len(records))
			for _, r := range records {
				post := "-"
				if r.PostID != nil {
					post = fmt.Sprintf("post #%d", *r.PostID)
				}
				fmt.Printf("[%d] %-9s niche=%s  %s  %s\n", r.ID, r.Status, r.NicheID, r.Title, post)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum records to show")

	return cmd
}

func parseUintArg(raw string) (uint, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}
