package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogger-agent/internal/ai"
	"github.com/blogger-agent/internal/config"
	"github.com/blogger-agent/internal/models"
	"github.com/blogger-agent/internal/publish"
	"github.com/blogger-agent/internal/research"
	"github.com/blogger-agent/internal/storage"
	"github.com/blogger-agent/pkg/logger"
)

// fakeRepo is an in-memory storage.Repository for pipeline tests
type fakeRepo struct {
	mu          sync.Mutex
	accounts    map[uint]*models.Account
	niches      map[string]*models.Niche
	posts       map[uint]*models.Post
	research    map[uint]*models.TrendingResearch
	usedTopics  map[string][]string
	connections map[uint][]*models.Connection
	nextPostID  uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		accounts:    make(map[uint]*models.Account),
		niches:      make(map[string]*models.Niche),
		posts:       make(map[uint]*models.Post),
		research:    make(map[uint]*models.TrendingResearch),
		usedTopics:  make(map[string][]string),
		connections: make(map[uint][]*models.Connection),
	}
}

func (f *fakeRepo) CreateAccount(ctx context.Context, account *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeRepo) GetAccountByID(ctx context.Context, id uint) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return account, nil
}

func (f *fakeRepo) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeRepo) UpdateAccount(ctx context.Context, account *models.Account) error {
	return f.CreateAccount(ctx, account)
}

func (f *fakeRepo) DeleteAccount(ctx context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, id)
	delete(f.connections, id)
	return nil
}

func (f *fakeRepo) GetNiche(ctx context.Context, id string) (*models.Niche, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	niche, ok := f.niches[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return niche, nil
}

func (f *fakeRepo) ListNiches(ctx context.Context) ([]*models.Niche, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Niche, 0, len(f.niches))
	for _, n := range f.niches {
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeRepo) SaveNiche(ctx context.Context, niche *models.Niche) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.niches[niche.ID] = niche
	return nil
}

func (f *fakeRepo) CreateSchedule(ctx context.Context, schedule *models.Schedule) error { return nil }
func (f *fakeRepo) GetScheduleByID(ctx context.Context, id uint) (*models.Schedule, error) {
	return nil, errors.New("record not found")
}
func (f *fakeRepo) ListSchedules(ctx context.Context) ([]*models.Schedule, error) { return nil, nil }
func (f *fakeRepo) ListActiveSchedules(ctx context.Context) ([]*models.Schedule, error) {
	return nil, nil
}
func (f *fakeRepo) UpdateSchedule(ctx context.Context, schedule *models.Schedule) error { return nil }
func (f *fakeRepo) DeleteSchedule(ctx context.Context, id uint) error                   { return nil }

func (f *fakeRepo) CreatePost(ctx context.Context, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPostID++
	post.ID = f.nextPostID
	copied := *post
	f.posts[post.ID] = &copied
	return nil
}

func (f *fakeRepo) GetPostByID(ctx context.Context, id uint) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return post, nil
}

func (f *fakeRepo) ListPosts(ctx context.Context, filter storage.PostFilter) ([]*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Post, 0, len(f.posts))
	for _, p := range f.posts {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepo) UpdatePost(ctx context.Context, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *post
	f.posts[post.ID] = &copied
	return nil
}

func (f *fakeRepo) CreateResearch(ctx context.Context, r *models.TrendingResearch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == 0 {
		r.ID = uint(len(f.research) + 1)
	}
	f.research[r.ID] = r
	return nil
}

func (f *fakeRepo) GetResearchByID(ctx context.Context, id uint) (*models.TrendingResearch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.research[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return record, nil
}

func (f *fakeRepo) ListResearch(ctx context.Context, limit int) ([]*models.TrendingResearch, error) {
	return nil, nil
}

func (f *fakeRepo) UpdateResearch(ctx context.Context, r *models.TrendingResearch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.research[r.ID] = r
	return nil
}

func (f *fakeRepo) AppendUsedTopic(ctx context.Context, nicheID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usedTopics[nicheID] = append(f.usedTopics[nicheID], title)
	return nil
}

func (f *fakeRepo) ListUsedTopics(ctx context.Context, nicheID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usedTopics[nicheID], nil
}

func (f *fakeRepo) ListAllUsedTopics(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, topics := range f.usedTopics {
		out = append(out, topics...)
	}
	return out, nil
}

func (f *fakeRepo) SaveConnection(ctx context.Context, conn *models.Connection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connections[conn.AccountID] = append(f.connections[conn.AccountID], conn)
	return nil
}

func (f *fakeRepo) ListConnections(ctx context.Context, accountID uint) ([]*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connections[accountID], nil
}

func (f *fakeRepo) DeleteConnection(ctx context.Context, id uint) error { return nil }
func (f *fakeRepo) Close() error                                        { return nil }
func (f *fakeRepo) Migrate() error                                      { return nil }

func (f *fakeRepo) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

func (f *fakeRepo) firstPost() *models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		return p
	}
	return nil
}

// fakeResearch returns a fixed result or error; blockCh, when set, stalls
// the call until the channel closes so overlap behavior can be observed.
type fakeResearch struct {
	result  *research.Result
	err     error
	blockCh chan struct{}
	calls   int
}

func (f *fakeResearch) Research(ctx context.Context, nicheID string, accountID uint) (*research.Result, error) {
	f.calls++
	if f.blockCh != nil {
		<-f.blockCh
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeGenerator struct {
	content *ai.GeneratedContent
	err     error
}

func (f *fakeGenerator) GenerateArticle(ctx context.Context, req ai.GenerateRequest) (*ai.GeneratedContent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

type fakeImages struct {
	url   string
	err   error
	calls int
}

func (f *fakeImages) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakeBloggerPublisher struct {
	results []publish.Result
	calls   int
}

func (f *fakeBloggerPublisher) Publish(ctx context.Context, post *models.Post, account *models.Account) publish.Result {
	f.calls++
	if f.calls <= len(f.results) {
		return f.results[f.calls-1]
	}
	return publish.Failure("no result configured")
}

type fakeCrossPoster struct {
	platform models.Platform
	result   publish.Result
	calls    int
}

func (f *fakeCrossPoster) Platform() models.Platform { return f.platform }

func (f *fakeCrossPoster) Publish(ctx context.Context, post *models.Post, conn *models.Connection) publish.Result {
	f.calls++
	return f.result
}

func testConfig() config.PipelineConfig {
	return config.PipelineConfig{
		PublishAttempts:     3,
		PublishBackoff:      time.Millisecond,
		LockTTL:             5 * time.Minute,
		SimilarityThreshold: 0.5,
		StageTimeout:        time.Minute,
	}
}

func seedAccount(repo *fakeRepo) *models.Account {
	account := &models.Account{
		ID:          1,
		Name:        "Main Blog",
		BlogID:      "blog-123",
		NicheID:     "ai-tools",
		IsConnected: true,
	}
	repo.accounts[account.ID] = account
	repo.niches["ai-tools"] = &models.Niche{ID: "ai-tools", Name: "AI Tools", WritingTone: "practical"}
	return account
}

func seedResearch(repo *fakeRepo) *research.Result {
	record := &models.TrendingResearch{
		ID:      7,
		Title:   "New Model Released",
		NicheID: "ai-tools",
		Status:  models.ResearchStatusPending,
	}
	repo.research[record.ID] = record
	return &research.Result{
		ResearchID: record.ID,
		Topic:      "New Model Released",
		SourceURL:  "https://news.example.com/a",
		Summary:    "A new model shipped today.",
		FomoHook:   "Everyone is switching already.",
		Sources:    []string{"https://news.example.com/a"},
	}
}

func generated() *ai.GeneratedContent {
	return &ai.GeneratedContent{
		Title:       "The New Model, Explained",
		Content:     "<p>Full article body.</p>",
		Excerpt:     "What the release means.",
		Labels:      []string{"AI", "Tools"},
		ImagePrompt: "futuristic server room",
	}
}

func TestRunPublishesAndCrossPosts(t *testing.T) {
	repo := newFakeRepo()
	account := seedAccount(repo)
	repo.connections[account.ID] = []*models.Connection{
		{ID: 11, AccountID: account.ID, Platform: models.PlatformTumblr, BlogName: "myblog", IsActive: true},
		{ID: 12, AccountID: account.ID, Platform: models.PlatformX, IsActive: true},
	}

	rr := seedResearch(repo)
	tumblr := &fakeCrossPoster{
		platform: models.PlatformTumblr,
		result:   publish.Result{Success: true, PostID: "t-1", PostURL: "https://myblog.tumblr.com/post/t-1"},
	}
	x := &fakeCrossPoster{
		platform: models.PlatformX,
		result:   publish.Result{Success: true, PostID: "x-1", PostURL: "https://x.com/i/status/x-1"},
	}

	runner := NewRunner(
		repo,
		&fakeResearch{result: rr},
		&fakeGenerator{content: generated()},
		&fakeImages{url: "https://i.ibb.co/abc/cover.png"},
		&fakeBloggerPublisher{results: []publish.Result{
			{Success: true, PostID: "b-1", PostURL: "https://blog.example.com/p/b-1"},
		}},
		[]publish.CrossPoster{tumblr, x},
		nil,
		testConfig(),
		"",
		logger.Default(),
	)

	result := runner.Run(context.Background(), Trigger{AccountID: &account.ID, Manual: true})

	require.False(t, result.Failed(), "run should succeed: %v", result.Err)
	assert.Equal(t, StageDone, result.Stage)
	assert.Equal(t, "New Model Released", result.Topic)

	require.NotNil(t, result.Post)
	stored, err := repo.GetPostByID(context.Background(), result.Post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, stored.Status)
	assert.Equal(t, "b-1", stored.BloggerPostID)
	assert.Equal(t, "https://blog.example.com/p/b-1", stored.BloggerURL)
	assert.Equal(t, "https://i.ibb.co/abc/cover.png", stored.ImageURL)
	assert.NotNil(t, stored.PublishedAt)

	// Cross-posts recorded, Tumblr first then X
	assert.Equal(t, 1, tumblr.calls)
	assert.Equal(t, 1, x.calls)
	assert.Equal(t, "t-1", stored.TumblrPostID)
	assert.Equal(t, "x-1", stored.XPostID)

	// Topic recorded as used and research back-referenced
	used, _ := repo.ListUsedTopics(context.Background(), "ai-tools")
	assert.Contains(t, used, "New Model Released")
	record, err := repo.GetResearchByID(context.Background(), rr.ResearchID)
	require.NoError(t, err)
	assert.Equal(t, models.ResearchStatusPublished, record.Status)
	require.NotNil(t, record.PostID)
	assert.Equal(t, result.Post.ID, *record.PostID)
}

func TestRunNoUniqueTopicLeavesNoTrace(t *testing.T) {
	repo := newFakeRepo()
	account := seedAccount(repo)

	runner := NewRunner(
		repo,
		&fakeResearch{err: research.ErrNoUniqueTopic},
		&fakeGenerator{content: generated()},
		&fakeImages{url: "https://i.ibb.co/abc/cover.png"},
		&fakeBloggerPublisher{},
		nil,
		nil,
		testConfig(),
		"",
		logger.Default(),
	)

	result := runner.Run(context.Background(), Trigger{AccountID: &account.ID})

	assert.True(t, result.Failed())
	assert.ErrorIs(t, result.Err, research.ErrNoUniqueTopic)
	assert.Equal(t, StageResearchTopic, result.Stage)
	assert.Equal(t, 0, repo.postCount())
}

func TestRunImageFailureAbortsBeforeDraft(t *testing.T) {
	repo := newFakeRepo()
	account := seedAccount(repo)
	rr := seedResearch(repo)

	blogger := &fakeBloggerPublisher{}
	runner := NewRunner(
		repo,
		&fakeResearch{result: rr},
		&fakeGenerator{content: generated()},
		&fakeImages{err: errors.New("image service unavailable")},
		blogger,
		nil,
		nil,
		testConfig(),
		"",
		logger.Default(),
	)

	result := runner.Run(context.Background(), Trigger{AccountID: &account.ID})

	assert.True(t, result.Failed())
	assert.Equal(t, StageGenerateImage, result.Stage)
	// No draft is persisted when the image never materializes
	assert.Equal(t, 0, repo.postCount())
	assert.Equal(t, 0, blogger.calls)
}

func TestRunPublishFailureRecordsFailedPost(t *testing.T) {
	repo := newFakeRepo()
	account := seedAccount(repo)
	repo.connections[account.ID] = []*models.Connection{
		{ID: 11, AccountID: account.ID, Platform: models.PlatformTumblr, BlogName: "myblog", IsActive: true},
	}
	rr := seedResearch(repo)

	tumblr := &fakeCrossPoster{platform: models.PlatformTumblr, result: publish.Result{Success: true}}
	blogger := &fakeBloggerPublisher{results: []publish.Result{
		publish.Failure("quota exceeded"),
		publish.Failure("quota exceeded"),
		publish.Failure("quota exceeded"),
	}}

	runner := NewRunner(
		repo,
		&fakeResearch{result: rr},
		&fakeGenerator{content: generated()},
		&fakeImages{url: "https://i.ibb.co/abc/cover.png"},
		blogger,
		[]publish.CrossPoster{tumblr},
		nil,
		testConfig(),
		"",
		logger.Default(),
	)

	result := runner.Run(context.Background(), Trigger{AccountID: &account.ID})

	assert.True(t, result.Failed())
	assert.Equal(t, StagePublish, result.Stage)
	assert.Equal(t, 3, blogger.calls)

	require.NotNil(t, result.Post)
	stored, err := repo.GetPostByID(context.Background(), result.Post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, stored.Status)
	assert.Equal(t, "quota exceeded", stored.ErrorMessage)

	// Cross-posting never runs after a failed publish
	assert.Equal(t, 0, tumblr.calls)

	// The topic stays available for a later run
	used, _ := repo.ListUsedTopics(context.Background(), "ai-tools")
	assert.Empty(t, used)
}

func TestRunDisconnectedAccountHasNoSideEffects(t *testing.T) {
	repo := newFakeRepo()
	account := seedAccount(repo)
	account.IsConnected = false

	researchFake := &fakeResearch{result: seedResearch(repo)}
	runner := NewRunner(
		repo,
		researchFake,
		&fakeGenerator{content: generated()},
		&fakeImages{url: "https://i.ibb.co/abc/cover.png"},
		&fakeBloggerPublisher{},
		nil,
		nil,
		testConfig(),
		"",
		logger.Default(),
	)

	result := runner.Run(context.Background(), Trigger{AccountID: &account.ID})

	assert.True(t, result.Failed())
	assert.ErrorIs(t, result.Err, ErrAccountNotConnected)
	assert.Equal(t, StageResolveAccount, result.Stage)
	assert.Equal(t, 0, researchFake.calls)
	assert.Equal(t, 0, repo.postCount())
}

func TestRunUnknownAccount(t *testing.T) {
	repo := newFakeRepo()

	runner := NewRunner(
		repo,
		&fakeResearch{},
		&fakeGenerator{},
		&fakeImages{},
		&fakeBloggerPublisher{},
		nil,
		nil,
		testConfig(),
		"",
		logger.Default(),
	)

	missing := uint(42)
	result := runner.Run(context.Background(), Trigger{AccountID: &missing})

	assert.True(t, result.Failed())
	assert.ErrorIs(t, result.Err, ErrAccountNotFound)
}

func TestRunLegacyTriggerFallsBackToConfiguredNiche(t *testing.T) {
	repo := newFakeRepo()
	repo.niches["tech-news"] = &models.Niche{ID: "tech-news", Name: "Tech News"}
	record := &models.TrendingResearch{ID: 3, Title: "Chip Shortage Eases", NicheID: "tech-news"}
	repo.research[record.ID] = record

	runner := NewRunner(
		repo,
		&fakeResearch{result: &research.Result{ResearchID: 3, Topic: "Chip Shortage Eases"}},
		&fakeGenerator{content: generated()},
		&fakeImages{url: "https://i.ibb.co/abc/cover.png"},
		&fakeBloggerPublisher{results: []publish.Result{{Success: true, PostID: "b-9"}}},
		nil,
		nil,
		testConfig(),
		"tech-news",
		logger.Default(),
	)

	result := runner.Run(context.Background(), Trigger{})

	require.False(t, result.Failed(), "run should succeed: %v", result.Err)
	assert.Equal(t, "tech-news", result.Post.NicheID)
	assert.Nil(t, result.Post.AccountID)
}

func TestRunWithoutAnyNicheFails(t *testing.T) {
	runner := NewRunner(
		newFakeRepo(),
		&fakeResearch{},
		&fakeGenerator{},
		&fakeImages{},
		&fakeBloggerPublisher{},
		nil,
		nil,
		testConfig(),
		"",
		logger.Default(),
	)

	result := runner.Run(context.Background(), Trigger{})

	assert.True(t, result.Failed())
	assert.ErrorIs(t, result.Err, ErrNicheMissing)
}

func TestRunCrossPostFailureDoesNotFailRun(t *testing.T) {
	repo := newFakeRepo()
	account := seedAccount(repo)
	repo.connections[account.ID] = []*models.Connection{
		{ID: 11, AccountID: account.ID, Platform: models.PlatformTumblr, BlogName: "myblog", IsActive: true},
	}
	rr := seedResearch(repo)

	tumblr := &fakeCrossPoster{platform: models.PlatformTumblr, result: publish.Failure("tumblr down")}
	runner := NewRunner(
		repo,
		&fakeResearch{result: rr},
		&fakeGenerator{content: generated()},
		&fakeImages{url: "https://i.ibb.co/abc/cover.png"},
		&fakeBloggerPublisher{results: []publish.Result{{Success: true, PostID: "b-1", PostURL: "https://blog.example.com/p/b-1"}}},
		[]publish.CrossPoster{tumblr},
		nil,
		testConfig(),
		"",
		logger.Default(),
	)

	result := runner.Run(context.Background(), Trigger{AccountID: &account.ID})

	require.False(t, result.Failed(), "run should succeed: %v", result.Err)
	assert.Equal(t, 1, tumblr.calls)

	stored, err := repo.GetPostByID(context.Background(), result.Post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, stored.Status)
	assert.Empty(t, stored.TumblrPostID)
}

func TestRunSkipsWhenAccountRunInProgress(t *testing.T) {
	repo := newFakeRepo()
	account := seedAccount(repo)

	block := make(chan struct{})
	researchFake := &fakeResearch{err: research.ErrNoCandidates, blockCh: block}

	runner := NewRunner(
		repo,
		researchFake,
		&fakeGenerator{content: generated()},
		&fakeImages{url: "https://i.ibb.co/abc/cover.png"},
		&fakeBloggerPublisher{},
		nil,
		nil,
		testConfig(),
		"",
		logger.Default(),
	)

	firstDone := make(chan *RunResult, 1)
	go func() {
		firstDone <- runner.Run(context.Background(), Trigger{AccountID: &account.ID})
	}()

	// Wait until the first run holds the guard inside research
	assert.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		_, busy := runner.inFlight[account.ID]
		return busy
	}, time.Second, time.Millisecond)

	second := runner.Run(context.Background(), Trigger{AccountID: &account.ID})
	assert.ErrorIs(t, second.Err, ErrRunInProgress)

	close(block)
	first := <-firstDone
	assert.ErrorIs(t, first.Err, research.ErrNoCandidates)

	// The guard is released once the first run ends
	third := runner.Run(context.Background(), Trigger{AccountID: &account.ID})
	assert.NotErrorIs(t, third.Err, ErrRunInProgress)
}
