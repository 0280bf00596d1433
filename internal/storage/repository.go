package storage

import (
	"context"

	"github.com/blogger-agent/internal/models"
)

// Repository defines the interface for data persistence. The core treats
// this as a simple document store: reads, writes and appends, no query
// logic of its own.
type Repository interface {
	// Account operations
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByID(ctx context.Context, id uint) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	UpdateAccount(ctx context.Context, account *models.Account) error
	// DeleteAccount removes the account plus its dependent schedules and
	// cross-post connections.
	DeleteAccount(ctx context.Context, id uint) error

	// Niche operations
	GetNiche(ctx context.Context, id string) (*models.Niche, error)
	ListNiches(ctx context.Context) ([]*models.Niche, error)
	SaveNiche(ctx context.Context, niche *models.Niche) error

	// Schedule operations
	CreateSchedule(ctx context.Context, schedule *models.Schedule) error
	GetScheduleByID(ctx context.Context, id uint) (*models.Schedule, error)
	ListSchedules(ctx context.Context) ([]*models.Schedule, error)
	ListActiveSchedules(ctx context.Context) ([]*models.Schedule, error)
	UpdateSchedule(ctx context.Context, schedule *models.Schedule) error
	DeleteSchedule(ctx context.Context, id uint) error

	// Post operations
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id uint) (*models.Post, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]*models.Post, error)
	UpdatePost(ctx context.Context, post *models.Post) error

	// Trending research operations
	CreateResearch(ctx context.Context, research *models.TrendingResearch) error
	GetResearchByID(ctx context.Context, id uint) (*models.TrendingResearch, error)
	ListResearch(ctx context.Context, limit int) ([]*models.TrendingResearch, error)
	UpdateResearch(ctx context.Context, research *models.TrendingResearch) error

	// Used-topic history (append-only)
	AppendUsedTopic(ctx context.Context, nicheID, title string) error
	ListUsedTopics(ctx context.Context, nicheID string) ([]string, error)
	ListAllUsedTopics(ctx context.Context) ([]string, error)

	// Cross-post connection operations
	SaveConnection(ctx context.Context, conn *models.Connection) error
	ListConnections(ctx context.Context, accountID uint) ([]*models.Connection, error)
	DeleteConnection(ctx context.Context, id uint) error

	// Maintenance
	Close() error
	Migrate() error
}

// PostFilter defines filtering options for posts
type PostFilter struct {
	Status    *models.PostStatus
	AccountID *uint
	NicheID   *string
	Limit     int
	Offset    int
	OrderBy   string
	OrderDesc bool
}

// DefaultPostFilter returns a filter with sensible defaults
func DefaultPostFilter() PostFilter {
	return PostFilter{
		Limit:     50,
		OrderBy:   "created_at",
		OrderDesc: true,
	}
}
