package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/blogger-agent/internal/models"
	"github.com/blogger-agent/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations and seeds default niches
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(
		&models.Account{},
		&models.Niche{},
		&models.Schedule{},
		&models.Post{},
		&models.TrendingResearch{},
		&models.UsedTopic{},
		&models.Connection{},
	); err != nil {
		return err
	}

	// Seed niches that do not exist yet
	for _, niche := range models.DefaultNiches() {
		var existing models.Niche
		err := r.db.Where("id = ?", niche.ID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := r.db.Create(niche).Error; err != nil {
				return fmt.Errorf("failed to seed niche %s: %w", niche.ID, err)
			}
		}
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Account operations

func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *Repository) GetAccountByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *Repository) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	if err := r.db.WithContext(ctx).Order("created_at").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *Repository) UpdateAccount(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

func (r *Repository) DeleteAccount(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&models.Schedule{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.Connection{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Account{}, id).Error
	})
}

// Niche operations

func (r *Repository) GetNiche(ctx context.Context, id string) (*models.Niche, error) {
	var niche models.Niche
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&niche).Error; err != nil {
		return nil, err
	}
	return &niche, nil
}

func (r *Repository) ListNiches(ctx context.Context) ([]*models.Niche, error) {
	var niches []*models.Niche
	if err := r.db.WithContext(ctx).Order("id").Find(&niches).Error; err != nil {
		return nil, err
	}
	return niches, nil
}

func (r *Repository) SaveNiche(ctx context.Context, niche *models.Niche) error {
	return r.db.WithContext(ctx).Save(niche).Error
}

// Schedule operations

func (r *Repository) CreateSchedule(ctx context.Context, schedule *models.Schedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *Repository) GetScheduleByID(ctx context.Context, id uint) (*models.Schedule, error) {
	var schedule models.Schedule
	if err := r.db.WithContext(ctx).First(&schedule, id).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *Repository) ListSchedules(ctx context.Context) ([]*models.Schedule, error) {
	var schedules []*models.Schedule
	if err := r.db.WithContext(ctx).Order("time").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *Repository) ListActiveSchedules(ctx context.Context) ([]*models.Schedule, error) {
	var schedules []*models.Schedule
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("time").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *Repository) UpdateSchedule(ctx context.Context, schedule *models.Schedule) error {
	return r.db.WithContext(ctx).Save(schedule).Error
}

func (r *Repository) DeleteSchedule(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Schedule{}, id).Error
}

// Post operations

func (r *Repository) CreatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *Repository) GetPostByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *Repository) ListPosts(ctx context.Context, filter storage.PostFilter) ([]*models.Post, error) {
	var posts []*models.Post
	query := r.db.WithContext(ctx).Model(&models.Post{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.AccountID != nil {
		query = query.Where("account_id = ?", *filter.AccountID)
	}
	if filter.NicheID != nil {
		query = query.Where("niche_id = ?", *filter.NicheID)
	}

	// Ordering
	orderCol := "created_at"
	if filter.OrderBy != "" {
		orderCol = filter.OrderBy
	}
	if filter.OrderDesc {
		query = query.Order(orderCol + " DESC")
	} else {
		query = query.Order(orderCol + " ASC")
	}

	// Pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *Repository) UpdatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

// Trending research operations

func (r *Repository) CreateResearch(ctx context.Context, research *models.TrendingResearch) error {
	return r.db.WithContext(ctx).Create(research).Error
}

func (r *Repository) GetResearchByID(ctx context.Context, id uint) (*models.TrendingResearch, error) {
	var research models.TrendingResearch
	if err := r.db.WithContext(ctx).First(&research, id).Error; err != nil {
		return nil, err
	}
	return &research, nil
}

func (r *Repository) ListResearch(ctx context.Context, limit int) ([]*models.TrendingResearch, error) {
	var records []*models.TrendingResearch
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Repository) UpdateResearch(ctx context.Context, research *models.TrendingResearch) error {
	return r.db.WithContext(ctx).Save(research).Error
}

// Used-topic history

func (r *Repository) AppendUsedTopic(ctx context.Context, nicheID, title string) error {
	return r.db.WithContext(ctx).Create(&models.UsedTopic{
		NicheID: nicheID,
		Title:   title,
	}).Error
}

func (r *Repository) ListUsedTopics(ctx context.Context, nicheID string) ([]string, error) {
	var titles []string
	if err := r.db.WithContext(ctx).
		Model(&models.UsedTopic{}).
		Where("niche_id = ?", nicheID).
		Pluck("title", &titles).Error; err != nil {
		return nil, err
	}
	return titles, nil
}

func (r *Repository) ListAllUsedTopics(ctx context.Context) ([]string, error) {
	var titles []string
	if err := r.db.WithContext(ctx).
		Model(&models.UsedTopic{}).
		Pluck("title", &titles).Error; err != nil {
		return nil, err
	}
	return titles, nil
}

// Cross-post connection operations

func (r *Repository) SaveConnection(ctx context.Context, conn *models.Connection) error {
	return r.db.WithContext(ctx).Save(conn).Error
}

func (r *Repository) ListConnections(ctx context.Context, accountID uint) ([]*models.Connection, error) {
	var conns []*models.Connection
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *Repository) DeleteConnection(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Connection{}, id).Error
}
