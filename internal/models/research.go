package models

import (
	"time"
)

// ResearchStatus represents the current state of a research record
type ResearchStatus string

const (
	ResearchStatusPending   ResearchStatus = "pending"
	ResearchStatusPublished ResearchStatus = "published"
)

// TrendingResearch captures a topic-research run: the selected trending
// topic, its supporting sources and the queries that found them. A
// back-reference to the produced Post is set after a successful publish.
type TrendingResearch struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Title         string         `gorm:"not null" json:"title"`
	Summary       string         `gorm:"type:text" json:"summary"`
	Analysis      string         `gorm:"type:text" json:"analysis"`
	Sources       StringSlice    `gorm:"type:json" json:"sources"`
	SearchQueries StringSlice    `gorm:"type:json" json:"search_queries"`
	Keywords      StringSlice    `gorm:"type:json" json:"keywords"`
	NicheID       string         `gorm:"index" json:"niche_id"`
	Status        ResearchStatus `gorm:"default:'pending'" json:"status"`
	PostID        *uint          `gorm:"index" json:"post_id"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// UsedTopic is one entry of the append-only used-topic history. Entries
// are niche-scoped; the global list is the union across niches.
type UsedTopic struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	NicheID   string    `gorm:"index" json:"niche_id"`
	Title     string    `gorm:"not null" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
