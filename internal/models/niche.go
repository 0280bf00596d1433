package models

import (
	"time"
)

// Niche is a fixed content category that scopes topic research and
// writing style (e.g. "ai-tools").
type Niche struct {
	ID          string      `gorm:"primaryKey" json:"id"`
	Name        string      `gorm:"not null" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Keywords    StringSlice `gorm:"type:json" json:"keywords"`
	WritingTone string      `json:"writing_tone"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefaultNiches returns the seed niches created on first startup
func DefaultNiches() []*Niche {
	return []*Niche{
		{
			ID:          "ai-tools",
			Name:        "AI Tools",
			Description: "New AI products, model launches and practical AI tooling",
			Keywords:    StringSlice{"AI tools", "artificial intelligence", "LLM", "machine learning"},
			WritingTone: "practical and curious",
		},
		{
			ID:          "tech-news",
			Name:        "Tech News",
			Description: "General technology industry news",
			Keywords:    StringSlice{"technology", "software", "startup", "gadgets"},
			WritingTone: "informative and direct",
		},
		{
			ID:          "personal-finance",
			Name:        "Personal Finance",
			Description: "Money management, saving and investing for individuals",
			Keywords:    StringSlice{"personal finance", "investing", "saving money", "budget"},
			WritingTone: "trustworthy and plain-spoken",
		},
	}
}
