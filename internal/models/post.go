package models

import (
	"time"
)

// PostStatus represents the current state of a post
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
)

// Post represents a generated blog article (draft, published or failed)
type Post struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	Title         string      `gorm:"not null" json:"title"`
	Content       string      `gorm:"type:text;not null" json:"content"`
	Excerpt       string      `gorm:"type:text" json:"excerpt"`
	Topic         string      `gorm:"index" json:"topic"`
	NicheID       string      `gorm:"index" json:"niche_id"`
	AccountID     *uint       `gorm:"index" json:"account_id"`
	ImageURL      string      `json:"image_url"`
	Labels        StringSlice `gorm:"type:json" json:"labels"`
	Status        PostStatus  `gorm:"default:'draft';index" json:"status"`
	BloggerPostID string      `json:"blogger_post_id"`
	BloggerURL    string      `json:"blogger_url"`
	TumblrPostID  string      `json:"tumblr_post_id"`
	XPostID       string      `json:"x_post_id"`
	ErrorMessage  string      `gorm:"type:text" json:"error_message"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	PublishedAt   *time.Time  `json:"published_at"`
}

// IsPublished returns true once the Blogger publish has succeeded
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}
