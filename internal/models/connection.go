package models

import (
	"time"
)

// Platform identifies a cross-post destination
type Platform string

const (
	PlatformTumblr Platform = "tumblr"
	PlatformX      Platform = "x"
)

// Connection holds the OAuth1 credentials for a cross-post destination
// tied to an account. A post is mirrored to a platform only when the
// publishing account has an active connection for it.
type Connection struct {
	ID             uint     `gorm:"primaryKey" json:"id"`
	AccountID      uint     `gorm:"index;not null" json:"account_id"`
	Platform       Platform `gorm:"index;not null" json:"platform"`
	ConsumerKey    string   `gorm:"not null" json:"-"`
	ConsumerSecret string   `gorm:"type:text;not null" json:"-"`
	AccessToken    string   `gorm:"type:text;not null" json:"-"`
	AccessSecret   string   `gorm:"type:text;not null" json:"-"`
	// Tumblr blog identifier (myblog.tumblr.com); unused for X
	BlogName  string    `json:"blog_name"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
