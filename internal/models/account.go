package models

import (
	"time"

	"golang.org/x/oauth2"
)

// Account represents a connected Blogger destination: a blog plus the
// OAuth credentials and niche assignment used to publish to it.
type Account struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"not null" json:"name"`
	BlogID       string     `gorm:"not null" json:"blog_id"`
	NicheID      string     `gorm:"index" json:"niche_id"`
	ClientID     string     `gorm:"not null" json:"client_id"`
	ClientSecret string     `gorm:"type:text;not null" json:"-"`
	RefreshToken string     `gorm:"type:text;not null" json:"-"`
	AccessToken  string     `gorm:"type:text" json:"-"`
	TokenExpiry  *time.Time `json:"token_expiry,omitempty"`
	IsConnected  bool       `gorm:"default:false" json:"is_connected"`
	// Optional ad snippets injected into generated content
	AdsHeaderCode string    `gorm:"type:text" json:"ads_header_code"`
	AdsInlineCode string    `gorm:"type:text" json:"ads_inline_code"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TokenExpired returns true if the cached access token is missing or stale
func (a *Account) TokenExpired() bool {
	return a.AccessToken == "" || a.TokenExpiry == nil || time.Now().After(*a.TokenExpiry)
}

// OAuth2Token converts the stored credentials to an oauth2.Token
func (a *Account) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		TokenType:    "Bearer",
	}
	if a.TokenExpiry != nil {
		tok.Expiry = *a.TokenExpiry
	}
	return tok
}

// ApplyToken writes a refreshed oauth2 token back onto the account
func (a *Account) ApplyToken(tok *oauth2.Token) {
	a.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		a.RefreshToken = tok.RefreshToken
	}
	expiry := tok.Expiry
	a.TokenExpiry = &expiry
}
