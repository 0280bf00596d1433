package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	bloggerapi "google.golang.org/api/blogger/v3"

	"github.com/blogger-agent/internal/models"
)

// listAccounts handles GET /api/v1/accounts
func (s *Server) listAccounts(c *gin.Context) {
	accounts, err := s.repo.ListAccounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list accounts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

type connectAccountRequest struct {
	Name          string `json:"name" binding:"required"`
	BlogID        string `json:"blog_id" binding:"required"`
	NicheID       string `json:"niche_id" binding:"required"`
	ClientID      string `json:"client_id" binding:"required"`
	ClientSecret  string `json:"client_secret" binding:"required"`
	RefreshToken  string `json:"refresh_token" binding:"required"`
	AdsHeaderCode string `json:"ads_header_code"`
	AdsInlineCode string `json:"ads_inline_code"`
}

// connectAccount handles POST /api/v1/accounts. The refresh token is
// validated against Google's token endpoint before the account is saved
// as connected.
func (s *Server) connectAccount(c *gin.Context) {
	var req connectAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	if _, err := s.repo.GetNiche(c.Request.Context(), req.NicheID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown niche: " + req.NicheID})
		return
	}

	conf := &oauth2.Config{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{bloggerapi.BloggerScope},
	}
	tok, err := conf.TokenSource(c.Request.Context(), &oauth2.Token{RefreshToken: req.RefreshToken}).Token()
	if err != nil {
		s.log.Warn().Err(err).Str("name", req.Name).Msg("Account connect rejected: token validation failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Refresh token validation failed", "details": err.Error()})
		return
	}

	account := &models.Account{
		Name:          req.Name,
		BlogID:        req.BlogID,
		NicheID:       req.NicheID,
		ClientID:      req.ClientID,
		ClientSecret:  req.ClientSecret,
		RefreshToken:  req.RefreshToken,
		IsConnected:   true,
		AdsHeaderCode: req.AdsHeaderCode,
		AdsInlineCode: req.AdsInlineCode,
	}
	account.ApplyToken(tok)

	if err := s.repo.CreateAccount(c.Request.Context(), account); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save account"})
		return
	}

	s.log.Info().Uint("account_id", account.ID).Str("name", account.Name).Msg("Account connected")
	c.JSON(http.StatusCreated, account)
}

// deleteAccount handles DELETE /api/v1/accounts/:id. Dependent schedules
// and connections are removed with it, so triggers are refreshed.
func (s *Server) deleteAccount(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid account ID"})
		return
	}

	if err := s.repo.DeleteAccount(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete account"})
		return
	}

	s.refreshTriggers(c)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// listConnections handles GET /api/v1/accounts/:id/connections
func (s *Server) listConnections(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid account ID"})
		return
	}

	conns, err := s.repo.ListConnections(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list connections"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"connections": conns,
		"count":       len(conns),
	})
}

type connectionRequest struct {
	AccountID      uint            `json:"account_id" binding:"required"`
	Platform       models.Platform `json:"platform" binding:"required"`
	ConsumerKey    string          `json:"consumer_key" binding:"required"`
	ConsumerSecret string          `json:"consumer_secret" binding:"required"`
	AccessToken    string          `json:"access_token" binding:"required"`
	AccessSecret   string          `json:"access_secret" binding:"required"`
	BlogName       string          `json:"blog_name"`
}

// createConnection handles POST /api/v1/connections
func (s *Server) createConnection(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	if req.Platform != models.PlatformTumblr && req.Platform != models.PlatformX {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown platform: " + string(req.Platform)})
		return
	}
	if req.Platform == models.PlatformTumblr && req.BlogName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Tumblr connections require blog_name"})
		return
	}
	if _, err := s.repo.GetAccountByID(c.Request.Context(), req.AccountID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		return
	}

	conn := &models.Connection{
		AccountID:      req.AccountID,
		Platform:       req.Platform,
		ConsumerKey:    req.ConsumerKey,
		ConsumerSecret: req.ConsumerSecret,
		AccessToken:    req.AccessToken,
		AccessSecret:   req.AccessSecret,
		BlogName:       req.BlogName,
		IsActive:       true,
	}
	if err := s.repo.SaveConnection(c.Request.Context(), conn); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save connection"})
		return
	}

	c.JSON(http.StatusCreated, conn)
}

// deleteConnection handles DELETE /api/v1/connections/:id
func (s *Server) deleteConnection(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid connection ID"})
		return
	}

	if err := s.repo.DeleteConnection(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete connection"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
