package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blogger-agent/internal/models"
	"github.com/blogger-agent/internal/pipeline"
	"github.com/blogger-agent/internal/storage"
)

// listNiches handles GET /api/v1/niches
func (s *Server) listNiches(c *gin.Context) {
	niches, err := s.repo.ListNiches(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list niches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"niches": niches,
		"count":  len(niches),
	})
}

// listPosts handles GET /api/v1/posts?status=published&limit=50
func (s *Server) listPosts(c *gin.Context) {
	filter := storage.DefaultPostFilter()

	if raw := c.Query("status"); raw != "" {
		status := models.PostStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if raw := c.Query("account_id"); raw != "" {
		if id, err := parseID(raw); err == nil {
			filter.AccountID = &id
		}
	}

	posts, err := s.repo.ListPosts(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"posts": posts,
		"count": len(posts),
	})
}

// listResearch handles GET /api/v1/research
func (s *Server) listResearch(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := s.repo.ListResearch(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list research records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"research": records,
		"count":    len(records),
	})
}

type publishNowRequest struct {
	NicheID   string `json:"niche_id"`
	AccountID *uint  `json:"account_id"`
}

// publishNow handles POST /api/v1/publish: one synchronous pipeline pass
// outside the cron cycle. The run's structured outcome is returned, a
// failed run is a 422 rather than a 500 because it is an expected,
// recorded state, not a server fault.
func (s *Server) publishNow(c *gin.Context) {
	var req publishNowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	result := s.runner.Run(c.Request.Context(), pipeline.Trigger{
		AccountID: req.AccountID,
		NicheID:   req.NicheID,
		Manual:    true,
	})

	body := gin.H{
		"run_id":  result.RunID,
		"stage":   result.Stage,
		"topic":   result.Topic,
		"elapsed": result.Elapsed.String(),
	}
	if result.Post != nil {
		body["post"] = result.Post
	}

	if result.Failed() {
		body["error"] = result.Err.Error()
		c.JSON(http.StatusUnprocessableEntity, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
