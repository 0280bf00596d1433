package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blogger-agent/internal/models"
)

// listSchedules handles GET /api/v1/schedules
func (s *Server) listSchedules(c *gin.Context) {
	schedules, err := s.repo.ListSchedules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list schedules"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"schedules": schedules,
		"count":     len(schedules),
	})
}

type scheduleRequest struct {
	Time      string `json:"time" binding:"required"`
	Timezone  string `json:"timezone"`
	IsActive  *bool  `json:"is_active"`
	AccountID *uint  `json:"account_id"`
	NicheID   string `json:"niche_id"`
}

// createSchedule handles POST /api/v1/schedules
func (s *Server) createSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	schedule := &models.Schedule{
		Time:      req.Time,
		Timezone:  req.Timezone,
		IsActive:  true,
		AccountID: req.AccountID,
		NicheID:   req.NicheID,
	}
	if req.IsActive != nil {
		schedule.IsActive = *req.IsActive
	}
	if err := schedule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.repo.CreateSchedule(c.Request.Context(), schedule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create schedule"})
		return
	}

	s.refreshTriggers(c)
	c.JSON(http.StatusCreated, schedule)
}

// updateSchedule handles PUT /api/v1/schedules/:id
func (s *Server) updateSchedule(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid schedule ID"})
		return
	}

	schedule, err := s.repo.GetScheduleByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Schedule not found"})
		return
	}

	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	schedule.Time = req.Time
	if req.Timezone != "" {
		schedule.Timezone = req.Timezone
	}
	if req.IsActive != nil {
		schedule.IsActive = *req.IsActive
	}
	schedule.AccountID = req.AccountID
	schedule.NicheID = req.NicheID

	if err := schedule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.repo.UpdateSchedule(c.Request.Context(), schedule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update schedule"})
		return
	}

	s.refreshTriggers(c)
	c.JSON(http.StatusOK, schedule)
}

// deleteSchedule handles DELETE /api/v1/schedules/:id
func (s *Server) deleteSchedule(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid schedule ID"})
		return
	}

	if err := s.repo.DeleteSchedule(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete schedule"})
		return
	}

	s.refreshTriggers(c)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// toggleSchedule handles POST /api/v1/schedules/:id/toggle
func (s *Server) toggleSchedule(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid schedule ID"})
		return
	}

	schedule, err := s.repo.GetScheduleByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Schedule not found"})
		return
	}

	schedule.IsActive = !schedule.IsActive
	if err := s.repo.UpdateSchedule(c.Request.Context(), schedule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle schedule"})
		return
	}

	s.refreshTriggers(c)
	c.JSON(http.StatusOK, schedule)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	return uint(id), err
}
