package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule represents a recurring daily publish trigger bound to an
// account/niche. Time is a 24h wall-clock "HH:MM" in the given timezone.
type Schedule struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Time      string     `gorm:"not null" json:"time"`
	Timezone  string     `gorm:"default:'UTC'" json:"timezone"`
	IsActive  bool       `gorm:"default:true" json:"is_active"`
	AccountID *uint      `gorm:"index" json:"account_id"`
	NicheID   string     `json:"niche_id"`
	LastRunAt *time.Time `json:"last_run_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Validate checks that the schedule carries a valid HH:MM time and a
// loadable timezone.
func (s *Schedule) Validate() error {
	if _, _, err := s.Clock(); err != nil {
		return err
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
		}
	}
	return nil
}

// Clock parses the HH:MM time into hour and minute
func (s *Schedule) Clock() (hour, minute int, err error) {
	parts := strings.SplitN(s.Time, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid schedule time %q: want HH:MM", s.Time)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid schedule hour %q", parts[0])
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid schedule minute %q", parts[1])
	}
	return hour, minute, nil
}

// CronSpec converts the wall-clock time + timezone into a robfig/cron
// daily recurrence spec.
func (s *Schedule) CronSpec() (string, error) {
	hour, minute, err := s.Clock()
	if err != nil {
		return "", err
	}
	tz := s.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return fmt.Sprintf("CRON_TZ=%s %d %d * * *", tz, minute, hour), nil
}
