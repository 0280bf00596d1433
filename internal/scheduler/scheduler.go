// Package scheduler owns the cron triggers: one recurring daily trigger
// per active schedule, rebuilt wholesale whenever schedules change.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/blogger-agent/internal/models"
	"github.com/blogger-agent/internal/pipeline"
	"github.com/blogger-agent/internal/storage"
	"github.com/blogger-agent/pkg/logger"
)

// Runner executes one pipeline pass for a trigger
type Runner interface {
	Run(ctx context.Context, trigger pipeline.Trigger) *pipeline.RunResult
}

// pollInterval bounds how stale the triggers can get when schedules are
// edited outside the admin API (the CLI writes straight to the store).
const pollInterval = time.Minute

// Scheduler maintains the cron entries for all active schedules
type Scheduler struct {
	repo      storage.Repository
	runner    Runner
	cron      *cron.Cron
	log       *logger.Logger
	pollEvery time.Duration

	mu      sync.Mutex
	entries []cron.EntryID
}

// New creates a scheduler; Start must be called to arm the triggers
func New(repo storage.Repository, runner Runner, log *logger.Logger) *Scheduler {
	log = log.WithComponent("scheduler")
	return &Scheduler{
		repo:      repo,
		runner:    runner,
		cron:      cron.New(cron.WithLogger(cronLogger{log})),
		log:       log,
		pollEvery: pollInterval,
	}
}

// Start loads all schedules, builds the triggers and starts the timer.
// It also starts a store poll so schedule edits that bypass the admin
// API are armed without a restart.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	s.cron.Start()
	go s.pollStore(ctx)
	s.log.Info().Msg("Scheduler started")
	return nil
}

// pollStore re-reads the schedules on a fixed interval until ctx is
// cancelled
func (s *Scheduler) pollStore(ctx context.Context) {
	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.log.Warn().Err(err).Msg("Periodic trigger refresh failed")
			}
		}
	}
}

// Refresh drops every registered trigger and re-registers one per active
// schedule. It must run after any schedule mutation so runtime state
// never drifts from the store.
func (s *Scheduler) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.entries {
		s.cron.Remove(id)
	}
	s.entries = s.entries[:0]

	schedules, err := s.repo.ListActiveSchedules(ctx)
	if err != nil {
		return err
	}

	for _, schedule := range schedules {
		spec, err := schedule.CronSpec()
		if err != nil {
			// A broken schedule is skipped, never fatal to the others
			s.log.Error().
				Err(err).
				Uint("schedule_id", schedule.ID).
				Msg("Skipping schedule with invalid time spec")
			continue
		}

		sched := *schedule
		id, err := s.cron.AddFunc(spec, func() {
			s.fire(&sched)
		})
		if err != nil {
			s.log.Error().
				Err(err).
				Uint("schedule_id", schedule.ID).
				Str("spec", spec).
				Msg("Failed to register trigger")
			continue
		}
		s.entries = append(s.entries, id)

		s.log.Info().
			Uint("schedule_id", schedule.ID).
			Str("time", schedule.Time).
			Str("timezone", schedule.Timezone).
			Msg("Trigger registered")
	}

	s.log.Info().Int("triggers", len(s.entries)).Msg("Scheduler refreshed")
	return nil
}

// Stop cancels all triggers and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// TriggerCount returns the number of live triggers
func (s *Scheduler) TriggerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// fire runs the pipeline for one fired schedule. It never lets a failure
// propagate into the cron timer.
func (s *Scheduler) fire(schedule *models.Schedule) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().
				Interface("panic", rec).
				Uint("schedule_id", schedule.ID).
				Msg("Scheduled run panicked")
		}
	}()

	log := s.log.With().Uint("schedule_id", schedule.ID).Logger()
	log.Info().Msg("Schedule fired")

	ctx := context.Background()
	result := s.runner.Run(ctx, pipeline.Trigger{
		ScheduleID: &schedule.ID,
		AccountID:  schedule.AccountID,
		NicheID:    schedule.NicheID,
	})

	if result.Failed() {
		log.Error().
			Err(result.Err).
			Str("stage", string(result.Stage)).
			Str("run_id", result.RunID).
			Msg("Scheduled run failed")
	} else {
		log.Info().
			Str("run_id", result.RunID).
			Str("topic", result.Topic).
			Dur("elapsed", result.Elapsed).
			Msg("Scheduled run completed")
	}

	s.markRun(ctx, schedule.ID)
}

// markRun stamps LastRunAt on the schedule, re-reading it first so a
// concurrent edit is not clobbered.
func (s *Scheduler) markRun(ctx context.Context, scheduleID uint) {
	current, err := s.repo.GetScheduleByID(ctx, scheduleID)
	if err != nil {
		// Schedule may have been deleted mid-run; nothing to stamp
		return
	}
	now := time.Now()
	current.LastRunAt = &now
	if err := s.repo.UpdateSchedule(ctx, current); err != nil {
		s.log.Warn().Err(err).Uint("schedule_id", scheduleID).Msg("Failed to stamp last run time")
	}
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}
