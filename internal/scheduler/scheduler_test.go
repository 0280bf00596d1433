package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogger-agent/internal/models"
	"github.com/blogger-agent/internal/pipeline"
	"github.com/blogger-agent/internal/storage"
	"github.com/blogger-agent/pkg/logger"
)

// scheduleRepo fakes only the schedule surface the scheduler touches.
// The embedded interface panics on anything else, which is the point.
type scheduleRepo struct {
	storage.Repository

	mu        sync.Mutex
	schedules map[uint]*models.Schedule
}

func newScheduleRepo() *scheduleRepo {
	return &scheduleRepo{schedules: make(map[uint]*models.Schedule)}
}

func (r *scheduleRepo) add(s *models.Schedule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[s.ID] = s
}

func (r *scheduleRepo) remove(id uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.schedules, id)
}

func (r *scheduleRepo) ListActiveSchedules(ctx context.Context) ([]*models.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Schedule
	for _, s := range r.schedules {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *scheduleRepo) GetScheduleByID(ctx context.Context, id uint) (*models.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, assert.AnError
	}
	return s, nil
}

func (r *scheduleRepo) UpdateSchedule(ctx context.Context, schedule *models.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[schedule.ID] = schedule
	return nil
}

// recordingRunner captures every trigger the scheduler fires
type recordingRunner struct {
	mu       sync.Mutex
	triggers []pipeline.Trigger
	result   *pipeline.RunResult
}

func (r *recordingRunner) Run(ctx context.Context, trigger pipeline.Trigger) *pipeline.RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, trigger)
	if r.result != nil {
		return r.result
	}
	return &pipeline.RunResult{RunID: "test-run", Stage: pipeline.StageDone}
}

func TestRefreshRegistersOneTriggerPerActiveSchedule(t *testing.T) {
	repo := newScheduleRepo()
	accountID := uint(1)
	repo.add(&models.Schedule{ID: 1, Time: "08:00", Timezone: "UTC", IsActive: true, NicheID: "ai-tools"})
	repo.add(&models.Schedule{ID: 2, Time: "17:30", Timezone: "Europe/Kyiv", IsActive: true, AccountID: &accountID})
	repo.add(&models.Schedule{ID: 3, Time: "12:00", Timezone: "UTC", IsActive: false})

	s := New(repo, &recordingRunner{}, logger.Default())

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 2, s.TriggerCount())
}

func TestRefreshTracksScheduleMutations(t *testing.T) {
	repo := newScheduleRepo()
	repo.add(&models.Schedule{ID: 1, Time: "08:00", Timezone: "UTC", IsActive: true})

	s := New(repo, &recordingRunner{}, logger.Default())
	ctx := context.Background()

	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, 1, s.TriggerCount())

	// New schedule appears after the next refresh, not before
	repo.add(&models.Schedule{ID: 2, Time: "20:15", Timezone: "UTC", IsActive: true})
	assert.Equal(t, 1, s.TriggerCount())
	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, 2, s.TriggerCount())

	// A paused schedule loses its trigger
	repo.schedules[1].IsActive = false
	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, 1, s.TriggerCount())

	// A deleted schedule loses its trigger
	repo.remove(2)
	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, 0, s.TriggerCount())
}

func TestRefreshSkipsInvalidScheduleTime(t *testing.T) {
	repo := newScheduleRepo()
	repo.add(&models.Schedule{ID: 1, Time: "26:99", Timezone: "UTC", IsActive: true})
	repo.add(&models.Schedule{ID: 2, Time: "09:00", Timezone: "UTC", IsActive: true})

	s := New(repo, &recordingRunner{}, logger.Default())

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 1, s.TriggerCount())
}

func TestStartArmsStoreEditsWithoutExplicitRefresh(t *testing.T) {
	repo := newScheduleRepo()
	repo.add(&models.Schedule{ID: 1, Time: "08:00", Timezone: "UTC", IsActive: true})

	s := New(repo, &recordingRunner{}, logger.Default())
	s.pollEvery = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()
	assert.Equal(t, 1, s.TriggerCount())

	// The CLI mutates schedules in the store directly; the poll must
	// arm the new trigger without anyone calling Refresh.
	repo.add(&models.Schedule{ID: 2, Time: "20:15", Timezone: "UTC", IsActive: true})
	assert.Eventually(t, func() bool { return s.TriggerCount() == 2 }, time.Second, 5*time.Millisecond)

	repo.remove(1)
	assert.Eventually(t, func() bool { return s.TriggerCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestFirePassesScheduleBindingToRunner(t *testing.T) {
	repo := newScheduleRepo()
	accountID := uint(4)
	schedule := &models.Schedule{ID: 9, Time: "08:00", Timezone: "UTC", IsActive: true, AccountID: &accountID, NicheID: "tech-news"}
	repo.add(schedule)

	runner := &recordingRunner{}
	s := New(repo, runner, logger.Default())

	s.fire(schedule)

	require.Len(t, runner.triggers, 1)
	trigger := runner.triggers[0]
	require.NotNil(t, trigger.ScheduleID)
	assert.Equal(t, uint(9), *trigger.ScheduleID)
	require.NotNil(t, trigger.AccountID)
	assert.Equal(t, uint(4), *trigger.AccountID)
	assert.Equal(t, "tech-news", trigger.NicheID)
	assert.False(t, trigger.Manual)

	// LastRunAt is stamped after the run
	stored, err := repo.GetScheduleByID(context.Background(), 9)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastRunAt)
}

func TestFireSurvivesRunnerPanic(t *testing.T) {
	repo := newScheduleRepo()
	schedule := &models.Schedule{ID: 1, Time: "08:00", Timezone: "UTC", IsActive: true}
	repo.add(schedule)

	s := New(repo, panicRunner{}, logger.Default())

	assert.NotPanics(t, func() {
		s.fire(schedule)
	})
}

type panicRunner struct{}

func (panicRunner) Run(ctx context.Context, trigger pipeline.Trigger) *pipeline.RunResult {
	panic("runner exploded")
}
