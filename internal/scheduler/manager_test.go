package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/project-portal/verification-backend/pkg/clock"
)

func newTestManager(t *testing.T) (*Manager, *MemoryRepository, *clock.Fixed) {
	t.Helper()
	repo := NewMemoryRepository()
	clk := &clock.Fixed{T: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	cfg := DefaultConfig()
	cfg.MaxAttempts = 2
	cfg.RetryDelay = time.Minute
	return NewManager(repo, clk, zap.NewNop(), cfg), repo, clk
}

func TestRunDueOnlyRunsDueJobs(t *testing.T) {
	ctx := context.Background()
	m, repo, clk := newTestManager(t)

	var seen []string
	m.Handle("reminder", func(ctx context.Context, payload map[string]interface{}) error {
		seen = append(seen, payload["name"].(string))
		return nil
	})

	_, err := m.ScheduleAt(ctx, clk.Now().Add(time.Hour), "reminder", map[string]interface{}{"name": "later"})
	require.NoError(t, err)
	_, err = m.ScheduleAt(ctx, clk.Now().Add(-time.Minute), "reminder", map[string]interface{}{"name": "now"})
	require.NoError(t, err)

	ran, err := m.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.Equal(t, []string{"now"}, seen)
	assert.Len(t, repo.Pending(), 1)

	clk.Advance(2 * time.Hour)
	ran, err = m.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.Equal(t, []string{"now", "later"}, seen)
	assert.Empty(t, repo.Pending())
}

func TestCancelledJobDoesNotRun(t *testing.T) {
	ctx := context.Background()
	m, _, clk := newTestManager(t)

	calls := 0
	m.Handle("overdue", func(ctx context.Context, payload map[string]interface{}) error {
		calls++
		return nil
	})

	id, err := m.ScheduleAt(ctx, clk.Now(), "overdue", nil)
	require.NoError(t, err)
	require.NoError(t, m.Cancel(ctx, id))

	_, err = m.RunDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestFailedJobIsRetriedThenMarkedFailed(t *testing.T) {
	ctx := context.Background()
	m, repo, clk := newTestManager(t)

	m.Handle("flaky", func(ctx context.Context, payload map[string]interface{}) error {
		return errors.New("smtp down")
	})

	id, err := m.ScheduleAt(ctx, clk.Now(), "flaky", nil)
	require.NoError(t, err)

	_, err = m.RunDue(ctx)
	require.NoError(t, err)
	job, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, clk.Now().Add(time.Minute), job.RunAt)

	clk.Advance(time.Minute)
	_, err = m.RunDue(ctx)
	require.NoError(t, err)
	job, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "smtp down", job.LastError)
}

func TestUnknownKindIsMarkedFailed(t *testing.T) {
	ctx := context.Background()
	m, repo, clk := newTestManager(t)

	id, err := m.ScheduleAt(ctx, clk.Now(), "mystery", nil)
	require.NoError(t, err)

	_, err = m.RunDue(ctx)
	require.NoError(t, err)
	job, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, job.Status)
}

func TestAddRecurring(t *testing.T) {
	m, _, _ := newTestManager(t)

	require.NoError(t, m.AddRecurring("rebalance", "0 0 2 * * *", func(ctx context.Context) error { return nil }))
	require.NoError(t, m.AddRecurring("rebalance", "0 30 2 * * *", func(ctx context.Context) error { return nil }))
	assert.Len(t, m.RecurringJobs(), 1)

	assert.Error(t, m.AddRecurring("broken", "not a cron", func(ctx context.Context) error { return nil }))
}

func TestValidateCronExpression(t *testing.T) {
	assert.NoError(t, ValidateCronExpression("0 0 2 * * *"))
	assert.Error(t, ValidateCronExpression("0 2 * *"))
}

func TestStartStop(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))
	m.Stop()
	m.Stop()
}
