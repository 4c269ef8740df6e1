package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/project-portal/verification-backend/internal/assignment"
	"carbon-scribe/project-portal/verification-backend/internal/config"
	"carbon-scribe/project-portal/verification-backend/internal/directory"
	"carbon-scribe/project-portal/verification-backend/internal/scheduler"
	"carbon-scribe/project-portal/verification-backend/internal/verification"
	"carbon-scribe/project-portal/verification-backend/pkg/clock"
)

func memoryContainer(cfg *config.Config) *Container {
	logger := zap.NewNop()
	dir := directory.NewMemoryStore()
	clk := clock.System()

	c := &Container{Config: cfg, Logger: logger, Users: dir, Projects: dir}
	c.Scheduler = scheduler.NewManager(scheduler.NewMemoryRepository(), clk, logger, scheduler.DefaultConfig())
	c.Workflow = verification.NewWorkflow(verification.Dependencies{
		Repo:      verification.NewMemoryRepository(),
		Users:     dir,
		Projects:  dir,
		Scheduler: c.Scheduler,
		Clock:     clk,
		Logger:    logger,
	})
	c.Assignment = assignment.NewService(dir, dir, c.Workflow, clk, logger, assignment.Options{
		DefaultCriteria: DefaultCriteria(cfg.Verification),
	})
	return c
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(context.Background(), nil, zap.NewNop())
	assert.Error(t, err)
}

func TestDefaultCriteria(t *testing.T) {
	limit := 6
	criteria := DefaultCriteria(config.VerificationConfig{RequireSpecialty: true, MaxWorkload: &limit})
	assert.True(t, criteria.RequireSpecialty)
	assert.False(t, criteria.PriorityBoost)
	require.NotNil(t, criteria.MaxWorkload)
	assert.Equal(t, 6, *criteria.MaxWorkload)
}

func TestRegisterJobs(t *testing.T) {
	cfg := config.Default()
	c := memoryContainer(cfg)

	require.NoError(t, c.RegisterJobs())
	assert.Contains(t, c.Scheduler.RecurringJobs(), JobRebalance)

	cfg.Verification.RebalanceSchedule = "every day"
	assert.ErrorContains(t, memoryContainer(cfg).RegisterJobs(), "invalid rebalance schedule")

	cfg.Verification.RebalanceSchedule = ""
	c = memoryContainer(cfg)
	require.NoError(t, c.RegisterJobs())
	assert.Empty(t, c.Scheduler.RecurringJobs())
}
