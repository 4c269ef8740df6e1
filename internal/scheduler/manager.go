package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"carbon-scribe/project-portal/verification-backend/pkg/clock"
)

// Config controls polling and retries
type Config struct {
	PollInterval time.Duration `json:"poll_interval"`
	BatchSize    int           `json:"batch_size"`
	MaxAttempts  int           `json:"max_attempts"`
	RetryDelay   time.Duration `json:"retry_delay"`
	JobTimeout   time.Duration `json:"job_timeout"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		PollInterval: 30 * time.Second,
		BatchSize:    20,
		MaxAttempts:  3,
		RetryDelay:   5 * time.Minute,
		JobTimeout:   2 * time.Minute,
	}
}

// HandlerFunc runs a one-shot job of one kind
type HandlerFunc = func(ctx context.Context, payload map[string]interface{}) error

// Manager runs one-shot due jobs from the jobs table and recurring cron jobs
type Manager struct {
	cron      *cron.Cron
	repo      Repository
	handlers  map[string]HandlerFunc
	recurring map[string]cron.EntryID
	config    Config
	clock     clock.Clock
	logger    *zap.Logger
	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewManager creates a new job manager
func NewManager(repo Repository, clk clock.Clock, logger *zap.Logger, config Config) *Manager {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &Manager{
		cron:      cron.New(cron.WithSeconds()),
		repo:      repo,
		handlers:  make(map[string]HandlerFunc),
		recurring: make(map[string]cron.EntryID),
		config:    config,
		clock:     clk,
		logger:    logger,
	}
}

// Handle registers the handler for a job kind
func (m *Manager) Handle(kind string, fn HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[kind] = fn
}

// ScheduleAt stores a one-shot job due at the given time
func (m *Manager) ScheduleAt(ctx context.Context, at time.Time, kind string, payload map[string]interface{}) (uuid.UUID, error) {
	now := m.clock.Now()
	job := &Job{
		ID:        uuid.New(),
		Kind:      kind,
		Payload:   datatypes.JSONMap(payload),
		RunAt:     at,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.repo.Create(ctx, job); err != nil {
		return uuid.Nil, err
	}

	m.logger.Debug("Scheduled job",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", kind),
		zap.Time("run_at", at))
	return job.ID, nil
}

// Cancel drops a pending job
func (m *Manager) Cancel(ctx context.Context, jobID uuid.UUID) error {
	return m.repo.Cancel(ctx, jobID)
}

// AddRecurring registers a named cron job. The expression uses the six-field
// format with seconds. Re-adding a name replaces the previous entry.
func (m *Manager) AddRecurring(name, expr string, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entryID, ok := m.recurring[name]; ok {
		m.cron.Remove(entryID)
	}

	timeout := m.config.JobTimeout
	entryID, err := m.cron.AddFunc(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			m.logger.Error("Recurring job failed", zap.String("job", name), zap.Error(err))
			return
		}
		m.logger.Info("Recurring job completed", zap.String("job", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", name, err)
	}

	m.recurring[name] = entryID
	m.logger.Info("Added recurring job", zap.String("job", name), zap.String("cron", expr))
	return nil
}

// Start starts the cron scheduler and the poll loop
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("job manager already running")
	}
	m.running = true
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.logger.Info("Starting job manager", zap.Duration("poll_interval", m.config.PollInterval))

	m.cron.Start()
	go m.pollLoop(loopCtx)
	return nil
}

// Stop stops the poll loop and waits for running cron jobs
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	m.logger.Info("Stopping job manager")
	cancel()
	<-done
	<-m.cron.Stop().Done()
}

func (m *Manager) pollLoop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	m.runDueLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runDueLogged(ctx)
		}
	}
}

func (m *Manager) runDueLogged(ctx context.Context) {
	if _, err := m.RunDue(ctx); err != nil {
		m.logger.Error("Failed to run due jobs", zap.Error(err))
	}
}

// RunDue claims and runs the jobs due now, one batch at a time, and returns
// how many ran. Failed jobs are retried after RetryDelay until MaxAttempts.
func (m *Manager) RunDue(ctx context.Context) (int, error) {
	ran := 0
	for {
		jobs, err := m.repo.ClaimDue(ctx, m.clock.Now(), m.config.BatchSize)
		if err != nil {
			return ran, err
		}
		for i := range jobs {
			m.execute(ctx, &jobs[i])
			ran++
		}
		if len(jobs) < m.config.BatchSize {
			return ran, nil
		}
	}
}

func (m *Manager) execute(ctx context.Context, job *Job) {
	m.mu.RLock()
	handler, ok := m.handlers[job.Kind]
	m.mu.RUnlock()

	logger := m.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("kind", job.Kind),
		zap.Int("attempt", job.Attempts),
	)

	if !ok {
		logger.Error("No handler registered for job kind")
		if err := m.repo.MarkFailed(ctx, job.ID, "no handler registered"); err != nil {
			logger.Error("Failed to mark job failed", zap.Error(err))
		}
		return
	}

	jobCtx := ctx
	if m.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, m.config.JobTimeout)
		defer cancel()
	}

	if err := handler(jobCtx, job.Payload); err != nil {
		if job.Attempts < m.config.MaxAttempts {
			retryAt := m.clock.Now().Add(m.config.RetryDelay)
			logger.Warn("Job failed, retrying", zap.Time("retry_at", retryAt), zap.Error(err))
			if rerr := m.repo.Reschedule(ctx, job.ID, retryAt, err.Error()); rerr != nil {
				logger.Error("Failed to reschedule job", zap.Error(rerr))
			}
			return
		}
		logger.Error("Job failed", zap.Error(err))
		if ferr := m.repo.MarkFailed(ctx, job.ID, err.Error()); ferr != nil {
			logger.Error("Failed to mark job failed", zap.Error(ferr))
		}
		return
	}

	if err := m.repo.MarkDone(ctx, job.ID); err != nil {
		logger.Error("Failed to mark job done", zap.Error(err))
		return
	}
	logger.Info("Job completed")
}

// RecurringJobs returns the names of registered cron jobs with their next run
func (m *Manager) RecurringJobs() map[string]time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]time.Time, len(m.recurring))
	for name, entryID := range m.recurring {
		out[name] = m.cron.Entry(entryID).Next
	}
	return out
}

// ValidateCronExpression validates a six-field cron expression
func ValidateCronExpression(expr string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(expr)
	return err
}
