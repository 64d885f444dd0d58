package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SchedulerConfig holds configuration for the recurring scheduler
type SchedulerConfig struct {
	// Interval is how often to run recurring processing (default: 1h)
	Interval time.Duration

	// AllowExtendedCatchup is passed to every run (default: false)
	AllowExtendedCatchup bool
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: 1 * time.Hour,
	}
}

type recurringRunner interface {
	ProcessRecurringTransactions(ctx context.Context, now time.Time, opts ProcessOptions) bool
}

// RecurringScheduler runs recurring processing at startup and then on a ticker.
type RecurringScheduler struct {
	runner recurringRunner
	config SchedulerConfig
	clock  func() time.Time

	// Lifecycle management
	mu                  sync.Mutex
	running             bool
	pendingConfirmation bool
	lastRun             time.Time
	stopCh              chan struct{}
	doneCh              chan struct{}
}

// NewRecurringScheduler creates a new scheduler
func NewRecurringScheduler(runner recurringRunner, config SchedulerConfig) *RecurringScheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	return &RecurringScheduler{
		runner: runner,
		config: config,
		clock:  time.Now,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (s *RecurringScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("recurring scheduler is already running")
	}
	if s.runner == nil {
		s.mu.Unlock()
		return fmt.Errorf("recurring scheduler has no processor")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Recurring scheduler started",
		"interval", s.config.Interval,
		"allow_extended_catchup", s.config.AllowExtendedCatchup)

	return nil
}

// Stop gracefully stops the scheduler and waits for the current run. Only the
// first caller signals the loop; a timed-out Stop leaves the loop to finish
// on its own.
func (s *RecurringScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Recurring scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Recurring scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *RecurringScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// PendingConfirmation reports whether the last run stopped at the catch-up gate.
func (s *RecurringScheduler) PendingConfirmation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingConfirmation
}

// LastRun returns when the last run finished; zero if none has.
func (s *RecurringScheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// runLoop is the main processing loop
func (s *RecurringScheduler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Process immediately on startup
	s.RunOnce(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single processing pass and returns the entry point's result.
func (s *RecurringScheduler) RunOnce(ctx context.Context) bool {
	ok := s.runner.ProcessRecurringTransactions(ctx, s.clock(), ProcessOptions{
		AllowExtendedCatchup: s.config.AllowExtendedCatchup,
	})

	s.mu.Lock()
	s.pendingConfirmation = !ok
	s.lastRun = s.clock()
	s.mu.Unlock()

	if !ok {
		slog.WarnContext(ctx, "Recurring backlog awaits confirmation; run with extended catch-up to process it")
	}
	return ok
}
