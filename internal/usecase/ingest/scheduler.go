package ingest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seclens/termwatch/internal/domain"
	"github.com/seclens/termwatch/internal/metrics"
)

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	Running     bool      `json:"scheduler_running"`
	CycleActive bool      `json:"cycle_active"`
	LastRun     time.Time `json:"last_run_time"`
	NextRun     time.Time `json:"next_run_time"`
	LastSummary Summary   `json:"last_summary"`
}

// Scheduler fires the ingestion cycle on interval boundaries (for the 15m
// default: :00, :15, :30, :45). A tick that arrives while a prior cycle is
// still in flight is skipped, never queued.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	logger   *zap.Logger

	inFlight sync.Mutex // held for the duration of one cycle
	wg       sync.WaitGroup

	mu          sync.Mutex // guards the snapshot fields below
	running     bool
	cycleActive bool
	lastRun     time.Time
	nextRun     time.Time
	summary     Summary
}

// NewScheduler creates a scheduler around the pipeline service.
func NewScheduler(svc *Service, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{svc: svc, interval: interval, logger: logger}
}

// Run blocks until ctx is done, firing the pipeline at each aligned tick.
// On shutdown it stops accepting ticks and waits for an in-flight cycle,
// whose remote calls abort via the same ctx.
func (s *Scheduler) Run(ctx context.Context) {
	s.setRunning(true)
	defer s.setRunning(false)

	s.logger.Info("Scheduler started", zap.Duration("interval", s.interval))

	for {
		next := nextAligned(time.Now(), s.interval)
		s.setNextRun(next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Scheduler stopping")
			s.wg.Wait()
			return
		case <-timer.C:
			s.fire(ctx)
		}
	}
}

// Status returns a snapshot of scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:     s.running,
		CycleActive: s.cycleActive,
		LastRun:     s.lastRun,
		NextRun:     s.nextRun,
		LastSummary: s.summary,
	}
}

// fire launches one cycle unless a prior one still holds the in-flight lock.
func (s *Scheduler) fire(ctx context.Context) {
	if !s.inFlight.TryLock() {
		metrics.CyclesSkippedTotal.Inc()
		s.logger.Warn("Skipping scheduled cycle, previous run still in flight")
		return
	}

	s.setCycleActive(true)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Unlock()
		defer s.setCycleActive(false)

		summary, _, err := s.svc.RunCycle(ctx, Meta{
			Trigger:    "scheduled",
			Sourcetype: domain.SourcetypeScheduled,
		})

		s.mu.Lock()
		s.lastRun = time.Now()
		if err == nil {
			s.summary = summary
		}
		s.mu.Unlock()
	}()
}

func (s *Scheduler) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *Scheduler) setNextRun(t time.Time) {
	s.mu.Lock()
	s.nextRun = t
	s.mu.Unlock()
}

func (s *Scheduler) setCycleActive(v bool) {
	s.mu.Lock()
	s.cycleActive = v
	s.mu.Unlock()
}

// nextAligned returns the next interval boundary strictly after now.
func nextAligned(now time.Time, interval time.Duration) time.Time {
	return now.Truncate(interval).Add(interval)
}
