package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is one unit of periodic work. RunOnce must return when ctx is done.
type Job interface {
	Name() string
	RunOnce(ctx context.Context) error
}

type entry struct {
	job      Job
	interval time.Duration
	timeout  time.Duration
}

// Scheduler runs each registered Job on its own ticker.
type Scheduler struct {
	log     *zerolog.Logger
	entries []entry

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(logger *zerolog.Logger) *Scheduler {
	l := logger.With().Str("component", "Scheduler").Logger()
	return &Scheduler{log: &l}
}

// Every registers job to run every interval, each run bounded by timeout.
// If interval <= 0 it defaults to 1 minute; timeout <= 0 means interval.
func (s *Scheduler) Every(interval, timeout time.Duration, job Job) {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = interval
	}
	s.entries = append(s.entries, entry{job: job, interval: interval, timeout: timeout})
}

// Start begins one loop per job. Calling Start twice has no effect.
func (s *Scheduler) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	for _, e := range s.entries {
		s.wg.Add(1)
		go s.loop(ctx, e)
	}
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	defer s.wg.Done()
	l := s.log.With().Str("job", e.job.Name()).Logger()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	l.Info().Dur("interval", e.interval).Msg("job scheduled")
	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("job stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx, e, &l)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, e entry, l *zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("job panicked")
		}
	}()
	start := time.Now()
	if err := e.job.RunOnce(runCtx); err != nil {
		l.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	l.Debug().Dur("took", time.Since(start)).Msg("job finished")
}

// Stop cancels all loops and waits for in-flight runs. It is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}
