package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	ReasonStartup  = "startup"
	ReasonInterval = "interval"
	ReasonChanged  = "csv changed"
	ReasonManual   = "manual"

	DefaultDebounce = 1200 * time.Millisecond
)

// RunFunc executes one job run.
type RunFunc func(ctx context.Context, reason string)

// Scheduler runs a job on a fixed interval and on debounced change
// notifications, never more than one run at a time. A trigger that arrives
// while a run is in flight is dropped, not queued.
type Scheduler struct {
	interval time.Duration
	debounce time.Duration
	watch    string
	runFn    RunFunc
	clock    clockwork.Clock
	logger   *zap.Logger

	inFlight atomic.Bool
	running  atomic.Bool

	lifecycle sync.Mutex
	done      chan struct{}

	mu            sync.Mutex
	debounceTimer clockwork.Timer
	ctx           context.Context
	cancel        context.CancelFunc
	// runs counts background runs started by Trigger or the debounce timer.
	// Add is only called under mu.
	runs sync.WaitGroup
}

type Option func(*Scheduler)

func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithWatch makes Start watch path and trigger a run debounce after the last
// change in a burst. A non-positive debounce keeps DefaultDebounce.
func WithWatch(path string, debounce time.Duration) Option {
	return func(s *Scheduler) {
		s.watch = path
		if debounce > 0 {
			s.debounce = debounce
		}
	}
}

func New(interval time.Duration, runFn RunFunc, opts ...Option) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if runFn == nil {
		return nil, errors.New("runFn must not be nil")
	}
	s := &Scheduler{
		interval: interval,
		debounce: DefaultDebounce,
		runFn:    runFn,
		clock:    clockwork.NewRealClock(),
		logger:   zap.NewNop(),
		ctx:      context.Background(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start runs the job once immediately, then on every tick and on debounced
// file changes, until Stop.
func (s *Scheduler) Start() bool {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.ctx = ctx
	s.cancel = cancel
	s.mu.Unlock()
	s.done = make(chan struct{})
	s.running.Store(true)

	var wg sync.WaitGroup
	if s.watch != "" {
		w, err := newFileWatcher(s.watch)
		if err != nil {
			s.logger.Warn("csv watch disabled", zap.String("path", s.watch), zap.Error(err))
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.run(ctx, s.Notify, s.logger)
			}()
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := s.clock.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("scheduler started", zap.Duration("interval", s.interval), zap.String("watch", s.watch))

		s.TryRun(ctx, ReasonStartup)

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopping")
				return
			case <-ticker.Chan():
				s.TryRun(ctx, ReasonInterval)
			}
		}
	}()

	done := s.done
	go func() {
		wg.Wait()
		close(done)
	}()

	return true
}

// Stop cancels pending triggers and waits for the loop and any background
// run to exit. A run in progress sees its context cancelled.
func (s *Scheduler) Stop() bool {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.running.Load() {
		return false
	}

	s.mu.Lock()
	s.cancel()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	s.mu.Unlock()

	<-s.done

	s.mu.Lock()
	s.runs.Wait()
	s.ctx = context.Background()
	s.mu.Unlock()

	s.running.Store(false)

	s.logger.Info("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) InFlight() bool {
	return s.inFlight.Load()
}

// Notify records a change event. Only the last event within the debounce
// window fires a run.
func (s *Scheduler) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	ctx := s.ctx
	s.debounceTimer = s.clock.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		s.runs.Add(1)
		s.mu.Unlock()
		defer s.runs.Done()

		s.TryRun(ctx, ReasonChanged)
	})
}

// TryRun executes a run synchronously unless one is already in flight, in
// which case it returns false immediately.
func (s *Scheduler) TryRun(ctx context.Context, reason string) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Info("run dropped, previous run still in flight", zap.String("reason", reason))
		return false
	}
	defer s.inFlight.Store(false)

	s.safeRun(ctx, reason)
	return true
}

// Trigger starts a run in the background unless one is already in flight.
func (s *Scheduler) Trigger(reason string) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Info("run dropped, previous run still in flight", zap.String("reason", reason))
		return false
	}

	s.mu.Lock()
	ctx := s.ctx
	s.runs.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.runs.Done()
		defer s.inFlight.Store(false)
		s.safeRun(ctx, reason)
	}()
	return true
}

func (s *Scheduler) safeRun(ctx context.Context, reason string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler run panic recovered", zap.String("reason", reason), zap.Any("panic", r))
		}
	}()

	start := s.clock.Now()
	s.runFn(ctx, reason)
	s.logger.Info("scheduler run completed",
		zap.String("reason", reason),
		zap.Int64("duration_ms", s.clock.Since(start).Milliseconds()),
	)
}
