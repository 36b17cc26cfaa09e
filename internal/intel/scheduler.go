package intel

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"workhub/api/internal/store"
)

const (
	DefaultHour       = 12
	generationTimeout = 3 * time.Minute
)

type State string

const (
	StateIdle       State = "idle"
	StateScheduled  State = "scheduled"
	StateGenerating State = "generating"
)

// Timer is the handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall time so tests can drive the scheduler.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

// Runner performs one generation cycle.
type Runner interface {
	Generate(ctx context.Context) ([]store.IntelligencePost, error)
}

type Status struct {
	Running         bool       `json:"running"`
	State           State      `json:"state"`
	Hour            int        `json:"hour"`
	NextRunAt       *time.Time `json:"nextRunAt"`
	LastRunAt       *time.Time `json:"lastRunAt"`
	LastGeneratedAt *time.Time `json:"lastGeneratedAt"`
	LastError       string     `json:"lastError,omitempty"`
	LastCount       int        `json:"lastCount"`
}

// Scheduler fires the Runner once a day at a fixed local hour. At most one
// timer is live; after every fire, successful or not, it re-arms for the next day.
type Scheduler struct {
	runner Runner
	clock  Clock
	hour   int
	logger *zap.Logger

	mu              sync.Mutex
	running         bool
	state           State
	ctx             context.Context
	cancel          context.CancelFunc
	timer           Timer
	timerSeq        uint64
	nextRun         time.Time
	lastRun         time.Time
	lastGeneratedAt time.Time
	lastErr         string
	lastCount       int
	inflight        sync.WaitGroup
}

func NewScheduler(runner Runner, hour int, clock Clock, logger *zap.Logger) *Scheduler {
	if hour < 0 || hour > 23 {
		hour = DefaultHour
	}
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner: runner,
		clock:  clock,
		hour:   hour,
		logger: logger,
		state:  StateIdle,
	}
}

// NextRun returns today at hour:00 in now's location if now is before it,
// otherwise the same time tomorrow.
func NextRun(now time.Time, hour int) time.Time {
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if now.Before(target) {
		return target
	}
	return time.Date(now.Year(), now.Month(), now.Day()+1, hour, 0, 0, 0, now.Location())
}

// Start arms the timer. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.armLocked()
	s.logger.Info("intelligence scheduler started", zap.Time("next_run_at", s.nextRun))
}

// Stop disarms the timer, cancels an in-flight scheduled cycle and waits for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerSeq++
	s.cancel()
	s.state = StateIdle
	s.nextRun = time.Time{}
	s.mu.Unlock()

	s.inflight.Wait()
	s.logger.Info("intelligence scheduler stopped")
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:         s.running,
		State:           s.state,
		Hour:            s.hour,
		NextRunAt:       timePtr(s.nextRun),
		LastRunAt:       timePtr(s.lastRun),
		LastGeneratedAt: timePtr(s.lastGeneratedAt),
		LastError:       s.lastErr,
		LastCount:       s.lastCount,
	}
}

// Trigger runs one cycle now without touching the armed timer.
func (s *Scheduler) Trigger(ctx context.Context) ([]store.IntelligencePost, error) {
	posts, err := s.runner.Generate(ctx)
	s.record(posts, err)
	return posts, err
}

func (s *Scheduler) armLocked() {
	now := s.clock.Now()
	s.nextRun = NextRun(now, s.hour)
	s.timerSeq++
	seq := s.timerSeq
	s.timer = s.clock.AfterFunc(s.nextRun.Sub(now), func() { s.fire(seq) })
	s.state = StateScheduled
}

func (s *Scheduler) fire(seq uint64) {
	s.mu.Lock()
	if !s.running || seq != s.timerSeq {
		s.mu.Unlock()
		return
	}
	s.state = StateGenerating
	s.timer = nil
	s.inflight.Add(1)
	ctx := s.ctx
	s.mu.Unlock()
	defer s.inflight.Done()

	runCtx, cancel := context.WithTimeout(ctx, generationTimeout)
	started := s.clock.Now()
	posts, err := s.runner.Generate(runCtx)
	cancel()
	s.record(posts, err)

	if err != nil {
		s.logger.Error("scheduled intelligence generation failed",
			zap.Error(err),
			zap.Duration("duration", s.clock.Now().Sub(started)),
		)
	} else {
		s.logger.Info("scheduled intelligence generation finished",
			zap.Int("count", len(posts)),
			zap.Duration("duration", s.clock.Now().Sub(started)),
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && seq == s.timerSeq {
		s.armLocked()
	}
}

func (s *Scheduler) record(posts []store.IntelligencePost, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.lastRun = now
	if err != nil {
		s.lastErr = err.Error()
		s.lastCount = 0
		return
	}
	s.lastErr = ""
	s.lastCount = len(posts)
	s.lastGeneratedAt = now
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
