package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/bucketpress/internal/apperr"
)

const (
	// DefaultCooldown is how long a successful publish blocks the next one.
	DefaultCooldown = 30 * time.Second
	// DefaultMinDuration is how long an outcome stays visible at minimum.
	DefaultMinDuration = 2 * time.Second
)

// Phase is the user-visible state of the coordinator.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhasePublishing  Phase = "publishing"
	PhaseSucceeded   Phase = "succeeded"
	PhaseFailed      Phase = "failed"
	PhaseCoolingDown Phase = "cooling_down"
)

// Snapshot is the coordinator state at one instant.
type Snapshot struct {
	Phase Phase `json:"phase"`
	// Remaining is the whole seconds of cooldown left, rounded up.
	Remaining     int       `json:"remaining_seconds,omitempty"`
	CooldownUntil time.Time `json:"cooldown_until,omitzero"`
	Message       string    `json:"message,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// Ready reports whether a publish request would be accepted.
func (s Snapshot) Ready() bool {
	return s.Phase == PhaseIdle
}

// Result is the outcome of RequestPublish.
type Result struct {
	// Triggered is false when the request was absorbed by a running
	// publish, the visible-duration floor or the cooldown.
	Triggered bool     `json:"triggered"`
	Snapshot  Snapshot `json:"snapshot"`
}

// Endpoint is the external publish target.
type Endpoint interface {
	Validate() error
	Trigger(ctx context.Context) error
}

// Coordinator lets a publish through at most once per cooldown window. The
// cooldown and the minimum visible duration are tracked as separate
// deadlines; both must pass before the next publish.
type Coordinator struct {
	endpoint    Endpoint
	cooldown    time.Duration
	minDuration time.Duration
	logger      *slog.Logger
	observer    func(Snapshot)
	now         func() time.Time
	afterFunc   func(time.Duration, func()) func() bool

	mu            sync.Mutex
	inFlight      bool
	floorUntil    time.Time
	cooldownUntil time.Time
	outcome       Phase
	lastError     string
	stops         []func() bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCooldown overrides DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(c *Coordinator) { c.cooldown = d }
}

// WithMinDuration overrides DefaultMinDuration.
func WithMinDuration(d time.Duration) Option {
	return func(c *Coordinator) { c.minDuration = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithObserver registers a function called with every state change,
// including the expiry of the floor and of the cooldown.
func WithObserver(fn func(Snapshot)) Option {
	return func(c *Coordinator) { c.observer = fn }
}

// WithClock replaces the wall clock and timer source.
func WithClock(now func() time.Time, afterFunc func(time.Duration, func()) func() bool) Option {
	return func(c *Coordinator) {
		c.now = now
		c.afterFunc = afterFunc
	}
}

// NewCoordinator creates a coordinator publishing to endpoint.
func NewCoordinator(endpoint Endpoint, opts ...Option) *Coordinator {
	c := &Coordinator{
		endpoint:    endpoint,
		cooldown:    DefaultCooldown,
		minDuration: DefaultMinDuration,
		logger:      slog.Default(),
		now:         time.Now,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestPublish calls the endpoint unless a publish is running or one of
// the deadlines is pending, in which case the current snapshot is returned
// with Triggered unset and nothing is called. A missing endpoint
// configuration is reported without touching the state.
func (c *Coordinator) RequestPublish(ctx context.Context) (Result, error) {
	if err := c.endpoint.Validate(); err != nil {
		return Result{Snapshot: c.Snapshot()}, err
	}

	c.mu.Lock()
	now := c.now()
	if c.blockedLocked(now) {
		snap := c.snapshotLocked(now)
		c.mu.Unlock()
		c.logger.Debug("publish request absorbed", slog.String("phase", string(snap.Phase)))
		return Result{Snapshot: snap}, nil
	}
	c.inFlight = true
	c.floorUntil = now.Add(c.minDuration)
	c.outcome = ""
	c.lastError = ""
	started := c.snapshotLocked(now)
	c.mu.Unlock()
	c.emit(started)

	c.logger.Info("publishing")
	err := c.endpoint.Trigger(ctx)

	c.mu.Lock()
	now = c.now()
	c.inFlight = false
	if err != nil {
		c.outcome = PhaseFailed
		c.lastError = apperr.Message(err, err.Error())
	} else {
		c.outcome = PhaseSucceeded
		c.cooldownUntil = now.Add(c.cooldown)
		c.schedule(c.cooldown)
	}
	if d := c.floorUntil.Sub(now); d > 0 {
		c.schedule(d)
	}
	done := c.snapshotLocked(now)
	c.mu.Unlock()
	c.emit(done)

	if err != nil {
		c.logger.Warn("publish failed", slog.String("error", err.Error()))
		return Result{Triggered: true, Snapshot: done}, err
	}
	c.logger.Info("publish succeeded")
	return Result{Triggered: true, Snapshot: done}, nil
}

// Snapshot returns the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(c.now())
}

// Close stops pending timers.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, stop := range c.stops {
		stop()
	}
	c.stops = nil
}

func (c *Coordinator) blockedLocked(now time.Time) bool {
	return c.inFlight || now.Before(c.floorUntil) || now.Before(c.cooldownUntil)
}

func (c *Coordinator) snapshotLocked(now time.Time) Snapshot {
	s := Snapshot{LastError: c.lastError}
	switch {
	case c.inFlight:
		s.Phase = PhasePublishing
		s.Message = "Publishing..."
	case now.Before(c.floorUntil) && c.outcome == PhaseSucceeded:
		s.Phase = PhaseSucceeded
		s.Message = "Changes published"
	case now.Before(c.floorUntil) && c.outcome == PhaseFailed:
		s.Phase = PhaseFailed
		s.Message = c.lastError
	case now.Before(c.cooldownUntil):
		s.Phase = PhaseCoolingDown
		s.Remaining = ceilSeconds(c.cooldownUntil.Sub(now))
		s.Message = fmt.Sprintf("Wait %ds", s.Remaining)
	default:
		s.Phase = PhaseIdle
	}
	if now.Before(c.cooldownUntil) {
		s.CooldownUntil = c.cooldownUntil
	}
	return s
}

// schedule arms a timer that reports the state once d has passed. Callers
// hold c.mu.
func (c *Coordinator) schedule(d time.Duration) {
	c.stops = append(c.stops, c.afterFunc(d, func() {
		c.emit(c.Snapshot())
	}))
}

func (c *Coordinator) emit(s Snapshot) {
	if c.observer != nil {
		c.observer(s)
	}
}

func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
