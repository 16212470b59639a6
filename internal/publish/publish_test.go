package publish

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/bucketpress/internal/apperr"
)

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		was := !t.stopped
		t.stopped = true
		return was
	}
}

// Advance moves the clock and fires every timer that came due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	rest := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.at.After(c.now) {
			due = append(due, t)
			continue
		}
		rest = append(rest, t)
	}
	c.timers = rest
	c.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

type fakeEndpoint struct {
	calls  atomic.Int32
	err    error
	cfgErr error
	// during runs inside Trigger.
	during func()
}

func (f *fakeEndpoint) Validate() error { return f.cfgErr }

func (f *fakeEndpoint) Trigger(context.Context) error {
	f.calls.Add(1)
	if f.during != nil {
		f.during()
	}
	return f.err
}

func newTestCoordinator(ep Endpoint, clock *fakeClock, opts ...Option) *Coordinator {
	opts = append([]Option{WithClock(clock.Now, clock.AfterFunc)}, opts...)
	return NewCoordinator(ep, opts...)
}

func TestRequestPublish_CooldownBlocksSecondCall(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	ep := &fakeEndpoint{}
	c := newTestCoordinator(ep, clock)

	res, err := c.RequestPublish(ctx)
	require.NoError(t, err)
	assert.True(t, res.Triggered)
	assert.Equal(t, PhaseSucceeded, res.Snapshot.Phase)

	clock.Advance(10 * time.Second)
	res, err = c.RequestPublish(ctx)
	require.NoError(t, err)
	assert.False(t, res.Triggered)
	assert.Equal(t, PhaseCoolingDown, res.Snapshot.Phase)
	assert.Equal(t, 20, res.Snapshot.Remaining)
	assert.Equal(t, "Wait 20s", res.Snapshot.Message)
	assert.EqualValues(t, 1, ep.calls.Load(), "no second network call")

	clock.Advance(20 * time.Second)
	assert.Equal(t, PhaseIdle, c.Snapshot().Phase)
	res, err = c.RequestPublish(ctx)
	require.NoError(t, err)
	assert.True(t, res.Triggered)
	assert.EqualValues(t, 2, ep.calls.Load())
}

func TestRequestPublish_PhasesOverTime(t *testing.T) {
	clock := newFakeClock()
	c := newTestCoordinator(&fakeEndpoint{}, clock)
	_, err := c.RequestPublish(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PhaseSucceeded, c.Snapshot().Phase)
	clock.Advance(DefaultMinDuration)
	s := c.Snapshot()
	assert.Equal(t, PhaseCoolingDown, s.Phase)
	assert.Equal(t, 28, s.Remaining)
	assert.False(t, s.Ready())

	clock.Advance(27*time.Second + 500*time.Millisecond)
	assert.Equal(t, 1, c.Snapshot().Remaining, "remaining rounds up")
	clock.Advance(500 * time.Millisecond)
	assert.True(t, c.Snapshot().Ready())
}

func TestRequestPublish_InFlightAbsorbsRequests(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	ep := &fakeEndpoint{}
	c := newTestCoordinator(ep, clock)

	var inner Result
	ep.during = func() {
		inner, _ = c.RequestPublish(ctx)
	}
	_, err := c.RequestPublish(ctx)
	require.NoError(t, err)
	assert.False(t, inner.Triggered)
	assert.Equal(t, PhasePublishing, inner.Snapshot.Phase)
	assert.EqualValues(t, 1, ep.calls.Load())
}

func TestRequestPublish_FailureFloorThenRetry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	ep := &fakeEndpoint{err: apperr.Transport(apperr.OpPublish, "failed to publish: 502 bad gateway", nil)}
	c := newTestCoordinator(ep, clock)

	res, err := c.RequestPublish(ctx)
	require.Error(t, err)
	assert.True(t, res.Triggered)
	assert.Equal(t, PhaseFailed, res.Snapshot.Phase)
	assert.Contains(t, res.Snapshot.Message, "502")

	res, err = c.RequestPublish(ctx)
	require.NoError(t, err)
	assert.False(t, res.Triggered, "floor still running")

	clock.Advance(DefaultMinDuration)
	s := c.Snapshot()
	assert.Equal(t, PhaseIdle, s.Phase, "failure arms no cooldown")
	assert.Contains(t, s.LastError, "bad gateway")

	ep.err = nil
	res, err = c.RequestPublish(ctx)
	require.NoError(t, err)
	assert.True(t, res.Triggered)
	assert.Empty(t, res.Snapshot.LastError)
	assert.EqualValues(t, 2, ep.calls.Load())
}

func TestRequestPublish_DeadlinesIndependent(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	ep := &fakeEndpoint{}
	c := newTestCoordinator(ep, clock, WithCooldown(time.Second), WithMinDuration(5*time.Second))

	_, err := c.RequestPublish(ctx)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	s := c.Snapshot()
	assert.Equal(t, PhaseSucceeded, s.Phase, "cooldown over, floor still pending")
	res, err := c.RequestPublish(ctx)
	require.NoError(t, err)
	assert.False(t, res.Triggered)

	clock.Advance(3 * time.Second)
	res, err = c.RequestPublish(ctx)
	require.NoError(t, err)
	assert.True(t, res.Triggered)
}

func TestRequestPublish_SlowCallCoversFloor(t *testing.T) {
	clock := newFakeClock()
	ep := &fakeEndpoint{}
	ep.during = func() { clock.Advance(3 * time.Second) }
	c := newTestCoordinator(ep, clock)

	res, err := c.RequestPublish(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseCoolingDown, res.Snapshot.Phase, "floor measured from the start")
	assert.Equal(t, 30, res.Snapshot.Remaining, "cooldown measured from the finish")
}

func TestRequestPublish_ConfigurationError(t *testing.T) {
	clock := newFakeClock()
	ep := &fakeEndpoint{cfgErr: apperr.Configuration(apperr.OpPublish, "publish URL is not set")}
	var events []Snapshot
	c := newTestCoordinator(ep, clock, WithObserver(func(s Snapshot) { events = append(events, s) }))

	res, err := c.RequestPublish(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	assert.False(t, res.Triggered)
	assert.Equal(t, PhaseIdle, res.Snapshot.Phase)
	assert.Zero(t, ep.calls.Load())
	assert.Empty(t, events)
}

func TestObserverSeesTimerTransitions(t *testing.T) {
	clock := newFakeClock()
	var (
		mu     sync.Mutex
		phases []Phase
	)
	c := newTestCoordinator(&fakeEndpoint{}, clock, WithObserver(func(s Snapshot) {
		mu.Lock()
		phases = append(phases, s.Phase)
		mu.Unlock()
	}))

	_, err := c.RequestPublish(context.Background())
	require.NoError(t, err)
	clock.Advance(DefaultMinDuration)
	clock.Advance(DefaultCooldown)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{PhasePublishing, PhaseSucceeded, PhaseCoolingDown, PhaseIdle}, phases)
}

func TestClose_StopsTimers(t *testing.T) {
	clock := newFakeClock()
	var n atomic.Int32
	c := newTestCoordinator(&fakeEndpoint{}, clock, WithObserver(func(Snapshot) { n.Add(1) }))
	_, err := c.RequestPublish(context.Background())
	require.NoError(t, err)
	c.Close()
	clock.Advance(time.Minute)
	assert.EqualValues(t, 2, n.Load())
}

func TestWebhook_Trigger(t *testing.T) {
	var gotAuth, gotType, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotMethod = r.Method
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "s3cret", srv.Client())
	require.NoError(t, wh.Trigger(context.Background()))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.Equal(t, "application/json", gotType)
}

func TestWebhook_FailureCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("deploy queue full"))
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, "t", srv.Client()).Trigger(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTransport))
	msg := apperr.Message(err, "")
	assert.Contains(t, msg, "503")
	assert.Contains(t, msg, "deploy queue full")
}

func TestWebhook_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewWebhook(url, "t", nil).Trigger(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTransport))
}

func TestWebhook_Validate(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }))
	defer srv.Close()

	err := NewWebhook("", "t", nil).Trigger(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	err = NewWebhook(srv.URL, "", nil).Trigger(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	assert.Zero(t, calls.Load())
	assert.NoError(t, NewWebhook(srv.URL, "t", nil).Validate())
}
