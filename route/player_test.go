package route

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// manualClock hands out tickers that only tick when the test fires them
type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (c *manualClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *manualClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *manualClock) last() *manualTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[len(c.tickers)-1]
}

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.stopped.Store(true) }

// fire delivers one tick and fails if the player is not listening
func (t *manualTicker) fire(tb testing.TB) {
	tb.Helper()
	select {
	case t.ch <- time.Now():
	case <-time.After(time.Second):
		tb.Fatal("tick was not consumed by the player")
	}
}

// tryFire delivers a tick if the player still listens within a short timeout
func (t *manualTicker) tryFire() {
	select {
	case t.ch <- time.Now():
	case <-time.After(50 * time.Millisecond):
	}
}

type event struct {
	kind string
	step Step
}

// recorder is a Listener that forwards every call onto a channel
type recorder struct {
	events chan event
}

func newRecorder() *recorder {
	return &recorder{events: make(chan event, 64)}
}

func (r *recorder) Position(step Step) { r.events <- event{kind: "position", step: step} }
func (r *recorder) NearArrival()       { r.events <- event{kind: "near"} }
func (r *recorder) Arrived()           { r.events <- event{kind: "arrived"} }

func (r *recorder) next(tb testing.TB) event {
	tb.Helper()
	select {
	case e := <-r.events:
		return e
	case <-time.After(time.Second):
		tb.Fatal("timed out waiting for player event")
		return event{}
	}
}

func (r *recorder) expectNone(tb testing.TB) {
	tb.Helper()
	select {
	case e := <-r.events:
		tb.Fatalf("Expected no further events, got %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

// Helper function to create a test player driven by a manual clock
func createTestPlayer(t *testing.T) (*Player, *manualClock) {
	t.Helper()
	clock := &manualClock{}
	config := DefaultConfig()
	config.Clock = clock
	p, err := NewPlayer(config)
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}
	t.Cleanup(p.Stop)
	return p, clock
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewPlayer(t *testing.T) {
	p, err := NewPlayer(DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}
	if p.IsRunning() {
		t.Error("Player should not be running initially")
	}
	if p.State() != Idle {
		t.Errorf("Expected state idle, got %s", p.State())
	}
	if p.Cursor() != 0 {
		t.Errorf("Expected cursor 0, got %d", p.Cursor())
	}
}

func TestPlayerFullRun(t *testing.T) {
	p, clock := createTestPlayer(t)
	rec := newRecorder()
	r := DefaultRoute()

	if err := p.Start(r, rec); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !p.IsRunning() {
		t.Fatal("Player should be running after start")
	}
	rec.expectNone(t)

	ticker := clock.last()
	for i := range r {
		ticker.fire(t)

		e := rec.next(t)
		if e.kind != "position" {
			t.Fatalf("Tick %d: expected position, got %s", i+1, e.kind)
		}
		if e.step.Index != i || e.step.Point != r[i] {
			t.Errorf("Tick %d: expected point %d %v, got %d %v", i+1, i, r[i], e.step.Index, e.step.Point)
		}
		wantProgress := float64(i+1) / float64(len(r))
		if e.step.Progress != wantProgress {
			t.Errorf("Tick %d: expected progress %f, got %f", i+1, wantProgress, e.step.Progress)
		}

		// Six ticks in, three steps from the end of eight points.
		if i == 5 {
			if e := rec.next(t); e.kind != "near" {
				t.Fatalf("Expected near-arrival on tick 6, got %s", e.kind)
			}
		}
	}

	if !p.IsRunning() {
		t.Error("Player should still be running until the arrival tick")
	}
	rec.expectNone(t)

	ticker.fire(t)
	if e := rec.next(t); e.kind != "arrived" {
		t.Fatalf("Expected arrived, got %s", e.kind)
	}
	if p.State() != Finished {
		t.Errorf("Expected state finished, got %s", p.State())
	}
	if p.IsRunning() {
		t.Error("Player should not be running after arrival")
	}
	if p.Cursor() != len(r) {
		t.Errorf("Expected cursor %d, got %d", len(r), p.Cursor())
	}
	if !ticker.stopped.Load() {
		t.Error("Ticker should be stopped after arrival")
	}
	// A late tick must not produce anything.
	ticker.tryFire()
	rec.expectNone(t)
}

func TestPlayerStartWhileRunning(t *testing.T) {
	p, clock := createTestPlayer(t)
	rec := newRecorder()

	if err := p.Start(DefaultRoute(), rec); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ticker := clock.last()
	ticker.fire(t)
	rec.next(t)
	ticker.fire(t)
	rec.next(t)
	waitFor(t, func() bool { return p.Cursor() == 2 })
	tripID := p.Status().TripID

	other := Route{{Lat: 1, Lon: 1}}
	if err := p.Start(other, newRecorder()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}
	if clock.count() != 1 {
		t.Errorf("Expected a single ticker, got %d", clock.count())
	}
	if p.Cursor() != 2 {
		t.Errorf("Expected cursor to stay at 2, got %d", p.Cursor())
	}
	if p.Status().TripID != tripID {
		t.Error("Trip ID should not change on a rejected start")
	}

	ticker.fire(t)
	if e := rec.next(t); e.step.Index != 2 {
		t.Errorf("Expected playback to continue at index 2, got %d", e.step.Index)
	}
}

func TestPlayerStop(t *testing.T) {
	p, clock := createTestPlayer(t)
	rec := newRecorder()
	r := DefaultRoute()

	if err := p.Start(r, rec); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ticker := clock.last()
	for i := 0; i < 3; i++ {
		ticker.fire(t)
		rec.next(t)
	}

	p.Stop()

	if p.IsRunning() {
		t.Error("Player should not be running after stop")
	}
	if p.State() != Idle {
		t.Errorf("Expected state idle, got %s", p.State())
	}
	if p.Cursor() != 0 {
		t.Errorf("Expected cursor reset to 0, got %d", p.Cursor())
	}
	if !ticker.stopped.Load() {
		t.Error("Ticker should be stopped")
	}
	ticker.tryFire()
	rec.expectNone(t)

	// A fresh start replays from the first point.
	if err := p.Start(r, rec); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	clock.last().fire(t)
	e := rec.next(t)
	if e.step.Index != 0 || e.step.Point != r[0] {
		t.Errorf("Expected restart at route[0], got %d %v", e.step.Index, e.step.Point)
	}
}

func TestPlayerStopIsIdempotent(t *testing.T) {
	p, _ := createTestPlayer(t)

	p.Stop()
	p.Stop()

	if p.State() != Idle {
		t.Errorf("Expected state idle, got %s", p.State())
	}
}

func TestPlayerStopAfterFinish(t *testing.T) {
	p, clock := createTestPlayer(t)
	rec := newRecorder()

	if err := p.Start(Route{{Lat: 1, Lon: 2}}, rec); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ticker := clock.last()
	ticker.fire(t)
	rec.next(t)
	ticker.fire(t)
	rec.next(t)

	p.Stop()
	if p.State() != Idle || p.Cursor() != 0 {
		t.Errorf("Expected idle at cursor 0, got %s at %d", p.State(), p.Cursor())
	}
}

func TestPlayerEmptyRoute(t *testing.T) {
	p, clock := createTestPlayer(t)

	if err := p.Start(nil, newRecorder()); !errors.Is(err, ErrEmptyRoute) {
		t.Errorf("Expected ErrEmptyRoute, got %v", err)
	}
	if p.IsRunning() {
		t.Error("Player should not run an empty route")
	}
	if clock.count() != 0 {
		t.Errorf("Expected no ticker, got %d", clock.count())
	}
}

func TestPlayerShortRouteSkipsNearArrival(t *testing.T) {
	tests := []struct {
		name  string
		route Route
	}{
		{"one point", Route{{Lat: 1, Lon: 1}}},
		{"two points", Route{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, clock := createTestPlayer(t)
			rec := newRecorder()
			if err := p.Start(tt.route, rec); err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			ticker := clock.last()
			for i := range tt.route {
				ticker.fire(t)
				if e := rec.next(t); e.kind != "position" || e.step.Index != i {
					t.Fatalf("Expected position %d, got %s %d", i, e.kind, e.step.Index)
				}
			}
			ticker.fire(t)
			if e := rec.next(t); e.kind != "arrived" {
				t.Fatalf("Expected arrived, got %s", e.kind)
			}
		})
	}
}

func TestPlayerThreePointRouteNearArrivalOnFirstTick(t *testing.T) {
	p, clock := createTestPlayer(t)
	rec := newRecorder()

	if err := p.Start(Route{{Lat: 1}, {Lat: 2}, {Lat: 3}}, rec); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	clock.last().fire(t)
	if e := rec.next(t); e.kind != "position" {
		t.Fatalf("Expected position, got %s", e.kind)
	}
	if e := rec.next(t); e.kind != "near" {
		t.Fatalf("Expected near-arrival, got %s", e.kind)
	}
}

func TestPlayerCustomLookahead(t *testing.T) {
	clock := &manualClock{}
	config := DefaultConfig()
	config.Clock = clock
	config.NearArrivalSteps = 1
	p, err := NewPlayer(config)
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}
	defer p.Stop()

	rec := newRecorder()
	r := DefaultRoute()
	if err := p.Start(r, rec); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	ticker := clock.last()
	for i := 0; i < len(r)-1; i++ {
		ticker.fire(t)
		rec.next(t)
	}
	rec.expectNone(t)
	ticker.fire(t)
	if e := rec.next(t); e.step.Index != len(r)-1 {
		t.Fatalf("Expected last position, got %d", e.step.Index)
	}
	if e := rec.next(t); e.kind != "near" {
		t.Fatalf("Expected near-arrival on the last point, got %s", e.kind)
	}
}

func TestPlayerCopiesRoute(t *testing.T) {
	p, clock := createTestPlayer(t)
	rec := newRecorder()
	r := DefaultRoute()
	first := r[0]

	if err := p.Start(r, rec); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	r[0] = GeoPoint{Lat: 0, Lon: 0}

	clock.last().fire(t)
	if e := rec.next(t); e.step.Point != first {
		t.Errorf("Expected %v, got %v", first, e.step.Point)
	}
}

func TestPlayerStatus(t *testing.T) {
	p, clock := createTestPlayer(t)
	rec := newRecorder()
	r := DefaultRoute()

	status := p.Status()
	if status.State != Idle || status.Position != nil || !status.StartTime.IsZero() {
		t.Errorf("Unexpected initial status: %+v", status)
	}

	before := time.Now()
	if err := p.Start(r, rec); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status = p.Status()
	if status.StartTime.Before(before) || status.StartTime.After(time.Now()) {
		t.Errorf("Expected start time between %v and now, got %v", before, status.StartTime)
	}
	if status.ElapsedTime < 0 {
		t.Errorf("Expected non-negative elapsed time, got %v", status.ElapsedTime)
	}
	startTime := status.StartTime
	ticker := clock.last()
	for range r {
		ticker.fire(t)
		rec.next(t)
	}
	ticker.fire(t)
	for e := rec.next(t); e.kind != "arrived"; e = rec.next(t) {
	}

	status = p.Status()
	if status.State != Finished {
		t.Errorf("Expected finished, got %s", status.State)
	}
	if status.TripID == "" {
		t.Error("Trip ID should be set once started")
	}
	if status.Total != len(r) || status.Cursor != len(r) {
		t.Errorf("Expected cursor %d of %d, got %d of %d", len(r), len(r), status.Cursor, status.Total)
	}
	if status.Progress != 1 {
		t.Errorf("Expected progress 1, got %f", status.Progress)
	}
	if status.Position == nil || *status.Position != Home {
		t.Errorf("Expected final position %v, got %v", Home, status.Position)
	}
	if !status.StartTime.Equal(startTime) {
		t.Errorf("Expected start time %v to be kept after finishing, got %v", startTime, status.StartTime)
	}
	if status.ElapsedTime != 0 {
		t.Errorf("Expected no elapsed time once finished, got %v", status.ElapsedTime)
	}
}

func TestPlayerWallClock(t *testing.T) {
	config := DefaultConfig()
	config.Interval = 5 * time.Millisecond
	p, err := NewPlayer(config)
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}
	defer p.Stop()

	var mu sync.Mutex
	var points []GeoPoint
	near := 0
	arrived := make(chan struct{})

	err = p.Start(DefaultRoute(), Callbacks{
		OnPosition: func(s Step) {
			mu.Lock()
			points = append(points, s.Point)
			mu.Unlock()
		},
		OnNearArrival: func() {
			mu.Lock()
			near++
			mu.Unlock()
		},
		OnArrived: func() { close(arrived) },
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-arrived:
	case <-time.After(2 * time.Second):
		t.Fatal("route did not finish in time")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(points) != 8 {
		t.Errorf("Expected 8 positions, got %d", len(points))
	}
	if near != 1 {
		t.Errorf("Expected one near-arrival, got %d", near)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"default config", func(c *Config) {}, nil},
		{"zero interval", func(c *Config) { c.Interval = 0 }, ErrInvalidInterval},
		{"negative interval", func(c *Config) { c.Interval = -time.Second }, ErrInvalidInterval},
		{"zero lookahead", func(c *Config) { c.NearArrivalSteps = 0 }, ErrInvalidLookahead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(&config)
			_, err := NewPlayer(config)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewPlayer() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{Idle: "idle", Running: "running", Finished: "finished", State(9): "state(9)"}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("Expected %q, got %q", want, s.String())
		}
	}
}

func TestStateTextRoundTrip(t *testing.T) {
	for _, s := range []State{Idle, Running, Finished} {
		text, _ := s.MarshalText()
		var got State
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) failed: %v", text, err)
		}
		if got != s {
			t.Errorf("Expected %v, got %v", s, got)
		}
	}

	var s State
	if err := s.UnmarshalText([]byte("parked")); err == nil {
		t.Error("Expected error for unknown state name")
	}
}

func TestCallbacksSkipNil(t *testing.T) {
	var c Callbacks
	c.Position(Step{})
	c.NearArrival()
	c.Arrived()
}

func TestListenersFanOut(t *testing.T) {
	a, b := newRecorder(), newRecorder()
	ls := Listeners{a, b}

	ls.Position(Step{Index: 4})
	ls.NearArrival()
	ls.Arrived()

	for _, r := range []*recorder{a, b} {
		if e := r.next(t); e.step.Index != 4 {
			t.Errorf("Expected index 4, got %d", e.step.Index)
		}
		if e := r.next(t); e.kind != "near" {
			t.Errorf("Expected near, got %s", e.kind)
		}
		if e := r.next(t); e.kind != "arrived" {
			t.Errorf("Expected arrived, got %s", e.kind)
		}
	}
}
