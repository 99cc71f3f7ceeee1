package route

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Player replays a Route at one point per tick and reports each position
// to a Listener
type Player struct {
	mu     sync.RWMutex // guards the playback fields below
	tickMu sync.Mutex   // serialises ticks with Start and Stop
	config Config
	clock  Clock
	// Playback fields
	route     Route
	state     State
	cursor    int
	nearFired bool
	tripID    string
	startTime time.Time
	run       *playback
}

// playback is the timer and listener of a single run
type playback struct {
	ticker   Ticker
	done     chan struct{}
	listener Listener
}

// NewPlayer creates a new idle route player
func NewPlayer(config Config) (*Player, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clock := config.Clock
	if clock == nil {
		clock = wallClock{}
	}

	return &Player{
		config: config,
		clock:  clock,
		state:  Idle,
	}, nil
}

// Start begins replaying r from its first point. The first position is
// reported one interval after Start returns. Starting a running player or
// an empty route returns an error and leaves the player untouched.
func (p *Player) Start(r Route, l Listener) error {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Running {
		return ErrAlreadyRunning
	}
	if len(r) == 0 {
		return ErrEmptyRoute
	}
	if l == nil {
		l = Callbacks{}
	}

	pb := &playback{
		ticker:   p.clock.NewTicker(p.config.Interval),
		done:     make(chan struct{}),
		listener: l,
	}

	p.route = r.Clone()
	p.state = Running
	p.cursor = 0
	p.nearFired = false
	p.tripID = uuid.NewString()
	p.startTime = time.Now()
	p.run = pb

	go p.loop(pb)
	return nil
}

// Stop cancels the current run, if any, and rewinds the cursor. No listener
// call of the cancelled run happens after Stop returns. Safe to call at any
// time.
func (p *Player) Stop() {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.run != nil {
		p.release(p.run)
	}
	p.state = Idle
	p.cursor = 0
	p.nearFired = false
}

// IsRunning returns whether a route is currently being replayed
func (p *Player) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == Running
}

// State returns the current playback state
func (p *Player) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Cursor returns the index of the next point to be reported
func (p *Player) Cursor() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cursor
}

// Status returns the current player status
func (p *Player) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status := Status{
		State:     p.state,
		TripID:    p.tripID,
		Cursor:    p.cursor,
		Total:     len(p.route),
		StartTime: p.startTime,
	}
	if p.state == Running {
		status.ElapsedTime = time.Since(p.startTime)
	}
	if len(p.route) > 0 {
		emitted := p.cursor
		if emitted > len(p.route) {
			emitted = len(p.route)
		}
		status.Progress = float64(emitted) / float64(len(p.route))
		if emitted > 0 {
			pos := p.route[emitted-1]
			status.Position = &pos
		}
	}
	return status
}

// loop drives one run until its done channel is closed
func (p *Player) loop(pb *playback) {
	for {
		select {
		case <-pb.done:
			return
		case <-pb.ticker.C():
			p.tick(pb)
		}
	}
}

// tick advances the cursor by one point, or finishes the run once the
// route is exhausted
func (p *Player) tick(pb *playback) {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	p.mu.Lock()
	if p.run != pb {
		// Stopped or restarted while this tick was pending.
		p.mu.Unlock()
		return
	}

	total := len(p.route)
	if p.cursor >= total {
		p.state = Finished
		p.release(pb)
		p.mu.Unlock()
		pb.listener.Arrived()
		return
	}

	step := Step{
		Index:    p.cursor,
		Point:    p.route[p.cursor],
		Progress: float64(p.cursor+1) / float64(total),
	}

	// Routes shorter than the lookahead never get a near-arrival.
	lookahead := p.config.NearArrivalSteps
	near := !p.nearFired && total >= lookahead && p.cursor == total-lookahead
	if near {
		p.nearFired = true
	}
	p.mu.Unlock()

	pb.listener.Position(step)
	if near {
		pb.listener.NearArrival()
	}

	p.mu.Lock()
	p.cursor++
	p.mu.Unlock()
}

// release stops the ticker of pb and ends its loop. Callers hold p.mu.
func (p *Player) release(pb *playback) {
	pb.ticker.Stop()
	close(pb.done)
	if p.run == pb {
		p.run = nil
	}
}
