package route

// Listener receives playback events from a Player. Methods are called from
// the player's tick goroutine, one at a time. They may call IsRunning or
// Status but must not call Start or Stop synchronously.
type Listener interface {
	Position(step Step)
	NearArrival()
	Arrived()
}

// Callbacks adapts plain functions to a Listener. Nil fields are skipped.
type Callbacks struct {
	OnPosition    func(Step)
	OnNearArrival func()
	OnArrived     func()
}

func (c Callbacks) Position(step Step) {
	if c.OnPosition != nil {
		c.OnPosition(step)
	}
}

func (c Callbacks) NearArrival() {
	if c.OnNearArrival != nil {
		c.OnNearArrival()
	}
}

func (c Callbacks) Arrived() {
	if c.OnArrived != nil {
		c.OnArrived()
	}
}

// Listeners fans every event out to each listener in order
type Listeners []Listener

func (ls Listeners) Position(step Step) {
	for _, l := range ls {
		l.Position(step)
	}
}

func (ls Listeners) NearArrival() {
	for _, l := range ls {
		l.NearArrival()
	}
}

func (ls Listeners) Arrived() {
	for _, l := range ls {
		l.Arrived()
	}
}
