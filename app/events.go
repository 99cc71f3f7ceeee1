package app

import "time"

// EventType names the kind of update pushed to subscribers
type EventType string

const (
	EventStatus      EventType = "status"
	EventPosition    EventType = "position"
	EventNearArrival EventType = "near_arrival"
	EventArrived     EventType = "arrived"
	EventLog         EventType = "log"
)

// Event is an update pushed to subscribers
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
	Time time.Time   `json:"time"`
}

// Subscribe returns a channel of future events and a function that ends
// the subscription. Slow subscribers miss events rather than block the app.
func (a *App) Subscribe() (<-chan Event, func()) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	id := a.nextID
	a.nextID++
	ch := make(chan Event, 32)
	a.subs[id] = ch

	cancel := func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		if c, ok := a.subs[id]; ok {
			delete(a.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (a *App) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is behind, skip this update
		}
	}
}

func (a *App) publishStatus() {
	a.publish(Event{Type: EventStatus, Data: a.Snapshot()})
}
