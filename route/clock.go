package route

import "time"

// Ticker delivers ticks on C until stopped
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers. The player only ever needs periodic ticks.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type wallClock struct{}

func (wallClock) NewTicker(d time.Duration) Ticker {
	return wallTicker{time.NewTicker(d)}
}

type wallTicker struct {
	t *time.Ticker
}

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }
