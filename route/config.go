package route

import "time"

// Config holds the playback options for a Player
type Config struct {
	Interval         time.Duration // time between ticks
	NearArrivalSteps int           // steps before the end at which NearArrival fires
	Clock            Clock         // ticker source, nil means wall clock
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval:         1 * time.Second,
		NearArrivalSteps: 3,
	}
}

// Validate checks if the configuration is valid and returns an error if not
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.NearArrivalSteps < 1 {
		return ErrInvalidLookahead
	}
	return nil
}
