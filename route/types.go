package route

import (
	"fmt"
	"time"
)

// GeoPoint is a latitude/longitude pair in decimal degrees
type GeoPoint struct {
	Lat float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" yaml:"lon" validate:"gte=-180,lte=180"`
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// Route is an ordered list of points the truck drives through
type Route []GeoPoint

// Clone returns a copy that shares no storage with r
func (r Route) Clone() Route {
	if r == nil {
		return nil
	}
	out := make(Route, len(r))
	copy(out, r)
	return out
}

// State is the playback state of a Player
type State int

const (
	Idle State = iota
	Running
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText lets State render as its name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a State name written by MarshalText
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = Idle
	case "running":
		*s = Running
	case "finished":
		*s = Finished
	default:
		return fmt.Errorf("unknown player state %q", text)
	}
	return nil
}

// Step is one emitted route position
type Step struct {
	Index    int      `json:"index"`
	Point    GeoPoint `json:"point"`
	Progress float64  `json:"progress"` // 0.0-1.0, (Index+1)/len(route)
}

// Status represents the current player status
type Status struct {
	State       State         `json:"state"`
	TripID      string        `json:"trip_id,omitempty"`
	Cursor      int           `json:"cursor"`
	Total       int           `json:"total"`
	Progress    float64       `json:"progress"`
	Position    *GeoPoint     `json:"position,omitempty"`
	StartTime   time.Time     `json:"start_time"`
	ElapsedTime time.Duration `json:"elapsed_time"` // only while running
}
