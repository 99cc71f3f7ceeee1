package route

import "errors"

// Common errors returned by the route player
var (
	ErrInvalidInterval        = errors.New("tick interval must be positive")
	ErrInvalidLookahead       = errors.New("near-arrival lookahead must be at least 1 step")
	ErrEmptyRoute             = errors.New("route has no points")
	ErrAlreadyRunning         = errors.New("route is already running")
	ErrUnsupportedRouteFormat = errors.New("unsupported route file format")
	ErrWriterClosed           = errors.New("GPX writer is closed")
)
