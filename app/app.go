// Package app holds the state of the tracking demo that sits around the
// route player: login, theme, rider availability, the tracking screen
// status and the notification raised when the truck is close.
package app

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Bucknalla/go-truck-tracker/route"
)

// Theme is the colour scheme of the phone screen
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Tracking screen status texts
const (
	StatusOffline  = "Rider Offline"
	StatusOnline   = "Rider Online"
	StatusArriving = "Arriving in 2 mins"
	StatusArrived  = "Arrived"
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// Config holds the options for an App
type Config struct {
	OneTimeCode string
	Route       route.Route
	Home        route.GeoPoint
	LogLimit    int         // console lines kept for snapshots
	Logger      *log.Logger // nil means log.Default()
}

// DefaultConfig returns the demo configuration
func DefaultConfig() Config {
	return Config{
		OneTimeCode: "1234",
		Route:       route.DefaultRoute(),
		Home:        route.Home,
		LogLimit:    100,
	}
}

// Validate checks if the configuration is valid and returns an error if not
func (c *Config) Validate() error {
	if c.OneTimeCode == "" {
		return ErrMissingCode
	}
	if len(c.Route) == 0 {
		return route.ErrEmptyRoute
	}
	return nil
}

// LogEntry is one line of the simulation console
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Snapshot is a consistent view of the whole app state
type Snapshot struct {
	LoggedIn         bool           `json:"logged_in"`
	Theme            Theme          `json:"theme"`
	DriverOnline     bool           `json:"driver_online"`
	TruckMoving      bool           `json:"truck_moving"`
	Arrived          bool           `json:"arrived"`
	NotificationOpen bool           `json:"notification_open"`
	TrackingStatus   string         `json:"tracking_status"`
	ProgressPercent  float64        `json:"progress_percent"`
	Truck            route.GeoPoint `json:"truck"`
	Home             route.GeoPoint `json:"home"`
	Address          string         `json:"address,omitempty"`
	RemainingMeters  float64        `json:"remaining_meters"`
	Player           route.Status   `json:"player"`
	Log              []LogEntry     `json:"log"`
}

// App is the application context shared by the transport layers. It
// implements route.Listener for the runs it starts.
type App struct {
	mu     sync.Mutex
	config Config
	store  Store
	player *route.Player
	logger *log.Logger

	route            route.Route
	active           route.Route // route of the current or last run
	loggedIn         bool
	theme            Theme
	driverOnline     bool
	arrived          bool
	notificationOpen bool
	progress         float64 // percent
	cursor           int     // index of the last reported point
	truck            route.GeoPoint
	address          string
	console          []LogEntry

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// New creates an App around player, persisting flags in store
func New(config Config, store Store, player *route.Player) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.LogLimit <= 0 {
		config.LogLimit = 100
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &App{
		config: config,
		store:  store,
		player: player,
		logger: logger,
		route:  config.Route.Clone(),
		theme:  ThemeLight,
		truck:  route.DefaultTruckLocation,
		subs:   make(map[int]chan Event),
	}, nil
}

// Init restores the persisted login and theme flags
func (a *App) Init() {
	a.mu.Lock()
	a.logLocked("System initialized.")
	if v, ok := a.store.Get(KeyLoggedIn); ok && v == "true" {
		a.loggedIn = true
		a.logLocked("User auto-logged in from session.")
	}
	if v, ok := a.store.Get(KeyTheme); ok && Theme(v) == ThemeDark {
		a.theme = ThemeDark
	}
	a.mu.Unlock()

	a.publishStatus()
}

// Login checks the phone number and one-time code and persists the session
func (a *App) Login(phone, code string) error {
	phone = strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	if !phonePattern.MatchString(phone) {
		return ErrInvalidPhone
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(a.config.OneTimeCode)) != 1 {
		return ErrInvalidCode
	}

	a.mu.Lock()
	a.loggedIn = true
	err := a.store.Set(KeyLoggedIn, "true")
	a.logLocked("User logged in successfully.")
	a.mu.Unlock()

	a.publishStatus()
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

// Logout clears the persisted session
func (a *App) Logout() error {
	a.mu.Lock()
	a.loggedIn = false
	err := a.store.Delete(KeyLoggedIn)
	a.logLocked("User logged out.")
	a.mu.Unlock()

	a.publishStatus()
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// ApplyTheme switches the colour scheme and persists it
func (a *App) ApplyTheme(theme Theme) error {
	if theme != ThemeLight && theme != ThemeDark {
		return ErrInvalidTheme
	}

	a.mu.Lock()
	a.theme = theme
	err := a.store.Set(KeyTheme, string(theme))
	a.mu.Unlock()

	a.publishStatus()
	if err != nil {
		return fmt.Errorf("apply theme: %w", err)
	}
	return nil
}

// ToggleTheme flips between light and dark and returns the new theme
func (a *App) ToggleTheme() (Theme, error) {
	a.mu.Lock()
	next := ThemeDark
	if a.theme == ThemeDark {
		next = ThemeLight
	}
	a.mu.Unlock()

	if err := a.ApplyTheme(next); err != nil {
		return "", err
	}

	a.mu.Lock()
	if next == ThemeDark {
		a.logLocked("Switched to Dark Mode")
	} else {
		a.logLocked("Switched to Light Mode")
	}
	a.mu.Unlock()
	return next, nil
}

// SetDriverOnline puts the rider on or off duty. Going online parks the
// truck at the start of the route, going offline resets the route.
func (a *App) SetDriverOnline(online bool) {
	a.mu.Lock()
	if a.driverOnline == online {
		a.mu.Unlock()
		return
	}
	a.driverOnline = online
	if online {
		a.truck = a.route[0]
		a.logLocked("Rider is now ONLINE.")
	} else {
		a.logLocked("Rider went OFFLINE.")
	}
	a.mu.Unlock()

	if !online {
		a.ResetRoute()
		return
	}
	a.publishStatus()
}

// ToggleDriver flips rider availability and returns the new value
func (a *App) ToggleDriver() bool {
	a.mu.Lock()
	online := !a.driverOnline
	a.mu.Unlock()

	a.SetDriverOnline(online)
	return online
}

// StartRoute starts the truck. It fails while the rider is offline and is
// a no-op while the truck is already moving.
func (a *App) StartRoute() error {
	a.mu.Lock()
	if !a.driverOnline {
		a.mu.Unlock()
		return ErrDriverOffline
	}
	if a.player.IsRunning() {
		a.mu.Unlock()
		return nil
	}
	r := a.route
	a.arrived = false
	a.progress = 0
	a.cursor = 0
	a.mu.Unlock()

	// The player calls back into a, so a.mu must not be held here.
	err := a.player.Start(r, a)
	if errors.Is(err, route.ErrAlreadyRunning) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("start route: %w", err)
	}

	a.mu.Lock()
	a.active = r
	a.logLocked("Truck started route...")
	a.mu.Unlock()

	a.publishStatus()
	return nil
}

// ResetRoute stops the truck and rewinds it to the start of the route
func (a *App) ResetRoute() {
	a.player.Stop()

	a.mu.Lock()
	a.progress = 0
	a.cursor = 0
	a.active = nil
	a.arrived = false
	a.notificationOpen = false
	if a.driverOnline {
		a.truck = a.route[0]
	}
	a.logLocked("Route reset.")
	a.mu.Unlock()

	a.publishStatus()
}

// SetRoute replaces the route used by the next StartRoute. A run in
// progress keeps driving its own copy.
func (a *App) SetRoute(r route.Route) error {
	if len(r) == 0 {
		return route.ErrEmptyRoute
	}

	a.mu.Lock()
	a.route = r.Clone()
	if a.driverOnline && !a.player.IsRunning() {
		a.truck = a.route[0]
	}
	a.logLocked(fmt.Sprintf("Route loaded with %d points.", len(r)))
	a.mu.Unlock()

	a.publishStatus()
	return nil
}

// Route returns a copy of the configured route
func (a *App) Route() route.Route {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.route.Clone()
}

// SaveLocation records the delivery address
func (a *App) SaveLocation(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return ErrEmptyAddress
	}

	a.mu.Lock()
	a.address = address
	a.logLocked("Location updated to: " + address)
	a.mu.Unlock()

	a.publishStatus()
	return nil
}

// ShowNotification raises the near-arrival alert
func (a *App) ShowNotification() {
	a.mu.Lock()
	a.notificationOpen = true
	a.logLocked("Notification triggered!")
	a.mu.Unlock()

	a.publish(Event{Type: EventNearArrival, Data: a.Snapshot()})
}

// CloseNotification dismisses the near-arrival alert
func (a *App) CloseNotification() {
	a.mu.Lock()
	a.notificationOpen = false
	a.mu.Unlock()

	a.publishStatus()
}

// Snapshot returns the current state
func (a *App) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	moving := a.player.IsRunning()
	console := make([]LogEntry, len(a.console))
	copy(console, a.console)

	return Snapshot{
		LoggedIn:         a.loggedIn,
		Theme:            a.theme,
		DriverOnline:     a.driverOnline,
		TruckMoving:      moving,
		Arrived:          a.arrived,
		NotificationOpen: a.notificationOpen,
		TrackingStatus:   a.trackingStatusLocked(moving),
		ProgressPercent:  a.progress,
		Truck:            a.truck,
		Home:             a.config.Home,
		Address:          a.address,
		RemainingMeters:  a.drivenRouteLocked().Remaining(a.cursor),
		Player:           a.player.Status(),
		Log:              console,
	}
}

// drivenRouteLocked returns the route the cursor refers to. A reloaded route
// only takes over once the current run is reset.
func (a *App) drivenRouteLocked() route.Route {
	if a.active != nil {
		return a.active
	}
	return a.route
}

func (a *App) trackingStatusLocked(moving bool) string {
	switch {
	case !a.driverOnline:
		return StatusOffline
	case a.arrived:
		return StatusArrived
	case moving:
		return StatusArriving
	default:
		return StatusOnline
	}
}

// Position implements route.Listener
func (a *App) Position(step route.Step) {
	a.mu.Lock()
	a.truck = step.Point
	a.cursor = step.Index
	a.progress = step.Progress * 100
	a.mu.Unlock()

	a.publish(Event{Type: EventPosition, Data: step})
}

// NearArrival implements route.Listener
func (a *App) NearArrival() {
	a.ShowNotification()
}

// Arrived implements route.Listener
func (a *App) Arrived() {
	a.mu.Lock()
	a.arrived = true
	a.logLocked("Truck arrived at location.")
	a.mu.Unlock()

	a.publish(Event{Type: EventArrived, Data: a.Snapshot()})
}

// logLocked appends to the console and mirrors it to the logger. Callers
// hold a.mu.
func (a *App) logLocked(msg string) {
	entry := LogEntry{Time: time.Now(), Message: msg}
	a.console = append(a.console, entry)
	if over := len(a.console) - a.config.LogLimit; over > 0 {
		a.console = append(a.console[:0:0], a.console[over:]...)
	}
	a.logger.Printf("app: %s", msg)
	a.publish(Event{Type: EventLog, Data: entry})
}
