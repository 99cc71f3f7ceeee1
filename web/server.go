// Package web serves the tracking app over HTTP and pushes its events to
// browser clients over a websocket.
package web

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Bucknalla/go-truck-tracker/app"
	"github.com/Bucknalla/go-truck-tracker/route"
)

// Server is the HTTP front end of an app.App
type Server struct {
	app       *app.App
	staticDir string
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client

	events    <-chan app.Event
	cancel    func()
	done      chan struct{}
	closeOnce sync.Once
}

// client is one websocket connection. Writes are serialised by mu.
type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// NewServer creates a server for a and starts forwarding its events to
// websocket clients. Static files are served from staticDir when it is set.
func NewServer(a *app.App, staticDir string) *Server {
	events, cancel := a.Subscribe()
	s := &Server{
		app:       a,
		staticDir: staticDir,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
		clients: make(map[string]*client),
		events:  events,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go s.broadcastToClients()
	return s
}

// Router returns the HTTP handler of the server
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	// API routes carry their full path so a method mismatch on one is not
	// cleared by a later route sharing the /api prefix.
	r.HandleFunc("/api/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/api/theme", s.handleApplyTheme).Methods(http.MethodPost)
	r.HandleFunc("/api/theme/toggle", s.handleToggleTheme).Methods(http.MethodPost)
	r.HandleFunc("/api/driver/toggle", s.handleToggleDriver).Methods(http.MethodPost)
	r.HandleFunc("/api/route/start", s.handleStartRoute).Methods(http.MethodPost)
	r.HandleFunc("/api/route/reset", s.handleResetRoute).Methods(http.MethodPost)
	r.HandleFunc("/api/location", s.handleSaveLocation).Methods(http.MethodPost)
	r.HandleFunc("/api/notification/close", s.handleCloseNotification).Methods(http.MethodPost)
	r.HandleFunc("/api/status", s.handleGetStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/route", s.handleGetRoute).Methods(http.MethodGet)
	r.HandleFunc("/api/gtfsrt/vehicle-positions", s.handleVehiclePositions).Methods(http.MethodGet)
	r.HandleFunc("/api/ws", s.handleWebSocket)

	r.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Serve static files. The API check runs before the catch-all prefix so
	// /api requests keep their 404 or 405.
	if s.staticDir != "" {
		r.MatcherFunc(notAPI).PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir)))
	}

	r.Use(loggingMiddleware)
	return r
}

func notAPI(r *http.Request, _ *mux.RouteMatch) bool {
	return r.URL.Path != "/api" && !strings.HasPrefix(r.URL.Path, "/api/")
}

// Close ends the event subscription and disconnects every client
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done

		s.mu.Lock()
		defer s.mu.Unlock()
		for id, c := range s.clients {
			c.conn.Close()
			delete(s.clients, id)
		}
	})
}

// ClientCount returns the number of connected websocket clients
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	c := &client{id: uuid.NewString(), conn: conn}

	s.mu.Lock()
	s.clients[c.id] = c
	total := len(s.clients)
	s.mu.Unlock()
	log.Printf("Client %s connected. Total clients: %d", c.id, total)

	// Send current status immediately
	if err := c.send(app.Event{Type: app.EventStatus, Data: s.app.Snapshot()}); err != nil {
		log.Printf("Error sending status to %s: %v", c.id, err)
	}

	// Clients only send pings, so reading just detects the disconnect
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, c.id)
	total = len(s.clients)
	s.mu.Unlock()
	log.Printf("Client %s disconnected. Total clients: %d", c.id, total)
}

func (s *Server) broadcastToClients() {
	defer close(s.done)

	for event := range s.events {
		s.mu.Lock()
		clients := make([]*client, 0, len(s.clients))
		for _, c := range s.clients {
			clients = append(clients, c)
		}
		s.mu.Unlock()

		for _, c := range clients {
			if err := c.send(event); err != nil {
				log.Printf("WebSocket write error for %s: %v", c.id, err)
				c.conn.Close()
				s.mu.Lock()
				delete(s.clients, c.id)
				s.mu.Unlock()
			}
		}
	}
}

type loginRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.app.Login(req.Phone, req.Code)
	switch {
	case errors.Is(err, app.ErrInvalidPhone):
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, app.ErrInvalidCode):
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	case err != nil:
		log.Printf("Login failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, r, http.StatusOK, s.app.Snapshot())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Logout(); err != nil {
		log.Printf("Logout failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "logout failed")
		return
	}
	writeJSON(w, r, http.StatusOK, s.app.Snapshot())
}

type themeRequest struct {
	Theme app.Theme `json:"theme"`
}

func (s *Server) handleApplyTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.app.ApplyTheme(req.Theme)
	if errors.Is(err, app.ErrInvalidTheme) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Printf("Apply theme failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "could not save theme")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]app.Theme{"theme": req.Theme})
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := s.app.ToggleTheme()
	if err != nil {
		log.Printf("Toggle theme failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "could not save theme")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]app.Theme{"theme": theme})
}

func (s *Server) handleToggleDriver(w http.ResponseWriter, r *http.Request) {
	online := s.app.ToggleDriver()
	writeJSON(w, r, http.StatusOK, map[string]bool{"online": online})
}

func (s *Server) handleStartRoute(w http.ResponseWriter, r *http.Request) {
	err := s.app.StartRoute()
	if errors.Is(err, app.ErrDriverOffline) {
		writeError(w, r, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		log.Printf("Start route failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "could not start route")
		return
	}
	writeJSON(w, r, http.StatusOK, s.app.Snapshot())
}

func (s *Server) handleResetRoute(w http.ResponseWriter, r *http.Request) {
	s.app.ResetRoute()
	writeJSON(w, r, http.StatusOK, s.app.Snapshot())
}

type locationRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleSaveLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.app.SaveLocation(req.Address); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, s.app.Snapshot())
}

func (s *Server) handleCloseNotification(w http.ResponseWriter, r *http.Request) {
	s.app.CloseNotification()
	writeJSON(w, r, http.StatusOK, s.app.Snapshot())
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.app.Snapshot())
}

type routeResponse struct {
	Points       route.Route    `json:"points"`
	Home         route.GeoPoint `json:"home"`
	LengthMeters float64        `json:"length_meters"`
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	points := s.app.Route()
	writeJSON(w, r, http.StatusOK, routeResponse{
		Points:       points,
		Home:         s.app.Snapshot().Home,
		LengthMeters: points.Length(),
	})
}
