// Package api provides the HTTP API for observing and steering the scene.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/talgya/fullness/internal/engine"
	"github.com/talgya/fullness/internal/gauge"
	"github.com/talgya/fullness/internal/persistence"
)

const maxStreamConns = 8

// Server serves the scene over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // optional; enables the ledger and snapshot endpoints
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// InputRate is the number of primary presses one client may send per
	// second. Zero means 20.
	InputRate int
	// StreamEvery is the push interval of /api/v1/stream. Zero means one
	// second.
	StreamEvery time.Duration

	started     time.Time
	streamConns int32
	upgrader    websocket.Upgrader
	limiter     *RateLimiter
	http        *http.Server
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	if s.limiter == nil {
		rate := s.InputRate
		if rate <= 0 {
			rate = 20
		}
		s.limiter = NewRateLimiter(rate, time.Second)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/npcs", s.handleNPCs)
	mux.HandleFunc("/api/v1/npc/", s.handleNPCDetail)
	mux.HandleFunc("/api/v1/transfers", s.handleTransfers)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// GET is public, POST requires the admin token.
	mux.HandleFunc("/api/v1/config", s.adminOnly(s.handleConfig))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/input/primary", s.adminOnly(postOnly(RateLimitMiddleware(s.limiter, s.handlePrimary))))
	mux.HandleFunc("/api/v1/player/fullness", s.adminOnly(postOnly(s.handlePlayerFullness)))
	mux.HandleFunc("/api/v1/broadcast/", s.adminOnly(postOnly(s.handleBroadcast)))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(postOnly(s.handleSnapshot)))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.http = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the listener and waits for open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Close()
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no FULLSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	status := map[string]any{
		"name":             "fullsim",
		"tick":             snap.Tick,
		"sim_time":         snap.SimTime,
		"speed":            s.Eng.Speed(),
		"running":          s.Eng.Running(),
		"started":          humanize.Time(s.started),
		"player":           snap.Player,
		"actors":           len(snap.Actors),
		"registered":       snap.Registered,
		"transfers_locked": snap.Locked,
		"active_transfers": len(snap.Transfers),
		"stats":            snap.Stats,
	}
	writeJSON(w, status)
}

func (s *Server) handleNPCs(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	kind := r.URL.Query().Get("kind")
	state := r.URL.Query().Get("state")

	out := make([]engine.ActorView, 0, len(snap.Actors))
	for _, a := range snap.Actors {
		if kind != "" && a.Kind != kind {
			continue
		}
		if state != "" && a.State != state {
			continue
		}
		out = append(out, a)
	}
	writeJSON(w, out)
}

func (s *Server) handleNPCDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/npc/")
	a, ok := s.Sim.Snapshot().Actor(id)
	if !ok {
		http.Error(w, "actor not found", http.StatusNotFound)
		return
	}
	writeJSON(w, a)
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"active": s.Sim.Snapshot().Transfers,
	}
	if s.DB != nil {
		recent, err := s.DB.RecentTransfers(queryLimit(r, 50))
		if err != nil {
			slog.Warn("transfer ledger query failed", "error", err)
		} else {
			resp["recent"] = recent
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.RecentEvents(queryLimit(r, 100)))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		t, err := s.Sim.Live.PatchJSON(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, t)
		return
	}
	writeJSON(w, s.Sim.Live.Get())
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 100 {
			http.Error(w, "speed must be 0-100", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handlePrimary(w http.ResponseWriter, r *http.Request) {
	s.Sim.Enqueue((*engine.Simulation).PressPrimary)
	writeAccepted(w, map[string]any{"queued": "input.primary"})
}

func (s *Server) handlePlayerFullness(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fullness *float64 `json:"fullness"`
		Instant  bool     `json:"instant"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Fullness == nil {
		http.Error(w, "expected {\"fullness\": number}", http.StatusBadRequest)
		return
	}
	v := *req.Fullness
	if v < gauge.Floor || v > gauge.Ceil {
		http.Error(w, "fullness must be within [-1, 1]", http.StatusBadRequest)
		return
	}
	s.Sim.Enqueue(func(sim *engine.Simulation) {
		if req.Instant {
			sim.Player.Gauge().Drive(v)
		} else {
			sim.Player.Gauge().SetTarget(v)
		}
	})
	writeAccepted(w, map[string]any{"fullness": v, "instant": req.Instant})
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	command := strings.TrimPrefix(r.URL.Path, "/api/v1/broadcast/")
	if !engine.ValidCommand(command) {
		http.Error(w, fmt.Sprintf("unknown command %q (want one of %s)", command, strings.Join(engine.Commands, ", ")),
			http.StatusBadRequest)
		return
	}
	s.Sim.Enqueue(func(sim *engine.Simulation) {
		if _, err := sim.Broadcast(command); err != nil {
			slog.Warn("broadcast failed", "command", command, "error", err)
		}
	})
	writeAccepted(w, map[string]any{"queued": command})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no database configured", http.StatusServiceUnavailable)
		return
	}
	snap := s.Sim.Snapshot()
	if err := s.DB.SaveState(snap); err != nil {
		slog.Error("manual save failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"saved_tick": snap.Tick})
}

// handleStream pushes the latest snapshot over a websocket whenever the
// tick has advanced.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.streamConns, 1)
	defer atomic.AddInt32(&s.streamConns, -1)
	if current > maxStreamConns {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader loop: only control frames are expected; any error ends the stream.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	every := s.StreamEvery
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	slog.Info("stream client connected", "remote", clientIP(r))
	var last uint64
	sent := false
	for {
		if snap := s.Sim.Snapshot(); !sent || snap.Tick != last {
			b, err := json.Marshal(snap)
			if err != nil {
				slog.Error("encode snapshot", "error", err)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
			last, sent = snap.Tick, true
		}
		select {
		case <-ctx.Done():
			slog.Info("stream client disconnected", "remote", clientIP(r))
			return
		case <-ticker.C:
		}
	}
}

func queryLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, 1000)
}

func writeAccepted(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(data)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
