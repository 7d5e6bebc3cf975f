// Package main implements the lockstep coordination server.
//
// Architecture Overview:
// - Uses WebSocket for real-time bidirectional communication with clients
// - Each room runs its own fixed-rate tick loop driving a frame engine
//   and deterministic game state (spec.md §4.6)
// - Frames are committed and broadcast at the configured tick rate; a
//   frame_timeout forces a tick through rather than stalling the room
// - Admission, rate limiting, and reconnect/catch-up are handled by
//   internal/room; this file only owns the transport
//
// Connection Flow:
// 1. Client connects via WebSocket to /ws
// 2. Client has auth_timeout to send an auth (or reconnect) message
// 3. Server admits the player into a room (creating it if needed)
// 4. Server sends join_success, broadcasts player_joined, and game_start
//    once the room crosses its start threshold
// 5. Client sends input messages; server broadcasts game_frame each tick
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/race/lockstep/config"
	"github.com/race/lockstep/internal/metrics"
	"github.com/race/lockstep/internal/room"
)

// Server is the main server instance that manages all connections and
// rooms, generalizing the teacher's GameServer to the lockstep domain.
type Server struct {
	config   *config.ServerConfig
	manager  *room.Manager
	upgrader websocket.Upgrader
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.DefaultServerConfig()
	config.LoadFromEnv(cfg)

	srv := NewServer(cfg)

	log.Printf("=================================")
	log.Printf("  Lockstep Coordination Server")
	log.Printf("=================================")
	log.Printf("  Host: %s", cfg.Host)
	log.Printf("  Port: %d", cfg.Port)
	log.Printf("  Tick Rate: %d Hz", cfg.TickRateHz)
	log.Printf("  Frame Timeout: %s", cfg.FrameTimeout)
	log.Printf("  Max Players/Room: %d", cfg.MaxPlayers)
	log.Printf("  Start Threshold: %d", cfg.StartThreshold)
	log.Printf("=================================")

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// NewServer creates and initializes a new lockstep server instance.
func NewServer(cfg *config.ServerConfig) *Server {
	return &Server{
		config:  cfg,
		manager: room.NewManager(cfg.MaxPlayers, cfg.StartThreshold, cfg.TickInterval(), cfg.FrameTimeout, cfg.MaxRequestsPerSecond, cfg.MaxInputSize),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.EnableCORS
			},
		},
	}
}

// Run registers HTTP endpoints, launches the idle-room sweep, and blocks
// serving HTTP until the process receives SIGINT/SIGTERM, at which point
// it shuts down the listener gracefully (spec.md §6: clean exit 0).
func (s *Server) Run() error {
	stopSweep := make(chan struct{})
	go s.sweepLoop(stopSweep)
	defer close(stopSweep)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case <-sigCh:
		log.Printf("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return err
		}
		return <-serveErr
	}
}

// sweepLoop periodically destroys idle rooms and reaps stale disconnect
// records (spec.md §5), mirroring the teacher's CleanupEmptyRooms ticker.
func (s *Server) sweepLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			removed := s.manager.Sweep(now, room.DefaultIdleTimeout, room.DefaultMaxDisconnectTime)
			if removed > 0 {
				log.Printf("swept %d idle rooms", removed)
			}
		}
	}
}

// handleHealth responds to health check requests from load balancers and
// container orchestrators.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleStats returns current room/player counts as JSON.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.manager.GetStats()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"rooms":%d,"players":%d}`, stats.TotalRooms, stats.TotalPlayers)
}

// handleWebSocket upgrades the connection and hands it to a fresh
// clientConn, which owns the admission handshake and the read/write
// pumps for the rest of the connection's life.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	metrics.ConnectionsActive.Inc()
	heartbeatTimeout := s.config.HeartbeatTimeout
	c := &clientConn{
		ws:               ws,
		server:           s,
		sendChan:         make(chan []byte, 256),
		done:             make(chan struct{}),
		heartbeatTimeout: heartbeatTimeout,
		pingPeriod:       (heartbeatTimeout * 9) / 10,
	}
	go c.writePump()
	go c.readPump()
}
