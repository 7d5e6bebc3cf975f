// Package config holds the lockstep server's tunable parameters: the
// operational surface spec.md §6 calls for (host, port, max_players,
// tick_rate, frame_timeout, max_requests_per_second, max_input_size),
// plus an environment-variable overlay on sensible defaults. This
// follows the teacher's loadConfig()-over-DefaultServerConfig() shape
// exactly (race/server's config.go); there is no file-based
// configuration loading, which spec.md §1 names as an out-of-scope
// collaborator.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/race/lockstep/internal/room"
)

// Defaults for every knob spec.md §6's operational surface names.
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 8080

	DefaultTickRateHz           = 30 // spec.md §2: fixed 30 Hz logical clock
	DefaultFrameTimeout         = time.Second
	DefaultMaxRequestsPerSecond = 100 // spec.md §4.7
	DefaultMaxInputSize         = 10 * 1024 // spec.md §6
	DefaultMaxPlayers           = room.DefaultMaxPlayers
	DefaultStartThreshold       = room.DefaultStartThreshold
	DefaultAuthTimeout          = 5 * time.Second  // spec.md §4.7 step 1
	DefaultHeartbeatTimeout     = 20 * time.Second // spec.md §5
	DefaultMaxDisconnectTime    = room.DefaultMaxDisconnectTime
	DefaultIdleRoomTimeout      = room.DefaultIdleTimeout
)

// ServerConfig is the full set of knobs lockstepd needs to start.
type ServerConfig struct {
	Host string
	Port int

	MaxPlayers           int
	StartThreshold       int
	TickRateHz           int
	FrameTimeout         time.Duration
	MaxRequestsPerSecond int
	MaxInputSize         int
	AuthTimeout          time.Duration
	HeartbeatTimeout     time.Duration
	MaxDisconnectTime    time.Duration
	IdleRoomTimeout      time.Duration

	EnableCORS bool
}

// TickInterval is how often the per-room scheduler commits a tick
// (spec.md §4.6's "33.33 ms cadence", derived from TickRateHz rather
// than hardcoded so a non-default tick rate stays internally
// consistent).
func (c ServerConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRateHz)
}

// DefaultServerConfig returns the default configuration, mirroring the
// teacher's DefaultServerConfig().
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host: DefaultHost,
		Port: DefaultPort,

		MaxPlayers:           DefaultMaxPlayers,
		StartThreshold:       DefaultStartThreshold,
		TickRateHz:           DefaultTickRateHz,
		FrameTimeout:         DefaultFrameTimeout,
		MaxRequestsPerSecond: DefaultMaxRequestsPerSecond,
		MaxInputSize:         DefaultMaxInputSize,
		AuthTimeout:          DefaultAuthTimeout,
		HeartbeatTimeout:     DefaultHeartbeatTimeout,
		MaxDisconnectTime:    DefaultMaxDisconnectTime,
		IdleRoomTimeout:      DefaultIdleRoomTimeout,

		EnableCORS: true,
	}
}

// LoadFromEnv overlays environment variables onto cfg, exactly the
// teacher's loadConfig() pattern: start from defaults, override only
// what's set, ignore malformed overrides rather than failing startup.
func LoadFromEnv(cfg *ServerConfig) {
	if host := os.Getenv("LOCKSTEP_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("LOCKSTEP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if mp := os.Getenv("LOCKSTEP_MAX_PLAYERS"); mp != "" {
		if n, err := strconv.Atoi(mp); err == nil && n > 0 {
			cfg.MaxPlayers = n
		}
	}
	if tr := os.Getenv("LOCKSTEP_TICK_RATE"); tr != "" {
		if n, err := strconv.Atoi(tr); err == nil && n > 0 {
			cfg.TickRateHz = n
		}
	}
	if ft := os.Getenv("LOCKSTEP_FRAME_TIMEOUT_MS"); ft != "" {
		if n, err := strconv.Atoi(ft); err == nil && n > 0 {
			cfg.FrameTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if rps := os.Getenv("LOCKSTEP_MAX_REQUESTS_PER_SECOND"); rps != "" {
		if n, err := strconv.Atoi(rps); err == nil && n > 0 {
			cfg.MaxRequestsPerSecond = n
		}
	}
	if mis := os.Getenv("LOCKSTEP_MAX_INPUT_SIZE"); mis != "" {
		if n, err := strconv.Atoi(mis); err == nil && n > 0 {
			cfg.MaxInputSize = n
		}
	}
	if hb := os.Getenv("LOCKSTEP_HEARTBEAT_TIMEOUT_MS"); hb != "" {
		if n, err := strconv.Atoi(hb); err == nil && n > 0 {
			cfg.HeartbeatTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if cors := os.Getenv("LOCKSTEP_ENABLE_CORS"); cors == "false" {
		cfg.EnableCORS = false
	}
}
