// Package metrics exposes the server-observable counters named in
// SPEC_FULL.md's operational surface: ticks committed, forced ticks,
// violations, and active connections. The retrieval pack's
// other_examples manifests (e.g. kstaniek-go-ampio-server,
// runZeroInc-sockstats) list github.com/prometheus/client_golang as a
// direct dependency for exactly this kind of networked-service
// instrumentation; this package wires it the standard promauto/promhttp
// way rather than hand-rolling an exposition format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksCommitted counts every frame a room's engine committed,
	// whether on time or forced (spec.md §4.6).
	TicksCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockstep_ticks_committed_total",
		Help: "Total frames committed across all rooms.",
	})

	// ForcedTicks counts frames committed by force_tick after
	// frame_timeout elapsed with an incomplete input set (spec.md §4.6).
	ForcedTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockstep_forced_ticks_total",
		Help: "Total frames committed via force_tick after a frame_timeout.",
	})

	// Violations counts admission/validation failures that incremented a
	// player's violation counter (spec.md §4.5, §7).
	Violations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockstep_violations_total",
		Help: "Total input/admission violations recorded across all players.",
	})

	// ConnectionsActive tracks currently open transport connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockstep_connections_active",
		Help: "Currently open transport connections.",
	})

	// RoomsActive tracks currently live rooms.
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockstep_rooms_active",
		Help: "Currently live rooms.",
	})
)
