// Package client implements the client-side predictor (spec.md §4.10):
// local speculative ticking against a guessed input set, snapshot-keyed
// rollback when the authoritative tick disagrees, and the catch-up
// replay a reconnecting client runs to reach the server's current tick
// (spec.md §4.9). It generalizes andersfylling-rayman-slides's
// internal/client/prediction.go (PredictionBuffer: ring of inputs +
// snapshots keyed by tick) and internal/client/reconciler.go
// (Reconciler.Reconcile: compare, and on mismatch restore + replay).
//
// The one deliberate behavior change from that teacher: rayman-slides
// compares float positions within a tolerance and a fast checksum: this
// package compares the exact byte-wise input set and computes no state
// hash or tolerance of its own (callers that need a full-state compare
// can use internal/simstate's MD5 ComputeStateHash) — a deterministic
// fixed-point simulation has no business tolerating drift, so "close
// enough" isn't a concept here.
//
// A Predictor operates entirely in the frame engine's own vocabulary —
// player slots are the dense uint16 indices internal/engine and
// internal/protocol use, not the string player_id the wire's auth/roster
// messages carry. Mapping a room's roster to those indices (join order,
// exactly as internal/room assigns them) is the caller's job; this
// package assumes it has already been done, the same way internal/room
// itself never re-derives indices it has already assigned.
package client

import (
	"github.com/race/lockstep/internal/entity"
	"github.com/race/lockstep/internal/fixedpoint"
	"github.com/race/lockstep/internal/protocol"
	"github.com/race/lockstep/internal/simstate"
)

// predictedTick records what a speculative local tick guessed, so that
// OnAuthoritative can tell whether the guess was right (spec.md §4.10).
type predictedTick struct {
	myInput       protocol.Input
	guessedOthers map[uint16]protocol.Input // every player but PlayerID
}

// Predictor is one client's speculative execution of the shared
// deterministic simulation. It owns the same simstate.GameState/
// entity.Physics pairing the server's room tick loop drives, so that a
// sequence of ApplyFrame calls produces bit-identical entities and state
// hash on both sides.
type Predictor struct {
	State      *simstate.GameState
	Physics    *entity.Physics
	PlayerID   uint16
	PlayerSlots []uint16 // every player slot in the room, ascending — this player's own slot included
	InputSpeed fixedpoint.Fixed
	TickMillis int64

	// RollbackCount is incremented once per OnAuthoritative call that
	// found a divergence and rolled back (spec.md §4.10, S3).
	RollbackCount int

	predicted map[uint32]*predictedTick
	order     []uint32 // predicted's keys, kept ascending

	lastConfirmed map[uint16]protocol.Input
}

// New creates a predictor driving state/phys for playerID, among the
// given room slots (ascending, dense, as internal/room assigns them).
func New(state *simstate.GameState, phys *entity.Physics, playerID uint16, playerSlots []uint16, inputSpeed fixedpoint.Fixed, tickMillis int64) *Predictor {
	return &Predictor{
		State:         state,
		Physics:       phys,
		PlayerID:      playerID,
		PlayerSlots:   playerSlots,
		InputSpeed:    inputSpeed,
		TickMillis:    tickMillis,
		predicted:     make(map[uint32]*predictedTick),
		lastConfirmed: make(map[uint16]protocol.Input),
	}
}
