package simstate

import (
	"github.com/race/lockstep/internal/entity"
	"github.com/race/lockstep/internal/fixedpoint"
	"github.com/race/lockstep/internal/protocol"
)

// ApplyFrame runs one committed tick against the game state: each bound
// player's input is decoded and applied to its entity (spec.md §4.3's
// apply_input), then the physics step integrates every entity and
// reports the tick's collision pairs. This is the single place both the
// server's room tick loop and the client predictor execute a tick, so
// that "game rules execute identically on server and clients" (spec.md
// §1) is true by construction rather than by convention.
//
// inputs maps player_id to its 16-byte wire input, exactly the shape of
// a committed frame.Frame's Inputs field. A malformed or absent input for
// a bound player is skipped rather than failing the whole tick: that
// entity gets no ApplyInput this tick and keeps its current velocity
// through the physics step — admission already rejects malformed input before it
// reaches the frame engine, so this is defense in depth, not the primary
// validation path.
func ApplyFrame(state *GameState, phys *entity.Physics, inputs map[uint16][]byte, inputSpeed fixedpoint.Fixed, dtMs int64) []entity.CollisionPair {
	for playerID, data := range inputs {
		e, ok := state.PlayerEntity(playerID)
		if !ok {
			continue
		}
		in, err := protocol.Deserialize(data)
		if err != nil {
			continue
		}
		entity.ApplyInput(e, in, inputSpeed)
	}

	pairs := phys.Update(state.entities, dtMs)
	state.AdvanceFrame()
	return pairs
}
