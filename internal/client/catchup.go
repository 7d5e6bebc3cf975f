package client

import (
	"fmt"

	"github.com/race/lockstep/internal/entity"
	"github.com/race/lockstep/internal/fixedpoint"
	"github.com/race/lockstep/internal/simstate"
	"github.com/race/lockstep/internal/wire"
)

// CatchUp advances state through every frame in frames, in the order
// given, applying each tick exactly as OnAuthoritative would for a tick
// arriving live (spec.md §4.9: "advances the simulation through the
// replayed frames without rendering" — this module has no render hooks
// to skip, so that reduces to just running ApplyFrame). frames must
// already be in ascending frame_id order, which is how
// internal/room.Room.Reconnect builds a sync_frames payload.
//
// playerSlots maps each frame's string player_id keys to the dense
// uint16 slot the frame engine and protocol.Input use internally — the
// same mapping the reconnecting client learned from join_success's
// roster order.
func CatchUp(state *simstate.GameState, phys *entity.Physics, frames []wire.GameFramePayload, playerSlots map[string]uint16, inputSpeed fixedpoint.Fixed, dtMs int64) error {
	for _, f := range frames {
		if f.FrameID != state.FrameID {
			return fmt.Errorf("client: catch-up frame gap: have %d, want %d", f.FrameID, state.FrameID)
		}
		inputs := make(map[uint16][]byte, len(f.Inputs))
		for playerID, data := range f.Inputs {
			slot, ok := playerSlots[playerID]
			if !ok {
				continue
			}
			inputs[slot] = data
		}
		simstate.ApplyFrame(state, phys, inputs, inputSpeed, dtMs)
	}
	return nil
}

// RestoreFromSnapshot rebuilds a GameState from a decoded resync_full
// payload (spec.md §4.9's "the client restores from it" path, taken when
// the reconnect gap exceeds MAX_FRAME_HISTORY). Player binding is
// reconstructed on the convention internal/room spawns under: entity id
// equals the player's dense uint16 slot.
func RestoreFromSnapshot(frameID, rngState uint32, entities []wire.SnapshotEntity) *simstate.GameState {
	state := simstate.New(0)
	state.RNG.SetState(rngState)
	state.FrameID = frameID

	for _, e := range entities {
		ent := &entity.Entity{
			ID:    e.ID,
			X:     fixedpoint.FromRaw(e.X),
			Y:     fixedpoint.FromRaw(e.Y),
			VX:    fixedpoint.FromRaw(e.VX),
			VY:    fixedpoint.FromRaw(e.VY),
			W:     fixedpoint.FromRaw(e.W),
			H:     fixedpoint.FromRaw(e.H),
			HP:    e.HP,
			MaxHP: e.MaxHP,
		}
		state.AddEntity(ent)
		state.BindPlayer(uint16(e.ID), e.ID)
	}

	return state
}
