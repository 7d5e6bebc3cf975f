package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/race/lockstep/internal/entity"
	"github.com/race/lockstep/internal/fixedpoint"
	"github.com/race/lockstep/internal/protocol"
	"github.com/race/lockstep/internal/simstate"
	"github.com/race/lockstep/internal/wire"
)

func newTestPredictor(playerID uint16) (*Predictor, func()) {
	state := simstate.New(7)
	for i := int32(0); i < 2; i++ {
		state.AddEntity(&entity.Entity{ID: i, W: fixedpoint.FromInt(10), H: fixedpoint.FromInt(10)})
		state.BindPlayer(uint16(i), i)
	}
	phys := entity.NewPhysics(entity.DefaultConstants(), 64<<16)
	p := New(state, phys, playerID, []uint16{0, 1}, entity.DefaultConstants().InputSpeed, 33)
	return p, func() {}
}

func serialize(in protocol.Input) []byte {
	buf := in.Serialize()
	return buf[:]
}

// TestOnAuthoritativeNoChangeWhenGuessCorrect covers P8: if the guessed
// input matches the authoritative one, no further state change occurs
// beyond what PredictLocal already applied.
func TestOnAuthoritativeNoChangeWhenGuessCorrect(t *testing.T) {
	p, _ := newTestPredictor(0)

	myInput := protocol.Input{FrameID: 0, PlayerID: 0, Flags: protocol.FlagMoveRight}
	p.PredictLocal(myInput)

	stateAfterPredict := p.State.ComputeStateHash()

	// Player 1 never sent anything before, so the guess was an empty
	// input — the authoritative frame agrees.
	authoritative := map[uint16][]byte{
		0: serialize(myInput),
		1: serialize(protocol.Empty(0, 1)),
	}
	rolledBack, err := p.OnAuthoritative(0, authoritative)
	require.NoError(t, err)
	require.False(t, rolledBack)
	require.Equal(t, stateAfterPredict, p.State.ComputeStateHash())
	require.Empty(t, p.predicted)
}

// TestOnAuthoritativeRollsBackOnMismatch covers S3: player A predicts
// frame 0 assuming player B repeats an empty input; B actually moved.
// A's predictor must roll back, reapply the authoritative frame, and end
// up at the same state as if B's real input had been known from the
// start.
func TestOnAuthoritativeRollsBackOnMismatch(t *testing.T) {
	p, _ := newTestPredictor(0)

	myInput := protocol.Input{FrameID: 0, PlayerID: 0, Flags: protocol.FlagMoveRight}
	p.PredictLocal(myInput)

	bInput := protocol.Input{FrameID: 0, PlayerID: 1, Flags: protocol.FlagMoveUp}
	authoritative := map[uint16][]byte{
		0: serialize(myInput),
		1: serialize(bInput),
	}

	rolledBack, err := p.OnAuthoritative(0, authoritative)
	require.NoError(t, err)
	require.True(t, rolledBack)
	require.Equal(t, 1, p.RollbackCount)

	// Build an independent state that applies the authoritative inputs
	// directly, with no prediction involved, and confirm the predictor
	// converged to the same result.
	reference := simstate.New(7)
	for i := int32(0); i < 2; i++ {
		reference.AddEntity(&entity.Entity{ID: i, W: fixedpoint.FromInt(10), H: fixedpoint.FromInt(10)})
		reference.BindPlayer(uint16(i), i)
	}
	refPhys := entity.NewPhysics(entity.DefaultConstants(), 64<<16)
	simstate.ApplyFrame(reference, refPhys, authoritative, entity.DefaultConstants().InputSpeed, 33)

	require.Equal(t, reference.ComputeStateHash(), p.State.ComputeStateHash())
}

// TestOnAuthoritativeUnknownFrameAppliesDirectly covers the "fid not in
// predicted" branch of spec.md §4.10: no divergence is possible, so the
// tick is just applied.
func TestOnAuthoritativeUnknownFrameAppliesDirectly(t *testing.T) {
	p, _ := newTestPredictor(0)

	authoritative := map[uint16][]byte{
		0: serialize(protocol.Input{FrameID: 0, PlayerID: 0, Flags: protocol.FlagMoveRight}),
		1: serialize(protocol.Empty(0, 1)),
	}
	rolledBack, err := p.OnAuthoritative(0, authoritative)
	require.NoError(t, err)
	require.False(t, rolledBack)
	require.Equal(t, uint32(1), p.State.FrameID)
}

// TestRollbackReplaysLaterSpeculativeTicks covers the part of spec.md
// §4.10 where a rollback at frame f must re-apply every still-pending
// tick after f with freshly rebuilt guesses, not just frame f itself.
func TestRollbackReplaysLaterSpeculativeTicks(t *testing.T) {
	p, _ := newTestPredictor(0)

	p.PredictLocal(protocol.Input{FrameID: 0, PlayerID: 0, Flags: protocol.FlagMoveRight})
	p.PredictLocal(protocol.Input{FrameID: 1, PlayerID: 0, Flags: protocol.FlagMoveRight})
	require.Len(t, p.predicted, 2)

	bInput := protocol.Input{FrameID: 0, PlayerID: 1, Flags: protocol.FlagMoveUp}
	authoritative := map[uint16][]byte{
		0: serialize(protocol.Input{FrameID: 0, PlayerID: 0, Flags: protocol.FlagMoveRight}),
		1: serialize(bInput),
	}
	rolledBack, err := p.OnAuthoritative(0, authoritative)
	require.NoError(t, err)
	require.True(t, rolledBack)

	// Frame 1's guess for player 1 should now be rebuilt from the
	// now-confirmed frame-0 input rather than the original empty guess.
	rec, ok := p.predicted[1]
	require.True(t, ok)
	require.Equal(t, bInput, rec.guessedOthers[1])
	require.Equal(t, uint32(2), p.State.FrameID)
}

// TestCatchUpReachesSameHashAsContinuouslyConnectedClient covers P9.
func TestCatchUpReachesSameHashAsContinuouslyConnectedClient(t *testing.T) {
	phys := entity.NewPhysics(entity.DefaultConstants(), 64<<16)
	speed := entity.DefaultConstants().InputSpeed

	build := func() *simstate.GameState {
		g := simstate.New(7)
		for i := int32(0); i < 2; i++ {
			g.AddEntity(&entity.Entity{ID: i, W: fixedpoint.FromInt(10), H: fixedpoint.FromInt(10)})
			g.BindPlayer(uint16(i), i)
		}
		return g
	}

	continuous := build()
	var frames []wire.GameFramePayload
	for tick := uint32(0); tick < 5; tick++ {
		inputs := map[uint16][]byte{
			0: serialize(protocol.Input{FrameID: tick, PlayerID: 0, Flags: protocol.FlagMoveRight}),
			1: serialize(protocol.Input{FrameID: tick, PlayerID: 1, Flags: protocol.FlagMoveUp}),
		}
		simstate.ApplyFrame(continuous, phys, inputs, speed, 33)
		frames = append(frames, wire.GameFramePayload{
			FrameID:   tick,
			Confirmed: true,
			Inputs:    map[string][]byte{"p0": inputs[0], "p1": inputs[1]},
		})
	}

	reconnecting := build()
	slots := map[string]uint16{"p0": 0, "p1": 1}
	err := CatchUp(reconnecting, entity.NewPhysics(entity.DefaultConstants(), 64<<16), frames, slots, speed, 33)
	require.NoError(t, err)

	require.Equal(t, continuous.ComputeStateHash(), reconnecting.ComputeStateHash())
}
