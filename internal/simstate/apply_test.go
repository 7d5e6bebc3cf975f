package simstate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/race/lockstep/internal/entity"
	"github.com/race/lockstep/internal/fixedpoint"
	"github.com/race/lockstep/internal/protocol"
)

func TestApplyFrameMovesBoundEntity(t *testing.T) {
	g := New(1)
	g.AddEntity(&entity.Entity{ID: 0, W: fixedpoint.FromInt(10), H: fixedpoint.FromInt(10)})
	g.BindPlayer(0, 0)
	phys := entity.NewPhysics(entity.DefaultConstants(), 64<<16)

	in := protocol.Input{PlayerID: 0, Flags: protocol.FlagMoveRight}.Serialize()
	speed := entity.DefaultConstants().InputSpeed

	ApplyFrame(g, phys, map[uint16][]byte{0: in[:]}, speed, 33)

	e, _ := g.GetEntity(0)
	require.True(t, e.X.Greater(0), "entity should have moved right")
	require.Equal(t, uint32(1), g.FrameID)
}

// TestApplyFrameDeterministic covers P1: identical inputs applied to two
// independently built states produce identical hashes.
func TestApplyFrameDeterministic(t *testing.T) {
	build := func() (*GameState, *entity.Physics) {
		g := New(42)
		for i := int32(0); i < 3; i++ {
			g.AddEntity(&entity.Entity{ID: i, W: fixedpoint.FromInt(10), H: fixedpoint.FromInt(10)})
			g.BindPlayer(uint16(i), i)
		}
		return g, entity.NewPhysics(entity.DefaultConstants(), 64<<16)
	}

	a, physA := build()
	b, physB := build()
	speed := entity.DefaultConstants().InputSpeed

	for tick := uint32(0); tick < 10; tick++ {
		inputs := map[uint16][]byte{}
		for i := uint16(0); i < 3; i++ {
			flags := protocol.FlagMoveRight
			if i == 1 {
				flags = protocol.FlagMoveUp
			}
			in := protocol.Input{FrameID: tick, PlayerID: i, Flags: flags}.Serialize()
			inputs[i] = in[:]
		}
		ApplyFrame(a, physA, inputs, speed, 33)
		ApplyFrame(b, physB, inputs, speed, 33)
	}

	require.Equal(t, a.ComputeStateHash(), b.ComputeStateHash())
}
