package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/race/lockstep/internal/entity"
	"github.com/race/lockstep/internal/fixedpoint"
	"github.com/race/lockstep/internal/simstate"
	"github.com/race/lockstep/internal/wire"
)

func TestEncodeDecodeSnapshotRoundTrip(t *testing.T) {
	g := simstate.New(42)
	g.AddEntity(&entity.Entity{
		ID: 1,
		X:  fixedpoint.FromFloat(10.5), Y: fixedpoint.FromFloat(-3.25),
		VX: fixedpoint.FromFloat(1), VY: fixedpoint.FromFloat(0),
		W: fixedpoint.FromFloat(1), H: fixedpoint.FromFloat(1),
		HP: 100, MaxHP: 100,
	})
	g.AddEntity(&entity.Entity{
		ID: 2,
		X:  fixedpoint.FromFloat(-7), Y: fixedpoint.FromFloat(2),
		HP: 50, MaxHP: 75,
	})

	snap := g.SaveSnapshot()

	data, err := wire.EncodeSnapshot(snap)
	require.NoError(t, err)

	frameID, rngState, hash, entities, err := wire.DecodeSnapshot(data)
	require.NoError(t, err)

	require.Equal(t, snap.FrameID, frameID)
	require.Equal(t, snap.RNGState, rngState)
	require.Equal(t, snap.Hash, hash)
	require.Len(t, entities, 2)

	require.Equal(t, snap.Entities[0].ID, entities[0].ID)
	require.Equal(t, snap.Entities[0].X.Raw(), entities[0].X)
	require.Equal(t, snap.Entities[0].Y.Raw(), entities[0].Y)
	require.Equal(t, snap.Entities[0].HP, entities[0].HP)

	require.Equal(t, snap.Entities[1].ID, entities[1].ID)
	require.Equal(t, snap.Entities[1].MaxHP, entities[1].MaxHP)
}

func TestEncodeSnapshotEmptyEntities(t *testing.T) {
	g := simstate.New(1)
	snap := g.SaveSnapshot()

	data, err := wire.EncodeSnapshot(snap)
	require.NoError(t, err)

	frameID, _, hash, entities, err := wire.DecodeSnapshot(data)
	require.NoError(t, err)
	require.Equal(t, uint32(0), frameID)
	require.Equal(t, snap.Hash, hash)
	require.Empty(t, entities)
}
