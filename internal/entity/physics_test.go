package entity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/race/lockstep/internal/fixedpoint"
	"github.com/race/lockstep/internal/protocol"
)

func newTestEntity(id int32) *Entity {
	return &Entity{
		ID: id,
		W:  fixedpoint.FromInt(10),
		H:  fixedpoint.FromInt(10),
	}
}

func TestApplyInputOpposingFlagsCancel(t *testing.T) {
	e := newTestEntity(1)
	in := protocol.Input{Flags: protocol.FlagMoveLeft | protocol.FlagMoveRight | protocol.FlagMoveUp | protocol.FlagMoveDown}
	ApplyInput(e, in, fixedpoint.FromFloat(10))

	require.Equal(t, fixedpoint.Fixed(0), e.VX)
	require.Equal(t, fixedpoint.Fixed(0), e.VY)
}

func TestApplyInputSingleDirection(t *testing.T) {
	e := newTestEntity(1)
	speed := fixedpoint.FromFloat(10)
	ApplyInput(e, protocol.Input{Flags: protocol.FlagMoveRight}, speed)

	require.Equal(t, speed, e.VX)
	require.Equal(t, fixedpoint.Fixed(0), e.VY)
}

// TestUpdateDeterministicOrder covers the id-ascending iteration order
// requirement: physics applied to two independently ordered maps with the
// same content must produce the same result.
func TestUpdateDeterministicOrder(t *testing.T) {
	build := func() map[int32]*Entity {
		m := make(map[int32]*Entity)
		for i := int32(1); i <= 20; i++ {
			e := newTestEntity(i)
			e.VX = fixedpoint.FromFloat(float64(i))
			m[i] = e
		}
		return m
	}

	c := DefaultConstants()
	ph1 := NewPhysics(c, 64<<16)
	ph2 := NewPhysics(c, 64<<16)

	m1 := build()
	m2 := build()

	ph1.Update(m1, 33)
	ph2.Update(m2, 33)

	for id := range m1 {
		require.Equal(t, m1[id].X, m2[id].X, "entity %d", id)
		require.Equal(t, m1[id].Y, m2[id].Y, "entity %d", id)
	}
}

func TestUpdateClampsToWorldBounds(t *testing.T) {
	c := DefaultConstants()
	ph := NewPhysics(c, 64<<16)

	e := newTestEntity(1)
	e.X = c.WorldMaxX.Add(fixedpoint.FromInt(1000))
	e.VX = fixedpoint.FromFloat(100)

	m := map[int32]*Entity{1: e}
	ph.Update(m, 33)

	require.Equal(t, c.WorldMaxX, e.X)
}

func TestUpdateAppliesGravityAndFriction(t *testing.T) {
	c := DefaultConstants()
	ph := NewPhysics(c, 64<<16)

	e := newTestEntity(1)
	e.VX = fixedpoint.FromInt(10)
	m := map[int32]*Entity{1: e}
	ph.Update(m, 1000)

	require.True(t, e.VY.Greater(0), "gravity should have increased vy")
	require.Equal(t, fixedpoint.FromInt(10).Mul(c.Friction), e.VX, "friction should have scaled vx")
}

func TestSpatialGridDetectsSameBucketCollision(t *testing.T) {
	grid := NewSpatialGrid(64 << 16)

	a := newTestEntity(1)
	b := newTestEntity(2)
	b.X = fixedpoint.FromInt(1)

	entities := map[int32]*Entity{1: a, 2: b}
	ids := SortedIDs(entities)
	grid.Rebuild(entities, ids)

	pairs := grid.PotentialCollisions(entities)
	require.Len(t, pairs, 1)
	require.Equal(t, CollisionPair{LowID: 1, HighID: 2}, pairs[0])
}

func TestSpatialGridStableOrderAcrossRuns(t *testing.T) {
	entities := make(map[int32]*Entity)
	for i := int32(1); i <= 10; i++ {
		e := newTestEntity(i)
		e.X = fixedpoint.FromInt(int32(i % 3))
		entities[i] = e
	}

	run := func() []CollisionPair {
		grid := NewSpatialGrid(64 << 16)
		ids := SortedIDs(entities)
		grid.Rebuild(entities, ids)
		return grid.PotentialCollisions(entities)
	}

	require.Equal(t, run(), run())
}

func TestOverlaps(t *testing.T) {
	a := newTestEntity(1)
	b := newTestEntity(2)

	require.True(t, Overlaps(a, b))

	b.X = fixedpoint.FromInt(100)
	require.False(t, Overlaps(a, b))
}
