package entity

import (
	"github.com/race/lockstep/internal/fixedpoint"
	"github.com/race/lockstep/internal/protocol"
)

// Constants is the set of fixed-point physics tunables a simulation is
// configured with. All values are constructed once, at configuration
// time, and stored as Fixed — the simulation never mixes raw integers and
// fixed-point without an explicit conversion.
type Constants struct {
	Gravity     fixedpoint.Fixed // per second, applied as (G*dt_ms)/1000
	MaxVelocity fixedpoint.Fixed
	Friction    fixedpoint.Fixed // Q16.16 encoding of the per-tick retention factor
	InputSpeed  fixedpoint.Fixed // velocity magnitude ApplyInput grants per axis

	WorldMinX, WorldMinY fixedpoint.Fixed
	WorldMaxX, WorldMaxY fixedpoint.Fixed
}

// DefaultConstants returns a reasonable tuned set of physics constants for
// tests and for a server that hasn't been given its own.
func DefaultConstants() Constants {
	return Constants{
		Gravity:     fixedpoint.FromFloat(20.0),
		MaxVelocity: fixedpoint.FromFloat(500.0),
		Friction:    fixedpoint.FromFloat(0.9),
		InputSpeed:  fixedpoint.FromFloat(200.0),
		WorldMinX:   fixedpoint.FromFloat(-4096),
		WorldMinY:   fixedpoint.FromFloat(-4096),
		WorldMaxX:   fixedpoint.FromFloat(4096),
		WorldMaxY:   fixedpoint.FromFloat(4096),
	}
}

// Physics runs the per-tick integration and collision pass described in
// spec.md §4.3.
type Physics struct {
	Constants Constants
	Grid      *SpatialGrid
}

// NewPhysics creates a physics step configured with c, backed by a
// spatial grid with the given cell size (already expressed as a raw
// Q16.16 cell edge length, e.g. 64<<16 per spec.md §4.3).
func NewPhysics(c Constants, cellSize int32) *Physics {
	return &Physics{
		Constants: c,
		Grid:      NewSpatialGrid(cellSize),
	}
}

// CollisionPair is a stable, order-independent pairing of two colliding
// entity ids, always reported with the smaller id first.
type CollisionPair struct {
	LowID, HighID int32
}

// Update runs one physics tick over every entity, in id-ascending order,
// then rebuilds the spatial grid and returns the stable list of
// colliding pairs. Collision resolution itself is the caller's concern;
// this step only detects overlap.
func (ph *Physics) Update(entities map[int32]*Entity, dtMs int64) []CollisionPair {
	ids := SortedIDs(entities)
	c := ph.Constants

	for _, id := range ids {
		e := entities[id]

		// Gravity: vy += (G*dt_ms)/1000
		e.VY = e.VY.Add(integrateRate(c.Gravity, dtMs))

		// Clamp |vx|, |vy| <= V_max.
		e.VX = fixedpoint.Clamp(e.VX, c.MaxVelocity.Neg(), c.MaxVelocity)
		e.VY = fixedpoint.Clamp(e.VY, c.MaxVelocity.Neg(), c.MaxVelocity)

		// Advance position: x += (vx*dt_ms)/1000, y += (vy*dt_ms)/1000.
		e.X = e.X.Add(integrateRate(e.VX, dtMs))
		e.Y = e.Y.Add(integrateRate(e.VY, dtMs))

		// Clamp to world bounds.
		e.X = fixedpoint.Clamp(e.X, c.WorldMinX, c.WorldMaxX)
		e.Y = fixedpoint.Clamp(e.Y, c.WorldMinY, c.WorldMaxY)

		// Friction: vx = (vx * F) >> 16, i.e. Fixed.Mul by the friction factor.
		e.VX = e.VX.Mul(c.Friction)
	}

	ph.Grid.Rebuild(entities, ids)
	return ph.Grid.PotentialCollisions(entities)
}

// integrateRate computes (rate*dtMs)/1000 using Q16.16 multiplication by
// the raw integer dtMs followed by an integer division by 1000, matching
// spec.md §4.3's literal "(vy·dt_ms)/1000" wording.
func integrateRate(rate fixedpoint.Fixed, dtMs int64) fixedpoint.Fixed {
	return fixedpoint.Fixed((int64(rate) * dtMs) / 1000)
}

// ApplyInput sets vx,vy from the input's movement flags. Each axis is the
// sum of its +/- contributions, so opposing flags held simultaneously
// cancel out exactly as spec.md §4.3 specifies.
func ApplyInput(e *Entity, in protocol.Input, speed fixedpoint.Fixed) {
	var vx, vy fixedpoint.Fixed
	if in.Has(protocol.FlagMoveRight) {
		vx = vx.Add(speed)
	}
	if in.Has(protocol.FlagMoveLeft) {
		vx = vx.Sub(speed)
	}
	if in.Has(protocol.FlagMoveDown) {
		vy = vy.Add(speed)
	}
	if in.Has(protocol.FlagMoveUp) {
		vy = vy.Sub(speed)
	}
	e.VX = vx
	e.VY = vy
}
