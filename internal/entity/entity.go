// Package entity implements the simulation's entities, the per-tick
// physics step, and spatial-hash collision detection. Everything here
// runs identically on the server and on every client: the same entity
// list, stepped with the same inputs in the same order, must produce the
// same positions everywhere.
package entity

import (
	"sort"

	"github.com/race/lockstep/internal/fixedpoint"
)

// Entity is a single simulated body in fixed-point world space.
type Entity struct {
	ID int32

	X, Y   fixedpoint.Fixed
	VX, VY fixedpoint.Fixed
	W, H   fixedpoint.Fixed

	HP, MaxHP int
}

// Clone returns a deep copy of the entity, used when snapshotting state.
func (e *Entity) Clone() *Entity {
	clone := *e
	return &clone
}

// Pool recycles Entity values so that frequent add/remove cycles (players
// joining and leaving, projectiles spawning and dying) don't churn the
// allocator. Pooled entities are not safe for concurrent reuse — it is
// owned exclusively by the single goroutine driving a room's game state.
type Pool struct {
	free []*Entity
}

// NewPool creates an empty entity pool.
func NewPool() *Pool {
	return &Pool{}
}

// Get returns a zeroed entity, reusing a freed one when available.
func (p *Pool) Get() *Entity {
	if n := len(p.free); n > 0 {
		e := p.free[n-1]
		p.free = p.free[:n-1]
		*e = Entity{}
		return e
	}
	return &Entity{}
}

// Put returns an entity to the pool for reuse.
func (p *Pool) Put(e *Entity) {
	p.free = append(p.free, e)
}

// SortedIDs returns the keys of entities in ascending order. Every piece of
// the simulation that needs to iterate entities in a way that affects
// state (physics integration, input application) must use this order
// instead of ranging over the map directly, since Go map iteration order
// is randomized.
func SortedIDs(entities map[int32]*Entity) []int32 {
	ids := make([]int32, 0, len(entities))
	for id := range entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
