package entity

import (
	"sort"

	"github.com/race/lockstep/internal/fixedpoint"
)

var half = fixedpoint.FromFloat(0.5)

// CellKey identifies one bucket of the uniform spatial grid.
type CellKey struct {
	X, Y int64
}

// Less gives CellKey a canonical lexicographic order, so that iterating
// buckets in this order produces the same collision-pair sequence on
// every run — a plain Go map iterates buckets in randomized order, which
// the teacher's original SpatialGrid relied on and which this module
// deliberately does not.
func (k CellKey) Less(other CellKey) bool {
	if k.X != other.X {
		return k.X < other.X
	}
	return k.Y < other.Y
}

// SpatialGrid buckets entities by cell for broad-phase collision
// detection, rebuilt fresh every tick from the current entity positions.
type SpatialGrid struct {
	cellSize int64
	cells    map[CellKey][]int32
}

// NewSpatialGrid creates a grid with the given cell edge length, expressed
// as a raw Q16.16 value (e.g. 64<<16 for a 64-unit cell, per spec.md §4.3).
func NewSpatialGrid(cellSize int32) *SpatialGrid {
	return &SpatialGrid{
		cellSize: int64(cellSize),
		cells:    make(map[CellKey][]int32),
	}
}

func (g *SpatialGrid) keyFor(e *Entity) CellKey {
	return CellKey{
		X: int64(e.X.Raw()) / g.cellSize,
		Y: int64(e.Y.Raw()) / g.cellSize,
	}
}

// Rebuild clears and repopulates the grid from entities, appending each id
// to its bucket in the order ids is given (the caller passes the
// id-ascending slice so that bucket contents are themselves deterministic).
func (g *SpatialGrid) Rebuild(entities map[int32]*Entity, ids []int32) {
	g.cells = make(map[CellKey][]int32, len(ids))
	for _, id := range ids {
		key := g.keyFor(entities[id])
		g.cells[key] = append(g.cells[key], id)
	}
}

// sortedKeys returns the grid's occupied cell keys in canonical order.
func (g *SpatialGrid) sortedKeys() []CellKey {
	keys := make([]CellKey, 0, len(g.cells))
	for k := range g.cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// PotentialCollisions narrows every broad-phase candidate pair — entities
// sharing a bucket, or occupying adjacent buckets to the right/below,
// visited in canonical key order so the result is stable across runs —
// down to the ones whose AABBs actually overlap (spec.md §4.3 step 3:
// "AABB overlap uses fixed-point comparisons"). Each pair is reported at
// most once, low id first.
func (g *SpatialGrid) PotentialCollisions(entities map[int32]*Entity) []CollisionPair {
	var pairs []CollisionPair
	keys := g.sortedKeys()

	// Neighbor offsets covering "right" and "below" without double
	// counting: same cell, plus (1,-1),(1,0),(1,1),(0,1).
	neighborOffsets := []CellKey{{X: 1, Y: -1}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}

	for _, key := range keys {
		bucket := g.cells[key]

		// Pairs within the same bucket.
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				if Overlaps(entities[bucket[i]], entities[bucket[j]]) {
					pairs = append(pairs, orderedPair(bucket[i], bucket[j]))
				}
			}
		}

		// Pairs against the right/below neighbor buckets.
		for _, off := range neighborOffsets {
			nKey := CellKey{X: key.X + off.X, Y: key.Y + off.Y}
			neighbor, ok := g.cells[nKey]
			if !ok {
				continue
			}
			for _, a := range bucket {
				for _, b := range neighbor {
					if Overlaps(entities[a], entities[b]) {
						pairs = append(pairs, orderedPair(a, b))
					}
				}
			}
		}
	}

	return pairs
}

func orderedPair(a, b int32) CollisionPair {
	if a < b {
		return CollisionPair{LowID: a, HighID: b}
	}
	return CollisionPair{LowID: b, HighID: a}
}

// Overlaps reports whether two axis-aligned entities overlap, using
// fixed-point comparisons throughout.
func Overlaps(a, b *Entity) bool {
	halfAW, halfAH := a.W.Mul(half), a.H.Mul(half)
	halfBW, halfBH := b.W.Mul(half), b.H.Mul(half)

	if a.X.Add(halfAW).Less(b.X.Sub(halfBW)) || b.X.Add(halfBW).Less(a.X.Sub(halfAW)) {
		return false
	}
	if a.Y.Add(halfAH).Less(b.Y.Sub(halfBH)) || b.Y.Add(halfBH).Less(a.Y.Sub(halfAH)) {
		return false
	}
	return true
}
