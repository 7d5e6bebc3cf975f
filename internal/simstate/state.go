// Package simstate aggregates the entities, player bindings, and PRNG
// state that make up one room's deterministic simulation, and provides
// the snapshot/rollback/hash machinery both the server and the client
// predictor use to detect and recover from divergence.
package simstate

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/race/lockstep/internal/entity"
	"github.com/race/lockstep/internal/prng"
)

// MaxSnapshots bounds the snapshot ring (spec.md §3, §4.4).
const MaxSnapshots = 60

// ErrSnapshotNotFound is returned by RestoreSnapshot/RollbackTo when the
// requested frame id has already been evicted from the ring.
var ErrSnapshotNotFound = errors.New("simstate: snapshot not found")

// GameState is the full deterministic simulation for one room.
type GameState struct {
	FrameID uint32

	entities      map[int32]*entity.Entity
	playerBinding map[uint16]int32
	pool          *entity.Pool

	RNG *prng.PRNG

	Running bool
	Paused  bool

	ring *snapshotRing
}

// New creates an empty game state seeded for deterministic randomness.
func New(seed uint32) *GameState {
	return &GameState{
		entities:      make(map[int32]*entity.Entity),
		playerBinding: make(map[uint16]int32),
		pool:          entity.NewPool(),
		RNG:           prng.New(seed),
		Running:       true,
		ring:          newSnapshotRing(MaxSnapshots),
	}
}

// AddEntity registers e under its own id. e.ID must be unique within the
// state.
func (g *GameState) AddEntity(e *entity.Entity) {
	g.entities[e.ID] = e
}

// RemoveEntity removes an entity and returns it to the pool.
func (g *GameState) RemoveEntity(id int32) {
	if e, ok := g.entities[id]; ok {
		delete(g.entities, id)
		g.pool.Put(e)
	}
	for playerID, boundID := range g.playerBinding {
		if boundID == id {
			delete(g.playerBinding, playerID)
		}
	}
}

// GetEntity looks up an entity by id.
func (g *GameState) GetEntity(id int32) (*entity.Entity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// Entities returns the live entity map. Callers that iterate it in a way
// that affects simulation state must go through entity.SortedIDs first.
func (g *GameState) Entities() map[int32]*entity.Entity {
	return g.entities
}

// BindPlayer associates a player id with an entity id. The invariant that
// every bound entity id exists in Entities is the caller's
// responsibility to establish before binding.
func (g *GameState) BindPlayer(playerID uint16, entityID int32) {
	g.playerBinding[playerID] = entityID
}

// PlayerEntity resolves a player's bound entity, if any.
func (g *GameState) PlayerEntity(playerID uint16) (*entity.Entity, bool) {
	id, ok := g.playerBinding[playerID]
	if !ok {
		return nil, false
	}
	return g.GetEntity(id)
}

// AdvanceFrame increments the frame counter. Called once per committed
// tick, after physics and input application for that tick.
func (g *GameState) AdvanceFrame() {
	g.FrameID++
}

// Snapshot is an immutable point-in-time copy of a GameState, keyed by
// the frame it was taken before.
type Snapshot struct {
	FrameID  uint32
	Entities []*entity.Entity // deep copies, sorted by id
	RNGState uint32
	Metadata map[string]string
	Hash     string
}

// SaveSnapshot deep-copies the current state into a new Snapshot, inserts
// it into the bounded ring (evicting the oldest on overflow), and returns
// it.
func (g *GameState) SaveSnapshot() Snapshot {
	ids := entity.SortedIDs(g.entities)
	copies := make([]*entity.Entity, 0, len(ids))
	for _, id := range ids {
		copies = append(copies, g.entities[id].Clone())
	}

	snap := Snapshot{
		FrameID:  g.FrameID,
		Entities: copies,
		RNGState: g.RNG.GetState(),
	}
	snap.Hash = computeHash(copies)

	g.ring.insert(snap)
	return snap
}

// RestoreSnapshot replaces the live entities and PRNG state with the
// snapshot recorded for frameID. It fails with ErrSnapshotNotFound if the
// snapshot has been evicted from the ring.
func (g *GameState) RestoreSnapshot(frameID uint32) error {
	snap, ok := g.ring.get(frameID)
	if !ok {
		return ErrSnapshotNotFound
	}
	g.applySnapshot(snap)
	return nil
}

// RollbackTo is an alias for RestoreSnapshot in the predictor's vocabulary
// (spec.md §4.4 names both operations; they're the same mechanism viewed
// from two callers).
func (g *GameState) RollbackTo(frameID uint32) error {
	return g.RestoreSnapshot(frameID)
}

func (g *GameState) applySnapshot(snap Snapshot) {
	g.entities = make(map[int32]*entity.Entity, len(snap.Entities))
	for _, e := range snap.Entities {
		g.entities[e.ID] = e.Clone()
	}
	g.RNG.SetState(snap.RNGState)
	g.FrameID = snap.FrameID
}

// ComputeStateHash is the core invariant for desync detection
// (spec.md §4.4): MD5 over the canonical serialization of entities only —
// wall-clock timestamps, render-only data, and transport state never
// enter the hash.
func (g *GameState) ComputeStateHash() string {
	ids := entity.SortedIDs(g.entities)
	ordered := make([]*entity.Entity, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, g.entities[id])
	}
	return computeHash(ordered)
}

// fieldSeparator cannot appear in the decimal text of any field, so it's
// safe as a canonical join byte (spec.md §4.4(c)).
const fieldSeparator = '\x1f'

func computeHash(ordered []*entity.Entity) string {
	var b strings.Builder
	for _, e := range ordered {
		fmt.Fprintf(&b, "%d%c%d%c%d%c%d%c%d%c%d%c%d%c%d%c%d",
			e.ID, fieldSeparator,
			e.X.Raw(), fieldSeparator,
			e.Y.Raw(), fieldSeparator,
			e.VX.Raw(), fieldSeparator,
			e.VY.Raw(), fieldSeparator,
			e.W.Raw(), fieldSeparator,
			e.H.Raw(), fieldSeparator,
			e.HP, fieldSeparator,
			e.MaxHP,
		)
		b.WriteByte(fieldSeparator)
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
