package room

import (
	"errors"
	"time"

	"github.com/race/lockstep/internal/wire"
)

// ErrDisconnectExpired is returned by Reconnect when the room has no
// disconnected-table entry for the player: either the player never
// disconnected from this room, or the entry was already reaped past the
// maximum disconnect time.
var ErrDisconnectExpired = errors.New("room: disconnect window expired")

// Reconnect implements spec.md §4.9's server side: it re-admits a
// previously disconnected player and returns the envelope bytes to send
// them — either a sync_frames reply built from retained history, or a
// resync_full reply carrying a full state snapshot when the gap exceeds
// the retained frame history.
func (r *Room) Reconnect(playerID string, conn Connection, lastFrame uint32) ([]byte, error) {
	r.mu.Lock()
	rec, wasDisconnected := r.disconnected[playerID]
	r.mu.Unlock()

	if !wasDisconnected {
		return nil, ErrDisconnectExpired
	}
	_ = rec

	roster, _, err := r.AddMember(playerID, conn)
	if err != nil {
		return nil, err
	}
	_ = roster

	r.mu.RLock()
	current := uint32(0)
	if r.engine != nil {
		current = r.engine.CurrentFrame()
	}
	gap := current - lastFrame
	tooFar := r.engine == nil || gap > r.maxFrameHistory
	r.mu.RUnlock()

	if tooFar {
		return r.buildResyncFull()
	}
	return r.buildSyncFrames(lastFrame, current)
}

func (r *Room) buildSyncFrames(lastFrame, current uint32) ([]byte, error) {
	r.mu.RLock()
	frames := r.engine.HistoryRange(lastFrame, current)
	idToName := r.reverseIndexLocked()
	r.mu.RUnlock()

	payload := wire.SyncFramesPayload{Frames: make([]wire.GameFramePayload, 0, len(frames))}
	for _, f := range frames {
		gf := wire.GameFramePayload{
			FrameID:   f.FrameID,
			Confirmed: f.Confirmed,
			Inputs:    make(map[string][]byte, len(f.Inputs)),
		}
		for idx, data := range f.Inputs {
			gf.Inputs[idToName[idx]] = data
		}
		payload.Frames = append(payload.Frames, gf)
	}
	return wire.Encode(wire.TypeSyncFrames, payload)
}

func (r *Room) buildResyncFull() ([]byte, error) {
	r.mu.Lock()
	if r.state == nil {
		r.mu.Unlock()
		return nil, errors.New("room: game not started")
	}
	snap := r.state.SaveSnapshot()
	r.mu.Unlock()

	data, err := wire.EncodeSnapshot(snap)
	if err != nil {
		return nil, err
	}
	return wire.Encode(wire.TypeResyncFull, wire.ResyncFullPayload{Snapshot: data})
}

// UpdateLastFrame records the highest frame_id a connected player is
// known to have received, so a later disconnect can be reaped accurately
// even if the player never sends an explicit reconnect.
func (r *Room) UpdateLastFrame(playerID string, frameID uint32, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.members[playerID]; ok {
		rec.LastFrame = frameID
		rec.LastRxAt = now
	}
}
