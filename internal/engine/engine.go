// Package engine implements the bounded-buffer input collector and
// tick-commit policy described in spec.md §4.6: the frame engine. It owns
// no goroutines of its own — the caller (internal/room) drives Tick on a
// cadence and is the sole writer, per spec.md §5's single-writer
// discipline.
package engine

import (
	"time"

	"github.com/race/lockstep/internal/frame"
	"github.com/race/lockstep/internal/protocol"
)

// DefaultMaxFrameHistory bounds how many committed frames are retained
// for reconnect replay (spec.md §4.6, §4.9).
const DefaultMaxFrameHistory = 300

// DefaultFrameTimeout is how long the engine waits for a complete frame
// before forcing it through with missing inputs zeroed.
const DefaultFrameTimeout = time.Second

// FrameEngine collects per-tick inputs for a fixed player count and
// commits a tick once every player's input has arrived, or after
// ForceTick is invoked following a timeout.
type FrameEngine struct {
	currentFrame uint32
	playerCount  int

	pending map[uint32]*frame.Frame
	history *historyRing

	frameTimeout   time.Duration
	lastCommitTime time.Time
}

// New creates a frame engine for a room with playerCount members.
func New(playerCount int, frameTimeout time.Duration, maxHistory int) *FrameEngine {
	return &FrameEngine{
		playerCount:    playerCount,
		pending:        make(map[uint32]*frame.Frame),
		history:        newHistoryRing(maxHistory),
		frameTimeout:   frameTimeout,
		lastCommitTime: time.Now(),
	}
}

// CurrentFrame is the id of the next tick to be committed.
func (e *FrameEngine) CurrentFrame() uint32 {
	return e.currentFrame
}

// SetPlayerCount updates how many inputs a frame needs to be complete.
// Used when membership changes between ticks.
func (e *FrameEngine) SetPlayerCount(n int) {
	e.playerCount = n
}

// AddInput admits an input for frameID/playerID. Inputs for frames
// already committed are silently discarded (spec.md §4.6). A second
// input for the same player/frame pair replaces the first
// (last-write-wins, per this module's Open Question resolution — see
// DESIGN.md).
func (e *FrameEngine) AddInput(frameID uint32, playerID uint16, data []byte) {
	if frameID < e.currentFrame {
		return
	}
	f, ok := e.pending[frameID]
	if !ok {
		f = frame.NewPending(frameID)
		e.pending[frameID] = f
	}
	f.Inputs[playerID] = data
}

// Tick commits the current frame if it's complete, advances
// CurrentFrame, and returns the committed frame. If the current frame
// isn't complete yet, Tick leaves state untouched and returns
// (nil, false) so the caller's cadence simply retries next tick.
func (e *FrameEngine) Tick() (*frame.Frame, bool) {
	f, ok := e.pending[e.currentFrame]
	if !ok || !f.IsComplete(e.playerCount) {
		return nil, false
	}
	f.Confirmed = true
	return e.commit(f), true
}

// ForceTick fills every missing player's input for the current frame with
// a deterministic empty input, marks the frame unconfirmed, and commits
// it. Callers invoke this only after frameTimeout has elapsed since the
// last commit (see TimedOut).
func (e *FrameEngine) ForceTick() *frame.Frame {
	f, ok := e.pending[e.currentFrame]
	if !ok {
		f = frame.NewPending(e.currentFrame)
	}
	for pid := uint16(0); int(pid) < e.playerCount; pid++ {
		if _, present := f.Inputs[pid]; present {
			continue
		}
		empty := protocol.Empty(e.currentFrame, pid).Serialize()
		f.Inputs[pid] = empty[:]
	}
	f.Confirmed = false
	return e.commit(f)
}

// commit moves f from pending into history, advances currentFrame, and
// resets the force-tick timeout. Confirmed must already be set by the
// caller (Tick or ForceTick) before commit runs.
func (e *FrameEngine) commit(f *frame.Frame) *frame.Frame {
	f.Timestamp = time.Now()

	delete(e.pending, f.FrameID)
	e.history.insert(f)
	e.currentFrame++
	e.lastCommitTime = f.Timestamp
	return f
}

// TimedOut reports whether frameTimeout has elapsed since the last
// commit, meaning the caller should invoke ForceTick.
func (e *FrameEngine) TimedOut(now time.Time) bool {
	return now.Sub(e.lastCommitTime) >= e.frameTimeout
}

// History looks up a previously committed frame by id.
func (e *FrameEngine) History(frameID uint32) (*frame.Frame, bool) {
	return e.history.get(frameID)
}

// HistoryRange returns committed frames with id in (from, to], in
// ascending order, capped at the engine's retained history. Used to
// build sync_frames for a reconnecting client (spec.md §4.9).
func (e *FrameEngine) HistoryRange(from, to uint32) []*frame.Frame {
	var out []*frame.Frame
	for id := from + 1; id <= to; id++ {
		f, ok := e.history.get(id)
		if !ok {
			continue
		}
		out = append(out, f)
	}
	return out
}
