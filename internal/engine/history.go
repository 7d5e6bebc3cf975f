package engine

import "github.com/race/lockstep/internal/frame"

// historyRing bounds the retained committed-frame history to the most
// recent capacity frames, evicting the oldest on overflow rather than
// growing without bound.
type historyRing struct {
	capacity int
	order    []uint32
	byFrame  map[uint32]*frame.Frame
}

func newHistoryRing(capacity int) *historyRing {
	return &historyRing{
		capacity: capacity,
		byFrame:  make(map[uint32]*frame.Frame, capacity),
	}
}

func (h *historyRing) insert(f *frame.Frame) {
	h.order = append(h.order, f.FrameID)
	h.byFrame[f.FrameID] = f

	for len(h.order) > h.capacity {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.byFrame, oldest)
	}
}

func (h *historyRing) get(frameID uint32) (*frame.Frame, bool) {
	f, ok := h.byFrame[frameID]
	return f, ok
}
