package room

import (
	"sync"
	"time"

	"github.com/race/lockstep/internal/metrics"
)

// Manager owns the room table, generalizing the teacher's Matchmaker
// (internal/matchmaker/matchmaker.go): a room table keyed by id, with
// get-or-create, removal, and an idle-sweep cleanup. Unlike the teacher,
// rooms are keyed by a client-supplied room_id rather than
// server-generated, and capacity is per-room rather than a global
// MaxRoomsPerServer cap (spec.md has no such global cap).
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	maxPlayers           int
	startThreshold       int
	tickInterval         time.Duration
	frameTimeout         time.Duration
	maxRequestsPerSecond int
	maxInputSize         int
}

// NewManager creates an empty room manager using cfg for any room it
// creates. maxRequestsPerSecond and maxInputSize carry spec.md §6's
// operational-surface knobs through to every room this manager creates.
func NewManager(maxPlayers, startThreshold int, tickInterval, frameTimeout time.Duration, maxRequestsPerSecond, maxInputSize int) *Manager {
	return &Manager{
		rooms:                make(map[string]*Room),
		maxPlayers:           maxPlayers,
		startThreshold:       startThreshold,
		tickInterval:         tickInterval,
		frameTimeout:         frameTimeout,
		maxRequestsPerSecond: maxRequestsPerSecond,
		maxInputSize:         maxInputSize,
	}
}

// GetOrCreate returns the room for id, creating it if absent (spec.md
// §4.7 step 3). It does not start the room's tick loop; Admit calls
// Room.Start after each join, which is a cheap no-op once the loop is
// already running.
func (m *Manager) GetOrCreate(id string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[id]; ok {
		return r
	}
	r := New(id, m.maxPlayers, m.startThreshold, m.tickInterval, m.frameTimeout, m.maxRequestsPerSecond, m.maxInputSize)
	m.rooms[id] = r
	metrics.RoomsActive.Inc()
	return r
}

// Get looks up a room without creating one.
func (m *Manager) Get(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// Remove stops and deletes a room.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[id]; ok {
		r.Stop()
		delete(m.rooms, id)
		metrics.RoomsActive.Dec()
	}
}

// Sweep destroys rooms that have been empty for longer than idleTimeout
// (spec.md §5: "a room with no members for > 60s is destroyed along with
// its engine and state") and reaps stale disconnect records from the
// rest. Intended to run on a periodic ticker from cmd/lockstepd.
func (m *Manager) Sweep(now time.Time, idleTimeout, maxDisconnectTime time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, r := range m.rooms {
		if r.IsEmpty() && r.IdleSince(now) > idleTimeout {
			r.Stop()
			delete(m.rooms, id)
			metrics.RoomsActive.Dec()
			removed++
			continue
		}
		r.Reap(now, maxDisconnectTime)
	}
	return removed
}

// ManagerStats summarizes every room for the /stats operational
// endpoint, generalizing the teacher's MatchmakerStats.
type ManagerStats struct {
	TotalRooms   int
	TotalPlayers int
	Rooms        []Stats
}

// GetStats snapshots every room's Stats.
func (m *Manager) GetStats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ManagerStats{TotalRooms: len(m.rooms), Rooms: make([]Stats, 0, len(m.rooms))}
	for _, r := range m.rooms {
		s := r.GetStats()
		stats.TotalPlayers += s.PlayerCount
		stats.Rooms = append(stats.Rooms, s)
	}
	return stats
}
