package room

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/race/lockstep/internal/engine"
	"github.com/race/lockstep/internal/entity"
	"github.com/race/lockstep/internal/fixedpoint"
	"github.com/race/lockstep/internal/metrics"
	"github.com/race/lockstep/internal/protocol"
	"github.com/race/lockstep/internal/simstate"
	"github.com/race/lockstep/internal/wire"
)

// spawnSpacing is how far apart (in world units) newly bound player
// entities are placed along the x axis, so a fresh room's entities never
// start overlapping.
var spawnSpacing = fixedpoint.FromFloat(80)

// defaultEntityExtent is the width/height assigned to a spawned player
// entity absent any game-specific sizing (spec.md defines no entity
// sizing policy beyond "w,h > 0").
var defaultEntityExtent = fixedpoint.FromFloat(20)

// defaultEntityHP is the hit-point budget assigned to a spawned player
// entity; spec.md leaves combat resolution to callers, so this is only
// ever read, never driven down by this module.
const defaultEntityHP = 100

// DefaultMaxPlayers bounds room membership (spec.md §4.7 step 4).
const DefaultMaxPlayers = 8

// DefaultStartThreshold is the membership count that triggers game_start.
// spec.md leaves the exact threshold to the implementation; two players
// is the natural minimum for anything worth lockstepping.
const DefaultStartThreshold = 2

// DefaultMaxDisconnectTime bounds how long a disconnected player's slot
// is held open for reconnect (spec.md §4.7).
const DefaultMaxDisconnectTime = 30 * time.Second

// DefaultIdleTimeout destroys an empty room after this long with no
// members (spec.md §5).
const DefaultIdleTimeout = 60 * time.Second

// DefaultTickInterval is the per-room scheduler cadence (spec.md §4.6).
const DefaultTickInterval = time.Duration(33333333) // 33.33ms in nanoseconds

// ErrRoomFull is returned by AddMember when membership is already at
// capacity.
var ErrRoomFull = errors.New("room: room is full")

// ErrAlreadyMember is returned by AddMember for a player_id already
// present in the room.
var ErrAlreadyMember = errors.New("room: player already a member")

// ErrUnknownPlayer is returned by operations addressed to a player_id the
// room has no record of.
var ErrUnknownPlayer = errors.New("room: unknown player")

// Room is one lockstep game session: membership, rate limiting, the
// frame engine, and the game state that engine drives, all guarded by mu.
// Once Start is called the tick-loop goroutine commits ticks, while
// connection handlers add inputs and members under the same lock.
// Generalizes the teacher's Room (internal/game/room.go): same
// RWMutex-guarded membership, broadcast/broadcastExcept, and "Methods
// ending in Locked expect the caller to already hold the lock" discipline, but
// keyed by a client-supplied room_id and with an ordered membership set
// instead of a counter-assigned uint16 map.
type Room struct {
	mu sync.RWMutex

	ID string

	order        []string                    // player_ids in join order
	members      map[string]*ConnectionRecord
	playerIndex  map[string]uint16           // player_id -> frame-engine index
	disconnected map[string]*ConnectionRecord

	limiter *Limiter

	engine  *engine.FrameEngine
	state   *simstate.GameState
	physics *entity.Physics
	seed    uint32

	maxPlayers      int
	startThreshold  int
	maxFrameAhead   uint32
	maxFrameHistory uint32
	maxInputSize    int

	tickInterval time.Duration
	frameTimeout time.Duration

	gameStarted bool
	createdAt   time.Time
	lastActive  time.Time

	running  atomic.Bool
	stopCh   chan struct{}

	// ticksCommitted/forcedTicks/violations are exported via Stats for
	// the /metrics and /stats operational surfaces.
	ticksCommitted uint64
	forcedTicks    uint64
	violationsSeen uint64
}

// New creates a room in its admission phase: no frame engine or game
// state exists yet until membership reaches startThreshold.
// maxRequestsPerSecond and maxInputSize carry the operational-surface
// knobs spec.md §6 names (max_requests_per_second, max_input_size)
// through to this room's rate limiter and oversized-message check.
func New(id string, maxPlayers, startThreshold int, tickInterval, frameTimeout time.Duration, maxRequestsPerSecond, maxInputSize int) *Room {
	return &Room{
		ID:              id,
		members:         make(map[string]*ConnectionRecord),
		playerIndex:     make(map[string]uint16),
		disconnected:    make(map[string]*ConnectionRecord),
		limiter:         NewLimiter(maxRequestsPerSecond, DefaultViolationThreshold, DefaultRateBreachThreshold, DefaultViolationWindow),
		maxPlayers:      maxPlayers,
		startThreshold:  startThreshold,
		maxFrameAhead:   protocol.DefaultMaxFrameAhead,
		maxFrameHistory: engine.DefaultMaxFrameHistory,
		maxInputSize:    maxInputSize,
		tickInterval:    tickInterval,
		frameTimeout:    frameTimeout,
		createdAt:       time.Now(),
		lastActive:      time.Now(),
		stopCh:          make(chan struct{}),
	}
}

// MaxInputSize returns the envelope size cap this room's connections
// should enforce (spec.md §6's max_input_size), so the transport layer
// doesn't need its own copy of the operational config.
func (r *Room) MaxInputSize() int {
	return r.maxInputSize
}

// MemberCount returns the current room population (connected members
// only, not disconnected-but-reconnectable ones).
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// IsEmpty reports whether the room has no connected members.
func (r *Room) IsEmpty() bool {
	return r.MemberCount() == 0
}

// IdleSince reports how long the room has had no activity (member
// join/leave/input), used by the manager's cleanup sweep.
func (r *Room) IdleSince(now time.Time) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return now.Sub(r.lastActive)
}

// Roster returns a copy of the ordered member list.
func (r *Room) Roster() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// AddMember runs admission steps 3-6 (spec.md §4.7) once the caller has
// already located or created this room and validated the auth payload.
// It returns the roster to send back in join_success and whether this
// join just crossed the start threshold (caller is responsible for
// broadcasting player_joined / game_start accordingly).
func (r *Room) AddMember(playerID string, conn Connection) (roster []string, justStarted bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[playerID]; exists {
		return nil, false, ErrAlreadyMember
	}
	if len(r.members) >= r.maxPlayers {
		return nil, false, ErrRoomFull
	}

	idx, hadIndex := r.playerIndex[playerID]
	if !hadIndex {
		idx = uint16(len(r.playerIndex))
		r.playerIndex[playerID] = idx
	}

	rec := &ConnectionRecord{
		ID:        uuid.NewString(),
		PlayerID:  playerID,
		RoomID:    r.ID,
		Conn:      conn,
		LastRxAt:  time.Now(),
		connected: true,
	}
	r.members[playerID] = rec
	r.order = append(r.order, playerID)
	delete(r.disconnected, playerID)
	r.lastActive = time.Now()

	roster = make([]string, len(r.order))
	copy(roster, r.order)

	if !r.gameStarted && len(r.members) >= r.startThreshold {
		r.startLocked()
		justStarted = true
	} else if r.gameStarted {
		r.engine.SetPlayerCount(len(r.playerIndex))
		if _, bound := r.state.PlayerEntity(idx); !bound {
			e := &entity.Entity{
				ID:    int32(idx),
				X:     spawnSpacing.MulInt(int32(idx)),
				W:     defaultEntityExtent,
				H:     defaultEntityExtent,
				HP:    defaultEntityHP,
				MaxHP: defaultEntityHP,
			}
			r.state.AddEntity(e)
			r.state.BindPlayer(idx, e.ID)
		}
	}

	return roster, justStarted, nil
}

// startLocked initializes the frame engine and game state, spawning one
// entity per member and binding it to that member's player index. Caller
// must hold r.mu.
func (r *Room) startLocked() {
	r.seed = deriveSeed(r.ID, r.createdAt)
	r.engine = engine.New(len(r.playerIndex), r.frameTimeout, int(r.maxFrameHistory))
	r.state = simstate.New(r.seed)
	r.physics = entity.NewPhysics(entity.DefaultConstants(), 64<<16)

	for playerID, idx := range r.playerIndex {
		_ = playerID
		e := &entity.Entity{
			ID:    int32(idx),
			X:     spawnSpacing.MulInt(int32(idx)),
			W:     defaultEntityExtent,
			H:     defaultEntityExtent,
			HP:    defaultEntityHP,
			MaxHP: defaultEntityHP,
		}
		r.state.AddEntity(e)
		r.state.BindPlayer(idx, e.ID)
	}
	r.gameStarted = true
}

// GameStart returns the seed/player_count/tick_rate triple for the
// game_start broadcast. Only valid once AddMember has reported
// justStarted.
func (r *Room) GameStart() wire.GameStartPayload {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return wire.GameStartPayload{
		Seed:        r.seed,
		PlayerCount: len(r.playerIndex),
		TickRate:    int(time.Second / r.tickInterval),
	}
}

// RemoveMember disconnects a player: removes them from active membership,
// records a ConnectionRecord in the disconnected table so Reconnect can
// find them within DefaultMaxDisconnectTime, and returns whether the
// player had been a member at all.
func (r *Room) RemoveMember(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.members[playerID]
	if !exists {
		return false
	}
	delete(r.members, playerID)
	for i, id := range r.order {
		if id == playerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	rec.connected = false
	rec.DisconnectedAt = time.Now()
	r.disconnected[playerID] = rec
	r.limiter.Forget(playerID)
	r.lastActive = time.Now()
	return true
}

// Reap evicts disconnected records older than DefaultMaxDisconnectTime so
// a reconnect attempt after that window is treated as a fresh join
// (spec.md §4.7).
func (r *Room) Reap(now time.Time, maxDisconnectTime time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.disconnected {
		if now.Sub(rec.DisconnectedAt) > maxDisconnectTime {
			delete(r.disconnected, id)
		}
	}
}

// Broadcast sends data to every connected member. Sending is best-effort
// (spec.md §4.7): a failed send marks that member's record Broken but
// never blocks delivery to the rest of the room.
func (r *Room) Broadcast(data []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.broadcastLocked(data, "")
}

// BroadcastExcept is Broadcast but skips exceptID (used for
// player_joined, which the joining player already learns via
// join_success).
func (r *Room) BroadcastExcept(data []byte, exceptID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.broadcastLocked(data, exceptID)
}

func (r *Room) broadcastLocked(data []byte, exceptID string) {
	for _, id := range r.order {
		if id == exceptID {
			continue
		}
		rec := r.members[id]
		if rec == nil {
			continue
		}
		if err := rec.Conn.Send(data); err != nil {
			rec.Broken = true
			log.Printf("room %s: send to %s failed: %v", r.ID, id, err)
		}
	}
}

// HandleInput validates and admits one player's input into the frame
// engine. Validation failures are reported back to the caller as a
// ValidationResult so the connection handler can decide between a
// silent drop and a policy_violation close, per spec.md §7.
func (r *Room) HandleInput(playerID string, frameID uint32, data []byte, now time.Time) ValidationResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.limiter.AllowRequest(playerID, now) {
		// spec.md §4.7/§7: a single over-budget message only drops; the
		// connection closes with 4003 only after sustained breach.
		if r.limiter.RecordRateBreach(playerID, now) {
			return ResultRateLimited
		}
		return ResultDropped
	}
	if len(data) != protocol.InputSize {
		return r.violateLocked(playerID, now)
	}
	idx, ok := r.playerIndex[playerID]
	if !ok || !r.gameStarted {
		return ResultDropped
	}

	in, err := protocol.Deserialize(data)
	if err != nil {
		return r.violateLocked(playerID, now)
	}
	ctx := protocol.ValidationContext{
		CurrentFrame:  r.engine.CurrentFrame(),
		MaxFrameAhead: r.maxFrameAhead,
		PlayerID:      idx,
		CoordMin:      -1 << 24,
		CoordMax:      1 << 24,
	}
	if err := protocol.Validate(in, ctx); err != nil {
		return r.violateLocked(playerID, now)
	}

	r.engine.AddInput(frameID, idx, data)
	r.lastActive = now
	return ResultOK
}

// Violate records one policy violation for playerID not tied to a
// HandleInput call (e.g. an oversized envelope caught by the transport
// layer before it even reaches input validation), and reports whether
// the sliding-window violation count has just reached the close
// threshold.
func (r *Room) Violate(playerID string, now time.Time) ValidationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.violateLocked(playerID, now)
}

func (r *Room) violateLocked(playerID string, now time.Time) ValidationResult {
	r.violationsSeen++
	metrics.Violations.Inc()
	if r.limiter.RecordViolation(playerID, now) {
		return ResultClose
	}
	return ResultInvalidInput
}

// Start launches the room's tick-loop goroutine. Safe to call before the
// game has started (Admit calls it on every join): the loop does nothing
// until AddMember crosses the start threshold. Calling twice is a no-op,
// matching the teacher's atomic-swap guard (internal/game/room.go's
// Room.Start).
func (r *Room) Start() {
	if r.running.Swap(true) {
		return
	}
	go r.tickLoop()
}

// Stop halts the tick loop. Safe to call multiple times.
func (r *Room) Stop() {
	if !r.running.Swap(false) {
		return
	}
	close(r.stopCh)
}

func (r *Room) tickLoop() {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case now := <-ticker.C:
			r.runOneTick(now)
		}
	}
}

// runOneTick commits a frame if ready, force-ticks on timeout, and
// broadcasts whatever was committed. No suspension point runs between
// Tick/ForceTick and the commit bookkeeping (spec.md §5): Broadcast is
// network I/O and intentionally happens after the engine state is
// already consistent, not interleaved with it.
func (r *Room) runOneTick(now time.Time) {
	r.mu.Lock()
	if !r.gameStarted {
		r.mu.Unlock()
		return
	}

	f, committed := r.engine.Tick()
	if !committed {
		if r.engine.TimedOut(now) {
			f = r.engine.ForceTick()
			committed = true
			r.forcedTicks++
			metrics.ForcedTicks.Inc()
		}
	}
	if committed {
		r.ticksCommitted++
		metrics.TicksCommitted.Inc()
		// Run the deterministic simulation for this tick so the room's
		// GameState tracks the same entities a client derives from the
		// same broadcast inputs (spec.md §1: "game rules execute
		// identically on server and clients"). This keeps resync_full
		// snapshots and state hashes meaningful rather than frozen at
		// the spawn layout.
		simstate.ApplyFrame(r.state, r.physics, f.Inputs, entity.DefaultConstants().InputSpeed, r.tickInterval.Milliseconds())
	}
	playerIDs := r.reverseIndexLocked()
	r.mu.Unlock()

	if !committed {
		return
	}

	payload := wire.GameFramePayload{
		FrameID:   f.FrameID,
		Confirmed: f.Confirmed,
		Inputs:    make(map[string][]byte, len(f.Inputs)),
	}
	for idx, data := range f.Inputs {
		payload.Inputs[playerIDs[idx]] = data
	}

	data, err := wire.Encode(wire.TypeGameFrame, payload)
	if err != nil {
		log.Printf("room %s: encode game_frame %d: %v", r.ID, f.FrameID, err)
		return
	}
	r.Broadcast(data)
}

func (r *Room) reverseIndexLocked() map[uint16]string {
	out := make(map[uint16]string, len(r.playerIndex))
	for id, idx := range r.playerIndex {
		out[idx] = id
	}
	return out
}

// Stats is a point-in-time summary of room activity, used by the
// /stats and /metrics operational endpoints.
type Stats struct {
	ID             string
	PlayerCount    int
	MaxPlayers     int
	GameStarted    bool
	TicksCommitted uint64
	ForcedTicks    uint64
	Violations     uint64
}

// GetStats snapshots the room's counters.
func (r *Room) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		ID:             r.ID,
		PlayerCount:    len(r.members),
		MaxPlayers:     r.maxPlayers,
		GameStarted:    r.gameStarted,
		TicksCommitted: r.ticksCommitted,
		ForcedTicks:    r.forcedTicks,
		Violations:     r.violationsSeen,
	}
}

// playerIndexFor exposes the engine index assigned to a player_id, if the
// player has ever joined this room. Nothing in the package calls it;
// Reconnect checks the disconnected table instead.
func (r *Room) playerIndexFor(playerID string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.playerIndex[playerID]
	return idx, ok
}
