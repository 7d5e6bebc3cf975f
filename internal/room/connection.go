package room

import "time"

// Connection is the transport-agnostic send/close surface a room needs
// from a player's underlying connection (spec.md §6: "the implementation
// may choose any full-duplex transport"). cmd/lockstepd supplies the
// gorilla/websocket-backed implementation; tests supply an in-memory one.
type Connection interface {
	Send(data []byte) error
	Close() error
}

// ConnectionRecord is a room member's admission state: which connection
// currently backs a player_id, and — once disconnected — how long ago,
// so Room.Reap can evict it past MAX_DISCONNECT_TIME (spec.md §4.7).
//
// ID is a process-unique identifier for this particular connection
// attempt (not the player_id), generated once at admission time so log
// lines and metrics can distinguish a player's successive reconnects.
type ConnectionRecord struct {
	ID       string
	PlayerID string
	RoomID   string
	Conn     Connection

	LastFrame uint32 // last frame_id this player is known to have (reconnect)
	LastRxAt  time.Time
	Broken    bool

	DisconnectedAt time.Time
	connected      bool
}
