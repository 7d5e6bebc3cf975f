package room

import (
	"errors"

	"github.com/race/lockstep/internal/wire"
)

// MaxIdentifierLength bounds player_id and room_id (spec.md §4.7 step 2).
const MaxIdentifierLength = 64

// ErrInvalidIdentifier is returned when a player_id or room_id fails the
// non-empty / length-bounded / printable-ASCII check.
var ErrInvalidIdentifier = errors.New("room: invalid player_id or room_id")

// ValidateIdentifier checks s against spec.md §4.7 step 2: non-empty,
// length-bounded, character-set bounded to printable ASCII.
func ValidateIdentifier(s string) bool {
	if len(s) == 0 || len(s) > MaxIdentifierLength {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			return false
		}
	}
	return true
}

// AdmitResult carries everything the connection handler needs to finish
// admission steps 5-6: what to send the joining player, what to
// broadcast to the rest of the room, and the room itself so input/tick
// handling can proceed.
type AdmitResult struct {
	Room         *Room
	JoinSuccess  wire.JoinSuccessPayload
	PlayerJoined wire.PlayerJoinedPayload
	GameStart    *wire.GameStartPayload // non-nil only if this join crossed the start threshold
}

// Admit runs admission steps 2-6 (spec.md §4.7) given an already-received
// auth payload. Step 1 (the 5s await-auth deadline) is the caller's
// responsibility since it's a transport-level read timeout, not a room
// operation.
func (m *Manager) Admit(auth wire.AuthPayload, conn Connection) (*AdmitResult, error) {
	if !ValidateIdentifier(auth.PlayerID) || !ValidateIdentifier(auth.RoomID) {
		return nil, ErrInvalidIdentifier
	}

	r := m.GetOrCreate(auth.RoomID)
	roster, justStarted, err := r.AddMember(auth.PlayerID, conn)
	if err != nil {
		return nil, err
	}
	r.Start()

	result := &AdmitResult{
		Room:         r,
		JoinSuccess:  wire.JoinSuccessPayload{RoomID: auth.RoomID, PlayerID: auth.PlayerID, Roster: roster},
		PlayerJoined: wire.PlayerJoinedPayload{PlayerID: auth.PlayerID},
	}
	if justStarted {
		gs := r.GameStart()
		result.GameStart = &gs
	}
	return result, nil
}
