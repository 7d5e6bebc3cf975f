// Package protocol defines the wire layout of a player input and the
// admission rules applied to a decoded input before it is allowed into a
// room's frame engine.
package protocol

import (
	"encoding/binary"
	"errors"
)

// InputSize is the fixed wire length of a PlayerInput, in octets.
const InputSize = 16

// Input flag bits (spec.md §3).
const (
	FlagMoveUp    uint8 = 0x01
	FlagMoveDown  uint8 = 0x02
	FlagMoveLeft  uint8 = 0x04
	FlagMoveRight uint8 = 0x08
	FlagAttack    uint8 = 0x10
	FlagSkill1    uint8 = 0x20
	FlagSkill2    uint8 = 0x40
	FlagJump      uint8 = 0x80
)

// allFlags is the union of every defined bit; anything outside it is an
// undefined flag and fails validation.
const allFlags = FlagMoveUp | FlagMoveDown | FlagMoveLeft | FlagMoveRight |
	FlagAttack | FlagSkill1 | FlagSkill2 | FlagJump

// ErrMalformedInput is returned when a byte slice is not exactly InputSize
// long.
var ErrMalformedInput = errors.New("protocol: malformed input")

// Input is a single player's control state for one tick, the in-memory
// form of the 16-byte wire layout in spec.md §3.
type Input struct {
	FrameID  uint32
	PlayerID uint16
	Flags    uint8
	Reserved uint8
	TargetX  int32
	TargetY  int32
}

// Has reports whether every bit in mask is set.
func (in Input) Has(mask uint8) bool {
	return in.Flags&mask == mask
}

// Set returns a copy of in with mask's bits set.
func (in Input) Set(mask uint8) Input {
	in.Flags |= mask
	return in
}

// Clear returns a copy of in with mask's bits cleared.
func (in Input) Clear(mask uint8) Input {
	in.Flags &^= mask
	return in
}

// Empty returns the deterministic zero input for a given frame/player,
// used by force_tick to fill in for players who never submitted.
func Empty(frameID uint32, playerID uint16) Input {
	return Input{FrameID: frameID, PlayerID: playerID}
}

// Serialize encodes the input into exactly InputSize little-endian bytes.
func (in Input) Serialize() [InputSize]byte {
	var buf [InputSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], in.FrameID)
	binary.LittleEndian.PutUint16(buf[4:6], in.PlayerID)
	buf[6] = in.Flags
	buf[7] = in.Reserved
	binary.LittleEndian.PutUint32(buf[8:12], uint32(in.TargetX))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(in.TargetY))
	return buf
}

// Deserialize decodes a wire-format input. It fails with ErrMalformedInput
// if data is not exactly InputSize bytes.
func Deserialize(data []byte) (Input, error) {
	if len(data) != InputSize {
		return Input{}, ErrMalformedInput
	}
	return Input{
		FrameID:  binary.LittleEndian.Uint32(data[0:4]),
		PlayerID: binary.LittleEndian.Uint16(data[4:6]),
		Flags:    data[6],
		Reserved: data[7],
		TargetX:  int32(binary.LittleEndian.Uint32(data[8:12])),
		TargetY:  int32(binary.LittleEndian.Uint32(data[12:16])),
	}, nil
}
