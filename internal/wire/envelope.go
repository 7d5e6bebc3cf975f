// Package wire implements the binary envelope and message vocabulary of
// the synchronization protocol (spec.md §4.8, §6): a closed set of
// payload shapes selected by a string "type" tag, encoded as self
// describing compact binary. CBOR (github.com/fxamacker/cbor/v2) is used
// for the envelope itself since it already gives string-keyed maps,
// integers, byte strings, and booleans in a compact wire form without
// this module inventing its own map codec.
package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Message types, one per row of spec.md §6.
const (
	TypeAuth         = "auth"
	TypeJoinSuccess  = "join_success"
	TypePlayerJoined = "player_joined"
	TypePlayerLeft   = "player_left"
	TypeGameStart    = "game_start"
	TypeInput        = "input"
	TypeGameFrame    = "game_frame"
	TypeReconnect    = "reconnect"
	TypeSyncFrames   = "sync_frames"
	TypeResyncFull   = "resync_full"
	TypeLeave        = "leave"
	TypeError        = "error"
)

// knownTypes rejects unknown tags at decode time, per DESIGN NOTES in
// spec.md §9 ("reject unknown tags at decode").
var knownTypes = map[string]bool{
	TypeAuth: true, TypeJoinSuccess: true, TypePlayerJoined: true,
	TypePlayerLeft: true, TypeGameStart: true, TypeInput: true,
	TypeGameFrame: true, TypeReconnect: true, TypeSyncFrames: true,
	TypeResyncFull: true, TypeLeave: true, TypeError: true,
}

// ErrUnknownType is returned by Decode when the envelope's type tag isn't
// one of the closed set above.
var ErrUnknownType = errors.New("wire: unknown message type")

// MaxMessageSize is the transport-level upper bound on one envelope
// (spec.md §6).
const MaxMessageSize = 10 * 1024

// Envelope is the outer, transport-agnostic frame: a type tag selecting
// one of the payload shapes below, plus the raw (still-encoded) payload
// bytes so Decode can dispatch before committing to a concrete type.
type Envelope struct {
	Type    string          `cbor:"type"`
	Payload cbor.RawMessage `cbor:"payload"`
}

// Encode builds and encodes a full envelope for msgType carrying payload.
func Encode(msgType string, payload any) ([]byte, error) {
	payloadBytes, err := cbor.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("wire: encode payload: %w", err)
	}
	env := Envelope{Type: msgType, Payload: payloadBytes}
	data, err := cbor.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("wire: encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses the outer envelope and validates the type tag, without
// yet decoding the inner payload. Call DecodePayload next to get the
// concrete struct for env.Type.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("wire: decode envelope: %w", err)
	}
	if !knownTypes[env.Type] {
		return Envelope{}, ErrUnknownType
	}
	return env, nil
}

// DecodePayload decodes env's raw payload into out, which must be a
// pointer to the struct matching env.Type.
func DecodePayload(env Envelope, out any) error {
	if err := cbor.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("wire: decode payload: %w", err)
	}
	return nil
}
