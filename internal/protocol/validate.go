package protocol

import "errors"

// Validation error kinds (spec.md §4.5, §7).
var (
	ErrFrameOutOfWindow = errors.New("protocol: frame_id outside admission window")
	ErrCoordinateRange  = errors.New("protocol: target coordinate out of range")
	ErrPlayerMismatch   = errors.New("protocol: player_id does not match connection")
	ErrUndefinedFlags   = errors.New("protocol: input sets an undefined flag bit")
)

// ValidationContext carries the admission-time parameters an Input is
// checked against.
type ValidationContext struct {
	CurrentFrame  uint32
	MaxFrameAhead uint32 // default 100
	PlayerID      uint16 // the submitting connection's bound player id
	CoordMin      int32
	CoordMax      int32
}

// DefaultMaxFrameAhead is the window width used when a room doesn't
// override it.
const DefaultMaxFrameAhead = 100

// Validate checks a decoded Input against the admission rules in
// spec.md §4.5. Checks run in order (player, frame window, coordinates,
// flags) and stop at the first failure, which is the one returned, since
// §7's policy is "discard and count one violation" per invalid input, not
// per broken rule.
func Validate(in Input, ctx ValidationContext) error {
	if in.PlayerID != ctx.PlayerID {
		return ErrPlayerMismatch
	}
	if in.FrameID < ctx.CurrentFrame || in.FrameID >= ctx.CurrentFrame+ctx.MaxFrameAhead {
		return ErrFrameOutOfWindow
	}
	if in.TargetX < ctx.CoordMin || in.TargetX > ctx.CoordMax ||
		in.TargetY < ctx.CoordMin || in.TargetY > ctx.CoordMax {
		return ErrCoordinateRange
	}
	if in.Flags&^allFlags != 0 {
		return ErrUndefinedFlags
	}
	return nil
}
