package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSerializeRoundTrip covers P7: deserialize(serialize(x)) == x, and
// the serialized length is exactly 16.
func TestSerializeRoundTrip(t *testing.T) {
	in := Input{
		FrameID:  42,
		PlayerID: 7,
		Flags:    FlagMoveRight | FlagJump,
		Reserved: 0,
		TargetX:  -1234,
		TargetY:  5678,
	}

	buf := in.Serialize()
	require.Len(t, buf, InputSize)

	got, err := Deserialize(buf[:])
	require.NoError(t, err)
	require.Equal(t, in, got)
}

func TestDeserializeWrongLength(t *testing.T) {
	_, err := Deserialize(make([]byte, 15))
	require.ErrorIs(t, err, ErrMalformedInput)

	_, err = Deserialize(make([]byte, 17))
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestHasSetClear(t *testing.T) {
	in := Input{}
	in = in.Set(FlagMoveUp)
	require.True(t, in.Has(FlagMoveUp))
	require.False(t, in.Has(FlagMoveDown))

	in = in.Set(FlagMoveDown)
	require.True(t, in.Has(FlagMoveUp | FlagMoveDown))

	in = in.Clear(FlagMoveUp)
	require.False(t, in.Has(FlagMoveUp))
	require.True(t, in.Has(FlagMoveDown))
}

func TestEmptyInput(t *testing.T) {
	in := Empty(5, 3)
	require.Equal(t, uint32(5), in.FrameID)
	require.Equal(t, uint16(3), in.PlayerID)
	require.Zero(t, in.Flags)
	require.Zero(t, in.TargetX)
	require.Zero(t, in.TargetY)
}

func ctx() ValidationContext {
	return ValidationContext{
		CurrentFrame:  10,
		MaxFrameAhead: 100,
		PlayerID:      3,
		CoordMin:      -10000,
		CoordMax:      10000,
	}
}

func TestValidateAcceptsInWindow(t *testing.T) {
	in := Input{FrameID: 10, PlayerID: 3, TargetX: 100, TargetY: -100}
	require.NoError(t, Validate(in, ctx()))
}

// TestValidateRejectsAheadOfWindow covers S4: frame_id = current+101 is
// rejected.
func TestValidateRejectsAheadOfWindow(t *testing.T) {
	in := Input{FrameID: 10 + 101, PlayerID: 3}
	require.ErrorIs(t, Validate(in, ctx()), ErrFrameOutOfWindow)
}

func TestValidateRejectsBehindCurrent(t *testing.T) {
	in := Input{FrameID: 9, PlayerID: 3}
	require.ErrorIs(t, Validate(in, ctx()), ErrFrameOutOfWindow)
}

func TestValidateRejectsWrongPlayer(t *testing.T) {
	in := Input{FrameID: 10, PlayerID: 4}
	require.ErrorIs(t, Validate(in, ctx()), ErrPlayerMismatch)
}

func TestValidateRejectsOutOfRangeCoordinate(t *testing.T) {
	in := Input{FrameID: 10, PlayerID: 3, TargetX: 99999}
	require.ErrorIs(t, Validate(in, ctx()), ErrCoordinateRange)
}

// TestAllFlagsCoverByte documents that the 8 defined flag bits span the
// whole byte, so ErrUndefinedFlags only ever fires if a future wire
// revision adds a 9th bit without widening Flags.
func TestAllFlagsCoverByte(t *testing.T) {
	require.Equal(t, uint8(0xFF), allFlags)
}
