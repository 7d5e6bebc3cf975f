package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/race/lockstep/internal/protocol"
)

func inputBytes(frameID uint32, playerID uint16) []byte {
	buf := protocol.Input{FrameID: frameID, PlayerID: playerID}.Serialize()
	return buf[:]
}

// TestTickCommitsOnlyWhenComplete covers P5: no partial commit.
func TestTickCommitsOnlyWhenComplete(t *testing.T) {
	e := New(2, time.Second, DefaultMaxFrameHistory)

	e.AddInput(0, 0, inputBytes(0, 0))
	_, committed := e.Tick()
	require.False(t, committed)
	require.Equal(t, uint32(0), e.CurrentFrame())

	e.AddInput(0, 1, inputBytes(0, 1))
	f, committed := e.Tick()
	require.True(t, committed)
	require.True(t, f.Confirmed)
	require.Len(t, f.Inputs, 2)
	require.Equal(t, uint32(1), e.CurrentFrame())
}

// TestCurrentFrameMonotonic covers P4: current_frame strictly increases by
// one per committed frame, and history[k].FrameID == k.
func TestCurrentFrameMonotonic(t *testing.T) {
	e := New(1, time.Second, DefaultMaxFrameHistory)

	for i := uint32(0); i < 50; i++ {
		e.AddInput(i, 0, inputBytes(i, 0))
		f, committed := e.Tick()
		require.True(t, committed)
		require.Equal(t, i, f.FrameID)
		require.Equal(t, i+1, e.CurrentFrame())

		hist, ok := e.History(i)
		require.True(t, ok)
		require.Equal(t, i, hist.FrameID)
	}
}

func TestAddInputDiscardsPastFrames(t *testing.T) {
	e := New(1, time.Second, DefaultMaxFrameHistory)

	e.AddInput(0, 0, inputBytes(0, 0))
	e.Tick()

	// Frame 0 already committed; a late input for it must not resurrect it.
	e.AddInput(0, 0, inputBytes(0, 0))
	_, ok := e.History(0)
	require.True(t, ok) // still the original commit, unaffected

	require.Equal(t, uint32(1), e.CurrentFrame())
}

func TestAddInputLastWriteWins(t *testing.T) {
	e := New(1, time.Second, DefaultMaxFrameHistory)

	first := protocol.Input{FrameID: 0, PlayerID: 0, TargetX: 1}.Serialize()
	second := protocol.Input{FrameID: 0, PlayerID: 0, TargetX: 2}.Serialize()

	e.AddInput(0, 0, first[:])
	e.AddInput(0, 0, second[:])

	f, committed := e.Tick()
	require.True(t, committed)
	require.Equal(t, second[:], f.Inputs[0])
}

// TestForceTickFillsMissingAndMarksUnconfirmed covers P5 + S2: force_tick
// zero-fills absent players and the resulting frame has confirmed=false.
func TestForceTickFillsMissingAndMarksUnconfirmed(t *testing.T) {
	e := New(2, time.Second, DefaultMaxFrameHistory)

	e.AddInput(0, 0, inputBytes(0, 0))
	// player 1 never submits.

	f := e.ForceTick()
	require.False(t, f.Confirmed)
	require.Len(t, f.Inputs, 2)

	empty := protocol.Empty(0, 1).Serialize()
	require.Equal(t, empty[:], f.Inputs[1])

	require.Equal(t, uint32(1), e.CurrentFrame())
}

func TestForceTickResetsTimeout(t *testing.T) {
	e := New(1, 10*time.Millisecond, DefaultMaxFrameHistory)
	require.False(t, e.TimedOut(time.Now()))

	time.Sleep(15 * time.Millisecond)
	require.True(t, e.TimedOut(time.Now()))

	e.ForceTick()
	require.False(t, e.TimedOut(time.Now()))
}

// TestHistoryRangeForCatchUp covers the reconnect path (spec.md §4.9): a
// client with last_frame=k gets every committed frame in (k, current].
func TestHistoryRangeForCatchUp(t *testing.T) {
	e := New(1, time.Second, DefaultMaxFrameHistory)
	for i := uint32(0); i < 10; i++ {
		e.AddInput(i, 0, inputBytes(i, 0))
		e.Tick()
	}

	frames := e.HistoryRange(4, 9)
	require.Len(t, frames, 5)
	for i, f := range frames {
		require.Equal(t, uint32(5+i), f.FrameID)
	}
}

func TestHistoryRingBounded(t *testing.T) {
	e := New(1, time.Second, 5)
	for i := uint32(0); i < 20; i++ {
		e.AddInput(i, 0, inputBytes(i, 0))
		e.Tick()
	}

	_, ok := e.History(0)
	require.False(t, ok)

	_, ok = e.History(19)
	require.True(t, ok)
}
