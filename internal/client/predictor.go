package client

import (
	"sort"

	"github.com/race/lockstep/internal/protocol"
	"github.com/race/lockstep/internal/simstate"
)

// PredictLocal runs one speculative tick for the engine's current frame
// (p.State.FrameID): it snapshots the state, guesses every other
// player's input from the most recently confirmed data (falling back to
// an empty input), applies the tick, and enqueues the guess for later
// comparison against the authoritative frame (spec.md §4.10).
func (p *Predictor) PredictLocal(myInput protocol.Input) {
	frameID := p.State.FrameID
	p.State.SaveSnapshot()

	guessed := p.guessInputs(frameID, myInput)
	simstate.ApplyFrame(p.State, p.Physics, serializeInputs(guessed), p.InputSpeed, p.TickMillis)

	others := make(map[uint16]protocol.Input, len(guessed)-1)
	for slot, in := range guessed {
		if slot == p.PlayerID {
			continue
		}
		others[slot] = in
	}
	p.predicted[frameID] = &predictedTick{myInput: myInput, guessedOthers: others}
	p.order = append(p.order, frameID)
	sort.Slice(p.order, func(i, j int) bool { return p.order[i] < p.order[j] })
}

// guessInputs builds the full per-slot input set for a speculative tick:
// myInput for p.PlayerID, and for every other slot the most recently
// confirmed input from that player, or an empty input if none has ever
// arrived (spec.md §4.10).
func (p *Predictor) guessInputs(frameID uint32, myInput protocol.Input) map[uint16]protocol.Input {
	out := make(map[uint16]protocol.Input, len(p.PlayerSlots))
	out[p.PlayerID] = myInput
	for _, slot := range p.PlayerSlots {
		if slot == p.PlayerID {
			continue
		}
		if in, ok := p.lastConfirmed[slot]; ok {
			out[slot] = in
		} else {
			out[slot] = protocol.Empty(frameID, slot)
		}
	}
	return out
}

func serializeInputs(inputs map[uint16]protocol.Input) map[uint16][]byte {
	out := make(map[uint16][]byte, len(inputs))
	for slot, in := range inputs {
		buf := in.Serialize()
		out[slot] = buf[:]
	}
	return out
}

// OnAuthoritative applies an authoritative game_frame. If frameID was
// never speculatively predicted, it's applied directly — no divergence
// is possible since nothing was guessed. Otherwise the guessed and
// authoritative input sets are compared byte-wise; on a match the
// prediction already left the state correct and only bookkeeping is
// dropped (P8: no observable state change). On a mismatch the state
// rolls back to the pre-tick snapshot, replays the authoritative tick,
// and re-applies every still-speculative later tick with freshly
// rebuilt guesses (spec.md §4.10, S3). Returns whether a rollback
// occurred.
func (p *Predictor) OnAuthoritative(frameID uint32, inputs map[uint16][]byte) (bool, error) {
	p.recordConfirmed(inputs)

	rec, wasPredicted := p.predicted[frameID]
	if !wasPredicted {
		simstate.ApplyFrame(p.State, p.Physics, inputs, p.InputSpeed, p.TickMillis)
		return false, nil
	}

	if guessMatches(rec.guessedOthers, inputs) {
		p.drop(frameID)
		return false, nil
	}

	if err := p.State.RestoreSnapshot(frameID); err != nil {
		return false, err
	}
	simstate.ApplyFrame(p.State, p.Physics, inputs, p.InputSpeed, p.TickMillis)
	p.drop(frameID)
	p.RollbackCount++

	for _, laterID := range p.pendingAscending() {
		laterRec := p.predicted[laterID]
		p.State.SaveSnapshot()
		guessed := p.guessInputs(laterID, laterRec.myInput)
		simstate.ApplyFrame(p.State, p.Physics, serializeInputs(guessed), p.InputSpeed, p.TickMillis)

		refreshed := make(map[uint16]protocol.Input, len(guessed)-1)
		for slot, in := range guessed {
			if slot == p.PlayerID {
				continue
			}
			refreshed[slot] = in
		}
		laterRec.guessedOthers = refreshed
	}

	return true, nil
}

func (p *Predictor) recordConfirmed(inputs map[uint16][]byte) {
	for slot, data := range inputs {
		if slot == p.PlayerID {
			continue
		}
		in, err := protocol.Deserialize(data)
		if err != nil {
			continue
		}
		p.lastConfirmed[slot] = in
	}
}

func (p *Predictor) drop(frameID uint32) {
	delete(p.predicted, frameID)
	for i, id := range p.order {
		if id == frameID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// pendingAscending returns the frame ids still awaiting authoritative
// confirmation, in ascending order.
func (p *Predictor) pendingAscending() []uint32 {
	out := make([]uint32, len(p.order))
	copy(out, p.order)
	return out
}

// guessMatches reports whether every guessed remote input byte-for-byte
// matches its authoritative counterpart. A slot guessed but absent from
// the authoritative set is treated as a mismatch rather than ignored,
// since that can only happen if the room's membership changed underneath
// the prediction.
func guessMatches(guessed map[uint16]protocol.Input, authoritative map[uint16][]byte) bool {
	for slot, in := range guessed {
		auth, ok := authoritative[slot]
		if !ok {
			return false
		}
		want := in.Serialize()
		if len(auth) != len(want) {
			return false
		}
		for i := range want {
			if want[i] != auth[i] {
				return false
			}
		}
	}
	return true
}
