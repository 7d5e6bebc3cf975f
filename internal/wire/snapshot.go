package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/race/lockstep/internal/simstate"
)

// snapshotEntityDTO is the wire shape of one entity inside a serialized
// snapshot: raw Q16.16 integers, not their float projections, matching
// spec.md §4.4(b)'s canonicalization rule.
type snapshotEntityDTO struct {
	ID      int32 `cbor:"id"`
	X       int32 `cbor:"x"`
	Y       int32 `cbor:"y"`
	VX      int32 `cbor:"vx"`
	VY      int32 `cbor:"vy"`
	W       int32 `cbor:"w"`
	H       int32 `cbor:"h"`
	HP      int   `cbor:"hp"`
	MaxHP   int   `cbor:"max_hp"`
}

type snapshotDTO struct {
	FrameID  uint32              `cbor:"frame_id"`
	Entities []snapshotEntityDTO `cbor:"entities"`
	RNGState uint32              `cbor:"rng_state"`
	Hash     string              `cbor:"hash"`
}

// EncodeSnapshot serializes a simstate.Snapshot to bytes suitable for a
// resync_full payload.
func EncodeSnapshot(snap simstate.Snapshot) ([]byte, error) {
	dto := snapshotDTO{
		FrameID:  snap.FrameID,
		RNGState: snap.RNGState,
		Hash:     snap.Hash,
	}
	for _, e := range snap.Entities {
		dto.Entities = append(dto.Entities, snapshotEntityDTO{
			ID: e.ID, X: e.X.Raw(), Y: e.Y.Raw(), VX: e.VX.Raw(), VY: e.VY.Raw(),
			W: e.W.Raw(), H: e.H.Raw(), HP: e.HP, MaxHP: e.MaxHP,
		})
	}
	data, err := cbor.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("wire: encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot is the client-side counterpart, returning the frame id,
// RNG state, and entity DTOs for the caller to rebuild a GameState from.
func DecodeSnapshot(data []byte) (frameID uint32, rngState uint32, hash string, entities []SnapshotEntity, err error) {
	var dto snapshotDTO
	if err = cbor.Unmarshal(data, &dto); err != nil {
		return 0, 0, "", nil, fmt.Errorf("wire: decode snapshot: %w", err)
	}
	out := make([]SnapshotEntity, 0, len(dto.Entities))
	for _, e := range dto.Entities {
		out = append(out, SnapshotEntity{
			ID: e.ID, X: e.X, Y: e.Y, VX: e.VX, VY: e.VY, W: e.W, H: e.H, HP: e.HP, MaxHP: e.MaxHP,
		})
	}
	return dto.FrameID, dto.RNGState, dto.Hash, out, nil
}

// SnapshotEntity is the decoded, raw-integer form of one entity from a
// resync_full payload.
type SnapshotEntity struct {
	ID            int32
	X, Y, VX, VY  int32
	W, H          int32
	HP, MaxHP     int
}
