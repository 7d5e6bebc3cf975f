package room

import (
	"hash/fnv"
	"time"
)

// deriveSeed computes the per-room PRNG seed (SPEC_FULL.md's Open
// Question #4): FNV-1a over the room id, XORed with the room's creation
// timestamp, truncated to 32 bits. Using wall-clock at room-creation time
// keeps repeated matches in the same room_id from replaying an identical
// seed, while remaining fully reproducible from that point forward.
func deriveSeed(roomID string, createdAt time.Time) uint32 {
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return h.Sum32() ^ uint32(createdAt.UnixNano())
}
