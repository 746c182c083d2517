package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sort"
)

// Digest hashes everything that influences future rounds. Two worlds with
// equal digests evolve identically under the same inputs.
func (s *State) Digest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteI64(h, &tmp, int64(s.round))
	digestWriteI64(h, &tmp, int64(s.nextID))
	digestWriteI64(h, &tmp, s.seed)
	digestWriteI64(h, &tmp, int64(s.width))
	digestWriteI64(h, &tmp, int64(s.height))

	s.digestRobots(h, &tmp)
	s.digestTeams(h, &tmp)

	bidIDs := sortedKeys(s.bids)
	digestWriteU64(h, &tmp, uint64(len(bidIDs)))
	for _, id := range bidIDs {
		digestWriteI64(h, &tmp, int64(id))
		digestWriteI64(h, &tmp, int64(s.bids[id]))
	}

	digestWriteU64(h, &tmp, uint64(len(s.deferred)))
	for _, id := range s.deferred {
		digestWriteI64(h, &tmp, int64(id))
	}

	return hex.EncodeToString(h.Sum(nil))
}

func (s *State) digestRobots(h hash.Hash, tmp *[8]byte) {
	ids := s.LiveIDs()
	digestWriteU64(h, tmp, uint64(len(ids)))
	for _, id := range ids {
		r := s.robots[id]
		digestWriteI64(h, tmp, int64(r.ID))
		digestWriteI64(h, tmp, int64(r.Team))
		digestWriteU64(h, tmp, uint64(r.Type))
		digestWriteI64(h, tmp, int64(r.Loc.X))
		digestWriteI64(h, tmp, int64(r.Loc.Y))
		digestWriteI64(h, tmp, int64(r.Influence))
		digestWriteI64(h, tmp, int64(r.Conviction))
		digestWriteU64(h, tmp, math.Float64bits(r.Cooldown))
		digestWriteI64(h, tmp, int64(r.Flag))
		h.Write([]byte{boolByte(r.Empowered)})
	}
}

func (s *State) digestTeams(h hash.Hash, tmp *[8]byte) {
	for i := range s.teams {
		ts := &s.teams[i]
		digestWriteI64(h, tmp, int64(ts.votes))
		digestWriteI64(h, tmp, int64(ts.winningBid))
		h.Write([]byte{boolByte(ts.resigned)})
		digestWriteU64(h, tmp, uint64(len(ts.buffs)))
		for _, b := range ts.buffs {
			digestWriteU64(h, tmp, math.Float64bits(b.Factor))
			digestWriteI64(h, tmp, int64(b.Until))
		}
	}
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hash.Hash, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func sortedKeys(m map[int32]int) []int32 {
	out := make([]int32, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
