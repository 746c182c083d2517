package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	MatchID string `json:"match_id"`
	Round   int    `json:"round"`
}

// SnapshotV1 is a full copy of the world between two rounds. Loading it and
// continuing the match produces the same digests as the uninterrupted run.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed         int64  `json:"seed"`
	TuningDigest string `json:"tuning_digest"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`

	Swamp     []bool `json:"swamp"`
	Pollution []int  `json:"pollution"`

	Robots   []RobotV1  `json:"robots"`
	Teams    [2]TeamV1  `json:"teams"`
	Bids     []BidV1    `json:"bids,omitempty"`
	Deferred []int32    `json:"deferred,omitempty"`
	Counters CountersV1 `json:"counters"`
}

type RobotV1 struct {
	ID         int32   `json:"id"`
	Team       int8    `json:"team"`
	Type       uint8   `json:"type"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Influence  int     `json:"influence"`
	Conviction int     `json:"conviction"`
	Cooldown   float64 `json:"cooldown"`
	Flag       int     `json:"flag"`
	Empowered  bool    `json:"empowered,omitempty"`
}

type BuffV1 struct {
	Factor float64 `json:"factor"`
	Until  int     `json:"until"`
}

type TeamV1 struct {
	Votes      int      `json:"votes"`
	Resigned   bool     `json:"resigned,omitempty"`
	WinningBid int      `json:"winning_bid,omitempty"`
	Buffs      []BuffV1 `json:"buffs,omitempty"`
}

type BidV1 struct {
	Robot  int32 `json:"robot"`
	Amount int   `json:"amount"`
}

type CountersV1 struct {
	NextRobot int32 `json:"next_robot"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

// ReadHeader decodes only the JSON header line, which is enough to list
// snapshots without decoding the body.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// Path returns the conventional file name for a snapshot of round.
func Path(dir string, round int) string {
	return filepath.Join(dir, fmt.Sprintf("round-%06d.snap.zst", round))
}
