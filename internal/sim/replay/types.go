package replay

import "battlecode.ai/internal/sim/geom"

// ActionRecord is one immutable log entry. Target meaning depends on Kind:
// none, exposed body, flag value, spawned body, bid amount, or self.
type ActionRecord struct {
	Round  int   `json:"round"`
	Actor  int32 `json:"actor"`
	Kind   Kind  `json:"kind"`
	Target int64 `json:"target"`
}

type Movement struct {
	ID  int32         `json:"id"`
	Loc geom.Location `json:"loc"`
}

type Body struct {
	ID         int32         `json:"id"`
	Team       int8          `json:"team"`
	Type       uint8         `json:"type"`
	Loc        geom.Location `json:"loc"`
	Influence  int           `json:"influence"`
	Conviction int           `json:"conviction"`
}

type IndicatorDot struct {
	ID  int32         `json:"id"`
	Loc geom.Location `json:"loc"`
	RGB [3]uint8      `json:"rgb"`
}

type IndicatorLine struct {
	ID    int32         `json:"id"`
	Start geom.Location `json:"start"`
	End   geom.Location `json:"end"`
	RGB   [3]uint8      `json:"rgb"`
}

type TeamStats struct {
	Votes      int `json:"votes"`
	RobotCount int `json:"robot_count"`
	WinningBid int `json:"winning_bid"`
}

// RoundEntry is everything that changed during one round. Together with the
// match header it is enough to rebuild body positions and teams.
type RoundEntry struct {
	Round      int             `json:"round"`
	Actions    []ActionRecord  `json:"actions"`
	Moved      []Movement      `json:"moved,omitempty"`
	Spawned    []Body          `json:"spawned,omitempty"`
	Died       []int32         `json:"died,omitempty"`
	Dots       []IndicatorDot  `json:"dots,omitempty"`
	Lines      []IndicatorLine `json:"lines,omitempty"`
	Teams      [2]TeamStats    `json:"teams"`
	VoteWinner int8            `json:"vote_winner"`
	Digest     string          `json:"digest"`
}

type MatchHeader struct {
	MatchID         string    `json:"match_id,omitempty"`
	ProtocolVersion string    `json:"protocol_version"`
	TuningDigest    string    `json:"tuning_digest"`
	Seed            int64     `json:"seed"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	Swamp           []bool    `json:"swamp"`
	Pollution       []int     `json:"pollution"`
	Bodies          []Body    `json:"bodies"`
	Teams           [2]string `json:"teams"`
	// StartRound is set when the match was resumed from a snapshot.
	StartRound int `json:"start_round,omitempty"`
}

type MatchFooter struct {
	Winner     int8   `json:"winner"`
	Reason     string `json:"reason"`
	FinalRound int    `json:"final_round"`
}

// Line types in a persisted match log.
const (
	LineHeader = "MATCH_HEADER"
	LineRound  = "ROUND"
	LineFooter = "MATCH_FOOTER"
)

type Line struct {
	Type   string       `json:"type"`
	Header *MatchHeader `json:"header,omitempty"`
	Round  *RoundEntry  `json:"round,omitempty"`
	Footer *MatchFooter `json:"footer,omitempty"`
}

// Sink receives every finished match artifact. Implementations live in
// internal/persistence.
type Sink interface {
	WriteHeader(h MatchHeader) error
	WriteRound(e RoundEntry) error
	WriteFooter(f MatchFooter) error
}
