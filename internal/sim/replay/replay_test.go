package replay

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"battlecode.ai/internal/sim/geom"
)

type memSink struct {
	headers int
	rounds  []RoundEntry
	footers []MatchFooter
	fail    error
}

func (m *memSink) WriteHeader(MatchHeader) error {
	m.headers++
	return m.fail
}

func (m *memSink) WriteRound(e RoundEntry) error {
	m.rounds = append(m.rounds, e)
	return m.fail
}

func (m *memSink) WriteFooter(f MatchFooter) error {
	m.footers = append(m.footers, f)
	return m.fail
}

func TestKindCodesAreStable(t *testing.T) {
	want := map[Kind]string{
		0: "EMPOWER",
		1: "EXPOSE",
		2: "SET_FLAG",
		3: "SPAWN_UNIT",
		4: "PLACE_BID",
		5: "CHANGE_TEAM",
		6: "DIE_EXCEPTION",
	}
	for k, name := range want {
		if got := k.String(); got != name {
			t.Fatalf("kind %d: got %q want %q", k, got, name)
		}
		back, ok := ParseKind(name)
		if !ok || back != k {
			t.Fatalf("ParseKind(%q)=%d,%v", name, back, ok)
		}
	}
	ks := Kinds()
	if len(ks) != len(want) {
		t.Fatalf("Kinds()=%v", ks)
	}
	for i, k := range ks {
		if int(k) != i {
			t.Fatalf("Kinds()[%d]=%d", i, k)
		}
	}
	if Kind(42).Known() {
		t.Fatalf("kind 42 should be unknown")
	}
	if got := Kind(42).String(); got != "KIND_42" {
		t.Fatalf("unknown kind string: %q", got)
	}
}

func TestLogOrderingAndSinks(t *testing.T) {
	sink := &memSink{}
	l := NewLog(sink, nil)
	if err := l.WriteHeader(MatchHeader{Width: 4, Height: 4}); err != nil {
		t.Fatalf("header: %v", err)
	}
	if err := l.WriteHeader(MatchHeader{}); err == nil {
		t.Fatalf("expected second header to fail")
	}

	if err := l.Begin(1); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := l.Begin(2); err == nil {
		t.Fatalf("expected begin while open to fail")
	}
	l.Record(1, KindSetFlag, 7)
	l.Record(2, KindPlaceBid, 3)
	if _, err := l.End([2]TeamStats{}, -1, "d1"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := l.Begin(3); err == nil {
		t.Fatalf("expected non-contiguous round to fail")
	}
	if err := l.Begin(2); err != nil {
		t.Fatalf("begin 2: %v", err)
	}
	l.Record(1, KindEmpower, TargetNone)
	if _, err := l.End([2]TeamStats{}, 0, "d2"); err != nil {
		t.Fatalf("end: %v", err)
	}

	recs := l.Records()
	if len(recs) != 3 {
		t.Fatalf("records=%d", len(recs))
	}
	if recs[0].Round != 1 || recs[1].Round != 1 || recs[2].Round != 2 {
		t.Fatalf("unexpected rounds: %+v", recs)
	}
	if recs[1].Kind != KindPlaceBid || recs[1].Target != 3 {
		t.Fatalf("unexpected record: %+v", recs[1])
	}
	if len(sink.rounds) != 2 || sink.rounds[1].Digest != "d2" {
		t.Fatalf("sink did not receive rounds: %+v", sink.rounds)
	}

	// Mutating a returned copy must not change the log.
	recs[0].Target = 99
	if l.Records()[0].Target != 7 {
		t.Fatalf("Records returned an alias")
	}
}

func TestLogKeepsEntryWhenSinkFails(t *testing.T) {
	boom := errors.New("disk full")
	l := NewLog(&memSink{fail: boom})
	if err := l.Begin(1); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := l.End([2]TeamStats{}, -1, ""); !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("entry dropped on sink failure")
	}
}

func header() MatchHeader {
	return MatchHeader{
		Width:  5,
		Height: 5,
		Bodies: []Body{
			{ID: 1, Team: 0, Type: 0, Loc: geom.Location{X: 0, Y: 0}, Influence: 150},
			{ID: 2, Team: 1, Type: 0, Loc: geom.Location{X: 4, Y: 4}, Influence: 150},
		},
	}
}

func TestPlaybackRebuildsBodies(t *testing.T) {
	p, err := NewPlayback(header())
	if err != nil {
		t.Fatalf("playback: %v", err)
	}
	r1 := RoundEntry{
		Round:   1,
		Actions: []ActionRecord{{Round: 1, Actor: 1, Kind: KindSpawnUnit, Target: 3}},
		Spawned: []Body{{ID: 3, Team: 0, Type: 1, Loc: geom.Location{X: 1, Y: 1}, Conviction: 20}},
		Teams:   [2]TeamStats{{RobotCount: 2}, {RobotCount: 1}},
	}
	if err := p.Apply(r1); err != nil {
		t.Fatalf("round 1: %v", err)
	}
	r2 := RoundEntry{
		Round: 2,
		Actions: []ActionRecord{
			{Round: 2, Actor: 3, Kind: KindEmpower, Target: TargetNone},
			{Round: 2, Actor: 2, Kind: KindChangeTeam, Target: 2},
			{Round: 2, Actor: 9, Kind: Kind(77), Target: 0},
		},
		Moved: []Movement{{ID: 3, Loc: geom.Location{X: 2, Y: 2}}},
		Died:  []int32{3},
		Teams: [2]TeamStats{{RobotCount: 2}, {RobotCount: 0}},
	}
	if err := p.Apply(r2); err != nil {
		t.Fatalf("round 2: %v", err)
	}
	bodies := p.Bodies()
	if len(bodies) != 2 || bodies[1].ID != 2 || bodies[1].Team != 0 {
		t.Fatalf("unexpected bodies: %+v", bodies)
	}
	if p.Round() != 2 {
		t.Fatalf("round=%d", p.Round())
	}
}

func TestPlaybackRejectsBrokenLogs(t *testing.T) {
	cases := []struct {
		name  string
		entry RoundEntry
		want  string
	}{
		{"gap", RoundEntry{Round: 2}, "expected round 1"},
		{"stamp", RoundEntry{Round: 1, Actions: []ActionRecord{{Round: 0, Kind: KindSetFlag}}}, "stamped"},
		{"unknown move", RoundEntry{Round: 1, Moved: []Movement{{ID: 9}}}, "unknown body 9"},
		{"unknown death", RoundEntry{Round: 1, Died: []int32{9}}, "unknown body 9"},
		{"shared cell", RoundEntry{Round: 1, Moved: []Movement{{ID: 2, Loc: geom.Location{}}}}, "share"},
		{"off map", RoundEntry{Round: 1, Moved: []Movement{{ID: 2, Loc: geom.Location{X: 5}}}}, "off map"},
		{"count", RoundEntry{Round: 1, Teams: [2]TeamStats{{RobotCount: 1}, {RobotCount: 0}}}, "entry says 0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewPlayback(header())
			if err != nil {
				t.Fatalf("playback: %v", err)
			}
			err = p.Apply(tc.entry)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("got %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestLineJSONShape(t *testing.T) {
	ln := Line{Type: LineRound, Round: &RoundEntry{Round: 3, Actions: []ActionRecord{}, VoteWinner: -1}}
	b, err := json.Marshal(ln)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"type":"ROUND"`) || strings.Contains(s, `"header"`) {
		t.Fatalf("unexpected line json: %s", s)
	}
}
