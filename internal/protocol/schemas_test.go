package protocol_test

import (
	"testing"

	"battlecode.ai/internal/protocol"
)

func TestMatchLogSchema_ValidateSamples(t *testing.T) {
	if _, err := protocol.MatchLogSchema(); err != nil {
		t.Fatalf("compile: %v", err)
	}

	valid := []string{
		`{"type":"MATCH_HEADER","header":{
		  "match_id":"m1","protocol_version":"1.0","tuning_digest":"abc","seed":7,
		  "width":2,"height":1,"swamp":[false,true],"pollution":[0,2],
		  "bodies":[{"id":1,"team":0,"type":0,"loc":{"x":0,"y":0},"influence":150,"conviction":150}],
		  "teams":["red","blue"]}}`,
		`{"type":"ROUND","round":{
		  "round":1,
		  "actions":[{"round":1,"actor":1,"kind":3,"target":2},{"round":1,"actor":2,"kind":9,"target":-1}],
		  "moved":[{"id":2,"loc":{"x":1,"y":0}}],
		  "spawned":[{"id":2,"team":0,"type":1,"loc":{"x":1,"y":0},"influence":20,"conviction":20}],
		  "dots":[{"id":1,"loc":{"x":0,"y":0},"rgb":[255,0,0]}],
		  "teams":[{"votes":1,"robot_count":2,"winning_bid":3},{"votes":0,"robot_count":0,"winning_bid":0}],
		  "vote_winner":0,"digest":"ff"}}`,
		`{"type":"MATCH_FOOTER","footer":{"winner":1,"reason":"ELIMINATION","final_round":40}}`,
	}
	for i, line := range valid {
		if err := protocol.ValidateMatchLogLine([]byte(line)); err != nil {
			t.Fatalf("sample %d: %v", i, err)
		}
	}

	invalid := []string{
		`{"type":"ROUND"}`,
		`{"type":"BOGUS","round":{}}`,
		`{"type":"MATCH_FOOTER","footer":{"winner":3,"reason":"X","final_round":1}}`,
		`{"type":"ROUND","round":{"round":0,"actions":[],"teams":[{},{}],"vote_winner":-1,"digest":""}}`,
		`not json`,
	}
	for i, line := range invalid {
		if err := protocol.ValidateMatchLogLine([]byte(line)); err == nil {
			t.Fatalf("invalid sample %d accepted", i)
		}
	}
}

func TestValidateProfile(t *testing.T) {
	ok := []protocol.ProfilerEvent{
		{Open: true, At: 1, Frame: 0},
		{Open: true, At: 2, Frame: 3},
		{Open: false, At: 5, Frame: 3},
		{Open: false, At: 9, Frame: 0},
	}
	if err := protocol.ValidateProfile(ok); err != nil {
		t.Fatalf("valid profile rejected: %v", err)
	}
	bad := [][]protocol.ProfilerEvent{
		{{Open: false, At: 1}},
		{{Open: true, At: 5}, {Open: false, At: 4}},
		{{Open: true, At: 1, Frame: 1}, {Open: false, At: 2, Frame: 2}},
		{{Open: true, At: 1}},
	}
	for i, evs := range bad {
		if err := protocol.ValidateProfile(evs); err == nil {
			t.Fatalf("bad profile %d accepted", i)
		}
	}
}

func TestIsAction(t *testing.T) {
	if !protocol.IsAction(protocol.OpEmpower) || protocol.IsAction(protocol.OpSense) {
		t.Fatalf("action classification wrong")
	}
}
