package ability

import (
	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/replay"
	"battlecode.ai/internal/sim/world"
)

// Record is an action record before the engine stamps it with the round.
type Record struct {
	Actor  int32
	Kind   replay.Kind
	Target int64
}

// Effect is the complete outcome of one validated action. Nothing in it has
// been applied yet.
type Effect struct {
	Deltas   []world.Delta
	Records  []Record
	Detected []geom.Location
}

func (e *Effect) add(d ...world.Delta) { e.Deltas = append(e.Deltas, d...) }

func (e *Effect) record(actor int32, kind replay.Kind, target int64) {
	e.Records = append(e.Records, Record{Actor: actor, Kind: kind, Target: target})
}

func actor(v world.View, id int32) (world.Robot, error) {
	r, ok := v.Robot(id)
	if !ok {
		return world.Robot{}, fail(ErrNoRobot, "robot %d", id)
	}
	return r, nil
}

func ready(r world.Robot) error {
	if !r.Ready() {
		return fail(ErrNotReady, "cooldown %.2f", r.Cooldown)
	}
	return nil
}
