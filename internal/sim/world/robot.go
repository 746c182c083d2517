package world

import (
	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/unit"
)

type Robot struct {
	ID         int32
	Team       Team
	Type       unit.Type
	Loc        geom.Location
	Influence  int
	Conviction int
	Cooldown   float64
	Flag       int

	// Empowered robots are removed at the end of the round.
	Empowered bool
}

// Pooled reports whether influence and conviction are one quantity for r.
// An enlightenment center defends with the same influence it builds with.
func (r Robot) Pooled() bool { return r.Type == unit.EnlightenmentCenter }

// syncPool copies the changed side of a pooled robot onto the other.
func (r *Robot) syncPool(fromConviction bool) {
	if !r.Pooled() {
		return
	}
	if fromConviction {
		r.Influence = max(r.Conviction, 0)
		return
	}
	r.Conviction = r.Influence
}

// Ready reports whether the robot may act this turn.
func (r Robot) Ready() bool { return r.Cooldown < 1 }

// Info is what other robots can learn about r by sensing it.
func (r Robot) Info() RobotInfo {
	return RobotInfo{
		ID:         r.ID,
		Team:       r.Team,
		Type:       r.Type,
		Loc:        r.Loc,
		Influence:  r.Influence,
		Conviction: r.Conviction,
	}
}

type RobotInfo struct {
	ID         int32         `json:"id"`
	Team       Team          `json:"team"`
	Type       unit.Type     `json:"type"`
	Loc        geom.Location `json:"loc"`
	Influence  int           `json:"influence"`
	Conviction int           `json:"conviction"`
}

// Indicator is a debug annotation drawn by the viewer. Indicators are not
// game state; they are cleared at the start of every round.
type Indicator struct {
	Robot int32
	Line  bool
	From  geom.Location
	To    geom.Location
	RGB   [3]uint8
}
