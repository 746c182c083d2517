package world

import (
	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/tuning"
	"battlecode.ai/internal/sim/unit"
)

// View is the read-only surface of State. Validation code only ever sees a
// View, so it cannot mutate the world by accident.
type View interface {
	Tuning() tuning.Tuning
	Spec(t unit.Type) unit.Spec

	Round() int
	Width() int
	Height() int
	OnMap(loc geom.Location) bool
	IsSwamp(loc geom.Location) bool
	Pollution(loc geom.Location) int

	Robot(id int32) (Robot, bool)
	RobotAt(loc geom.Location) (Robot, bool)
	Occupied(loc geom.Location) bool
	RobotsWithin(center geom.Location, radiusSq int) []Robot
	LiveIDs() []int32
	NextRobotID() int32
	SensorRadiusSquared(id int32) int
	DetectionRadiusSquared(id int32) int

	TeamVotes(t Team) int
	RobotCount(t Team) int
	Resigned(t Team) bool
	BuffFactor(t Team) float64
	PendingBid(id int32) int
	HasBid(id int32) bool
}

var _ View = (*State)(nil)
