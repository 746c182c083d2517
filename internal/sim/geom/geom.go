package geom

import "fmt"

type Location struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (l Location) String() string { return fmt.Sprintf("(%d,%d)", l.X, l.Y) }

func (l Location) ToArray() [2]int { return [2]int{l.X, l.Y} }

func (l Location) DistanceSquaredTo(o Location) int { return DistanceSquared(l, o) }

func (l Location) Add(d Direction) Location { return Adjacent(l, d) }

func (l Location) IsAdjacentTo(o Location) bool {
	return l != o && DistanceSquared(l, o) <= 2
}

// DistanceSquared is the squared Euclidean distance between two cells. Every
// range check in the simulation compares squared values.
func DistanceSquared(a, b Location) int {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

func WithinRadius(radiusSq, candidateSq int) bool {
	return candidateSq <= radiusSq
}

// Adjacent returns the neighbor of loc in direction d. Bounds and occupancy
// are the caller's concern.
func Adjacent(loc Location, d Direction) Location {
	dx, dy := d.Delta()
	return Location{X: loc.X + dx, Y: loc.Y + dy}
}

// SensorRadiusSquared applies a pollution penalty to a base radius, floored at min.
func SensorRadiusSquared(base, penalty, min int) int {
	r := base - penalty
	if r < min {
		return min
	}
	return r
}
