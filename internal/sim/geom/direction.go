package geom

import "strings"

type Direction uint8

const (
	Center Direction = iota
	North
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

var directionNames = [...]string{"CENTER", "NORTH", "NORTHEAST", "EAST", "SOUTHEAST", "SOUTH", "SOUTHWEST", "WEST", "NORTHWEST"}

// Fixed order; callers iterating neighbors rely on it for determinism.
var compass = [8]Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}

// Directions returns the eight compass directions clockwise from North.
func Directions() []Direction {
	out := make([]Direction, len(compass))
	copy(out, compass[:])
	return out
}

func (d Direction) Valid() bool { return int(d) < len(directionNames) }

func (d Direction) String() string {
	if !d.Valid() {
		return "INVALID"
	}
	return directionNames[d]
}

// Delta returns the unit offset. North is +Y.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case North:
		return 0, 1
	case NorthEast:
		return 1, 1
	case East:
		return 1, 0
	case SouthEast:
		return 1, -1
	case South:
		return 0, -1
	case SouthWest:
		return -1, -1
	case West:
		return -1, 0
	case NorthWest:
		return -1, 1
	default:
		return 0, 0
	}
}

func (d Direction) Opposite() Direction {
	if d == Center || !d.Valid() {
		return d
	}
	return compass[(int(d)-1+4)%8]
}

func (d Direction) RotateRight() Direction {
	if d == Center || !d.Valid() {
		return d
	}
	return compass[int(d)%8]
}

func (d Direction) RotateLeft() Direction {
	if d == Center || !d.Valid() {
		return d
	}
	return compass[(int(d)-2+8)%8]
}

func ParseDirection(s string) (Direction, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "NONE" {
		return Center, true
	}
	for i, n := range directionNames {
		if n == s {
			return Direction(i), true
		}
	}
	return Center, false
}

// DirectionTo returns the compass direction that best approximates the step
// from a toward b (Center when equal).
func DirectionTo(a, b Location) Direction {
	dx := sign(b.X - a.X)
	dy := sign(b.Y - a.Y)
	for _, d := range compass {
		x, y := d.Delta()
		if x == dx && y == dy {
			return d
		}
	}
	return Center
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
