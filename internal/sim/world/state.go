package world

import (
	"errors"
	"fmt"
	"sort"

	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/tuning"
	"battlecode.ai/internal/sim/unit"
)

type Cell struct {
	Swamp     bool
	Pollution int
}

// RobotSpec is an initial placement. Enlightenment centers take one value
// for both influence and conviction, Influence if set. A unit's zero
// Conviction is derived from Influence with the type's conversion ratio.
type RobotSpec struct {
	Team       Team
	Type       unit.Type
	Loc        geom.Location
	Influence  int
	Conviction int
}

type MapSpec struct {
	Seed   int64
	Width  int
	Height int
	// Row-major, Width*Height long. Nil means every cell is plain.
	Cells  []Cell
	Robots []RobotSpec
}

type Config struct {
	Tuning tuning.Tuning
	// Nil keeps pollution at its base values.
	Field PollutionField
}

// State is the authoritative world. It is not safe for concurrent use; the
// turn engine is its only writer.
type State struct {
	tun   tuning.Tuning
	table unit.Table
	field PollutionField
	seed  int64

	width  int
	height int
	cells  []Cell

	round  int
	nextID int32

	robots map[int32]*Robot
	occ    map[geom.Location]int32
	teams  [NumTeams]teamState

	bids       map[int32]int
	deferred   []int32
	indicators []Indicator
}

var (
	ErrNoRobot   = errors.New("world: no such robot")
	ErrOccupied  = errors.New("world: cell occupied")
	ErrOffMap    = errors.New("world: location off map")
	ErrBadTeam   = errors.New("world: invalid team")
	ErrBadType   = errors.New("world: invalid robot type")
	ErrIDMissync = errors.New("world: robot id out of sequence")
)

func New(cfg Config, m MapSpec) (*State, error) {
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return nil, fmt.Errorf("map: bad dimensions %dx%d", m.Width, m.Height)
	}
	if m.Cells != nil && len(m.Cells) != m.Width*m.Height {
		return nil, fmt.Errorf("map: %d cells for %dx%d", len(m.Cells), m.Width, m.Height)
	}
	s := newState(cfg, m.Seed, m.Width, m.Height)
	copy(s.cells, m.Cells)

	for i, rs := range m.Robots {
		if !rs.Team.Valid() {
			return nil, fmt.Errorf("map robot %d: %w", i, ErrBadTeam)
		}
		if !rs.Type.Valid() {
			return nil, fmt.Errorf("map robot %d: %w", i, ErrBadType)
		}
		inf, conv := rs.Influence, rs.Conviction
		switch {
		case rs.Type == unit.EnlightenmentCenter && inf == 0:
			inf = conv
		case rs.Type == unit.EnlightenmentCenter:
			conv = inf
		case conv == 0:
			conv = s.table.Spec(rs.Type).ConvictionFor(inf)
		}
		if _, err := s.PlaceRobot(Robot{
			Team:       rs.Team,
			Type:       rs.Type,
			Loc:        rs.Loc,
			Influence:  inf,
			Conviction: conv,
		}); err != nil {
			return nil, fmt.Errorf("map robot %d: %w", i, err)
		}
	}
	s.RefreshAggregates()
	return s, nil
}

func newState(cfg Config, seed int64, width, height int) *State {
	field := cfg.Field
	if field == nil {
		field = StaticField{}
	}
	return &State{
		tun:    cfg.Tuning,
		table:  cfg.Tuning.Table(),
		field:  field,
		seed:   seed,
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
		round:  1,
		nextID: 1,
		robots: map[int32]*Robot{},
		occ:    map[geom.Location]int32{},
		bids:   map[int32]int{},
	}
}

func (s *State) Tuning() tuning.Tuning { return s.tun }

func (s *State) Spec(t unit.Type) unit.Spec { return s.table.Spec(t) }

func (s *State) Seed() int64 { return s.seed }

func (s *State) Round() int { return s.round }

func (s *State) Width() int { return s.width }

func (s *State) Height() int { return s.height }

// NextRobotID is the ID the next placed robot will receive.
func (s *State) NextRobotID() int32 { return s.nextID }

func (s *State) OnMap(loc geom.Location) bool {
	return loc.X >= 0 && loc.Y >= 0 && loc.X < s.width && loc.Y < s.height
}

func (s *State) cellIndex(loc geom.Location) int { return loc.Y*s.width + loc.X }

// Cell returns the static cell properties. Off-map locations yield a zero Cell.
func (s *State) Cell(loc geom.Location) Cell {
	if !s.OnMap(loc) {
		return Cell{}
	}
	return s.cells[s.cellIndex(loc)]
}

func (s *State) IsSwamp(loc geom.Location) bool { return s.Cell(loc).Swamp }

// Pollution is the current level at loc, including drift.
func (s *State) Pollution(loc geom.Location) int {
	if !s.OnMap(loc) {
		return 0
	}
	return s.field.Level(s.cells[s.cellIndex(loc)].Pollution, loc, s.round)
}

func (s *State) Robot(id int32) (Robot, bool) {
	r, ok := s.robots[id]
	if !ok {
		return Robot{}, false
	}
	return *r, true
}

func (s *State) RobotAt(loc geom.Location) (Robot, bool) {
	id, ok := s.occ[loc]
	if !ok {
		return Robot{}, false
	}
	return *s.robots[id], true
}

func (s *State) Occupied(loc geom.Location) bool {
	_, ok := s.occ[loc]
	return ok
}

// SensorRadiusSquared is the robot's current sensing radius after the
// pollution penalty at its cell.
func (s *State) SensorRadiusSquared(id int32) int {
	r, ok := s.robots[id]
	if !ok {
		return 0
	}
	base := s.table.Spec(r.Type).SensorRadiusSquared
	penalty := s.Pollution(r.Loc) * s.tun.Pollution.PenaltyPerLevel
	return geom.SensorRadiusSquared(base, penalty, s.tun.MinSensorRadiusSquared)
}

func (s *State) DetectionRadiusSquared(id int32) int {
	r, ok := s.robots[id]
	if !ok {
		return 0
	}
	return s.table.Spec(r.Type).DetectionRadiusSquared
}

// LiveIDs returns every live robot ID in ascending order.
func (s *State) LiveIDs() []int32 {
	ids := make([]int32, 0, len(s.robots))
	for id := range s.robots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *State) NumRobots() int { return len(s.robots) }

// RobotsWithin returns robots with squared distance to center at most
// radiusSq, ordered by distance then ID.
func (s *State) RobotsWithin(center geom.Location, radiusSq int) []Robot {
	var out []Robot
	for _, id := range s.LiveIDs() {
		r := s.robots[id]
		if geom.WithinRadius(radiusSq, geom.DistanceSquared(center, r.Loc)) {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return geom.DistanceSquared(center, out[i].Loc) < geom.DistanceSquared(center, out[j].Loc)
	})
	return out
}

func (s *State) team(t Team) *teamState {
	if !t.Valid() {
		return nil
	}
	return &s.teams[t]
}

func (s *State) TeamVotes(t Team) int {
	if ts := s.team(t); ts != nil {
		return ts.votes
	}
	return 0
}

// RobotCount is the aggregate as of the last round end.
func (s *State) RobotCount(t Team) int {
	if ts := s.team(t); ts != nil {
		return ts.robotCount
	}
	return 0
}

func (s *State) Resigned(t Team) bool {
	if ts := s.team(t); ts != nil {
		return ts.resigned
	}
	return false
}

// BuffFactor is the product of every active expose buff of t.
func (s *State) BuffFactor(t Team) float64 {
	ts := s.team(t)
	if ts == nil {
		return 1
	}
	f := 1.0
	for _, b := range ts.buffs {
		if b.Until >= s.round {
			f *= b.Factor
		}
	}
	return f
}

func (s *State) PendingBid(id int32) int { return s.bids[id] }

func (s *State) HasBid(id int32) bool {
	_, ok := s.bids[id]
	return ok
}

func (s *State) Summary(t Team) TeamSummary {
	ts := s.team(t)
	if ts == nil {
		return TeamSummary{Team: t}
	}
	return TeamSummary{
		Team:           t,
		Votes:          ts.votes,
		RobotCount:     ts.robotCount,
		ECCount:        ts.ecCount,
		TotalInfluence: ts.influence,
		WinningBid:     ts.winningBid,
		Resigned:       ts.resigned,
	}
}

// Indicators returns this round's debug annotations in insertion order.
func (s *State) Indicators() []Indicator {
	out := make([]Indicator, len(s.indicators))
	copy(out, s.indicators)
	return out
}

// Deferred lists robots waiting for end-of-round destruction.
func (s *State) Deferred() []int32 {
	out := make([]int32, len(s.deferred))
	copy(out, s.deferred)
	return out
}

// CheckInvariants verifies the cell/robot bijection. Tests and the engine's
// debug mode call it; a failure means the world is corrupt.
func (s *State) CheckInvariants() error {
	if len(s.occ) != len(s.robots) {
		return fmt.Errorf("world: %d occupied cells for %d robots", len(s.occ), len(s.robots))
	}
	for loc, id := range s.occ {
		r, ok := s.robots[id]
		if !ok {
			return fmt.Errorf("world: cell %v points at missing robot %d", loc, id)
		}
		if r.Loc != loc {
			return fmt.Errorf("world: robot %d at %v indexed at %v", id, r.Loc, loc)
		}
		if !s.OnMap(loc) {
			return fmt.Errorf("world: robot %d off map at %v", id, loc)
		}
		if id >= s.nextID {
			return fmt.Errorf("world: robot %d not below next id %d", id, s.nextID)
		}
	}
	return nil
}
