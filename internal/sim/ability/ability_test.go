package ability

import (
	"errors"
	"math"
	"testing"

	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/replay"
	"battlecode.ai/internal/sim/tuning"
	"battlecode.ai/internal/sim/unit"
	"battlecode.ai/internal/sim/world"
)

func loc(x, y int) geom.Location { return geom.Location{X: x, Y: y} }

func newWorld(t *testing.T, tun tuning.Tuning, cells []world.Cell, robots ...world.RobotSpec) *world.State {
	t.Helper()
	s, err := world.New(world.Config{Tuning: tun}, world.MapSpec{Width: 10, Height: 10, Cells: cells, Robots: robots})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return s
}

func apply(t *testing.T, s *world.State, eff Effect) {
	t.Helper()
	for _, d := range eff.Deltas {
		if err := s.Apply(d); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
}

func TestEmpowerSplitsAndConverts(t *testing.T) {
	s := newWorld(t, tuning.Defaults(), nil,
		world.RobotSpec{Team: world.TeamA, Type: unit.Politician, Loc: loc(5, 5), Conviction: 100},
		world.RobotSpec{Team: world.TeamB, Type: unit.Muckraker, Loc: loc(5, 6), Conviction: 20},
		world.RobotSpec{Team: world.TeamB, Type: unit.Politician, Loc: loc(6, 6), Conviction: 50},
		world.RobotSpec{Team: world.TeamA, Type: unit.Slanderer, Loc: loc(4, 5), Conviction: 10},
		world.RobotSpec{Team: world.TeamB, Type: unit.Muckraker, Loc: loc(7, 5), Conviction: 5},
	)
	eff, err := Empower(s, 1)
	if err != nil {
		t.Fatalf("empower: %v", err)
	}
	if len(eff.Records) != 2 || eff.Records[0].Kind != replay.KindEmpower || eff.Records[1].Kind != replay.KindChangeTeam || eff.Records[1].Actor != 2 {
		t.Fatalf("unexpected records %+v", eff.Records)
	}
	apply(t, s, eff)

	flipped, _ := s.Robot(2)
	if flipped.Team != world.TeamA || flipped.Conviction != 13 {
		t.Fatalf("robot 2: %+v", flipped)
	}
	hit, _ := s.Robot(3)
	if hit.Team != world.TeamB || hit.Conviction != 17 {
		t.Fatalf("robot 3: %+v", hit)
	}
	friend, _ := s.Robot(4)
	if friend.Conviction != 43 {
		t.Fatalf("robot 4: %+v", friend)
	}
	// Distance 4 is outside the strict radius.
	far, _ := s.Robot(5)
	if far.Conviction != 5 {
		t.Fatalf("robot 5 should be untouched: %+v", far)
	}
	self, _ := s.Robot(1)
	if !self.Empowered || self.Ready() {
		t.Fatalf("actor not marked: %+v", self)
	}
	if got := s.FlushDeferred(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("deferred=%v", got)
	}
	if err := s.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestEmpowerConservesConviction(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 7} {
		robots := []world.RobotSpec{{Team: world.TeamA, Type: unit.Politician, Loc: loc(5, 5), Conviction: 101}}
		for i := 0; i < n; i++ {
			d := geom.Directions()[i]
			robots = append(robots, world.RobotSpec{Team: world.TeamA, Type: unit.Muckraker, Loc: loc(5, 5).Add(d), Conviction: 1})
		}
		s := newWorld(t, tuning.Defaults(), nil, robots...)
		eff, err := Empower(s, 1)
		if err != nil {
			t.Fatalf("empower: %v", err)
		}
		gained := 0
		for _, d := range eff.Deltas {
			if cd, ok := d.(world.ConvictionDelta); ok {
				gained += cd.Amount
			}
		}
		if gained > 101 || gained != (101/n)*n {
			t.Fatalf("n=%d distributed %d", n, gained)
		}
	}
}

func TestEmpowerUsesExposeBuff(t *testing.T) {
	s := newWorld(t, tuning.Defaults(), nil,
		world.RobotSpec{Team: world.TeamA, Type: unit.Politician, Loc: loc(5, 5), Conviction: 10},
		world.RobotSpec{Team: world.TeamA, Type: unit.Muckraker, Loc: loc(5, 6), Conviction: 1},
	)
	if err := s.AddBuff(world.TeamA, 1.5, 5); err != nil {
		t.Fatalf("buff: %v", err)
	}
	eff, err := Empower(s, 1)
	if err != nil {
		t.Fatalf("empower: %v", err)
	}
	apply(t, s, eff)
	if r, _ := s.Robot(2); r.Conviction != 16 {
		t.Fatalf("buffed conviction=%d want 16", r.Conviction)
	}
}

func TestEmpowerDestroysBelowMinimum(t *testing.T) {
	s := newWorld(t, tuning.Defaults(), nil,
		world.RobotSpec{Team: world.TeamA, Type: unit.Politician, Loc: loc(5, 5), Conviction: 10},
		world.RobotSpec{Team: world.TeamB, Type: unit.Muckraker, Loc: loc(5, 6), Conviction: 10},
	)
	eff, err := Empower(s, 1)
	if err != nil {
		t.Fatalf("empower: %v", err)
	}
	apply(t, s, eff)
	if _, ok := s.Robot(2); ok {
		t.Fatalf("robot at zero conviction should be destroyed")
	}
}

func TestMoveIntoOccupiedCellFails(t *testing.T) {
	s := newWorld(t, tuning.Defaults(), nil,
		world.RobotSpec{Team: world.TeamA, Type: unit.Muckraker, Loc: loc(2, 2), Conviction: 5},
		world.RobotSpec{Team: world.TeamB, Type: unit.Muckraker, Loc: loc(2, 3), Conviction: 5},
	)
	before := s.Digest()
	if _, err := Move(s, 1, geom.North); !errors.Is(err, ErrOccupied) {
		t.Fatalf("expected ErrOccupied, got %v", err)
	}
	if err := CanMove(s, 1, geom.North); Code(err) != "E_OCCUPIED" {
		t.Fatalf("code=%q", Code(err))
	}
	if s.Digest() != before {
		t.Fatalf("failed move changed the world")
	}
}

func TestMoveChargesSwampSurcharge(t *testing.T) {
	cells := make([]world.Cell, 100)
	cells[3*10+2] = world.Cell{Swamp: true}
	s := newWorld(t, tuning.Defaults(), cells,
		world.RobotSpec{Team: world.TeamA, Type: unit.Politician, Loc: loc(2, 2), Conviction: 5},
	)
	eff, err := Move(s, 1, geom.North)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	apply(t, s, eff)
	r, _ := s.Robot(1)
	if r.Loc != loc(2, 3) || r.Cooldown != 3 {
		t.Fatalf("unexpected robot %+v", r)
	}
	if err := CanMove(s, 1, geom.East); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestMoveRejectsImmobileAndEdges(t *testing.T) {
	s := newWorld(t, tuning.Defaults(), nil,
		world.RobotSpec{Team: world.TeamA, Type: unit.EnlightenmentCenter, Loc: loc(0, 0), Influence: 10},
		world.RobotSpec{Team: world.TeamA, Type: unit.Muckraker, Loc: loc(9, 9), Conviction: 5},
	)
	if err := CanMove(s, 1, geom.North); !errors.Is(err, ErrWrongType) {
		t.Fatalf("expected ErrWrongType, got %v", err)
	}
	if err := CanMove(s, 2, geom.NorthEast); !errors.Is(err, ErrOffMap) {
		t.Fatalf("expected ErrOffMap, got %v", err)
	}
	if err := CanMove(s, 2, geom.Center); !errors.Is(err, ErrBadArgument) {
		t.Fatalf("expected ErrBadArgument, got %v", err)
	}
	if err := CanMove(s, 99, geom.South); !errors.Is(err, ErrNoRobot) {
		t.Fatalf("expected ErrNoRobot, got %v", err)
	}
}

func TestExposeOutOfRange(t *testing.T) {
	tun := tuning.Defaults()
	tun.Units.Muckraker.SensorRadiusSquared = 13
	tun.Units.Muckraker.DetectionRadiusSquared = 20
	s := newWorld(t, tun, nil,
		world.RobotSpec{Team: world.TeamA, Type: unit.Muckraker, Loc: loc(0, 0), Conviction: 5},
		world.RobotSpec{Team: world.TeamB, Type: unit.Slanderer, Loc: loc(4, 2), Influence: 20},
	)
	if s.SensorRadiusSquared(1) != 13 {
		t.Fatalf("sensor radius=%d", s.SensorRadiusSquared(1))
	}
	eff, err := Expose(s, 1, loc(4, 2))
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if len(eff.Records) != 0 || len(eff.Deltas) != 0 {
		t.Fatalf("failed expose produced an effect: %+v", eff)
	}
}

func TestExposeDestroysSlandererAndBuffs(t *testing.T) {
	s := newWorld(t, tuning.Defaults(), nil,
		world.RobotSpec{Team: world.TeamA, Type: unit.Muckraker, Loc: loc(0, 0), Conviction: 5},
		world.RobotSpec{Team: world.TeamB, Type: unit.Slanderer, Loc: loc(2, 2), Influence: 100},
	)
	eff, err := Expose(s, 1, loc(2, 2))
	if err != nil {
		t.Fatalf("expose: %v", err)
	}
	if len(eff.Records) != 1 || eff.Records[0].Kind != replay.KindExpose || eff.Records[0].Target != 2 {
		t.Fatalf("records=%+v", eff.Records)
	}
	apply(t, s, eff)
	if _, ok := s.Robot(2); ok {
		t.Fatalf("slanderer survived")
	}
	want := math.Pow(1.001, 100)
	if got := s.BuffFactor(world.TeamA); math.Abs(got-want) > 1e-12 {
		t.Fatalf("buff=%v want %v", got, want)
	}
}

func TestExposeWithoutSlandererOnlyChargesCooldown(t *testing.T) {
	s := newWorld(t, tuning.Defaults(), nil,
		world.RobotSpec{Team: world.TeamA, Type: unit.Muckraker, Loc: loc(0, 0), Conviction: 5},
		world.RobotSpec{Team: world.TeamB, Type: unit.Politician, Loc: loc(1, 1), Conviction: 5},
		world.RobotSpec{Team: world.TeamA, Type: unit.Slanderer, Loc: loc(2, 0), Influence: 20},
	)
	for _, target := range []geom.Location{loc(1, 1), loc(2, 0), loc(3, 3)} {
		eff, err := Expose(s, 1, target)
		if err != nil {
			t.Fatalf("expose %v: %v", target, err)
		}
		if len(eff.Records) != 0 || len(eff.Deltas) != 1 {
			t.Fatalf("expose %v: unexpected effect %+v", target, eff)
		}
		if _, ok := eff.Deltas[0].(world.CooldownDelta); !ok {
			t.Fatalf("expose %v: delta %T", target, eff.Deltas[0])
		}
	}
}

func TestDetectSortedWithoutCooldown(t *testing.T) {
	s := newWorld(t, tuning.Defaults(), nil,
		world.RobotSpec{Team: world.TeamA, Type: unit.Muckraker, Loc: loc(5, 5), Conviction: 5},
		world.RobotSpec{Team: world.TeamB, Type: unit.Politician, Loc: loc(5, 7), Conviction: 5},
		world.RobotSpec{Team: world.TeamB, Type: unit.Politician, Loc: loc(4, 5), Conviction: 5},
		world.RobotSpec{Team: world.TeamA, Type: unit.Politician, Loc: loc(6, 5), Conviction: 5},
	)
	eff, err := Detect(s, 1)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	want := []geom.Location{loc(4, 5), loc(6, 5), loc(5, 7)}
	if len(eff.Detected) != len(want) {
		t.Fatalf("detected=%v", eff.Detected)
	}
	for i := range want {
		if eff.Detected[i] != want[i] {
			t.Fatalf("detected=%v want %v", eff.Detected, want)
		}
	}
	if len(eff.Deltas) != 0 || len(eff.Records) != 0 {
		t.Fatalf("detect must not change the world")
	}
	if err := CanDetect(s, 2); !errors.Is(err, ErrWrongType) {
		t.Fatalf("politician detect: %v", err)
	}
}

func TestBuildSpawnsWithNextID(t *testing.T) {
	s := newWorld(t, tuning.Defaults(), nil,
		world.RobotSpec{Team: world.TeamA, Type: unit.EnlightenmentCenter, Loc: loc(5, 5), Influence: 150},
	)
	eff, err := Build(s, 1, unit.Politician, geom.East, 50)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(eff.Records) != 1 || eff.Records[0].Kind != replay.KindSpawnUnit || eff.Records[0].Target != 2 {
		t.Fatalf("records=%+v", eff.Records)
	}
	apply(t, s, eff)
	ec, _ := s.Robot(1)
	if ec.Influence != 100 {
		t.Fatalf("influence=%d", ec.Influence)
	}
	pol, ok := s.Robot(2)
	if !ok || pol.Loc != loc(6, 5) || pol.Conviction != 50 || pol.Team != world.TeamA {
		t.Fatalf("spawned=%+v ok=%v", pol, ok)
	}
	if err := CanBuild(s, 1, unit.Muckraker, geom.West, 1); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestBuildPreconditions(t *testing.T) {
	cells := make([]world.Cell, 100)
	cells[5*10+4] = world.Cell{Swamp: true}
	s := newWorld(t, tuning.Defaults(), cells,
		world.RobotSpec{Team: world.TeamA, Type: unit.EnlightenmentCenter, Loc: loc(5, 5), Influence: 30},
		world.RobotSpec{Team: world.TeamB, Type: unit.Muckraker, Loc: loc(5, 6), Conviction: 1},
	)
	if err := s.PlaceBid(1, 20); err != nil {
		t.Fatalf("bid: %v", err)
	}
	cases := []struct {
		name string
		id   int32
		ty   unit.Type
		dir  geom.Direction
		inf  int
		want error
	}{
		{"not a producer", 2, unit.Muckraker, geom.South, 1, ErrWrongType},
		{"not buildable", 1, unit.EnlightenmentCenter, geom.East, 10, ErrCannotBuild},
		{"under minimum", 1, unit.Politician, geom.East, 5, ErrInsufficientInfluence},
		{"bid reserved", 1, unit.Muckraker, geom.East, 11, ErrInsufficientInfluence},
		{"occupied", 1, unit.Muckraker, geom.North, 5, ErrOccupied},
		{"swamp", 1, unit.Muckraker, geom.West, 5, ErrSwamp},
	}
	for _, tc := range cases {
		if err := CanBuild(s, tc.id, tc.ty, tc.dir, tc.inf); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.want)
		}
	}
	if err := CanBuild(s, 1, unit.Muckraker, geom.East, 10); err != nil {
		t.Fatalf("legal build rejected: %v", err)
	}
}

func TestBidAndFlag(t *testing.T) {
	s := newWorld(t, tuning.Defaults(), nil,
		world.RobotSpec{Team: world.TeamA, Type: unit.EnlightenmentCenter, Loc: loc(5, 5), Influence: 30},
		world.RobotSpec{Team: world.TeamA, Type: unit.Muckraker, Loc: loc(1, 1), Conviction: 1},
	)
	eff, err := Bid(s, 1, 10)
	if err != nil {
		t.Fatalf("bid: %v", err)
	}
	if eff.Records[0].Kind != replay.KindPlaceBid || eff.Records[0].Target != 10 {
		t.Fatalf("records=%+v", eff.Records)
	}
	apply(t, s, eff)
	if err := CanBid(s, 1, 5); !errors.Is(err, ErrAlreadyBid) {
		t.Fatalf("expected ErrAlreadyBid, got %v", err)
	}
	if err := CanBid(s, 2, 1); !errors.Is(err, ErrWrongType) {
		t.Fatalf("expected ErrWrongType, got %v", err)
	}
	if err := CanBid(s, 1, 0); !errors.Is(err, ErrBadArgument) {
		t.Fatalf("expected ErrBadArgument, got %v", err)
	}

	if err := CanSetFlag(s, 2, s.Tuning().FlagMax+1); !errors.Is(err, ErrBadArgument) {
		t.Fatalf("expected ErrBadArgument, got %v", err)
	}
	eff, err = SetFlag(s, 2, 1234)
	if err != nil {
		t.Fatalf("flag: %v", err)
	}
	apply(t, s, eff)
	if r, _ := s.Robot(2); r.Flag != 1234 {
		t.Fatalf("flag=%d", r.Flag)
	}
}

func TestResignAndIndicators(t *testing.T) {
	s := newWorld(t, tuning.Defaults(), nil,
		world.RobotSpec{Team: world.TeamB, Type: unit.Muckraker, Loc: loc(1, 1), Conviction: 1},
	)
	eff, err := Dot(s, 1, loc(3, 3), [3]uint8{255, 0, 0})
	if err != nil {
		t.Fatalf("dot: %v", err)
	}
	apply(t, s, eff)
	if _, err := Line(s, 1, loc(0, 0), loc(10, 0), [3]uint8{}); !errors.Is(err, ErrOffMap) {
		t.Fatalf("expected ErrOffMap, got %v", err)
	}
	eff, err = Resign(s, 1)
	if err != nil {
		t.Fatalf("resign: %v", err)
	}
	apply(t, s, eff)
	if !s.Resigned(world.TeamB) || len(s.Indicators()) != 1 {
		t.Fatalf("resign/indicator state wrong")
	}
}

func TestCenterSpendsAndDefendsWithOnePool(t *testing.T) {
	s := newWorld(t, tuning.Defaults(), nil,
		world.RobotSpec{Team: world.TeamA, Type: unit.EnlightenmentCenter, Loc: loc(5, 5), Influence: 100},
		world.RobotSpec{Team: world.TeamB, Type: unit.Politician, Loc: loc(4, 5), Conviction: 30},
	)
	eff, err := Build(s, 1, unit.Politician, geom.East, 90)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	apply(t, s, eff)
	if ec, _ := s.Robot(1); ec.Influence != 10 || ec.Conviction != 10 {
		t.Fatalf("after build influence=%d conviction=%d", ec.Influence, ec.Conviction)
	}

	// The new politician at (6,5) sits outside the radius of (4,5).
	eff, err = Empower(s, 2)
	if err != nil {
		t.Fatalf("empower: %v", err)
	}
	apply(t, s, eff)
	ec, _ := s.Robot(1)
	if ec.Team != world.TeamB || ec.Conviction != 20 || ec.Influence != 20 {
		t.Fatalf("captured center=%+v", ec)
	}
}

func TestEmpowerDonatesToOwnCenter(t *testing.T) {
	s := newWorld(t, tuning.Defaults(), nil,
		world.RobotSpec{Team: world.TeamA, Type: unit.EnlightenmentCenter, Loc: loc(5, 5), Influence: 100},
		world.RobotSpec{Team: world.TeamA, Type: unit.Politician, Loc: loc(5, 6), Conviction: 40},
	)
	eff, err := Empower(s, 2)
	if err != nil {
		t.Fatalf("empower: %v", err)
	}
	apply(t, s, eff)
	ec, _ := s.Robot(1)
	if ec.Influence != 140 || ec.Conviction != 140 {
		t.Fatalf("center influence=%d conviction=%d want 140", ec.Influence, ec.Conviction)
	}
	if got := Spendable(s, ec); got != 140 {
		t.Fatalf("spendable=%d want 140", got)
	}
}

func TestEmpowerSaturatesStackedBuffs(t *testing.T) {
	s := newWorld(t, tuning.Defaults(), nil,
		world.RobotSpec{Team: world.TeamA, Type: unit.Politician, Loc: loc(5, 5), Conviction: 10},
		world.RobotSpec{Team: world.TeamB, Type: unit.Muckraker, Loc: loc(5, 6), Conviction: 20},
	)
	for i := 0; i < 2; i++ {
		if err := s.AddBuff(world.TeamA, 1e300, 5); err != nil {
			t.Fatalf("buff: %v", err)
		}
	}
	if f := s.BuffFactor(world.TeamA); !math.IsInf(f, 1) {
		t.Fatalf("buff factor=%v, expected overflow", f)
	}
	eff, err := Empower(s, 1)
	if err != nil {
		t.Fatalf("empower: %v", err)
	}
	apply(t, s, eff)
	r, _ := s.Robot(2)
	if r.Team != world.TeamA || r.Conviction != math.MaxInt32-20 {
		t.Fatalf("target after empower=%+v", r)
	}
}

func TestBuffedConvictionBounds(t *testing.T) {
	cases := []struct {
		conviction int
		buff       float64
		want       int
	}{
		{10, 1.5, 15},
		{10, math.Inf(1), math.MaxInt32},
		{0, math.Inf(1), 0},
		{7, 1, 7},
	}
	for _, c := range cases {
		if got := buffedConviction(c.conviction, c.buff); got != c.want {
			t.Fatalf("buffedConviction(%d, %v)=%d want %d", c.conviction, c.buff, got, c.want)
		}
	}
}
