package world

import (
	"errors"
	"testing"

	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/tuning"
	"battlecode.ai/internal/sim/unit"
)

func loc(x, y int) geom.Location { return geom.Location{X: x, Y: y} }

func newTestState(t *testing.T, robots ...RobotSpec) *State {
	t.Helper()
	s, err := New(Config{Tuning: tuning.Defaults()}, MapSpec{Seed: 1, Width: 8, Height: 8, Robots: robots})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s
}

func twoCenters() []RobotSpec {
	return []RobotSpec{
		{Team: TeamA, Type: unit.EnlightenmentCenter, Loc: loc(1, 1), Influence: 150},
		{Team: TeamB, Type: unit.EnlightenmentCenter, Loc: loc(6, 6), Influence: 150},
	}
}

func TestNewAssignsSequentialIDs(t *testing.T) {
	s := newTestState(t, append(twoCenters(), RobotSpec{Team: TeamA, Type: unit.Muckraker, Loc: loc(2, 2), Influence: 10})...)
	if got := s.LiveIDs(); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("ids=%v", got)
	}
	ec, _ := s.Robot(1)
	if ec.Conviction != 150 {
		t.Fatalf("ec conviction=%d", ec.Conviction)
	}
	mk, _ := s.Robot(3)
	if mk.Conviction != 7 {
		t.Fatalf("muckraker conviction=%d want 7", mk.Conviction)
	}
	if s.NextRobotID() != 4 || s.Round() != 1 {
		t.Fatalf("next=%d round=%d", s.NextRobotID(), s.Round())
	}
	if s.RobotCount(TeamA) != 2 || s.RobotCount(TeamB) != 1 {
		t.Fatalf("counts %d/%d", s.RobotCount(TeamA), s.RobotCount(TeamB))
	}
}

func TestNewRejectsOverlappingRobots(t *testing.T) {
	_, err := New(Config{Tuning: tuning.Defaults()}, MapSpec{Width: 4, Height: 4, Robots: []RobotSpec{
		{Team: TeamA, Type: unit.EnlightenmentCenter, Loc: loc(1, 1), Influence: 1},
		{Team: TeamB, Type: unit.EnlightenmentCenter, Loc: loc(1, 1), Influence: 1},
	}})
	if !errors.Is(err, ErrOccupied) {
		t.Fatalf("expected ErrOccupied, got %v", err)
	}
}

func TestMutationsKeepBijection(t *testing.T) {
	s := newTestState(t, twoCenters()...)

	id, err := s.PlaceRobot(Robot{ID: s.NextRobotID(), Team: TeamA, Type: unit.Politician, Loc: loc(2, 1), Conviction: 20})
	if err != nil || id != 3 {
		t.Fatalf("place: id=%d err=%v", id, err)
	}
	if _, err := s.PlaceRobot(Robot{ID: 9, Team: TeamA, Type: unit.Politician, Loc: loc(3, 3)}); !errors.Is(err, ErrIDMissync) {
		t.Fatalf("expected ErrIDMissync, got %v", err)
	}
	if err := s.MoveRobot(id, loc(1, 1)); !errors.Is(err, ErrOccupied) {
		t.Fatalf("expected ErrOccupied, got %v", err)
	}
	if err := s.MoveRobot(id, loc(8, 0)); !errors.Is(err, ErrOffMap) {
		t.Fatalf("expected ErrOffMap, got %v", err)
	}
	if err := s.MoveRobot(id, loc(3, 2)); err != nil {
		t.Fatalf("move: %v", err)
	}
	if s.Occupied(loc(2, 1)) || !s.Occupied(loc(3, 2)) {
		t.Fatalf("occupancy not updated")
	}
	if err := s.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	if err := s.RemoveRobot(id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.RemoveRobot(id); !errors.Is(err, ErrNoRobot) {
		t.Fatalf("expected ErrNoRobot, got %v", err)
	}
	if s.NextRobotID() != 4 {
		t.Fatalf("ids must never be reused, next=%d", s.NextRobotID())
	}
	if err := s.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestCenterInfluenceIsConviction(t *testing.T) {
	s := newTestState(t,
		RobotSpec{Team: TeamA, Type: unit.EnlightenmentCenter, Loc: loc(1, 1), Influence: 100, Conviction: 7},
		RobotSpec{Team: TeamB, Type: unit.EnlightenmentCenter, Loc: loc(6, 6), Conviction: 40},
		RobotSpec{Team: TeamA, Type: unit.Politician, Loc: loc(3, 3), Influence: 20, Conviction: 5},
	)
	check := func(step string, id int32, want int) {
		t.Helper()
		r, _ := s.Robot(id)
		if r.Influence != want || r.Conviction != want {
			t.Fatalf("%s: robot %d influence=%d conviction=%d want %d", step, id, r.Influence, r.Conviction, want)
		}
	}
	check("placed", 1, 100)
	check("placed from conviction", 2, 40)

	if err := s.AdjustInfluence(1, -90); err != nil {
		t.Fatalf("spend: %v", err)
	}
	check("spend", 1, 10)
	if err := s.AdjustConviction(1, 25); err != nil {
		t.Fatalf("donate: %v", err)
	}
	check("donate", 1, 35)
	if err := s.ReassignTeam(2, TeamA, 12); err != nil {
		t.Fatalf("flip: %v", err)
	}
	check("flip", 2, 12)

	// Units keep the two apart.
	if err := s.AdjustConviction(3, 4); err != nil {
		t.Fatalf("unit: %v", err)
	}
	if r, _ := s.Robot(3); r.Influence != 20 || r.Conviction != 9 {
		t.Fatalf("politician influence=%d conviction=%d", r.Influence, r.Conviction)
	}
}

func TestDecayCooldownsFloorsAtZero(t *testing.T) {
	s := newTestState(t, twoCenters()...)
	_ = s.AddCooldown(1, 2.5)
	_ = s.AddCooldown(2, 0.4)
	s.DecayCooldowns()
	a, _ := s.Robot(1)
	b, _ := s.Robot(2)
	if a.Cooldown != 1.5 || b.Cooldown != 0 {
		t.Fatalf("cooldowns %v %v", a.Cooldown, b.Cooldown)
	}
	if a.Ready() || !b.Ready() {
		t.Fatalf("ready flags wrong")
	}
}

func TestAuctionTieBreakAndCharges(t *testing.T) {
	s := newTestState(t, append(twoCenters(), RobotSpec{Team: TeamB, Type: unit.EnlightenmentCenter, Loc: loc(6, 1), Influence: 100})...)
	for id, amt := range map[int32]int{1: 10, 2: 10, 3: 7} {
		if err := s.PlaceBid(id, amt); err != nil {
			t.Fatalf("bid %d: %v", id, err)
		}
	}
	if err := s.PlaceBid(1, 3); err == nil {
		t.Fatalf("second bid in a round must fail")
	}
	res := s.ResolveAuction()
	if res.Winner != TeamA || res.WinnerID != 1 || res.WinningBid != 10 {
		t.Fatalf("unexpected result %+v", res)
	}
	if s.TeamVotes(TeamA) != 1 || s.TeamVotes(TeamB) != 0 {
		t.Fatalf("votes %d/%d", s.TeamVotes(TeamA), s.TeamVotes(TeamB))
	}
	// Winner pays in full, losers pay half rounded up.
	want := map[int32]int{1: 140, 2: 145, 3: 96}
	for id, inf := range want {
		r, _ := s.Robot(id)
		if r.Influence != inf || r.Conviction != inf {
			t.Fatalf("robot %d influence=%d conviction=%d want %d", id, r.Influence, r.Conviction, inf)
		}
	}
	if s.HasBid(1) {
		t.Fatalf("bids must clear after resolution")
	}
	if res := s.ResolveAuction(); res.Winner != AnyTeam {
		t.Fatalf("empty auction winner=%v", res.Winner)
	}
}

func TestBuffsExpire(t *testing.T) {
	s := newTestState(t, twoCenters()...)
	if err := s.AddBuff(TeamA, 2, 2); err != nil {
		t.Fatalf("buff: %v", err)
	}
	if f := s.BuffFactor(TeamA); f != 2 {
		t.Fatalf("factor=%v", f)
	}
	s.AdvanceRound()
	s.ExpireBuffs()
	if f := s.BuffFactor(TeamA); f != 2 {
		t.Fatalf("round 2 factor=%v", f)
	}
	s.AdvanceRound()
	s.ExpireBuffs()
	if f := s.BuffFactor(TeamA); f != 1 {
		t.Fatalf("expired factor=%v", f)
	}
	if f := s.BuffFactor(TeamB); f != 1 {
		t.Fatalf("team B factor=%v", f)
	}
}

func TestDeferredDestruction(t *testing.T) {
	s := newTestState(t, append(twoCenters(), RobotSpec{Team: TeamA, Type: unit.Politician, Loc: loc(2, 2), Influence: 20})...)
	if err := s.MarkEmpowered(3); err != nil {
		t.Fatalf("mark: %v", err)
	}
	_ = s.DeferDestroy(3)
	if got := s.Deferred(); len(got) != 1 {
		t.Fatalf("deferred=%v", got)
	}
	if r, _ := s.Robot(3); !r.Empowered {
		t.Fatalf("empowered flag not set")
	}
	removed := s.FlushDeferred()
	if len(removed) != 1 || removed[0] != 3 {
		t.Fatalf("removed=%v", removed)
	}
	if _, ok := s.Robot(3); ok {
		t.Fatalf("robot survived flush")
	}
}

func TestApplyRoutesDeltas(t *testing.T) {
	s := newTestState(t, twoCenters()...)
	deltas := []Delta{
		PlaceDelta{Robot: Robot{ID: 3, Team: TeamA, Type: unit.Muckraker, Loc: loc(2, 1), Conviction: 7}},
		InfluenceDelta{ID: 1, Amount: -10},
		MoveDelta{ID: 3, To: loc(3, 1)},
		ConvictionDelta{ID: 2, Amount: -5},
		TeamDelta{ID: 3, Team: TeamB, Conviction: 2},
		FlagDelta{ID: 3, Value: 44},
		CooldownDelta{ID: 3, Amount: 1.5},
		IndicatorDelta{Indicator: Indicator{Robot: 3, To: loc(1, 1)}},
		ResignDelta{Team: TeamB},
	}
	for _, d := range deltas {
		if err := s.Apply(d); err != nil {
			t.Fatalf("apply %T: %v", d, err)
		}
	}
	r, _ := s.Robot(3)
	if r.Team != TeamB || r.Conviction != 2 || r.Flag != 44 || r.Loc != loc(3, 1) || r.Cooldown != 1.5 {
		t.Fatalf("unexpected robot %+v", r)
	}
	if ec, _ := s.Robot(1); ec.Influence != 140 {
		t.Fatalf("ec influence=%d", ec.Influence)
	}
	if !s.Resigned(TeamB) || len(s.Indicators()) != 1 {
		t.Fatalf("resign/indicator not applied")
	}
	if err := s.Apply(MoveDelta{ID: 99, To: loc(0, 0)}); !errors.Is(err, ErrNoRobot) {
		t.Fatalf("expected ErrNoRobot, got %v", err)
	}
	s.ClearIndicators()
	if len(s.Indicators()) != 0 {
		t.Fatalf("indicators not cleared")
	}
}

func TestDigestTracksState(t *testing.T) {
	a := newTestState(t, twoCenters()...)
	b := newTestState(t, twoCenters()...)
	if a.Digest() != b.Digest() {
		t.Fatalf("identical worlds must share a digest")
	}
	_ = a.SetFlag(1, 5)
	if a.Digest() == b.Digest() {
		t.Fatalf("flag change must alter digest")
	}
	_ = b.SetFlag(1, 5)
	if a.Digest() != b.Digest() {
		t.Fatalf("digests diverged after identical changes")
	}
}

func TestSnapshotRoundTripKeepsDigest(t *testing.T) {
	s := newTestState(t, append(twoCenters(), RobotSpec{Team: TeamA, Type: unit.Slanderer, Loc: loc(2, 2), Influence: 30})...)
	_ = s.PlaceBid(1, 5)
	_ = s.AddBuff(TeamB, 1.2, 10)
	_ = s.AddCooldown(3, 1.5)
	_ = s.DeferDestroy(3)
	s.AdvanceRound()

	snap := s.ExportSnapshot("m")
	back, err := ImportSnapshot(Config{Tuning: tuning.Defaults()}, snap)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if back.Digest() != s.Digest() {
		t.Fatalf("digest changed across snapshot")
	}

	other := tuning.Defaults()
	other.MaxRounds = 10
	if _, err := ImportSnapshot(Config{Tuning: other}, snap); err == nil {
		t.Fatalf("expected tuning mismatch")
	}
}

func TestSensorRadiusShrinksWithPollution(t *testing.T) {
	cells := make([]Cell, 16)
	cells[1*4+1] = Cell{Pollution: 10}
	s, err := New(Config{Tuning: tuning.Defaults()}, MapSpec{Width: 4, Height: 4, Cells: cells, Robots: []RobotSpec{
		{Team: TeamA, Type: unit.Politician, Loc: loc(1, 1), Influence: 10},
		{Team: TeamB, Type: unit.Politician, Loc: loc(3, 3), Influence: 10},
	}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := s.SensorRadiusSquared(1); got != 15 {
		t.Fatalf("polluted radius=%d want 15", got)
	}
	if got := s.SensorRadiusSquared(2); got != 25 {
		t.Fatalf("clean radius=%d want 25", got)
	}
}

func TestRobotsWithinSortedByDistance(t *testing.T) {
	s := newTestState(t,
		RobotSpec{Team: TeamA, Type: unit.Muckraker, Loc: loc(4, 4), Influence: 1},
		RobotSpec{Team: TeamB, Type: unit.Muckraker, Loc: loc(1, 0), Influence: 1},
		RobotSpec{Team: TeamA, Type: unit.Muckraker, Loc: loc(0, 1), Influence: 1},
	)
	got := s.RobotsWithin(loc(0, 0), 2)
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestNoiseFieldDeterministicAndBounded(t *testing.T) {
	p := tuning.Defaults().Pollution
	a := NewNoiseField(42, p)
	b := NewNoiseField(42, p)
	for x := 0; x < 10; x++ {
		for round := 1; round < 400; round += 37 {
			l := loc(x, x*2)
			va, vb := a.Level(2, l, round), b.Level(2, l, round)
			if va != vb {
				t.Fatalf("same seed diverged at %v round %d", l, round)
			}
			if va < 2 || va > 2+p.DriftAmplitude {
				t.Fatalf("level %d outside [2,%d]", va, 2+p.DriftAmplitude)
			}
		}
	}
	if (StaticField{}).Level(3, loc(0, 0), 99) != 3 {
		t.Fatalf("static field must return base")
	}
}
