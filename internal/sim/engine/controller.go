package engine

import (
	"context"
	"sort"

	"battlecode.ai/internal/sim/ability"
	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/unit"
	"battlecode.ai/internal/sim/world"
)

// Controller is one robot's view of the world for one turn. Every call is
// charged against the turn's compute budget; once the budget or the turn
// deadline is spent, queries return zero values, commands return
// ErrExhausted and the robot is destroyed when the turn ends.
type Controller struct {
	e   *Engine
	id  int32
	ctx context.Context

	budget    int
	used      int
	exhausted bool
	closed    bool
}

func (c *Controller) charge(cost int) bool {
	if c.closed || c.exhausted {
		return false
	}
	c.used += cost
	c.e.counter += int64(cost)
	if c.used > c.budget || c.ctx.Err() != nil {
		c.exhausted = true
		return false
	}
	return true
}

func (c *Controller) costs() (query, sense, command int) {
	k := c.e.w.Tuning().Costs
	return k.Query, k.Sense, k.Command
}

func (c *Controller) query() bool {
	q, _, _ := c.costs()
	return c.charge(q)
}

func (c *Controller) sense() bool {
	_, s, _ := c.costs()
	return c.charge(s)
}

func (c *Controller) command() error {
	if c.closed {
		return ErrTurnOver
	}
	_, _, k := c.costs()
	if !c.charge(k) {
		return ErrExhausted
	}
	return nil
}

func (c *Controller) self() world.Robot {
	r, _ := c.e.w.Robot(c.id)
	return r
}

// Exhausted reports whether the turn has run out of budget or time.
func (c *Controller) Exhausted() bool { return c.exhausted }

// BudgetLeft is the compute remaining in this turn.
func (c *Controller) BudgetLeft() int {
	if left := c.budget - c.used; left > 0 {
		return left
	}
	return 0
}

// ComputeCounter is a monotonically increasing engine-wide counter of
// charged compute. Profilers use it as their clock. It is free.
func (c *Controller) ComputeCounter() int64 { return c.e.counter }

// Global queries.

func (c *Controller) Round() int {
	c.query()
	return c.e.w.Round()
}

func (c *Controller) MapWidth() int {
	c.query()
	return c.e.w.Width()
}

func (c *Controller) MapHeight() int {
	c.query()
	return c.e.w.Height()
}

func (c *Controller) TeamVotes(t world.Team) int {
	c.query()
	return c.e.w.TeamVotes(t)
}

func (c *Controller) RobotCount(t world.Team) int {
	c.query()
	return c.e.w.RobotCount(t)
}

// Self queries.

func (c *Controller) ID() int32 { return c.id }

func (c *Controller) Team() world.Team {
	c.query()
	return c.self().Team
}

func (c *Controller) Type() unit.Type {
	c.query()
	return c.self().Type
}

func (c *Controller) Location() geom.Location {
	c.query()
	return c.self().Loc
}

func (c *Controller) Influence() int {
	c.query()
	return c.self().Influence
}

func (c *Controller) Conviction() int {
	c.query()
	return c.self().Conviction
}

func (c *Controller) Cooldown() float64 {
	c.query()
	return c.self().Cooldown
}

func (c *Controller) Flag() int {
	c.query()
	return c.self().Flag
}

func (c *Controller) IsReady() bool {
	c.query()
	return c.self().Ready()
}

func (c *Controller) SensorRadiusSquared() int {
	c.query()
	return c.e.w.SensorRadiusSquared(c.id)
}

func (c *Controller) DetectionRadiusSquared() int {
	c.query()
	return c.e.w.DetectionRadiusSquared(c.id)
}

// Sensing queries. Anything outside the current sensor radius is reported
// as ability.ErrOutOfRange.

func (c *Controller) inSensor(loc geom.Location) bool {
	r := c.self()
	return geom.WithinRadius(c.e.w.SensorRadiusSquared(c.id), geom.DistanceSquared(r.Loc, loc))
}

func (c *Controller) CanSenseLocation(loc geom.Location) bool {
	if !c.sense() {
		return false
	}
	return c.inSensor(loc)
}

func (c *Controller) senseCell(loc geom.Location) error {
	if !c.sense() {
		return ErrExhausted
	}
	if !c.inSensor(loc) {
		return ability.ErrOutOfRange
	}
	return nil
}

// OnTheMap reports whether a sensed location is inside the map.
func (c *Controller) OnTheMap(loc geom.Location) (bool, error) {
	if err := c.senseCell(loc); err != nil {
		return false, err
	}
	return c.e.w.OnMap(loc), nil
}

func (c *Controller) IsLocationOccupied(loc geom.Location) (bool, error) {
	if err := c.senseCell(loc); err != nil {
		return false, err
	}
	return c.e.w.Occupied(loc), nil
}

func (c *Controller) IsSwamp(loc geom.Location) (bool, error) {
	if err := c.senseCell(loc); err != nil {
		return false, err
	}
	if !c.e.w.OnMap(loc) {
		return false, ability.ErrOffMap
	}
	return c.e.w.IsSwamp(loc), nil
}

func (c *Controller) SensePollution(loc geom.Location) (int, error) {
	if err := c.senseCell(loc); err != nil {
		return 0, err
	}
	if !c.e.w.OnMap(loc) {
		return 0, ability.ErrOffMap
	}
	return c.e.w.Pollution(loc), nil
}

func (c *Controller) SenseRobotAtLocation(loc geom.Location) (world.RobotInfo, error) {
	if err := c.senseCell(loc); err != nil {
		return world.RobotInfo{}, err
	}
	r, ok := c.e.w.RobotAt(loc)
	if !ok {
		return world.RobotInfo{}, ability.ErrNoRobot
	}
	return r.Info(), nil
}

func (c *Controller) sensedRobot(id int32) (world.Robot, error) {
	if !c.sense() {
		return world.Robot{}, ErrExhausted
	}
	r, ok := c.e.w.Robot(id)
	if !ok || !c.inSensor(r.Loc) {
		return world.Robot{}, ability.ErrNoRobot
	}
	return r, nil
}

func (c *Controller) CanSenseRobot(id int32) bool {
	_, err := c.sensedRobot(id)
	return err == nil
}

func (c *Controller) SenseRobot(id int32) (world.RobotInfo, error) {
	r, err := c.sensedRobot(id)
	if err != nil {
		return world.RobotInfo{}, err
	}
	return r.Info(), nil
}

// SenseFlag reads the flag of a sensed robot. A robot always reads its own.
func (c *Controller) SenseFlag(id int32) (int, error) {
	if id == c.id {
		c.query()
		return c.self().Flag, nil
	}
	r, err := c.sensedRobot(id)
	if err != nil {
		return 0, err
	}
	return r.Flag, nil
}

// SenseNearbyRobots lists sensed robots within radiusSq of the robot (a
// negative radius means the full sensor radius), filtered by team
// (world.AnyTeam for all), in ascending ID order.
func (c *Controller) SenseNearbyRobots(radiusSq int, team world.Team) []world.RobotInfo {
	out := c.nearby(c.self().Loc, radiusSq, team)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SenseNearbyRobotsAround is SenseNearbyRobots around an explicit center,
// ordered by ascending distance from it (ties by ID).
func (c *Controller) SenseNearbyRobotsAround(center geom.Location, radiusSq int, team world.Team) []world.RobotInfo {
	return c.nearby(center, radiusSq, team)
}

func (c *Controller) nearby(center geom.Location, radiusSq int, team world.Team) []world.RobotInfo {
	if !c.sense() {
		return nil
	}
	sensor := c.e.w.SensorRadiusSquared(c.id)
	if radiusSq < 0 {
		radiusSq = sensor
	}
	me := c.self()
	var out []world.RobotInfo
	for _, r := range c.e.w.RobotsWithin(center, radiusSq) {
		if r.ID == c.id || !geom.WithinRadius(sensor, geom.DistanceSquared(me.Loc, r.Loc)) {
			continue
		}
		if team != world.AnyTeam && r.Team != team {
			continue
		}
		out = append(out, r.Info())
	}
	return out
}

// Commands. Each Can* performs the same check as its command without side
// effects; both are charged.

func (c *Controller) check(fn func() error) error {
	if err := c.command(); err != nil {
		return err
	}
	return fn()
}

func (c *Controller) do(fn func() (ability.Effect, error)) (ability.Effect, error) {
	if err := c.command(); err != nil {
		return ability.Effect{}, err
	}
	eff, err := fn()
	if err != nil {
		return ability.Effect{}, err
	}
	if err := c.e.commit(eff); err != nil {
		return ability.Effect{}, err
	}
	return eff, nil
}

func (c *Controller) CanMove(dir geom.Direction) error {
	return c.check(func() error { return ability.CanMove(c.e.w, c.id, dir) })
}

func (c *Controller) Move(dir geom.Direction) error {
	_, err := c.do(func() (ability.Effect, error) { return ability.Move(c.e.w, c.id, dir) })
	return err
}

func (c *Controller) CanBuild(ty unit.Type, dir geom.Direction, influence int) error {
	return c.check(func() error { return ability.CanBuild(c.e.w, c.id, ty, dir, influence) })
}

// Build returns the new robot's ID.
func (c *Controller) Build(ty unit.Type, dir geom.Direction, influence int) (int32, error) {
	eff, err := c.do(func() (ability.Effect, error) { return ability.Build(c.e.w, c.id, ty, dir, influence) })
	if err != nil {
		return 0, err
	}
	return int32(eff.Records[0].Target), nil
}

func (c *Controller) CanEmpower() error {
	return c.check(func() error { return ability.CanEmpower(c.e.w, c.id) })
}

func (c *Controller) Empower() error {
	_, err := c.do(func() (ability.Effect, error) { return ability.Empower(c.e.w, c.id) })
	return err
}

func (c *Controller) CanExpose(loc geom.Location) error {
	return c.check(func() error { return ability.CanExpose(c.e.w, c.id, loc) })
}

func (c *Controller) Expose(loc geom.Location) error {
	_, err := c.do(func() (ability.Effect, error) { return ability.Expose(c.e.w, c.id, loc) })
	return err
}

func (c *Controller) CanDetect() error {
	return c.check(func() error { return ability.CanDetect(c.e.w, c.id) })
}

// Detect returns occupied locations within the detection radius, nearest
// first, without identities.
func (c *Controller) Detect() ([]geom.Location, error) {
	eff, err := c.do(func() (ability.Effect, error) { return ability.Detect(c.e.w, c.id) })
	return eff.Detected, err
}

func (c *Controller) CanBid(amount int) error {
	return c.check(func() error { return ability.CanBid(c.e.w, c.id, amount) })
}

func (c *Controller) Bid(amount int) error {
	_, err := c.do(func() (ability.Effect, error) { return ability.Bid(c.e.w, c.id, amount) })
	return err
}

func (c *Controller) CanSetFlag(value int) error {
	return c.check(func() error { return ability.CanSetFlag(c.e.w, c.id, value) })
}

func (c *Controller) SetFlag(value int) error {
	_, err := c.do(func() (ability.Effect, error) { return ability.SetFlag(c.e.w, c.id, value) })
	return err
}

// Resign concedes the match for the robot's team. The match ends after this
// turn.
func (c *Controller) Resign() error {
	_, err := c.do(func() (ability.Effect, error) { return ability.Resign(c.e.w, c.id) })
	return err
}

func (c *Controller) SetIndicatorDot(loc geom.Location, rgb [3]uint8) error {
	_, err := c.do(func() (ability.Effect, error) { return ability.Dot(c.e.w, c.id, loc, rgb) })
	return err
}

func (c *Controller) SetIndicatorLine(from, to geom.Location, rgb [3]uint8) error {
	_, err := c.do(func() (ability.Effect, error) { return ability.Line(c.e.w, c.id, from, to, rgb) })
	return err
}
