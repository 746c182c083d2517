package main

import (
	"battlecode.ai/internal/sim/engine"
	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/mapgen"
	"battlecode.ai/internal/sim/unit"
)

// demoPlayers is the built-in strategy used when no bots are connected.
// Maps are point symmetric, so units march toward the mirror image of the
// place they were built.
func demoPlayers(empowerRadiusSq int) engine.Factory {
	return func(id int32, ty unit.Type) engine.Player {
		return newDemoPlayer(id, ty, empowerRadiusSq)
	}
}

func newDemoPlayer(id int32, ty unit.Type, empowerRadiusSq int) engine.Player {
	var (
		turns  int
		target geom.Location
		homed  bool
	)
	return engine.PlayerFunc(func(c *engine.Controller) error {
		turns++
		me := c.Location()
		if !homed {
			x, y := mapgen.Mirror(me.X, me.Y, c.MapWidth(), c.MapHeight())
			target = geom.Location{X: x, Y: y}
			homed = true
		}
		enemy := c.Team().Opponent()

		switch ty {
		case unit.EnlightenmentCenter:
			return centerTurn(c, turns)
		case unit.Politician:
			near := c.SenseNearbyRobots(empowerRadiusSq, enemy)
			if len(near) >= 2 || (len(near) == 1 && near[0].Type == unit.EnlightenmentCenter) {
				if c.CanEmpower() == nil {
					return c.Empower()
				}
			}
		case unit.Muckraker:
			for _, r := range c.SenseNearbyRobots(-1, enemy) {
				if r.Type == unit.Slanderer && c.CanExpose(r.Loc) == nil {
					return c.Expose(r.Loc)
				}
			}
			if turns%10 == 0 {
				_, _ = c.Detect()
			}
		case unit.Slanderer:
			// Slanderers hug home; flee anything hostile.
			for _, r := range c.SenseNearbyRobots(-1, enemy) {
				if r.Type == unit.Muckraker {
					return step(c, geom.DirectionTo(r.Loc, me))
				}
			}
			return nil
		}
		_ = c.SetFlag(int(id)%1000*1000 + turns%1000)
		return step(c, geom.DirectionTo(me, target))
	})
}

func centerTurn(c *engine.Controller, turns int) error {
	inf := c.Influence()
	if bid := inf / 20; bid > 0 && c.CanBid(bid) == nil {
		_ = c.Bid(bid)
	}
	var (
		kind = unit.Muckraker
		need = 1
	)
	switch turns % 4 {
	case 1:
		kind, need = unit.Slanderer, inf/3
	case 3:
		kind, need = unit.Politician, inf/4
	}
	if need < 1 {
		return nil
	}
	for _, d := range geom.Directions() {
		if c.CanBuild(kind, d, need) == nil {
			_, err := c.Build(kind, d, need)
			return err
		}
	}
	return nil
}

// step moves in dir or the nearest open direction clockwise of it.
func step(c *engine.Controller, dir geom.Direction) error {
	if dir == geom.Center {
		return nil
	}
	for i := 0; i < 8; i++ {
		if c.CanMove(dir) == nil {
			return c.Move(dir)
		}
		dir = dir.RotateRight()
	}
	return nil
}
