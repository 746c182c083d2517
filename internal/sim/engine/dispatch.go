package engine

import (
	"errors"
	"fmt"

	"battlecode.ai/internal/protocol"
	"battlecode.ai/internal/sim/ability"
	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/unit"
	"battlecode.ai/internal/sim/world"
)

// Do runs one wire command through the Controller. Remote executors use it
// so that every call is validated and charged exactly like an in-process
// one.
func (c *Controller) Do(cmd protocol.Command) protocol.Result {
	res, err := c.dispatch(cmd)
	if err != nil {
		return resultErr(err)
	}
	res.OK = true
	return res
}

func resultErr(err error) protocol.Result {
	switch {
	case errors.Is(err, ErrExhausted):
		return protocol.Fail(protocol.ErrExhausted, err.Error())
	case errors.Is(err, ErrTurnOver):
		return protocol.Fail(protocol.ErrTurnOver, err.Error())
	}
	var ae *ability.Error
	if errors.As(err, &ae) {
		return protocol.Fail(ae.Code, ae.Error())
	}
	return protocol.Fail(protocol.ErrInternal, err.Error())
}

func badRequest(format string, args ...any) error {
	return &ability.Error{Code: protocol.ErrBadRequest, Reason: fmt.Sprintf(format, args...)}
}

func locArg(p *[2]int, name string) (geom.Location, error) {
	if p == nil {
		return geom.Location{}, badRequest("missing %s", name)
	}
	return geom.Location{X: p[0], Y: p[1]}, nil
}

func dirArg(s string) (geom.Direction, error) {
	d, ok := geom.ParseDirection(s)
	if !ok {
		return geom.Center, badRequest("bad direction %q", s)
	}
	return d, nil
}

func (c *Controller) dispatch(cmd protocol.Command) (protocol.Result, error) {
	var res protocol.Result
	switch cmd.Op {
	case protocol.OpGame:
		g := c.GameInfo()
		res.Game = &g
	case protocol.OpSelf:
		s := c.SelfInfo()
		res.Self = &s
	case protocol.OpCounter:
		res.Value = c.ComputeCounter()
	case protocol.OpSense:
		team, ok := world.ParseTeam(cmd.Team)
		if !ok {
			return res, badRequest("bad team %q", cmd.Team)
		}
		radius := cmd.RadiusSq
		if radius == 0 {
			radius = -1
		}
		var infos []world.RobotInfo
		if cmd.Loc != nil {
			infos = c.SenseNearbyRobotsAround(geom.Location{X: cmd.Loc[0], Y: cmd.Loc[1]}, radius, team)
		} else {
			infos = c.SenseNearbyRobots(radius, team)
		}
		if c.exhausted {
			return res, ErrExhausted
		}
		res.Robots = RobotInfos(infos)
	case protocol.OpRobot:
		info, err := c.SenseRobot(cmd.ID)
		if err != nil {
			return res, err
		}
		ri := RobotInfoWire(info)
		res.Robot = &ri
	case protocol.OpRobotAt:
		loc, err := locArg(cmd.Loc, "loc")
		if err != nil {
			return res, err
		}
		info, err := c.SenseRobotAtLocation(loc)
		if err != nil {
			return res, err
		}
		ri := RobotInfoWire(info)
		res.Robot = &ri
	case protocol.OpOccupied, protocol.OpOnMap, protocol.OpSwamp:
		loc, err := locArg(cmd.Loc, "loc")
		if err != nil {
			return res, err
		}
		var b bool
		switch cmd.Op {
		case protocol.OpOccupied:
			b, err = c.IsLocationOccupied(loc)
		case protocol.OpOnMap:
			b, err = c.OnTheMap(loc)
		default:
			b, err = c.IsSwamp(loc)
		}
		if err != nil {
			return res, err
		}
		res.Bool = b
	case protocol.OpPollution:
		loc, err := locArg(cmd.Loc, "loc")
		if err != nil {
			return res, err
		}
		v, err := c.SensePollution(loc)
		if err != nil {
			return res, err
		}
		res.Value = int64(v)
	case protocol.OpFlag:
		v, err := c.SenseFlag(cmd.ID)
		if err != nil {
			return res, err
		}
		res.Value = int64(v)
	default:
		return c.dispatchAction(cmd)
	}
	return res, nil
}

func (c *Controller) dispatchAction(cmd protocol.Command) (protocol.Result, error) {
	var res protocol.Result
	var err error
	switch cmd.Op {
	case protocol.OpMove:
		d, derr := dirArg(cmd.Dir)
		if derr != nil {
			return res, derr
		}
		if cmd.Check {
			err = c.CanMove(d)
		} else {
			err = c.Move(d)
		}
	case protocol.OpBuild:
		d, derr := dirArg(cmd.Dir)
		if derr != nil {
			return res, derr
		}
		ty, ok := unit.ParseType(cmd.UnitType)
		if !ok {
			return res, badRequest("bad unit type %q", cmd.UnitType)
		}
		if cmd.Check {
			err = c.CanBuild(ty, d, cmd.Influence)
		} else {
			var id int32
			id, err = c.Build(ty, d, cmd.Influence)
			res.Value = int64(id)
		}
	case protocol.OpEmpower:
		if cmd.Check {
			err = c.CanEmpower()
		} else {
			err = c.Empower()
		}
	case protocol.OpExpose:
		loc, lerr := locArg(cmd.Loc, "loc")
		if lerr != nil {
			return res, lerr
		}
		if cmd.Check {
			err = c.CanExpose(loc)
		} else {
			err = c.Expose(loc)
		}
	case protocol.OpDetect:
		if cmd.Check {
			err = c.CanDetect()
		} else {
			var locs []geom.Location
			locs, err = c.Detect()
			for _, l := range locs {
				res.Locations = append(res.Locations, l.ToArray())
			}
		}
	case protocol.OpBid:
		if cmd.Check {
			err = c.CanBid(cmd.Amount)
		} else {
			err = c.Bid(cmd.Amount)
		}
	case protocol.OpSetFlag:
		if cmd.Check {
			err = c.CanSetFlag(cmd.Value)
		} else {
			err = c.SetFlag(cmd.Value)
		}
	case protocol.OpResign:
		err = c.Resign()
	case protocol.OpDot:
		loc, lerr := locArg(cmd.Loc, "loc")
		if lerr != nil {
			return res, lerr
		}
		err = c.SetIndicatorDot(loc, cmd.RGB)
	case protocol.OpLine:
		from, lerr := locArg(cmd.Loc, "loc")
		if lerr != nil {
			return res, lerr
		}
		to, lerr := locArg(cmd.To, "to")
		if lerr != nil {
			return res, lerr
		}
		err = c.SetIndicatorLine(from, to, cmd.RGB)
	default:
		return res, badRequest("unknown op %q", cmd.Op)
	}
	return res, err
}

// GameInfo is the global query bundle sent with every TURN.
func (c *Controller) GameInfo() protocol.GameInfo {
	c.query()
	w := c.e.w
	return protocol.GameInfo{
		Round:      w.Round(),
		Width:      w.Width(),
		Height:     w.Height(),
		Votes:      [2]int{w.TeamVotes(world.TeamA), w.TeamVotes(world.TeamB)},
		RobotCount: [2]int{w.RobotCount(world.TeamA), w.RobotCount(world.TeamB)},
	}
}

func (c *Controller) SelfInfo() protocol.SelfInfo {
	c.query()
	r := c.self()
	return protocol.SelfInfo{
		ID:                  r.ID,
		Team:                r.Team.String(),
		UnitType:            r.Type.String(),
		Loc:                 r.Loc.ToArray(),
		Influence:           r.Influence,
		Conviction:          r.Conviction,
		Cooldown:            r.Cooldown,
		Flag:                r.Flag,
		SensorRadiusSquared: c.e.w.SensorRadiusSquared(c.id),
	}
}

func RobotInfoWire(r world.RobotInfo) protocol.RobotInfo {
	return protocol.RobotInfo{
		ID:         r.ID,
		Team:       r.Team.String(),
		UnitType:   r.Type.String(),
		Loc:        r.Loc.ToArray(),
		Influence:  r.Influence,
		Conviction: r.Conviction,
	}
}

func RobotInfos(in []world.RobotInfo) []protocol.RobotInfo {
	out := make([]protocol.RobotInfo, 0, len(in))
	for _, r := range in {
		out = append(out, RobotInfoWire(r))
	}
	return out
}
