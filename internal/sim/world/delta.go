package world

import (
	"fmt"

	"battlecode.ai/internal/sim/geom"
)

// Delta is one validated state change. The set of variants is closed; Apply
// routes each onto the matching mutation method.
type Delta interface {
	isDelta()
}

type PlaceDelta struct{ Robot Robot }

type RemoveDelta struct{ ID int32 }

type MoveDelta struct {
	ID int32
	To geom.Location
}

type ConvictionDelta struct {
	ID     int32
	Amount int
}

// TeamDelta flips a robot to Team with a fresh conviction value.
type TeamDelta struct {
	ID         int32
	Team       Team
	Conviction int
}

type InfluenceDelta struct {
	ID     int32
	Amount int
}

type FlagDelta struct {
	ID    int32
	Value int
}

type CooldownDelta struct {
	ID     int32
	Amount float64
}

type EmpoweredDelta struct{ ID int32 }

type BidDelta struct {
	ID     int32
	Amount int
}

type BuffDelta struct {
	Team   Team
	Factor float64
	Rounds int
}

type ResignDelta struct{ Team Team }

type IndicatorDelta struct{ Indicator Indicator }

func (PlaceDelta) isDelta()      {}
func (RemoveDelta) isDelta()     {}
func (MoveDelta) isDelta()       {}
func (ConvictionDelta) isDelta() {}
func (TeamDelta) isDelta()       {}
func (InfluenceDelta) isDelta()  {}
func (FlagDelta) isDelta()       {}
func (CooldownDelta) isDelta()   {}
func (EmpoweredDelta) isDelta()  {}
func (BidDelta) isDelta()        {}
func (BuffDelta) isDelta()       {}
func (ResignDelta) isDelta()     {}
func (IndicatorDelta) isDelta()  {}

// Apply performs d. Deltas come from validated effects, so an error here
// means the effect and the world disagree.
func (s *State) Apply(d Delta) error {
	var err error
	switch d := d.(type) {
	case PlaceDelta:
		_, err = s.PlaceRobot(d.Robot)
	case RemoveDelta:
		err = s.RemoveRobot(d.ID)
	case MoveDelta:
		err = s.MoveRobot(d.ID, d.To)
	case ConvictionDelta:
		err = s.AdjustConviction(d.ID, d.Amount)
	case TeamDelta:
		err = s.ReassignTeam(d.ID, d.Team, d.Conviction)
	case InfluenceDelta:
		err = s.AdjustInfluence(d.ID, d.Amount)
	case FlagDelta:
		err = s.SetFlag(d.ID, d.Value)
	case CooldownDelta:
		err = s.AddCooldown(d.ID, d.Amount)
	case EmpoweredDelta:
		err = s.MarkEmpowered(d.ID)
	case BidDelta:
		err = s.PlaceBid(d.ID, d.Amount)
	case BuffDelta:
		err = s.AddBuff(d.Team, d.Factor, d.Rounds)
	case ResignDelta:
		err = s.Resign(d.Team)
	case IndicatorDelta:
		err = s.AddIndicator(d.Indicator)
	default:
		err = fmt.Errorf("world: unknown delta %T", d)
	}
	if err != nil {
		return fmt.Errorf("apply %T: %w", d, err)
	}
	return nil
}
