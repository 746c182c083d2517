package ability

import (
	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/replay"
	"battlecode.ai/internal/sim/world"
)

func CanBid(v world.View, id int32, amount int) error {
	r, err := actor(v, id)
	if err != nil {
		return err
	}
	if !v.Spec(r.Type).CanBid {
		return fail(ErrWrongType, "%s cannot bid", r.Type)
	}
	if amount <= 0 {
		return fail(ErrBadArgument, "bid %d", amount)
	}
	if amount > r.Influence {
		return fail(ErrInsufficientInfluence, "bid %d of %d", amount, r.Influence)
	}
	if v.HasBid(id) {
		return fail(ErrAlreadyBid, "round %d", v.Round())
	}
	return nil
}

// Bid commits influence to this round's vote auction. Payment happens when
// the auction resolves at round end.
func Bid(v world.View, id int32, amount int) (Effect, error) {
	if err := CanBid(v, id, amount); err != nil {
		return Effect{}, err
	}
	var eff Effect
	eff.add(world.BidDelta{ID: id, Amount: amount})
	eff.record(id, replay.KindPlaceBid, int64(amount))
	return eff, nil
}

func CanSetFlag(v world.View, id int32, value int) error {
	if _, err := actor(v, id); err != nil {
		return err
	}
	if value < 0 || value > v.Tuning().FlagMax {
		return fail(ErrBadArgument, "flag %d outside [0,%d]", value, v.Tuning().FlagMax)
	}
	return nil
}

func SetFlag(v world.View, id int32, value int) (Effect, error) {
	if err := CanSetFlag(v, id, value); err != nil {
		return Effect{}, err
	}
	var eff Effect
	eff.add(world.FlagDelta{ID: id, Value: value})
	eff.record(id, replay.KindSetFlag, int64(value))
	return eff, nil
}

// Resign is always legal for a live robot and concedes for its team.
func Resign(v world.View, id int32) (Effect, error) {
	r, err := actor(v, id)
	if err != nil {
		return Effect{}, err
	}
	var eff Effect
	eff.add(world.ResignDelta{Team: r.Team})
	return eff, nil
}

func Dot(v world.View, id int32, at geom.Location, rgb [3]uint8) (Effect, error) {
	if _, err := actor(v, id); err != nil {
		return Effect{}, err
	}
	if !v.OnMap(at) {
		return Effect{}, fail(ErrOffMap, "%v", at)
	}
	var eff Effect
	eff.add(world.IndicatorDelta{Indicator: world.Indicator{Robot: id, From: at, To: at, RGB: rgb}})
	return eff, nil
}

func Line(v world.View, id int32, from, to geom.Location, rgb [3]uint8) (Effect, error) {
	if _, err := actor(v, id); err != nil {
		return Effect{}, err
	}
	if !v.OnMap(from) || !v.OnMap(to) {
		return Effect{}, fail(ErrOffMap, "%v-%v", from, to)
	}
	var eff Effect
	eff.add(world.IndicatorDelta{Indicator: world.Indicator{Robot: id, Line: true, From: from, To: to, RGB: rgb}})
	return eff, nil
}
