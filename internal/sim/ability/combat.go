package ability

import (
	"math"
	"sort"

	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/replay"
	"battlecode.ai/internal/sim/world"
)

func CanEmpower(v world.View, id int32) error {
	r, err := actor(v, id)
	if err != nil {
		return err
	}
	if !v.Spec(r.Type).CanEmpower {
		return fail(ErrWrongType, "%s cannot empower", r.Type)
	}
	if r.Empowered {
		return fail(ErrNotReady, "already empowered")
	}
	return ready(r)
}

// EmpowerRecipients lists every other robot strictly inside the empower
// radius, in ascending ID order.
func EmpowerRecipients(v world.View, r world.Robot) []world.Robot {
	radius := v.Tuning().EmpowerRadiusSquared
	var out []world.Robot
	for _, o := range v.RobotsWithin(r.Loc, radius) {
		if o.ID == r.ID || geom.DistanceSquared(r.Loc, o.Loc) >= radius {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Empower splits the politician's conviction, scaled by its team's expose
// buff, evenly over the recipients. Allies gain, enemies lose; an enemy
// driven below zero joins the actor's team, and anything left under its
// type's minimum conviction is destroyed. The politician itself is removed
// at the end of the round.
func Empower(v world.View, id int32) (Effect, error) {
	if err := CanEmpower(v, id); err != nil {
		return Effect{}, err
	}
	r, _ := v.Robot(id)
	effective := buffedConviction(r.Conviction, v.BuffFactor(r.Team))
	recipients := EmpowerRecipients(v, r)

	var eff Effect
	eff.record(id, replay.KindEmpower, replay.TargetNone)
	share := 0
	if n := len(recipients); n > 0 && effective > 0 {
		share = effective / n
	}
	for _, o := range recipients {
		if share == 0 {
			break
		}
		if o.Team == r.Team {
			eff.add(world.ConvictionDelta{ID: o.ID, Amount: share})
			continue
		}
		left := o.Conviction - share
		switch {
		case left < 0:
			eff.add(world.TeamDelta{ID: o.ID, Team: r.Team, Conviction: -left})
			eff.record(o.ID, replay.KindChangeTeam, int64(o.ID))
		case left < v.Spec(o.Type).MinConviction:
			eff.add(world.RemoveDelta{ID: o.ID})
		default:
			eff.add(world.ConvictionDelta{ID: o.ID, Amount: -share})
		}
	}
	eff.add(
		world.CooldownDelta{ID: id, Amount: v.Spec(r.Type).ActionCooldown},
		world.EmpoweredDelta{ID: id},
	)
	return eff, nil
}

// buffedConviction scales conviction by a team buff. Stacked buffs can
// overflow to +Inf, so the result saturates at MaxInt32.
func buffedConviction(conviction int, buff float64) int {
	f := math.Floor(float64(conviction) * buff)
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	}
	return int(f)
}

func CanExpose(v world.View, id int32, target geom.Location) error {
	r, err := actor(v, id)
	if err != nil {
		return err
	}
	if !v.Spec(r.Type).CanExpose {
		return fail(ErrWrongType, "%s cannot expose", r.Type)
	}
	if !v.OnMap(target) {
		return fail(ErrOffMap, "%v", target)
	}
	if d := geom.DistanceSquared(r.Loc, target); !geom.WithinRadius(v.SensorRadiusSquared(id), d) {
		return fail(ErrOutOfRange, "%v at distance %d", target, d)
	}
	return ready(r)
}

// Expose destroys an enemy slanderer at target and grants the actor's team a
// buff exponential in the slanderer's influence. Whatever is or is not at
// target, the cooldown is charged and the caller cannot tell the cases apart
// except through the record stream.
func Expose(v world.View, id int32, target geom.Location) (Effect, error) {
	if err := CanExpose(v, id, target); err != nil {
		return Effect{}, err
	}
	r, _ := v.Robot(id)
	tun := v.Tuning()

	var eff Effect
	eff.add(world.CooldownDelta{ID: id, Amount: v.Spec(r.Type).ActionCooldown})
	victim, ok := v.RobotAt(target)
	if !ok || victim.Team == r.Team || !v.Spec(victim.Type).Exposable {
		return eff, nil
	}
	eff.add(
		world.RemoveDelta{ID: victim.ID},
		world.BuffDelta{
			Team:   r.Team,
			Factor: math.Pow(tun.ExposeBuffBase, float64(victim.Influence)),
			Rounds: tun.ExposeBuffRounds,
		},
	)
	eff.record(id, replay.KindExpose, int64(victim.ID))
	return eff, nil
}

func CanDetect(v world.View, id int32) error {
	r, err := actor(v, id)
	if err != nil {
		return err
	}
	if !v.Spec(r.Type).CanDetect {
		return fail(ErrWrongType, "%s cannot detect", r.Type)
	}
	return ready(r)
}

// Detect reports occupied cells within the detection radius without
// identities, nearest first. It costs no cooldown.
func Detect(v world.View, id int32) (Effect, error) {
	if err := CanDetect(v, id); err != nil {
		return Effect{}, err
	}
	r, _ := v.Robot(id)
	var eff Effect
	for _, o := range v.RobotsWithin(r.Loc, v.DetectionRadiusSquared(id)) {
		if o.ID != id {
			eff.Detected = append(eff.Detected, o.Loc)
		}
	}
	sort.Slice(eff.Detected, func(i, j int) bool {
		a, b := eff.Detected[i], eff.Detected[j]
		da, db := geom.DistanceSquared(r.Loc, a), geom.DistanceSquared(r.Loc, b)
		if da != db {
			return da < db
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return eff, nil
}
