package ability

import (
	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/world"
)

func CanMove(v world.View, id int32, dir geom.Direction) error {
	_, err := checkMove(v, id, dir)
	return err
}

func checkMove(v world.View, id int32, dir geom.Direction) (geom.Location, error) {
	r, err := actor(v, id)
	if err != nil {
		return geom.Location{}, err
	}
	if !v.Spec(r.Type).Mobile {
		return geom.Location{}, fail(ErrWrongType, "%s cannot move", r.Type)
	}
	if !dir.Valid() || dir == geom.Center {
		return geom.Location{}, fail(ErrBadArgument, "direction %s", dir)
	}
	to := r.Loc.Add(dir)
	if !v.OnMap(to) {
		return to, fail(ErrOffMap, "%v", to)
	}
	if v.Occupied(to) {
		return to, fail(ErrOccupied, "%v", to)
	}
	if err := ready(r); err != nil {
		return to, err
	}
	return to, nil
}

// Move steps one cell. Entering swamp costs extra cooldown.
func Move(v world.View, id int32, dir geom.Direction) (Effect, error) {
	to, err := checkMove(v, id, dir)
	if err != nil {
		return Effect{}, err
	}
	r, _ := v.Robot(id)
	cd := v.Spec(r.Type).ActionCooldown
	if v.IsSwamp(to) {
		cd += v.Tuning().SwampCooldownSurcharge
	}
	var eff Effect
	eff.add(world.MoveDelta{ID: id, To: to}, world.CooldownDelta{ID: id, Amount: cd})
	return eff, nil
}
