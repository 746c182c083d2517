package ability

import (
	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/replay"
	"battlecode.ai/internal/sim/unit"
	"battlecode.ai/internal/sim/world"
)

// Spendable is the influence a producer may still commit this round.
func Spendable(v world.View, r world.Robot) int {
	return r.Influence - v.PendingBid(r.ID)
}

func CanBuild(v world.View, id int32, ty unit.Type, dir geom.Direction, influence int) error {
	_, err := checkBuild(v, id, ty, dir, influence)
	return err
}

func checkBuild(v world.View, id int32, ty unit.Type, dir geom.Direction, influence int) (geom.Location, error) {
	r, err := actor(v, id)
	if err != nil {
		return geom.Location{}, err
	}
	spec := v.Spec(r.Type)
	if !spec.CanBuild() {
		return geom.Location{}, fail(ErrWrongType, "%s cannot build", r.Type)
	}
	if !ty.Valid() || !spec.CanBuildType(ty) {
		return geom.Location{}, fail(ErrCannotBuild, "%s cannot build %s", r.Type, ty)
	}
	if need := v.Spec(ty).MinBuildInfluence; influence <= 0 || influence < need {
		return geom.Location{}, fail(ErrInsufficientInfluence, "%s needs at least %d influence, got %d", ty, need, influence)
	}
	if have := Spendable(v, r); influence > have {
		return geom.Location{}, fail(ErrInsufficientInfluence, "spend %d of %d", influence, have)
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
	if v.IsSwamp(to) {
		return to, fail(ErrSwamp, "%v", to)
	}
	if err := ready(r); err != nil {
		return to, err
	}
	return to, nil
}

// Build spends influence on a new robot next to the builder. The new robot
// takes the next ID, which is also the SPAWN_UNIT target.
func Build(v world.View, id int32, ty unit.Type, dir geom.Direction, influence int) (Effect, error) {
	to, err := checkBuild(v, id, ty, dir, influence)
	if err != nil {
		return Effect{}, err
	}
	r, _ := v.Robot(id)
	newID := v.NextRobotID()

	var eff Effect
	eff.add(
		world.InfluenceDelta{ID: id, Amount: -influence},
		world.PlaceDelta{Robot: world.Robot{
			ID:         newID,
			Team:       r.Team,
			Type:       ty,
			Loc:        to,
			Influence:  influence,
			Conviction: v.Spec(ty).ConvictionFor(influence),
		}},
		world.CooldownDelta{ID: id, Amount: v.Spec(r.Type).ActionCooldown},
	)
	eff.record(id, replay.KindSpawnUnit, int64(newID))
	return eff, nil
}
