package engine

import (
	"context"
	"fmt"
	"runtime/debug"

	"battlecode.ai/internal/sim/unit"
	"battlecode.ai/internal/sim/world"
)

// Executor runs one robot-turn. It returns nil when the robot finished,
// ErrExhausted or a deadline error when it ran out of budget, and any other
// error when the robot program faulted.
type Executor interface {
	RunTurn(ctx context.Context, c *Controller) error
}

// Forgetter is implemented by executors that keep per-robot state. The
// engine calls Forget when a robot is destroyed.
type Forgetter interface {
	Forget(id int32)
}

// Player is an in-process robot program. One Player instance serves one
// robot for its whole life.
type Player interface {
	Turn(c *Controller) error
}

type PlayerFunc func(c *Controller) error

func (f PlayerFunc) Turn(c *Controller) error { return f(c) }

// Factory creates the Player for a newly seen robot.
type Factory func(id int32, ty unit.Type) Player

// LocalExecutor runs Players inline on the engine goroutine. Budgets are
// enforced through Controller charges; a Player that never calls the
// Controller cannot be pre-empted.
type LocalExecutor struct {
	factories [world.NumTeams]Factory
	players   map[int32]Player
}

func NewLocalExecutor(teamA, teamB Factory) *LocalExecutor {
	return &LocalExecutor{
		factories: [world.NumTeams]Factory{teamA, teamB},
		players:   map[int32]Player{},
	}
}

func (x *LocalExecutor) RunTurn(ctx context.Context, c *Controller) (err error) {
	p, ok := x.players[c.ID()]
	if !ok {
		r, alive := c.e.w.Robot(c.ID())
		if !alive {
			return fmt.Errorf("robot %d is not alive", c.ID())
		}
		f := x.factories[r.Team]
		if f == nil {
			return nil
		}
		p = f(r.ID, r.Type)
		if p == nil {
			return nil
		}
		x.players[c.ID()] = p
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("robot %d panic: %v\n%s", c.ID(), rec, debug.Stack())
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Turn(c)
}

func (x *LocalExecutor) Forget(id int32) { delete(x.players, id) }
