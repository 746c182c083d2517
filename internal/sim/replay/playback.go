package replay

import (
	"fmt"
	"sort"

	"battlecode.ai/internal/sim/geom"
)

// Playback rebuilds bodies from a match log the way a viewer would and checks
// the log against the invariants the engine promises: contiguous rounds,
// one body per cell, no references to unknown bodies, and team robot counts
// that agree with the bodies.
type Playback struct {
	width  int
	height int
	round  int
	bodies map[int32]Body
}

func NewPlayback(h MatchHeader) (*Playback, error) {
	p := &Playback{width: h.Width, height: h.Height, bodies: make(map[int32]Body, len(h.Bodies))}
	if h.StartRound > 1 {
		p.round = h.StartRound - 1
	}
	for _, b := range h.Bodies {
		if _, dup := p.bodies[b.ID]; dup {
			return nil, fmt.Errorf("header: duplicate body id %d", b.ID)
		}
		p.bodies[b.ID] = b
	}
	if err := p.checkCells(); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	return p, nil
}

func (p *Playback) Round() int { return p.round }

func (p *Playback) Apply(e RoundEntry) error {
	if e.Round != p.round+1 {
		return fmt.Errorf("round %d: expected round %d", e.Round, p.round+1)
	}
	for i, a := range e.Actions {
		if a.Round != e.Round {
			return fmt.Errorf("round %d: action %d stamped with round %d", e.Round, i, a.Round)
		}
	}

	for _, b := range e.Spawned {
		if _, dup := p.bodies[b.ID]; dup {
			return fmt.Errorf("round %d: spawned id %d already exists", e.Round, b.ID)
		}
		p.bodies[b.ID] = b
	}
	for _, a := range e.Actions {
		if !a.Kind.Known() {
			continue
		}
		switch a.Kind {
		case KindSpawnUnit:
			if _, ok := p.bodies[int32(a.Target)]; !ok {
				return fmt.Errorf("round %d: spawn record targets unknown body %d", e.Round, a.Target)
			}
		case KindChangeTeam:
			b, ok := p.bodies[a.Actor]
			if !ok {
				return fmt.Errorf("round %d: team change for unknown body %d", e.Round, a.Actor)
			}
			b.Team = 1 - b.Team
			p.bodies[a.Actor] = b
		}
	}
	for _, m := range e.Moved {
		b, ok := p.bodies[m.ID]
		if !ok {
			return fmt.Errorf("round %d: move of unknown body %d", e.Round, m.ID)
		}
		b.Loc = m.Loc
		p.bodies[m.ID] = b
	}
	for _, id := range e.Died {
		if _, ok := p.bodies[id]; !ok {
			return fmt.Errorf("round %d: death of unknown body %d", e.Round, id)
		}
		delete(p.bodies, id)
	}

	if err := p.checkCells(); err != nil {
		return fmt.Errorf("round %d: %w", e.Round, err)
	}
	var counts [2]int
	for _, b := range p.bodies {
		if b.Team == 0 || b.Team == 1 {
			counts[b.Team]++
		}
	}
	for t := 0; t < 2; t++ {
		if counts[t] != e.Teams[t].RobotCount {
			return fmt.Errorf("round %d: team %d has %d bodies, entry says %d", e.Round, t, counts[t], e.Teams[t].RobotCount)
		}
	}
	p.round = e.Round
	return nil
}

func (p *Playback) checkCells() error {
	seen := make(map[geom.Location]int32, len(p.bodies))
	for _, id := range p.sortedIDs() {
		b := p.bodies[id]
		if b.Loc.X < 0 || b.Loc.Y < 0 || b.Loc.X >= p.width || b.Loc.Y >= p.height {
			return fmt.Errorf("body %d off map at %v", id, b.Loc)
		}
		if other, ok := seen[b.Loc]; ok {
			return fmt.Errorf("bodies %d and %d share %v", other, id, b.Loc)
		}
		seen[b.Loc] = id
	}
	return nil
}

func (p *Playback) sortedIDs() []int32 {
	ids := make([]int32, 0, len(p.bodies))
	for id := range p.bodies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Bodies returns the current bodies in ID order.
func (p *Playback) Bodies() []Body {
	ids := p.sortedIDs()
	out := make([]Body, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.bodies[id])
	}
	return out
}
