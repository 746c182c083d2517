package world

import (
	"fmt"

	"battlecode.ai/internal/persistence/snapshot"
	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/unit"
)

// ExportSnapshot copies the world between rounds. Indicators are not part of
// a snapshot.
func (s *State) ExportSnapshot(matchID string) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header:       snapshot.Header{Version: 1, MatchID: matchID, Round: s.round},
		Seed:         s.seed,
		TuningDigest: s.tun.Digest(),
		Width:        s.width,
		Height:       s.height,
		Swamp:        make([]bool, len(s.cells)),
		Pollution:    make([]int, len(s.cells)),
		Counters:     snapshot.CountersV1{NextRobot: s.nextID},
	}
	for i, c := range s.cells {
		snap.Swamp[i] = c.Swamp
		snap.Pollution[i] = c.Pollution
	}
	for _, id := range s.LiveIDs() {
		r := s.robots[id]
		snap.Robots = append(snap.Robots, snapshot.RobotV1{
			ID:         r.ID,
			Team:       int8(r.Team),
			Type:       uint8(r.Type),
			X:          r.Loc.X,
			Y:          r.Loc.Y,
			Influence:  r.Influence,
			Conviction: r.Conviction,
			Cooldown:   r.Cooldown,
			Flag:       r.Flag,
			Empowered:  r.Empowered,
		})
	}
	for i := range s.teams {
		ts := &s.teams[i]
		tv := snapshot.TeamV1{Votes: ts.votes, Resigned: ts.resigned, WinningBid: ts.winningBid}
		for _, b := range ts.buffs {
			tv.Buffs = append(tv.Buffs, snapshot.BuffV1{Factor: b.Factor, Until: b.Until})
		}
		snap.Teams[i] = tv
	}
	for _, id := range sortedKeys(s.bids) {
		snap.Bids = append(snap.Bids, snapshot.BidV1{Robot: id, Amount: s.bids[id]})
	}
	snap.Deferred = append(snap.Deferred, s.deferred...)
	return snap
}

// ImportSnapshot rebuilds a world from snap. cfg must carry the tuning the
// snapshot was taken with.
func ImportSnapshot(cfg Config, snap snapshot.SnapshotV1) (*State, error) {
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	if snap.TuningDigest != "" && snap.TuningDigest != cfg.Tuning.Digest() {
		return nil, fmt.Errorf("snapshot: tuning digest mismatch")
	}
	n := snap.Width * snap.Height
	if snap.Width <= 0 || snap.Height <= 0 || len(snap.Swamp) != n || len(snap.Pollution) != n {
		return nil, fmt.Errorf("snapshot: bad grid %dx%d", snap.Width, snap.Height)
	}
	s := newState(cfg, snap.Seed, snap.Width, snap.Height)
	s.round = snap.Header.Round
	for i := range s.cells {
		s.cells[i] = Cell{Swamp: snap.Swamp[i], Pollution: snap.Pollution[i]}
	}
	for _, rv := range snap.Robots {
		r := &Robot{
			ID:         rv.ID,
			Team:       Team(rv.Team),
			Type:       unit.Type(rv.Type),
			Loc:        geom.Location{X: rv.X, Y: rv.Y},
			Influence:  rv.Influence,
			Conviction: rv.Conviction,
			Cooldown:   rv.Cooldown,
			Flag:       rv.Flag,
			Empowered:  rv.Empowered,
		}
		if !r.Team.Valid() || !r.Type.Valid() || !s.OnMap(r.Loc) {
			return nil, fmt.Errorf("snapshot: bad robot %d", rv.ID)
		}
		if _, dup := s.robots[r.ID]; dup {
			return nil, fmt.Errorf("snapshot: duplicate robot %d", rv.ID)
		}
		if _, taken := s.occ[r.Loc]; taken {
			return nil, fmt.Errorf("snapshot: robot %d: %w", rv.ID, ErrOccupied)
		}
		s.robots[r.ID] = r
		s.occ[r.Loc] = r.ID
	}
	s.nextID = snap.Counters.NextRobot
	for i := range s.teams {
		tv := snap.Teams[i]
		ts := &s.teams[i]
		ts.votes = tv.Votes
		ts.resigned = tv.Resigned
		ts.winningBid = tv.WinningBid
		for _, b := range tv.Buffs {
			ts.buffs = append(ts.buffs, Buff{Factor: b.Factor, Until: b.Until})
		}
	}
	for _, b := range snap.Bids {
		s.bids[b.Robot] = b.Amount
	}
	s.deferred = append(s.deferred, snap.Deferred...)
	if err := s.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	s.RefreshAggregates()
	return s, nil
}
