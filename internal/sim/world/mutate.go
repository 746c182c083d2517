package world

import (
	"fmt"
	"math"
	"sort"

	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/unit"
)

func (s *State) live(id int32) (*Robot, error) {
	r, ok := s.robots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoRobot, id)
	}
	return r, nil
}

// PlaceRobot adds r to the world. A zero r.ID takes the next ID; a non-zero
// ID must equal NextRobotID so that predicted IDs stay truthful.
func (s *State) PlaceRobot(r Robot) (int32, error) {
	if r.ID != 0 && r.ID != s.nextID {
		return 0, fmt.Errorf("%w: got %d want %d", ErrIDMissync, r.ID, s.nextID)
	}
	if !r.Team.Valid() {
		return 0, ErrBadTeam
	}
	if !r.Type.Valid() {
		return 0, ErrBadType
	}
	if !s.OnMap(r.Loc) {
		return 0, fmt.Errorf("%w: %v", ErrOffMap, r.Loc)
	}
	if other, ok := s.occ[r.Loc]; ok {
		return 0, fmt.Errorf("%w: %v holds %d", ErrOccupied, r.Loc, other)
	}
	r.ID = s.nextID
	s.nextID++
	rr := r
	s.robots[r.ID] = &rr
	s.occ[r.Loc] = r.ID
	return r.ID, nil
}

func (s *State) RemoveRobot(id int32) error {
	r, err := s.live(id)
	if err != nil {
		return err
	}
	delete(s.occ, r.Loc)
	delete(s.robots, id)
	delete(s.bids, id)
	return nil
}

func (s *State) MoveRobot(id int32, to geom.Location) error {
	r, err := s.live(id)
	if err != nil {
		return err
	}
	if !s.OnMap(to) {
		return fmt.Errorf("%w: %v", ErrOffMap, to)
	}
	if other, ok := s.occ[to]; ok && other != id {
		return fmt.Errorf("%w: %v holds %d", ErrOccupied, to, other)
	}
	delete(s.occ, r.Loc)
	r.Loc = to
	s.occ[to] = id
	return nil
}

func (s *State) AdjustConviction(id int32, amount int) error {
	r, err := s.live(id)
	if err != nil {
		return err
	}
	r.Conviction += amount
	r.syncPool(true)
	return nil
}

// ReassignTeam moves a robot to team t with the given conviction. The ID and
// every other attribute are kept.
func (s *State) ReassignTeam(id int32, t Team, conviction int) error {
	r, err := s.live(id)
	if err != nil {
		return err
	}
	if !t.Valid() {
		return ErrBadTeam
	}
	r.Team = t
	r.Conviction = conviction
	r.syncPool(true)
	return nil
}

func (s *State) AdjustInfluence(id int32, amount int) error {
	r, err := s.live(id)
	if err != nil {
		return err
	}
	if r.Influence+amount < 0 {
		return fmt.Errorf("world: robot %d influence %d cannot drop by %d", id, r.Influence, -amount)
	}
	r.Influence += amount
	r.syncPool(false)
	return nil
}

func (s *State) SetFlag(id int32, v int) error {
	r, err := s.live(id)
	if err != nil {
		return err
	}
	r.Flag = v
	return nil
}

func (s *State) AddCooldown(id int32, amount float64) error {
	r, err := s.live(id)
	if err != nil {
		return err
	}
	r.Cooldown += amount
	return nil
}

// DecayCooldowns lowers every robot's cooldown by its type's decay, never
// below zero.
func (s *State) DecayCooldowns() {
	for _, r := range s.robots {
		r.Cooldown = math.Max(0, r.Cooldown-s.table.Spec(r.Type).CooldownDecay)
	}
}

func (s *State) AdvanceRound() { s.round++ }

func (s *State) ClearIndicators() { s.indicators = s.indicators[:0] }

func (s *State) AddIndicator(ind Indicator) error {
	if _, err := s.live(ind.Robot); err != nil {
		return err
	}
	s.indicators = append(s.indicators, ind)
	return nil
}

// MarkEmpowered flags the robot and schedules its removal at round end.
func (s *State) MarkEmpowered(id int32) error {
	r, err := s.live(id)
	if err != nil {
		return err
	}
	r.Empowered = true
	return s.DeferDestroy(id)
}

func (s *State) DeferDestroy(id int32) error {
	if _, err := s.live(id); err != nil {
		return err
	}
	for _, d := range s.deferred {
		if d == id {
			return nil
		}
	}
	s.deferred = append(s.deferred, id)
	return nil
}

// FlushDeferred removes every deferred robot that is still alive and returns
// the removed IDs in the order they were deferred.
func (s *State) FlushDeferred() []int32 {
	var removed []int32
	for _, id := range s.deferred {
		if err := s.RemoveRobot(id); err == nil {
			removed = append(removed, id)
		}
	}
	s.deferred = s.deferred[:0]
	return removed
}

func (s *State) PlaceBid(id int32, amount int) error {
	r, err := s.live(id)
	if err != nil {
		return err
	}
	if _, dup := s.bids[id]; dup {
		return fmt.Errorf("world: robot %d already bid in round %d", id, s.round)
	}
	if amount <= 0 || amount > r.Influence {
		return fmt.Errorf("world: robot %d cannot bid %d with influence %d", id, amount, r.Influence)
	}
	s.bids[id] = amount
	return nil
}

// AddBuff starts a buff that stays active for rounds rounds including the
// current one.
func (s *State) AddBuff(t Team, factor float64, rounds int) error {
	ts := s.team(t)
	if ts == nil {
		return ErrBadTeam
	}
	if rounds <= 0 {
		return nil
	}
	ts.buffs = append(ts.buffs, Buff{Factor: factor, Until: s.round + rounds - 1})
	return nil
}

func (s *State) ExpireBuffs() {
	for i := range s.teams {
		ts := &s.teams[i]
		kept := ts.buffs[:0]
		for _, b := range ts.buffs {
			if b.Until >= s.round {
				kept = append(kept, b)
			}
		}
		ts.buffs = kept
	}
}

func (s *State) Resign(t Team) error {
	ts := s.team(t)
	if ts == nil {
		return ErrBadTeam
	}
	ts.resigned = true
	return nil
}

// RefreshAggregates recomputes per-team robot, center and influence totals.
func (s *State) RefreshAggregates() {
	for i := range s.teams {
		s.teams[i].robotCount = 0
		s.teams[i].ecCount = 0
		s.teams[i].influence = 0
	}
	for _, r := range s.robots {
		ts := s.team(r.Team)
		if ts == nil {
			continue
		}
		ts.robotCount++
		ts.influence += r.Influence
		if r.Type == unit.EnlightenmentCenter {
			ts.ecCount++
		}
	}
}

type AuctionResult struct {
	// Winner is AnyTeam when no bid was placed.
	Winner     Team
	WinnerID   int32
	WinningBid int
	// Charged lists what every bidder paid, keyed by robot ID.
	Charged map[int32]int
}

type bid struct {
	id     int32
	team   Team
	amount int
}

// ResolveAuction awards this round's vote. The highest bid wins; ties go to
// the lower team, then the lower robot ID. The winner pays its bid in full;
// losers pay LosingBidCostPercent of theirs, rounded up.
func (s *State) ResolveAuction() AuctionResult {
	res := AuctionResult{Winner: AnyTeam, Charged: map[int32]int{}}
	for i := range s.teams {
		s.teams[i].winningBid = 0
	}
	bids := make([]bid, 0, len(s.bids))
	for id, amount := range s.bids {
		r, ok := s.robots[id]
		if !ok {
			continue
		}
		bids = append(bids, bid{id: id, team: r.Team, amount: amount})
	}
	for id := range s.bids {
		delete(s.bids, id)
	}
	if len(bids) == 0 {
		return res
	}
	sort.Slice(bids, func(i, j int) bool {
		if bids[i].amount != bids[j].amount {
			return bids[i].amount > bids[j].amount
		}
		if bids[i].team != bids[j].team {
			return bids[i].team < bids[j].team
		}
		return bids[i].id < bids[j].id
	})

	win := bids[0]
	res.Winner = win.team
	res.WinnerID = win.id
	res.WinningBid = win.amount
	s.teams[win.team].votes++
	s.teams[win.team].winningBid = win.amount

	pct := s.tun.LosingBidCostPercent
	for i, b := range bids {
		cost := b.amount
		if i > 0 {
			cost = (b.amount*pct + 99) / 100
		}
		r := s.robots[b.id]
		if cost > r.Influence {
			cost = r.Influence
		}
		r.Influence -= cost
		r.syncPool(false)
		res.Charged[b.id] = cost
	}
	return res
}
