package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"battlecode.ai/internal/persistence/snapshot"
	"battlecode.ai/internal/sim/ability"
	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/replay"
	"battlecode.ai/internal/sim/world"
)

type Phase uint8

const (
	PhaseRoundStart Phase = iota
	PhaseRobotTurn
	PhaseRoundEnd
	PhaseMatchOver
)

func (p Phase) String() string {
	switch p {
	case PhaseRoundStart:
		return "ROUND_START"
	case PhaseRobotTurn:
		return "ROBOT_TURN"
	case PhaseRoundEnd:
		return "ROUND_END"
	case PhaseMatchOver:
		return "MATCH_OVER"
	}
	return fmt.Sprintf("PHASE_%d", uint8(p))
}

// Match end reasons.
const (
	ReasonResignation      = "RESIGNATION"
	ReasonElimination      = "ELIMINATION"
	ReasonAnnihilation     = "ANNIHILATION"
	ReasonMaxRoundsVotes   = "MAX_ROUNDS_VOTES"
	ReasonMaxRoundsECs     = "MAX_ROUNDS_ENLIGHTENMENT_CENTERS"
	ReasonMaxRoundsInf     = "MAX_ROUNDS_INFLUENCE"
	ReasonMaxRoundsDefault = "MAX_ROUNDS_DEFAULT"
)

type Result struct {
	Winner world.Team
	Reason string
	Round  int
}

type Config struct {
	MatchID string
	Teams   [2]string

	Executor Executor
	Sinks    []replay.Sink
	Logger   *log.Logger

	// SnapshotEvery > 0 sends a snapshot to SnapshotSink after every N-th
	// round. Snapshots are dropped when the sink is full.
	SnapshotEvery int
	SnapshotSink  chan<- snapshot.SnapshotV1

	// CheckInvariants verifies the cell/robot bijection after every round.
	CheckInvariants bool
}

// Engine drives rounds over a world it owns exclusively. It is not safe for
// concurrent use.
type Engine struct {
	cfg    Config
	w      *world.State
	log    *replay.Log
	logger *log.Logger

	phase   Phase
	order   []int32
	turn    int
	counter int64
	fatal   error
	result  *Result
}

var (
	// ErrExhausted is returned by Controller calls once the turn's compute
	// budget or deadline is spent. The robot is destroyed after its turn.
	ErrExhausted = errors.New("engine: turn budget exhausted")
	// ErrTurnOver is returned by a Controller used after its turn ended.
	ErrTurnOver = errors.New("engine: turn is over")
	// ErrMatchOver is returned by StepRound once the match has ended.
	ErrMatchOver = errors.New("engine: match is over")
)

func New(cfg Config, w *world.State) (*Engine, error) {
	if w == nil {
		return nil, errors.New("engine: nil world")
	}
	if cfg.Executor == nil {
		return nil, errors.New("engine: nil executor")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	e := &Engine{
		cfg:    cfg,
		w:      w,
		log:    replay.NewLog(cfg.Sinks...),
		logger: logger,
		phase:  PhaseRoundStart,
	}
	if err := e.log.WriteHeader(e.header()); err != nil {
		logger.Printf("match log header: %v", err)
	}
	return e, nil
}

func (e *Engine) header() replay.MatchHeader {
	w := e.w
	h := replay.MatchHeader{
		MatchID:         e.cfg.MatchID,
		ProtocolVersion: w.Tuning().ProtocolVersion,
		TuningDigest:    w.Tuning().Digest(),
		Seed:            w.Seed(),
		Width:           w.Width(),
		Height:          w.Height(),
		Swamp:           make([]bool, 0, w.Width()*w.Height()),
		Pollution:       make([]int, 0, w.Width()*w.Height()),
		Teams:           e.cfg.Teams,
	}
	if w.Round() > 1 {
		h.StartRound = w.Round()
	}
	for y := 0; y < w.Height(); y++ {
		for x := 0; x < w.Width(); x++ {
			c := w.Cell(geom.Location{X: x, Y: y})
			h.Swamp = append(h.Swamp, c.Swamp)
			h.Pollution = append(h.Pollution, c.Pollution)
		}
	}
	for _, id := range w.LiveIDs() {
		r, _ := w.Robot(id)
		h.Bodies = append(h.Bodies, bodyOf(r))
	}
	return h
}

func bodyOf(r world.Robot) replay.Body {
	return replay.Body{
		ID:         r.ID,
		Team:       int8(r.Team),
		Type:       uint8(r.Type),
		Loc:        r.Loc,
		Influence:  r.Influence,
		Conviction: r.Conviction,
	}
}

// World exposes the engine's world read-only.
func (e *Engine) World() world.View { return e.w }

func (e *Engine) Log() *replay.Log { return e.log }

func (e *Engine) Phase() Phase { return e.phase }

func (e *Engine) Result() (Result, bool) {
	if e.result == nil {
		return Result{}, false
	}
	return *e.result, true
}

// ComputeCounter is the total compute charged across all turns so far.
func (e *Engine) ComputeCounter() int64 { return e.counter }

// Run steps rounds until the match ends or ctx is cancelled.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	for {
		done, err := e.StepRound(ctx)
		if err != nil {
			return Result{}, err
		}
		if done {
			return *e.result, nil
		}
	}
}

// StepRound plays one full round and reports whether the match is over.
func (e *Engine) StepRound(ctx context.Context) (bool, error) {
	if e.phase == PhaseMatchOver {
		return true, ErrMatchOver
	}
	if e.fatal != nil {
		return false, e.fatal
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	e.roundStart()
	if e.fatal != nil {
		return false, e.fatal
	}
	for i, id := range e.order {
		if _, alive := e.w.Robot(id); !alive {
			continue
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		e.phase = PhaseRobotTurn
		e.turn = i
		e.runTurn(ctx, id)
		if e.fatal != nil {
			return false, e.fatal
		}
		if e.w.Resigned(world.TeamA) || e.w.Resigned(world.TeamB) {
			break
		}
	}
	return e.roundEnd()
}

func (e *Engine) roundStart() {
	e.phase = PhaseRoundStart
	if err := e.log.Begin(e.w.Round()); err != nil {
		e.fatal = fmt.Errorf("round %d: %w", e.w.Round(), err)
		return
	}
	e.w.DecayCooldowns()
	e.w.ClearIndicators()
	e.w.ExpireBuffs()
	e.order = e.w.LiveIDs()
	e.turn = 0
}

func (e *Engine) runTurn(ctx context.Context, id int32) {
	tun := e.w.Tuning()
	tctx, cancel := context.WithTimeout(ctx, tun.TurnTimeout())
	defer cancel()

	c := &Controller{e: e, id: id, ctx: tctx, budget: tun.TurnComputeBudget}
	err := e.cfg.Executor.RunTurn(tctx, c)
	c.closed = true
	if e.fatal != nil {
		return
	}

	switch {
	case c.exhausted || errors.Is(err, ErrExhausted) || errors.Is(err, context.DeadlineExceeded):
		e.logger.Printf("round %d robot %d exhausted (used %d of %d)", e.w.Round(), id, c.used, c.budget)
		e.kill(id)
	case err != nil:
		e.logger.Printf("round %d robot %d fault: %v", e.w.Round(), id, err)
		e.kill(id)
	}
}

// kill destroys a robot whose turn was exhausted or faulted.
func (e *Engine) kill(id int32) {
	if _, ok := e.w.Robot(id); !ok {
		return
	}
	if err := e.w.RemoveRobot(id); err != nil {
		e.fatal = fmt.Errorf("round %d: remove robot %d: %w", e.w.Round(), id, err)
		return
	}
	e.log.Record(id, replay.KindDieException, replay.TargetNone)
	e.log.Died(id)
	e.forget(id)
}

func (e *Engine) forget(id int32) {
	if f, ok := e.cfg.Executor.(Forgetter); ok {
		f.Forget(id)
	}
}

func (e *Engine) roundEnd() (bool, error) {
	e.phase = PhaseRoundEnd
	round := e.w.Round()

	for _, id := range e.w.FlushDeferred() {
		e.log.Died(id)
		e.forget(id)
	}
	auction := e.w.ResolveAuction()
	e.w.RefreshAggregates()
	res := e.terminal()

	if e.cfg.CheckInvariants {
		if err := e.w.CheckInvariants(); err != nil {
			e.fatal = fmt.Errorf("round %d: %w", round, err)
			return false, e.fatal
		}
	}

	var teams [2]replay.TeamStats
	for _, t := range []world.Team{world.TeamA, world.TeamB} {
		sum := e.w.Summary(t)
		teams[t] = replay.TeamStats{Votes: sum.Votes, RobotCount: sum.RobotCount, WinningBid: sum.WinningBid}
	}
	for _, ind := range e.w.Indicators() {
		if ind.Line {
			e.log.Line(replay.IndicatorLine{ID: ind.Robot, Start: ind.From, End: ind.To, RGB: ind.RGB})
		} else {
			e.log.Dot(replay.IndicatorDot{ID: ind.Robot, Loc: ind.From, RGB: ind.RGB})
		}
	}
	if _, err := e.log.End(teams, int8(auction.Winner), e.w.Digest()); err != nil {
		e.logger.Printf("match log round %d: %v", round, err)
	}

	if res != nil {
		e.phase = PhaseMatchOver
		e.result = res
		if err := e.log.WriteFooter(replay.MatchFooter{Winner: int8(res.Winner), Reason: res.Reason, FinalRound: res.Round}); err != nil {
			e.logger.Printf("match log footer: %v", err)
		}
		return true, nil
	}

	e.w.AdvanceRound()
	if e.cfg.SnapshotEvery > 0 && e.cfg.SnapshotSink != nil && round%e.cfg.SnapshotEvery == 0 {
		select {
		case e.cfg.SnapshotSink <- e.w.ExportSnapshot(e.cfg.MatchID):
		default:
			// Drop snapshot if sink is backed up.
		}
	}
	return false, nil
}

func (e *Engine) terminal() *Result {
	w := e.w
	round := w.Round()
	for _, t := range []world.Team{world.TeamA, world.TeamB} {
		if w.Resigned(t) {
			return &Result{Winner: t.Opponent(), Reason: ReasonResignation, Round: round}
		}
	}
	a, b := w.RobotCount(world.TeamA), w.RobotCount(world.TeamB)
	if a == 0 && b == 0 {
		return e.tiebreak(ReasonAnnihilation)
	}
	for _, t := range []world.Team{world.TeamA, world.TeamB} {
		if w.RobotCount(t) == 0 && w.TeamVotes(t) < w.TeamVotes(t.Opponent()) {
			return &Result{Winner: t.Opponent(), Reason: ReasonElimination, Round: round}
		}
	}
	if round >= w.Tuning().MaxRounds {
		return e.tiebreak("")
	}
	return nil
}

// tiebreak ranks by votes, then enlightenment center count, then total
// influence; Team A wins a full tie. A non-empty reason overrides the
// criterion name.
func (e *Engine) tiebreak(reason string) *Result {
	sa, sb := e.w.Summary(world.TeamA), e.w.Summary(world.TeamB)
	pick := func(x, y int) world.Team {
		if x > y {
			return world.TeamA
		}
		return world.TeamB
	}
	res := &Result{Winner: world.TeamA, Reason: ReasonMaxRoundsDefault, Round: e.w.Round()}
	switch {
	case sa.Votes != sb.Votes:
		res.Winner, res.Reason = pick(sa.Votes, sb.Votes), ReasonMaxRoundsVotes
	case sa.ECCount != sb.ECCount:
		res.Winner, res.Reason = pick(sa.ECCount, sb.ECCount), ReasonMaxRoundsECs
	case sa.TotalInfluence != sb.TotalInfluence:
		res.Winner, res.Reason = pick(sa.TotalInfluence, sb.TotalInfluence), ReasonMaxRoundsInf
	}
	if reason != "" {
		res.Reason = reason
	}
	return res
}

// commit applies a validated effect and logs it. An apply failure means the
// resolver and the world disagree; the match cannot continue.
func (e *Engine) commit(eff ability.Effect) error {
	for _, d := range eff.Deltas {
		if err := e.w.Apply(d); err != nil {
			e.fatal = fmt.Errorf("round %d: %w", e.w.Round(), err)
			return e.fatal
		}
		switch d := d.(type) {
		case world.MoveDelta:
			e.log.Moved(d.ID, d.To)
		case world.PlaceDelta:
			r, _ := e.w.Robot(d.Robot.ID)
			e.log.Spawned(bodyOf(r))
		case world.RemoveDelta:
			e.log.Died(d.ID)
			e.forget(d.ID)
		}
	}
	for _, r := range eff.Records {
		e.log.Record(r.Actor, r.Kind, r.Target)
	}
	return nil
}
