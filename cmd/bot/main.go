package main

import (
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"battlecode.ai/internal/protocol"
	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/mapgen"
	"battlecode.ai/internal/sim/unit"
)

func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "bot", "bot name")
		team = flag.String("team", "A", "team to play (A or B)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		BotName:         *name,
		Team:            *team,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	b := &bot{conn: conn, log: logger}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			b.width, b.height = w.Width, w.Height
			logger.Printf("WELCOME match=%s team=%s map=%dx%d max_rounds=%d budget=%d", w.MatchID, w.Team, w.Width, w.Height, w.MaxRounds, w.TurnBudget)

		case protocol.TypeTurn:
			var t protocol.TurnMsg
			if err := json.Unmarshal(msg, &t); err != nil {
				continue
			}
			if err := b.turn(&t); err != nil {
				logger.Printf("turn robot=%d round=%d: %v", t.Self.ID, t.Round, err)
				return
			}

		case protocol.TypeMatchOver:
			var m protocol.MatchOverMsg
			if err := json.Unmarshal(msg, &m); err == nil {
				logger.Printf("MATCH_OVER winner=%s reason=%s round=%d", m.Winner, m.Reason, m.Round)
			}
			return

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err == nil {
				logger.Printf("ERROR %s: %s", e.Code, e.Message)
			}
			return
		}
	}
}

type bot struct {
	conn *websocket.Conn
	log  *log.Logger
	seq  int

	round         int
	width, height int
}

var errMatchOver = errors.New("match over")

// call sends one command for robot and waits for its RESULT. Turns are
// strictly sequential, so the next message must be the reply.
func (b *bot) call(robot int32, cmd protocol.Command) (protocol.Result, error) {
	b.seq++
	if err := b.conn.WriteJSON(protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		Seq:             b.seq,
		Round:           b.round,
		Robot:           robot,
		Cmd:             cmd,
	}); err != nil {
		return protocol.Result{}, err
	}
	for {
		_, msg, err := b.conn.ReadMessage()
		if err != nil {
			return protocol.Result{}, err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeResult:
			var r protocol.ResultMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				return protocol.Result{}, err
			}
			if r.Seq != b.seq {
				continue
			}
			return r.Result, nil
		case protocol.TypeMatchOver, protocol.TypeError:
			return protocol.Result{}, errMatchOver
		}
	}
}

func (b *bot) counter(robot int32) int64 {
	r, err := b.call(robot, protocol.Command{Op: protocol.OpCounter})
	if err != nil {
		return 0
	}
	return r.Value
}

func (b *bot) turn(t *protocol.TurnMsg) error {
	b.round = t.Round
	id := t.Self.ID
	profile := []protocol.ProfilerEvent{{Open: true, At: b.counter(id), Frame: 0}}

	var err error
	switch ty, _ := unit.ParseType(t.Self.UnitType); ty {
	case unit.EnlightenmentCenter:
		err = b.center(t)
	case unit.Slanderer:
		// stay put
	default:
		err = b.unitTurn(t)
	}
	if err != nil {
		return err
	}

	profile = append(profile, protocol.ProfilerEvent{Open: false, At: b.counter(id), Frame: 0})
	return b.conn.WriteJSON(protocol.YieldMsg{
		Type:            protocol.TypeYield,
		ProtocolVersion: protocol.Version,
		Round:           t.Round,
		Robot:           id,
		Profile:         profile,
	})
}

func (b *bot) center(t *protocol.TurnMsg) error {
	id := t.Self.ID
	if bid := t.Self.Influence / 25; bid > 0 {
		if _, err := b.call(id, protocol.Command{Op: protocol.OpBid, Amount: bid}); err != nil {
			return err
		}
	}
	kind, need := unit.Muckraker, 1
	if t.Round%3 == 0 {
		kind, need = unit.Politician, t.Self.Influence/4
	}
	if need < 1 {
		return nil
	}
	for _, d := range geom.Directions() {
		r, err := b.call(id, protocol.Command{Op: protocol.OpBuild, UnitType: kind.String(), Dir: d.String(), Influence: need})
		if err != nil {
			return err
		}
		if r.OK || r.Code == protocol.ErrNotReady || r.Code == protocol.ErrInsufficientInfluence {
			return nil
		}
	}
	return nil
}

func (b *bot) unitTurn(t *protocol.TurnMsg) error {
	id := t.Self.ID
	me := geom.Location{X: t.Self.Loc[0], Y: t.Self.Loc[1]}
	for _, r := range t.Nearby {
		if r.Team == t.Self.Team {
			continue
		}
		if t.Self.UnitType == unit.Muckraker.String() && r.UnitType == unit.Slanderer.String() {
			res, err := b.call(id, protocol.Command{Op: protocol.OpExpose, Loc: &r.Loc})
			if err != nil || res.OK {
				return err
			}
		}
		if t.Self.UnitType == unit.Politician.String() {
			them := geom.Location{X: r.Loc[0], Y: r.Loc[1]}
			if me.DistanceSquaredTo(them) <= 2 {
				res, err := b.call(id, protocol.Command{Op: protocol.OpEmpower})
				if err != nil || res.OK {
					return err
				}
			}
		}
	}
	if _, err := b.call(id, protocol.Command{Op: protocol.OpSetFlag, Value: int(t.Round % 1000)}); err != nil {
		return err
	}

	x, y := mapgen.Mirror(me.X, me.Y, b.width, b.height)
	d := geom.DirectionTo(me, geom.Location{X: x, Y: y})
	if d == geom.Center {
		return nil
	}
	for i := 0; i < 8; i++ {
		r, err := b.call(id, protocol.Command{Op: protocol.OpMove, Dir: d.String()})
		if err != nil {
			return err
		}
		if r.OK || r.Code == protocol.ErrNotReady {
			return nil
		}
		d = d.RotateRight()
	}
	return nil
}
