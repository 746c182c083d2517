package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"battlecode.ai/internal/protocol"
	"battlecode.ai/internal/sim/engine"
	"battlecode.ai/internal/sim/geom"
	"battlecode.ai/internal/sim/world"
)

// MatchInfo is what every bot learns in WELCOME.
type MatchInfo struct {
	MatchID       string
	TuningDigest  string
	Width         int
	Height        int
	MaxRounds     int
	TurnBudget    int
	TurnTimeoutMs int
}

// ErrDisconnected is returned for a robot whose team has no live bot
// connection. The engine treats it as a fault.
var ErrDisconnected = errors.New("ws: team not connected")

// Server accepts one bot connection per team and executes robot-turns over
// it. Connection goroutines only move bytes; RunTurn is called on the engine
// goroutine and is the only place that touches the Controller.
type Server struct {
	info MatchInfo
	log  *log.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions [world.NumTeams]*session
	joined   chan struct{}
}

type session struct {
	team world.Team
	name string
	out  chan []byte
	in   chan []byte
	done chan struct{}
}

var _ engine.Executor = (*Server)(nil)

func NewServer(info MatchInfo, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[ws] ", log.LstdFlags)
	}
	return &Server{
		info:   info,
		log:    logger,
		joined: make(chan struct{}, world.NumTeams),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		s.log.Printf("team %s joined as %q", sess.team, sess.name)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-sess.out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			select {
			case sess.in <- msg:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}

		// Cleanup.
		close(sess.done)
		s.mu.Lock()
		if s.sessions[sess.team] == sess {
			s.sessions[sess.team] = nil
		}
		s.mu.Unlock()
		s.log.Printf("team %s disconnected", sess.team)
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		_ = writeJSON(conn, errorMsg(protocol.ErrProtoBadRequest, err.Error()))
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = writeJSON(conn, errorMsg(protocol.ErrProtoVersion, "bad protocol_version"))
		return nil
	}
	if hello.BotName == "" {
		hello.BotName = "bot"
	}
	want, ok := world.ParseTeam(hello.Team)
	if !ok {
		_ = writeJSON(conn, errorMsg(protocol.ErrProtoBadRequest, fmt.Sprintf("bad team %q", hello.Team)))
		return nil
	}

	sess := &session{
		name: hello.BotName,
		out:  make(chan []byte, 16),
		in:   make(chan []byte, 64),
		done: make(chan struct{}),
	}
	if !s.claim(sess, want) {
		_ = writeJSON(conn, errorMsg(protocol.ErrTeamTaken, "no free team slot"))
		return nil
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		MatchID:         s.info.MatchID,
		Team:            sess.team.String(),
		TuningDigest:    s.info.TuningDigest,
		Width:           s.info.Width,
		Height:          s.info.Height,
		MaxRounds:       s.info.MaxRounds,
		TurnBudget:      s.info.TurnBudget,
		TurnTimeoutMs:   s.info.TurnTimeoutMs,
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.release(sess)
		return nil
	}
	s.joined <- struct{}{}
	return sess
}

// claim binds sess to the wanted team, or to the first free team when want
// is AnyTeam.
func (s *Server) claim(sess *session, want world.Team) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range []world.Team{world.TeamA, world.TeamB} {
		if want != world.AnyTeam && t != want {
			continue
		}
		if s.sessions[t] == nil {
			sess.team = t
			s.sessions[t] = sess
			return true
		}
	}
	return false
}

func (s *Server) release(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sess.team] == sess {
		s.sessions[sess.team] = nil
	}
}

func (s *Server) session(t world.Team) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !t.Valid() {
		return nil
	}
	return s.sessions[t]
}

// WaitForTeams blocks until both teams have completed the handshake.
func (s *Server) WaitForTeams(ctx context.Context) error {
	for i := 0; i < world.NumTeams; i++ {
		select {
		case <-s.joined:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// RunTurn sends TURN to the robot's team and serves CMD messages until the
// bot yields, the deadline passes or the budget is spent.
func (s *Server) RunTurn(ctx context.Context, c *engine.Controller) error {
	self := c.SelfInfo()
	team, _ := world.ParseTeam(self.Team)
	sess := s.session(team)
	if sess == nil {
		return ErrDisconnected
	}
	turn := protocol.TurnMsg{
		Type:            protocol.TypeTurn,
		ProtocolVersion: protocol.Version,
		Round:           c.Round(),
		Self:            self,
		Game:            c.GameInfo(),
		Nearby:          engine.RobotInfos(c.SenseNearbyRobotsAround(geom.Location{X: self.Loc[0], Y: self.Loc[1]}, -1, world.AnyTeam)),
	}
	if err := s.send(ctx, sess, turn); err != nil {
		return err
	}

	for {
		var msg []byte
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sess.done:
			return ErrDisconnected
		case msg = <-sess.in:
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeCmd:
			var cmd protocol.CmdMsg
			if err := json.Unmarshal(msg, &cmd); err != nil {
				_ = s.send(ctx, sess, errorMsg(protocol.ErrProtoBadRequest, err.Error()))
				continue
			}
			if cmd.Robot != self.ID || cmd.Round != turn.Round {
				// Left over from an earlier turn.
				continue
			}
			res := c.Do(cmd.Cmd)
			if err := s.send(ctx, sess, protocol.ResultMsg{
				Type:            protocol.TypeResult,
				ProtocolVersion: protocol.Version,
				Seq:             cmd.Seq,
				Result:          res,
			}); err != nil {
				return err
			}
			if c.Exhausted() {
				return engine.ErrExhausted
			}
		case protocol.TypeYield:
			var y protocol.YieldMsg
			if err := json.Unmarshal(msg, &y); err != nil || y.Robot != self.ID || y.Round != turn.Round {
				continue
			}
			if err := protocol.ValidateProfile(y.Profile); err != nil {
				s.log.Printf("round %d robot %d profile: %v", y.Round, y.Robot, err)
			}
			return nil
		}
	}
}

// Finish tells every connected bot the result.
func (s *Server) Finish(res engine.Result) {
	msg := protocol.MatchOverMsg{
		Type:            protocol.TypeMatchOver,
		ProtocolVersion: protocol.Version,
		Winner:          res.Winner.String(),
		Reason:          res.Reason,
		Round:           res.Round,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, t := range []world.Team{world.TeamA, world.TeamB} {
		if sess := s.session(t); sess != nil {
			_ = s.send(ctx, sess, msg)
		}
	}
}

func (s *Server) send(ctx context.Context, sess *session, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case sess.out <- b:
		return nil
	case <-sess.done:
		return ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func errorMsg(code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{Type: protocol.TypeError, ProtocolVersion: protocol.Version, Code: code, Message: message}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
