// Package observer streams a running match to spectators over websocket.
// Spectators receive the same lines as the persisted match log.
package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"battlecode.ai/internal/protocol"
	"battlecode.ai/internal/sim/replay"
)

const TypeSubscribe = "SUBSCRIBE"

// SubscribeMsg opens a feed. Rounds before FromRound are skipped; the header
// is always sent first.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	FromRound       int    `json:"from_round,omitempty"`
}

// Hub is a replay.Sink that fans lines out to spectators. It keeps every
// line so late subscribers catch up from the start.
type Hub struct {
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu     sync.Mutex
	header []byte
	rounds [][]byte
	footer []byte
	subs   map[uint64]*subscriber
}

type subscriber struct {
	from int
	out  chan []byte
}

var _ replay.Sink = (*Hub)(nil)

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(log.Writer(), "[observer] ", log.LstdFlags)
	}
	return &Hub{
		log:  logger,
		subs: map[uint64]*subscriber{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (h *Hub) WriteHeader(hd replay.MatchHeader) error {
	b, err := json.Marshal(replay.Line{Type: replay.LineHeader, Header: &hd})
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.header = b
	h.broadcastLocked(b, 0)
	return nil
}

func (h *Hub) WriteRound(e replay.RoundEntry) error {
	b, err := json.Marshal(replay.Line{Type: replay.LineRound, Round: &e})
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rounds = append(h.rounds, b)
	h.broadcastLocked(b, e.Round)
	return nil
}

func (h *Hub) WriteFooter(f replay.MatchFooter) error {
	b, err := json.Marshal(replay.Line{Type: replay.LineFooter, Footer: &f})
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.footer = b
	h.broadcastLocked(b, 0)
	return nil
}

// broadcastLocked drops the line for spectators that fall behind; they can
// resubscribe with from_round to catch up.
func (h *Hub) broadcastLocked(b []byte, round int) {
	for _, s := range h.subs {
		if round > 0 && round < s.from {
			continue
		}
		select {
		case s.out <- b:
		default:
		}
	}
}

func (h *Hub) subscribe(from int) (uint64, *subscriber, [][]byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID.Add(1)
	s := &subscriber{from: from, out: make(chan []byte, 256)}
	h.subs[id] = s

	var backlog [][]byte
	if h.header != nil {
		backlog = append(backlog, h.header)
	}
	for _, b := range h.rounds {
		var l struct {
			Round struct {
				Round int `json:"round"`
			} `json:"round"`
		}
		if from > 0 && json.Unmarshal(b, &l) == nil && l.Round.Round < from {
			continue
		}
		backlog = append(backlog, b)
	}
	if h.footer != nil {
		backlog = append(backlog, h.footer)
	}
	return id, s, backlog
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// Subscribers is the number of connected spectators.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// HeaderHandler serves the match header as JSON, or 404 before the match
// starts.
func (h *Hub) HeaderHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h.mu.Lock()
		b := h.header
		h.mu.Unlock()
		if b == nil {
			http.Error(rw, "match not started", http.StatusNotFound)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write(b)
	}
}

func (h *Hub) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		sub, err := readSubscribe(conn)
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()), time.Now().Add(time.Second))
			return
		}

		id, s, backlog := h.subscribe(sub.FromRound)
		defer h.unsubscribe(id)
		h.log.Printf("spectator O%d subscribed from round %d", id, sub.FromRound)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for _, b := range backlog {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-s.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop only detects disconnects.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func readSubscribe(conn *websocket.Conn) (SubscribeMsg, error) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return SubscribeMsg{}, err
	}
	var sub SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return SubscribeMsg{}, errors.New("bad subscribe")
	}
	if sub.Type != TypeSubscribe {
		return SubscribeMsg{}, errors.New("expected SUBSCRIBE")
	}
	if sub.ProtocolVersion != protocol.Version {
		return SubscribeMsg{}, fmt.Errorf("bad protocol_version %q", sub.ProtocolVersion)
	}
	if sub.FromRound < 0 {
		sub.FromRound = 0
	}
	return sub, nil
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
