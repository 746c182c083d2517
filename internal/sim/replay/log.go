package replay

import (
	"errors"
	"fmt"

	"battlecode.ai/internal/sim/geom"
)

// Log is the append-only action stream of one match. Only the turn engine
// writes to it; finished rounds are handed to every Sink.
type Log struct {
	sinks []Sink

	header  *MatchHeader
	entries []RoundEntry
	cur     *RoundEntry
}

func NewLog(sinks ...Sink) *Log {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Log{sinks: out}
}

func (l *Log) WriteHeader(h MatchHeader) error {
	if l.header != nil {
		return errors.New("replay: header already written")
	}
	hh := h
	l.header = &hh
	var errs []error
	for _, s := range l.sinks {
		if err := s.WriteHeader(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Log) WriteFooter(f MatchFooter) error {
	var errs []error
	for _, s := range l.sinks {
		if err := s.WriteFooter(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Log) Header() (MatchHeader, bool) {
	if l.header == nil {
		return MatchHeader{}, false
	}
	return *l.header, true
}

// Begin opens the entry for round. Rounds must be contiguous.
func (l *Log) Begin(round int) error {
	if l.cur != nil {
		return fmt.Errorf("replay: round %d still open", l.cur.Round)
	}
	if n := len(l.entries); n > 0 && l.entries[n-1].Round+1 != round {
		return fmt.Errorf("replay: round %d does not follow %d", round, l.entries[n-1].Round)
	}
	l.cur = &RoundEntry{Round: round, Actions: []ActionRecord{}, VoteWinner: -1}
	return nil
}

func (l *Log) open() *RoundEntry {
	if l.cur == nil {
		panic("replay: no open round")
	}
	return l.cur
}

func (l *Log) Record(actor int32, kind Kind, target int64) ActionRecord {
	e := l.open()
	r := ActionRecord{Round: e.Round, Actor: actor, Kind: kind, Target: target}
	e.Actions = append(e.Actions, r)
	return r
}

func (l *Log) Moved(id int32, loc geom.Location) {
	e := l.open()
	e.Moved = append(e.Moved, Movement{ID: id, Loc: loc})
}

func (l *Log) Spawned(b Body) {
	e := l.open()
	e.Spawned = append(e.Spawned, b)
}

func (l *Log) Died(id int32) {
	e := l.open()
	e.Died = append(e.Died, id)
}

func (l *Log) Dot(d IndicatorDot) {
	e := l.open()
	e.Dots = append(e.Dots, d)
}

func (l *Log) Line(ln IndicatorLine) {
	e := l.open()
	e.Lines = append(e.Lines, ln)
}

// End closes the open round and forwards it to the sinks. The entry is kept
// even when a sink fails; the returned error only reports sink failures.
func (l *Log) End(teams [2]TeamStats, voteWinner int8, digest string) (RoundEntry, error) {
	e := l.open()
	e.Teams = teams
	e.VoteWinner = voteWinner
	e.Digest = digest
	l.entries = append(l.entries, *e)
	l.cur = nil

	out := l.entries[len(l.entries)-1]
	var errs []error
	for _, s := range l.sinks {
		if err := s.WriteRound(out); err != nil {
			errs = append(errs, fmt.Errorf("round %d: %w", out.Round, err))
		}
	}
	return out, errors.Join(errs...)
}

// Records returns every action record in log order.
func (l *Log) Records() []ActionRecord {
	n := 0
	for _, e := range l.entries {
		n += len(e.Actions)
	}
	out := make([]ActionRecord, 0, n)
	for _, e := range l.entries {
		out = append(out, e.Actions...)
	}
	return out
}

func (l *Log) Len() int { return len(l.entries) }
