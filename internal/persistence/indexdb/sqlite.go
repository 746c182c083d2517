package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"battlecode.ai/internal/persistence/snapshot"
	"battlecode.ai/internal/sim/replay"
)

// SQLiteIndex is a queryable secondary index of finished rounds. Writes go
// through a bounded queue to a single writer goroutine and are dropped when
// it falls behind; the JSONL match log remains the source of truth.
type SQLiteIndex struct {
	db *sqlx.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropMatch    atomic.Uint64
	dropRound    atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqHeader reqKind = iota + 1
	reqRound
	reqFooter
	reqSnapshot
)

type req struct {
	kind    reqKind
	matchID string

	header   replay.MatchHeader
	round    replay.RoundEntry
	footer   replay.MatchFooter
	snapshot snapshotRow
}

type snapshotRow struct {
	Round  int
	Path   string
	Robots int
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropMatchTotal    uint64
	DropRoundTotal    uint64
	DropSnapshotTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &SQLiteIndex{db: db, ch: make(chan req, queue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sqlx.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS matches (
			match_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			team_a TEXT NOT NULL,
			team_b TEXT NOT NULL,
			tuning_digest TEXT NOT NULL,
			start_round INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			winner INTEGER,
			reason TEXT,
			final_round INTEGER,
			finished_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			match_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			digest TEXT NOT NULL,
			votes_a INTEGER NOT NULL,
			votes_b INTEGER NOT NULL,
			robots_a INTEGER NOT NULL,
			robots_b INTEGER NOT NULL,
			vote_winner INTEGER NOT NULL,
			actions INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (match_id, round)
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			match_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor INTEGER NOT NULL,
			kind INTEGER NOT NULL,
			target INTEGER NOT NULL,
			PRIMARY KEY (match_id, round, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_actor_round ON actions(match_id, actor, round);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_kind ON actions(match_id, kind);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			match_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			path TEXT NOT NULL,
			robots INTEGER NOT NULL,
			PRIMARY KEY (match_id, round)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropMatchTotal:    s.dropMatch.Load(),
		DropRoundTotal:    s.dropRound.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

// Sink returns a replay.Sink that indexes one match.
func (s *SQLiteIndex) Sink(matchID string) *MatchSink {
	return &MatchSink{idx: s, matchID: matchID}
}

// RecordSnapshot indexes a snapshot file written for a match.
func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	s.enqueue(req{
		kind:     reqSnapshot,
		matchID:  snap.Header.MatchID,
		snapshot: snapshotRow{Round: snap.Header.Round, Path: path, Robots: len(snap.Robots)},
	}, &s.dropSnapshot)
}

type MatchSink struct {
	idx     *SQLiteIndex
	matchID string
}

var _ replay.Sink = (*MatchSink)(nil)

func (m *MatchSink) WriteHeader(h replay.MatchHeader) error {
	m.idx.enqueue(req{kind: reqHeader, matchID: m.matchID, header: h}, &m.idx.dropMatch)
	return nil
}

func (m *MatchSink) WriteRound(e replay.RoundEntry) error {
	m.idx.enqueue(req{kind: reqRound, matchID: m.matchID, round: e}, &m.idx.dropRound)
	return nil
}

func (m *MatchSink) WriteFooter(f replay.MatchFooter) error {
	m.idx.enqueue(req{kind: reqFooter, matchID: m.matchID, footer: f}, &m.idx.dropMatch)
	return nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertMatch, _ := s.db.Preparex(`INSERT OR REPLACE INTO matches(match_id,seed,width,height,team_a,team_b,tuning_digest,start_round,started_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	finishMatch, _ := s.db.Preparex(`UPDATE matches SET winner=?, reason=?, final_round=?, finished_at=? WHERE match_id=?`)
	insertRound, _ := s.db.Preparex(`INSERT OR REPLACE INTO rounds(match_id,round,digest,votes_a,votes_b,robots_a,robots_b,vote_winner,actions,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertAction, _ := s.db.Preparex(`INSERT OR REPLACE INTO actions(match_id,round,seq,actor,kind,target) VALUES(?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Preparex(`INSERT OR REPLACE INTO snapshots(match_id,round,path,robots) VALUES(?,?,?,?)`)
	stmts := []*sqlx.Stmt{insertMatch, finishMatch, insertRound, insertAction, insertSnapshot}
	defer func() {
		for _, st := range stmts {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sqlx.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sqlx.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmtx(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		switch r.kind {
		case reqHeader:
			h := r.header
			start := h.StartRound
			if start == 0 {
				start = 1
			}
			exec(insertMatch, r.matchID, h.Seed, h.Width, h.Height, h.Teams[0], h.Teams[1], h.TuningDigest, start, now)

		case reqRound:
			e := r.round
			raw, _ := json.Marshal(e)
			if !exec(insertRound, r.matchID, e.Round, e.Digest,
				e.Teams[0].Votes, e.Teams[1].Votes,
				e.Teams[0].RobotCount, e.Teams[1].RobotCount,
				e.VoteWinner, len(e.Actions), string(raw)) {
				continue
			}
			for i, a := range e.Actions {
				if !exec(insertAction, r.matchID, a.Round, i, a.Actor, int(a.Kind), a.Target) {
					break
				}
			}

		case reqFooter:
			f := r.footer
			exec(finishMatch, f.Winner, f.Reason, f.FinalRound, now, r.matchID)

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, r.matchID, sn.Round, sn.Path, sn.Robots)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}

// Read side.

var ErrNotFound = errors.New("indexdb: not found")

type MatchRow struct {
	MatchID      string         `db:"match_id"`
	Seed         int64          `db:"seed"`
	Width        int            `db:"width"`
	Height       int            `db:"height"`
	TeamA        string         `db:"team_a"`
	TeamB        string         `db:"team_b"`
	TuningDigest string         `db:"tuning_digest"`
	StartRound   int            `db:"start_round"`
	StartedAt    string         `db:"started_at"`
	Winner       sql.NullInt64  `db:"winner"`
	Reason       sql.NullString `db:"reason"`
	FinalRound   sql.NullInt64  `db:"final_round"`
	FinishedAt   sql.NullString `db:"finished_at"`
}

type RoundRow struct {
	MatchID    string `db:"match_id"`
	Round      int    `db:"round"`
	Digest     string `db:"digest"`
	VotesA     int    `db:"votes_a"`
	VotesB     int    `db:"votes_b"`
	RobotsA    int    `db:"robots_a"`
	RobotsB    int    `db:"robots_b"`
	VoteWinner int    `db:"vote_winner"`
	Actions    int    `db:"actions"`
}

type ActionRow struct {
	Round  int   `db:"round"`
	Seq    int   `db:"seq"`
	Actor  int32 `db:"actor"`
	Kind   int   `db:"kind"`
	Target int64 `db:"target"`
}

type SnapshotRow struct {
	Round  int    `db:"round"`
	Path   string `db:"path"`
	Robots int    `db:"robots"`
}

func (s *SQLiteIndex) Match(ctx context.Context, matchID string) (MatchRow, error) {
	var m MatchRow
	err := s.db.GetContext(ctx, &m, `SELECT * FROM matches WHERE match_id = ?`, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return m, ErrNotFound
	}
	return m, err
}

// Matches lists the most recently started matches first.
func (s *SQLiteIndex) Matches(ctx context.Context, limit int) ([]MatchRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []MatchRow
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM matches ORDER BY started_at DESC, match_id LIMIT ?`, limit)
	return out, err
}

func (s *SQLiteIndex) Rounds(ctx context.Context, matchID string, from, to int) ([]RoundRow, error) {
	var out []RoundRow
	err := s.db.SelectContext(ctx, &out, `SELECT match_id, round, digest, votes_a, votes_b, robots_a, robots_b, vote_winner, actions
		FROM rounds WHERE match_id = ? AND round BETWEEN ? AND ? ORDER BY round`, matchID, from, to)
	return out, err
}

// RoundEntry returns the full persisted entry of one round.
func (s *SQLiteIndex) RoundEntry(ctx context.Context, matchID string, round int) (replay.RoundEntry, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, `SELECT raw_json FROM rounds WHERE match_id = ? AND round = ?`, matchID, round)
	if errors.Is(err, sql.ErrNoRows) {
		return replay.RoundEntry{}, ErrNotFound
	}
	if err != nil {
		return replay.RoundEntry{}, err
	}
	var e replay.RoundEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return replay.RoundEntry{}, fmt.Errorf("round %d: %w", round, err)
	}
	return e, nil
}

func (s *SQLiteIndex) ActionsByActor(ctx context.Context, matchID string, actor int32) ([]ActionRow, error) {
	var out []ActionRow
	err := s.db.SelectContext(ctx, &out, `SELECT round, seq, actor, kind, target FROM actions
		WHERE match_id = ? AND actor = ? ORDER BY round, seq`, matchID, actor)
	return out, err
}

// KindCounts tallies actions per kind for a match.
func (s *SQLiteIndex) KindCounts(ctx context.Context, matchID string) (map[replay.Kind]int, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT kind, COUNT(*) FROM actions WHERE match_id = ? GROUP BY kind`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[replay.Kind]int{}
	for rows.Next() {
		var k, n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[replay.Kind(k)] = n
	}
	return out, rows.Err()
}

// LatestSnapshot returns the newest indexed snapshot of a match.
func (s *SQLiteIndex) LatestSnapshot(ctx context.Context, matchID string) (SnapshotRow, error) {
	var row SnapshotRow
	err := s.db.GetContext(ctx, &row, `SELECT round, path, robots FROM snapshots WHERE match_id = ? ORDER BY round DESC LIMIT 1`, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return row, ErrNotFound
	}
	return row, err
}
