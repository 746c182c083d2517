package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"battlecode.ai/internal/persistence/indexdb"
	persistlog "battlecode.ai/internal/persistence/log"
	"battlecode.ai/internal/persistence/snapshot"
	"battlecode.ai/internal/sim/engine"
	"battlecode.ai/internal/sim/mapgen"
	"battlecode.ai/internal/sim/replay"
	"battlecode.ai/internal/sim/tuning"
	"battlecode.ai/internal/sim/world"
	"battlecode.ai/internal/transport/observer"
	"battlecode.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address for bots and spectators (empty: run built-in players locally)")
		matchID    = flag.String("match", "", "match id (default: random uuid)")
		seed       = flag.Int64("seed", 1337, "map seed (used only when starting a fresh match)")
		width      = flag.Int("width", 32, "map width")
		height     = flag.Int("height", 32, "map height")
		centers    = flag.Int("centers", 1, "enlightenment centers per team")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite match index")
		teamA      = flag.String("team_a", "A", "display name of team A")
		teamB      = flag.String("team_b", "B", "display name of team B")
		maxRounds  = flag.Int("max_rounds", 0, "override tuning max_rounds (0: keep)")

		snapPath      = flag.String("snapshot", "", "resume from this snapshot (optional)")
		loadLatest    = flag.Bool("load_latest", false, "resume from the newest snapshot of -match")
		snapshotEvery = flag.Int("snapshot_every", 100, "write a snapshot every N rounds (0: never)")
		checkInv      = flag.Bool("check_invariants", false, "verify the cell/robot bijection after every round")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[match] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *maxRounds > 0 {
		tune.MaxRounds = *maxRounds
	}

	// Create world (fresh or resumed from snapshot).
	var w *world.State
	id := strings.TrimSpace(*matchID)
	p := strings.TrimSpace(*snapPath)
	if p == "" && *loadLatest {
		if id == "" {
			logger.Fatalf("-load_latest needs -match")
		}
		p = latestSnapshot(filepath.Join(*dataDir, "matches", id, "snapshots"))
		if p == "" {
			logger.Printf("no snapshot for match=%s; starting fresh", id)
		}
	}
	if p != "" {
		snap, err := snapshot.ReadSnapshot(p)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if id != "" && snap.Header.MatchID != "" && snap.Header.MatchID != id {
			logger.Fatalf("snapshot match id mismatch: flag=%s snap=%s", id, snap.Header.MatchID)
		}
		if id == "" {
			id = snap.Header.MatchID
		}
		w, err = world.ImportSnapshot(world.Config{Tuning: tune, Field: world.NewNoiseField(snap.Seed, tune.Pollution)}, snap)
		if err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s round=%d", filepath.Base(p), w.Round())
	} else {
		cfg := mapgen.DefaultConfig()
		cfg.Seed = *seed
		cfg.Width, cfg.Height = *width, *height
		cfg.CentersPerTeam = *centers
		m, err := mapgen.Generate(cfg)
		if err != nil {
			logger.Fatalf("map: %v", err)
		}
		w, err = world.New(world.Config{Tuning: tune, Field: world.NewNoiseField(*seed, tune.Pollution)}, m)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	matchDir := filepath.Join(*dataDir, "matches", id)
	logger.Printf("match=%s map=%dx%d robots=%d tuning=%s", id, w.Width(), w.Height(), w.NumRobots(), tune.Digest()[:12])

	ctx, cancel := signalContext()
	defer cancel()

	// Outputs. The JSONL log is the source of truth; the index is best effort.
	logPath := persistlog.MatchPath(*dataDir, id)
	if w.Round() > 1 {
		logPath = filepath.Join(matchDir, fmt.Sprintf("resume-%06d.jsonl.zst", w.Round()))
	}
	matchLog := persistlog.NewMatchLogger(logPath)
	defer matchLog.Close()
	prog := &progress{}
	sinks := []replay.Sink{matchLog, prog}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		sinks = append(sinks, idx.Sink(id))
	}

	hub := observer.NewHub(log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds))
	sinks = append(sinks, hub)

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		for snap := range snapCh {
			path := snapshot.Path(filepath.Join(matchDir, "snapshots"), snap.Header.Round)
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			idx.RecordSnapshot(path, snap)
		}
	}()

	var (
		exec   engine.Executor
		server *ws.Server
	)
	if strings.TrimSpace(*addr) == "" {
		players := demoPlayers(tune.EmpowerRadiusSquared)
		exec = engine.NewLocalExecutor(players, players)
	} else {
		server = ws.NewServer(ws.MatchInfo{
			MatchID:       id,
			TuningDigest:  tune.Digest(),
			Width:         w.Width(),
			Height:        w.Height(),
			MaxRounds:     tune.MaxRounds,
			TurnBudget:    tune.TurnComputeBudget,
			TurnTimeoutMs: tune.TurnTimeoutMs,
		}, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))
		exec = server
	}

	eng, err := engine.New(engine.Config{
		MatchID:         id,
		Teams:           [2]string{*teamA, *teamB},
		Executor:        exec,
		Sinks:           sinks,
		Logger:          logger,
		SnapshotEvery:   *snapshotEvery,
		SnapshotSink:    snapCh,
		CheckInvariants: *checkInv,
	}, w)
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}

	if server != nil {
		srv := &http.Server{Addr: *addr, Handler: newMux(server, hub, prog, idx)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("http: %v", err)
				cancel()
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
		logger.Printf("waiting for bots on %s/v1/ws", *addr)
		if err := server.WaitForTeams(ctx); err != nil {
			logger.Printf("no match: %v", err)
			return
		}
	}

	start := time.Now()
	res, err := eng.Run(ctx)
	close(snapCh)
	<-snapDone
	if err != nil {
		logger.Printf("match stopped at round %d: %v", w.Round(), err)
		return
	}
	if server != nil {
		server.Finish(res)
	}
	logger.Printf("winner=%s reason=%s round=%d logged_rounds=%d compute=%d elapsed=%s",
		res.Winner, res.Reason, res.Round, eng.Log().Len(), eng.ComputeCounter(), time.Since(start).Round(time.Millisecond))
	if idx != nil {
		st := idx.Stats()
		if st.DropRoundTotal+st.DropMatchTotal+st.DropSnapshotTotal > 0 {
			logger.Printf("index drops: rounds=%d match=%d snapshots=%d", st.DropRoundTotal, st.DropMatchTotal, st.DropSnapshotTotal)
		}
	}
}

func newMux(server *ws.Server, hub *observer.Hub, prog *progress, idx *indexdb.SQLiteIndex) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/ws", server.Handler())
	mux.HandleFunc("/v1/observe", hub.WSHandler())
	mux.HandleFunc("/v1/header", hub.HeaderHandler())
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(rw, "# HELP battlecode_round Last round written to the match log.\n")
		fmt.Fprintf(rw, "# TYPE battlecode_round gauge\n")
		fmt.Fprintf(rw, "battlecode_round %d\n", prog.round.Load())
		fmt.Fprintf(rw, "# HELP battlecode_actions_total Action records written.\n")
		fmt.Fprintf(rw, "# TYPE battlecode_actions_total counter\n")
		fmt.Fprintf(rw, "battlecode_actions_total %d\n", prog.actions.Load())
		fmt.Fprintf(rw, "# HELP battlecode_match_over Whether the footer has been written.\n")
		fmt.Fprintf(rw, "# TYPE battlecode_match_over gauge\n")
		fmt.Fprintf(rw, "battlecode_match_over %d\n", prog.over.Load())
		fmt.Fprintf(rw, "# HELP battlecode_spectators Connected spectators.\n")
		fmt.Fprintf(rw, "# TYPE battlecode_spectators gauge\n")
		fmt.Fprintf(rw, "battlecode_spectators %d\n", hub.Subscribers())
		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP battlecode_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE battlecode_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "battlecode_index_queue_depth %d\n", st.QueueDepth)
			fmt.Fprintf(rw, "# HELP battlecode_index_drops_total Index writes dropped under load.\n")
			fmt.Fprintf(rw, "# TYPE battlecode_index_drops_total counter\n")
			fmt.Fprintf(rw, "battlecode_index_drops_total{kind=%q} %d\n", "round", st.DropRoundTotal)
			fmt.Fprintf(rw, "battlecode_index_drops_total{kind=%q} %d\n", "match", st.DropMatchTotal)
			fmt.Fprintf(rw, "battlecode_index_drops_total{kind=%q} %d\n", "snapshot", st.DropSnapshotTotal)
		}
	})
	return mux
}

// progress mirrors the engine's output for the metrics endpoint, which runs on
// http goroutines and must not touch the world.
type progress struct {
	round   atomic.Int64
	actions atomic.Int64
	over    atomic.Int32
}

func (p *progress) WriteHeader(h replay.MatchHeader) error { return nil }

func (p *progress) WriteRound(e replay.RoundEntry) error {
	p.round.Store(int64(e.Round))
	p.actions.Add(int64(len(e.Actions)))
	return nil
}

func (p *progress) WriteFooter(f replay.MatchFooter) error {
	p.over.Store(1)
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

// latestSnapshot finds the newest round-NNNNNN.snap.zst in dir.
func latestSnapshot(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	bestRound := -1
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "round-") || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		round, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "round-"), ".snap.zst"))
		if err != nil {
			continue
		}
		if round > bestRound {
			bestRound = round
			best = filepath.Join(dir, name)
		}
	}
	return best
}
