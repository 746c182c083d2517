package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"battlecode.ai/internal/persistence/snapshot"
	"battlecode.ai/internal/sim/engine"
	"battlecode.ai/internal/sim/mapgen"
	"battlecode.ai/internal/sim/replay"
	"battlecode.ai/internal/sim/tuning"
	"battlecode.ai/internal/sim/world"
	"battlecode.ai/internal/transport/observer"
	"battlecode.ai/internal/transport/ws"
)

func TestLatestSnapshot(t *testing.T) {
	dir := t.TempDir()
	if got := latestSnapshot(dir); got != "" {
		t.Fatalf("empty dir: got %q", got)
	}
	for _, name := range []string{"round-000100.snap.zst", "round-000900.snap.zst", "round-000250.snap.zst", "round-x.snap.zst", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if got, want := latestSnapshot(dir), filepath.Join(dir, "round-000900.snap.zst"); got != want {
		t.Fatalf("latest=%q want %q", got, want)
	}
	if got := latestSnapshot(filepath.Join(dir, "missing")); got != "" {
		t.Fatalf("missing dir: got %q", got)
	}
}

func TestDemoPlayersFinishMatch(t *testing.T) {
	tun := tuning.Defaults()
	tun.MaxRounds = 120
	cfg := mapgen.DefaultConfig()
	cfg.Seed = 3
	cfg.Width, cfg.Height = 20, 20
	m, err := mapgen.Generate(cfg)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	w, err := world.New(world.Config{Tuning: tun, Field: world.NewNoiseField(cfg.Seed, tun.Pollution)}, m)
	if err != nil {
		t.Fatalf("world: %v", err)
	}

	prog := &progress{}
	snaps := make(chan snapshot.SnapshotV1, 16)
	players := demoPlayers(tun.EmpowerRadiusSquared)
	eng, err := engine.New(engine.Config{
		MatchID:         "demo",
		Teams:           [2]string{"A", "B"},
		Executor:        engine.NewLocalExecutor(players, players),
		Sinks:           []replay.Sink{prog},
		Logger:          log.New(io.Discard, "", 0),
		SnapshotEvery:   50,
		SnapshotSink:    snaps,
		CheckInvariants: true,
	}, w)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	res, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Round < 1 || res.Round > tun.MaxRounds {
		t.Fatalf("result round=%d", res.Round)
	}
	if prog.over.Load() != 1 || int(prog.round.Load()) != res.Round {
		t.Fatalf("progress round=%d over=%d result=%+v", prog.round.Load(), prog.over.Load(), res)
	}
	if prog.actions.Load() == 0 {
		t.Fatalf("demo players took no actions")
	}
	if len(snaps) == 0 && res.Round > 50 {
		t.Fatalf("expected a snapshot")
	}
}

func TestMuxServesHealthAndMetrics(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	server := ws.NewServer(ws.MatchInfo{MatchID: "m"}, logger)
	hub := observer.NewHub(logger)
	prog := &progress{}
	_ = prog.WriteRound(replay.RoundEntry{Round: 7, Actions: make([]replay.ActionRecord, 3)})

	ts := httptest.NewServer(newMux(server, hub, prog, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("healthz status=%d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{"battlecode_round 7", "battlecode_actions_total 3", "battlecode_match_over 0", "battlecode_spectators 0"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}

	resp, err = http.Get(ts.URL + "/v1/header")
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("header before match: status=%d", resp.StatusCode)
	}
}
