package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"

	persistlog "battlecode.ai/internal/persistence/log"
	"battlecode.ai/internal/persistence/snapshot"
	"battlecode.ai/internal/protocol"
	"battlecode.ai/internal/sim/replay"
	"battlecode.ai/internal/sim/world"
)

func main() {
	var (
		logPath   = flag.String("log", "", "path to a match .jsonl.zst")
		snapPath  = flag.String("snapshot", "", "cross-check bodies against this snapshot (optional)")
		noSchema  = flag.Bool("no_schema", false, "skip JSON schema validation of each line")
		toRound   = flag.Int("to_round", 0, "stop after this round (inclusive, optional)")
		showKinds = flag.Bool("kinds", true, "print action counts per kind")
	)
	flag.Parse()

	if *logPath == "" {
		fmt.Fprintln(os.Stderr, "missing -log")
		os.Exit(2)
	}

	if !*noSchema {
		n := 0
		err := persistlog.ScanLines(*logPath, func(line []byte) error {
			n++
			if err := protocol.ValidateMatchLogLine(line); err != nil {
				return &persistlog.LineError{Line: n, Err: err}
			}
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "schema:", err)
			os.Exit(1)
		}
	}

	m, err := persistlog.ReadMatch(*logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read log:", err)
		os.Exit(1)
	}
	h := m.Header
	fmt.Printf("match=%s protocol=%s map=%dx%d seed=%d bodies=%d teams=%s/%s tuning=%s\n",
		h.MatchID, h.ProtocolVersion, h.Width, h.Height, h.Seed, len(h.Bodies), h.Teams[0], h.Teams[1], short(h.TuningDigest))

	var snap *snapshot.SnapshotV1
	if *snapPath != "" {
		s, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		if s.Header.MatchID != "" && h.MatchID != "" && s.Header.MatchID != h.MatchID {
			fmt.Fprintf(os.Stderr, "snapshot belongs to match %s\n", s.Header.MatchID)
			os.Exit(1)
		}
		snap = &s
	}

	pb, err := replay.NewPlayback(h)
	if err != nil {
		fmt.Fprintln(os.Stderr, "playback:", err)
		os.Exit(1)
	}
	kinds := make(map[replay.Kind]int)
	checked := false
	for _, e := range m.Rounds {
		if *toRound != 0 && e.Round > *toRound {
			break
		}
		if snap != nil && pb.Round()+1 == snap.Header.Round {
			if err := compareSnapshot(pb.Bodies(), *snap); err != nil {
				fmt.Fprintln(os.Stderr, "snapshot:", err)
				os.Exit(1)
			}
			checked = true
		}
		if err := pb.Apply(e); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		for _, a := range e.Actions {
			kinds[a.Kind]++
		}
	}
	if snap != nil && !checked && pb.Round()+1 == snap.Header.Round {
		if err := compareSnapshot(pb.Bodies(), *snap); err != nil {
			fmt.Fprintln(os.Stderr, "snapshot:", err)
			os.Exit(1)
		}
		checked = true
	}

	fmt.Printf("replay ok: rounds=%d last=%d bodies=%d\n", len(m.Rounds), pb.Round(), len(pb.Bodies()))
	if *showKinds {
		for _, k := range replay.Kinds() {
			fmt.Printf("  %-14s %d\n", k, kinds[k])
		}
		// Kinds from a newer writer are counted but have no name here.
		var unknown []replay.Kind
		for k := range kinds {
			if !k.Known() {
				unknown = append(unknown, k)
			}
		}
		sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
		for _, k := range unknown {
			fmt.Printf("  %-14s %d\n", k, kinds[k])
		}
	}
	if snap != nil {
		if checked {
			fmt.Printf("snapshot round=%d matches log\n", snap.Header.Round)
		} else {
			fmt.Printf("snapshot round=%d not covered by log\n", snap.Header.Round)
		}
	}
	if f := m.Footer; f != nil {
		fmt.Printf("winner=%s reason=%s final_round=%d\n", world.Team(f.Winner), f.Reason, f.FinalRound)
	} else {
		fmt.Println("match did not finish")
	}
}

// compareSnapshot checks that the bodies rebuilt from the log agree with the
// robots stored in snap on id, team, type and location.
func compareSnapshot(bodies []replay.Body, snap snapshot.SnapshotV1) error {
	if len(bodies) != len(snap.Robots) {
		return fmt.Errorf("round %d: log has %d bodies, snapshot has %d robots", snap.Header.Round, len(bodies), len(snap.Robots))
	}
	byID := make(map[int32]snapshot.RobotV1, len(snap.Robots))
	for _, r := range snap.Robots {
		byID[r.ID] = r
	}
	var errs []error
	for _, b := range bodies {
		r, ok := byID[b.ID]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("body %d missing from snapshot", b.ID))
		case r.Team != b.Team || r.Type != b.Type:
			errs = append(errs, fmt.Errorf("body %d: team/type %d/%d vs %d/%d", b.ID, b.Team, b.Type, r.Team, r.Type))
		case r.X != b.Loc.X || r.Y != b.Loc.Y:
			errs = append(errs, fmt.Errorf("body %d: at %v, snapshot has (%d,%d)", b.ID, b.Loc, r.X, r.Y))
		}
	}
	return errors.Join(errs...)
}

func short(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
