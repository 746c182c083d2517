package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"battlecode.ai/internal/sim/replay"
)

// JSONLZstdWriter appends one JSON document per line to a zstd file.
type JSONLZstdWriter struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func NewJSONLZstdWriter(path string) *JSONLZstdWriter {
	return &JSONLZstdWriter{path: path}
}

func (w *JSONLZstdWriter) Path() string { return w.path }

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		if err := w.openLocked(); err != nil {
			return err
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

// MatchLogger persists a match as MATCH_HEADER, ROUND..., MATCH_FOOTER lines.
// The file is closed after the footer.
type MatchLogger struct{ w *JSONLZstdWriter }

var _ replay.Sink = (*MatchLogger)(nil)

func NewMatchLogger(path string) *MatchLogger {
	return &MatchLogger{w: NewJSONLZstdWriter(path)}
}

// MatchPath is the conventional log location for a match.
func MatchPath(dir, matchID string) string {
	return filepath.Join(dir, "matches", matchID+".jsonl.zst")
}

func (l *MatchLogger) WriteHeader(h replay.MatchHeader) error {
	return l.w.Write(replay.Line{Type: replay.LineHeader, Header: &h})
}

func (l *MatchLogger) WriteRound(e replay.RoundEntry) error {
	return l.w.Write(replay.Line{Type: replay.LineRound, Round: &e})
}

func (l *MatchLogger) WriteFooter(f replay.MatchFooter) error {
	if err := l.w.Write(replay.Line{Type: replay.LineFooter, Footer: &f}); err != nil {
		return err
	}
	return l.w.Close()
}

func (l *MatchLogger) Close() error { return l.w.Close() }

// ScanLines calls fn with every raw line of a compressed JSONL file.
func ScanLines(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// Match is a fully decoded match log. Footer is nil for a match that did
// not finish.
type Match struct {
	Header replay.MatchHeader
	Rounds []replay.RoundEntry
	Footer *replay.MatchFooter
}

func ReadMatch(path string) (Match, error) {
	var m Match
	seenHeader := false
	n := 0
	err := ScanLines(path, func(line []byte) error {
		n++
		var l replay.Line
		if err := json.Unmarshal(line, &l); err != nil {
			return lineErr(n, err)
		}
		switch {
		case l.Type == replay.LineHeader && l.Header != nil:
			if seenHeader {
				return lineErr(n, errors.New("duplicate header"))
			}
			seenHeader = true
			m.Header = *l.Header
		case l.Type == replay.LineRound && l.Round != nil:
			if !seenHeader {
				return lineErr(n, errors.New("round before header"))
			}
			if m.Footer != nil {
				return lineErr(n, errors.New("round after footer"))
			}
			m.Rounds = append(m.Rounds, *l.Round)
		case l.Type == replay.LineFooter && l.Footer != nil:
			f := *l.Footer
			m.Footer = &f
		default:
			return lineErr(n, fmt.Errorf("unknown line type %q", l.Type))
		}
		return nil
	})
	if err != nil {
		return Match{}, err
	}
	if !seenHeader {
		return Match{}, errors.New("match log: no header")
	}
	return m, nil
}

type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("match log line %d: %v", e.Line, e.Err) }

func (e *LineError) Unwrap() error { return e.Err }

func lineErr(n int, err error) error { return &LineError{Line: n, Err: err} }
