// Package journal appends every bus event to hourly JSONL files compressed
// with zstd.
package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/ncruces/go-strftime"

	"github.com/talgya/fullness/internal/events"
)

// DefaultLayout names one file per UTC hour.
const DefaultLayout = "%Y-%m-%d-%H"

// Writer is a rotating JSONL+zstd writer. Safe for concurrent use.
type Writer struct {
	dir    string
	prefix string
	layout string
	now    func() time.Time

	mu      sync.Mutex
	cur     string // current file path
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
	raw     uint64 // uncompressed bytes in the current file
	entries int
}

// NewWriter creates a writer for dir. Files are named
// <prefix>-<strftime(layout)>.jsonl.zst.
func NewWriter(dir, prefix, layout string) *Writer {
	if layout == "" {
		layout = DefaultLayout
	}
	return &Writer{dir: dir, prefix: prefix, layout: layout, now: time.Now}
}

// Write appends v as one JSON line.
func (w *Writer) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	path := w.pathFor(w.now().UTC())
	if path != w.cur {
		if err := w.rotateLocked(path); err != nil {
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
	w.raw += uint64(len(b) + 1)
	w.entries++
	return w.w.Flush()
}

// Close flushes and closes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Subscribe journals every event published on bus.
func (w *Writer) Subscribe(bus *events.Bus) (unsubscribe func()) {
	return bus.SubscribeAll(func(_ context.Context, e events.Event) {
		if err := w.Write(e); err != nil {
			slog.Warn("journal write failed", "type", e.Type, "err", err)
		}
	})
}

func (w *Writer) rotateLocked(path string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
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
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.cur = path
	return nil
}

func (w *Writer) closeLocked() error {
	if w.f == nil {
		return nil
	}
	var err error
	if w.w != nil {
		err = w.w.Flush()
	}
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	_ = w.f.Close()

	attrs := []any{"file", filepath.Base(w.cur), "entries", w.entries, "raw", humanize.Bytes(w.raw)}
	if fi, serr := os.Stat(w.cur); serr == nil {
		attrs = append(attrs, "compressed", humanize.Bytes(uint64(fi.Size())))
	}
	slog.Info("journal file closed", attrs...)

	w.f, w.enc, w.w = nil, nil, nil
	w.raw, w.entries = 0, 0
	return err
}

func (w *Writer) pathFor(t time.Time) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, strftime.Format(w.layout, t)))
}

// Files lists the journal files in dir, oldest name first.
func Files(dir, prefix string) ([]string, error) {
	out, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// ReadFile decodes every event in one journal file.
func ReadFile(path string) ([]events.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd %s: %w", path, err)
	}
	defer dec.Close()

	var out []events.Event
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e events.Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("decode %s line %d: %w", path, len(out)+1, err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
