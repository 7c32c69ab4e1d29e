// Package persistence provides SQLite-based scene storage: actor
// snapshots, a ledger of finished transfers, the event log and metadata.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/fullness/internal/engine"
	"github.com/talgya/fullness/internal/events"
	"github.com/talgya/fullness/internal/geom"
)

// Meta keys.
const (
	MetaLastTick = "last_tick"
	MetaPlayer   = "player"
	MetaStats    = "stats"
	MetaSavedAt  = "saved_at"
)

// DB wraps a SQLite connection for scene persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS actors (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		state TEXT NOT NULL,
		fullness REAL NOT NULL,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		pos_z REAL NOT NULL,
		persistent INTEGER NOT NULL,
		consumed INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		outcome TEXT NOT NULL,
		source TEXT NOT NULL,
		sink TEXT NOT NULL,
		requested REAL NOT NULL,
		actual REAL NOT NULL,
		multiplier REAL NOT NULL,
		credit REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		type TEXT NOT NULL,
		actor TEXT NOT NULL,
		target TEXT NOT NULL,
		payload_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sim_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_transfers_tick ON transfers(tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type actorRow struct {
	ID         string  `db:"id"`
	Kind       string  `db:"kind"`
	State      string  `db:"state"`
	Fullness   float64 `db:"fullness"`
	X          float64 `db:"pos_x"`
	Y          float64 `db:"pos_y"`
	Z          float64 `db:"pos_z"`
	Persistent bool    `db:"persistent"`
	Consumed   bool    `db:"consumed"`
}

// SaveActors writes all actors to the database (full replace).
func (db *DB) SaveActors(actors []engine.ActorView) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM actors"); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO actors
		(id, kind, state, fullness, pos_x, pos_y, pos_z, persistent, consumed)
		VALUES (:id, :kind, :state, :fullness, :pos_x, :pos_y, :pos_z, :persistent, :consumed)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range actors {
		row := actorRow{
			ID: a.ID, Kind: a.Kind, State: a.State, Fullness: a.Fullness,
			X: a.Position.X, Y: a.Position.Y, Z: a.Position.Z,
			Persistent: a.Persistent, Consumed: a.Consumed,
		}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert actor %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// LoadActors returns every saved actor.
func (db *DB) LoadActors() ([]engine.ActorView, error) {
	var rows []actorRow
	if err := db.conn.Select(&rows, "SELECT * FROM actors ORDER BY rowid"); err != nil {
		return nil, fmt.Errorf("load actors: %w", err)
	}
	out := make([]engine.ActorView, 0, len(rows))
	for _, r := range rows {
		out = append(out, engine.ActorView{
			ID: r.ID, Kind: r.Kind, State: r.State, Fullness: r.Fullness,
			Position:   geom.V(r.X, r.Y, r.Z),
			Persistent: r.Persistent, Consumed: r.Consumed,
		})
	}
	return out, nil
}

// TransferRecord is one row of the transfer ledger.
type TransferRecord struct {
	ID         string  `db:"id" json:"id"`
	Tick       uint64  `db:"tick" json:"tick"`
	Kind       string  `db:"kind" json:"kind"`
	Outcome    string  `db:"outcome" json:"outcome"` // completed or cancelled
	Source     string  `db:"source" json:"source"`
	Sink       string  `db:"sink" json:"sink"`
	Requested  float64 `db:"requested" json:"requested"`
	Actual     float64 `db:"actual" json:"actual"`
	Multiplier float64 `db:"multiplier" json:"multiplier"`
	Credit     float64 `db:"credit" json:"credit"`
}

// RecordTransfer appends a finished transfer to the ledger.
func (db *DB) RecordTransfer(r TransferRecord) error {
	_, err := db.conn.NamedExec(`INSERT OR REPLACE INTO transfers
		(id, tick, kind, outcome, source, sink, requested, actual, multiplier, credit)
		VALUES (:id, :tick, :kind, :outcome, :source, :sink, :requested, :actual, :multiplier, :credit)`, r)
	if err != nil {
		return fmt.Errorf("record transfer %s: %w", r.ID, err)
	}
	return nil
}

// RecentTransfers returns the most recent N ledger rows, newest first.
func (db *DB) RecentTransfers(limit int) ([]TransferRecord, error) {
	var out []TransferRecord
	err := db.conn.Select(&out,
		"SELECT * FROM transfers ORDER BY tick DESC, rowid DESC LIMIT ?", limit)
	return out, err
}

// TransferFromEvent builds a ledger row from a transfer.completed or
// transfer.cancelled event. ok is false for any other event.
func TransferFromEvent(e events.Event) (TransferRecord, bool) {
	var outcome string
	switch e.Type {
	case events.TransferCompleted:
		outcome = "completed"
	case events.TransferCancelled:
		outcome = "cancelled"
	default:
		return TransferRecord{}, false
	}
	num := func(k string) float64 {
		f, _ := e.Payload[k].(float64)
		return f
	}
	id, _ := e.Payload["id"].(string)
	kind, _ := e.Payload["kind"].(string)
	return TransferRecord{
		ID: id, Tick: e.Tick, Kind: kind, Outcome: outcome,
		Source: e.Actor, Sink: e.Target,
		Requested: num("requested"), Actual: num("actual"),
		Multiplier: num("multiplier"), Credit: num("credit"),
	}, id != ""
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(evs []events.Event) error {
	if len(evs) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range evs {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", e.Type, err)
		}
		_, err = tx.Exec(
			"INSERT INTO events (tick, type, actor, target, payload_json) VALUES (?, ?, ?, ?, ?)",
			e.Tick, string(e.Type), e.Actor, e.Target, string(payload),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]events.Event, error) {
	var rows []struct {
		Tick    uint64 `db:"tick"`
		Type    string `db:"type"`
		Actor   string `db:"actor"`
		Target  string `db:"target"`
		Payload string `db:"payload_json"`
	}
	err := db.conn.Select(&rows,
		"SELECT tick, type, actor, target, payload_json FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	out := make([]events.Event, 0, len(rows))
	for _, r := range rows {
		e := events.Event{Type: events.Type(r.Type), Tick: r.Tick, Actor: r.Actor, Target: r.Target}
		if r.Payload != "" && r.Payload != "null" {
			if err := json.Unmarshal([]byte(r.Payload), &e.Payload); err != nil {
				return nil, fmt.Errorf("decode event payload: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// SaveMeta stores a key-value pair in scene metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO sim_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM sim_meta WHERE key = ?", key)
	return value, err
}

// HasState reports whether a scene has been saved.
func (db *DB) HasState() bool {
	_, err := db.GetMeta(MetaLastTick)
	return err == nil
}

// SaveState performs a full save of a snapshot.
func (db *DB) SaveState(snap *engine.Snapshot) error {
	slog.Info("saving scene", "tick", snap.Tick, "actors", len(snap.Actors))

	if err := db.SaveActors(snap.Actors); err != nil {
		return fmt.Errorf("save actors: %w", err)
	}
	player, err := json.Marshal(snap.Player)
	if err != nil {
		return fmt.Errorf("encode player: %w", err)
	}
	stats, err := json.Marshal(snap.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	meta := map[string]string{
		MetaPlayer:   string(player),
		MetaStats:    string(stats),
		MetaSavedAt:  time.Now().UTC().Format(time.RFC3339),
		MetaLastTick: strconv.FormatUint(snap.Tick, 10),
	}
	for _, k := range []string{MetaPlayer, MetaStats, MetaSavedAt, MetaLastTick} {
		if err := db.SaveMeta(k, meta[k]); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	slog.Info("scene saved")
	return nil
}

// State is what LoadState brings back.
type State struct {
	Tick   uint64
	Player engine.PlayerView
	Stats  engine.Stats
	Actors []engine.ActorView
}

// LoadState reads the last saved scene. It returns sql.ErrNoRows when
// nothing has been saved.
func (db *DB) LoadState() (*State, error) {
	raw, err := db.GetMeta(MetaLastTick)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("load tick: %w", err)
	}
	st := &State{}
	if st.Tick, err = strconv.ParseUint(raw, 10, 64); err != nil {
		return nil, fmt.Errorf("parse tick %q: %w", raw, err)
	}
	if raw, err := db.GetMeta(MetaPlayer); err == nil {
		if err := json.Unmarshal([]byte(raw), &st.Player); err != nil {
			return nil, fmt.Errorf("decode player: %w", err)
		}
	}
	if raw, err := db.GetMeta(MetaStats); err == nil {
		if err := json.Unmarshal([]byte(raw), &st.Stats); err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
	}
	if st.Actors, err = db.LoadActors(); err != nil {
		return nil, err
	}
	return st, nil
}
