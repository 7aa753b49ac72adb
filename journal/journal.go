// File: journal/journal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package journal keeps a SQLite history of client sessions: when each
// connection upgraded, passed protocol verification and went away. Writes
// are applied by one background goroutine so callers on the reactor
// goroutine never wait on disk.

package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/momentics/exosphere-ws/api"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	conn_id         INTEGER NOT NULL,
	remote          TEXT NOT NULL,
	connected_at    INTEGER NOT NULL,
	verified_at     INTEGER,
	disconnected_at INTEGER,
	reason          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS sessions_connected_at ON sessions(connected_at);
`

// Kind is the lifecycle step an Event records.
type Kind uint8

const (
	Connected Kind = iota + 1
	Verified
	Disconnected
)

func (k Kind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Verified:
		return "verified"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is one lifecycle step of a session.
type Event struct {
	Kind    Kind
	Session uuid.UUID
	ConnID  uint64
	Remote  string
	Reason  string
	At      time.Time
}

// Session is one row of the journal. Zero times mean the step never happened.
type Session struct {
	ID             uuid.UUID
	ConnID         uint64
	Remote         string
	ConnectedAt    time.Time
	VerifiedAt     time.Time
	DisconnectedAt time.Time
	Reason         string
}

// Config configures Open.
type Config struct {
	Path   string // SQLite file; ":memory:" keeps the journal in memory
	Buffer int    // queued events before Record starts dropping
	Logger *slog.Logger
}

type request struct {
	ev   Event
	sync chan struct{}
}

// Journal is safe for concurrent use.
type Journal struct {
	db      *sql.DB
	log     *slog.Logger
	mu      sync.RWMutex
	closed  bool
	queue   chan request
	done    chan struct{}
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// Open opens or creates the journal at cfg.Path and starts its writer.
func Open(cfg Config) (*Journal, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("journal: %w: empty path", api.ErrInvalidArgument)
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", cfg.Path, err)
	}
	// one connection keeps ":memory:" databases shared and serializes writes
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}
	j := &Journal{
		db:    db,
		log:   cfg.Logger.With("component", "journal"),
		queue: make(chan request, cfg.Buffer),
		done:  make(chan struct{}),
	}
	go j.writer()
	return j, nil
}

// Record queues ev without blocking. It reports false when the queue is
// full or the journal is closed; such events are counted in Dropped.
func (j *Journal) Record(ev Event) bool {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(1)
		return false
	}
	select {
	case j.queue <- request{ev: ev}:
		return true
	default:
		j.dropped.Add(1)
		return false
	}
}

// Sync waits until every event recorded before the call has been written.
func (j *Journal) Sync(ctx context.Context) error {
	done := make(chan struct{})
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return api.ErrTransportClosed
	}
	select {
	case j.queue <- request{sync: done}:
		j.mu.RUnlock()
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many events were not queued.
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

// Failed returns how many queued events could not be written.
func (j *Journal) Failed() uint64 { return j.failed.Load() }

func (j *Journal) writer() {
	defer close(j.done)
	for req := range j.queue {
		if req.sync != nil {
			close(req.sync)
			continue
		}
		if err := j.apply(req.ev); err != nil {
			j.failed.Add(1)
			j.log.Warn("write failed", "kind", req.ev.Kind, "session", req.ev.Session, "err", err)
		}
	}
}

func (j *Journal) apply(ev Event) error {
	at := ev.At.UnixMilli()
	var err error
	switch ev.Kind {
	case Connected:
		_, err = j.db.Exec(
			`INSERT INTO sessions (id, conn_id, remote, connected_at) VALUES (?, ?, ?, ?)`,
			ev.Session.String(), int64(ev.ConnID), ev.Remote, at)
	case Verified:
		_, err = j.db.Exec(`UPDATE sessions SET verified_at = ? WHERE id = ?`, at, ev.Session.String())
	case Disconnected:
		_, err = j.db.Exec(`UPDATE sessions SET disconnected_at = ?, reason = ? WHERE id = ?`,
			at, ev.Reason, ev.Session.String())
	default:
		err = fmt.Errorf("%w: event kind %d", api.ErrInvalidArgument, ev.Kind)
	}
	return err
}

const selectSession = `SELECT id, conn_id, remote, connected_at, verified_at, disconnected_at, reason FROM sessions`

// Recent returns up to limit sessions, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx, selectSession+` ORDER BY connected_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get returns one session by ID.
func (j *Journal) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	row := j.db.QueryRowContext(ctx, selectSession+` WHERE id = ?`, id.String())
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("journal: %w: session %s", api.ErrNotFound, id)
	}
	return s, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (Session, error) {
	var (
		s        Session
		id       string
		connID   int64
		conn     int64
		verified sql.NullInt64
		gone     sql.NullInt64
	)
	if err := sc.Scan(&id, &connID, &s.Remote, &conn, &verified, &gone, &s.Reason); err != nil {
		return Session{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Session{}, fmt.Errorf("journal: bad session id %q: %w", id, err)
	}
	s.ID = parsed
	s.ConnID = uint64(connID)
	s.ConnectedAt = time.UnixMilli(conn)
	if verified.Valid {
		s.VerifiedAt = time.UnixMilli(verified.Int64)
	}
	if gone.Valid {
		s.DisconnectedAt = time.UnixMilli(gone.Int64)
	}
	return s, nil
}

// Close stops accepting events, writes what is queued and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()
	<-j.done
	return j.db.Close()
}
