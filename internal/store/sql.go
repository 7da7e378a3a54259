package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// notifyPayloadLimit is the largest channel+payload combination that rides
// the side-channel notification; beyond this, subscribers fall back to
// polling the queue table.
const notifyPayloadLimit = 7900

const sqlSchema = `
CREATE TABLE IF NOT EXISTS documents (
	name TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel TEXT NOT NULL,
	payload BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queue_channel ON queue(channel);
`

// SQL is a Store backed by a single SQLite database (one row per document)
// whose pub/sub channel uses an optional NATS connection (see
// WithNATSConn) as the hybrid notify path and the queue table as the
// polling fallback — in place of a LISTEN/NOTIFY-capable server engine.
type SQL struct {
	db *sql.DB
	mu sync.Mutex

	nc   *nats.Conn // nil unless WithNATSConn supplied one
	log  *log.Logger
}

// SQLOption configures a SQL store at construction time.
type SQLOption func(*SQL)

// WithNATSConn attaches an already-connected NATS connection to use for
// the notify side-channel; without one, all subscribers poll the queue
// table.
func WithNATSConn(nc *nats.Conn) SQLOption {
	return func(s *SQL) { s.nc = nc }
}

// NewSQL opens (creating if absent) a SQLite-backed Store at dbPath.
func NewSQL(dbPath string, opts ...SQLOption) (*SQL, error) {
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &Error{Kind: Unavailable, Doc: dbPath, Err: fmt.Errorf("open sqlite db: %w", err)}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &Error{Kind: Unavailable, Doc: dbPath, Err: fmt.Errorf("ping sqlite db: %w", err)}
	}

	s := &SQL{db: db, log: log.Default()}
	for _, opt := range opts {
		opt(s)
	}

	for _, stmt := range strings.Split(sqlSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, &Error{Kind: Corrupt, Doc: dbPath, Err: fmt.Errorf("init schema: %w", err)}
		}
	}
	return s, nil
}

func (s *SQL) Load(ctx context.Context, doc string) (json.RawMessage, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM documents WHERE name = ?`, doc).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Kind: Unavailable, Doc: doc, Err: err}
	}
	return json.RawMessage(value), nil
}

func (s *SQL) AtomicUpdate(ctx context.Context, doc string, f UpdateFunc) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &Error{Kind: Unavailable, Doc: doc, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var current []byte
	err = tx.QueryRowContext(ctx, `SELECT value FROM documents WHERE name = ?`, doc).Scan(&current)
	if err != nil && err != sql.ErrNoRows {
		return nil, &Error{Kind: Unavailable, Doc: doc, Err: err}
	}

	next, err := f(json.RawMessage(current))
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, doc, []byte(next)); err != nil {
		return nil, &Error{Kind: Conflict, Doc: doc, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &Error{Kind: Conflict, Doc: doc, Err: err}
	}
	return next, nil
}

func (s *SQL) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM documents WHERE name LIKE ? ESCAPE '\'`, escapeLikePrefix(prefix)+"%")
	if err != nil {
		return nil, &Error{Kind: Unavailable, Doc: prefix, Err: err}
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &Error{Kind: Corrupt, Doc: prefix, Err: err}
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func escapeLikePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix)
}

func (s *SQL) Publish(ctx context.Context, channel string, payload json.RawMessage) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO queue (channel, payload) VALUES (?, ?)`, channel, payload); err != nil {
		return &Error{Kind: Unavailable, Doc: channel, Err: err}
	}
	if s.nc != nil && len(channel)+len(payload)+1 <= notifyPayloadLimit {
		if err := s.nc.Publish("masc."+channel, payload); err != nil {
			s.log.Printf("store: nats publish on %s failed, subscribers will poll: %v", channel, err)
		}
	}
	return nil
}

func (s *SQL) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if s.nc != nil {
		return newNATSSub(s.nc, channel)
	}
	return newPollSub(ctx, s.db, channel), nil
}

func (s *SQL) Close() error {
	if s.nc != nil {
		s.nc.Close()
	}
	return s.db.Close()
}
