package engine

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

type options struct {
	readOnly    bool
	foreignKeys bool
	busyTimeout time.Duration
	maxOpen     int
}

// Option configures Open.
type Option func(*options)

// WithReadOnly rejects writes on every connection (query_only pragma).
func WithReadOnly() Option { return func(o *options) { o.readOnly = true } }

// WithBusyTimeout sets how long a connection waits on a locked database.
func WithBusyTimeout(d time.Duration) Option { return func(o *options) { o.busyTimeout = d } }

// WithMaxOpenConns bounds the pool size.
func WithMaxOpenConns(n int) Option { return func(o *options) { o.maxOpen = n } }

// Open opens a SQLite database using the modernc.org/sqlite driver with
// foreign keys enabled. Vector functions are registered before the first
// connection is created.
//
// For file-based databases, pass a path like "./db.sqlite". For in-memory
// databases, pass ":memory:".
func Open(dsn string, opts ...Option) (*sql.DB, error) {
	o := &options{foreignKeys: true, busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(o)
	}
	if err := RegisterVectorFunctions(); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", withPragmas(dsn, o))
	if err != nil {
		return nil, fmt.Errorf("engine: open %s: %w", dsn, err)
	}
	if o.maxOpen > 0 {
		db.SetMaxOpenConns(o.maxOpen)
	}
	return db, nil
}

func withPragmas(dsn string, o *options) string {
	values := url.Values{}
	if o.foreignKeys {
		values.Add("_pragma", "foreign_keys(1)")
	}
	if o.busyTimeout > 0 {
		values.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", o.busyTimeout.Milliseconds()))
	}
	if o.readOnly {
		values.Add("_pragma", "query_only(1)")
	}
	if len(values) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + values.Encode()
}
