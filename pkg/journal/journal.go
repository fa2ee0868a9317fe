// Package journal keeps a SQLite record of the exchanges served by the
// emulated card.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // register sqlite driver
)

// Entry is one journal row. Reason is empty for command exchanges and
// Command/Response are empty for deactivations.
type Entry struct {
	ID       int64
	At       time.Time
	Link     string
	Kind     string
	Command  []byte
	Response []byte
	Reason   string
	Elapsed  time.Duration
}

// Journal is an open journal database.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path and brings its schema up to date.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, errors.Wrap(err, "ping sqlite db")
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()

		return nil, errors.Wrap(err, "set wal mode")
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends e. A zero At is stored as the current time.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO exchanges(at, link, kind, command, response, reason, elapsed_us)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`,
		toUnixMillis(e.At),
		e.Link,
		e.Kind,
		nonNil(e.Command),
		nonNil(e.Response),
		e.Reason,
		e.Elapsed.Microseconds(),
	)
	return errors.Wrap(err, "insert exchange")
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, at, link, kind, command, response, reason, elapsed_us
		FROM exchanges
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query exchanges")
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			at        int64
			elapsedUS int64
		)
		if err := rows.Scan(&e.ID, &at, &e.Link, &e.Kind, &e.Command, &e.Response, &e.Reason, &elapsedUS); err != nil {
			return nil, errors.Wrap(err, "scan exchange")
		}
		e.At = fromUnixMillis(at)
		e.Elapsed = time.Duration(elapsedUS) * time.Microsecond
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate exchanges")
	}

	return out, nil
}

// Prune deletes entries older than before and reports how many went.
func (j *Journal) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM exchanges WHERE at < ?;`, toUnixMillis(before))
	if err != nil {
		return 0, errors.Wrap(err, "prune exchanges")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "count pruned exchanges")
	}
	return n, nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func toUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMillis(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v)
}
