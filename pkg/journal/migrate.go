package journal

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/pkg/errors"
)

// migrations[i] moves the schema from user_version i to i+1.
var migrations = []string{
	`
	CREATE TABLE exchanges(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		link TEXT NOT NULL,
		kind TEXT NOT NULL,
		command BLOB NOT NULL,
		response BLOB NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		elapsed_us INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX exchanges_at ON exchanges(at);
	`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return errors.Wrap(err, "read user_version")
	}
	if version > len(migrations) {
		return errors.Errorf("journal schema version %d is newer than supported %d", version, len(migrations))
	}

	for v := version; v < len(migrations); v++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "begin migration tx")
		}
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "migrate to version %d", v+1)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, "PRAGMA user_version = "+strconv.Itoa(v+1)+";"); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "set user_version")
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrap(err, "commit migration tx")
		}
	}

	return nil
}
