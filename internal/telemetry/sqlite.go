package telemetry

import (
	"context"
	"database/sql"
	"time"

	pkgerrors "github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_unix REAL NOT NULL,
	elapsed REAL NOT NULL,
	value   REAL NOT NULL,
	unit    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings (ts_unix);
`

// SQLiteSink stores every sample in a readings table.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrLogIO, "open %s: %v", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pkgerrors.Wrapf(ErrLogIO, "create schema in %s: %v", path, err)
	}
	return &SQLiteSink{db: db}, nil
}

// Name implements Sink.
func (s *SQLiteSink) Name() string { return "sqlite" }

// Append implements Sink.
func (s *SQLiteSink) Append(sample Sample) error {
	ts := float64(sample.Time.UnixNano()) / 1e9
	if _, err := s.db.Exec(
		`INSERT INTO readings (ts_unix, elapsed, value, unit) VALUES (?, ?, ?, ?)`,
		ts, sample.Elapsed, sample.Value, sample.Unit,
	); err != nil {
		return pkgerrors.Wrapf(ErrLogIO, "insert reading: %v", err)
	}
	return nil
}

// Recent returns up to limit samples, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts_unix, elapsed, value, unit FROM readings ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "query readings")
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var ts float64
		var smp Sample
		if err := rows.Scan(&ts, &smp.Elapsed, &smp.Value, &smp.Unit); err != nil {
			return nil, pkgerrors.Wrap(err, "scan reading")
		}
		smp.Time = time.Unix(0, int64(ts*1e9))
		out = append(out, smp)
	}
	return out, rows.Err()
}

// Close implements Sink.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
