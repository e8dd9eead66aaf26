package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS dispatches (
	id     TEXT PRIMARY KEY,
	ts     INTEGER NOT NULL,
	method TEXT NOT NULL,
	path   TEXT NOT NULL,
	status TEXT NOT NULL,
	kind   TEXT NOT NULL DEFAULT '',
	body   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS dispatches_ts ON dispatches (ts);
CREATE INDEX IF NOT EXISTS dispatches_method ON dispatches (method, ts);`

// SQLiteStore keeps audit records in a SQLite database. The filterable
// fields are columns; the full record is stored as JSON.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens path, creating the schema if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; concurrent dispatches queue on the pool.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dispatches (id, ts, method, path, status, kind, body) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixNano(), rec.Method, string(rec.Path), rec.Status, rec.Kind, string(body))
	if err != nil {
		return fmt.Errorf("insert dispatch %s: %w", rec.ID, err)
	}
	return nil
}

// Query returns matching records oldest first.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	stmt, args := buildQuery(q)
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("decode dispatch record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Limited queries are read newest first.
	if q.Limit > 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func buildQuery(q Query) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		where = append(where, cond)
		args = append(args, v)
	}
	if !q.Start.IsZero() {
		add("ts >= ?", q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		add("ts <= ?", q.End.UnixNano())
	}
	if q.Method != "" {
		add("method = ?", q.Method)
	}
	if q.Status != "" {
		add("status = ?", q.Status)
	}
	if q.Path != "" {
		add("path = ?", string(q.Path))
	}
	var b strings.Builder
	b.WriteString("SELECT body FROM dispatches")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if q.Limit > 0 {
		b.WriteString(" ORDER BY ts DESC LIMIT ?")
		args = append(args, q.Limit)
	} else {
		b.WriteString(" ORDER BY ts")
	}
	return b.String(), args
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
