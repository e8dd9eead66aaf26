// Package logging persists an audit record of every dispatch.
package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/vcmd/config"
	"github.com/kilianp07/vcmd/core/model"
)

// Record captures one dispatch and its terminal outcome.
type Record struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Method    string         `json:"method"`
	Params    map[string]any `json:"params,omitempty"`
	NodeID    string         `json:"node_id,omitempty"`
	Path      model.Path     `json:"path"`
	Attempts  int            `json:"attempts"`
	Status    string         `json:"status"`
	Kind      string         `json:"kind,omitempty"`
	Message   string         `json:"message,omitempty"`
	Duration  time.Duration  `json:"duration_ns"`
}

// Query selects records. Zero fields match anything. Limit keeps the most
// recent matches when positive.
type Query struct {
	Start  time.Time
	End    time.Time
	Method string
	Status string
	Path   model.Path
	Limit  int
}

// Match reports whether r satisfies every filter of q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Method != "" && r.Method != q.Method {
		return false
	}
	if q.Path != "" && r.Path != q.Path {
		return false
	}
	return q.Status == "" || r.Status == q.Status
}

// tail applies q.Limit to records sorted oldest first.
func (q Query) tail(recs []Record) []Record {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Open creates the store selected by cfg. The "none" backend yields a nil
// Store.
func Open(cfg config.AuditConfig) (Store, error) {
	cfg.SetDefaults()
	switch {
	case cfg.Backend == "none":
		return nil, nil
	case cfg.Backend == "sqlite":
		return NewSQLiteStore(cfg.Path)
	case cfg.Rotating():
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case cfg.Backend == "jsonl":
		return NewJSONLStore(cfg.Path)
	}
	return nil, fmt.Errorf("unknown audit backend %s", cfg.Backend)
}
