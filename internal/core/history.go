package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// HistoryStore records completed ingestions.
type HistoryStore interface {
	Record(ctx context.Context, e HistoryEntry) error
	// List returns up to limit entries, newest first. A limit of zero or
	// less returns every entry.
	List(ctx context.Context, limit int) ([]HistoryEntry, error)
	// Prune removes entries created before cutoff and reports how many.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// ----------------------------------------------------------------------------
// In-memory store
// ----------------------------------------------------------------------------

// MemoryHistoryStore keeps the most recent entries in process memory.
type MemoryHistoryStore struct {
	max int

	mu      sync.RWMutex
	entries []HistoryEntry // oldest first
}

// NewMemoryHistoryStore creates a store holding at most max entries.
func NewMemoryHistoryStore(max int) *MemoryHistoryStore {
	if max <= 0 {
		max = 500
	}
	return &MemoryHistoryStore{max: max}
}

func (m *MemoryHistoryStore) Record(_ context.Context, e HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, e)
	if over := len(m.entries) - m.max; over > 0 {
		m.entries = append([]HistoryEntry(nil), m.entries[over:]...)
	}
	return nil
}

func (m *MemoryHistoryStore) List(_ context.Context, limit int) ([]HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]HistoryEntry, 0, n)
	for i := len(m.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *MemoryHistoryStore) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	for _, e := range m.entries {
		if !e.CreatedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := int64(len(m.entries) - len(kept))
	m.entries = kept
	return removed, nil
}

// ----------------------------------------------------------------------------
// PostgreSQL store
// ----------------------------------------------------------------------------

// DBTX is the subset of pgxpool.Pool, pgx.Conn and pgx.Tx the store uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const historySchema = `
CREATE TABLE IF NOT EXISTS ingestion_history (
    id           UUID PRIMARY KEY,
    view_id      TEXT NOT NULL,
    source       TEXT NOT NULL,
    name         TEXT NOT NULL DEFAULT '',
    format       TEXT NOT NULL DEFAULT '',
    row_count    INTEGER NOT NULL DEFAULT 0,
    numeric_keys TEXT[] NOT NULL DEFAULT '{}',
    x_key        TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT '',
    error        TEXT NOT NULL DEFAULT '',
    client_ip    TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ingestion_history_created_at_idx ON ingestion_history (created_at DESC);
`

// PgHistoryStore persists history in PostgreSQL.
type PgHistoryStore struct {
	db DBTX
}

// NewPgHistoryStore creates a store over db, usually a *pgxpool.Pool.
func NewPgHistoryStore(db DBTX) *PgHistoryStore {
	return &PgHistoryStore{db: db}
}

// EnsureSchema creates the history table if it does not exist.
func (p *PgHistoryStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, historySchema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

func (p *PgHistoryStore) Record(ctx context.Context, e HistoryEntry) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO ingestion_history
		    (id, view_id, source, name, format, row_count, numeric_keys, x_key, status, error, client_ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.View, string(e.Source), e.Name, e.Format, e.Rows, e.NumericKeys, e.XKey, e.Status, e.Error, e.ClientIP, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (p *PgHistoryStore) List(ctx context.Context, limit int) ([]HistoryEntry, error) {
	query := `
		SELECT id::text, view_id, source, name, format, row_count, numeric_keys, x_key, status, error, client_ip, created_at
		FROM ingestion_history
		ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (HistoryEntry, error) {
		var e HistoryEntry
		var source string
		err := row.Scan(&e.ID, &e.View, &source, &e.Name, &e.Format, &e.Rows,
			&e.NumericKeys, &e.XKey, &e.Status, &e.Error, &e.ClientIP, &e.CreatedAt)
		e.Source = Source(source)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return entries, nil
}

func (p *PgHistoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM ingestion_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return tag.RowsAffected(), nil
}
