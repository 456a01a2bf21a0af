package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/pathgraph/internal/apperr"
	"github.com/starford/pathgraph/internal/models"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS nodes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	label      TEXT NOT NULL,
	name       TEXT NOT NULL,
	props      TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(label, name)
);

CREATE TABLE IF NOT EXISTS relationships (
	start_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	end_id   INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	type     TEXT NOT NULL,
	name     TEXT NOT NULL DEFAULT '',
	UNIQUE(start_id, end_id, type)
);

CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name);
CREATE INDEX IF NOT EXISTS idx_relationships_end ON relationships(end_id);
`

// SQLite is an embedded Store backed by two tables, nodes and relationships.
type SQLite struct {
	conn *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("graphstore: open sqlite: %w", err)
	}
	// One writer at a time; parallel node batches queue on the pool.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("graphstore: %w: ping sqlite: %w", apperr.ErrStoreUnavailable, err)
	}
	if _, err := conn.Exec(sqliteSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("graphstore: apply sqlite schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// EnsureSchema is a no-op: the UNIQUE(label, name) constraint is part of the table definition.
func (s *SQLite) EnsureSchema(_ context.Context) error { return nil }

// UpsertNode inserts the node, leaving an existing (label, name) row untouched.
func (s *SQLite) UpsertNode(ctx context.Context, label models.Category, props map[string]any) (bool, error) {
	if err := checkLabel(label); err != nil {
		return false, err
	}
	name, err := nodeName(props)
	if err != nil {
		return false, err
	}

	extra := make(map[string]any, len(props))
	for k, v := range props {
		if k != "name" {
			extra[k] = v
		}
	}
	propsJSON, err := json.Marshal(extra)
	if err != nil {
		return false, fmt.Errorf("graphstore: %w: encode props of %s: %w", apperr.ErrRejected, name, err)
	}

	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO nodes (label, name, props)
		VALUES (?, ?, ?)
		ON CONFLICT(label, name) DO NOTHING
	`, string(label), name, string(propsJSON))
	if err != nil {
		return false, fmt.Errorf("graphstore: upsert node %s %q: %w", label, name, classifySQLiteErr(err))
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Relate inserts the relationship between two existing nodes.
func (s *SQLite) Relate(ctx context.Context, rel models.Relationship) (bool, error) {
	if err := checkRelationship(rel); err != nil {
		return false, err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("graphstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	startID, err := nodeID(ctx, tx, rel.StartLabel, rel.StartName)
	if err != nil {
		return false, err
	}
	endID, err := nodeID(ctx, tx, rel.EndLabel, rel.EndName)
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO relationships (start_id, end_id, type, name)
		VALUES (?, ?, ?, ?)
	`, startID, endID, string(rel.Type), rel.Label)
	if err != nil {
		return false, fmt.Errorf("graphstore: insert relationship: %w", classifySQLiteErr(err))
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("graphstore: commit relationship: %w", err)
	}
	return n > 0, nil
}

func nodeID(ctx context.Context, tx *sql.Tx, label models.Category, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM nodes WHERE label = ? AND name = ?`, string(label), name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("graphstore: %w: node %s %q", apperr.ErrNotFound, label, name)
	}
	if err != nil {
		return 0, fmt.Errorf("graphstore: lookup node %s %q: %w", label, name, err)
	}
	return id, nil
}

// Counts returns node counts per label and relationship counts per type.
func (s *SQLite) Counts(ctx context.Context) (Counts, error) {
	out := Counts{Nodes: map[string]int64{}, Relationships: map[string]int64{}}
	if err := s.countInto(ctx, `SELECT label, count(*) FROM nodes GROUP BY label`, out.Nodes); err != nil {
		return Counts{}, err
	}
	if err := s.countInto(ctx, `SELECT type, count(*) FROM relationships GROUP BY type`, out.Relationships); err != nil {
		return Counts{}, err
	}
	return out, nil
}

func (s *SQLite) countInto(ctx context.Context, query string, dst map[string]int64) error {
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("graphstore: counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		dst[key] = n
	}
	return rows.Err()
}

// NodeProps returns the decoded properties stored for (label, name).
func (s *SQLite) NodeProps(ctx context.Context, label models.Category, name string) (map[string]any, error) {
	var raw string
	err := s.conn.QueryRowContext(ctx, `SELECT props FROM nodes WHERE label = ? AND name = ?`, string(label), name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("graphstore: %w: node %s %q", apperr.ErrNotFound, label, name)
	}
	if err != nil {
		return nil, fmt.Errorf("graphstore: node props: %w", err)
	}
	props := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("graphstore: decode props: %w", err)
	}
	return props, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close(_ context.Context) error {
	return s.conn.Close()
}

// classifySQLiteErr marks constraint failures as permanent rejections.
func classifySQLiteErr(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %w", apperr.ErrRejected, err)
	}
	return err
}
