package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"

	_ "modernc.org/sqlite"
)

var _ output.ContextStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS script_context (
	session_id TEXT NOT NULL,
	scope      TEXT NOT NULL,
	name       TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (session_id, scope, name)
)`

// Store persists script parameters in a single SQLite file.
type Store struct {
	db      *sql.DB
	putStmt *sql.Stmt
}

// Open creates the database at path if needed. Use ":memory:" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serialises writers; one connection keeps ":memory:" coherent too
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, `
		INSERT INTO script_context (session_id, scope, name, value, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (session_id, scope, name)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	return &Store{db: db, putStmt: stmt}, nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (map[string]string, map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scope, name, value FROM script_context WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query context: %w", err)
	}
	defer rows.Close()

	inputs := make(map[string]string)
	outputs := make(map[string]string)
	for rows.Next() {
		var scope, name, value string
		if err := rows.Scan(&scope, &name, &value); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		switch entity.ParameterScope(scope) {
		case entity.ScopeInput:
			inputs[name] = value
		case entity.ScopeOutput:
			outputs[name] = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return inputs, outputs, nil
}

func (s *Store) Put(ctx context.Context, sessionID string, scope entity.ParameterScope, name, value string) error {
	if _, err := s.putStmt.ExecContext(ctx, sessionID, string(scope), name, value); err != nil {
		return fmt.Errorf("failed to store %s parameter %q: %w", scope, name, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.putStmt.Close()
	return s.db.Close()
}
