package remarkable

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// stateMigration holds a single schema migration with its target
// version and SQL.
type stateMigration struct {
	version int
	sql     string
}

// stateMigrations is the ordered list of sync-state schema migrations.
// Each migration's version must be sequential starting from 1.
var stateMigrations = []stateMigration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS remote_items (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	type            TEXT NOT NULL,
	parent          TEXT NOT NULL DEFAULT '',
	version         INTEGER NOT NULL DEFAULT 1,
	modified_client TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS snapshots (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	taken_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	item_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_remote_items_type ON remote_items(type);
CREATE INDEX IF NOT EXISTS idx_remote_items_parent ON remote_items(parent);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

// StateFile keeps the client's last view of the remote item tree in a
// local SQLite database. It is operational bookkeeping only; sync
// decisions never read from it.
type StateFile struct {
	db *sqlx.DB
}

// OpenStateFile opens (or creates) the sync-state database at path,
// enables WAL mode, and runs any pending schema migrations.
func OpenStateFile(path string) (*StateFile, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sync state db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &StateFile{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *StateFile) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *StateFile) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range stateMigrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// ReplaceSnapshot atomically replaces the stored item tree.
func (s *StateFile) ReplaceSnapshot(ctx context.Context, items []Item) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM remote_items"); err != nil {
		return fmt.Errorf("clearing previous snapshot: %w", err)
	}

	const query = `
		INSERT INTO remote_items (
			id, name, type, parent, version, modified_client
		) VALUES (?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx,
			item.ID, item.VissibleName, item.Type,
			item.Parent, item.Version, item.ModifiedClient,
		); err != nil {
			return fmt.Errorf("inserting item %s: %w", item.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots (id, taken_at, item_count)
		VALUES (1, CURRENT_TIMESTAMP, ?)`, len(items),
	); err != nil {
		return fmt.Errorf("recording snapshot: %w", err)
	}

	return tx.Commit()
}

// Snapshot returns the stored item tree, ordered by name then id.
func (s *StateFile) Snapshot(ctx context.Context) ([]Item, error) {
	var items []Item
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, name, type, parent, version, modified_client
		FROM remote_items
		ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return items, nil
}
