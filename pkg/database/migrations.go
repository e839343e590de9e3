package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// migration is a named, ordered schema change applied exactly once.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations are applied in order. Never reorder or edit an applied entry;
// append a new one instead.
var migrations = []migration{
	{
		Version: 1,
		Name:    "initial_schema",
		SQL: `
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    summary TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    search_vector TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    modified_at DATETIME NOT NULL,
    version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
CREATE INDEX IF NOT EXISTS idx_projects_modified ON projects(modified_at DESC);

CREATE TABLE IF NOT EXISTS features (
    id TEXT PRIMARY KEY,
    project_id TEXT REFERENCES projects(id),
    name TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    priority TEXT NOT NULL,
    search_vector TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    modified_at DATETIME NOT NULL,
    version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_features_project ON features(project_id);
CREATE INDEX IF NOT EXISTS idx_features_status ON features(status);
CREATE INDEX IF NOT EXISTS idx_features_modified ON features(modified_at DESC);

CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    feature_id TEXT REFERENCES features(id),
    project_id TEXT REFERENCES projects(id),
    title TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    priority TEXT NOT NULL,
    complexity INTEGER NOT NULL DEFAULT 5,
    search_vector TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    modified_at DATETIME NOT NULL,
    version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_tasks_feature ON tasks(feature_id);
CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_modified ON tasks(modified_at DESC);

CREATE TABLE IF NOT EXISTS sections (
    id TEXT PRIMARY KEY,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    title TEXT NOT NULL,
    usage_description TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    content_format TEXT NOT NULL DEFAULT 'markdown',
    ordinal INTEGER NOT NULL,
    created_at DATETIME NOT NULL,
    modified_at DATETIME NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    UNIQUE (entity_type, entity_id, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_sections_entity ON sections(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS entity_tags (
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    tag TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (entity_type, entity_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_entity_tags_tag ON entity_tags(tag);

CREATE TABLE IF NOT EXISTS dependencies (
    id TEXT PRIMARY KEY,
    from_task_id TEXT NOT NULL REFERENCES tasks(id),
    to_task_id TEXT NOT NULL REFERENCES tasks(id),
    type TEXT NOT NULL DEFAULT 'BLOCKS',
    unblock_at TEXT,
    created_at DATETIME NOT NULL,
    UNIQUE (from_task_id, to_task_id, type),
    CHECK (from_task_id <> to_task_id)
);

CREATE INDEX IF NOT EXISTS idx_dependencies_from ON dependencies(from_task_id);
CREATE INDEX IF NOT EXISTS idx_dependencies_to ON dependencies(to_task_id);

CREATE TABLE IF NOT EXISTS role_transitions (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    from_role TEXT NOT NULL,
    to_role TEXT NOT NULL,
    from_status TEXT NOT NULL,
    to_status TEXT NOT NULL,
    "trigger" TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_role_transitions_entity ON role_transitions(entity_id, created_at);
`,
	},
}

// Migrate applies pending migrations, recording each in schema_migrations.
// Safe to call on every startup.
func (db *DB) Migrate(ctx context.Context, logger *zap.Logger) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate schema_migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := db.WithTx(ctx, func(ctx context.Context) error {
			q := db.QuerierFrom(ctx)
			if _, err := q.ExecContext(ctx, m.SQL); err != nil {
				return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
			}
			if _, err := q.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
				m.Version, m.Name); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		logger.Info("Applied migration",
			zap.Int("version", m.Version),
			zap.String("name", m.Name))
	}

	return nil
}
