package gradebook

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Migrate applies the gradebook schema (idempotent CREATE IF NOT EXISTS).
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var schema string
	switch normalizeDriver(driver) {
	case "postgres":
		schema = schemaPostgres
	case "sqlite", "sqlite3":
		schema = schemaSQLite
	default:
		return fmt.Errorf("unsupported driver %q (expected postgres/sqlite)", driver)
	}
	for _, stmt := range splitSQL(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed at: %s\nerror: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func normalizeDriver(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	switch d {
	case "pgx", "pgsql", "postgresql":
		return "postgres"
	}
	return d
}

func splitSQL(s string) []string {
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS lti_launches (
  learner_id       TEXT PRIMARY KEY,
  platform_issuer  TEXT NOT NULL,
  deployment_id    TEXT NOT NULL DEFAULT '',
  context_id       TEXT NOT NULL DEFAULT '',
  resource_link_id TEXT NOT NULL,
  platform_sub     TEXT NOT NULL,
  lineitems_url    TEXT NOT NULL,
  scopes           TEXT NOT NULL DEFAULT '',
  updated_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS gradebook_lineitems (
  id               INTEGER PRIMARY KEY AUTOINCREMENT,
  activity_id      TEXT NOT NULL,
  platform_issuer  TEXT NOT NULL,
  deployment_id    TEXT NOT NULL DEFAULT '',
  context_id       TEXT NOT NULL DEFAULT '',
  resource_link_id TEXT NOT NULL,
  label            TEXT NOT NULL DEFAULT '',
  score_max        REAL NOT NULL DEFAULT 100,
  lineitem_url     TEXT NOT NULL,
  UNIQUE (activity_id, platform_issuer, deployment_id, context_id, resource_link_id)
);

CREATE TABLE IF NOT EXISTS grade_sync_status (
  learner_id  TEXT PRIMARY KEY,
  status      TEXT NOT NULL,
  retries     INTEGER NOT NULL DEFAULT 0,
  last_error  TEXT NOT NULL DEFAULT '',
  score_given REAL NOT NULL DEFAULT 0,
  updated_at  INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS lti_launches (
  learner_id       TEXT PRIMARY KEY,
  platform_issuer  TEXT NOT NULL,
  deployment_id    TEXT NOT NULL DEFAULT '',
  context_id       TEXT NOT NULL DEFAULT '',
  resource_link_id TEXT NOT NULL,
  platform_sub     TEXT NOT NULL,
  lineitems_url    TEXT NOT NULL,
  scopes           TEXT NOT NULL DEFAULT '',
  updated_at       BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS gradebook_lineitems (
  id               BIGSERIAL PRIMARY KEY,
  activity_id      TEXT NOT NULL,
  platform_issuer  TEXT NOT NULL,
  deployment_id    TEXT NOT NULL DEFAULT '',
  context_id       TEXT NOT NULL DEFAULT '',
  resource_link_id TEXT NOT NULL,
  label            TEXT NOT NULL DEFAULT '',
  score_max        DOUBLE PRECISION NOT NULL DEFAULT 100,
  lineitem_url     TEXT NOT NULL,
  UNIQUE (activity_id, platform_issuer, deployment_id, context_id, resource_link_id)
);

CREATE TABLE IF NOT EXISTS grade_sync_status (
  learner_id  TEXT PRIMARY KEY,
  status      TEXT NOT NULL,
  retries     INTEGER NOT NULL DEFAULT 0,
  last_error  TEXT NOT NULL DEFAULT '',
  score_given DOUBLE PRECISION NOT NULL DEFAULT 0,
  updated_at  BIGINT NOT NULL
);
`
