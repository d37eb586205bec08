package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLiteDialect implements Dialect for SQLite via modernc.org/sqlite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) Placeholder(index int) string {
	return fmt.Sprintf("?%d", index)
}

func (d *SQLiteDialect) NewParamBuilder() ParamBuilder {
	return &sqliteParamBuilder{}
}

func (d *SQLiteDialect) NowExpr() string         { return "datetime('now')" }
func (d *SQLiteDialect) SupportsReturning() bool { return false }
func (d *SQLiteDialect) NeedsBoolFix() bool      { return true }

func (d *SQLiteDialect) SystemTablesSQL() string {
	return sqliteSystemTablesSQL
}

func (d *SQLiteDialect) TableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?1",
		tableName,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *SQLiteDialect) IntervalDeleteExpr(createdAtCol string, pb ParamBuilder, days int) string {
	ph := pb.Add(days)
	return fmt.Sprintf("%s < datetime('now', '-' || %s || ' days')", createdAtCol, ph)
}

func (d *SQLiteDialect) IntervalSinceExpr(createdAtCol string, pb ParamBuilder, days int) string {
	ph := pb.Add(days)
	return fmt.Sprintf("%s >= datetime('now', '-' || %s || ' days')", createdAtCol, ph)
}

func (d *SQLiteDialect) SinceTodayExpr(createdAtCol string) string {
	return fmt.Sprintf("%s >= date('now')", createdAtCol)
}

func (d *SQLiteDialect) FilterCountExpr(condition string) string {
	return fmt.Sprintf("SUM(CASE WHEN %s THEN 1 ELSE 0 END)", condition)
}

func (d *SQLiteDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "constraint failed: UNIQUE") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}

// --- SQLite DDL ---

const sqliteSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS _validation_rules (
    num               INTEGER PRIMARY KEY AUTOINCREMENT,
    table_name        TEXT NOT NULL DEFAULT '',
    rule_name         TEXT NOT NULL DEFAULT '',
    trigger_field     TEXT NOT NULL DEFAULT '',
    trigger_condition TEXT NOT NULL DEFAULT 'not_empty',
    trigger_value     TEXT NOT NULL DEFAULT '',
    required_field    TEXT NOT NULL DEFAULT '',
    error_message     TEXT NOT NULL DEFAULT '',
    is_active         INTEGER NOT NULL DEFAULT 1,
    rule_order        INTEGER NOT NULL DEFAULT 0,
    created_date      TEXT DEFAULT (datetime('now')),
    updated_date      TEXT DEFAULT (datetime('now')),
    created_by        TEXT NOT NULL DEFAULT '',
    updated_by        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_validation_rules_table ON _validation_rules (table_name);
CREATE INDEX IF NOT EXISTS idx_validation_rules_active ON _validation_rules (is_active);
CREATE INDEX IF NOT EXISTS idx_validation_rules_order ON _validation_rules (rule_order);

CREATE TABLE IF NOT EXISTS _validation_logs (
    num            INTEGER PRIMARY KEY AUTOINCREMENT,
    table_name     TEXT NOT NULL DEFAULT '',
    record_num     INTEGER NOT NULL DEFAULT 0,
    rule_num       INTEGER NOT NULL DEFAULT 0,
    rule_name      TEXT NOT NULL DEFAULT '',
    error_message  TEXT NOT NULL DEFAULT '',
    trigger_field  TEXT NOT NULL DEFAULT '',
    trigger_value  TEXT NOT NULL DEFAULT '',
    required_field TEXT NOT NULL DEFAULT '',
    required_value TEXT NOT NULL DEFAULT '',
    was_blocked    INTEGER NOT NULL DEFAULT 0,
    created_date   TEXT DEFAULT (datetime('now')),
    created_by     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_validation_logs_table ON _validation_logs (table_name);
CREATE INDEX IF NOT EXISTS idx_validation_logs_rule ON _validation_logs (rule_num);
CREATE INDEX IF NOT EXISTS idx_validation_logs_created ON _validation_logs (created_date);
CREATE INDEX IF NOT EXISTS idx_validation_logs_blocked ON _validation_logs (was_blocked);

CREATE TABLE IF NOT EXISTS _users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    name          TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    roles         TEXT NOT NULL DEFAULT '[]',
    active        INTEGER DEFAULT 1,
    created_at    TEXT DEFAULT (datetime('now')),
    updated_at    TEXT DEFAULT (datetime('now'))
);
`

// Compile-time check
var _ Dialect = (*SQLiteDialect)(nil)
