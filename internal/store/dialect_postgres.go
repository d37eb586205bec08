package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresDialect implements Dialect for PostgreSQL via pgx.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *PostgresDialect) NewParamBuilder() ParamBuilder {
	return &pgParamBuilder{}
}

func (d *PostgresDialect) NowExpr() string         { return "NOW()" }
func (d *PostgresDialect) SupportsReturning() bool { return true }
func (d *PostgresDialect) NeedsBoolFix() bool      { return false }

func (d *PostgresDialect) SystemTablesSQL() string {
	return pgSystemTablesSQL
}

func (d *PostgresDialect) TableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = $1 AND table_schema = 'public')`,
		tableName,
	).Scan(&exists)
	return exists, err
}

func (d *PostgresDialect) IntervalDeleteExpr(createdAtCol string, pb ParamBuilder, days int) string {
	ph := pb.Add(days)
	return fmt.Sprintf("%s < now() - (%s * interval '1 day')", createdAtCol, ph)
}

func (d *PostgresDialect) IntervalSinceExpr(createdAtCol string, pb ParamBuilder, days int) string {
	ph := pb.Add(days)
	return fmt.Sprintf("%s >= now() - (%s * interval '1 day')", createdAtCol, ph)
}

func (d *PostgresDialect) SinceTodayExpr(createdAtCol string) string {
	return fmt.Sprintf("%s >= CURRENT_DATE", createdAtCol)
}

func (d *PostgresDialect) FilterCountExpr(condition string) string {
	return fmt.Sprintf("COUNT(*) FILTER (WHERE %s)", condition)
}

func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}

// --- PostgreSQL DDL ---

const pgSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS _validation_rules (
    num               BIGSERIAL PRIMARY KEY,
    table_name        TEXT NOT NULL DEFAULT '',
    rule_name         TEXT NOT NULL DEFAULT '',
    trigger_field     TEXT NOT NULL DEFAULT '',
    trigger_condition TEXT NOT NULL DEFAULT 'not_empty',
    trigger_value     TEXT NOT NULL DEFAULT '',
    required_field    TEXT NOT NULL DEFAULT '',
    error_message     TEXT NOT NULL DEFAULT '',
    is_active         BOOLEAN NOT NULL DEFAULT true,
    rule_order        INT NOT NULL DEFAULT 0,
    created_date      TIMESTAMPTZ DEFAULT NOW(),
    updated_date      TIMESTAMPTZ DEFAULT NOW(),
    created_by        TEXT NOT NULL DEFAULT '',
    updated_by        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_validation_rules_table ON _validation_rules (table_name);
CREATE INDEX IF NOT EXISTS idx_validation_rules_active ON _validation_rules (is_active);
CREATE INDEX IF NOT EXISTS idx_validation_rules_order ON _validation_rules (rule_order);

CREATE TABLE IF NOT EXISTS _validation_logs (
    num            BIGSERIAL PRIMARY KEY,
    table_name     TEXT NOT NULL DEFAULT '',
    record_num     BIGINT NOT NULL DEFAULT 0,
    rule_num       BIGINT NOT NULL DEFAULT 0,
    rule_name      TEXT NOT NULL DEFAULT '',
    error_message  TEXT NOT NULL DEFAULT '',
    trigger_field  TEXT NOT NULL DEFAULT '',
    trigger_value  TEXT NOT NULL DEFAULT '',
    required_field TEXT NOT NULL DEFAULT '',
    required_value TEXT NOT NULL DEFAULT '',
    was_blocked    BOOLEAN NOT NULL DEFAULT false,
    created_date   TIMESTAMPTZ DEFAULT NOW(),
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
    active        BOOLEAN DEFAULT true,
    created_at    TIMESTAMPTZ DEFAULT NOW(),
    updated_at    TIMESTAMPTZ DEFAULT NOW()
);
`

// Compile-time check
var _ Dialect = (*PostgresDialect)(nil)
