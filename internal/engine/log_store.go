package engine

import (
	"context"
	"fmt"
	"strings"

	"rulegate/internal/metadata"
	"rulegate/internal/store"
)

// LogFilter narrows a log query. Zero values mean "no filter". Date bounds
// are calendar days (YYYY-MM-DD) and are inclusive on both ends.
type LogFilter struct {
	Table    string
	RuleNum  int64
	Blocked  *bool
	DateFrom string
	DateTo   string
}

// LogQuery is a filtered, paginated log request. Pages are 1-indexed.
type LogQuery struct {
	LogFilter
	Page    int
	PerPage int
}

// LogPage is one page of log entries plus paging metadata.
type LogPage struct {
	Entries    []*metadata.LogEntry `json:"entries"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	PerPage    int                  `json:"perPage"`
	TotalPages int                  `json:"totalPages"`
}

// LogStats feeds the dashboard.
type LogStats struct {
	Total          int64 `json:"totalLogs"`
	Blocked        int64 `json:"blockedSaves"`
	Passed         int64 `json:"passedSaves"`
	BlockedToday   int64 `json:"blockedToday"`
	Blocked7Days   int64 `json:"blockedLast7Days"`
	Blocked30Days  int64 `json:"blockedLast30Days"`
	TriggeredToday int64 `json:"triggeredToday"`
}

// LogAppender is the write side used by the validation engine.
type LogAppender interface {
	Append(ctx context.Context, entry *metadata.LogEntry) error
}

// LogStore abstracts persistence of the audit log.
type LogStore interface {
	LogAppender
	Query(ctx context.Context, q LogQuery) (*LogPage, error)
	ListFiltered(ctx context.Context, f LogFilter) ([]*metadata.LogEntry, error)
	Recent(ctx context.Context, limit int) ([]*metadata.LogEntry, error)
	PruneOlderThan(ctx context.Context, days int) (int64, error)
	Reset(ctx context.Context) error
	Stats(ctx context.Context) (LogStats, error)
}

const defaultLogPerPage = 50

const logColumns = `num, table_name, record_num, rule_num, rule_name, error_message,
	trigger_field, trigger_value, required_field, required_value, was_blocked, created_date, created_by`

// SQLLogStore implements LogStore against _validation_logs.
type SQLLogStore struct {
	store *store.Store
}

func NewSQLLogStore(s *store.Store) *SQLLogStore {
	return &SQLLogStore{store: s}
}

func (s *SQLLogStore) Append(ctx context.Context, entry *metadata.LogEntry) error {
	dialect := s.store.Dialect
	pb := dialect.NewParamBuilder()

	_, err := store.Exec(ctx, s.store.DB,
		fmt.Sprintf(`INSERT INTO _validation_logs
			(table_name, record_num, rule_num, rule_name, error_message,
			 trigger_field, trigger_value, required_field, required_value,
			 was_blocked, created_date, created_by)
			VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
			pb.Add(entry.TableName), pb.Add(entry.RecordNum), pb.Add(entry.RuleNum),
			pb.Add(entry.RuleName), pb.Add(entry.ErrorMessage),
			pb.Add(entry.TriggerField), pb.Add(entry.TriggerValue),
			pb.Add(entry.RequiredField), pb.Add(entry.RequiredValue),
			pb.Add(entry.WasBlocked), dialect.NowExpr(), pb.Add(entry.CreatedBy)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

func (s *SQLLogStore) Query(ctx context.Context, q LogQuery) (*LogPage, error) {
	dialect := s.store.Dialect
	pb := dialect.NewParamBuilder()
	where := buildLogWhere(q.LogFilter, pb)

	countRow, err := store.QueryRow(ctx, s.store.DB,
		fmt.Sprintf(`SELECT COUNT(*) AS total FROM _validation_logs%s`, where),
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("count logs: %w", err)
	}
	total := rowInt64(countRow, "total")

	page := q.Page
	if page < 1 {
		page = 1
	}
	perPage := q.PerPage
	if perPage < 1 {
		perPage = defaultLogPerPage
	}
	totalPages := int((total + int64(perPage) - 1) / int64(perPage))

	offset := (page - 1) * perPage
	rows, err := store.QueryRows(ctx, s.store.DB,
		fmt.Sprintf(`SELECT %s FROM _validation_logs%s ORDER BY created_date DESC, num DESC LIMIT %s OFFSET %s`,
			logColumns, where, pb.Add(perPage), pb.Add(offset)),
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}

	return &LogPage{
		Entries:    parseLogRows(rows, dialect.NeedsBoolFix()),
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}

// ListFiltered returns every matching entry, newest first. Used by the CSV
// export, which is not paginated.
func (s *SQLLogStore) ListFiltered(ctx context.Context, f LogFilter) ([]*metadata.LogEntry, error) {
	dialect := s.store.Dialect
	pb := dialect.NewParamBuilder()
	where := buildLogWhere(f, pb)

	rows, err := store.QueryRows(ctx, s.store.DB,
		fmt.Sprintf(`SELECT %s FROM _validation_logs%s ORDER BY created_date DESC, num DESC`,
			logColumns, where),
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return parseLogRows(rows, dialect.NeedsBoolFix()), nil
}

func (s *SQLLogStore) Recent(ctx context.Context, limit int) ([]*metadata.LogEntry, error) {
	if limit < 1 {
		limit = 10
	}
	dialect := s.store.Dialect
	pb := dialect.NewParamBuilder()

	rows, err := store.QueryRows(ctx, s.store.DB,
		fmt.Sprintf(`SELECT %s FROM _validation_logs ORDER BY created_date DESC, num DESC LIMIT %s`,
			logColumns, pb.Add(limit)),
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("recent logs: %w", err)
	}
	return parseLogRows(rows, dialect.NeedsBoolFix()), nil
}

// PruneOlderThan deletes entries strictly older than the retention window.
// An entry exactly at the boundary is retained.
func (s *SQLLogStore) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	if days < 1 {
		days = 1
	}
	dialect := s.store.Dialect
	pb := dialect.NewParamBuilder()

	n, err := store.Exec(ctx, s.store.DB,
		fmt.Sprintf(`DELETE FROM _validation_logs WHERE %s`,
			dialect.IntervalDeleteExpr("created_date", pb, days)),
		pb.Params()...)
	if err != nil {
		return 0, fmt.Errorf("prune logs: %w", err)
	}
	return n, nil
}

func (s *SQLLogStore) Reset(ctx context.Context) error {
	if _, err := store.Exec(ctx, s.store.DB, `DELETE FROM _validation_logs`); err != nil {
		return fmt.Errorf("reset logs: %w", err)
	}
	return nil
}

func (s *SQLLogStore) Stats(ctx context.Context) (LogStats, error) {
	dialect := s.store.Dialect
	pb := dialect.NewParamBuilder()

	today := dialect.SinceTodayExpr("created_date")
	blockedCond := fmt.Sprintf("was_blocked = %s", pb.Add(true))
	blockedToday := fmt.Sprintf("was_blocked = %s AND %s", pb.Add(true), today)
	blocked7 := fmt.Sprintf("was_blocked = %s AND %s",
		pb.Add(true), dialect.IntervalSinceExpr("created_date", pb, 7))
	blocked30 := fmt.Sprintf("was_blocked = %s AND %s",
		pb.Add(true), dialect.IntervalSinceExpr("created_date", pb, 30))

	row, err := store.QueryRow(ctx, s.store.DB,
		fmt.Sprintf(`SELECT COUNT(*) AS total,
			%s AS blocked,
			%s AS blocked_today,
			%s AS blocked_7d,
			%s AS blocked_30d,
			%s AS triggered_today
			FROM _validation_logs`,
			dialect.FilterCountExpr(blockedCond),
			dialect.FilterCountExpr(blockedToday),
			dialect.FilterCountExpr(blocked7),
			dialect.FilterCountExpr(blocked30),
			dialect.FilterCountExpr(today)),
		pb.Params()...)
	if err != nil {
		return LogStats{}, fmt.Errorf("log stats: %w", err)
	}

	total := rowInt64(row, "total")
	blocked := rowInt64(row, "blocked")
	return LogStats{
		Total:          total,
		Blocked:        blocked,
		Passed:         total - blocked,
		BlockedToday:   rowInt64(row, "blocked_today"),
		Blocked7Days:   rowInt64(row, "blocked_7d"),
		Blocked30Days:  rowInt64(row, "blocked_30d"),
		TriggeredToday: rowInt64(row, "triggered_today"),
	}, nil
}

func buildLogWhere(f LogFilter, pb store.ParamBuilder) string {
	var parts []string
	if f.Table != "" {
		parts = append(parts, fmt.Sprintf("table_name = %s", pb.Add(f.Table)))
	}
	if f.RuleNum > 0 {
		parts = append(parts, fmt.Sprintf("rule_num = %s", pb.Add(f.RuleNum)))
	}
	if f.Blocked != nil {
		parts = append(parts, fmt.Sprintf("was_blocked = %s", pb.Add(*f.Blocked)))
	}
	if f.DateFrom != "" {
		parts = append(parts, fmt.Sprintf("created_date >= %s", pb.Add(f.DateFrom+" 00:00:00")))
	}
	if f.DateTo != "" {
		parts = append(parts, fmt.Sprintf("created_date <= %s", pb.Add(f.DateTo+" 23:59:59")))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(parts, " AND ")
}

func parseLogRows(rows []map[string]any, boolFix bool) []*metadata.LogEntry {
	if boolFix {
		store.NormalizeBooleans(rows, []string{"was_blocked"})
	}
	entries := make([]*metadata.LogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &metadata.LogEntry{
			Num:           rowInt64(row, "num"),
			TableName:     rowString(row, "table_name"),
			RecordNum:     rowInt64(row, "record_num"),
			RuleNum:       rowInt64(row, "rule_num"),
			RuleName:      rowString(row, "rule_name"),
			ErrorMessage:  rowString(row, "error_message"),
			TriggerField:  rowString(row, "trigger_field"),
			TriggerValue:  rowString(row, "trigger_value"),
			RequiredField: rowString(row, "required_field"),
			RequiredValue: rowString(row, "required_value"),
			WasBlocked:    rowBool(row, "was_blocked"),
			CreatedDate:   rowTime(row, "created_date"),
			CreatedBy:     rowString(row, "created_by"),
		})
	}
	return entries
}
