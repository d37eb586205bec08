package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rulegate/internal/metadata"
	"rulegate/internal/store"
)

// RuleStore abstracts persistence of validation rules.
type RuleStore interface {
	Create(ctx context.Context, rule *metadata.Rule) (int64, error)
	Update(ctx context.Context, id int64, rule *metadata.Rule) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) (bool, error)
	Get(ctx context.Context, id int64) (*metadata.Rule, error)
	ListForTable(ctx context.Context, table string, activeOnly bool) ([]*metadata.Rule, error)
	ListAll(ctx context.Context, sortSpec string) ([]*metadata.Rule, error)
	Duplicate(ctx context.Context, id int64, actor string) (int64, error)
	FindByTableAndName(ctx context.Context, table, name string) (*metadata.Rule, error)
	Counts(ctx context.Context) (RuleCounts, error)
	Reset(ctx context.Context) error
}

// RuleCounts feeds the dashboard stats.
type RuleCounts struct {
	Total  int64 `json:"totalRules"`
	Active int64 `json:"activeRules"`
	Tables int64 `json:"tablesWithRules"`
}

// allowedSortColumns maps API sort keys to columns. Anything off this list
// is dropped silently; sort input must never reach the query verbatim.
var allowedSortColumns = map[string]string{
	"num":           "num",
	"tableName":     "table_name",
	"ruleName":      "rule_name",
	"triggerField":  "trigger_field",
	"requiredField": "required_field",
	"isActive":      "is_active",
	"ruleOrder":     "rule_order",
	"createdDate":   "created_date",
}

const defaultRuleOrder = "table_name ASC, rule_order ASC"

// SQLRuleStore implements RuleStore against _validation_rules.
type SQLRuleStore struct {
	store *store.Store
}

func NewSQLRuleStore(s *store.Store) *SQLRuleStore {
	return &SQLRuleStore{store: s}
}

const ruleColumns = `num, table_name, rule_name, trigger_field, trigger_condition, trigger_value,
	required_field, error_message, is_active, rule_order, created_date, updated_date, created_by, updated_by`

func (s *SQLRuleStore) Create(ctx context.Context, rule *metadata.Rule) (int64, error) {
	dialect := s.store.Dialect
	pb := dialect.NewParamBuilder()

	values := fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s",
		pb.Add(rule.TableName), pb.Add(rule.RuleName), pb.Add(rule.TriggerField),
		pb.Add(string(rule.TriggerCondition)), pb.Add(rule.TriggerValue),
		pb.Add(rule.RequiredField), pb.Add(rule.ErrorMessage),
		pb.Add(rule.IsActive), pb.Add(rule.RuleOrder),
		dialect.NowExpr(), dialect.NowExpr(),
		pb.Add(rule.CreatedBy), pb.Add(rule.UpdatedBy))

	insert := fmt.Sprintf(`INSERT INTO _validation_rules
		(table_name, rule_name, trigger_field, trigger_condition, trigger_value,
		 required_field, error_message, is_active, rule_order, created_date, updated_date, created_by, updated_by)
		VALUES (%s)`, values)

	if dialect.SupportsReturning() {
		row, err := store.QueryRow(ctx, s.store.DB, insert+" RETURNING num", pb.Params()...)
		if err != nil {
			return 0, fmt.Errorf("insert rule: %w", store.MapError(dialect, err))
		}
		return rowInt64(row, "num"), nil
	}

	id, err := store.ExecInsert(ctx, s.store.DB, insert, pb.Params()...)
	if err != nil {
		return 0, fmt.Errorf("insert rule: %w", store.MapError(dialect, err))
	}
	return id, nil
}

func (s *SQLRuleStore) Update(ctx context.Context, id int64, rule *metadata.Rule) error {
	dialect := s.store.Dialect
	pb := dialect.NewParamBuilder()

	n, err := store.Exec(ctx, s.store.DB,
		fmt.Sprintf(`UPDATE _validation_rules
			SET table_name = %s, rule_name = %s, trigger_field = %s, trigger_condition = %s,
			    trigger_value = %s, required_field = %s, error_message = %s,
			    is_active = %s, rule_order = %s, updated_date = %s, updated_by = %s
			WHERE num = %s`,
			pb.Add(rule.TableName), pb.Add(rule.RuleName), pb.Add(rule.TriggerField),
			pb.Add(string(rule.TriggerCondition)), pb.Add(rule.TriggerValue),
			pb.Add(rule.RequiredField), pb.Add(rule.ErrorMessage),
			pb.Add(rule.IsActive), pb.Add(rule.RuleOrder),
			dialect.NowExpr(), pb.Add(rule.UpdatedBy), pb.Add(id)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("update rule %d: %w", id, store.MapError(dialect, err))
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLRuleStore) SetActive(ctx context.Context, id int64, active bool) error {
	dialect := s.store.Dialect
	pb := dialect.NewParamBuilder()

	n, err := store.Exec(ctx, s.store.DB,
		fmt.Sprintf(`UPDATE _validation_rules SET is_active = %s, updated_date = %s WHERE num = %s`,
			pb.Add(active), dialect.NowExpr(), pb.Add(id)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("toggle rule %d: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLRuleStore) Delete(ctx context.Context, id int64) (bool, error) {
	pb := s.store.Dialect.NewParamBuilder()
	n, err := store.Exec(ctx, s.store.DB,
		fmt.Sprintf(`DELETE FROM _validation_rules WHERE num = %s`, pb.Add(id)),
		pb.Params()...)
	if err != nil {
		return false, fmt.Errorf("delete rule %d: %w", id, err)
	}
	return n > 0, nil
}

func (s *SQLRuleStore) Get(ctx context.Context, id int64) (*metadata.Rule, error) {
	pb := s.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, s.store.DB,
		fmt.Sprintf(`SELECT %s FROM _validation_rules WHERE num = %s`, ruleColumns, pb.Add(id)),
		pb.Params()...)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get rule %d: %w", id, err)
	}
	return parseRuleRow(row), nil
}

// ListForTable returns rules for one table ordered by rule_order, ties
// broken by id ascending — the exact order the engine evaluates them in.
func (s *SQLRuleStore) ListForTable(ctx context.Context, table string, activeOnly bool) ([]*metadata.Rule, error) {
	dialect := s.store.Dialect
	pb := dialect.NewParamBuilder()

	where := fmt.Sprintf("table_name = %s", pb.Add(table))
	if activeOnly {
		where += fmt.Sprintf(" AND is_active = %s", pb.Add(true))
	}

	rows, err := store.QueryRows(ctx, s.store.DB,
		fmt.Sprintf(`SELECT %s FROM _validation_rules WHERE %s ORDER BY rule_order ASC, num ASC`,
			ruleColumns, where),
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list rules for %s: %w", table, err)
	}
	return parseRuleRows(rows, dialect.NeedsBoolFix()), nil
}

// ListAll returns every rule sorted by sortSpec, a comma-separated list of
// API sort keys with an optional "-" prefix for descending. Keys outside
// the allow-list are dropped; an empty result falls back to the default
// (table name, then rule order, ascending).
func (s *SQLRuleStore) ListAll(ctx context.Context, sortSpec string) ([]*metadata.Rule, error) {
	orderBy := buildSafeOrderBy(sortSpec)

	rows, err := store.QueryRows(ctx, s.store.DB,
		fmt.Sprintf(`SELECT %s FROM _validation_rules ORDER BY %s`, ruleColumns, orderBy))
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return parseRuleRows(rows, s.store.Dialect.NeedsBoolFix()), nil
}

func (s *SQLRuleStore) Duplicate(ctx context.Context, id int64, actor string) (int64, error) {
	rule, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	copyRule := *rule
	copyRule.Num = 0
	copyRule.RuleName = rule.RuleName + " (Copy)"
	copyRule.CreatedBy = actor
	copyRule.UpdatedBy = actor
	return s.Create(ctx, &copyRule)
}

func (s *SQLRuleStore) FindByTableAndName(ctx context.Context, table, name string) (*metadata.Rule, error) {
	pb := s.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, s.store.DB,
		fmt.Sprintf(`SELECT %s FROM _validation_rules WHERE table_name = %s AND rule_name = %s LIMIT 1`,
			ruleColumns, pb.Add(table), pb.Add(name)),
		pb.Params()...)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find rule %s/%s: %w", table, name, err)
	}
	return parseRuleRow(row), nil
}

func (s *SQLRuleStore) Counts(ctx context.Context) (RuleCounts, error) {
	dialect := s.store.Dialect
	pb := dialect.NewParamBuilder()

	row, err := store.QueryRow(ctx, s.store.DB,
		fmt.Sprintf(`SELECT COUNT(*) AS total, %s AS active, COUNT(DISTINCT table_name) AS tables
			FROM _validation_rules`,
			dialect.FilterCountExpr(fmt.Sprintf("is_active = %s", pb.Add(true)))),
		pb.Params()...)
	if err != nil {
		return RuleCounts{}, fmt.Errorf("rule counts: %w", err)
	}

	return RuleCounts{
		Total:  rowInt64(row, "total"),
		Active: rowInt64(row, "active"),
		Tables: rowInt64(row, "tables"),
	}, nil
}

func (s *SQLRuleStore) Reset(ctx context.Context) error {
	if _, err := store.Exec(ctx, s.store.DB, `DELETE FROM _validation_rules`); err != nil {
		return fmt.Errorf("reset rules: %w", err)
	}
	return nil
}

// buildSafeOrderBy translates a sort spec into an ORDER BY clause using only
// allow-listed columns.
func buildSafeOrderBy(sortSpec string) string {
	var parts []string
	for _, part := range strings.Split(sortSpec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dir := "ASC"
		if strings.HasPrefix(part, "-") {
			dir = "DESC"
			part = part[1:]
		}
		col, ok := allowedSortColumns[part]
		if !ok {
			continue
		}
		parts = append(parts, col+" "+dir)
	}
	if len(parts) == 0 {
		return defaultRuleOrder
	}
	return strings.Join(parts, ", ")
}

func parseRuleRows(rows []map[string]any, boolFix bool) []*metadata.Rule {
	if boolFix {
		store.NormalizeBooleans(rows, []string{"is_active"})
	}
	rules := make([]*metadata.Rule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, parseRuleRow(row))
	}
	return rules
}

func parseRuleRow(row map[string]any) *metadata.Rule {
	cond, _ := metadata.ParseCondition(rowString(row, "trigger_condition"))
	return &metadata.Rule{
		Num:              rowInt64(row, "num"),
		TableName:        rowString(row, "table_name"),
		RuleName:         rowString(row, "rule_name"),
		TriggerField:     rowString(row, "trigger_field"),
		TriggerCondition: cond,
		TriggerValue:     rowString(row, "trigger_value"),
		RequiredField:    rowString(row, "required_field"),
		ErrorMessage:     rowString(row, "error_message"),
		IsActive:         rowBool(row, "is_active"),
		RuleOrder:        int(rowInt64(row, "rule_order")),
		CreatedDate:      rowDateString(row, "created_date"),
		UpdatedDate:      rowDateString(row, "updated_date"),
		CreatedBy:        rowString(row, "created_by"),
		UpdatedBy:        rowString(row, "updated_by"),
	}
}

// --- row parsing helpers (shared with the log store) ---

func rowString(row map[string]any, col string) string {
	v, ok := row[col]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func rowInt64(row map[string]any, col string) int64 {
	switch v := row[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func rowBool(row map[string]any, col string) bool {
	switch v := row[col].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}

func rowTime(row map[string]any, col string) time.Time {
	switch v := row[col].(type) {
	case time.Time:
		return v
	case string:
		// SQLite stores timestamps as text
		if t, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func rowDateString(row map[string]any, col string) string {
	t := rowTime(row, col)
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
