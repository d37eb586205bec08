package engine

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"rulegate/internal/metadata"
	"rulegate/internal/store"
)

// Version is reported in exports and the health endpoint.
const Version = "1.0.0"

// ExportEnvelope is the portable rule bundle format.
type ExportEnvelope struct {
	ExportVersion string           `json:"exportVersion"`
	ExportDate    string           `json:"exportDate"`
	PluginVersion string           `json:"pluginVersion"`
	Rules         []*metadata.Rule `json:"rules"`
}

// ImportResult summarizes one import run.
type ImportResult struct {
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Message  string `json:"message"`
}

// ExportRules bundles every rule for transfer. Row ids and author fields are
// stripped so the bundle is portable between installations.
func ExportRules(ctx context.Context, rules RuleStore) (*ExportEnvelope, error) {
	all, err := rules.ListAll(ctx, "")
	if err != nil {
		return nil, err
	}

	out := make([]*metadata.Rule, 0, len(all))
	for _, r := range all {
		copyRule := *r
		copyRule.Num = 0
		copyRule.CreatedBy = ""
		copyRule.UpdatedBy = ""
		out = append(out, &copyRule)
	}

	return &ExportEnvelope{
		ExportVersion: "1.0",
		ExportDate:    time.Now().UTC().Format("2006-01-02 15:04:05"),
		PluginVersion: Version,
		Rules:         out,
	}, nil
}

// ImportRules inserts rules from a bundle. An empty bundle is an error.
// A rule missing its table name, rule name, or trigger field is skipped, as
// is any rule whose (table, name) pair already exists. Unknown trigger
// conditions fall back to "not empty".
func ImportRules(ctx context.Context, rules RuleStore, env *ExportEnvelope, actor string) (*ImportResult, error) {
	if len(env.Rules) == 0 {
		return nil, NewAppError("EMPTY_IMPORT", 400, "import bundle contains no rules")
	}

	result := &ImportResult{}

	for _, r := range env.Rules {
		if strings.TrimSpace(r.TableName) == "" ||
			strings.TrimSpace(r.RuleName) == "" ||
			strings.TrimSpace(r.TriggerField) == "" {
			result.Skipped++
			continue
		}

		if _, err := rules.FindByTableAndName(ctx, r.TableName, r.RuleName); err == nil {
			result.Skipped++
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}

		copyRule := *r
		copyRule.Num = 0
		if _, ok := metadata.ParseCondition(string(copyRule.TriggerCondition)); !ok {
			copyRule.TriggerCondition = metadata.CondNotEmpty
		}
		copyRule.CreatedBy = actor
		copyRule.UpdatedBy = actor

		if _, err := rules.Create(ctx, &copyRule); err != nil {
			return nil, fmt.Errorf("import rule %s/%s: %w", r.TableName, r.RuleName, err)
		}
		result.Imported++
	}

	result.Message = fmt.Sprintf("Imported %d rules. Skipped %d duplicate or invalid rules.",
		result.Imported, result.Skipped)
	return result, nil
}

var logCSVHeader = []string{
	"Date", "Table", "Record #", "Rule", "Trigger Field", "Trigger Value",
	"Required Field", "Required Value", "Status", "Error Message",
}

// WriteLogsCSV streams log entries as CSV.
func WriteLogsCSV(w io.Writer, entries []*metadata.LogEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(logCSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, e := range entries {
		status := "Passed"
		if e.WasBlocked {
			status = "Blocked"
		}
		record := []string{
			e.CreatedDate.UTC().Format("2006-01-02 15:04:05"),
			e.TableName,
			strconv.FormatInt(e.RecordNum, 10),
			e.RuleName,
			e.TriggerField,
			e.TriggerValue,
			e.RequiredField,
			e.RequiredValue,
			status,
			e.ErrorMessage,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
