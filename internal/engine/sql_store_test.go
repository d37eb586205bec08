package engine

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"rulegate/internal/config"
	"rulegate/internal/metadata"
	"rulegate/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	st, err := store.New(ctx, config.DatabaseConfig{
		Driver: "sqlite",
		Path:   t.TempDir(),
		Name:   "rulegate_test",
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)
	if err := st.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return st
}

func sampleRule(table, name string, order int) *metadata.Rule {
	return &metadata.Rule{
		TableName:        table,
		RuleName:         name,
		TriggerField:     "phone",
		TriggerCondition: metadata.CondNotEmpty,
		RequiredField:    "contact_name",
		ErrorMessage:     "Name required.",
		IsActive:         true,
		RuleOrder:        order,
		CreatedBy:        "u1",
		UpdatedBy:        "u1",
	}
}

func TestRuleStoreCRUD(t *testing.T) {
	ctx := context.Background()
	rules := NewSQLRuleStore(newTestStore(t))

	id, err := rules.Create(ctx, sampleRule("contacts", "r1", 1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id < 1 {
		t.Fatalf("id = %d", id)
	}

	got, err := rules.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RuleName != "r1" || !got.IsActive || got.TriggerCondition != metadata.CondNotEmpty {
		t.Fatalf("round trip: %+v", got)
	}
	if got.CreatedDate == "" {
		t.Error("created date not set")
	}

	got.ErrorMessage = "changed"
	if err := rules.Update(ctx, id, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = rules.Get(ctx, id)
	if got.ErrorMessage != "changed" {
		t.Fatalf("update lost: %+v", got)
	}

	if err := rules.SetActive(ctx, id, false); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	got, _ = rules.Get(ctx, id)
	if got.IsActive {
		t.Fatal("toggle did not stick")
	}

	deleted, err := rules.Delete(ctx, id)
	if err != nil || !deleted {
		t.Fatalf("delete: %v %v", deleted, err)
	}
	if _, err := rules.Get(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := rules.Update(ctx, id, got); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update of missing rule: %v", err)
	}
}

func TestRuleStoreListOrdering(t *testing.T) {
	ctx := context.Background()
	rules := NewSQLRuleStore(newTestStore(t))

	// same order value: insertion id breaks the tie
	for _, r := range []*metadata.Rule{
		sampleRule("contacts", "second", 2),
		sampleRule("contacts", "tie-a", 1),
		sampleRule("contacts", "tie-b", 1),
		sampleRule("orders", "other-table", 0),
	} {
		if _, err := rules.Create(ctx, r); err != nil {
			t.Fatalf("create %s: %v", r.RuleName, err)
		}
	}

	list, err := rules.ListForTable(ctx, "contacts", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var names []string
	for _, r := range list {
		names = append(names, r.RuleName)
	}
	want := []string{"tie-a", "tie-b", "second"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", names, want)
	}

	// inactive rules drop out of the active listing
	if err := rules.SetActive(ctx, list[0].Num, false); err != nil {
		t.Fatal(err)
	}
	list, _ = rules.ListForTable(ctx, "contacts", true)
	if len(list) != 2 {
		t.Fatalf("active listing has %d rules", len(list))
	}
	list, _ = rules.ListForTable(ctx, "contacts", false)
	if len(list) != 3 {
		t.Fatalf("full listing has %d rules", len(list))
	}
}

func TestRuleStoreSortSpec(t *testing.T) {
	ctx := context.Background()
	rules := NewSQLRuleStore(newTestStore(t))

	for _, r := range []*metadata.Rule{
		sampleRule("zebra", "a", 1),
		sampleRule("alpha", "b", 2),
	} {
		if _, err := rules.Create(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	list, err := rules.ListAll(ctx, "-tableName")
	if err != nil {
		t.Fatal(err)
	}
	if list[0].TableName != "zebra" {
		t.Fatalf("descending sort ignored: %+v", list[0])
	}

	// junk spec falls back to table name ascending
	list, err = rules.ListAll(ctx, "num; DROP TABLE _validation_rules")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].TableName != "alpha" {
		t.Fatalf("fallback sort: %+v", list)
	}
}

func TestRuleStoreDuplicate(t *testing.T) {
	ctx := context.Background()
	rules := NewSQLRuleStore(newTestStore(t))

	id, err := rules.Create(ctx, sampleRule("contacts", "original", 1))
	if err != nil {
		t.Fatal(err)
	}

	copyID, err := rules.Duplicate(ctx, id, "u2")
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	copyRule, err := rules.Get(ctx, copyID)
	if err != nil {
		t.Fatal(err)
	}
	if copyRule.RuleName != "original (Copy)" {
		t.Fatalf("copy name = %q", copyRule.RuleName)
	}
	if copyRule.TableName != "contacts" || copyRule.TriggerField != "phone" {
		t.Fatalf("copy lost fields: %+v", copyRule)
	}
	if copyRule.CreatedBy != "u2" {
		t.Fatalf("copy author = %q", copyRule.CreatedBy)
	}
}

func TestRuleStoreCounts(t *testing.T) {
	ctx := context.Background()
	rules := NewSQLRuleStore(newTestStore(t))

	ids := make([]int64, 0, 3)
	for _, r := range []*metadata.Rule{
		sampleRule("contacts", "a", 1),
		sampleRule("contacts", "b", 2),
		sampleRule("orders", "c", 1),
	} {
		id, err := rules.Create(ctx, r)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	if err := rules.SetActive(ctx, ids[0], false); err != nil {
		t.Fatal(err)
	}

	counts, err := rules.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Total != 3 || counts.Active != 2 || counts.Tables != 2 {
		t.Fatalf("counts = %+v", counts)
	}
}

func sampleLog(table string, recordNum int64, blocked bool) *metadata.LogEntry {
	return &metadata.LogEntry{
		TableName:     table,
		RecordNum:     recordNum,
		RuleNum:       1,
		RuleName:      "r1",
		ErrorMessage:  "Name required.",
		TriggerField:  "phone",
		TriggerValue:  "555",
		RequiredField: "contact_name",
		WasBlocked:    blocked,
		CreatedBy:     "u1",
	}
}

func TestLogStoreQueryAndStats(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	logs := NewSQLLogStore(st)

	for i := int64(1); i <= 5; i++ {
		if err := logs.Append(ctx, sampleLog("contacts", i, i%2 == 0)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := logs.Append(ctx, sampleLog("orders", 99, true)); err != nil {
		t.Fatal(err)
	}

	page, err := logs.Query(ctx, LogQuery{
		LogFilter: LogFilter{Table: "contacts"},
		Page:      1,
		PerPage:   2,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if page.Total != 5 || page.TotalPages != 3 || len(page.Entries) != 2 {
		t.Fatalf("page = total %d pages %d entries %d", page.Total, page.TotalPages, len(page.Entries))
	}

	blocked := true
	page, err = logs.Query(ctx, LogQuery{LogFilter: LogFilter{Blocked: &blocked}})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 {
		t.Fatalf("blocked filter total = %d", page.Total)
	}

	today := time.Now().UTC().Format("2006-01-02")
	page, err = logs.Query(ctx, LogQuery{LogFilter: LogFilter{DateFrom: today, DateTo: today}})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 6 {
		t.Fatalf("date filter total = %d", page.Total)
	}

	// a blocked entry from last week counts in the 30-day window only
	if _, err := store.Exec(ctx, st.DB,
		`INSERT INTO _validation_logs
		 (table_name, record_num, rule_num, rule_name, error_message,
		  trigger_field, trigger_value, required_field, required_value,
		  was_blocked, created_date, created_by)
		 VALUES ('contacts', 50, 1, 'stale', '', '', '', '', '', 1, datetime('now', '-10 days'), '')`); err != nil {
		t.Fatalf("backdate insert: %v", err)
	}

	stats, err := logs.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 7 || stats.Blocked != 4 || stats.Passed != 3 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.BlockedToday != 3 || stats.Blocked7Days != 3 || stats.Blocked30Days != 4 {
		t.Fatalf("windowed stats = %+v", stats)
	}
	if stats.TriggeredToday != 6 {
		t.Fatalf("triggered today = %d", stats.TriggeredToday)
	}

	recent, err := logs.Recent(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 4 {
		t.Fatalf("recent = %d entries", len(recent))
	}
}

func TestLogStorePrune(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	logs := NewSQLLogStore(st)

	if err := logs.Append(ctx, sampleLog("contacts", 1, true)); err != nil {
		t.Fatal(err)
	}
	// backdate an entry past the retention window
	if _, err := store.Exec(ctx, st.DB,
		`INSERT INTO _validation_logs
		 (table_name, record_num, rule_num, rule_name, error_message,
		  trigger_field, trigger_value, required_field, required_value,
		  was_blocked, created_date, created_by)
		 VALUES ('contacts', 2, 1, 'old', '', '', '', '', '', 1, datetime('now', '-40 days'), '')`); err != nil {
		t.Fatalf("backdate insert: %v", err)
	}

	deleted, err := logs.PruneOlderThan(ctx, 30)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d", deleted)
	}

	stats, _ := logs.Stats(ctx)
	if stats.Total != 1 {
		t.Fatalf("remaining = %d", stats.Total)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := NewSQLRuleStore(newTestStore(t))
	dst := NewSQLRuleStore(newTestStore(t))

	for _, r := range []*metadata.Rule{
		sampleRule("contacts", "a", 1),
		sampleRule("orders", "b", 2),
	} {
		if _, err := src.Create(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	env, err := ExportRules(ctx, src)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if env.ExportVersion != "1.0" || len(env.Rules) != 2 {
		t.Fatalf("envelope: %+v", env)
	}
	for _, r := range env.Rules {
		if r.Num != 0 || r.CreatedBy != "" {
			t.Fatalf("export must strip ids and authors: %+v", r)
		}
	}

	result, err := ImportRules(ctx, dst, env, "importer")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Imported != 2 || result.Skipped != 0 {
		t.Fatalf("result = %+v", result)
	}
	if result.Message != "Imported 2 rules. Skipped 0 duplicate or invalid rules." {
		t.Fatalf("message = %q", result.Message)
	}

	// re-import skips duplicates
	result, err = ImportRules(ctx, dst, env, "importer")
	if err != nil {
		t.Fatal(err)
	}
	if result.Imported != 0 || result.Skipped != 2 {
		t.Fatalf("duplicate import = %+v", result)
	}

	// incomplete rules are skipped, not fatal
	env.Rules[0].RuleName = "fresh"
	env.Rules[1].TriggerField = ""
	result, err = ImportRules(ctx, dst, env, "importer")
	if err != nil {
		t.Fatal(err)
	}
	if result.Imported != 1 || result.Skipped != 1 {
		t.Fatalf("partial import = %+v", result)
	}

	imported, err := dst.FindByTableAndName(ctx, "contacts", "fresh")
	if err != nil {
		t.Fatal(err)
	}
	if imported.CreatedBy != "importer" {
		t.Fatalf("import author = %q", imported.CreatedBy)
	}
}

func TestImportEmptyBundle(t *testing.T) {
	ctx := context.Background()
	dst := NewSQLRuleStore(newTestStore(t))

	for _, env := range []*ExportEnvelope{
		{ExportVersion: "1.0"},
		{ExportVersion: "1.0", Rules: []*metadata.Rule{}},
	} {
		_, err := ImportRules(ctx, dst, env, "importer")
		var appErr *AppError
		if !errors.As(err, &appErr) || appErr.Status != 400 {
			t.Fatalf("empty bundle must fail with a 400, got %v", err)
		}
	}
}

func TestWriteLogsCSV(t *testing.T) {
	entries := []*metadata.LogEntry{
		{
			TableName: "contacts", RecordNum: 7, RuleName: "r1",
			TriggerField: "phone", TriggerValue: "555",
			RequiredField: "contact_name", WasBlocked: true,
			ErrorMessage: "Name, required.",
			CreatedDate:  time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
		},
		{
			TableName: "orders", RecordNum: 8, RuleName: "r2",
			WasBlocked:  false,
			CreatedDate: time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	if err := WriteLogsCSV(&buf, entries); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv lines = %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Date,Table,Record #,Rule") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Blocked") || !strings.Contains(lines[2], "Passed") {
		t.Fatalf("status column wrong: %v", lines[1:])
	}
	// embedded comma in the message survives quoting
	if !strings.Contains(lines[1], `"Name, required."`) {
		t.Fatalf("quoting: %q", lines[1])
	}
}
