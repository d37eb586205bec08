package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "settings.json"))
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s := testStore(t)
	got := s.Load()
	want := Defaults()

	if !got.Enabled || got.LogRetentionDays != want.LogRetentionDays ||
		got.MaxRulesPerTable != want.MaxRulesPerTable {
		t.Fatalf("got %+v, want defaults %+v", got, want)
	}
	if len(got.ExcludedTables) != 4 {
		t.Fatalf("excluded tables = %v", got.ExcludedTables)
	}
}

func TestLoadMalformedFileReturnsDefaults(t *testing.T) {
	s := testStore(t)
	if err := os.WriteFile(s.Path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	got := s.Load()
	if !got.Enabled || got.LogRetentionDays != 30 {
		t.Fatalf("malformed file must fall back to defaults: %+v", got)
	}
}

func TestLoadMergesPartialDocumentOverDefaults(t *testing.T) {
	s := testStore(t)
	if err := os.WriteFile(s.Path, []byte(`{"debugMode": true}`), 0644); err != nil {
		t.Fatal(err)
	}
	got := s.Load()
	if !got.DebugMode {
		t.Fatal("explicit key lost")
	}
	if got.LogRetentionDays != 30 || !got.Enabled {
		t.Fatalf("absent keys must keep defaults: %+v", got)
	}
}

func TestSaveRoundTripAndClamps(t *testing.T) {
	s := testStore(t)

	in := Defaults()
	in.LogRetentionDays = 9999
	in.MaxRulesPerTable = 0
	in.ExcludedTables = []string{" accounts ", "", "drafts"}
	in.DebugMode = true

	if err := s.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := s.Load()
	if got.LogRetentionDays != 365 {
		t.Errorf("retention clamp = %d", got.LogRetentionDays)
	}
	if got.MaxRulesPerTable != 1 {
		t.Errorf("max rules clamp = %d", got.MaxRulesPerTable)
	}
	if len(got.ExcludedTables) != 2 || got.ExcludedTables[0] != "accounts" {
		t.Errorf("excluded tables = %v", got.ExcludedTables)
	}
	if !got.DebugMode {
		t.Error("debug mode lost")
	}

	// document keys stay in the documented shape
	data, err := os.ReadFile(s.Path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"pluginEnabled", "logRetentionDays", "maxRulesPerTable",
		"emailNotifications", "notificationEmail", "debugMode", "excludedTables"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %s", key)
		}
	}
}

func TestDeleteResetsToDefaults(t *testing.T) {
	s := testStore(t)
	in := Defaults()
	in.DebugMode = true
	if err := s.Save(in); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Load().DebugMode {
		t.Fatal("delete must restore defaults")
	}

	// deleting a missing document is not an error
	if err := s.Delete(); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestIsExcluded(t *testing.T) {
	cfg := Defaults()
	cfg.ExcludedTables = append(cfg.ExcludedTables, "drafts")

	tests := []struct {
		table string
		want  bool
	}{
		{"accounts", true},
		{"drafts", true},
		{"_anything", true},
		{"_validation_rules", true},
		{"contacts", false},
		{"Accounts", false}, // exact match only
	}
	for _, tt := range tests {
		if got := cfg.IsExcluded(tt.table); got != tt.want {
			t.Errorf("IsExcluded(%q) = %v, want %v", tt.table, got, tt.want)
		}
	}
}
