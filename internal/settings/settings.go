// Package settings manages the plugin's process-wide configuration document.
// It is persisted as a single JSON file, read fresh on every use (no caching)
// and overwritten wholesale on save — concurrent saves are last-writer-wins.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Settings is the plugin configuration. JSON keys match the settings
// document written by earlier versions of the plugin.
type Settings struct {
	Enabled            bool     `json:"pluginEnabled"`
	LogRetentionDays   int      `json:"logRetentionDays"`
	MaxRulesPerTable   int      `json:"maxRulesPerTable"` // advisory only, never enforced
	EmailNotifications bool     `json:"emailNotifications"`
	NotificationEmail  string   `json:"notificationEmail"`
	DebugMode          bool     `json:"debugMode"`
	ExcludedTables     []string `json:"excludedTables"`
}

// Defaults returns the settings used when no document exists.
func Defaults() Settings {
	return Settings{
		Enabled:            true,
		LogRetentionDays:   30,
		MaxRulesPerTable:   50,
		EmailNotifications: false,
		NotificationEmail:  "",
		DebugMode:          false,
		ExcludedTables:     []string{"accounts", "_cron_log", "menugroups", "uploads"},
	}
}

// IsExcluded reports whether a table is exempt from validation, either by
// exact name or by the reserved system-table prefix.
func (s *Settings) IsExcluded(table string) bool {
	if strings.HasPrefix(table, "_") {
		return true
	}
	for _, t := range s.ExcludedTables {
		if t == table {
			return true
		}
	}
	return false
}

// Loader is the read side used by the validation engine.
type Loader interface {
	Load() Settings
}

// Store reads and writes the settings document.
type Store struct {
	Path string
}

func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load returns the persisted settings merged over defaults. A missing,
// unreadable, or malformed document silently yields the defaults.
func (s *Store) Load() Settings {
	out := Defaults()

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return Defaults()
	}
	return out
}

// Save clamps bounded values and overwrites the document wholesale.
func (s *Store) Save(in Settings) error {
	in.LogRetentionDays = clamp(in.LogRetentionDays, 1, 365)
	in.MaxRulesPerTable = clamp(in.MaxRulesPerTable, 1, 500)
	in.ExcludedTables = cleanTables(in.ExcludedTables)

	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	if err := os.WriteFile(s.Path, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Delete removes the settings document (administrative reset).
func (s *Store) Delete() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove settings: %w", err)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func cleanTables(tables []string) []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
