package metadata

import (
	"sort"
	"strings"
	"sync"
)

// Field describes one column of a host CMS table, as exported by the host's
// schema files. Used only to populate the rule editor dropdowns.
type Field struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Registry holds the host's table schemas. Loaded at startup and reloadable;
// validation itself never consults it.
type Registry struct {
	mu     sync.RWMutex
	tables map[string][]Field
}

func NewRegistry() *Registry {
	return &Registry{tables: make(map[string][]Field)}
}

// Tables returns all table names sorted ascending, skipping system tables
// (leading underscore).
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		if strings.HasPrefix(name, "_") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields returns the fields of a table, or nil if the table is unknown.
func (r *Registry) Fields(table string) []Field {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tables[table]
}

// Load replaces all table schemas in the registry.
func (r *Registry) Load(tables map[string][]Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables = tables
}
