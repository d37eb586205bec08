package metadata

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const schemaSuffix = ".schema.json"

// fieldDef is the shape of one field entry in a host schema export.
type fieldDef struct {
	Label string `json:"label"`
	Type  string `json:"type"`
}

// LoadDir reads every <table>.schema.json file in dir into the registry.
// A schema file maps field names to {label, type}; keys starting with an
// underscore are host metadata and skipped. A missing directory is not an
// error — the editor dropdowns are simply empty.
func LoadDir(dir string, reg *Registry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("WARN: schema directory %s not found, no tables loaded", dir)
			return nil
		}
		return fmt.Errorf("read schema dir: %w", err)
	}

	tables := make(map[string][]Field)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, schemaSuffix) {
			continue
		}
		table := strings.TrimSuffix(name, schemaSuffix)

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Printf("WARN: skipping schema file %s: %v", name, err)
			continue
		}

		var defs map[string]fieldDef
		if err := json.Unmarshal(data, &defs); err != nil {
			log.Printf("WARN: skipping malformed schema file %s: %v", name, err)
			continue
		}

		fields := make([]Field, 0, len(defs))
		for fieldName, def := range defs {
			if strings.HasPrefix(fieldName, "_") {
				continue
			}
			label := def.Label
			if label == "" {
				label = fieldName
			}
			typ := def.Type
			if typ == "" {
				typ = "unknown"
			}
			fields = append(fields, Field{Name: fieldName, Label: label, Type: typ})
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
		tables[table] = fields
	}

	reg.Load(tables)
	return nil
}
