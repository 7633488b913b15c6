// Package resolve maps friendly target names to remote identifiers.
package resolve

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/msageha/docket/internal/model"
)

// Table is a read-only snapshot of friendly name → identifier. It is loaded
// once per pass and passed explicitly to Resolve.
type Table struct {
	ids map[string]string
}

// NewTable copies m into a new snapshot.
func NewTable(m map[string]string) Table {
	ids := make(map[string]string, len(m))
	for k, v := range m {
		ids[k] = v
	}
	return Table{ids: ids}
}

func (t Table) Lookup(name string) (string, bool) {
	id, ok := t.ids[name]
	return id, ok
}

// Names returns the known names, sorted.
func (t Table) Names() []string {
	names := make([]string, 0, len(t.ids))
	for k := range t.ids {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (t Table) Len() int {
	return len(t.ids)
}

// Resolve returns the identifier for a request target. A non-empty
// explicitID always wins and is returned verbatim. Otherwise a mapped name
// resolves through the table, and a raw identifier passes through
// unchanged.
func Resolve(target, explicitID string, table Table) (string, error) {
	if strings.TrimSpace(explicitID) != "" {
		return explicitID, nil
	}
	if id, ok := table.Lookup(target); ok {
		return id, nil
	}
	if model.IsRawID(target) {
		return target, nil
	}
	return "", &model.ResolutionError{Target: target, Known: table.Names()}
}

type targetEntry struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
}

// LoadTable reads a name table from a YAML (or JSON) file. A missing file
// yields an empty table. Both a flat mapping and the nested "targets" form
// are accepted, and may be mixed:
//
//	team-wiki: 0123...
//	targets:
//	  project-db:
//	    id: 4567...
//	    description: Projects database
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewTable(nil), nil
		}
		return Table{}, fmt.Errorf("read targets %s: %w", path, err)
	}
	return ParseTable(data)
}

func ParseTable(data []byte) (Table, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Table{}, fmt.Errorf("parse targets: %w", err)
	}

	ids := make(map[string]string, len(raw))
	for name, node := range raw {
		if name == "targets" && node.Kind == yaml.MappingNode {
			var nested map[string]yaml.Node
			if err := node.Decode(&nested); err != nil {
				return Table{}, fmt.Errorf("parse targets: %w", err)
			}
			for nestedName, n := range nested {
				id, err := decodeID(nestedName, &n)
				if err != nil {
					return Table{}, err
				}
				ids[nestedName] = id
			}
			continue
		}
		id, err := decodeID(name, &node)
		if err != nil {
			return Table{}, err
		}
		ids[name] = id
	}
	return Table{ids: ids}, nil
}

func decodeID(name string, node *yaml.Node) (string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Value, nil
	case yaml.MappingNode:
		var entry targetEntry
		if err := node.Decode(&entry); err != nil {
			return "", fmt.Errorf("target %q: %w", name, err)
		}
		if entry.ID == "" {
			return "", fmt.Errorf("target %q: missing id", name)
		}
		return entry.ID, nil
	default:
		return "", fmt.Errorf("target %q: expected an id string or {id: ...}", name)
	}
}
