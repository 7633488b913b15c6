// Package render turns named templates into Notion request payloads.
//
// Templates are JSONC documents describing a page (sections of typed block
// descriptors) or a database (a property schema). They are looked up in a
// templates directory first and then among the embedded builtins, so adding
// a template never requires a code change.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/msageha/docket/internal/model"
)

// Kind is the kind of object a template creates.
type Kind string

const (
	KindPage     Kind = "page"
	KindDatabase Kind = "database"
)

var templateExtensions = []string{".jsonc", ".json"}

// Template is a parsed template definition.
type Template struct {
	Name       string         `json:"-"`
	Kind       Kind           `json:"kind"`
	Title      string         `json:"title"`
	Icon       string         `json:"icon"`
	Properties map[string]any `json:"properties"`
	Sections   []Section      `json:"sections"`
	Blocks     []BlockSpec    `json:"blocks"`
}

// Section is a heading followed by its blocks. Level defaults to 2.
type Section struct {
	Heading string      `json:"heading"`
	Level   int         `json:"level"`
	Blocks  []BlockSpec `json:"blocks"`
}

// BlockSpec is a tagged block descriptor. Which fields apply depends on Type.
type BlockSpec struct {
	Type   string     `json:"type"`
	Text   string     `json:"text"`
	Level  int        `json:"level"`
	Items  []string   `json:"items"`
	Rows   [][]string `json:"rows"`
	Header bool       `json:"header"`
	Icon   string     `json:"icon"`
	Title  string     `json:"title"`
}

// ParseTemplate strips JSONC comments and trailing commas from data and
// decodes the template. The kind defaults to page.
func ParseTemplate(name string, data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(jsonc.ToJSON(data), &t); err != nil {
		return nil, fmt.Errorf("parse template %q: %w", name, err)
	}
	t.Name = name
	if t.Kind == "" {
		t.Kind = KindPage
	}
	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	return &t, nil
}

func (t *Template) validate() error {
	switch t.Kind {
	case KindPage:
	case KindDatabase:
		if len(t.Sections) > 0 || len(t.Blocks) > 0 {
			return errors.New("database templates cannot carry blocks")
		}
	default:
		return fmt.Errorf("unknown kind %q", t.Kind)
	}
	for _, b := range t.Blocks {
		if err := b.validate(); err != nil {
			return err
		}
	}
	for i, s := range t.Sections {
		if s.Level < 0 || s.Level > 3 {
			return fmt.Errorf("section %d: heading level must be 1-3, got %d", i, s.Level)
		}
		for _, b := range s.Blocks {
			if err := b.validate(); err != nil {
				return fmt.Errorf("section %q: %w", s.Heading, err)
			}
		}
	}
	return nil
}

// source loads raw template bytes by name.
type source struct {
	dir     string
	builtin fs.FS
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`)
}

func (s source) read(name string) ([]byte, error) {
	if !validName(name) {
		return nil, &model.TemplateNotFoundError{Name: name}
	}
	if s.dir != "" {
		for _, ext := range templateExtensions {
			data, err := os.ReadFile(filepath.Join(s.dir, name+ext))
			if err == nil {
				return data, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read template %q: %w", name, err)
			}
		}
	}
	if s.builtin != nil {
		for _, ext := range templateExtensions {
			data, err := fs.ReadFile(s.builtin, name+ext)
			if err == nil {
				return data, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read builtin template %q: %w", name, err)
			}
		}
	}
	return nil, &model.TemplateNotFoundError{Name: name}
}

// names lists every template name visible from this source, sorted and
// deduplicated. Directory templates shadow builtins of the same name.
func (s source) names() ([]string, error) {
	seen := make(map[string]bool)
	if s.dir != "" {
		entries, err := os.ReadDir(s.dir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("list templates: %w", err)
		}
		for _, e := range entries {
			if n, ok := templateName(e.Name()); ok && !e.IsDir() {
				seen[n] = true
			}
		}
	}
	if s.builtin != nil {
		entries, err := fs.ReadDir(s.builtin, ".")
		if err != nil {
			return nil, fmt.Errorf("list builtin templates: %w", err)
		}
		for _, e := range entries {
			if n, ok := templateName(e.Name()); ok && !e.IsDir() {
				seen[n] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func templateName(file string) (string, bool) {
	if strings.HasPrefix(file, ".") {
		return "", false
	}
	ext := path.Ext(file)
	for _, e := range templateExtensions {
		if ext == e {
			return strings.TrimSuffix(file, ext), true
		}
	}
	return "", false
}
