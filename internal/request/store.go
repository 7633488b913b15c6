package request

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var documentExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
}

// Store is a directory of request documents.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Entry is one scanned file. Doc is nil when the file could not be read or
// its header could not be parsed; Err carries the reason. Doc and Err are
// both set for documents with an invalid but editable header.
type Entry struct {
	Path string
	Doc  *Document
	Err  error
}

// Scan reads every request document in discovery order (by file name).
// Hidden files and non-Markdown files are ignored.
func (s *Store) Scan() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read request store %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !IsDocumentName(de.Name()) {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		doc, err := Load(path)
		entries = append(entries, Entry{Path: path, Doc: doc, Err: err})
	}
	return entries, nil
}

// IsDocumentName reports whether a file name is one Scan would read.
func IsDocumentName(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return documentExtensions[strings.ToLower(filepath.Ext(name))]
}
