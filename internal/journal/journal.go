// Package journal is the append-only JSONL record of every pass: one line
// when a pass starts, one per processed record and one when it ends.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	DefaultMaxSize = 10 * 1024 * 1024
	FileExtension  = ".jsonl"
	ArchiveDir     = "archive"
)

// Event names.
const (
	EventPassStart = "pass_start"
	EventRecord    = "record"
	EventMalformed = "malformed"
	EventPassEnd   = "pass_end"
)

type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	PassID    string         `json:"pass_id"`
	Event     string         `json:"event"`
	Path      string         `json:"path,omitempty"`
	Status    string         `json:"status,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Operation string         `json:"operation,omitempty"`
	Target    string         `json:"target,omitempty"`
	RemoteID  string         `json:"remote_id,omitempty"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Journal appends entries to a JSONL file, moving it into an archive
// directory once it would exceed maxSize. A nil *Journal discards entries.
type Journal struct {
	mu       sync.Mutex
	file     *os.File
	size     int64
	maxSize  int64
	path     string
	rotation int
	now      func() time.Time
}

// Open opens (or creates) the journal at path.
func Open(path string, maxSize int64) (*Journal, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	j := &Journal{path: path, maxSize: maxSize, now: time.Now}
	if err := j.open(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) open() error {
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat journal: %w", err)
	}
	j.file = f
	j.size = info.Size()
	return nil
}

// Append writes e as one line and syncs it. A zero Timestamp is filled in.
func (j *Journal) Append(e Entry) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return fmt.Errorf("journal %s is closed", j.path)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = j.now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	data = append(data, '\n')

	if j.size > 0 && j.size+int64(len(data)) > j.maxSize {
		if err := j.rotate(); err != nil {
			return fmt.Errorf("rotate journal: %w", err)
		}
	}
	n, err := j.file.Write(data)
	if err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	j.size += int64(n)
	return nil
}

func (j *Journal) rotate() error {
	if err := j.file.Close(); err != nil {
		return err
	}
	j.file = nil

	archive := filepath.Join(filepath.Dir(j.path), ArchiveDir)
	if err := os.MkdirAll(archive, 0755); err != nil {
		return err
	}
	j.rotation++
	base := strings.TrimSuffix(filepath.Base(j.path), FileExtension)
	name := fmt.Sprintf("%s.%s.%d%s", base, j.now().Format("20060102_150405"), j.rotation, FileExtension)
	if err := os.Rename(j.path, filepath.Join(archive, name)); err != nil {
		return err
	}
	return j.open()
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Sync()
	if cerr := j.file.Close(); err == nil {
		err = cerr
	}
	j.file = nil
	return err
}

// ReadAll decodes every entry in the journal file at path. Lines that do
// not decode are skipped and counted in skipped. A missing file has no
// entries.
func ReadAll(path string) (entries []Entry, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, skipped, fmt.Errorf("read journal: %w", err)
	}
	return entries, skipped, nil
}

// LastPass returns the entries of the most recent pass in entries.
func LastPass(entries []Entry) []Entry {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Event == EventPassStart {
			id := entries[i].PassID
			var out []Entry
			for _, e := range entries[i:] {
				if e.PassID == id {
					out = append(out, e)
				}
			}
			return out
		}
	}
	return nil
}
