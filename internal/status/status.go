// Package status summarizes the request store for docket status.
package status

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/msageha/docket/internal/journal"
	"github.com/msageha/docket/internal/lock"
	"github.com/msageha/docket/internal/model"
	"github.com/msageha/docket/internal/render"
	"github.com/msageha/docket/internal/request"
	"github.com/msageha/docket/internal/resolve"
)

type Options struct {
	RequestsDir  string
	TemplatesDir string
	TargetsFile  string
	LockPath     string
	JournalPath  string
}

type StoreStatus struct {
	RequestsDir string         `json:"requests_dir"`
	Lock        LockStatus     `json:"lock"`
	Counts      Counts         `json:"counts"`
	Pending     []RecordStatus `json:"pending,omitempty"`
	Failed      []RecordStatus `json:"failed,omitempty"`
	Malformed   []RecordStatus `json:"malformed,omitempty"`
	Targets     []string       `json:"targets"`
	Templates   []string       `json:"templates"`
	LastPass    *PassSummary   `json:"last_pass,omitempty"`
}

type LockStatus struct {
	Held bool `json:"held"`
	PID  int  `json:"pid,omitempty"`
}

type Counts struct {
	Pending   int `json:"pending"`
	Done      int `json:"done"`
	Error     int `json:"error"`
	Malformed int `json:"malformed"`
}

type RecordStatus struct {
	Path      string `json:"path"`
	Target    string `json:"target,omitempty"`
	Priority  string `json:"priority,omitempty"`
	Operation string `json:"operation,omitempty"`
	Template  string `json:"template,omitempty"`
	Error     string `json:"error,omitempty"`
}

type PassSummary struct {
	PassID   string    `json:"pass_id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitempty"`
	Done     int       `json:"done"`
	Failed   int       `json:"failed"`
}

// Collect scans the store without modifying any request document.
func Collect(opts Options) (*StoreStatus, error) {
	s := &StoreStatus{RequestsDir: opts.RequestsDir}

	entries, err := request.NewStore(opts.RequestsDir).Scan()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		rel := relPath(opts.RequestsDir, e.Path)
		if e.Err != nil {
			s.Counts.Malformed++
			s.Malformed = append(s.Malformed, RecordStatus{Path: rel, Error: e.Err.Error()})
			continue
		}
		rec := e.Doc.Record
		switch rec.Status {
		case model.StatusPending:
			s.Counts.Pending++
			s.Pending = append(s.Pending, RecordStatus{
				Path:      rel,
				Target:    rec.Target,
				Priority:  string(rec.EffectivePriority()),
				Operation: string(rec.EffectiveOperation()),
				Template:  rec.Template,
			})
		case model.StatusDone:
			s.Counts.Done++
		case model.StatusError:
			s.Counts.Error++
			rs := RecordStatus{Path: rel, Target: rec.Target}
			if rec.Error != nil {
				rs.Error = *rec.Error
			}
			s.Failed = append(s.Failed, rs)
		}
	}

	if opts.LockPath != "" {
		s.Lock = probeLock(opts.LockPath)
	}

	table, err := resolve.LoadTable(opts.TargetsFile)
	if err != nil {
		return nil, err
	}
	s.Targets = table.Names()

	names, err := render.New(opts.TemplatesDir).Names()
	if err != nil {
		return nil, err
	}
	s.Templates = names

	if opts.JournalPath != "" {
		entries, _, err := journal.ReadAll(opts.JournalPath)
		if err != nil {
			return nil, err
		}
		s.LastPass = summarize(journal.LastPass(entries))
	}
	return s, nil
}

// probeLock reports whether another process holds the pass lock.
func probeLock(path string) LockStatus {
	held, pid := lock.Held(path)
	return LockStatus{Held: held, PID: pid}
}

func summarize(entries []journal.Entry) *PassSummary {
	if len(entries) == 0 {
		return nil
	}
	p := &PassSummary{PassID: entries[0].PassID, Started: entries[0].Timestamp}
	for _, e := range entries {
		switch {
		case e.Event == journal.EventRecord && e.Status == string(model.StatusDone):
			p.Done++
		case e.Event == journal.EventRecord:
			p.Failed++
		case e.Event == journal.EventPassEnd:
			p.Finished = e.Timestamp
		}
	}
	return p
}

func relPath(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}

// Write prints s as indented JSON or as a human summary.
func Write(w io.Writer, s *StoreStatus, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(w, "Store: %s\n", s.RequestsDir)
	if s.Lock.Held {
		fmt.Fprintf(w, "Lock: held by pid %d\n", s.Lock.PID)
	} else {
		fmt.Fprintln(w, "Lock: free")
	}
	fmt.Fprintf(w, "\nRequests: %d pending, %d done, %d error, %d malformed\n",
		s.Counts.Pending, s.Counts.Done, s.Counts.Error, s.Counts.Malformed)

	if len(s.Pending) > 0 {
		fmt.Fprintln(w, "\nPending:")
		fmt.Fprintf(w, "  %-28s  %-8s  %-13s  %-16s  %s\n", "PATH", "PRIORITY", "OPERATION", "TEMPLATE", "TARGET")
		for _, r := range s.Pending {
			fmt.Fprintf(w, "  %-28s  %-8s  %-13s  %-16s  %s\n", r.Path, r.Priority, r.Operation, orDash(r.Template), r.Target)
		}
	}
	if len(s.Failed) > 0 {
		fmt.Fprintln(w, "\nFailed:")
		for _, r := range s.Failed {
			fmt.Fprintf(w, "  %s: %s\n", r.Path, r.Error)
		}
	}
	if len(s.Malformed) > 0 {
		fmt.Fprintln(w, "\nMalformed:")
		for _, r := range s.Malformed {
			fmt.Fprintf(w, "  %s: %s\n", r.Path, r.Error)
		}
	}

	fmt.Fprintf(w, "\nTargets: %s\n", joinOrNone(s.Targets))
	fmt.Fprintf(w, "Templates: %s\n", joinOrNone(s.Templates))
	if p := s.LastPass; p != nil {
		fmt.Fprintf(w, "Last pass: %s at %s (%d done, %d failed)\n",
			p.PassID, p.Started.Format(time.RFC3339), p.Done, p.Failed)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	out := items[0]
	for _, it := range items[1:] {
		out += ", " + it
	}
	return out
}
