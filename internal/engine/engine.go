// Package engine runs passes over the request store: every pending request
// is resolved, rendered, dispatched and its outcome written back into the
// document.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/msageha/docket/internal/journal"
	"github.com/msageha/docket/internal/lock"
	"github.com/msageha/docket/internal/logging"
	"github.com/msageha/docket/internal/model"
	"github.com/msageha/docket/internal/notion"
	"github.com/msageha/docket/internal/render"
	"github.com/msageha/docket/internal/request"
	"github.com/msageha/docket/internal/resolve"
)

// Dispatcher performs the remote operations a request can ask for.
// *notion.Client implements it.
type Dispatcher interface {
	CreatePage(ctx context.Context, parentID string, body notion.PageBody) (*notion.Object, error)
	CreateDatabase(ctx context.Context, parentID string, body notion.DatabaseBody) (*notion.Object, error)
	UpdatePage(ctx context.Context, pageID string, properties map[string]any) (*notion.Object, error)
	AppendBlocks(ctx context.Context, blockID string, children []map[string]any) (*notion.QueryResult, error)
}

type Options struct {
	RequestsDir  string
	TemplatesDir string
	TargetsFile  string
	// LockPath enables the pass lock when set.
	LockPath string
	// DispatchTimeout bounds each remote call; zero means no deadline
	// beyond the caller's context.
	DispatchTimeout time.Duration
	// DryRun resolves and renders but neither dispatches nor writes.
	DryRun bool

	Journal *journal.Journal
	Logger  *logging.Logger
	Now     func() time.Time
	PassID  func() string
}

type Engine struct {
	opts       Options
	dispatcher Dispatcher
	log        *logging.Logger
}

// New returns an engine. The dispatcher may be nil for dry runs.
func New(dispatcher Dispatcher, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PassID == nil {
		opts.PassID = uuid.NewString
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Engine{opts: opts, dispatcher: dispatcher, log: log.With("engine")}
}

// RunPass processes every pending request once. It returns an error only
// when the pass as a whole could not run (lock busy, name table unreadable,
// store unreadable) or ctx was cancelled; individual record failures are
// reported in the PassReport.
func (e *Engine) RunPass(ctx context.Context) (PassReport, error) {
	report := PassReport{
		PassID:  e.opts.PassID(),
		DryRun:  e.opts.DryRun,
		Started: e.opts.Now(),
	}
	if !e.opts.DryRun && e.dispatcher == nil {
		return report, errors.New("engine: no dispatcher configured")
	}

	if e.opts.LockPath != "" && !e.opts.DryRun {
		fl := lock.NewFileLock(e.opts.LockPath)
		if err := fl.TryLock(); err != nil {
			if errors.Is(err, lock.ErrLocked) {
				return report, fmt.Errorf("%w (lock %s held by pid %d)",
					model.ErrPassInProgress, e.opts.LockPath, lock.HolderPID(e.opts.LockPath))
			}
			return report, fmt.Errorf("acquire pass lock: %w", err)
		}
		defer func() {
			if err := fl.Unlock(); err != nil {
				e.log.Warnf("lock_release_failed path=%s error=%v", e.opts.LockPath, err)
			}
		}()
	}

	table, err := resolve.LoadTable(e.opts.TargetsFile)
	if err != nil {
		return report, fmt.Errorf("load name table: %w", err)
	}
	entries, err := request.NewStore(e.opts.RequestsDir).Scan()
	if err != nil {
		return report, err
	}

	e.log.Infof("pass_start pass_id=%s dry_run=%t documents=%d targets=%d",
		report.PassID, e.opts.DryRun, len(entries), table.Len())
	e.journal(journal.Entry{PassID: report.PassID, Event: journal.EventPassStart,
		Details: map[string]any{"dry_run": e.opts.DryRun, "documents": len(entries)}})

	var pending []*request.Document
	for _, entry := range entries {
		if entry.Err != nil {
			e.handleMalformed(&report, entry)
			continue
		}
		if entry.Doc.Record.Status != model.StatusPending {
			report.Skipped++
			continue
		}
		pending = append(pending, entry.Doc)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Record.EffectivePriority().Rank() > pending[j].Record.EffectivePriority().Rank()
	})

	renderer := render.New(e.opts.TemplatesDir)
	for _, doc := range pending {
		if err := ctx.Err(); err != nil {
			e.finish(&report)
			return report, err
		}
		o := e.process(ctx, doc, table, renderer)
		if o.Status == model.StatusDone {
			report.Done++
		} else {
			report.Failed++
		}
		report.add(o)
		e.journalOutcome(report.PassID, o)
	}

	e.finish(&report)
	return report, nil
}

func (e *Engine) finish(report *PassReport) {
	report.Finished = e.opts.Now()
	e.log.Infof("pass_end pass_id=%s done=%d failed=%d malformed=%d skipped=%d",
		report.PassID, report.Done, report.Failed, report.Malformed, report.Skipped)
	e.journal(journal.Entry{PassID: report.PassID, Event: journal.EventPassEnd,
		Details: map[string]any{
			"done":      report.Done,
			"failed":    report.Failed,
			"malformed": report.Malformed,
			"skipped":   report.Skipped,
		}})
}

// handleMalformed annotates a document whose header could not be used.
// Documents already done or failed are left alone. Documents with no
// editable header, or with a status docket does not own, are only reported.
func (e *Engine) handleMalformed(report *PassReport, entry request.Entry) {
	o := Outcome{Path: entry.Path, Stage: StageParse, Err: parseError(entry.Err)}

	doc := entry.Doc
	if doc != nil && model.IsTerminal(doc.Record.Status) {
		report.Skipped++
		return
	}
	report.Malformed++

	switch {
	case doc == nil || !annotatable(doc.Record.Status):
		e.log.Warnf("malformed_unannotated path=%s error=%v", entry.Path, entry.Err)
	case e.opts.DryRun:
		o.Status = model.StatusError
	default:
		o.Status = model.StatusError
		if err := doc.MarkError(o.Message()); err != nil {
			e.log.Errorf("malformed_mark_failed path=%s error=%v", entry.Path, err)
			break
		}
		if err := doc.Save(); err != nil {
			e.log.Errorf("persist_failed path=%s error=%v", entry.Path, err)
			break
		}
		o.Persisted = true
		e.log.Warnf("malformed path=%s error=%v", entry.Path, o.Err)
	}
	report.add(o)
	e.journal(journal.Entry{PassID: report.PassID, Event: journal.EventMalformed,
		Path: o.Path, Status: string(o.Status), Stage: string(o.Stage), Error: o.Message()})
}

// annotatable reports whether a malformed document may be rewritten as
// failed: only pending records and records with no status at all.
func annotatable(s model.Status) bool {
	return s == "" || s == model.StatusPending
}

// parseError drops the path from a malformed-record error; the message is
// written into that same file.
func parseError(err error) error {
	var m *model.MalformedRecordError
	if errors.As(err, &m) {
		return &model.MalformedRecordError{Reason: m.Reason, Err: m.Err}
	}
	return err
}

func (e *Engine) journal(entry journal.Entry) {
	if e.opts.DryRun {
		return
	}
	if err := e.opts.Journal.Append(entry); err != nil {
		e.log.Warnf("journal_append_failed error=%v", err)
	}
}

func (e *Engine) journalOutcome(passID string, o Outcome) {
	entry := journal.Entry{
		PassID:    passID,
		Event:     journal.EventRecord,
		Path:      o.Path,
		Status:    string(o.Status),
		Operation: string(o.Operation),
		Target:    o.Target,
		RemoteID:  o.RemoteID,
	}
	if o.Err != nil {
		entry.Stage = string(o.Stage)
		entry.Error = o.Message()
	}
	e.journal(entry)
}
