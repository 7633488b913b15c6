// Package watch keeps running passes while the request directory changes.
//
// Filesystem events are debounced into a single trigger; an optional ticker
// adds periodic passes. Passes are run one at a time by a single goroutine,
// so triggers that arrive during a pass collapse into one follow-up pass.
// Events for documents a pass wrote itself are ignored during that pass and
// for one debounce interval after it.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/msageha/docket/internal/engine"
	"github.com/msageha/docket/internal/logging"
	"github.com/msageha/docket/internal/model"
	"github.com/msageha/docket/internal/request"
)

const DefaultDebounce = 500 * time.Millisecond

// Runner runs one pass. *engine.Engine implements it.
type Runner interface {
	RunPass(ctx context.Context) (engine.PassReport, error)
}

type Options struct {
	Dir          string
	Debounce     time.Duration
	ScanInterval time.Duration // zero disables periodic passes
	Logger       *logging.Logger
	// OnPass, when set, is called after every pass.
	OnPass func(engine.PassReport, error)
}

type Watcher struct {
	runner  Runner
	opts    Options
	log     *logging.Logger
	trigger chan string

	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	passMu  sync.Mutex
	passing bool
	held    map[string]struct{}  // names seen while a pass runs
	quiet   map[string]time.Time // names the last pass wrote, until when
}

func New(runner Runner, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Watcher{
		runner:  runner,
		opts:    opts,
		log:     log.With("watch"),
		trigger: make(chan string, 1),
		held:    make(map[string]struct{}),
		quiet:   make(map[string]time.Time),
	}
}

// Run makes an initial pass and then one pass per debounced change until
// ctx is done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.opts.Dir, err)
	}
	defer w.stopDebounce()

	w.log.Infof("watch_start dir=%s debounce=%s interval=%s", w.opts.Dir, w.opts.Debounce, w.opts.ScanInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.eventLoop(ctx, fw) })
	if w.opts.ScanInterval > 0 {
		g.Go(func() error { return w.tickerLoop(ctx) })
	}
	g.Go(func() error { return w.passLoop(ctx) })

	err = g.Wait()
	w.log.Infof("watch_stop")
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (w *Watcher) eventLoop(ctx context.Context, fw *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return errors.New("fsnotify event channel closed")
			}
			if !request.IsDocumentName(filepath.Base(event.Name)) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.log.Debugf("fsnotify event=%s file=%s", event.Op, event.Name)
				w.observe(filepath.Base(event.Name))
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed")
			}
			w.log.Errorf("fsnotify error=%v", err)
		}
	}
}

func (w *Watcher) tickerLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.notify("interval")
		}
	}
}

// passLoop is the only caller of RunPass.
func (w *Watcher) passLoop(ctx context.Context) error {
	w.runPass(ctx, "startup")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case reason := <-w.trigger:
			w.runPass(ctx, reason)
		}
	}
}

func (w *Watcher) runPass(ctx context.Context, reason string) {
	w.log.Debugf("pass_triggered reason=%s", reason)
	w.passMu.Lock()
	w.passing = true
	w.passMu.Unlock()

	report, err := w.runner.RunPass(ctx)
	w.settle(report)
	switch {
	case err == nil:
		w.log.Infof("%s", report.Summary())
	case errors.Is(err, model.ErrPassInProgress):
		w.log.Warnf("pass_skipped reason=%s error=%v", reason, err)
	case ctx.Err() != nil:
		// shutting down
	default:
		w.log.Errorf("pass_failed reason=%s error=%v", reason, err)
	}
	if w.opts.OnPass != nil {
		w.opts.OnPass(report, err)
	}
}

// observe routes a document event: held while a pass runs, dropped when it
// echoes a write the last pass made, debounced otherwise.
func (w *Watcher) observe(name string) {
	w.passMu.Lock()
	if w.passing {
		w.held[name] = struct{}{}
		w.passMu.Unlock()
		return
	}
	until, own := w.quiet[name]
	w.passMu.Unlock()

	if own && time.Now().Before(until) {
		w.log.Debugf("own_write_ignored file=%s", name)
		return
	}
	w.debounce(name)
}

// settle ends a pass: documents it persisted go quiet for one debounce
// interval, and events held during the pass for any other document are
// replayed.
func (w *Watcher) settle(report engine.PassReport) {
	now := time.Now()
	until := now.Add(w.opts.Debounce)

	w.passMu.Lock()
	w.passing = false
	for name, t := range w.quiet {
		if !now.Before(t) {
			delete(w.quiet, name)
		}
	}
	for _, o := range report.Outcomes {
		if o.Persisted {
			w.quiet[filepath.Base(o.Path)] = until
		}
	}
	var replay []string
	for name := range w.held {
		if _, own := w.quiet[name]; !own {
			replay = append(replay, name)
		}
		delete(w.held, name)
	}
	w.passMu.Unlock()

	for _, name := range replay {
		w.debounce(name)
	}
}

func (w *Watcher) debounce(trigger string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.opts.Debounce, func() {
		w.notify(trigger)
	})
}

func (w *Watcher) stopDebounce() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
}

// notify queues a pass unless one is already queued.
func (w *Watcher) notify(reason string) {
	select {
	case w.trigger <- reason:
	default:
	}
}
