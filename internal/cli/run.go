package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/msageha/docket/internal/config"
	"github.com/msageha/docket/internal/engine"
	"github.com/msageha/docket/internal/journal"
	"github.com/msageha/docket/internal/logging"
	"github.com/msageha/docket/internal/watch"
)

// NewRunCommand creates the run command.
func NewRunCommand(root *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every pending request once",
		Long: `Process every pending request document once, highest priority first.

Each document ends the pass as done or error; failures are written into the
document's header and do not stop the pass. With --dry-run requests are
resolved and rendered but nothing is sent and no file is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := root.loadConfig()
			if err != nil {
				return err
			}
			log := root.logger(cmd, l)
			eng, closeEngine, err := newEngine(l, log, dryRun)
			if err != nil {
				return err
			}
			defer closeEngine()

			report, err := eng.RunPass(cmd.Context())
			if err != nil {
				return err
			}
			writeReport(cmd.OutOrStdout(), l.Dir, report)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "resolve and render only")
	return cmd
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run a pass whenever request documents change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := root.loadConfig()
			if err != nil {
				return err
			}
			log := root.logger(cmd, l)
			eng, closeEngine, err := newEngine(l, log, false)
			if err != nil {
				return err
			}
			defer closeEngine()

			out := cmd.OutOrStdout()
			w := watch.New(eng, watch.Options{
				Dir:          l.Paths.RequestsDir,
				Debounce:     time.Duration(l.Watch.DebounceSec * float64(time.Second)),
				ScanInterval: seconds(l.Watch.ScanIntervalSec),
				Logger:       log,
				OnPass: func(report engine.PassReport, err error) {
					if err == nil && len(report.Outcomes) > 0 {
						writeReport(out, l.Dir, report)
					}
				},
			})
			return w.Run(cmd.Context())
		},
	}
	return cmd
}

func newEngine(l *config.Loaded, log *logging.Logger, dryRun bool) (*engine.Engine, func(), error) {
	opts := engine.Options{
		RequestsDir:     l.Paths.RequestsDir,
		TemplatesDir:    l.Paths.TemplatesDir,
		TargetsFile:     l.Paths.TargetsFile,
		DispatchTimeout: seconds(l.Engine.DispatchTimeoutSec),
		DryRun:          dryRun,
		Logger:          log,
	}
	if l.Engine.LockEnabled() {
		opts.LockPath = l.LockPath()
	}
	if dryRun {
		return engine.New(nil, opts), func() {}, nil
	}

	client, err := newClient(l, log)
	if err != nil {
		return nil, nil, err
	}
	j, err := journal.Open(l.JournalPath(), l.Engine.JournalMaxBytes)
	if err != nil {
		return nil, nil, err
	}
	opts.Journal = j
	closeJournal := func() {
		if err := j.Close(); err != nil {
			log.Warnf("journal_close_failed error=%v", err)
		}
	}
	return engine.New(client, opts), closeJournal, nil
}

func writeReport(w io.Writer, base string, report engine.PassReport) {
	for _, o := range report.Outcomes {
		path := o.Path
		if rel, err := filepath.Rel(base, o.Path); err == nil {
			path = rel
		}
		switch {
		case o.Err != nil:
			fmt.Fprintf(w, "%-6s %s  %s\n", o.Status, path, o.Message())
		case o.RemoteID != "":
			fmt.Fprintf(w, "%-6s %s  %s\n", o.Status, path, o.RemoteID)
		default:
			fmt.Fprintf(w, "%-6s %s  %s %s\n", o.Status, path, o.Operation, o.ResolvedID)
		}
		if report.DryRun {
			for _, line := range o.Outline {
				fmt.Fprintf(w, "         %s\n", line)
			}
		}
	}
	fmt.Fprintln(w, report.Summary())
}
