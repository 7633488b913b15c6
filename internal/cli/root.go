// Package cli is docket's command surface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/msageha/docket/internal/config"
	"github.com/msageha/docket/internal/logging"
	"github.com/msageha/docket/internal/notion"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool

	// Getwd overrides the working directory used to find docket.yaml (for
	// testing).
	Getwd func() (string, error)
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{Getwd: os.Getwd}

	cmd := &cobra.Command{
		Use:   "docket",
		Short: "File-driven Notion requests",
		Long: `docket turns Markdown request documents into Notion pages and databases.

Each document in the requests directory carries a YAML header naming a
target, a template and an operation. "docket run" processes every pending
document and writes the outcome back into its header.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to docket.yaml (default: nearest in cwd or ancestors)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewCreatePageCommand(opts))
	cmd.AddCommand(NewCreateDatabaseCommand(opts))
	cmd.AddCommand(NewUpdatePageCommand(opts))
	cmd.AddCommand(NewQueryDatabaseCommand(opts))
	cmd.AddCommand(NewAppendBlocksCommand(opts))
	cmd.AddCommand(NewGetPageCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewVersionCommand(version))

	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, version string, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(version)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "docket: %v\n", err)
		return 1
	}
	return 0
}

func (o *RootOptions) loadConfig() (*config.Loaded, error) {
	cwd, err := o.Getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	return config.Resolve(o.ConfigPath, cwd)
}

func (o *RootOptions) logger(cmd *cobra.Command, l *config.Loaded) *logging.Logger {
	level := logging.ParseLevel(l.Logging.Level)
	if o.Verbose {
		level = logging.LevelDebug
	}
	return logging.New(cmd.ErrOrStderr(), level)
}

func newClient(l *config.Loaded, log *logging.Logger) (*notion.Client, error) {
	token, err := l.Token()
	if err != nil {
		return nil, err
	}
	return notion.New(notion.Config{
		BaseURL: l.Notion.BaseURL,
		Token:   token,
		Version: l.Notion.Version,
		Timeout: seconds(l.Notion.TimeoutSec),
		Logger:  log,
	})
}
