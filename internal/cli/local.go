package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/msageha/docket/internal/render"
	"github.com/msageha/docket/internal/setup"
	"github.com/msageha/docket/internal/status"
)

// NewRenderCommand creates the render command. It never touches the
// network.
func NewRenderCommand(root *RootOptions) *cobra.Command {
	var (
		title, icon, date string
		database, list    bool
		outline           bool
	)
	cmd := &cobra.Command{
		Use:   "render [template]",
		Short: "Print what a template renders to",
		Example: `  docket render meeting-notes --title "Weekly sync"
  docket render task-database --database --outline
  docket render --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := root.loadConfig()
			if err != nil {
				return err
			}
			r := render.New(l.Paths.TemplatesDir)
			out := cmd.OutOrStdout()

			if list {
				names, err := r.Names()
				if err != nil {
					return err
				}
				for _, name := range names {
					t, err := r.Load(name)
					if err != nil {
						fmt.Fprintf(out, "%-20s (invalid: %v)\n", name, err)
						continue
					}
					fmt.Fprintf(out, "%-20s %s\n", name, t.Kind)
				}
				return nil
			}

			params := render.Params{Title: title, Icon: icon, Date: time.Now(), Kind: render.KindPage}
			if database {
				params.Kind = render.KindDatabase
			}
			if date != "" {
				if params.Date, err = time.Parse(time.DateOnly, date); err != nil {
					return fmt.Errorf("--date: %w", err)
				}
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			p, err := r.Render(name, params)
			if err != nil {
				return err
			}
			if outline {
				for _, line := range p.Outline() {
					fmt.Fprintln(out, line)
				}
				return nil
			}
			return writeJSON(out, map[string]any{
				"kind":       p.Kind,
				"title":      p.Title,
				"icon":       p.Icon,
				"properties": p.Properties,
				"children":   p.Children,
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&icon, "icon", "", "emoji icon")
	cmd.Flags().StringVar(&date, "date", "", "date for {{DATE}} as YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&database, "database", false, "render the default payload as a database")
	cmd.Flags().BoolVar(&outline, "outline", false, "print a text outline instead of JSON")
	cmd.Flags().BoolVar(&list, "list", false, "list available templates")
	return cmd
}

// NewStatusCommand creates the status command.
func NewStatusCommand(root *RootOptions) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize the request store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := root.loadConfig()
			if err != nil {
				return err
			}
			s, err := status.Collect(status.Options{
				RequestsDir:  l.Paths.RequestsDir,
				TemplatesDir: l.Paths.TemplatesDir,
				TargetsFile:  l.Paths.TargetsFile,
				LockPath:     l.LockPath(),
				JournalPath:  l.JournalPath(),
			})
			if err != nil {
				return err
			}
			return status.Write(cmd.OutOrStdout(), s, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "JSON output")
	return cmd
}

// NewInitCommand creates the init command.
func NewInitCommand(_ *RootOptions) *cobra.Command {
	var opts setup.Options
	cmd := &cobra.Command{
		Use:   "init <dir>",
		Short: "Create a docket workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := setup.Run(args[0], opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range written {
				fmt.Fprintf(out, "created %s\n", path)
			}
			fmt.Fprintf(out, "\nNext: put your token in %s/.env and list your pages in targets.yaml.\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.WithTemplates, "with-templates", false, "copy the builtin templates into templates/")
	return cmd
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docket %s\n", version)
		},
	}
}
