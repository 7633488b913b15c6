package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/msageha/docket/internal/config"
	"github.com/msageha/docket/internal/notion"
	"github.com/msageha/docket/internal/render"
	"github.com/msageha/docket/internal/resolve"
)

// targetFlags name the remote object a direct invocation acts on.
type targetFlags struct {
	Target string
	ID     string
}

func (f *targetFlags) register(cmd *cobra.Command, what string) {
	cmd.Flags().StringVarP(&f.Target, "target", "t", "", what+" as a name from the targets file or a raw ID")
	cmd.Flags().StringVar(&f.ID, "id", "", "explicit "+what+" ID (overrides --target)")
}

func (f *targetFlags) resolve(l *config.Loaded) (string, error) {
	if f.Target == "" && f.ID == "" {
		return "", errors.New("one of --target or --id is required")
	}
	table, err := resolve.LoadTable(l.Paths.TargetsFile)
	if err != nil {
		return "", fmt.Errorf("load name table: %w", err)
	}
	return resolve.Resolve(f.Target, f.ID, table)
}

// direct is the shared shape of the commands that make one remote call
// outside the request lifecycle. call receives the resolved ID; its result
// is written as JSON.
func direct(root *RootOptions, cmd *cobra.Command, tf *targetFlags,
	call func(ctx context.Context, l *config.Loaded, c *notion.Client, id string) (any, error)) error {
	l, err := root.loadConfig()
	if err != nil {
		return err
	}
	id, err := tf.resolve(l)
	if err != nil {
		return err
	}
	client, err := newClient(l, root.logger(cmd, l))
	if err != nil {
		return err
	}
	result, err := call(cmd.Context(), l, client, id)
	if err != nil {
		return remoteHint(err, l, id)
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

// remoteHint adds the usual remedy to API errors whose cause is local setup.
func remoteHint(err error, l *config.Loaded, id string) error {
	switch {
	case notion.IsUnauthorized(err):
		return fmt.Errorf("%w (check the token in %s)", err, l.Notion.TokenEnv)
	case notion.IsNotFound(err):
		return fmt.Errorf("%w (is %s shared with the integration?)", err, id)
	}
	return err
}

type renderFlags struct {
	Template string
	Title    string
	Icon     string
}

func (f *renderFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Template, "template", "", "template name (default: empty page)")
	cmd.Flags().StringVar(&f.Title, "title", "", "title")
	cmd.Flags().StringVar(&f.Icon, "icon", "", "emoji icon (overrides the template's)")
}

func (f *renderFlags) render(l *config.Loaded, kind render.Kind) (*render.Payload, error) {
	p, err := render.New(l.Paths.TemplatesDir).Render(f.Template, render.Params{
		Title: f.Title,
		Icon:  f.Icon,
		Date:  time.Now(),
		Kind:  kind,
	})
	if err != nil {
		return nil, err
	}
	if p.Kind != kind {
		return nil, fmt.Errorf("template %q renders a %s, not a %s", p.Template, p.Kind, kind)
	}
	return p, nil
}

// NewCreatePageCommand creates the create-page command.
func NewCreatePageCommand(root *RootOptions) *cobra.Command {
	var tf targetFlags
	var rf renderFlags
	cmd := &cobra.Command{
		Use:   "create-page",
		Short: "Create a page from a template under a parent page",
		Example: `  docket create-page --target team-wiki --template meeting-notes --title "Weekly sync"
  docket create-page --target team-wiki --template project-page --title Apollo --icon 🚀`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return direct(root, cmd, &tf, func(ctx context.Context, l *config.Loaded, c *notion.Client, id string) (any, error) {
				p, err := rf.render(l, render.KindPage)
				if err != nil {
					return nil, err
				}
				return c.CreatePage(ctx, id, p)
			})
		},
	}
	tf.register(cmd, "parent page")
	rf.register(cmd)
	return cmd
}

// NewCreateDatabaseCommand creates the create-db command.
func NewCreateDatabaseCommand(root *RootOptions) *cobra.Command {
	var tf targetFlags
	var rf renderFlags
	cmd := &cobra.Command{
		Use:     "create-db",
		Short:   "Create a database from a template under a parent page",
		Example: `  docket create-db --target team-wiki --template task-database --title "Sprint tasks"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return direct(root, cmd, &tf, func(ctx context.Context, l *config.Loaded, c *notion.Client, id string) (any, error) {
				p, err := rf.render(l, render.KindDatabase)
				if err != nil {
					return nil, err
				}
				return c.CreateDatabase(ctx, id, p)
			})
		},
	}
	tf.register(cmd, "parent page")
	rf.register(cmd)
	return cmd
}

// NewUpdatePageCommand creates the update-page command.
func NewUpdatePageCommand(root *RootOptions) *cobra.Command {
	var tf targetFlags
	var properties string
	cmd := &cobra.Command{
		Use:     "update-page",
		Short:   "Update a page's properties",
		Example: `  docket update-page --id 0123456789abcdef0123456789abcdef --properties '{"Status":{"select":{"name":"Done"}}}'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var props map[string]any
			if err := parseJSONFlag("properties", properties, &props); err != nil {
				return err
			}
			return direct(root, cmd, &tf, func(ctx context.Context, _ *config.Loaded, c *notion.Client, id string) (any, error) {
				return c.UpdatePage(ctx, id, props)
			})
		},
	}
	tf.register(cmd, "page")
	cmd.Flags().StringVarP(&properties, "properties", "p", "", "properties object as JSON (required)")
	_ = cmd.MarkFlagRequired("properties")
	return cmd
}

// NewQueryDatabaseCommand creates the query-db command.
func NewQueryDatabaseCommand(root *RootOptions) *cobra.Command {
	var tf targetFlags
	var filter, sorts, startCursor string
	var pageSize int
	cmd := &cobra.Command{
		Use:   "query-db",
		Short: "Query a database",
		Example: `  docket query-db --target tasks --filter '{"property":"Status","select":{"equals":"Done"}}'
  docket query-db --target tasks --sorts '[{"property":"Due","direction":"ascending"}]' --page-size 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts notion.QueryOptions
			if filter != "" {
				if err := parseJSONFlag("filter", filter, &opts.Filter); err != nil {
					return err
				}
			}
			if sorts != "" {
				if err := parseJSONFlag("sorts", sorts, &opts.Sorts); err != nil {
					return err
				}
			}
			if pageSize < 0 || pageSize > 100 {
				return errors.New("--page-size must be between 1 and 100")
			}
			opts.PageSize = pageSize
			opts.StartCursor = startCursor
			return direct(root, cmd, &tf, func(ctx context.Context, _ *config.Loaded, c *notion.Client, id string) (any, error) {
				return c.QueryDatabase(ctx, id, opts)
			})
		},
	}
	tf.register(cmd, "database")
	cmd.Flags().StringVar(&filter, "filter", "", "filter object as JSON")
	cmd.Flags().StringVar(&sorts, "sorts", "", "sorts array as JSON")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "results per page (1-100)")
	cmd.Flags().StringVar(&startCursor, "start-cursor", "", "cursor from a previous query's next_cursor")
	return cmd
}

// NewAppendBlocksCommand creates the append-blocks command.
func NewAppendBlocksCommand(root *RootOptions) *cobra.Command {
	var tf targetFlags
	var blocks, template string
	cmd := &cobra.Command{
		Use:   "append-blocks",
		Short: "Append blocks to a page or block",
		Example: `  docket append-blocks --target team-wiki --blocks '[{"object":"block","type":"divider","divider":{}}]'
  docket append-blocks --target team-wiki --template meeting-notes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (blocks == "") == (template == "") {
				return errors.New("exactly one of --blocks or --template is required")
			}
			var children []map[string]any
			if blocks != "" {
				if err := parseJSONFlag("blocks", blocks, &children); err != nil {
					return err
				}
			}
			return direct(root, cmd, &tf, func(ctx context.Context, l *config.Loaded, c *notion.Client, id string) (any, error) {
				if template != "" {
					rf := renderFlags{Template: template}
					p, err := rf.render(l, render.KindPage)
					if err != nil {
						return nil, err
					}
					children = p.Children
				}
				if len(children) == 0 {
					return nil, errors.New("no blocks to append")
				}
				return c.AppendBlocks(ctx, id, children)
			})
		},
	}
	tf.register(cmd, "parent block")
	cmd.Flags().StringVar(&blocks, "blocks", "", "array of block objects as JSON")
	cmd.Flags().StringVar(&template, "template", "", "append the blocks a page template renders")
	return cmd
}

// NewGetPageCommand creates the get-page command.
func NewGetPageCommand(root *RootOptions) *cobra.Command {
	var tf targetFlags
	cmd := &cobra.Command{
		Use:   "get-page",
		Short: "Retrieve a page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return direct(root, cmd, &tf, func(ctx context.Context, _ *config.Loaded, c *notion.Client, id string) (any, error) {
				return c.GetPage(ctx, id)
			})
		},
	}
	tf.register(cmd, "page")
	return cmd
}
