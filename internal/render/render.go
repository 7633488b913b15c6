package render

import (
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/msageha/docket/templates"
)

const (
	defaultPageTitle     = "Untitled"
	defaultDatabaseTitle = "Untitled Database"
)

// Params are the per-request values substituted into a template.
type Params struct {
	Title string
	Icon  string
	// Date fills {{DATE}} as YYYY-MM-DD. Callers pass their clock's
	// date so renders stay reproducible.
	Date time.Time
	// Kind selects the default payload when no template is named.
	Kind Kind
}

type replacer func(string) string

// Renderer loads and renders templates. Parsed templates are cached for
// the renderer's lifetime, which is one pass.
type Renderer struct {
	src source

	mu    sync.Mutex
	cache map[string]*Template
}

// New returns a renderer reading dir first and then the embedded builtins.
// An empty dir uses only the builtins.
func New(dir string) *Renderer {
	builtin, err := fs.Sub(templates.FS, templates.BuiltinDir)
	if err != nil {
		panic(fmt.Sprintf("builtin templates: %v", err))
	}
	return NewWithFS(dir, builtin)
}

// NewWithFS is New with an explicit builtin filesystem. A nil builtin
// disables builtins.
func NewWithFS(dir string, builtin fs.FS) *Renderer {
	return &Renderer{
		src:   source{dir: dir, builtin: builtin},
		cache: make(map[string]*Template),
	}
}

// Load returns the parsed template for name.
func (r *Renderer) Load(name string) (*Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.cache[name]; ok {
		return t, nil
	}
	data, err := r.src.read(name)
	if err != nil {
		return nil, err
	}
	t, err := ParseTemplate(name, data)
	if err != nil {
		return nil, err
	}
	r.cache[name] = t
	return t, nil
}

// Names lists the available template names.
func (r *Renderer) Names() ([]string, error) {
	return r.src.names()
}

// Render builds the payload for template name. An empty name yields the
// default payload for params.Kind: a bare titled page or a database with a
// single Name column. Unknown names return *model.TemplateNotFoundError.
func (r *Renderer) Render(name string, params Params) (*Payload, error) {
	if name == "" {
		return defaultPayload(params), nil
	}
	t, err := r.Load(name)
	if err != nil {
		return nil, err
	}
	return t.apply(params), nil
}

func defaultPayload(params Params) *Payload {
	kind := params.Kind
	if kind == "" {
		kind = KindPage
	}
	p := &Payload{Kind: kind, Icon: params.Icon}
	switch kind {
	case KindDatabase:
		p.Title = orDefault(params.Title, defaultDatabaseTitle)
		p.Properties = map[string]any{"Name": map[string]any{"title": map[string]any{}}}
	default:
		p.Title = orDefault(params.Title, defaultPageTitle)
		p.Properties = map[string]any{}
		p.setTitleProperty()
	}
	return p
}

func (t *Template) apply(params Params) *Payload {
	titleParam := orDefault(params.Title, defaultTitle(t.Kind))
	icon := orDefault(params.Icon, t.Icon)
	date := ""
	if !params.Date.IsZero() {
		date = params.Date.Format(time.DateOnly)
	}
	sub := strings.NewReplacer(
		"{{TITLE}}", titleParam,
		"{{PROJECT_NAME}}", titleParam,
		"{{DATE}}", date,
		"{{ICON}}", icon,
	).Replace

	p := &Payload{
		Kind:     t.Kind,
		Template: t.Name,
		Icon:     icon,
	}
	switch {
	case params.Title != "":
		p.Title = params.Title
	case t.Title != "":
		p.Title = sub(t.Title)
	default:
		p.Title = titleParam
	}

	props, _ := substitute(t.Properties, sub).(map[string]any)
	if props == nil {
		props = map[string]any{}
	}
	p.Properties = props

	if t.Kind == KindDatabase {
		if len(p.Properties) == 0 {
			p.Properties["Name"] = map[string]any{"title": map[string]any{}}
		}
		return p
	}

	p.setTitleProperty()
	p.Children = []Block{}
	for _, b := range t.Blocks {
		p.Children = append(p.Children, b.render(sub)...)
	}
	for _, s := range t.Sections {
		p.Children = append(p.Children, headingBlock(s.Level, sub(s.Heading)))
		for _, b := range s.Blocks {
			p.Children = append(p.Children, b.render(sub)...)
		}
	}
	return p
}

// substitute deep-copies a decoded JSON value, replacing placeholders in
// every string.
func substitute(v any, sub replacer) any {
	switch v := v.(type) {
	case string:
		return sub(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = substitute(item, sub)
		}
		return out
	case map[string]any:
		if v == nil {
			return nil
		}
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = substitute(item, sub)
		}
		return out
	default:
		return v
	}
}

func defaultTitle(kind Kind) string {
	if kind == KindDatabase {
		return defaultDatabaseTitle
	}
	return defaultPageTitle
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
