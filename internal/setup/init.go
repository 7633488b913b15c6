// Package setup scaffolds a docket workspace.
package setup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/msageha/docket/internal/config"
	atomicyaml "github.com/msageha/docket/internal/yaml"
	"github.com/msageha/docket/templates"
)

type Options struct {
	// WithTemplates copies the builtin templates into templates/ so they
	// can be edited.
	WithTemplates bool
}

// scaffoldFile maps an embedded scaffold file to its place in the workspace.
type scaffoldFile struct {
	src      string
	dst      string
	validate atomicyaml.Validator
	// keep leaves an existing file alone instead of failing.
	keep bool
}

var scaffold = []scaffoldFile{
	{src: "docket.yaml", dst: config.FileName, validate: validateConfig},
	{src: "targets.yaml", dst: "targets.yaml", validate: atomicyaml.ValidateYAML, keep: true},
	{src: "example-request.md", dst: filepath.Join("requests", "example-request.md"), validate: atomicyaml.ValidateFrontMatter, keep: true},
	{src: "env.example", dst: ".env.example", keep: true},
	{src: "gitignore", dst: ".gitignore", keep: true},
}

var dirs = []string{"requests", "templates", "logs"}

// Run initializes a workspace in dir and returns the files it wrote.
// An existing docket.yaml is an error; other existing files are kept.
func Run(dir string, opts Options) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace dir: %w", err)
	}
	if _, err := os.Stat(filepath.Join(absDir, config.FileName)); err == nil {
		return nil, fmt.Errorf("%s already exists in %s", config.FileName, absDir)
	}

	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(absDir, d), 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	var written []string
	for _, f := range scaffold {
		dst := filepath.Join(absDir, f.dst)
		if f.keep && exists(dst) {
			continue
		}
		if err := copyEmbedded(path.Join(templates.ScaffoldDir, f.src), dst, f.validate); err != nil {
			return written, err
		}
		written = append(written, dst)
	}

	if opts.WithTemplates {
		files, err := copyBuiltinTemplates(filepath.Join(absDir, "templates"))
		written = append(written, files...)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func copyBuiltinTemplates(dstDir string) ([]string, error) {
	entries, err := fs.ReadDir(templates.FS, templates.BuiltinDir)
	if err != nil {
		return nil, fmt.Errorf("list builtin templates: %w", err)
	}
	var written []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		dst := filepath.Join(dstDir, e.Name())
		if exists(dst) {
			continue
		}
		if err := copyEmbedded(path.Join(templates.BuiltinDir, e.Name()), dst, nil); err != nil {
			return written, err
		}
		written = append(written, dst)
	}
	return written, nil
}

func copyEmbedded(name, dst string, validate atomicyaml.Validator) error {
	data, err := fs.ReadFile(templates.FS, name)
	if err != nil {
		return fmt.Errorf("read template %s: %w", name, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", dst, err)
	}
	if err := atomicyaml.AtomicWriteRaw(dst, data, validate); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

func validateConfig(data []byte) error {
	_, err := config.Parse(data)
	return err
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return !errors.Is(err, fs.ErrNotExist)
}
