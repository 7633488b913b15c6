package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/msageha/docket/internal/config"
	"github.com/msageha/docket/internal/request"
	"github.com/msageha/docket/internal/resolve"
)

func TestRun_CreatesWorkspace(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "notes")

	written, err := Run(dir, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(written) != 5 {
		t.Errorf("wrote %d files, want 5: %v", len(written), written)
	}

	for _, d := range []string{"requests", "templates", "logs"} {
		info, err := os.Stat(filepath.Join(dir, d))
		if err != nil || !info.IsDir() {
			t.Errorf("directory %s missing: %v", d, err)
		}
	}
	for _, f := range []string{"docket.yaml", "targets.yaml", ".env.example", ".gitignore", "requests/example-request.md"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("file %s missing: %v", f, err)
		}
	}
}

func TestRun_ScaffoldIsUsable(t *testing.T) {
	dir := t.TempDir()
	if _, err := Run(dir, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	l, err := config.Load(filepath.Join(dir, config.FileName))
	if err != nil {
		t.Fatalf("scaffold config does not load: %v", err)
	}
	if l.Paths.RequestsDir != filepath.Join(dir, "requests") {
		t.Errorf("requests dir = %s", l.Paths.RequestsDir)
	}

	table, err := resolve.LoadTable(l.Paths.TargetsFile)
	if err != nil {
		t.Fatalf("scaffold targets do not load: %v", err)
	}
	if _, ok := table.Lookup("team-wiki"); !ok {
		t.Error("scaffold targets should define team-wiki")
	}

	entries, err := request.NewStore(l.Paths.RequestsDir).Scan()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Err != nil {
		t.Fatalf("example request should parse cleanly: %+v", entries)
	}
	if entries[0].Doc.Record.Template != "meeting-notes" {
		t.Errorf("template = %q", entries[0].Doc.Record.Template)
	}
}

func TestRun_RefusesExistingConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.FileName), []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Run(dir, Options{}); err == nil {
		t.Fatal("expected error for existing docket.yaml")
	}
}

func TestRun_KeepsExistingTargets(t *testing.T) {
	dir := t.TempDir()
	mine := "my-page: fedcba9876543210fedcba9876543210\n"
	if err := os.WriteFile(filepath.Join(dir, "targets.yaml"), []byte(mine), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Run(dir, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "targets.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != mine {
		t.Errorf("targets.yaml was overwritten:\n%s", got)
	}
}

func TestRun_WithTemplates(t *testing.T) {
	dir := t.TempDir()
	if _, err := Run(dir, Options{WithTemplates: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, name := range []string{"meeting-notes.jsonc", "project-page.jsonc", "task-database.jsonc"} {
		if _, err := os.Stat(filepath.Join(dir, "templates", name)); err != nil {
			t.Errorf("template %s not copied: %v", name, err)
		}
	}
}
