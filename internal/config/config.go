// Package config locates and loads docket.yaml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/msageha/docket/internal/model"
)

const (
	FileName        = "docket.yaml"
	DefaultTokenEnv = "NOTION_API_TOKEN"
)

// ErrNoToken is returned by Token when the configured variable is unset.
var ErrNoToken = errors.New("notion API token is not set")

// Loaded is a configuration together with where it came from.
type Loaded struct {
	model.Config
	// Path is the config file, empty when defaults were used.
	Path string
	// Dir is the base directory relative paths were resolved against.
	Dir string
}

// Default returns the configuration used for zero values.
func Default() model.Config {
	return model.Config{
		Paths: model.PathsConfig{
			RequestsDir:  "requests",
			TemplatesDir: "templates",
			TargetsFile:  "targets.yaml",
			LogsDir:      "logs",
		},
		Notion: model.NotionConfig{
			BaseURL:    "https://api.notion.com",
			Version:    "2022-06-28",
			TokenEnv:   DefaultTokenEnv,
			TimeoutSec: 30,
		},
		Watch: model.WatchConfig{
			DebounceSec: 0.5,
		},
		Logging: model.LoggingConfig{Level: "info"},
	}
}

// Find walks from start up to the filesystem root looking for docket.yaml.
func Find(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Resolve loads explicit when set (it must exist), otherwise the nearest
// docket.yaml above cwd, otherwise defaults rooted at cwd. A .env file in
// the base directory is loaded without overriding the environment.
func Resolve(explicit, cwd string) (*Loaded, error) {
	if explicit != "" {
		return Load(explicit)
	}
	if path, ok := Find(cwd); ok {
		return Load(path)
	}
	dir, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	l := &Loaded{Config: Default(), Dir: dir}
	l.resolvePaths()
	if err := loadDotEnv(dir); err != nil {
		return nil, err
	}
	return l, nil
}

// Load reads the config file at path.
func Load(path string) (*Loaded, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	l := &Loaded{Config: cfg, Path: abs, Dir: filepath.Dir(abs)}
	l.resolvePaths()
	if err := loadDotEnv(l.Dir); err != nil {
		return nil, err
	}
	return l, nil
}

// Parse decodes config data strictly (unknown keys are errors), then
// applies defaults and validates.
func Parse(data []byte) (model.Config, error) {
	var cfg model.Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return model.Config{}, fmt.Errorf("parse config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values from Default.
func ApplyDefaults(cfg *model.Config) {
	def := Default()
	setDefault(&cfg.Paths.RequestsDir, def.Paths.RequestsDir)
	setDefault(&cfg.Paths.TemplatesDir, def.Paths.TemplatesDir)
	setDefault(&cfg.Paths.TargetsFile, def.Paths.TargetsFile)
	setDefault(&cfg.Paths.LogsDir, def.Paths.LogsDir)
	setDefault(&cfg.Notion.BaseURL, def.Notion.BaseURL)
	setDefault(&cfg.Notion.Version, def.Notion.Version)
	setDefault(&cfg.Notion.TokenEnv, def.Notion.TokenEnv)
	setDefault(&cfg.Logging.Level, def.Logging.Level)
	if cfg.Notion.TimeoutSec == 0 {
		cfg.Notion.TimeoutSec = def.Notion.TimeoutSec
	}
	if cfg.Watch.DebounceSec == 0 {
		cfg.Watch.DebounceSec = def.Watch.DebounceSec
	}
}

func setDefault(field *string, def string) {
	if strings.TrimSpace(*field) == "" {
		*field = def
	}
}

func Validate(cfg model.Config) error {
	var problems []string
	if cfg.Notion.TimeoutSec < 0 {
		problems = append(problems, "notion.timeout_sec must not be negative")
	}
	if cfg.Engine.DispatchTimeoutSec < 0 {
		problems = append(problems, "engine.dispatch_timeout_sec must not be negative")
	}
	if cfg.Engine.JournalMaxBytes < 0 {
		problems = append(problems, "engine.journal_max_bytes must not be negative")
	}
	if cfg.Watch.DebounceSec < 0 {
		problems = append(problems, "watch.debounce_sec must not be negative")
	}
	if cfg.Watch.ScanIntervalSec < 0 {
		problems = append(problems, "watch.scan_interval_sec must not be negative")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (l *Loaded) resolvePaths() {
	for _, p := range []*string{
		&l.Paths.RequestsDir,
		&l.Paths.TemplatesDir,
		&l.Paths.TargetsFile,
		&l.Paths.LogsDir,
	} {
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(l.Dir, *p)
		}
	}
}

// JournalPath is the pass journal inside the logs directory.
func (l *Loaded) JournalPath() string {
	return filepath.Join(l.Paths.LogsDir, "journal.jsonl")
}

// LockPath is the pass lock inside the request store.
func (l *Loaded) LockPath() string {
	return filepath.Join(l.Paths.RequestsDir, ".docket.lock")
}

// Token reads the API token from the configured environment variable.
func (l *Loaded) Token() (string, error) {
	token := strings.TrimSpace(os.Getenv(l.Notion.TokenEnv))
	if token == "" {
		return "", fmt.Errorf("%w: set %s (see .env.example)", ErrNoToken, l.Notion.TokenEnv)
	}
	return token, nil
}

func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
