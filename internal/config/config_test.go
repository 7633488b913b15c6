package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestParse_DefaultsAndOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`
paths:
  requests_dir: inbox
notion:
  timeout_sec: 5
engine:
  dispatch_timeout_sec: 10
  lock: false
`))
	require.NoError(t, err)
	assert.Equal(t, "inbox", cfg.Paths.RequestsDir)
	assert.Equal(t, "templates", cfg.Paths.TemplatesDir)
	assert.Equal(t, 5, cfg.Notion.TimeoutSec)
	assert.Equal(t, "2022-06-28", cfg.Notion.Version)
	assert.Equal(t, DefaultTokenEnv, cfg.Notion.TokenEnv)
	assert.Equal(t, 10, cfg.Engine.DispatchTimeoutSec)
	assert.False(t, cfg.Engine.LockEnabled())
	assert.Equal(t, 0.5, cfg.Watch.DebounceSec)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.Engine.LockEnabled())
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "engine:\n  retries: 3\n",
		"negative timeout": "notion:\n  timeout_sec: -1\n",
		"bad level":        "logging:\n  level: loud\n",
		"not yaml":         "paths: [\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), "paths:\n  logs_dir: /var/log/docket\n")

	l, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, dir, l.Dir)
	assert.Equal(t, filepath.Join(dir, "requests"), l.Paths.RequestsDir)
	assert.Equal(t, filepath.Join(dir, "targets.yaml"), l.Paths.TargetsFile)
	assert.Equal(t, "/var/log/docket", l.Paths.LogsDir)
	assert.Equal(t, filepath.Join(dir, "requests", ".docket.lock"), l.LockPath())
	assert.Equal(t, "/var/log/docket/journal.jsonl", l.JournalPath())
}

func TestResolve_FindsAncestorConfig(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "logging:\n  level: debug\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	l, err := Resolve("", nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), l.Path)
	assert.Equal(t, "debug", l.Logging.Level)
}

func TestResolve_DefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	l, err := Resolve("", dir)
	require.NoError(t, err)
	assert.Empty(t, l.Path)
	assert.Equal(t, filepath.Join(dir, "requests"), l.Paths.RequestsDir)
}

func TestResolve_ExplicitMustExist(t *testing.T) {
	_, err := Resolve(filepath.Join(t.TempDir(), "missing.yaml"), ".")
	assert.Error(t, err)
}

func TestToken_FromDotEnv(t *testing.T) {
	dir := t.TempDir()
	const envName = "DOCKET_TEST_TOKEN_FROM_DOTENV"
	writeFile(t, filepath.Join(dir, FileName), "notion:\n  token_env: "+envName+"\n")
	writeFile(t, filepath.Join(dir, ".env"), envName+"=secret_from_file\n")
	t.Setenv(envName, "")
	os.Unsetenv(envName)

	l, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	token, err := l.Token()
	require.NoError(t, err)
	assert.Equal(t, "secret_from_file", token)
}

func TestToken_EnvironmentWinsOverDotEnv(t *testing.T) {
	dir := t.TempDir()
	const envName = "DOCKET_TEST_TOKEN_PRECEDENCE"
	writeFile(t, filepath.Join(dir, FileName), "notion:\n  token_env: "+envName+"\n")
	writeFile(t, filepath.Join(dir, ".env"), envName+"=from_file\n")
	t.Setenv(envName, "from_env")

	l, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	token, err := l.Token()
	require.NoError(t, err)
	assert.Equal(t, "from_env", token)
}

func TestToken_Missing(t *testing.T) {
	const envName = "DOCKET_TEST_TOKEN_MISSING"
	t.Setenv(envName, "")
	l := &Loaded{Config: Default()}
	l.Notion.TokenEnv = envName

	_, err := l.Token()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoToken))
	assert.Contains(t, err.Error(), envName)
}
