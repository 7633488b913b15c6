package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/docket/internal/setup"
)

const (
	wikiID    = "0123456789abcdef0123456789abcdef"
	missingID = "ffffffffffffffffffffffffffffffff"
)

type recorded struct {
	Method string
	Path   string
	Body   map[string]any
}

type fakeNotion struct {
	mu       sync.Mutex
	requests []recorded
}

func newFakeNotion(t *testing.T) (*fakeNotion, *httptest.Server) {
	t.Helper()
	f := &fakeNotion{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}
		f.mu.Lock()
		f.requests = append(f.requests, recorded{Method: r.Method, Path: r.URL.Path, Body: body})
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Header.Get("Authorization") != "Bearer secret_test":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"object":"error","status":401,"code":"unauthorized","message":"API token is invalid."}`))
		case strings.HasSuffix(r.URL.Path, "/"+missingID):
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"object":"error","status":404,"code":"object_not_found","message":"Could not find page."}`))
		case strings.HasSuffix(r.URL.Path, "/query"):
			_, _ = w.Write([]byte(`{"object":"list","results":[{"object":"page","id":"row-1"}],"next_cursor":null,"has_more":false}`))
		case r.URL.Path == "/v1/databases":
			_, _ = w.Write([]byte(`{"object":"database","id":"new-db","url":"https://www.notion.so/new-db"}`))
		default:
			_, _ = w.Write([]byte(`{"object":"page","id":"new-page","url":"https://www.notion.so/new-page"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeNotion) all() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

// workspace scaffolds a workspace whose config points at baseURL and
// returns the config path.
func workspace(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	_, err := setup.Run(dir, setup.Options{})
	require.NoError(t, err)

	cfg := "notion:\n  base_url: " + baseURL + "\nlogging:\n  level: debug\n"
	path := filepath.Join(dir, "docket.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path
}

func execute(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errb bytes.Buffer
	code = Execute(context.Background(), "1.2.3", args, &out, &errb)
	return out.String(), errb.String(), code
}

func TestVersion(t *testing.T) {
	out, _, code := execute(t, "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "docket 1.2.3\n", out)
}

func TestUnknownCommand(t *testing.T) {
	_, stderr, code := execute(t, "frobnicate")
	assert.Equal(t, 1, code)
	assert.True(t, strings.HasPrefix(stderr, "docket: "), stderr)
}

func TestInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ws")

	out, _, code := execute(t, "init", dir, "--with-templates")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "docket.yaml")
	assert.FileExists(t, filepath.Join(dir, "templates", "meeting-notes.jsonc"))

	_, stderr, code := execute(t, "init", dir)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "already exists")
}

func TestRender_Outline(t *testing.T) {
	cfg := workspace(t, "http://127.0.0.1:1")

	out, _, code := execute(t, "--config", cfg, "render", "meeting-notes",
		"--title", "Weekly sync", "--date", "2026-10-16", "--outline")
	require.Equal(t, 0, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "page: Weekly sync", lines[0])
	assert.Contains(t, out, "callout: Date: 2026-10-16")
}

func TestRender_JSON(t *testing.T) {
	cfg := workspace(t, "http://127.0.0.1:1")

	out, _, code := execute(t, "--config", cfg, "render", "task-database", "--title", "Sprint tasks")
	require.Equal(t, 0, code)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "database", got["kind"])
	assert.Equal(t, "Sprint tasks", got["title"])
	assert.Contains(t, got["properties"], "Status")
}

func TestRender_List(t *testing.T) {
	cfg := workspace(t, "http://127.0.0.1:1")

	out, _, code := execute(t, "--config", cfg, "render", "--list")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "meeting-notes")
	assert.Contains(t, out, "project-page")
	assert.Contains(t, out, "task-database")
}

func TestRender_UnknownTemplate(t *testing.T) {
	cfg := workspace(t, "http://127.0.0.1:1")

	_, stderr, code := execute(t, "--config", cfg, "render", "no-such-template")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no-such-template")
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	t.Setenv("NOTION_API_TOKEN", "")
	fake, srv := newFakeNotion(t)
	cfg := workspace(t, srv.URL)
	reqPath := filepath.Join(filepath.Dir(cfg), "requests", "example-request.md")
	before, err := os.ReadFile(reqPath)
	require.NoError(t, err)

	out, _, code := execute(t, "--config", cfg, "run", "--dry-run")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "1 done")
	assert.Contains(t, out, "page: Weekly sync")

	after, err := os.ReadFile(reqPath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.Empty(t, fake.all())
	assert.NoFileExists(t, filepath.Join(filepath.Dir(cfg), "logs", "journal.jsonl"))
}

func TestRun_ProcessesPendingRequests(t *testing.T) {
	t.Setenv("NOTION_API_TOKEN", "secret_test")
	fake, srv := newFakeNotion(t)
	cfg := workspace(t, srv.URL)
	reqPath := filepath.Join(filepath.Dir(cfg), "requests", "example-request.md")

	out, _, code := execute(t, "--config", cfg, "run")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "new-page")
	assert.Contains(t, out, "1 done, 0 failed")

	reqs := fake.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/v1/pages", reqs[0].Path)
	parent := reqs[0].Body["parent"].(map[string]any)
	assert.Equal(t, wikiID, parent["page_id"])

	data, err := os.ReadFile(reqPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "status: done")
	assert.Contains(t, string(data), "completed_at:")
	assert.FileExists(t, filepath.Join(filepath.Dir(cfg), "logs", "journal.jsonl"))

	// A second pass finds nothing to do.
	out, _, code = execute(t, "--config", cfg, "run")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "0 done, 0 failed, 0 malformed, 1 skipped")
	assert.Len(t, fake.all(), 1)
}

func TestRun_RemoteFailureIsRecorded(t *testing.T) {
	t.Setenv("NOTION_API_TOKEN", "wrong")
	_, srv := newFakeNotion(t)
	cfg := workspace(t, srv.URL)

	out, _, code := execute(t, "--config", cfg, "run")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "dispatch: ")

	data, err := os.ReadFile(filepath.Join(filepath.Dir(cfg), "requests", "example-request.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "status: error")
	assert.Contains(t, string(data), "401")
}

func TestRun_RequiresToken(t *testing.T) {
	t.Setenv("NOTION_API_TOKEN", "")
	_, srv := newFakeNotion(t)
	cfg := workspace(t, srv.URL)

	_, stderr, code := execute(t, "--config", cfg, "run")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "NOTION_API_TOKEN")
}

func TestCreatePage(t *testing.T) {
	t.Setenv("NOTION_API_TOKEN", "secret_test")
	fake, srv := newFakeNotion(t)
	cfg := workspace(t, srv.URL)

	out, _, code := execute(t, "--config", cfg, "create-page",
		"--target", "team-wiki", "--template", "project-page", "--title", "Apollo", "--icon", "🛰️")
	require.Equal(t, 0, code)

	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &obj))
	assert.Equal(t, "new-page", obj["id"])

	reqs := fake.all()
	require.Len(t, reqs, 1)
	body := reqs[0].Body
	assert.Equal(t, wikiID, body["parent"].(map[string]any)["page_id"])
	assert.Equal(t, "🛰️", body["icon"].(map[string]any)["emoji"])
	assert.NotEmpty(t, body["children"])
}

func TestCreateDatabase_ExplicitID(t *testing.T) {
	t.Setenv("NOTION_API_TOKEN", "secret_test")
	fake, srv := newFakeNotion(t)
	cfg := workspace(t, srv.URL)
	explicit := "fedcba9876543210fedcba9876543210"

	out, _, code := execute(t, "--config", cfg, "create-db",
		"--target", "team-wiki", "--id", explicit, "--template", "task-database")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "new-db")

	reqs := fake.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/v1/databases", reqs[0].Path)
	assert.Equal(t, explicit, reqs[0].Body["parent"].(map[string]any)["page_id"])
}

func TestCreateDatabase_RejectsPageTemplate(t *testing.T) {
	t.Setenv("NOTION_API_TOKEN", "secret_test")
	fake, srv := newFakeNotion(t)
	cfg := workspace(t, srv.URL)

	_, stderr, code := execute(t, "--config", cfg, "create-db", "--target", "team-wiki", "--template", "meeting-notes")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "renders a page")
	assert.Empty(t, fake.all())
}

func TestDirect_UnknownTarget(t *testing.T) {
	t.Setenv("NOTION_API_TOKEN", "secret_test")
	fake, srv := newFakeNotion(t)
	cfg := workspace(t, srv.URL)

	_, stderr, code := execute(t, "--config", cfg, "get-page", "--target", "nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "nope")
	assert.Empty(t, fake.all())
}

func TestDirect_TargetRequired(t *testing.T) {
	t.Setenv("NOTION_API_TOKEN", "secret_test")
	_, srv := newFakeNotion(t)
	cfg := workspace(t, srv.URL)

	_, stderr, code := execute(t, "--config", cfg, "get-page")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--target or --id")
}

func TestQueryDatabase(t *testing.T) {
	t.Setenv("NOTION_API_TOKEN", "secret_test")
	fake, srv := newFakeNotion(t)
	cfg := workspace(t, srv.URL)

	out, _, code := execute(t, "--config", cfg, "query-db", "--target", "team-wiki",
		"--filter", `{"property":"Status","select":{"equals":"Done"}}`,
		"--sorts", `[{"property":"Due","direction":"ascending"}]`,
		"--page-size", "10")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "row-1")

	reqs := fake.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/v1/databases/"+wikiID+"/query", reqs[0].Path)
	assert.Equal(t, "Status", reqs[0].Body["filter"].(map[string]any)["property"])
	assert.Len(t, reqs[0].Body["sorts"], 1)
	assert.EqualValues(t, 10, reqs[0].Body["page_size"])
}

func TestQueryDatabase_InvalidFilter(t *testing.T) {
	t.Setenv("NOTION_API_TOKEN", "secret_test")
	fake, srv := newFakeNotion(t)
	cfg := workspace(t, srv.URL)

	_, stderr, code := execute(t, "--config", cfg, "query-db", "--target", "team-wiki", "--filter", "{nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--filter")
	assert.Empty(t, fake.all())
}

func TestUpdatePage(t *testing.T) {
	t.Setenv("NOTION_API_TOKEN", "secret_test")
	fake, srv := newFakeNotion(t)
	cfg := workspace(t, srv.URL)

	_, _, code := execute(t, "--config", cfg, "update-page", "--id", wikiID,
		"--properties", `{"Status":{"select":{"name":"Done"}}}`)
	require.Equal(t, 0, code)

	reqs := fake.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPatch, reqs[0].Method)
	assert.Equal(t, "/v1/pages/"+wikiID, reqs[0].Path)
	assert.Contains(t, reqs[0].Body["properties"], "Status")
}

func TestUpdatePage_PropertiesRequired(t *testing.T) {
	_, stderr, code := execute(t, "update-page", "--id", wikiID)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "properties")
}

func TestAppendBlocks(t *testing.T) {
	t.Setenv("NOTION_API_TOKEN", "secret_test")
	fake, srv := newFakeNotion(t)
	cfg := workspace(t, srv.URL)

	_, _, code := execute(t, "--config", cfg, "append-blocks", "--target", "team-wiki", "--template", "meeting-notes")
	require.Equal(t, 0, code)

	reqs := fake.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPatch, reqs[0].Method)
	assert.Equal(t, "/v1/blocks/"+wikiID+"/children", reqs[0].Path)
	assert.NotEmpty(t, reqs[0].Body["children"])
}

func TestAppendBlocks_NeedsExactlyOneSource(t *testing.T) {
	_, stderr, code := execute(t, "append-blocks", "--id", wikiID)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "exactly one of --blocks or --template")
}

func TestStatus_JSON(t *testing.T) {
	cfg := workspace(t, "http://127.0.0.1:1")

	out, _, code := execute(t, "--config", cfg, "status", "--json")
	require.Equal(t, 0, code)

	var got struct {
		Counts struct {
			Pending int `json:"pending"`
		} `json:"counts"`
		Targets []string `json:"targets"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got.Counts.Pending)
	assert.Equal(t, []string{"team-wiki"}, got.Targets)
}

func TestDirect_UnauthorizedNamesTokenVariable(t *testing.T) {
	t.Setenv("NOTION_API_TOKEN", "revoked")
	_, srv := newFakeNotion(t)
	cfg := workspace(t, srv.URL)

	_, stderr, code := execute(t, "--config", cfg, "get-page", "--target", "team-wiki")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "HTTP 401")
	assert.Contains(t, stderr, "check the token in NOTION_API_TOKEN")
}

func TestDirect_NotFoundSuggestsSharing(t *testing.T) {
	t.Setenv("NOTION_API_TOKEN", "secret_test")
	_, srv := newFakeNotion(t)
	cfg := workspace(t, srv.URL)

	_, stderr, code := execute(t, "--config", cfg, "get-page", "--id", missingID)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "HTTP 404")
	assert.Contains(t, stderr, "is "+missingID+" shared with the integration?")
}
