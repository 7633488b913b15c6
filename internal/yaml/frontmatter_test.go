package yaml

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yamlv3 "gopkg.in/yaml.v3"
)

func TestSplitFrontMatter(t *testing.T) {
	content := []byte("---\nstatus: pending\ntarget: team-wiki\n---\n# Title\n\nbody  \n")
	fm, err := SplitFrontMatter(content)
	require.NoError(t, err)

	assert.Equal(t, "---\n", string(fm.Open))
	assert.Equal(t, "status: pending\ntarget: team-wiki\n", string(fm.Header))
	assert.Equal(t, "---\n", string(fm.Close))
	assert.Equal(t, "# Title\n\nbody  \n", string(fm.Body))
	assert.Equal(t, content, fm.Bytes())
}

func TestSplitFrontMatter_Variants(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		body    string
		wantErr error
	}{
		{name: "dots terminator", in: "---\na: 1\n...\nbody", body: "body"},
		{name: "crlf", in: "---\r\na: 1\r\n---\r\nbody\r\n", body: "body\r\n"},
		{name: "no body", in: "---\na: 1\n---", body: ""},
		{name: "empty header", in: "---\n---\nbody", body: "body"},
		{name: "missing opener", in: "a: 1\n---\nbody", wantErr: ErrNoFrontMatter},
		{name: "empty", in: "", wantErr: ErrNoFrontMatter},
		{name: "unterminated", in: "---\na: 1\nbody\n", wantErr: ErrUnterminated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, err := SplitFrontMatter([]byte(tt.in))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(fm.Body))
			assert.Equal(t, tt.in, string(fm.Bytes()))
		})
	}
}

func TestHeaderNode_RejectsNonMapping(t *testing.T) {
	fm, err := SplitFrontMatter([]byte("---\n- a\n- b\n---\n"))
	require.NoError(t, err)
	_, err = fm.HeaderNode()
	assert.ErrorIs(t, err, ErrHeaderNotMapping)
}

func TestSetString_ReplacesAndAppends(t *testing.T) {
	content := []byte("---\n# request header\nstatus: pending # set by author\ntarget: team-wiki\nnested:\n  a: 1\n---\nBody stays.\n")
	fm, err := SplitFrontMatter(content)
	require.NoError(t, err)

	mapping, err := fm.HeaderNode()
	require.NoError(t, err)
	SetString(mapping, "status", "done", 0)
	SetString(mapping, "completed_at", "2026-10-16T09:00:00Z", yamlv3.DoubleQuotedStyle)
	require.NoError(t, fm.SetHeader(mapping))

	out := fm.Bytes()
	again, err := SplitFrontMatter(out)
	require.NoError(t, err)
	assert.Equal(t, "Body stays.\n", string(again.Body))

	var decoded map[string]any
	require.NoError(t, yamlv3.Unmarshal(again.Header, &decoded))
	assert.Equal(t, "done", decoded["status"])
	assert.Equal(t, "team-wiki", decoded["target"])
	assert.Equal(t, "2026-10-16T09:00:00Z", decoded["completed_at"])
	assert.Equal(t, map[string]any{"a": 1}, decoded["nested"])

	header := string(again.Header)
	assert.Contains(t, header, "# request header")
	assert.Contains(t, header, "# set by author")
	assert.Less(t, strings.Index(header, "status:"), strings.Index(header, "target:"))
	assert.Less(t, strings.Index(header, "nested:"), strings.Index(header, "completed_at:"))
}

func TestSetHeader_EmptyHeaderGainsKeys(t *testing.T) {
	fm, err := SplitFrontMatter([]byte("---\n---\nbody\n"))
	require.NoError(t, err)
	mapping, err := fm.HeaderNode()
	require.NoError(t, err)

	SetString(mapping, "status", "error", 0)
	require.NoError(t, fm.SetHeader(mapping))
	assert.Equal(t, "---\nstatus: error\n---\nbody\n", string(fm.Bytes()))
}

func TestSetHeader_KeepsContentNormalizesLayout(t *testing.T) {
	content := []byte("---\nstatus: pending      # aligned comment\n\ntarget: team-wiki\nsummary: >\n  first line\n  second line\n---\nbody\n")
	fm, err := SplitFrontMatter(content)
	require.NoError(t, err)
	mapping, err := fm.HeaderNode()
	require.NoError(t, err)

	SetString(mapping, "status", "done", 0)
	require.NoError(t, fm.SetHeader(mapping))
	header := string(fm.Header)

	var decoded map[string]any
	require.NoError(t, yamlv3.Unmarshal(fm.Header, &decoded))
	assert.Equal(t, "done", decoded["status"])
	assert.Equal(t, "team-wiki", decoded["target"])
	assert.Equal(t, "first line second line\n", decoded["summary"])
	assert.Contains(t, header, "# aligned comment")

	// Layout is the encoder's: one space before the comment, no blank line.
	assert.Contains(t, header, "status: done # aligned comment\n")
	assert.NotContains(t, header, "\n\n")
}
