package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"mvp_sandbox_server/internal/apperr"
)

func TestParseGeneration_PayloadObject(t *testing.T) {
	raw := `{
		"ir": {"name": "Todo App", "app_type": "spa", "pages": ["index.html"], "api_routes": []},
		"files": [{"filename": "index.html", "content": "<html></html>"}]
	}`

	payload, err := ParseGeneration(raw)
	require.NoError(t, err)
	require.Equal(t, "Todo App", payload.IR.Name)
	require.Len(t, payload.Files, 1)
	require.Equal(t, "index.html", payload.Files[0].Filename)
}

func TestParseGeneration_FencedPayload(t *testing.T) {
	raw := "```json\n{\"ir\": {\"name\": \"X\"}, \"files\": [{\"filename\": \"a.js\", \"content\": \"1\"}]}\n```"

	payload, err := ParseGeneration(raw)
	require.NoError(t, err)
	require.Equal(t, "X", payload.IR.Name)
	require.Len(t, payload.Files, 1)
}

func TestParseGeneration_BareArray(t *testing.T) {
	raw := `[{"filename": "index.html", "content": "<html></html>"}, {"filename": "app.js", "content": "x"}]`

	payload, err := ParseGeneration(raw)
	require.NoError(t, err)
	require.Len(t, payload.Files, 2)
	require.Empty(t, payload.IR.Name)
}

func TestParseGeneration_WrappedKeys(t *testing.T) {
	for _, key := range []string{"files", "result", "code", "data", "output"} {
		raw := `{"` + key + `": [{"filename": "index.html", "content": "hi"}]}`
		payload, err := ParseGeneration(raw)
		require.NoError(t, err, "key %q", key)
		require.Len(t, payload.Files, 1, "key %q", key)
	}
}

func TestParseGeneration_WrappedWithIR(t *testing.T) {
	raw := `{"ir": {"name": "Wrapped"}, "output": [{"filename": "a", "content": "b"}]}`

	payload, err := ParseGeneration(raw)
	require.NoError(t, err)
	require.Equal(t, "Wrapped", payload.IR.Name)
}

func TestParseGeneration_EmbeddedInProse(t *testing.T) {
	raw := `Sure! Here is your app:

{"ir": {"name": "Prose"}, "files": [{"filename": "index.html", "content": "{\"not\": \"a file\"}"}]}

Let me know if you need changes.`

	payload, err := ParseGeneration(raw)
	require.NoError(t, err)
	require.Equal(t, "Prose", payload.IR.Name)
	require.Equal(t, `{"not": "a file"}`, payload.Files[0].Content)
}

func TestParseGeneration_UnrecognizedShape(t *testing.T) {
	for _, raw := range []string{
		"just some text",
		`{"unexpected": "object"}`,
		`{"files": "not an array"}`,
		"",
	} {
		_, err := ParseGeneration(raw)
		require.Error(t, err, "raw %q", raw)
		require.True(t, errors.Is(err, apperr.ErrMalformedOutput), "raw %q: %v", raw, err)
	}
}

func TestFirstJSONObject_RespectsStrings(t *testing.T) {
	s := `prefix {"a": "}", "b": {"c": 1}} suffix`
	require.Equal(t, `{"a": "}", "b": {"c": 1}}`, firstJSONObject(s))
}

func TestFirstJSONObject_Unbalanced(t *testing.T) {
	require.Equal(t, "", firstJSONObject(`{"a": 1`))
	require.Equal(t, "", firstJSONObject("no object here"))
}
