package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"mvp_sandbox_server/internal/apperr"
	"mvp_sandbox_server/internal/types"
)

// cannedClient returns a fixed completion, recording the last request.
type cannedClient struct {
	content string
	err     error
	lastReq openai.ChatCompletionRequest
}

func (c *cannedClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.lastReq = req
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: c.content}},
		},
	}, nil
}

func payloadJSON(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	var gen []types.GeneratedFile
	for fn, content := range files {
		gen = append(gen, types.GeneratedFile{Filename: fn, Content: content})
	}
	raw, err := json.Marshal(GenerationPayload{
		IR: types.IR{
			Name:    name,
			AppType: types.AppTypeSPA,
			Pages:   []string{"index.html"},
		},
		Files: gen,
	})
	require.NoError(t, err)
	return string(raw)
}

func TestGenerateMVP_EmptyIdea(t *testing.T) {
	gen := NewGeneratorWithClient(&cannedClient{}, "gpt-4o")

	for _, idea := range []string{"", "   ", "\n\t"} {
		_, err := gen.GenerateMVP(context.Background(), idea, nil)
		require.Error(t, err, "idea %q", idea)
	}
}

func TestGenerateMVP_MissingKey(t *testing.T) {
	gen := NewGenerator("", "gpt-4o")

	_, err := gen.GenerateMVP(context.Background(), "todo app", nil)
	require.True(t, errors.Is(err, apperr.ErrMissingConfig))
}

func TestGenerateMVP_Success(t *testing.T) {
	client := &cannedClient{content: payloadJSON(t, "Todo App", map[string]string{
		"index.html": "<html><title>Todo App</title></html>",
		"app.js":     "console.log(1)",
	})}
	gen := NewGeneratorWithClient(client, "gpt-4o")

	result, err := gen.GenerateMVP(context.Background(), "todo app", nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.ID)
	require.Equal(t, "Todo App", result.IR.Name)
	require.Contains(t, result.Files, "index.html")
	require.True(t, result.Smoke.Passed)
	// worker.js is injected when the model omits it.
	require.Contains(t, result.Files, "worker.js")
}

func TestGenerateMVP_SendsHistoryAndSchema(t *testing.T) {
	client := &cannedClient{content: payloadJSON(t, "X", map[string]string{"index.html": "<html></html>"})}
	gen := NewGeneratorWithClient(client, "gpt-4o")

	history := []types.ChatTurn{
		{Role: "user", Content: "make it blue"},
		{Role: "assistant", Content: "done"},
	}
	_, err := gen.GenerateMVP(context.Background(), "todo app", history)
	require.NoError(t, err)

	// system + 2 history turns + the prompt itself
	require.Len(t, client.lastReq.Messages, 4)
	require.Equal(t, openai.ChatMessageRoleAssistant, client.lastReq.Messages[2].Role)
	require.NotNil(t, client.lastReq.ResponseFormat)
	require.Equal(t, openai.ChatCompletionResponseFormatTypeJSONSchema, client.lastReq.ResponseFormat.Type)
}

func TestGenerateMVP_InjectsLandingPage(t *testing.T) {
	client := &cannedClient{content: payloadJSON(t, "Recipe Box", map[string]string{
		"app.js": "console.log(1)",
	})}
	gen := NewGeneratorWithClient(client, "gpt-4o")

	result, err := gen.GenerateMVP(context.Background(), "recipe app", nil)
	require.NoError(t, err)
	require.Contains(t, result.Files, "index.html")
	// The landing page embeds the IR name in title and body.
	require.True(t, strings.Contains(result.Files["index.html"], "<title>Recipe Box</title>"))
	require.True(t, strings.Contains(result.Files["index.html"], "<h1>Recipe Box</h1>"))
}

func TestGenerateMVP_LabelsFileTypes(t *testing.T) {
	raw, err := json.Marshal(GenerationPayload{
		IR: types.IR{Name: "Todo App", AppType: types.AppTypeSPA},
		Files: []types.GeneratedFile{
			{Filename: "index.html", Content: "<html></html>"},
			{Filename: "app.js", Type: "JavaScript module", Content: "x"},
			{Filename: "notes.md", Content: "# notes"},
		},
	})
	require.NoError(t, err)
	gen := NewGeneratorWithClient(&cannedClient{content: string(raw)}, "gpt-4o")

	result, err := gen.GenerateMVP(context.Background(), "todo app", nil)
	require.NoError(t, err)
	require.Len(t, result.FileTypes, len(result.Files))
	require.Equal(t, "HTML", result.FileTypes["index.html"])
	// A type the model declared wins over the extension fallback.
	require.Equal(t, "JavaScript module", result.FileTypes["app.js"])
	require.Equal(t, "Markdown", result.FileTypes["notes.md"])
	// Injected defaults are labeled too.
	require.Equal(t, "JavaScript", result.FileTypes["worker.js"])
}

func TestGenerateMVP_MalformedOutput(t *testing.T) {
	client := &cannedClient{content: "I could not generate the app, sorry."}
	gen := NewGeneratorWithClient(client, "gpt-4o")

	_, err := gen.GenerateMVP(context.Background(), "todo app", nil)
	require.True(t, errors.Is(err, apperr.ErrMalformedOutput))
}

func TestGenerateMVP_EmptyBundle(t *testing.T) {
	client := &cannedClient{content: `{"ir": {"name": "X"}, "files": []}`}
	gen := NewGeneratorWithClient(client, "gpt-4o")

	_, err := gen.GenerateMVP(context.Background(), "todo app", nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrMalformedOutput))
}

func TestGenerateMVP_UpstreamError(t *testing.T) {
	client := &cannedClient{err: &openai.APIError{HTTPStatusCode: 401, Message: "bad key"}}
	gen := NewGeneratorWithClient(client, "gpt-4o")

	_, err := gen.GenerateMVP(context.Background(), "todo app", nil)
	var upstream *apperr.UpstreamError
	require.True(t, errors.As(err, &upstream))
	require.Equal(t, 401, upstream.Status)
}

func TestGenerateMVP_GuardrailsAlwaysHold(t *testing.T) {
	files := make(map[string]string)
	for i := 0; i < MaxFiles*2; i++ {
		files[strings.Repeat("f", i+1)+".txt"] = "content"
	}
	client := &cannedClient{content: payloadJSON(t, "Big", files)}
	gen := NewGeneratorWithClient(client, "gpt-4o")

	result, err := gen.GenerateMVP(context.Background(), "big app", nil)
	require.NoError(t, err)
	require.LessOrEqual(t, len(result.Files), MaxFiles)
	require.LessOrEqual(t, result.Files.TotalBytes(), MaxBundleBytes)
}
