package ai

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// ChatCompleter is the slice of the OpenAI client the generator needs.
// Satisfied by *openai.Client; tests substitute a canned implementation.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Generator struct {
	client ChatCompleter
	apiKey string
	model  string
}

func NewGenerator(apiKey, model string) *Generator {
	return &Generator{
		client: openai.NewClient(apiKey),
		apiKey: apiKey,
		model:  model,
	}
}

// NewGeneratorWithClient injects a custom client. Used by tests.
func NewGeneratorWithClient(client ChatCompleter, model string) *Generator {
	return &Generator{client: client, apiKey: "test", model: model}
}

// mvpSchema constrains the model to the generation payload shape: an IR plus
// a file array. Passed as a JSON-schema response format on every request.
var mvpSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"ir": {
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"name":     {Type: jsonschema.String},
				"app_type": {Type: jsonschema.String, Enum: []string{"spa_api", "spa", "api"}},
				"pages": {
					Type:  jsonschema.Array,
					Items: &jsonschema.Definition{Type: jsonschema.String},
				},
				"api_routes": {
					Type: jsonschema.Array,
					Items: &jsonschema.Definition{
						Type: jsonschema.Object,
						Properties: map[string]jsonschema.Definition{
							"method": {Type: jsonschema.String},
							"path":   {Type: jsonschema.String},
						},
						Required: []string{"method", "path"},
					},
				},
				"notes": {Type: jsonschema.String},
				"features": {
					Type:  jsonschema.Array,
					Items: &jsonschema.Definition{Type: jsonschema.String},
				},
			},
			Required: []string{"name", "app_type", "pages", "api_routes"},
		},
		"files": {
			Type: jsonschema.Array,
			Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"filename": {Type: jsonschema.String},
					"content":  {Type: jsonschema.String},
				},
				Required: []string{"filename", "content"},
			},
		},
	},
	Required: []string{"ir", "files"},
}
