package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"mvp_sandbox_server/internal/ai/prompts"
	"mvp_sandbox_server/internal/apperr"
	"mvp_sandbox_server/internal/types"
	"mvp_sandbox_server/internal/utils"
)

// GenerateMVP turns an idea plus optional conversation history into an IR and
// a guardrail-capped file bundle. There is no automatic retry beyond one
// attempt on a transient upstream error.
func (g *Generator) GenerateMVP(ctx context.Context, idea string, history []types.ChatTurn) (*types.MVPResult, error) {
	if strings.TrimSpace(idea) == "" {
		return nil, errors.New("idea text is empty")
	}
	if g.apiKey == "" {
		return nil, apperr.MissingConfig("OPENAI_API_KEY")
	}

	ideaID := uuid.New().String()
	log.Printf("Generating MVP for idea %s (%d history turns)", ideaID, len(history))

	fullPrompt := fmt.Sprintf(prompts.GetMVPGenerationPrompt(), idea)

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompts.GetMVPSystemPrompt()},
	}
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: fullPrompt})

	req := openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "mvp_bundle",
				Schema: &mvpSchema,
				Strict: false,
			},
		},
		Temperature: 0.3, // Lower temperature for more predictable code generation
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil && utils.ShouldRetry(err) {
		log.Printf("OpenAI call failed for idea %s, retrying once after delay... Error: %v", ideaID, err)
		time.Sleep(2 * time.Second)
		resp, err = g.client.CreateChatCompletion(ctx, req)
	}
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &apperr.UpstreamError{Service: "openai", Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Printf("OpenAI usage for failed request: %+v", resp.Usage)
		return nil, fmt.Errorf("%w: openai returned empty response", apperr.ErrMalformedOutput)
	}

	payload, err := ParseGeneration(resp.Choices[0].Message.Content)
	if err != nil {
		log.Printf("Failed to parse model output for idea %s: %v", ideaID, err)
		return nil, err
	}
	if len(payload.Files) == 0 {
		return nil, fmt.Errorf("%w: model produced an empty file bundle", apperr.ErrMalformedOutput)
	}

	ir := payload.IR
	if strings.TrimSpace(ir.Name) == "" {
		ir.Name = fallbackName(idea)
	}
	switch ir.AppType {
	case types.AppTypeSPAAPI, types.AppTypeSPA, types.AppTypeAPI:
	default:
		ir.AppType = types.AppTypeSPA
	}

	// Defaults go in front of the model's files so truncation never drops them.
	files := withDefaults(ir, payload.Files)
	bundle := ApplyGuardrails(files)
	if len(bundle) < len(files) {
		log.Printf("Guardrails truncated bundle for idea %s: %d -> %d files", ideaID, len(files), len(bundle))
	}

	log.Printf("Generated %d files for idea %s (%q, %s)", len(bundle), ideaID, ir.Name, ir.AppType)

	return &types.MVPResult{
		ID:        ideaID,
		IR:        ir,
		Files:     bundle,
		FileTypes: fileTypes(files, bundle),
		Smoke:     types.SmokeResult{Passed: true, Skipped: "static bundle, nothing to execute"},
	}, nil
}

// fileTypes labels every kept bundle file, preferring the type the model
// declared over the extension-based fallback.
func fileTypes(files []types.GeneratedFile, bundle types.Bundle) map[string]string {
	declared := make(map[string]string, len(files))
	for _, f := range files {
		if name, ok := cleanPath(f.Filename); ok && f.Type != "" {
			declared[name] = f.Type
		}
	}
	out := make(map[string]string, len(bundle))
	for name := range bundle {
		t := declared[name]
		if t == "" {
			t = utils.DetermineFileType(name)
		}
		out[name] = t
	}
	return out
}

// fallbackName derives a short display name when the model leaves IR.name blank.
func fallbackName(idea string) string {
	words := strings.Fields(idea)
	if len(words) > 5 {
		words = words[:5]
	}
	return strings.Join(words, " ")
}
