package ai

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/tidwall/gjson"

	"mvp_sandbox_server/internal/apperr"
	"mvp_sandbox_server/internal/types"
)

// GenerationPayload is the decoded model output: the IR plus the file list.
type GenerationPayload struct {
	IR    types.IR              `json:"ir"`
	Files []types.GeneratedFile `json:"files"`
}

// Wrapper keys models have been seen hiding the file array under.
var wrapperKeys = []string{"files", "result", "code", "data", "output"}

// ParseGeneration decodes model output into a GenerationPayload. The known
// shapes are tried in order: the full payload object, a bare file array, an
// object wrapping the array under a common key, and finally the first
// balanced JSON object embedded in free text. Anything else fails with
// ErrMalformedOutput instead of defaulting fields to empty strings.
func ParseGeneration(raw string) (*GenerationPayload, error) {
	cleaned := stripCodeFences(raw)

	var payload GenerationPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err == nil && len(payload.Files) > 0 {
		return &payload, nil
	}

	var files []types.GeneratedFile
	if err := json.Unmarshal([]byte(cleaned), &files); err == nil && len(files) > 0 {
		log.Printf("Parsed model output as a bare file array (%d files)", len(files))
		return &GenerationPayload{Files: files}, nil
	}

	if gjson.Valid(cleaned) {
		for _, key := range wrapperKeys {
			wrapped := gjson.Get(cleaned, key)
			if !wrapped.Exists() || !wrapped.IsArray() {
				continue
			}
			files = nil
			if err := json.Unmarshal([]byte(wrapped.Raw), &files); err == nil && len(files) > 0 {
				log.Printf("Parsed model output wrapped under key %q (%d files)", key, len(files))
				out := &GenerationPayload{Files: files}
				if ir := gjson.Get(cleaned, "ir"); ir.Exists() {
					_ = json.Unmarshal([]byte(ir.Raw), &out.IR)
				}
				return out, nil
			}
		}
	}

	if obj := firstJSONObject(cleaned); obj != "" && obj != cleaned {
		log.Printf("Retrying parse on first balanced JSON object extracted from free text")
		return ParseGeneration(obj)
	}

	return nil, fmt.Errorf("%w: tried payload object, bare array, wrapped keys, and embedded object", apperr.ErrMalformedOutput)
}

// stripCodeFences removes a leading/trailing markdown code fence if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// firstJSONObject returns the first balanced {...} substring, honoring JSON
// string literals and escapes. Empty when no balanced object exists.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
