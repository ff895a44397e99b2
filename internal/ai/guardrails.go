package ai

import (
	"log"
	"path"
	"sort"
	"strings"

	"mvp_sandbox_server/internal/types"
)

// Hard caps applied to every generated bundle before any further use.
const (
	MaxFiles       = 24
	MaxBundleBytes = 1 << 20 // 1 MiB of total content
)

// ApplyGuardrails converts a file list into a Bundle while enforcing the
// caps. The contract is silent deterministic truncation, not rejection:
// files are taken in order, and the first file that would break either cap
// plus everything after it are dropped. Callers must expect a possibly
// smaller bundle, never an error. Post-condition: len(bundle) <= MaxFiles
// and total bytes <= MaxBundleBytes.
func ApplyGuardrails(files []types.GeneratedFile) types.Bundle {
	bundle := make(types.Bundle)
	total := 0
	for i, f := range files {
		name, ok := cleanPath(f.Filename)
		if !ok {
			log.Printf("Guardrails: skipping unsafe path %q", f.Filename)
			continue
		}
		if _, dup := bundle[name]; dup {
			continue
		}
		if len(bundle) >= MaxFiles || total+len(f.Content) > MaxBundleBytes {
			log.Printf("Guardrails: truncating bundle at file %d/%d (%q)", i, len(files), name)
			break
		}
		bundle[name] = f.Content
		total += len(f.Content)
	}
	return bundle
}

// ApplyGuardrailsBundle enforces the same caps on a caller-supplied file map.
// Map iteration order is not deterministic, so paths are sorted first.
func ApplyGuardrailsBundle(b types.Bundle) types.Bundle {
	paths := make([]string, 0, len(b))
	for p := range b {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	files := make([]types.GeneratedFile, 0, len(paths))
	for _, p := range paths {
		files = append(files, types.GeneratedFile{Filename: p, Content: b[p]})
	}
	return ApplyGuardrails(files)
}

// cleanPath normalizes a bundle path and rejects absolute paths and parent
// traversal.
func cleanPath(p string) (string, bool) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", false
	}
	cleaned := path.Clean(strings.TrimPrefix(p, "./"))
	if cleaned == "." || cleaned == ".." ||
		strings.HasPrefix(cleaned, "/") || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}
