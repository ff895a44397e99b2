package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"mvp_sandbox_server/internal/apperr"
	"mvp_sandbox_server/internal/types"
)

// Exporter pushes a file bundle to a GitHub repository through the contents
// API, one file per call. There is no transaction across files: an error mid
// push leaves the repository in a mixed state, and the error says how far the
// push got.
type Exporter struct {
	token      string
	owner      string
	apiBase    string
	httpClient *http.Client
}

func NewExporter(token, owner, apiBase string) *Exporter {
	return &Exporter{
		token:      token,
		owner:      owner,
		apiBase:    strings.TrimRight(apiBase, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Export ensures the repository exists and pushes every bundle file. Returns
// the repository's browser URL.
func (e *Exporter) Export(ctx context.Context, repoName string, private bool, files types.Bundle) (string, error) {
	if e.token == "" {
		return "", apperr.MissingConfig("GITHUB_TOKEN")
	}
	if e.owner == "" {
		return "", apperr.MissingConfig("GITHUB_OWNER")
	}
	if len(files) == 0 {
		return "", fmt.Errorf("nothing to export: empty file bundle")
	}

	if err := e.ensureRepo(ctx, repoName, private); err != nil {
		return "", err
	}
	repoURL := fmt.Sprintf("https://github.com/%s/%s", e.owner, repoName)

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for i, p := range paths {
		if err := e.pushFile(ctx, repoName, p, files[p]); err != nil {
			return repoURL, fmt.Errorf("pushed %d/%d files, failed at %q: %w", i, len(paths), p, err)
		}
	}
	log.Printf("Exported %d files to %s", len(paths), repoURL)
	return repoURL, nil
}

// ensureRepo creates the repository, treating "name already exists" as
// success so repeat exports land in the same repo.
func (e *Exporter) ensureRepo(ctx context.Context, repoName string, private bool) error {
	payload, _ := json.Marshal(map[string]any{
		"name":    repoName,
		"private": private,
	})
	status, body, err := e.do(ctx, http.MethodPost, e.apiBase+"/user/repos", payload)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusCreated:
		return nil
	case status == http.StatusUnprocessableEntity && strings.Contains(body, "already exists"):
		log.Printf("Repository %q already exists, reusing it", repoName)
		return nil
	default:
		return &apperr.UpstreamError{Service: "github", Status: status, Body: body}
	}
}

// pushFile creates or updates one file. The current blob sha is fetched
// immediately beforehand so the update does not conflict.
func (e *Exporter) pushFile(ctx context.Context, repoName, path, content string) error {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		e.apiBase, e.owner, repoName, escapePath(path))

	sha := ""
	status, body, err := e.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		var existing struct {
			SHA string `json:"sha"`
		}
		if err := json.Unmarshal([]byte(body), &existing); err == nil {
			sha = existing.SHA
		}
	}

	update := map[string]any{
		"message": fmt.Sprintf("Add %s", path),
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
	}
	if sha != "" {
		update["message"] = fmt.Sprintf("Update %s", path)
		update["sha"] = sha
	}
	payload, _ := json.Marshal(update)

	status, body, err = e.do(ctx, http.MethodPut, endpoint, payload)
	if err != nil {
		return err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return &apperr.UpstreamError{Service: "github", Status: status, Body: body}
	}
	return nil
}

// do sends one API request and returns the status plus the raw body.
func (e *Exporter) do(ctx context.Context, method, endpoint string, body []byte) (int, string, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create github request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("failed to read github response: %w", err)
	}
	return resp.StatusCode, string(raw), nil
}

// escapePath escapes each path segment while keeping the separators.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
