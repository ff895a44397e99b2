package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"mvp_sandbox_server/internal/apperr"
	"mvp_sandbox_server/internal/deploy"
	"mvp_sandbox_server/internal/types"
)

// Deployer pushes generated bundles to Cloudflare Workers. Two mutually
// exclusive strategies are offered: a single-file function upload, and a
// static bundle stored in Workers KV behind an edge proxy script.
type Deployer struct {
	apiToken   string
	accountID  string
	subdomain  string
	apiBase    string
	httpClient *http.Client
	probe      *http.Client
	poll       deploy.Policy
	probeBase  string
}

// SetProbeBase points readiness probes at an arbitrary base URL instead of
// the workers.dev host. Used by tests.
func (d *Deployer) SetProbeBase(base string) {
	d.probeBase = strings.TrimRight(base, "/")
}

func NewDeployer(apiToken, accountID, subdomain, apiBase string, poll deploy.Policy) *Deployer {
	return &Deployer{
		apiToken:   apiToken,
		accountID:  accountID,
		subdomain:  subdomain,
		apiBase:    strings.TrimRight(apiBase, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		probe:      &http.Client{Timeout: 10 * time.Second},
		poll:       poll,
	}
}

// API response envelope shared by all Cloudflare v4 endpoints.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Errors  []apiMessage    `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e apiEnvelope) firstError() string {
	if len(e.Errors) == 0 {
		return "unknown error"
	}
	return fmt.Sprintf("%d %s", e.Errors[0].Code, e.Errors[0].Message)
}

func (d *Deployer) checkConfigured() error {
	switch {
	case d.apiToken == "":
		return apperr.MissingConfig("CF_API_TOKEN")
	case d.accountID == "":
		return apperr.MissingConfig("CF_ACCOUNT_ID")
	case d.subdomain == "":
		return apperr.MissingConfig("CF_WORKERS_SUBDOMAIN")
	}
	return nil
}

// DeployFunction uploads the bundle as one worker script. A bundle holding a
// single JS file is uploaded as-is; anything else is inlined into a wrapper
// script that serves the files from memory.
func (d *Deployer) DeployFunction(ctx context.Context, name string, files types.Bundle) (types.DeployResult, error) {
	if err := d.checkConfigured(); err != nil {
		return types.DeployResult{}, err
	}
	if len(files) == 0 {
		return types.DeployResult{}, fmt.Errorf("nothing to deploy: empty file bundle")
	}

	script := singleScript(files)
	if script == "" {
		script = InlineWorkerScript(files)
	}

	if err := d.uploadScript(ctx, name, script, ""); err != nil {
		return types.DeployResult{}, err
	}
	if err := d.ensureSubdomain(ctx, name); err != nil {
		return types.DeployResult{}, err
	}
	return d.awaitReady(ctx, name)
}

// DeployStatic stores the bundle in a KV namespace and uploads the edge
// script bound to it.
func (d *Deployer) DeployStatic(ctx context.Context, name string, files types.Bundle) (types.DeployResult, error) {
	if err := d.checkConfigured(); err != nil {
		return types.DeployResult{}, err
	}
	if len(files) == 0 {
		return types.DeployResult{}, fmt.Errorf("nothing to deploy: empty file bundle")
	}

	nsID, err := d.ensureNamespace(ctx, name)
	if err != nil {
		return types.DeployResult{}, err
	}
	if err := d.bulkPut(ctx, nsID, files); err != nil {
		return types.DeployResult{}, err
	}

	script := files["worker.js"]
	if script == "" {
		script = deploy.EdgeProxyScript()
	}
	if err := d.uploadScript(ctx, name, script, nsID); err != nil {
		return types.DeployResult{}, err
	}
	if err := d.ensureSubdomain(ctx, name); err != nil {
		return types.DeployResult{}, err
	}
	return d.awaitReady(ctx, name)
}

// singleScript returns the script content when the bundle is exactly one JS
// file, otherwise "".
func singleScript(files types.Bundle) string {
	if len(files) != 1 {
		return ""
	}
	for name, content := range files {
		if strings.HasSuffix(name, ".js") {
			return content
		}
	}
	return ""
}

// uploadScript PUTs a module worker. kvNamespaceID, when non-empty, binds the
// namespace as SITE.
func (d *Deployer) uploadScript(ctx context.Context, name, script, kvNamespaceID string) error {
	meta := map[string]any{
		"main_module":        "worker.js",
		"compatibility_date": "2024-11-01",
	}
	if kvNamespaceID != "" {
		meta["bindings"] = []map[string]string{
			{"type": "kv_namespace", "name": "SITE", "namespace_id": kvNamespaceID},
		}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal worker metadata: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	metaPart, err := writer.CreateFormField("metadata")
	if err != nil {
		return err
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return err
	}
	scriptHeader := textproto.MIMEHeader{}
	scriptHeader.Set("Content-Disposition", `form-data; name="worker.js"; filename="worker.js"`)
	scriptHeader.Set("Content-Type", "application/javascript+module")
	scriptPart, err := writer.CreatePart(scriptHeader)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(scriptPart, script); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/workers/scripts/%s", d.apiBase, d.accountID, url.PathEscape(name))
	log.Printf("Uploading worker script %q (%d bytes)", name, body.Len())
	env, status, err := d.do(ctx, http.MethodPut, endpoint, writer.FormDataContentType(), body.Bytes())
	if err != nil {
		return err
	}
	if !env.Success {
		return &apperr.UpstreamError{Service: "cloudflare", Status: status, Body: env.firstError()}
	}
	return nil
}

// ensureSubdomain enables the workers.dev route for the script. Already
// enabled counts as success.
func (d *Deployer) ensureSubdomain(ctx context.Context, name string) error {
	endpoint := fmt.Sprintf("%s/accounts/%s/workers/scripts/%s/subdomain", d.apiBase, d.accountID, url.PathEscape(name))
	env, status, err := d.do(ctx, http.MethodPost, endpoint, "application/json", []byte(`{"enabled":true}`))
	if err != nil {
		return err
	}
	if !env.Success {
		if status == http.StatusConflict || strings.Contains(strings.ToLower(env.firstError()), "already") {
			log.Printf("workers.dev route for %q already enabled, continuing", name)
			return nil
		}
		return &apperr.UpstreamError{Service: "cloudflare", Status: status, Body: env.firstError()}
	}
	return nil
}

type namespaceInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ensureNamespace creates the KV namespace for the site, treating "already
// exists" as success and resolving the existing id in that case.
func (d *Deployer) ensureNamespace(ctx context.Context, name string) (string, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/storage/kv/namespaces", d.apiBase, d.accountID)
	payload, _ := json.Marshal(map[string]string{"title": name})
	env, status, err := d.do(ctx, http.MethodPost, endpoint, "application/json", payload)
	if err != nil {
		return "", err
	}
	if env.Success {
		var ns namespaceInfo
		if err := json.Unmarshal(env.Result, &ns); err != nil || ns.ID == "" {
			return "", fmt.Errorf("cloudflare namespace create returned no id")
		}
		return ns.ID, nil
	}
	if status != http.StatusConflict && !strings.Contains(strings.ToLower(env.firstError()), "already exists") {
		return "", &apperr.UpstreamError{Service: "cloudflare", Status: status, Body: env.firstError()}
	}

	// Conflict: the namespace is there from an earlier deploy, look up its id.
	// The list is paginated, so keep walking pages until the title shows up.
	for page := 1; ; page++ {
		listURL := fmt.Sprintf("%s?page=%d&per_page=100", endpoint, page)
		listEnv, status, err := d.do(ctx, http.MethodGet, listURL, "", nil)
		if err != nil {
			return "", err
		}
		if !listEnv.Success {
			return "", &apperr.UpstreamError{Service: "cloudflare", Status: status, Body: listEnv.firstError()}
		}
		var namespaces []namespaceInfo
		if err := json.Unmarshal(listEnv.Result, &namespaces); err != nil {
			return "", fmt.Errorf("failed to decode namespace list: %w", err)
		}
		for _, ns := range namespaces {
			if ns.Title == name {
				return ns.ID, nil
			}
		}
		if len(namespaces) < 100 {
			return "", fmt.Errorf("namespace %q reported as existing but not found in list", name)
		}
	}
}

type kvPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// bulkPut uploads every bundle file as a KV value in one call.
func (d *Deployer) bulkPut(ctx context.Context, nsID string, files types.Bundle) error {
	pairs := make([]kvPair, 0, len(files))
	for name, content := range files {
		pairs = append(pairs, kvPair{Key: name, Value: content})
	}
	payload, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("failed to marshal kv bulk payload: %w", err)
	}
	endpoint := fmt.Sprintf("%s/accounts/%s/storage/kv/namespaces/%s/bulk", d.apiBase, d.accountID, nsID)
	env, status, err := d.do(ctx, http.MethodPut, endpoint, "application/json", payload)
	if err != nil {
		return err
	}
	if !env.Success {
		return &apperr.UpstreamError{Service: "cloudflare", Status: status, Body: env.firstError()}
	}
	log.Printf("Uploaded %d files to KV namespace %s", len(pairs), nsID)
	return nil
}

// do sends one API request and decodes the envelope.
func (d *Deployer) do(ctx context.Context, method, endpoint, contentType string, body []byte) (apiEnvelope, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return apiEnvelope{}, 0, fmt.Errorf("failed to create cloudflare request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.apiToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return apiEnvelope{}, 0, fmt.Errorf("cloudflare request failed: %w", err)
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return apiEnvelope{}, resp.StatusCode, &apperr.UpstreamError{
			Service: "cloudflare",
			Status:  resp.StatusCode,
			Body:    "undecodable response body",
		}
	}
	return env, resp.StatusCode, nil
}

// WorkerURL is where a deployed script serves from.
func (d *Deployer) WorkerURL(name string) string {
	if d.probeBase != "" {
		return d.probeBase
	}
	return fmt.Sprintf("https://%s.%s.workers.dev", name, d.subdomain)
}

// Cloudflare serves this page while a fresh workers.dev route warms up.
const placeholderMarker = "There is nothing here yet"

// awaitReady probes the health path and the root until one answers with a
// real 2xx, then reports ready. Exhausting the attempt budget is not fatal:
// the resource usually starts serving shortly after, so the URL is still
// returned with OK set to false.
func (d *Deployer) awaitReady(ctx context.Context, name string) (types.DeployResult, error) {
	siteURL := d.WorkerURL(name)
	paths := []string{"/__health", "/"}
	lastStatus := "no response"

	for attempt := 0; attempt < d.poll.Budget(); attempt++ {
		if attempt > 0 {
			d.poll.Pause()
		}
		for _, p := range paths {
			ready, status := d.probeOnce(ctx, siteURL+p)
			if status != "" {
				lastStatus = status
			}
			if ready {
				log.Printf("Deployment %q is serving at %s (attempt %d)", name, siteURL, attempt+1)
				return types.DeployResult{OK: true, URL: siteURL, Name: name, Status: "ready"}, nil
			}
		}
	}

	log.Printf("Deployment %q readiness poll exhausted after %d attempts (last: %s)", name, d.poll.Budget(), lastStatus)
	return types.DeployResult{
		OK:          false,
		URL:         siteURL,
		Name:        name,
		Status:      "pending",
		Error:       "deployed but not serving yet",
		Diagnostics: lastStatus,
	}, nil
}

// probeOnce returns whether the URL answered with a non-placeholder 2xx, and
// a short status description for diagnostics.
func (d *Deployer) probeOnce(ctx context.Context, probeURL string) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return false, err.Error()
	}
	resp, err := d.probe.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, resp.Status
	}
	if len(body) == 0 || bytes.Contains(body, []byte(placeholderMarker)) {
		return false, resp.Status + " (placeholder)"
	}
	return true, resp.Status
}

// InlineWorkerScript wraps a multi-file bundle into one worker script that
// serves the files from an embedded map.
func InlineWorkerScript(files types.Bundle) string {
	blob, err := json.Marshal(files)
	if err != nil {
		blob = []byte("{}")
	}
	return fmt.Sprintf(inlineWorkerTemplate, blob)
}

const inlineWorkerTemplate = `const FILES = %s;
const TYPES = {
  html: "text/html; charset=utf-8",
  css: "text/css",
  js: "application/javascript",
  json: "application/json",
  svg: "image/svg+xml",
  txt: "text/plain; charset=utf-8"
};

function typeFor(key) {
  const ext = key.includes(".") ? key.split(".").pop() : "";
  return TYPES[ext] || "text/plain; charset=utf-8";
}

export default {
  async fetch(request) {
    const url = new URL(request.url);
    if (url.pathname === "/__health") {
      return new Response("ok");
    }
    if (url.pathname.startsWith("/api/")) {
      return Response.json({ error: "api route not implemented" }, { status: 501 });
    }
    let key = url.pathname.replace(/^\/+/, "") || "index.html";
    if (!(key in FILES) && (key + ".html") in FILES) {
      key += ".html";
    }
    if (!(key in FILES)) {
      return new Response("not found", { status: 404 });
    }
    return new Response(FILES[key], { headers: { "content-type": typeFor(key) } });
  }
};
`
