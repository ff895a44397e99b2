package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mvp_sandbox_server/internal/ai"
	"mvp_sandbox_server/internal/apperr"
	"mvp_sandbox_server/internal/bundlecache"
	"mvp_sandbox_server/internal/types"
	"mvp_sandbox_server/internal/utils"
)

// Narrow interfaces over the pipeline components so handler tests can stub
// them out.
type mvpGenerator interface {
	GenerateMVP(ctx context.Context, idea string, history []types.ChatTurn) (*types.MVPResult, error)
}

type sandboxDeployer interface {
	DeployFunction(ctx context.Context, name string, files types.Bundle) (types.DeployResult, error)
	DeployStatic(ctx context.Context, name string, files types.Bundle) (types.DeployResult, error)
}

type repoExporter interface {
	Export(ctx context.Context, repoName string, private bool, files types.Bundle) (string, error)
}

// EnvFlags reports which upstream credentials are present. Shown by /health.
type EnvFlags struct {
	OpenAI     bool `json:"openai"`
	Cloudflare bool `json:"cloudflare"`
	Github     bool `json:"github"`
}

// APIHandler holds dependencies for API endpoints.
type APIHandler struct {
	generator mvpGenerator
	deployer  sandboxDeployer
	exporter  repoExporter
	bundles   *bundlecache.Cache
	env       EnvFlags
}

// NewAPIHandler initializes a new API handler with its dependencies.
func NewAPIHandler(generator mvpGenerator, deployer sandboxDeployer, exporter repoExporter, bundles *bundlecache.Cache, env EnvFlags) *APIHandler {
	return &APIHandler{
		generator: generator,
		deployer:  deployer,
		exporter:  exporter,
		bundles:   bundles,
		env:       env,
	}
}

// --- Structs for API Requests ---

type MVPRequest struct {
	Idea   string           `json:"idea" binding:"required"`
	IdeaID string           `json:"ideaId"`
	Thread []types.ChatTurn `json:"thread"`
}

type SandboxDeployRequest struct {
	Confirm bool         `json:"confirm"`
	Mode    string       `json:"mode"` // "function" (default) or "static"
	Name    string       `json:"name"`
	IdeaID  string       `json:"ideaId"`
	Idea    string       `json:"idea"`
	Files   types.Bundle `json:"files"`
}

type GithubExportRequest struct {
	RepoName string       `json:"repoName" binding:"required"`
	Private  bool         `json:"private"`
	Files    types.Bundle `json:"files" binding:"required"`
}

// --- API Handlers ---

// GET /health
func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
		"env":  h.env,
	})
}

// POST /mvp
func (h *APIHandler) GenerateMVP(c *gin.Context) {
	var req MVPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Idea) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "idea text is empty"})
		return
	}

	result, err := h.generator.GenerateMVP(c.Request.Context(), req.Idea, req.Thread)
	if err != nil {
		respondError(c, "generation failed", err)
		return
	}
	// A caller-supplied idea id wins so the client can correlate threads.
	if req.IdeaID != "" {
		result.ID = req.IdeaID
	}
	h.bundles.Put(result.ID, result.Files)

	log.Printf("MVP generated for idea %s: %q, %d files", result.ID, result.IR.Name, len(result.Files))
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

// POST /sandbox-deploy
func (h *APIHandler) SandboxDeploy(c *gin.Context) {
	var req SandboxDeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid request body: " + err.Error()})
		return
	}
	if !req.Confirm {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "confirm=false"})
		return
	}
	switch req.Mode {
	case "", "function", "static":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unknown mode: " + req.Mode})
		return
	}

	files, name, err := h.resolveBundle(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "could not resolve a file bundle", err)
		return
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "no files to deploy: supply files, a known ideaId, or an idea"})
		return
	}
	if req.Name != "" {
		name = req.Name
	}
	// A symbols-only name slugifies to "", so the fallback applies after.
	if name = utils.Slugify(name); name == "" {
		name = "sandbox-" + uuid.New().String()[:8]
	}

	var result types.DeployResult
	if req.Mode == "static" {
		result, err = h.deployer.DeployStatic(c.Request.Context(), name, files)
	} else {
		result, err = h.deployer.DeployFunction(c.Request.Context(), name, files)
	}
	if err != nil {
		respondError(c, "deployment failed", err)
		return
	}

	// A readiness timeout still lands here: partial success is reported with
	// ok=false and the URL, not hidden behind an error status.
	c.JSON(http.StatusOK, result)
}

// resolveBundle picks the deployment bundle from the request body, the cache,
// or a fresh generation, in that order. Returns a suggested resource name
// next to the bundle when one is known.
func (h *APIHandler) resolveBundle(ctx context.Context, req *SandboxDeployRequest) (types.Bundle, string, error) {
	if len(req.Files) > 0 {
		return ai.ApplyGuardrailsBundle(req.Files), "", nil
	}
	if req.IdeaID != "" {
		if files, ok := h.bundles.Get(req.IdeaID); ok {
			log.Printf("Reusing cached bundle for idea %s", req.IdeaID)
			return files, "", nil
		}
	}
	if strings.TrimSpace(req.Idea) != "" {
		log.Printf("No bundle supplied, regenerating from idea text")
		result, err := h.generator.GenerateMVP(ctx, req.Idea, nil)
		if err != nil {
			return nil, "", err
		}
		h.bundles.Put(result.ID, result.Files)
		return result.Files, result.IR.Name, nil
	}
	return nil, "", nil
}

// POST /github-export
func (h *APIHandler) GithubExport(c *gin.Context) {
	var req GithubExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid request body: " + err.Error()})
		return
	}
	if len(req.Files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "files must not be empty"})
		return
	}

	repoURL, err := h.exporter.Export(c.Request.Context(), req.RepoName, req.Private, ai.ApplyGuardrailsBundle(req.Files))
	if err != nil {
		respondError(c, "export failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "repoUrl": repoURL})
}

// respondError maps the error taxonomy onto HTTP statuses: missing
// configuration is a 500, upstream and malformed-output failures are 502,
// anything else a generic 500.
func respondError(c *gin.Context, prefix string, err error) {
	log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)

	status := http.StatusInternalServerError
	var upstream *apperr.UpstreamError
	switch {
	case errors.As(err, &upstream), errors.Is(err, apperr.ErrMalformedOutput):
		status = http.StatusBadGateway
	case errors.Is(err, apperr.ErrMissingConfig):
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"ok": false, "error": prefix + ": " + err.Error()})
}
