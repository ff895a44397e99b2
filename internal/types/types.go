package types

// GeneratedFile represents the structure expected from the LLM for each file.
type GeneratedFile struct {
	Filename string `json:"filename"`
	Type     string `json:"type,omitempty"` // e.g., "html", "css", "js"
	Content  string `json:"content"`
}

// Bundle maps a relative path to UTF-8 file content. It is created by the
// generation step, consumed by the deploy/export step, and discarded after.
type Bundle map[string]string

// TotalBytes returns the summed content size of the bundle.
func (b Bundle) TotalBytes() int {
	total := 0
	for _, content := range b {
		total += len(content)
	}
	return total
}

// APIRoute is one backend route planned by the model.
type APIRoute struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// IR is the structured plan the model derives from the free-text idea.
type IR struct {
	Name      string     `json:"name"`
	AppType   string     `json:"app_type"` // one of AppTypeSPAAPI, AppTypeSPA, AppTypeAPI
	Pages     []string   `json:"pages"`
	APIRoutes []APIRoute `json:"api_routes"`
	Notes     string     `json:"notes,omitempty"`
	Features  []string   `json:"features,omitempty"`
}

const (
	AppTypeSPAAPI = "spa_api"
	AppTypeSPA    = "spa"
	AppTypeAPI    = "api"
)

// SmokeResult records the outcome of the post-generation smoke check.
type SmokeResult struct {
	Passed  bool   `json:"passed"`
	Skipped string `json:"skipped,omitempty"`
}

// MVPResult is the full outcome of one generation request. FileTypes labels
// every bundle file so the client can render a manifest without sniffing
// extensions itself.
type MVPResult struct {
	ID        string            `json:"id"`
	IR        IR                `json:"ir"`
	Files     Bundle            `json:"files"`
	FileTypes map[string]string `json:"file_types"`
	Smoke     SmokeResult       `json:"smoke"`
}

// ChatTurn is one role/content pair of the conversation history the client
// sends along with a generation request.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DeployResult describes the outcome of one deployment attempt. A readiness
// timeout is reported as OK=false with the best-known URL still filled in.
type DeployResult struct {
	OK          bool   `json:"ok"`
	URL         string `json:"url,omitempty"`
	Name        string `json:"name,omitempty"`
	Error       string `json:"error,omitempty"`
	Status      string `json:"status,omitempty"`
	Diagnostics string `json:"diagnostics,omitempty"`
}
