package ai

import (
	"bytes"
	"html/template"
	"log"

	"github.com/yuin/goldmark"

	"mvp_sandbox_server/internal/deploy"
	"mvp_sandbox_server/internal/types"
	"mvp_sandbox_server/internal/utils"
)

// withDefaults prepends the files every sandbox bundle must carry when the
// model omitted them: an index.html landing page templated from the IR, and
// the default edge proxy script. Prepending keeps them safe from guardrail
// truncation.
func withDefaults(ir types.IR, files []types.GeneratedFile) []types.GeneratedFile {
	hasIndex, hasWorker := false, false
	for _, f := range files {
		switch f.Filename {
		case "index.html":
			hasIndex = true
		case "worker.js":
			hasWorker = true
		}
	}

	var defaults []types.GeneratedFile
	if !hasIndex {
		defaults = append(defaults, types.GeneratedFile{
			Filename: "index.html",
			Type:     utils.DetermineFileType("index.html"),
			Content:  LandingPage(ir),
		})
	}
	if !hasWorker {
		defaults = append(defaults, types.GeneratedFile{
			Filename: "worker.js",
			Type:     utils.DetermineFileType("worker.js"),
			Content:  deploy.EdgeProxyScript(),
		})
	}
	if len(defaults) == 0 {
		return files
	}
	log.Printf("Injecting %d default file(s) into bundle for %q", len(defaults), ir.Name)
	return append(defaults, files...)
}

var landingTmpl = template.Must(template.New("landing").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Name}}</title>
<style>
body { font-family: Inter, sans-serif; background: #F9FAFB; color: #111; margin: 0; }
main { max-width: 640px; margin: 4rem auto; padding: 0 1rem; }
h1 { color: #1A73E8; }
.card { background: #fff; border-radius: 12px; box-shadow: 0 1px 4px rgba(0,0,0,.08); padding: 1rem 1.5rem; margin: 1rem 0; }
code { background: #eef; padding: 0 .3em; border-radius: 4px; }
</style>
</head>
<body>
<main>
<h1>{{.Name}}</h1>
<p>{{.Name}} is a generated sandbox app.</p>
{{if .Pages}}<div class="card"><h2>Pages</h2><ul>{{range .Pages}}<li>{{.}}</li>{{end}}</ul></div>{{end}}
{{if .Routes}}<div class="card"><h2>API routes</h2><ul>{{range .Routes}}<li><code>{{.Method}} {{.Path}}</code></li>{{end}}</ul></div>{{end}}
{{if .Notes}}<div class="card">{{.Notes}}</div>{{end}}
</main>
</body>
</html>
`))

// LandingPage renders the default index.html for an IR. The IR's markdown
// notes are converted to HTML with goldmark.
func LandingPage(ir types.IR) string {
	data := struct {
		Name   string
		Pages  []string
		Routes []types.APIRoute
		Notes  template.HTML
	}{
		Name:   ir.Name,
		Pages:  ir.Pages,
		Routes: ir.APIRoutes,
	}
	if ir.Name == "" {
		data.Name = "Sandbox App"
	}
	if ir.Notes != "" {
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(ir.Notes), &buf); err == nil {
			data.Notes = template.HTML(buf.String())
		} else {
			log.Printf("Failed to render IR notes as markdown: %v", err)
		}
	}

	var out bytes.Buffer
	if err := landingTmpl.Execute(&out, data); err != nil {
		log.Printf("Landing page template failed: %v", err)
		return "<!doctype html><title>" + template.HTMLEscapeString(data.Name) + "</title>"
	}
	return out.String()
}
