package prompts

// GetMVPSystemPrompt is the fixed system role for generation requests.
func GetMVPSystemPrompt() string {
	return "You are an AI that turns product ideas into small deployable web apps. " +
		"You respond only with JSON matching the requested schema."
}

// GetMVPGenerationPrompt returns the user prompt template. The single %s slot
// takes the raw idea text; conversation history travels as separate messages.
func GetMVPGenerationPrompt() string {
	return `
		A user has submitted the following product idea:

		---
		"%s"
		---

		Plan and build a minimal but working sandbox web app for it, following these rules:

		1.  **Stack**: plain HTML + CSS + vanilla JavaScript only. No build step, no framework,
			no external package manager. The app must run as uploaded static files.
		2.  **Pages**: always include ` + "`index.html`" + ` as the landing page. Give it a clear
			title naming the app and a short pitch derived from the idea.
		3.  **API routes**: if the idea needs backend behavior, plan the routes under
			` + "`/api/...`" + ` and implement them in a single ` + "`worker.js`" + ` edge script
			(export default { fetch }). Keep handlers in-memory only.
		4.  **Scope**: a handful of files. Favor one feature done end to end over many stubs.

		Respond with one JSON object in exactly this shape:

		` + "```json" + `
		{
			"ir": {
				"name": "Short App Name",
				"app_type": "spa_api",
				"pages": ["index.html", "about.html"],
				"api_routes": [{"method": "GET", "path": "/api/items"}],
				"notes": "One paragraph of markdown notes about the approach.",
				"features": ["feature one", "feature two"]
			},
			"files": [
				{"filename": "index.html", "content": "..."},
				{"filename": "app.js", "content": "..."}
			]
		}
		` + "```" + `

		"app_type" must be one of "spa_api", "spa", "api".
		Only output the JSON object, no extra explanation. Your output will be parsed
		and uploaded as project files.
	`
}
