package deploy

// EdgeProxyScript is the default worker used by static deployments: it pulls
// bundle files from the bound SITE KV namespace, answers the health probe,
// and stubs unimplemented API routes. The generator injects it into bundles
// that ship without a worker.js of their own.
func EdgeProxyScript() string {
	return `const TYPES = {
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
  async fetch(request, env) {
    const url = new URL(request.url);
    if (url.pathname === "/__health") {
      return new Response("ok");
    }
    if (url.pathname.startsWith("/api/")) {
      return Response.json({ error: "api route not implemented" }, { status: 501 });
    }
    let key = url.pathname.replace(/^\/+/, "") || "index.html";
    let body = await env.SITE.get(key);
    if (body === null && !key.includes(".")) {
      key += ".html";
      body = await env.SITE.get(key);
    }
    if (body === null) {
      return new Response("not found", { status: 404 });
    }
    return new Response(body, { headers: { "content-type": typeFor(key) } });
  }
};
`
}
