package layout

// Built-in fallback layouts, used for any name the site's _layouts/
// directory does not provide. The default layout carries the two halves
// of the client-script contract: the skin name baked into a page-global
// variable, and the diagram bootstrap script include.
var builtinLayouts = map[string]string{
	"default": `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{ .Title }}</title>
<link rel="stylesheet" href="/assets/css/site.css">
<script>window.glacierSkin = {{ .Skin }};</script>
</head>
<body class="skin-{{ .Skin }}">
<header class="site-header">
<a class="site-title" href="/">{{ index .Site "title" }}</a>
</header>
<main>
{{ .Content }}
</main>
<footer class="site-footer">
<p>{{ index .Site "title" }}</p>
</footer>
<script src="https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.min.js"></script>
<script src="/assets/js/diagrams.js"></script>
</body>
</html>
`,
	"post": `---
layout: default
---
<article class="post">
<header>
<h1>{{ .Title }}</h1>
{{ if .Date }}<time>{{ .Date }}</time>{{ end }}
</header>
{{ .Content }}
</article>
`,
	"page": `---
layout: default
---
<article class="page">
<header>
<h1>{{ .Title }}</h1>
</header>
{{ .Content }}
</article>
`,
}
