package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// initSite scaffolds a minimal working site: config, a root and a posts
// section, one post, and the three required templates.
func initSite(target string) error {
	if _, err := os.Stat(filepath.Join(target, "config.toml")); err == nil {
		return fmt.Errorf("config.toml already exists in %s", target)
	}

	files := map[string]string{
		"config.toml": `base_url = "https://example.com"
title = "My Site"
generate_feed = true
`,
		"content/_index.md": `+++
title = "Home"
sort_by = "date"
+++
`,
		"content/posts/_index.md": `+++
title = "Blog"
sort_by = "date"
+++
`,
		"content/posts/hello.md": `+++
title = "Hello World"
date = "2025-01-01"
description = "My first post"
tags = ["hello"]
+++
Welcome to my new site!
`,
		"templates/index.html":   scaffoldSectionTemplate,
		"templates/section.html": scaffoldSectionTemplate,
		"templates/page.html": `<!DOCTYPE html>
<html lang="{{ .Config.DefaultLanguage }}">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{ .Page.Title }} | {{ .Config.Title }}</title>
</head>
<body>
    <nav><a href="{{ .Config.BaseURL }}/">{{ .Config.Title }}</a></nav>
    <main>
        <article>
            <h1>{{ .Page.Title }}</h1>
            {{ if .Page.Date }}<time>{{ .Page.Date }}</time>{{ end }}
            {{ safe_html .Page.Content }}
        </article>
    </main>
</body>
</html>
`,
	}

	for _, dir := range []string{"content/posts", "templates", "static"} {
		if err := os.MkdirAll(filepath.Join(target, filepath.FromSlash(dir)), 0o755); err != nil {
			return err
		}
	}
	for rel, body := range files {
		path := filepath.Join(target, filepath.FromSlash(rel))
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return err
		}
	}
	return nil
}

const scaffoldSectionTemplate = `<!DOCTYPE html>
<html lang="{{ .Config.DefaultLanguage }}">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{ .Section.Title }} | {{ .Config.Title }}</title>
    {{ if .Config.GenerateFeed }}<link rel="alternate" type="application/atom+xml" title="Feed" href="{{ .Config.BaseURL }}/atom.xml">{{ end }}
</head>
<body>
    <nav><a href="{{ .Config.BaseURL }}/">{{ .Config.Title }}</a></nav>
    <main>
        <h1>{{ .Section.Title }}</h1>
        {{ safe_html .Section.Content }}
        {{ range .Section.Pages }}
        <article>
            <h2><a href="{{ .Permalink }}">{{ .Title }}</a></h2>
            {{ if .Date }}<time>{{ .Date }}</time>{{ end }}
            {{ if .Description }}<p>{{ .Description }}</p>{{ end }}
        </article>
        {{ end }}
    </main>
</body>
</html>
`
