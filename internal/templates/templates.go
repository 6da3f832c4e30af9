// Package templates loads the site's html/template set and builds the
// render contexts handed to it.
package templates

import (
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/mkarlsen/inkwell/internal/config"
	"github.com/mkarlsen/inkwell/internal/content"
)

// TaxonomyTerm is one term of a taxonomy together with the pages carrying
// it, sorted reverse chronologically.
type TaxonomyTerm struct {
	Name      string
	Slug      string
	Permalink string
	Pages     []*content.Page
}

// Paginator describes one pager of a paginated section. CurrentIndex is
// 1-based; Previous and Next are empty at the edges.
type Paginator struct {
	Pages        []*content.Page
	CurrentIndex int
	NumberPagers int
	Previous     string
	Next         string
	First        string
	Last         string
}

// Set is a loaded template set. Template names are slash-relative paths
// under the templates directory, e.g. "page.html" or "tags/single.html".
type Set struct {
	root  *template.Template
	names map[string]bool
}

// Load parses every .html file under dir, recursively, into one set.
// Helper functions close over the config and section map so templates can
// build URLs and reach section listings.
func Load(dir string, cfg *config.Config, sections map[string]*content.Section) (*Set, error) {
	root := template.New("").Funcs(funcMap(cfg, sections))
	names := make(map[string]bool)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := root.New(name).Parse(string(data)); err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}
		names[name] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load templates from %s: %w", dir, err)
	}
	return &Set{root: root, names: names}, nil
}

// Has reports whether a template with the given name was loaded.
func (s *Set) Has(name string) bool {
	return s.names[name]
}

// Render executes the named template against ctx.
func (s *Set) Render(name string, ctx any) (string, error) {
	if !s.names[name] {
		return "", fmt.Errorf("template not found: %s", name)
	}
	var b strings.Builder
	if err := s.root.ExecuteTemplate(&b, name, ctx); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return b.String(), nil
}

// PageContext builds the data for a page template.
func PageContext(page *content.Page, cfg *config.Config) map[string]any {
	return map[string]any{
		"Page":    page,
		"Config":  cfg,
		"Section": (*content.Section)(nil),
	}
}

// SectionContext builds the data for a section or index template.
// paginator may be nil for unpaginated sections.
func SectionContext(section *content.Section, cfg *config.Config, paginator *Paginator) map[string]any {
	return map[string]any{
		"Section":   section,
		"Config":    cfg,
		"Page":      (*content.Page)(nil),
		"Paginator": paginator,
	}
}

// TaxonomyListContext builds the data for a `{taxonomy}/list.html`
// template.
func TaxonomyListContext(terms []TaxonomyTerm, cfg *config.Config) map[string]any {
	return map[string]any{
		"Terms":  terms,
		"Config": cfg,
	}
}

// TaxonomySingleContext builds the data for a `{taxonomy}/single.html`
// template.
func TaxonomySingleContext(term TaxonomyTerm, cfg *config.Config) map[string]any {
	return map[string]any{
		"Term":   term,
		"Config": cfg,
	}
}

// NotFoundContext builds the data for 404.html.
func NotFoundContext(cfg *config.Config) map[string]any {
	return map[string]any{"Config": cfg}
}

func funcMap(cfg *config.Config, sections map[string]*content.Section) template.FuncMap {
	return template.FuncMap{
		"get_url": func(path string) string {
			return resolveURL(path, cfg.BaseURL)
		},
		"get_section": func(key string) (*content.Section, error) {
			section, ok := sections[key]
			if !ok {
				return nil, fmt.Errorf("section not found: %s", key)
			}
			return section, nil
		},
		"get_taxonomy_url": func(kind, name string) string {
			return fmt.Sprintf("%s/%s/%s/", cfg.BaseURL, kind, slug.Make(name))
		},
		"now": func() string {
			return time.Now().Format("2006-01-02T15:04:05")
		},
		"pluralize": func(n int) string {
			if n == 1 {
				return ""
			}
			return "s"
		},
		"date": func(value, layout string) string {
			return formatDate(value, layout)
		},
		"starting_with": strings.HasPrefix,
		"safe_html": func(s string) template.HTML {
			return template.HTML(s)
		},
	}
}

// resolveURL maps a template URL argument onto a permalink: `@/…`
// content paths resolve like internal links, absolute http(s) URLs pass
// through, anything else is joined under the base URL.
func resolveURL(path, baseURL string) string {
	if contentPath, ok := strings.CutPrefix(path, "@/"); ok {
		if strings.HasSuffix(contentPath, "_index.md") {
			dir := filepath.ToSlash(filepath.Dir(contentPath))
			if dir == "." {
				return baseURL + "/"
			}
			return fmt.Sprintf("%s/%s/", baseURL, dir)
		}
		stem := strings.TrimSuffix(filepath.Base(contentPath), ".md")
		parent := filepath.ToSlash(filepath.Dir(contentPath))
		if parent == "." {
			return fmt.Sprintf("%s/%s/", baseURL, slug.Make(stem))
		}
		return fmt.Sprintf("%s/%s/%s/", baseURL, parent, slug.Make(stem))
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return baseURL + "/" + strings.TrimPrefix(path, "/")
}

// formatDate renders a frontmatter date string with a Go layout,
// accepting date-only, bare datetime, and RFC 3339 inputs.
func formatDate(value, layout string) string {
	for _, parse := range []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(parse, value); err == nil {
			return t.Format(layout)
		}
	}
	return value
}
