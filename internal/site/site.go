// Package site orchestrates the build pipeline: content loading, link
// resolution, shortcode expansion, markdown rendering with code
// execution, template rendering, and output writing.
package site

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	osexec "os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/mkarlsen/inkwell/internal/config"
	"github.com/mkarlsen/inkwell/internal/content"
	"github.com/mkarlsen/inkwell/internal/exec"
	"github.com/mkarlsen/inkwell/internal/links"
	"github.com/mkarlsen/inkwell/internal/markdown"
	"github.com/mkarlsen/inkwell/internal/shortcode"
	"github.com/mkarlsen/inkwell/internal/templates"
)

// Site is one build's worth of state. Load it, optionally adjust the
// base URL or execution flags, then Build or Check.
type Site struct {
	Config   *config.Config
	Sections map[string]*content.Section
	Pages    map[string]*content.Page
	Assets   []string

	Root      string
	OutputDir string

	// Drafts includes draft pages in the build.
	Drafts bool
	// NoExec renders executable blocks as static highlighted code.
	NoExec bool
	// Sandbox bounds shortcode file access; empty means the site root.
	Sandbox string
}

// Load reads config.toml and walks the content tree.
func Load(root, outputDir string, drafts bool) (*Site, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	loaded, err := content.Load(filepath.Join(root, "content"), cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	return &Site{
		Config:    cfg,
		Sections:  loaded.Sections,
		Pages:     loaded.Pages,
		Assets:    loaded.Assets,
		Root:      root,
		OutputDir: outputDir,
		Drafts:    drafts,
	}, nil
}

// SetBaseURL overrides the configured base URL and rewrites every
// permalink. Preview mode uses this to point the site at the local
// server.
func (s *Site) SetBaseURL(newBaseURL string) {
	old := s.Config.BaseURL
	for _, page := range s.Pages {
		page.Permalink = strings.Replace(page.Permalink, old, newBaseURL, 1)
	}
	for _, section := range s.Sections {
		section.Permalink = strings.Replace(section.Permalink, old, newBaseURL, 1)
	}
	s.Config.BaseURL = newBaseURL
}

// Build runs the full pipeline and writes the output directory.
func (s *Site) Build(ctx context.Context) error {
	start := time.Now()

	if !s.Drafts {
		s.dropDrafts()
	}

	if err := s.renderAllMarkdown(ctx); err != nil {
		return err
	}

	content.AssignPagesToSections(s.Sections, s.Pages)

	set, err := templates.Load(filepath.Join(s.Root, "templates"), s.Config, s.Sections)
	if err != nil {
		return err
	}
	if err := s.renderTemplates(set); err != nil {
		return err
	}

	if s.Config.CompileSass {
		if err := s.compileSass(ctx); err != nil {
			return err
		}
	}

	staticDir := filepath.Join(s.Root, "static")
	if _, err := os.Stat(staticDir); err == nil {
		if err := copyTree(staticDir, s.OutputDir); err != nil {
			return fmt.Errorf("copy static files: %w", err)
		}
	}

	if s.Config.GenerateSitemap {
		if err := s.writeSitemap(); err != nil {
			return err
		}
	}
	if s.Config.GenerateFeed {
		if err := s.writeFeed(); err != nil {
			return err
		}
	}
	if s.Config.GenerateLlmsTxt {
		if err := s.writeLlmsTxt(); err != nil {
			return err
		}
		if err := s.writeLlmsFullTxt(); err != nil {
			return err
		}
	}

	if err := s.copyColocatedAssets(); err != nil {
		return err
	}

	slog.Info("Build completed",
		"pages", len(s.Pages),
		"sections", len(s.Sections),
		"output", s.OutputDir,
		"duration", time.Since(start))
	return nil
}

// Check runs the content and template phases without writing output.
func (s *Site) Check(ctx context.Context) error {
	if !s.Drafts {
		s.dropDrafts()
	}
	if err := s.renderAllMarkdown(ctx); err != nil {
		return err
	}
	content.AssignPagesToSections(s.Sections, s.Pages)

	_, err := templates.Load(filepath.Join(s.Root, "templates"), s.Config, s.Sections)
	return err
}

func (s *Site) dropDrafts() {
	for key, page := range s.Pages {
		if page.Draft {
			delete(s.Pages, key)
		}
	}
}

// renderAllMarkdown resolves internal links, expands shortcodes, and
// renders markdown (executing code blocks) for every page and every
// section with a body.
func (s *Site) renderAllMarkdown(ctx context.Context) error {
	for key, page := range s.Pages {
		resolved, err := links.Resolve(page.RawContent, s.Pages, s.Sections)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		page.RawContent = resolved
	}
	for key, section := range s.Sections {
		if strings.TrimSpace(section.RawContent) == "" {
			continue
		}
		resolved, err := links.Resolve(section.RawContent, s.Pages, s.Sections)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		section.RawContent = resolved
	}

	sandboxRoot := s.Sandbox
	if sandboxRoot == "" {
		sandboxRoot = s.Root
	}
	sandbox, err := shortcode.NewSandbox(sandboxRoot)
	if err != nil {
		return err
	}
	engine := &shortcode.Engine{
		TemplateDir: filepath.Join(s.Root, "templates", "shortcodes"),
		SiteRoot:    s.Root,
		Sandbox:     sandbox,
	}

	renderer := markdown.New(&s.Config.Markdown, s.Config.BaseURL)
	runner := exec.NewRunner(s.Root)
	contentDir := filepath.Join(s.Root, "content")

	for key, page := range s.Pages {
		expanded, err := engine.Expand(page.RawContent)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		page.RawContent = expanded

		if summaryRaw, ok := markdown.ExtractSummary(expanded); ok {
			summary, err := renderer.RenderStatic(summaryRaw)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			page.Summary = summary
		}

		html, err := s.renderMarkdownBody(ctx, renderer, runner, expanded, key, contentDir)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		page.Content = html
	}

	for key, section := range s.Sections {
		if strings.TrimSpace(section.RawContent) == "" {
			continue
		}
		expanded, err := engine.Expand(section.RawContent)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		html, err := s.renderMarkdownBody(ctx, renderer, runner, expanded, key, contentDir)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		section.Content = html
	}

	return nil
}

// renderMarkdownBody renders one body to HTML, runs its executable
// blocks (unless disabled), and splices results back over the
// placeholders. Execution failures are logged and recovered per block.
func (s *Site) renderMarkdownBody(ctx context.Context, renderer *markdown.Renderer, runner *exec.Runner, raw, key, contentDir string) (string, error) {
	html, blocks, err := renderer.Render(raw)
	if err != nil {
		return "", err
	}

	if len(blocks) > 0 && !s.NoExec {
		workingDir := filepath.Join(contentDir, path.Dir(key))
		runner.ExecuteBlocks(ctx, blocks, workingDir)
		for _, block := range blocks {
			if block.Err != "" {
				slog.Warn("Code block failed", "page", key, "block", block.Index, "error", block.Err)
			}
		}
	}

	return renderer.ReplacePlaceholders(html, blocks), nil
}

// renderTemplates writes every page, section, taxonomy, and the 404 page
// under a freshly cleaned output directory.
func (s *Site) renderTemplates(set *templates.Set) error {
	if err := os.RemoveAll(s.OutputDir); err != nil {
		return fmt.Errorf("clean output dir: %w", err)
	}
	if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
		return err
	}

	for _, page := range s.Pages {
		html, err := set.Render("page.html", templates.PageContext(page, s.Config))
		if err != nil {
			return err
		}
		if err := s.writeHTML(page.Path, html); err != nil {
			return err
		}
		if err := s.writeAliases(page); err != nil {
			return err
		}
	}

	for _, section := range s.Sections {
		if err := s.renderSection(set, section); err != nil {
			return err
		}
	}

	if err := s.renderTaxonomies(set); err != nil {
		return err
	}

	if set.Has("404.html") {
		html, err := set.Render("404.html", templates.NotFoundContext(s.Config))
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(s.OutputDir, "404.html"), []byte(html), 0o644); err != nil {
			return err
		}
	}

	return nil
}

func (s *Site) renderSection(set *templates.Set, section *content.Section) error {
	templateName := "section.html"
	if section.Path == "/" {
		templateName = "index.html"
	}

	if section.PaginateBy <= 0 {
		html, err := set.Render(templateName, templates.SectionContext(section, s.Config, nil))
		if err != nil {
			return err
		}
		return s.writeHTML(section.Path, html)
	}

	total := len(section.Pages)
	numPagers := (total + section.PaginateBy - 1) / section.PaginateBy
	if numPagers < 1 {
		numPagers = 1
	}

	for idx := 0; idx < numPagers; idx++ {
		start := idx * section.PaginateBy
		end := start + section.PaginateBy
		if end > total {
			end = total
		}

		pag := &templates.Paginator{
			Pages:        section.Pages[start:end],
			CurrentIndex: idx + 1,
			NumberPagers: numPagers,
			First:        section.Permalink,
			Last:         section.Permalink,
		}
		if numPagers > 1 {
			pag.Last = fmt.Sprintf("%spage/%d/", section.Permalink, numPagers)
		}
		if idx == 1 {
			pag.Previous = section.Permalink
		} else if idx > 1 {
			pag.Previous = fmt.Sprintf("%spage/%d/", section.Permalink, idx)
		}
		if idx < numPagers-1 {
			pag.Next = fmt.Sprintf("%spage/%d/", section.Permalink, idx+2)
		}

		html, err := set.Render(templateName, templates.SectionContext(section, s.Config, pag))
		if err != nil {
			return err
		}

		urlPath := section.Path
		if idx > 0 {
			urlPath = fmt.Sprintf("%spage/%d/", section.Path, idx+1)
		}
		if err := s.writeHTML(urlPath, html); err != nil {
			return err
		}
	}
	return nil
}

// renderTaxonomies writes list and term pages for every configured
// taxonomy whose templates exist.
func (s *Site) renderTaxonomies(set *templates.Set) error {
	for _, taxonomy := range s.Config.Taxonomies {
		termPages := make(map[string][]*content.Page)
		for _, page := range s.Pages {
			for _, term := range page.Taxonomies[taxonomy.Name] {
				termPages[term] = append(termPages[term], page)
			}
		}

		terms := make([]templates.TaxonomyTerm, 0, len(termPages))
		for name, pages := range termPages {
			content.SortPagesByDate(pages)
			termSlug := slug.Make(name)
			terms = append(terms, templates.TaxonomyTerm{
				Name:      name,
				Slug:      termSlug,
				Permalink: fmt.Sprintf("%s/%s/%s/", s.Config.BaseURL, taxonomy.Name, termSlug),
				Pages:     pages,
			})
		}
		sort.Slice(terms, func(i, j int) bool { return terms[i].Name < terms[j].Name })

		listTemplate := taxonomy.Name + "/list.html"
		if set.Has(listTemplate) {
			html, err := set.Render(listTemplate, templates.TaxonomyListContext(terms, s.Config))
			if err != nil {
				return err
			}
			if err := s.writeHTML("/"+taxonomy.Name+"/", html); err != nil {
				return err
			}
		}

		singleTemplate := taxonomy.Name + "/single.html"
		if set.Has(singleTemplate) {
			for _, term := range terms {
				html, err := set.Render(singleTemplate, templates.TaxonomySingleContext(term, s.Config))
				if err != nil {
					return err
				}
				if err := s.writeHTML("/"+taxonomy.Name+"/"+term.Slug+"/", html); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// writeHTML writes html as index.html under the output path for a URL
// like "/posts/hello/".
func (s *Site) writeHTML(urlPath, html string) error {
	dir := filepath.Join(s.OutputDir, filepath.FromSlash(strings.TrimPrefix(urlPath, "/")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "index.html"), []byte(html), 0o644)
}

// compileSass shells out to the sass binary for sass/style.scss. A
// missing binary or missing entry point is skipped, not fatal.
func (s *Site) compileSass(ctx context.Context) error {
	stylePath := filepath.Join(s.Root, "sass", "style.scss")
	if _, err := os.Stat(stylePath); err != nil {
		return nil
	}
	sassBin, err := osexec.LookPath("sass")
	if err != nil {
		slog.Warn("Sass compilation skipped, no sass binary on PATH")
		return nil
	}

	outPath := filepath.Join(s.OutputDir, "style.css")
	cmd := osexec.CommandContext(ctx, sassBin, "--no-source-map", stylePath, outPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("sass compilation failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// copyColocatedAssets mirrors non-markdown content files into the output
// tree at their content-relative paths.
func (s *Site) copyColocatedAssets() error {
	contentDir := filepath.Join(s.Root, "content")
	for _, asset := range s.Assets {
		rel, err := filepath.Rel(contentDir, asset)
		if err != nil {
			return err
		}
		dest := filepath.Join(s.OutputDir, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := copyFile(asset, dest); err != nil {
			return err
		}
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		dest := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}
		return copyFile(p, dest)
	})
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
