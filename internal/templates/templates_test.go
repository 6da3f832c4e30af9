package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/inkwell/internal/config"
	"github.com/mkarlsen/inkwell/internal/content"
)

func testSiteConfig() *config.Config {
	cfg := config.Default()
	cfg.BaseURL = "https://example.com"
	cfg.Title = "Test Site"
	return cfg
}

func writeTemplates(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

func TestLoadAndRender(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"page.html": `<h1>{{ .Page.Title }}</h1>`,
	})
	set, err := Load(dir, testSiteConfig(), nil)
	require.NoError(t, err)

	page := &content.Page{Title: "Hello"}
	out, err := set.Render("page.html", PageContext(page, testSiteConfig()))
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hello</h1>", out)
}

func TestLoadNestedTemplateNames(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"page.html":        `x`,
		"tags/list.html":   `terms: {{ len .Terms }}`,
		"tags/single.html": `term: {{ .Term.Name }}`,
	})
	set, err := Load(dir, testSiteConfig(), nil)
	require.NoError(t, err)

	assert.True(t, set.Has("tags/list.html"))
	assert.True(t, set.Has("tags/single.html"))
	assert.False(t, set.Has("categories/list.html"))
}

func TestRenderMissingTemplate(t *testing.T) {
	dir := writeTemplates(t, map[string]string{"page.html": "x"})
	set, err := Load(dir, testSiteConfig(), nil)
	require.NoError(t, err)

	_, err = set.Render("section.html", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "section.html")
}

func TestLoadInvalidTemplateFails(t *testing.T) {
	dir := writeTemplates(t, map[string]string{"page.html": "{{ .Broken"})
	_, err := Load(dir, testSiteConfig(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page.html")
}

func TestGetURLContentPath(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"t.html": `{{ get_url "@/posts/hello.md" }}`,
	})
	set, err := Load(dir, testSiteConfig(), nil)
	require.NoError(t, err)

	out, err := set.Render("t.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/posts/hello/", out)
}

func TestGetURLSectionPath(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"t.html": `{{ get_url "@/posts/_index.md" }}`,
	})
	set, err := Load(dir, testSiteConfig(), nil)
	require.NoError(t, err)

	out, err := set.Render("t.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/posts/", out)
}

func TestGetURLStaticPath(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"t.html": `{{ get_url "/img/photo.png" }}`,
	})
	set, err := Load(dir, testSiteConfig(), nil)
	require.NoError(t, err)

	out, err := set.Render("t.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/img/photo.png", out)
}

func TestGetSection(t *testing.T) {
	sections := map[string]*content.Section{
		"posts/_index.md": {Title: "Blog"},
	}
	dir := writeTemplates(t, map[string]string{
		"t.html": `{{ (get_section "posts/_index.md").Title }}`,
	})
	set, err := Load(dir, testSiteConfig(), sections)
	require.NoError(t, err)

	out, err := set.Render("t.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "Blog", out)
}

func TestGetTaxonomyURL(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"t.html": `{{ get_taxonomy_url "tags" "Hello World" }}`,
	})
	set, err := Load(dir, testSiteConfig(), nil)
	require.NoError(t, err)

	out, err := set.Render("t.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/tags/hello-world/", out)
}

func TestPluralize(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"t.html": `{{ pluralize .N }}`,
	})
	set, err := Load(dir, testSiteConfig(), nil)
	require.NoError(t, err)

	out, err := set.Render("t.html", map[string]any{"N": 1})
	require.NoError(t, err)
	assert.Equal(t, "", out)

	out, err = set.Render("t.html", map[string]any{"N": 5})
	require.NoError(t, err)
	assert.Equal(t, "s", out)
}

func TestDateFilter(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"t.html": `{{ date "2025-06-15" "January 2, 2006" }}`,
	})
	set, err := Load(dir, testSiteConfig(), nil)
	require.NoError(t, err)

	out, err := set.Render("t.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "June 15, 2025", out)
}

func TestSafeHTML(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"t.html": `{{ safe_html .Page.Content }}`,
	})
	set, err := Load(dir, testSiteConfig(), nil)
	require.NoError(t, err)

	page := &content.Page{Content: "<p>hi</p>"}
	out, err := set.Render("t.html", PageContext(page, testSiteConfig()))
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", out)
}

func TestSectionContextCarriesPaginator(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"t.html": `{{ .Paginator.CurrentIndex }}/{{ .Paginator.NumberPagers }}`,
	})
	set, err := Load(dir, testSiteConfig(), nil)
	require.NoError(t, err)

	pag := &Paginator{CurrentIndex: 2, NumberPagers: 3}
	out, err := set.Render("t.html", SectionContext(&content.Section{}, testSiteConfig(), pag))
	require.NoError(t, err)
	assert.Equal(t, "2/3", out)
}
