package site

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mkarlsen/inkwell/internal/content"
)

// writeAliases writes a meta-refresh redirect stub for each alias path of
// a page.
func (s *Site) writeAliases(page *content.Page) error {
	for _, alias := range page.Aliases {
		dir := filepath.Join(s.OutputDir, filepath.FromSlash(strings.Trim(alias, "/")))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		html := fmt.Sprintf(
			`<!DOCTYPE html><html><head><meta http-equiv="refresh" content="0; url=%s"></head><body></body></html>`,
			xmlEscape(page.Permalink))
		if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(html), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// writeSitemap emits sitemap.xml with sections first, both groups sorted
// by path for deterministic output.
func (s *Site) writeSitemap() error {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString("<urlset xmlns=\"http://www.sitemaps.org/schemas/sitemap/0.9\">\n")

	for _, section := range s.sortedSections() {
		b.WriteString("  <url>\n")
		fmt.Fprintf(&b, "    <loc>%s</loc>\n", xmlEscape(section.Permalink))
		b.WriteString("  </url>\n")
	}

	pages := s.pageList()
	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
	for _, page := range pages {
		b.WriteString("  <url>\n")
		fmt.Fprintf(&b, "    <loc>%s</loc>\n", xmlEscape(page.Permalink))
		if page.Date != "" {
			fmt.Fprintf(&b, "    <lastmod>%s</lastmod>\n", page.Date)
		}
		b.WriteString("  </url>\n")
	}

	b.WriteString("</urlset>\n")
	return os.WriteFile(filepath.Join(s.OutputDir, "sitemap.xml"), []byte(b.String()), 0o644)
}

// writeFeed emits an Atom feed of dated pages, newest first.
func (s *Site) writeFeed() error {
	var pages []*content.Page
	for _, page := range s.Pages {
		if page.Date != "" {
			pages = append(pages, page)
		}
	}
	content.SortPagesByDate(pages)

	updated := "1970-01-01"
	if len(pages) > 0 {
		updated = pages[0].Date
	}
	base := s.Config.BaseURL
	title := xmlEscape(s.Config.Title)

	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString("<feed xmlns=\"http://www.w3.org/2005/Atom\">\n")
	fmt.Fprintf(&b, "  <title>%s</title>\n", title)
	fmt.Fprintf(&b, "  <link href=\"%s/atom.xml\" rel=\"self\"/>\n", base)
	fmt.Fprintf(&b, "  <link href=\"%s/\"/>\n", base)
	fmt.Fprintf(&b, "  <updated>%s</updated>\n", normalizeDate(updated))
	fmt.Fprintf(&b, "  <id>%s/</id>\n", base)
	// RFC 4287 requires an author on the feed or on every entry
	if s.Config.Title != "" {
		fmt.Fprintf(&b, "  <author><name>%s</name></author>\n", title)
	}

	for _, page := range pages {
		b.WriteString("  <entry>\n")
		fmt.Fprintf(&b, "    <title>%s</title>\n", xmlEscape(page.Title))
		fmt.Fprintf(&b, "    <link href=\"%s\"/>\n", xmlEscape(page.Permalink))
		fmt.Fprintf(&b, "    <id>%s</id>\n", xmlEscape(page.Permalink))
		fmt.Fprintf(&b, "    <updated>%s</updated>\n", normalizeDate(page.Date))
		if page.Author != "" {
			fmt.Fprintf(&b, "    <author><name>%s</name></author>\n", xmlEscape(page.Author))
		}
		if page.Summary != "" {
			fmt.Fprintf(&b, "    <summary type=\"html\">%s</summary>\n", xmlEscape(page.Summary))
		} else if page.Description != "" {
			fmt.Fprintf(&b, "    <summary>%s</summary>\n", xmlEscape(page.Description))
		}
		b.WriteString("  </entry>\n")
	}

	b.WriteString("</feed>\n")
	return os.WriteFile(filepath.Join(s.OutputDir, "atom.xml"), []byte(b.String()), 0o644)
}

// writeLlmsTxt emits llms.txt, a structured markdown index of the site.
func (s *Site) writeLlmsTxt() error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", s.Config.Title)
	if s.Config.Description != "" {
		fmt.Fprintf(&b, "\n> %s\n", s.Config.Description)
	}

	assigned := make(map[string]bool)
	for _, section := range s.Sections {
		for _, page := range section.Pages {
			assigned[page.Path] = true
		}
	}

	for _, section := range s.sortedSections() {
		fmt.Fprintf(&b, "\n## %s\n", section.Title)
		if section.Description != "" {
			fmt.Fprintf(&b, "\n%s\n", section.Description)
		}
		if len(section.Pages) > 0 {
			b.WriteString("\n")
			for _, page := range section.Pages {
				writePageLink(&b, page)
			}
		}
	}

	var orphans []*content.Page
	for _, page := range s.Pages {
		if !assigned[page.Path] {
			orphans = append(orphans, page)
		}
	}
	if len(orphans) > 0 {
		content.SortPagesByDate(orphans)
		b.WriteString("\n## Pages\n\n")
		for _, page := range orphans {
			writePageLink(&b, page)
		}
	}

	return os.WriteFile(filepath.Join(s.OutputDir, "llms.txt"), []byte(b.String()), 0o644)
}

// writeLlmsFullTxt emits llms-full.txt, the raw markdown of every page.
func (s *Site) writeLlmsFullTxt() error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", s.Config.Title)
	if s.Config.Description != "" {
		fmt.Fprintf(&b, "\n> %s\n", s.Config.Description)
	}

	pages := s.pageList()
	content.SortPagesByDate(pages)
	for _, page := range pages {
		fmt.Fprintf(&b, "\n## %s\n\n", page.Title)
		b.WriteString(strings.TrimSpace(page.RawContent))
		b.WriteString("\n")
	}

	return os.WriteFile(filepath.Join(s.OutputDir, "llms-full.txt"), []byte(b.String()), 0o644)
}

func (s *Site) pageList() []*content.Page {
	pages := make([]*content.Page, 0, len(s.Pages))
	for _, page := range s.Pages {
		pages = append(pages, page)
	}
	return pages
}

// sortedSections orders sections root first, then by path.
func (s *Site) sortedSections() []*content.Section {
	sections := make([]*content.Section, 0, len(s.Sections))
	for _, section := range s.Sections {
		sections = append(sections, section)
	}
	sort.Slice(sections, func(i, j int) bool {
		if sections[i].Path == "/" {
			return sections[j].Path != "/"
		}
		if sections[j].Path == "/" {
			return false
		}
		return sections[i].Path < sections[j].Path
	})
	return sections
}

func writePageLink(b *strings.Builder, page *content.Page) {
	if page.Description != "" {
		fmt.Fprintf(b, "- [%s](%s): %s\n", page.Title, page.Permalink, page.Description)
		return
	}
	fmt.Fprintf(b, "- [%s](%s)\n", page.Title, page.Permalink)
}

// normalizeDate coerces a frontmatter date to RFC 3339: date-only gets
// T00:00:00Z, bare datetimes get Z, offset forms pass through.
func normalizeDate(s string) string {
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return s
	}
	if _, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return s + "Z"
	}
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return s + "T00:00:00Z"
	}
	return s
}

func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
