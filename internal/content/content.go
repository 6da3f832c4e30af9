// Package content walks the content tree and builds the in-memory
// page/section graph consumed by the build pipeline.
package content

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gosimple/slug"
)

const (
	sectionMarker = "_index.md"
	mdExt         = ".md"
)

// Page is a rendered content page (any .md file that is not _index.md).
// Identity key is the source path relative to the content root.
type Page struct {
	Title       string
	Date        string
	Author      string
	Description string
	Draft       bool
	Slug        string
	// URL path relative to the site root, e.g. "/posts/hello/".
	Path      string
	Permalink string
	// Rendered HTML, populated during build.
	Content string
	Summary string
	// Raw markdown body; mutated in place by the pipeline stages.
	RawContent string
	// Taxonomy terms keyed by taxonomy name.
	Taxonomies map[string][]string
	Extra      map[string]any
	Aliases    []string
	WordCount  int
	// Estimated reading time in minutes (WordCount/200, minimum 1).
	ReadingTime  int
	RelativePath string
}

// Section is defined by an _index.md file and owns the pages beneath it.
type Section struct {
	Title       string
	Description string
	Path        string
	Permalink   string
	Content     string
	RawContent  string
	// Pages owned by this section, populated by AssignPagesToSections.
	Pages        []*Page
	SortBy       string
	PaginateBy   int
	Extra        map[string]any
	RelativePath string
}

// Loaded is the result of walking a content directory.
type Loaded struct {
	// Sections keyed by their relative _index.md path.
	Sections map[string]*Section
	// Pages keyed by their relative .md path.
	Pages map[string]*Page
	// Absolute paths of non-markdown files co-located with content.
	Assets []string
}

// PageURLPath computes the URL path for a page, e.g. ("posts", "hello")
// yields "/posts/hello/".
func PageURLPath(parentDir, slugStr string) string {
	if parentDir == "" {
		return "/" + slugStr + "/"
	}
	return "/" + parentDir + "/" + slugStr + "/"
}

// SectionURLPath computes the URL path for a section from the directory of
// its _index.md.
func SectionURLPath(dir string) string {
	if dir == "" {
		return "/"
	}
	return "/" + dir + "/"
}

func parentDir(relPath string) string {
	dir := path.Dir(relPath)
	if dir == "." {
		return ""
	}
	return dir
}

func isColocated(relPath string) bool {
	return path.Base(relPath) == "index.md"
}

// sectionDir returns the directory whose _index.md owns the given page
// path. Co-located "dir/index.md" pages belong to the grandparent section.
func sectionDir(relPath string) string {
	if isColocated(relPath) {
		grand := path.Dir(path.Dir(relPath))
		if grand == "." || grand == "/" {
			return ""
		}
		return grand
	}
	return parentDir(relPath)
}

// SectionKeyFor computes the _index.md key owning a content-relative path,
// e.g. "posts/hello.md" yields "posts/_index.md".
func SectionKeyFor(relPath string) string {
	dir := sectionDir(relPath)
	if dir == "" {
		return sectionMarker
	}
	return dir + "/" + sectionMarker
}

// BuildPage assembles a Page from parsed front matter and site context.
func BuildPage(fm Frontmatter, rawContent, relPath, baseURL string) *Page {
	pageSlug := fm.Slug
	if pageSlug == "" {
		if isColocated(relPath) {
			pageSlug = slug.Make(path.Base(path.Dir(relPath)))
		} else {
			pageSlug = slug.Make(strings.TrimSuffix(path.Base(relPath), mdExt))
		}
	}

	urlPath := PageURLPath(sectionDir(relPath), pageSlug)

	words := len(strings.Fields(rawContent))
	readingTime := words / 200
	if readingTime < 1 {
		readingTime = 1
	}

	return &Page{
		Title:        fm.Title,
		Date:         fm.DateString(),
		Author:       fm.Author,
		Description:  fm.Description,
		Draft:        fm.Draft,
		Slug:         pageSlug,
		Path:         urlPath,
		Permalink:    baseURL + urlPath,
		RawContent:   rawContent,
		Taxonomies:   fm.Taxonomies(),
		Extra:        fm.Extra,
		Aliases:      fm.Aliases,
		WordCount:    words,
		ReadingTime:  readingTime,
		RelativePath: relPath,
	}
}

// BuildSection assembles a Section from parsed front matter and site context.
func BuildSection(fm Frontmatter, rawContent, relPath, baseURL string) *Section {
	urlPath := SectionURLPath(parentDir(relPath))
	return &Section{
		Title:        fm.Title,
		Description:  fm.Description,
		Path:         urlPath,
		Permalink:    baseURL + urlPath,
		RawContent:   rawContent,
		SortBy:       string(fm.SortBy),
		PaginateBy:   fm.PaginateBy,
		Extra:        fm.Extra,
		RelativePath: relPath,
	}
}

// Load walks contentDir and parses every file into a page, a section, or a
// co-located asset. Any unreadable file or malformed front matter aborts
// the load.
func Load(contentDir, baseURL string) (*Loaded, error) {
	loaded := &Loaded{
		Sections: map[string]*Section{},
		Pages:    map[string]*Page{},
	}

	err := filepath.WalkDir(contentDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk content directory: %w", err)
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(contentDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		name := d.Name()
		switch {
		case name == sectionMarker:
			fm, body, err := readFrontmatter(p)
			if err != nil {
				return err
			}
			loaded.Sections[rel] = BuildSection(fm, body, rel, baseURL)
		case strings.HasSuffix(name, mdExt):
			fm, body, err := readFrontmatter(p)
			if err != nil {
				return err
			}
			loaded.Pages[rel] = BuildPage(fm, body, rel, baseURL)
		default:
			loaded.Assets = append(loaded.Assets, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loaded, nil
}

func readFrontmatter(path string) (Frontmatter, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Frontmatter{}, "", fmt.Errorf("read %s: %w", path, err)
	}
	fm, body, err := ParseFrontmatter(string(data))
	if err != nil {
		return fm, body, fmt.Errorf("%s: %w", path, err)
	}
	return fm, body, nil
}

// SortPagesByDate orders pages reverse chronologically; undated pages sort
// last. Date strings compare lexicographically, which is stable for the
// ISO-8601 values front matter carries.
func SortPagesByDate(pages []*Page) {
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Date > pages[j].Date })
}

// SortPagesByTitle orders pages alphabetically by title.
func SortPagesByTitle(pages []*Page) {
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Title < pages[j].Title })
}

// AssignPagesToSections attaches every page to its owning section and sorts
// each section's page list by its configured order.
func AssignPagesToSections(sections map[string]*Section, pages map[string]*Page) {
	for rel, page := range pages {
		if section, ok := sections[SectionKeyFor(rel)]; ok {
			section.Pages = append(section.Pages, page)
		}
	}
	for _, section := range sections {
		switch section.SortBy {
		case "title":
			SortPagesByTitle(section.Pages)
		default:
			SortPagesByDate(section.Pages)
		}
	}
}
