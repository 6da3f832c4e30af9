package content

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/mkarlsen/inkwell/internal/config"
)

// Delimiter is the front matter fence line.
const Delimiter = "+++"

// ErrUnclosedFrontmatter indicates a document started with a front matter
// delimiter but no closing delimiter line was found.
var ErrUnclosedFrontmatter = errors.New("front matter start delimiter found but closing delimiter is missing")

// Frontmatter holds the structured header of a content file. Unknown
// top-level keys are captured in Rest and interpreted as taxonomy term
// lists when they are arrays of strings.
type Frontmatter struct {
	Title       string         `toml:"title"`
	Date        any            `toml:"date"`
	Author      string         `toml:"author"`
	Description string         `toml:"description"`
	Draft       bool           `toml:"draft"`
	Slug        string         `toml:"slug"`
	Aliases     []string       `toml:"aliases"`
	SortBy      config.SortBy  `toml:"sort_by"`
	PaginateBy  int            `toml:"paginate_by"`
	Extra       map[string]any `toml:"extra"`

	// Rest holds top-level keys not covered by the fields above.
	Rest map[string]any `toml:"-"`
}

// knownKeys are the top-level front matter keys with dedicated fields.
var knownKeys = map[string]bool{
	"title": true, "date": true, "author": true, "description": true,
	"draft": true, "slug": true, "aliases": true, "sort_by": true,
	"paginate_by": true, "extra": true,
}

// ParseFrontmatter splits a content file into its front matter and body.
//
// A file that does not start with the delimiter yields an empty Frontmatter
// and the whole input as body; that is not an error. A started but
// unterminated front matter block is an error.
func ParseFrontmatter(input string) (Frontmatter, string, error) {
	input = strings.TrimPrefix(input, "\uFEFF")

	fm := Frontmatter{Extra: map[string]any{}, Rest: map[string]any{}}
	if !strings.HasPrefix(input, Delimiter) {
		return fm, input, nil
	}

	rest := input[len(Delimiter):]
	end := strings.Index(rest, "\n"+Delimiter)
	if end < 0 {
		return fm, "", ErrUnclosedFrontmatter
	}
	header := rest[:end]
	body := rest[end+1+len(Delimiter):]
	// Drop the remainder of the closing delimiter line.
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}

	if err := toml.Unmarshal([]byte(header), &fm); err != nil {
		return fm, "", fmt.Errorf("parse front matter: %w", err)
	}

	var raw map[string]any
	if err := toml.Unmarshal([]byte(header), &raw); err != nil {
		return fm, "", fmt.Errorf("parse front matter: %w", err)
	}
	fm.Rest = map[string]any{}
	for k, v := range raw {
		if !knownKeys[k] {
			fm.Rest[k] = v
		}
	}
	if fm.Extra == nil {
		fm.Extra = map[string]any{}
	}

	return fm, body, nil
}

// DateString normalizes the front matter date value to a string
// (e.g. "2025-01-15" or "2025-01-15T10:30:00Z").
func (fm Frontmatter) DateString() string {
	switch v := fm.Date.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Taxonomies extracts every unknown array-of-strings field as a taxonomy
// term list keyed by the original field name.
func (fm Frontmatter) Taxonomies() map[string][]string {
	out := map[string][]string{}
	for key, value := range fm.Rest {
		arr, ok := value.([]any)
		if !ok {
			continue
		}
		var terms []string
		for _, item := range arr {
			if s, ok := item.(string); ok {
				terms = append(terms, s)
			}
		}
		if len(terms) > 0 {
			out[key] = terms
		}
	}
	return out
}

// StripFrontmatter removes a leading delimited front matter block from raw
// text, returning the input unchanged when no block is present.
func StripFrontmatter(input string) string {
	trimmed := strings.TrimPrefix(input, "\uFEFF")
	if !strings.HasPrefix(trimmed, Delimiter) {
		return input
	}
	rest := trimmed[len(Delimiter):]
	end := strings.Index(rest, "\n"+Delimiter)
	if end < 0 {
		return input
	}
	body := rest[end+1+len(Delimiter):]
	if i := strings.Index(body, "\n"); i >= 0 {
		return body[i+1:]
	}
	return ""
}
