// Package links rewrites @/path.md internal references into permalinks.
package links

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/mkarlsen/inkwell/internal/content"
)

// internalLinkRe matches "@/relative/path.md" with an optional "#fragment".
var internalLinkRe = regexp.MustCompile(`@/([^)#\s]+\.md)(#[^)\s]+)?`)

// Resolve rewrites every internal reference in raw body text into an
// absolute permalink, matching pages first and sections second by their
// relative path key.
//
// All unresolved references found during the pass are collected and
// reported together in a single error; the input is never partially
// applied on failure.
func Resolve(raw string, pages map[string]*content.Page, sections map[string]*content.Section) (string, error) {
	var unresolved []error

	out := internalLinkRe.ReplaceAllStringFunc(raw, func(match string) string {
		groups := internalLinkRe.FindStringSubmatch(match)
		relPath, anchor := groups[1], groups[2]

		if page, ok := pages[relPath]; ok {
			return page.Permalink + anchor
		}
		if section, ok := sections[relPath]; ok {
			return section.Permalink + anchor
		}

		unresolved = append(unresolved, fmt.Errorf("unresolved internal link: @/%s", relPath))
		return match
	})

	if len(unresolved) > 0 {
		return "", errors.Join(unresolved...)
	}
	return out, nil
}
