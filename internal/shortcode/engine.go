// Package shortcode expands inline and block shortcode invocations in raw
// markdown before markdown rendering.
//
// Inline form: {{ name(key="value") }}
// Block form:  {% name(key="value") %}body{% end %}
package shortcode

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mkarlsen/inkwell/internal/content"
)

// maxBlockPasses bounds the fixed-point loop that expands nested block
// shortcodes.
const maxBlockPasses = 10

var (
	blockRe = regexp.MustCompile(`(?s)\{%\s*(\w+)\s*\(([^)]*)\)\s*%\}(.*?)\{%\s*end\s*%\}`)
	// leafBlockRe matches only blocks whose body contains no further {%
	// opening, so nested blocks expand innermost-first.
	leafBlockRe  = regexp.MustCompile(`\{%\s*(\w+)\s*\(([^)]*)\)\s*%\}((?:[^{]|\{[^%])*?)\{%\s*end\s*%\}`)
	inlineRe     = regexp.MustCompile(`\{\{\s*(\w+)\s*\(([^)]*)\)\s*\}\}`)
	doubleArgRe  = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)
	singleArgRe  = regexp.MustCompile(`(\w+)\s*=\s*'([^']*)'`)
	tabSeparator = "<!-- tab -->"
)

// Engine expands shortcodes against a site root, a sandbox boundary, and a
// directory of user shortcode templates.
type Engine struct {
	// TemplateDir holds user shortcode templates, one {name}.html per
	// shortcode.
	TemplateDir string
	// SiteRoot anchors relative include() paths.
	SiteRoot string
	// Sandbox bounds all shortcode-triggered file reads.
	Sandbox *Sandbox
}

// Expand processes block shortcodes first (their bodies are captured as
// literal text, and may contain inline forms), then inline shortcodes.
// The first expansion error aborts the whole pass.
func (e *Engine) Expand(raw string) (string, error) {
	out, err := e.expandBlocks(raw)
	if err != nil {
		return "", err
	}
	return e.expandInline(out)
}

func (e *Engine) expandBlocks(raw string) (string, error) {
	// Each pass replaces the innermost blocks only, so nesting peels one
	// level at a time and the loop reaches a fixed point within the pass
	// bound.
	for pass := 0; blockRe.MatchString(raw) && pass < maxBlockPasses; pass++ {
		var firstErr error
		replaced := false
		raw = leafBlockRe.ReplaceAllStringFunc(raw, func(match string) string {
			if firstErr != nil {
				return match
			}
			groups := leafBlockRe.FindStringSubmatch(match)
			name, argsStr, body := groups[1], groups[2], groups[3]
			rendered, err := e.render(name, parseArgs(argsStr), strings.TrimSpace(body), true)
			if err != nil {
				firstErr = fmt.Errorf("shortcode %q: %w", name, err)
				return match
			}
			replaced = true
			return rendered
		})
		if firstErr != nil {
			return "", firstErr
		}
		if !replaced {
			break
		}
	}
	return raw, nil
}

func (e *Engine) expandInline(raw string) (string, error) {
	var firstErr error
	out := inlineRe.ReplaceAllStringFunc(raw, func(match string) string {
		if firstErr != nil {
			return match
		}
		groups := inlineRe.FindStringSubmatch(match)
		name, argsStr := groups[1], groups[2]
		rendered, err := e.render(name, parseArgs(argsStr), "", false)
		if err != nil {
			firstErr = fmt.Errorf("shortcode %q: %w", name, err)
			return match
		}
		return rendered
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// parseArgs extracts key="value" pairs. Double-quoted values win over
// single-quoted values on key collision.
func parseArgs(argsStr string) map[string]string {
	args := map[string]string{}
	for _, cap := range doubleArgRe.FindAllStringSubmatch(argsStr, -1) {
		args[cap[1]] = cap[2]
	}
	for _, cap := range singleArgRe.FindAllStringSubmatch(argsStr, -1) {
		if _, ok := args[cap[1]]; !ok {
			args[cap[1]] = cap[2]
		}
	}
	return args
}

// render dispatches a single shortcode invocation: built-ins first, then
// the user template fallback.
func (e *Engine) render(name string, args map[string]string, body string, hasBody bool) (string, error) {
	switch name {
	case "include":
		return e.renderInclude(args)
	case "tabs":
		return renderTabs(args, body)
	default:
		return e.renderTemplate(name, args, body, hasBody)
	}
}

// renderInclude reads a file relative to the site root. The resolved path
// must stay inside the sandbox boundary.
func (e *Engine) renderInclude(args map[string]string) (string, error) {
	relPath, ok := args["path"]
	if !ok || relPath == "" {
		return "", fmt.Errorf("include requires a path argument")
	}

	resolved, err := e.Sandbox.Resolve(filepath.Join(e.SiteRoot, relPath))
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("include %s: %w", relPath, err)
	}

	text := string(data)
	if args["strip_frontmatter"] == "true" {
		text = content.StripFrontmatter(text)
	}
	return text, nil
}

// renderTabs splits the body on the tab separator into panels matching the
// labels list and emits self-contained toggle markup.
func renderTabs(args map[string]string, body string) (string, error) {
	labelsArg, ok := args["labels"]
	if !ok || labelsArg == "" {
		return "", fmt.Errorf("tabs requires a labels argument")
	}
	labels := strings.Split(labelsArg, "|")
	panels := strings.Split(body, tabSeparator)
	if len(panels) != len(labels) {
		return "", fmt.Errorf("tabs has %d panels but %d labels", len(panels), len(labels))
	}

	var b strings.Builder
	b.WriteString(`<div class="tabs">` + "\n" + `<div class="tab-labels">`)
	for i, label := range labels {
		active := ""
		if i == 0 {
			active = " active"
		}
		fmt.Fprintf(&b, `<button class="tab-label%s" data-tab-idx="%d" onclick="inkwellShowTab(this,%d)">%s</button>`,
			active, i, i, htmlEscape(strings.TrimSpace(label)))
	}
	b.WriteString("</div>\n")
	for i, panel := range panels {
		style := ""
		if i != 0 {
			style = ` style="display:none"`
		}
		fmt.Fprintf(&b, `<div class="tab-panel" data-tab-idx="%d"%s>`+"\n\n%s\n\n</div>\n", i, style, strings.TrimSpace(panel))
	}
	b.WriteString(tabsScript)
	b.WriteString("</div>\n")
	return b.String(), nil
}

const tabsScript = `<script>
function inkwellShowTab(btn, idx) {
  var root = btn.closest('.tabs');
  root.querySelectorAll('.tab-panel').forEach(function(p) {
    p.style.display = p.dataset.tabIdx == idx ? '' : 'none';
  });
  root.querySelectorAll('.tab-label').forEach(function(l) {
    l.classList.toggle('active', l.dataset.tabIdx == idx);
  });
}
</script>
`

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
