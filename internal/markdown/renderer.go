// Package markdown renders page bodies to HTML, diverting executable code
// blocks into indexed placeholders along the way.
package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/gosimple/slug"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"github.com/mkarlsen/inkwell/internal/config"
)

// SummaryMarker delimits the page summary region in raw markdown.
const SummaryMarker = "<!-- more -->"

var fileAttrRe = regexp.MustCompile(`file="([^"]+)"`)

// Renderer converts raw markdown to HTML according to the site's markdown
// configuration. It is stateless across calls; each Render builds a fresh
// goldmark instance so executable-block registration stays local to one
// page.
type Renderer struct {
	cfg     *config.MarkdownConfig
	baseURL string
}

// New returns a Renderer for the given markdown configuration and site
// base URL.
func New(cfg *config.MarkdownConfig, baseURL string) *Renderer {
	return &Renderer{cfg: cfg, baseURL: baseURL}
}

// Render converts raw markdown to HTML, returning the executable blocks
// registered while rendering. Each block's placeholder comment appears in
// the returned HTML at its fence's position.
func (r *Renderer) Render(raw string) (string, []*ExecutableBlock, error) {
	var blocks []*ExecutableBlock

	exts := []goldmark.Extender{
		extension.Table,
		extension.Footnote,
		extension.Strikethrough,
		extension.TaskList,
	}
	if r.cfg.SmartPunctuation {
		exts = append(exts, extension.Typographer)
	}

	md := goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
			renderer.WithNodeRenderers(
				util.Prioritized(&nodeRenderer{r: r, blocks: &blocks}, 100),
			),
		),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(raw), &buf); err != nil {
		return "", nil, fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), blocks, nil
}

// RenderStatic renders markdown discarding executable-block side effects;
// used for summaries, which must not execute anything.
func (r *Renderer) RenderStatic(raw string) (string, error) {
	out, _, err := r.Render(raw)
	return out, err
}

// ExtractSummary returns the raw text before the summary marker, if any.
func ExtractSummary(raw string) (string, bool) {
	if i := strings.Index(raw, SummaryMarker); i >= 0 {
		return raw[:i], true
	}
	return "", false
}

// ReplacePlaceholders substitutes each executed block back into the HTML:
// highlighted source, an output panel when stdout is non-empty, and an
// error panel when the block failed.
func (r *Renderer) ReplacePlaceholders(htmlText string, blocks []*ExecutableBlock) string {
	for _, block := range blocks {
		placeholder := block.Placeholder()
		if !strings.Contains(htmlText, placeholder) {
			continue
		}

		var b strings.Builder
		b.WriteString(`<div class="code-block-executed">`)
		b.WriteString(r.highlight(block.Source, block.Language))
		if block.Output != "" {
			b.WriteString(`<div class="code-output"><pre><code>` + htmlEscape(block.Output) + `</code></pre></div>`)
		}
		if block.Err != "" {
			b.WriteString(`<div class="code-error"><pre><code>` + htmlEscape(block.Err) + `</code></pre></div>`)
		}
		b.WriteString(`</div>`)

		htmlText = strings.ReplaceAll(htmlText, placeholder, b.String())
	}
	return htmlText
}

// nodeRenderer intercepts fenced code blocks, headings, and links; every
// other node falls through to goldmark's defaults.
type nodeRenderer struct {
	r      *Renderer
	blocks *[]*ExecutableBlock
}

func (nr *nodeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, nr.renderFencedCode)
	reg.Register(ast.KindCodeBlock, nr.renderIndentedCode)
	reg.Register(ast.KindHeading, nr.renderHeading)
	reg.Register(ast.KindLink, nr.renderLink)
}

func (nr *nodeRenderer) renderFencedCode(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	info := ""
	if n.Info != nil {
		info = strings.TrimSpace(string(n.Info.Segment.Value(source)))
	}
	code := linesValue(n, source)

	if strings.HasPrefix(info, "{") && strings.HasSuffix(info, "}") {
		lang, fileRef := parseExecAttrs(info[1 : len(info)-1])
		block := &ExecutableBlock{
			Language: lang,
			Source:   code,
			FileRef:  fileRef,
			Index:    len(*nr.blocks),
		}
		*nr.blocks = append(*nr.blocks, block)
		_, _ = w.WriteString(block.Placeholder())
		return ast.WalkContinue, nil
	}

	lang := info
	if i := strings.IndexByte(info, ' '); i >= 0 {
		lang = info[:i]
	}
	_, _ = w.WriteString(nr.r.highlight(code, lang))
	return ast.WalkContinue, nil
}

func (nr *nodeRenderer) renderIndentedCode(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString(plainCodeBlock(linesValue(node, source), ""))
	return ast.WalkContinue, nil
}

func (nr *nodeRenderer) renderHeading(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Heading)
	if entering {
		_, _ = fmt.Fprintf(w, "<h%d>", n.Level)
		return ast.WalkContinue, nil
	}
	if nr.r.cfg.InsertAnchorLinks == "right" {
		headingText := nodeText(n, source)
		id := slug.Make(headingText)
		_, _ = fmt.Fprintf(w, ` <a id="%s" class="anchor" href="#%s" aria-label="Anchor link for: %s">#</a>`,
			id, id, htmlEscape(headingText))
	}
	_, _ = fmt.Fprintf(w, "</h%d>\n", n.Level)
	return ast.WalkContinue, nil
}

func (nr *nodeRenderer) renderLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Link)
	if !entering {
		_, _ = w.WriteString("</a>")
		return ast.WalkContinue, nil
	}

	dest := string(n.Destination)
	_, _ = w.WriteString(`<a href="`)
	_, _ = w.Write(util.EscapeHTML(util.URLEscape(n.Destination, true)))
	_, _ = w.WriteString(`"`)
	if len(n.Title) > 0 {
		_, _ = w.WriteString(` title="`)
		_, _ = w.Write(util.EscapeHTML(n.Title))
		_, _ = w.WriteString(`"`)
	}

	if nr.r.cfg.ExternalLinksTargetBlank && isExternalURL(dest, nr.r.baseURL) {
		_, _ = w.WriteString(` target="_blank"`)
		var rel []string
		if nr.r.cfg.ExternalLinksNoFollow {
			rel = append(rel, "nofollow")
		}
		if nr.r.cfg.ExternalLinksNoReferrer {
			rel = append(rel, "noreferrer")
		}
		if len(rel) > 0 {
			_, _ = w.WriteString(` rel="` + strings.Join(rel, " ") + `"`)
		}
	}
	_, _ = w.WriteString(">")
	return ast.WalkContinue, nil
}

// parseExecAttrs splits a brace-wrapped fence tag into its language token
// and optional file attribute, e.g. `python file="x.py"`.
func parseExecAttrs(inner string) (lang, fileRef string) {
	parts := strings.SplitN(inner, " ", 2)
	lang = parts[0]
	if len(parts) > 1 {
		if m := fileAttrRe.FindStringSubmatch(parts[1]); m != nil {
			fileRef = m[1]
		}
	}
	return lang, fileRef
}

func isExternalURL(dest, baseURL string) bool {
	if !strings.HasPrefix(dest, "http://") && !strings.HasPrefix(dest, "https://") {
		return false
	}
	return !strings.HasPrefix(dest, baseURL)
}

// linesValue collects the literal text of a code block node.
func linesValue(node ast.Node, source []byte) string {
	var b bytes.Buffer
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return b.String()
}

// nodeText accumulates the plain text beneath a node, skipping markup.
func nodeText(node ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
