package markdown

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const defaultTheme = "github"

// highlight renders code as syntax-highlighted HTML via chroma, keyed by
// language token and configured theme. When highlighting is disabled,
// the language is unknown, or chroma fails, it falls back to a plain
// escaped <pre><code> block.
func (r *Renderer) highlight(code, lang string) string {
	if !r.cfg.HighlightCode || lang == "" {
		return plainCodeBlock(code, lang)
	}

	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	theme := r.cfg.HighlightTheme
	if theme == "" {
		theme = defaultTheme
	}
	style := styles.Get(theme)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return plainCodeBlock(code, lang)
	}

	var b strings.Builder
	formatter := chromahtml.New(chromahtml.WithClasses(false))
	if err := formatter.Format(&b, style, iterator); err != nil {
		return plainCodeBlock(code, lang)
	}
	return b.String()
}

func plainCodeBlock(code, lang string) string {
	class := ""
	if lang != "" {
		class = ` class="language-` + htmlEscape(lang) + `"`
	}
	return "<pre><code" + class + ">" + htmlEscape(code) + "</code></pre>\n"
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
