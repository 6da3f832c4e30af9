package shortcode

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
)

// renderTemplate loads {name}.html from the shortcode template directory
// and renders it through an isolated template instance with the parsed
// arguments bound, plus the trimmed body for block-form invocations.
func (e *Engine) renderTemplate(name string, args map[string]string, body string, hasBody bool) (string, error) {
	path := filepath.Join(e.TemplateDir, name+".html")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("template not found: %s.html", name)
		}
		return "", fmt.Errorf("read template %s.html: %w", name, err)
	}

	tmpl, err := template.New(name + ".html").Parse(string(data))
	if err != nil {
		return "", fmt.Errorf("parse template %s.html: %w", name, err)
	}

	ctx := map[string]any{}
	for k, v := range args {
		ctx[k] = v
	}
	if hasBody {
		ctx["body"] = body
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, ctx); err != nil {
		return "", fmt.Errorf("render template %s.html: %w", name, err)
	}
	return b.String(), nil
}
