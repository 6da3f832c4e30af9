package markdown

import "fmt"

// ExecLanguage is the closed set of languages an executable block may
// declare.
type ExecLanguage int

const (
	LangUnsupported ExecLanguage = iota
	LangBash
	LangPython
)

// ParseExecLanguage maps a declared language token onto the closed enum.
// Unknown tokens map to LangUnsupported; the sandbox reports those as
// per-block errors rather than failing the build.
func ParseExecLanguage(tag string) ExecLanguage {
	switch tag {
	case "bash", "sh":
		return LangBash
	case "python":
		return LangPython
	default:
		return LangUnsupported
	}
}

// ExecutableBlock is a fenced code block marked for build-time execution.
// It is created by the markdown pipeline (Index = position of the HTML
// placeholder), populated by the execution sandbox, and consumed exactly
// once during placeholder substitution.
type ExecutableBlock struct {
	// Language is the raw token from the brace-wrapped fence tag.
	Language string
	// Source is the inline fence body; empty when FileRef is set.
	Source string
	// FileRef optionally names a script file relative to the page's
	// content directory.
	FileRef string
	Index   int

	// Output and Err are filled by the execution sandbox.
	Output string
	Err    string
}

// Placeholder returns the HTML comment the pipeline leaves in place of the
// block. Indices are local to one page render and never reused across
// pages.
func (b *ExecutableBlock) Placeholder() string {
	return fmt.Sprintf("<!-- EXEC_BLOCK_%d -->", b.Index)
}
