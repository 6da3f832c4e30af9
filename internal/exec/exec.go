// Package exec runs executable code blocks at build time. Blocks run
// sequentially in page order; a failing block records its error and never
// aborts the build.
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	osexec "os/exec"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"

	"github.com/mkarlsen/inkwell/internal/markdown"
)

// Runner executes code blocks with the site root as its anchor for
// interpreter discovery. One Runner serves a whole build; python
// resolution happens once per process.
type Runner struct {
	siteRoot string

	pythonOnce sync.Once
	pythonPath string
}

// NewRunner returns a Runner rooted at the site directory. A .env file at
// the root is loaded into the process environment so scripts see the same
// variables as a shell session in the project would.
func NewRunner(siteRoot string) *Runner {
	if err := godotenv.Load(filepath.Join(siteRoot, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("No .env loaded", "root", siteRoot, "error", err)
	}
	return &Runner{siteRoot: siteRoot}
}

// ExecuteBlocks runs every block in order, filling Output and Err in
// place. workingDir is the directory of the page's source file; inline
// source and file references both resolve relative to it.
func (r *Runner) ExecuteBlocks(ctx context.Context, blocks []*markdown.ExecutableBlock, workingDir string) {
	for _, block := range blocks {
		switch markdown.ParseExecLanguage(block.Language) {
		case markdown.LangBash:
			r.runBash(ctx, block, workingDir)
		case markdown.LangPython:
			r.runPython(ctx, block, workingDir)
		default:
			block.Err = fmt.Sprintf("unsupported executable language: %s", block.Language)
		}
	}
}

func (r *Runner) runBash(ctx context.Context, block *markdown.ExecutableBlock, workingDir string) {
	code, err := blockCode(block, workingDir)
	if err != nil {
		block.Err = fmt.Sprintf("bash execution error: %v", err)
		return
	}
	stdout, stderr, err := runCommand(ctx, workingDir, "bash", "-c", code)
	block.Output = stdout
	if err != nil {
		block.Err = fmt.Sprintf("bash execution error: %v", err)
		return
	}
	block.Err = stderr
}

func (r *Runner) runPython(ctx context.Context, block *markdown.ExecutableBlock, workingDir string) {
	python := r.python()
	if python == "" {
		block.Err = "python execution error: no python interpreter found"
		return
	}

	var args []string
	if block.FileRef != "" {
		args = []string{block.FileRef}
	} else {
		args = []string{"-c", block.Source}
	}
	stdout, stderr, err := runCommand(ctx, workingDir, python, args...)
	block.Output = stdout
	if err != nil {
		block.Err = fmt.Sprintf("python execution error: %v", err)
		return
	}
	block.Err = stderr
}

// python resolves the interpreter once per process: a .venv found walking
// up from the site root wins, then an active VIRTUAL_ENV, then python3
// from PATH.
func (r *Runner) python() string {
	r.pythonOnce.Do(func() {
		if venv := findVenv(r.siteRoot); venv != "" {
			candidate := filepath.Join(venv, "bin", "python")
			if _, err := os.Stat(candidate); err == nil {
				slog.Info("Activated venv", "path", venv)
				r.pythonPath = candidate
				return
			}
		}
		if path, err := osexec.LookPath("python3"); err == nil {
			r.pythonPath = path
		}
	})
	return r.pythonPath
}

// findVenv walks up from root looking for a .venv directory, falling back
// to the VIRTUAL_ENV environment variable.
func findVenv(root string) string {
	dir, err := filepath.Abs(root)
	if err != nil {
		dir = root
	}
	for {
		candidate := filepath.Join(dir, ".venv")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return os.Getenv("VIRTUAL_ENV")
}

// blockCode returns the script text: the referenced file when set,
// otherwise the inline fence body.
func blockCode(block *markdown.ExecutableBlock, workingDir string) (string, error) {
	if block.FileRef == "" {
		return block.Source, nil
	}
	data, err := os.ReadFile(filepath.Join(workingDir, block.FileRef))
	if err != nil {
		return "", fmt.Errorf("read script %s: %w", block.FileRef, err)
	}
	return string(data), nil
}

// runCommand captures stdout and stderr separately. A non-zero exit is
// not an error here; the script's stderr carries the diagnostics.
func runCommand(ctx context.Context, dir, name string, args ...string) (stdout, stderr string, err error) {
	cmd := osexec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()

	var exitErr *osexec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return stdout, stderr, runErr
	}
	if exitErr != nil && stderr == "" {
		stderr = exitErr.String()
	}
	return stdout, stderr, nil
}
