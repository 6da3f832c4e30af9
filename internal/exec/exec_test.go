package exec

import (
	"context"
	"os"
	osexec "os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/inkwell/internal/markdown"
)

func TestExecuteBashStdout(t *testing.T) {
	dir := t.TempDir()
	blocks := []*markdown.ExecutableBlock{{Language: "bash", Source: "echo hello"}}

	NewRunner(dir).ExecuteBlocks(context.Background(), blocks, dir)

	assert.Equal(t, "hello\n", blocks[0].Output)
	assert.Empty(t, blocks[0].Err)
}

func TestExecuteBashStderr(t *testing.T) {
	dir := t.TempDir()
	blocks := []*markdown.ExecutableBlock{{Language: "bash", Source: "echo oops >&2"}}

	NewRunner(dir).ExecuteBlocks(context.Background(), blocks, dir)

	assert.Empty(t, blocks[0].Output)
	assert.Equal(t, "oops\n", blocks[0].Err)
}

func TestExecuteBashNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	blocks := []*markdown.ExecutableBlock{{Language: "bash", Source: "exit 3"}}

	NewRunner(dir).ExecuteBlocks(context.Background(), blocks, dir)

	assert.NotEmpty(t, blocks[0].Err)
}

func TestExecuteBashFromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.sh"), []byte("echo from-file"), 0o644))
	blocks := []*markdown.ExecutableBlock{{Language: "bash", FileRef: "script.sh"}}

	NewRunner(dir).ExecuteBlocks(context.Background(), blocks, dir)

	assert.Equal(t, "from-file\n", blocks[0].Output)
	assert.Empty(t, blocks[0].Err)
}

func TestExecuteMissingFileRef(t *testing.T) {
	dir := t.TempDir()
	blocks := []*markdown.ExecutableBlock{{Language: "bash", FileRef: "nope.sh"}}

	NewRunner(dir).ExecuteBlocks(context.Background(), blocks, dir)

	assert.Contains(t, blocks[0].Err, "nope.sh")
}

func TestExecuteUnsupportedLanguage(t *testing.T) {
	dir := t.TempDir()
	blocks := []*markdown.ExecutableBlock{{Language: "ruby", Source: "puts 1"}}

	NewRunner(dir).ExecuteBlocks(context.Background(), blocks, dir)

	assert.Equal(t, "unsupported executable language: ruby", blocks[0].Err)
}

func TestExecuteFailureDoesNotStopLaterBlocks(t *testing.T) {
	dir := t.TempDir()
	blocks := []*markdown.ExecutableBlock{
		{Language: "bash", Source: "exit 1", Index: 0},
		{Language: "bash", Source: "echo still-here", Index: 1},
	}

	NewRunner(dir).ExecuteBlocks(context.Background(), blocks, dir)

	assert.NotEmpty(t, blocks[0].Err)
	assert.Equal(t, "still-here\n", blocks[1].Output)
}

func TestExecutePython(t *testing.T) {
	if _, err := osexec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
	dir := t.TempDir()
	blocks := []*markdown.ExecutableBlock{{Language: "python", Source: "print(1 + 1)"}}

	NewRunner(dir).ExecuteBlocks(context.Background(), blocks, dir)

	assert.Equal(t, "2\n", blocks[0].Output)
	assert.Empty(t, blocks[0].Err)
}

func TestFindVenvWalksUp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".venv"), 0o755))
	nested := filepath.Join(root, "site", "content")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Equal(t, filepath.Join(root, ".venv"), findVenv(nested))
}
