package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/inkwell/internal/site"
)

func TestInitSiteCreatesLayout(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, initSite(target))

	for _, rel := range []string{
		"config.toml",
		"content/_index.md",
		"content/posts/_index.md",
		"content/posts/hello.md",
		"templates/index.html",
		"templates/section.html",
		"templates/page.html",
	} {
		assert.FileExists(t, filepath.Join(target, filepath.FromSlash(rel)))
	}
	assert.DirExists(t, filepath.Join(target, "static"))
}

func TestInitSiteRefusesExistingConfig(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, initSite(target))

	err := initSite(target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.toml already exists")
}

func TestScaffoldedSiteBuilds(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, initSite(target))

	output := filepath.Join(target, "public")
	s, err := site.Load(target, output, false)
	require.NoError(t, err)
	require.NoError(t, s.Build(context.Background()))

	assert.FileExists(t, filepath.Join(output, "index.html"))
	assert.FileExists(t, filepath.Join(output, "posts", "hello", "index.html"))
	assert.FileExists(t, filepath.Join(output, "atom.xml"))
}
