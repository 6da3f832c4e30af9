package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrontmatterBasic(t *testing.T) {
	fm, body, err := ParseFrontmatter("+++\ntitle = \"Hello\"\n+++\nBody text here")
	require.NoError(t, err)
	assert.Equal(t, "Hello", fm.Title)
	assert.Equal(t, "Body text here", body)
}

func TestParseFrontmatterAbsent(t *testing.T) {
	fm, body, err := ParseFrontmatter("Just plain markdown content")
	require.NoError(t, err)
	assert.Empty(t, fm.Title)
	assert.False(t, fm.Draft)
	assert.Equal(t, "Just plain markdown content", body)
}

func TestParseFrontmatterUnclosed(t *testing.T) {
	_, _, err := ParseFrontmatter("+++\ntitle = \"Hello\"\nno closing line")
	require.ErrorIs(t, err, ErrUnclosedFrontmatter)
}

func TestParseFrontmatterAllFields(t *testing.T) {
	input := `+++
title = "Full Post"
date = "2025-01-15"
author = "Cody"
description = "A test post"
draft = true
slug = "custom-slug"
aliases = ["/old-url/"]
tags = ["go", "test"]
sort_by = "date"
paginate_by = 5

[extra]
foo = "bar"
+++
Content goes here`

	fm, body, err := ParseFrontmatter(input)
	require.NoError(t, err)

	assert.Equal(t, "Full Post", fm.Title)
	assert.Equal(t, "2025-01-15", fm.DateString())
	assert.Equal(t, "Cody", fm.Author)
	assert.Equal(t, "A test post", fm.Description)
	assert.True(t, fm.Draft)
	assert.Equal(t, "custom-slug", fm.Slug)
	assert.Equal(t, []string{"/old-url/"}, fm.Aliases)
	assert.Equal(t, 5, fm.PaginateBy)
	assert.Equal(t, "bar", fm.Extra["foo"])
	assert.Equal(t, "Content goes here", body)

	// Unknown array-of-strings keys surface as taxonomies under their key.
	tax := fm.Taxonomies()
	assert.Equal(t, []string{"go", "test"}, tax["tags"])
}

func TestParseFrontmatterDatetimeDate(t *testing.T) {
	fm, _, err := ParseFrontmatter("+++\ndate = 2025-06-15\n+++\n")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-15", fm.DateString())
}

func TestParseFrontmatterInvalidTOML(t *testing.T) {
	_, _, err := ParseFrontmatter("+++\ntitle = \n+++\nbody")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnclosedFrontmatter)
}

func TestParseFrontmatterBOM(t *testing.T) {
	fm, body, err := ParseFrontmatter("\uFEFF+++\ntitle = \"BOM\"\n+++\nbody")
	require.NoError(t, err)
	assert.Equal(t, "BOM", fm.Title)
	assert.Equal(t, "body", body)
}

func TestTaxonomiesIgnoresNonStringArrays(t *testing.T) {
	fm, _, err := ParseFrontmatter("+++\nweights = [1, 2, 3]\ntags = [\"a\"]\n+++\n")
	require.NoError(t, err)
	tax := fm.Taxonomies()
	assert.NotContains(t, tax, "weights")
	assert.Equal(t, []string{"a"}, tax["tags"])
}

func TestStripFrontmatter(t *testing.T) {
	assert.Equal(t, "body\n", StripFrontmatter("+++\ntitle = \"x\"\n+++\nbody\n"))
	assert.Equal(t, "no header", StripFrontmatter("no header"))
	// Unterminated blocks are returned unchanged.
	assert.Equal(t, "+++\nopen", StripFrontmatter("+++\nopen"))
}
