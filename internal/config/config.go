// Package config loads and defaults the site's config.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// SortBy selects the ordering of pages within a section.
type SortBy string

const (
	SortByDate  SortBy = "date"
	SortByTitle SortBy = "title"
)

// Config represents the parsed config.toml at the site root.
type Config struct {
	BaseURL         string `toml:"base_url"`
	Title           string `toml:"title"`
	Description     string `toml:"description"`
	DefaultLanguage string `toml:"default_language"`

	CompileSass     bool `toml:"compile_sass"`
	GenerateSitemap bool `toml:"generate_sitemap"`
	GenerateFeed    bool `toml:"generate_feed"`
	GenerateLlmsTxt bool `toml:"generate_llms_txt"`

	Markdown   MarkdownConfig   `toml:"markdown"`
	Taxonomies []TaxonomyConfig `toml:"taxonomies"`
	Extra      map[string]any   `toml:"extra"`
}

// MarkdownConfig controls the markdown rendering pipeline.
type MarkdownConfig struct {
	HighlightCode  bool   `toml:"highlight_code"`
	HighlightTheme string `toml:"highlight_theme"`
	// "none" or "right"; where heading anchor links are inserted.
	InsertAnchorLinks        string `toml:"insert_anchor_links"`
	ExternalLinksTargetBlank bool   `toml:"external_links_target_blank"`
	ExternalLinksNoFollow    bool   `toml:"external_links_no_follow"`
	ExternalLinksNoReferrer  bool   `toml:"external_links_no_referrer"`
	SmartPunctuation         bool   `toml:"smart_punctuation"`
}

// TaxonomyConfig declares a site-wide taxonomy (e.g. tags).
type TaxonomyConfig struct {
	Name string `toml:"name"`
	Feed bool   `toml:"feed"`
}

// Default returns a Config with all defaults applied and no base URL.
func Default() *Config {
	return &Config{
		DefaultLanguage: "en",
		CompileSass:     true,
		GenerateSitemap: true,
		GenerateFeed:    true,
		GenerateLlmsTxt: true,
		Markdown: MarkdownConfig{
			HighlightCode:     true,
			InsertAnchorLinks: "none",
		},
	}
}

// Load reads and validates <root>/config.toml.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, "config.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config.toml: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config.toml: %w", err)
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("config.toml: base_url is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if len(cfg.Taxonomies) == 0 {
		cfg.Taxonomies = []TaxonomyConfig{{Name: "tags"}}
	}

	return cfg, nil
}
