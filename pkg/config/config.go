// Package config holds the tunables of the mark engines and loads them from YAML.
//
// A config file only needs the keys it overrides:
//
//	selection:
//	  throttle: 30ms
//	  edge_margin: 20
//	search:
//	  min_latency: 300ms
//	docai:
//	  project_id: "your-gcp-project-id"
//	  location: "us"
//	  processor_id: "your-processor-id"
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of options understood by ocrmark
type Config struct {
	Selection SelectionConfig `yaml:"selection"`
	Search    SearchConfig    `yaml:"search"`
	Blocks    BlocksConfig    `yaml:"blocks"`
	Marks     MarksConfig     `yaml:"marks"`
	Log       LogConfig       `yaml:"log"`
	DocAI     DocAIConfig     `yaml:"docai"`
}

// SelectionConfig tunes drag-to-copy
type SelectionConfig struct {
	Throttle       time.Duration `yaml:"throttle"`         // pointer-move throttle window
	EdgeMargin     float64       `yaml:"edge_margin"`      // viewport band that starts auto-scroll
	ScrollInterval time.Duration `yaml:"scroll_interval"`  // auto-scroll tick
	MinScrollSpeed float64       `yaml:"min_scroll_speed"` // px per tick floor
	ScrollFactor   float64       `yaml:"scroll_factor"`    // px per tick per px past the edge
	Fill           string        `yaml:"fill"`             // highlight colour, #rrggbb[aa]
}

// SearchConfig tunes keyword search
type SearchConfig struct {
	LineTolerance float64       `yaml:"line_tolerance"` // vertical slack when merging char boxes into lines
	SnippetBefore int           `yaml:"snippet_before"`
	SnippetTotal  int           `yaml:"snippet_total"`
	MinLatency    time.Duration `yaml:"min_latency"`
	Fuzzy         bool          `yaml:"fuzzy"` // use floor(len^(1/3)) instead of a zero edit-distance threshold
	Fill          string        `yaml:"fill"`
	ActiveFill    string        `yaml:"active_fill"`
}

// BlocksConfig tunes structured block hover/copy
type BlocksConfig struct {
	Lookaround       int    `yaml:"lookaround"` // pages pre-rendered either side of the current page
	HoverFill        string `yaml:"hover_fill"`
	ImagePlaceholder string `yaml:"image_placeholder"`
}

// MarksConfig controls PDF highlight export
type MarksConfig struct {
	LayerName string `yaml:"layer_name"`
	Force     bool   `yaml:"force"`
	Debug     bool   `yaml:"debug"`
}

// LogConfig mirrors logger.Config
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DocAIConfig identifies a Google Document AI processor
type DocAIConfig struct {
	ProjectID   string `yaml:"project_id"`
	Location    string `yaml:"location"`
	ProcessorID string `yaml:"processor_id"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Selection: SelectionConfig{
			Throttle:       30 * time.Millisecond,
			EdgeMargin:     20,
			ScrollInterval: 16 * time.Millisecond,
			MinScrollSpeed: 4,
			ScrollFactor:   0.5,
			Fill:           "#1890ff33",
		},
		Search: SearchConfig{
			LineTolerance: 10,
			SnippetBefore: 6,
			SnippetTotal:  12,
			Fill:          "#ffd33d66",
			ActiveFill:    "#ff8c0099",
		},
		Blocks: BlocksConfig{
			Lookaround:       2,
			HoverFill:        "#1890ff1a",
			ImagePlaceholder: "[图片]",
		},
		Marks: MarksConfig{
			LayerName: "Marks",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		DocAI: DocAIConfig{
			Location: "us",
		},
	}
}

// Load reads a YAML file on top of Default. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the engines cannot work with
func (c Config) Validate() error {
	if c.Selection.Throttle < 0 || c.Selection.ScrollInterval <= 0 {
		return fmt.Errorf("selection: throttle must be >= 0 and scroll_interval > 0")
	}
	if c.Selection.EdgeMargin < 0 {
		return fmt.Errorf("selection: edge_margin must be >= 0, got %v", c.Selection.EdgeMargin)
	}
	if c.Search.SnippetBefore < 0 || c.Search.SnippetTotal < c.Search.SnippetBefore {
		return fmt.Errorf("search: snippet_total (%d) must be >= snippet_before (%d) >= 0",
			c.Search.SnippetTotal, c.Search.SnippetBefore)
	}
	if c.Blocks.Lookaround < 0 {
		return fmt.Errorf("blocks: lookaround must be >= 0, got %d", c.Blocks.Lookaround)
	}
	return nil
}
