// Package config handles configuration loading for the BasinAtlas server.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/basinatlas/server/pkg/colorscale"
)

// DefaultBasin is the documented fallback basin used when a selection does
// not resolve. Datasets may override it.
const DefaultBasin = "Amazon"

// Config represents the server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Data   DataConfig   `yaml:"data"`
	Cache  CacheConfig  `yaml:"cache"`
	Render RenderConfig `yaml:"render"`
	Scale  ScaleConfig  `yaml:"scale"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	Title       string   `yaml:"title"`
}

// DatasetConfig describes one basin dataset.
type DatasetConfig struct {
	GeoJSONPath  string `yaml:"geojson_path"`
	DefaultBasin string `yaml:"default_basin"`
}

// DataConfig contains the configured datasets. YAML order is preserved; the
// first dataset is the default.
type DataConfig struct {
	Datasets map[string]DatasetConfig
	order    []string
}

// UnmarshalYAML decodes the dataset mapping while keeping document order.
func (d *DataConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("data section must be a mapping")
	}
	d.Datasets = make(map[string]DatasetConfig, len(node.Content)/2)
	d.order = d.order[:0]
	for i := 0; i+1 < len(node.Content); i += 2 {
		id := node.Content[i].Value
		var ds DatasetConfig
		if err := node.Content[i+1].Decode(&ds); err != nil {
			return fmt.Errorf("dataset %q: %w", id, err)
		}
		d.Datasets[id] = ds
		d.order = append(d.order, id)
	}
	return nil
}

// DatasetIDs returns the dataset IDs in config order.
func (d *DataConfig) DatasetIDs() []string { return d.order }

// DefaultDataset returns the first configured dataset ID.
func (d *DataConfig) DefaultDataset() string {
	if len(d.order) == 0 {
		return ""
	}
	return d.order[0]
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	ImageSizeMB     int `yaml:"image_size_mb"`
	ImageTTLMinutes int `yaml:"image_ttl_minutes"`
	ViewCacheSize   int `yaml:"view_cache_size"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	LegendWidth  int `yaml:"legend_width"`
	LegendHeight int `yaml:"legend_height"`
	MapWidth     int `yaml:"map_width"`
	MapHeight    int `yaml:"map_height"`
}

// ScaleConfig configures the diverging-scale cutoff.
type ScaleConfig struct {
	CutoffStrategy string  `yaml:"cutoff_strategy"`
	CutoffFraction float64 `yaml:"cutoff_fraction"`
	CutoffValue    float64 `yaml:"cutoff_value"`
}

// Options converts the scale section to colorscale options.
func (s ScaleConfig) Options() colorscale.DivergingOptions {
	return colorscale.DivergingOptions{
		Strategy: colorscale.CutoffStrategy(s.CutoffStrategy),
		Fraction: s.CutoffFraction,
		Value:    s.CutoffValue,
	}
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			Title:       "BasinAtlas",
		},
		Cache: CacheConfig{
			ImageSizeMB:     256,
			ImageTTLMinutes: 10,
			ViewCacheSize:   1000,
		},
		Render: RenderConfig{
			LegendWidth:  320,
			LegendHeight: 40,
			MapWidth:     1024,
			MapHeight:    768,
		},
		Scale: ScaleConfig{
			CutoffStrategy: string(colorscale.CutoffPercentile),
			CutoffFraction: colorscale.DefaultCutoffFraction,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Server.Title == "" {
		cfg.Server.Title = defaults.Server.Title
	}
	if cfg.Cache.ImageSizeMB == 0 {
		cfg.Cache.ImageSizeMB = defaults.Cache.ImageSizeMB
	}
	if cfg.Cache.ImageTTLMinutes == 0 {
		cfg.Cache.ImageTTLMinutes = defaults.Cache.ImageTTLMinutes
	}
	if cfg.Cache.ViewCacheSize == 0 {
		cfg.Cache.ViewCacheSize = defaults.Cache.ViewCacheSize
	}
	if cfg.Render.LegendWidth == 0 {
		cfg.Render.LegendWidth = defaults.Render.LegendWidth
	}
	if cfg.Render.LegendHeight == 0 {
		cfg.Render.LegendHeight = defaults.Render.LegendHeight
	}
	if cfg.Render.MapWidth == 0 {
		cfg.Render.MapWidth = defaults.Render.MapWidth
	}
	if cfg.Render.MapHeight == 0 {
		cfg.Render.MapHeight = defaults.Render.MapHeight
	}
	if cfg.Scale.CutoffStrategy == "" {
		cfg.Scale.CutoffStrategy = defaults.Scale.CutoffStrategy
	}
	if cfg.Scale.CutoffFraction == 0 {
		cfg.Scale.CutoffFraction = defaults.Scale.CutoffFraction
	}

	for id, ds := range cfg.Data.Datasets {
		if ds.DefaultBasin == "" {
			ds.DefaultBasin = DefaultBasin
			cfg.Data.Datasets[id] = ds
		}
	}
}

// validate rejects configuration that indicates a caller bug rather than a
// data issue. An unrecognized cutoff strategy must fail loudly here, not
// silently default.
func (cfg *Config) validate() error {
	switch colorscale.CutoffStrategy(cfg.Scale.CutoffStrategy) {
	case colorscale.CutoffPercentile, colorscale.CutoffMean, colorscale.CutoffFixed:
	default:
		return fmt.Errorf("config: unknown cutoff strategy %q", cfg.Scale.CutoffStrategy)
	}

	for _, id := range cfg.Data.DatasetIDs() {
		if cfg.Data.Datasets[id].GeoJSONPath == "" {
			return fmt.Errorf("config: dataset %q has no geojson_path", id)
		}
	}
	return nil
}
