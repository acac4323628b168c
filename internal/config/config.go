package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Sources SourcesConfig `yaml:"sources"`
	Blog    BlogConfig    `yaml:"blog"`
	Sync    SyncConfig    `yaml:"sync"`
}

// DataConfig configures where the per-source SQLite stores live.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// SyncConfig configures the retry behavior shared by all sources.
type SyncConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	Backoff     string `yaml:"backoff"`
}

// SourcesConfig holds configuration for all activity sources.
type SourcesConfig struct {
	Readwise   ReadwiseConfig   `yaml:"readwise"`
	Foursquare FoursquareConfig `yaml:"foursquare"`
	GitHub     GitHubConfig     `yaml:"github"`
	Hardcover  HardcoverConfig  `yaml:"hardcover"`
	Letterboxd LetterboxdConfig `yaml:"letterboxd"`
	Overcast   OvercastConfig   `yaml:"overcast"`
	Strong     StrongConfig     `yaml:"strong"`
	Feeds      FeedsConfig      `yaml:"feeds"`
}

// ReadwiseConfig for the Readwise Reader source.
type ReadwiseConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// FoursquareConfig for the Foursquare checkins source.
type FoursquareConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// GitHubConfig for the GitHub commit-activity source.
type GitHubConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
}

// HardcoverConfig for the Hardcover finished-books source.
type HardcoverConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// LetterboxdConfig for the Letterboxd export import.
type LetterboxdConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ExportDir string `yaml:"export_dir"`
}

// OvercastConfig for the Overcast OPML export import.
type OvercastConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ExportPath string `yaml:"export_path"`
}

// StrongConfig for the Strong CSV export import.
type StrongConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ExportPath string `yaml:"export_path"`
}

// FeedsConfig for the RSS/Atom feed source.
type FeedsConfig struct {
	Enabled bool       `yaml:"enabled"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// FeedItem is a single feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// BlogConfig configures the GitHub repository summaries are published to.
type BlogConfig struct {
	Token  string `yaml:"token"`
	Owner  string `yaml:"owner"`
	Repo   string `yaml:"repo"`
	Branch string `yaml:"branch"`
}

// Validate checks that publishing has a usable destination.
func (b BlogConfig) Validate() error {
	if b.Token == "" {
		return fmt.Errorf("blog: missing token (set BLOG_GITHUB_TOKEN)")
	}
	if b.Owner == "" || b.Repo == "" {
		return fmt.Errorf("blog: missing owner/repo")
	}
	return nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Data: DataConfig{Dir: "./data"},
		Sync: SyncConfig{MaxAttempts: 4, Backoff: "2s"},
		Blog: BlogConfig{Branch: "main"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables. A
// token arriving via the environment also enables its source.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FOOTPRINT_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("READWISE_ACCESS_TOKEN"); v != "" {
		cfg.Sources.Readwise.Token = v
		cfg.Sources.Readwise.Enabled = true
	}
	if v := os.Getenv("FOURSQUARE_ACCESS_TOKEN"); v != "" {
		cfg.Sources.Foursquare.Token = v
		cfg.Sources.Foursquare.Enabled = true
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		// Token alone is not enough to sync GitHub: the source also
		// needs a username, which only the config file carries.
		cfg.Sources.GitHub.Token = v
	}
	if v := os.Getenv("HARDCOVER_TOKEN"); v != "" {
		cfg.Sources.Hardcover.Token = v
		cfg.Sources.Hardcover.Enabled = true
	}
	if v := os.Getenv("BLOG_GITHUB_TOKEN"); v != "" {
		cfg.Blog.Token = v
	}
}
