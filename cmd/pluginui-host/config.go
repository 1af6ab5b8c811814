package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the host's runtime configuration.
type Config struct {
	// PluginDir is the plugin install directory holding homebridge-ui/.
	PluginDir string `yaml:"plugin_dir"`

	// Command overrides plugin server discovery.
	Command []string `yaml:"command"`

	// Listen is the TCP address UI peers connect to.
	Listen string `yaml:"listen"`

	// Codec frames messages on both links: "json" or "cbor".
	Codec string `yaml:"codec"`

	// StoragePath, ConfigPath and UIVersion are exported to the plugin server.
	StoragePath string `yaml:"storage_path"`
	ConfigPath  string `yaml:"config_path"`
	UIVersion   string `yaml:"ui_version"`

	// PluginAlias and PluginType select the plugin's blocks in ConfigPath.
	// When empty they come from the plugin's config.schema.json.
	PluginAlias string `yaml:"plugin_alias"`
	PluginType  string `yaml:"plugin_type"`

	Lang             string `yaml:"lang"`
	TranslationsPath string `yaml:"translations_path"`

	Log LogConfig `yaml:"log"`
}

// LogConfig selects the log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		PluginDir: ".",
		Listen:    "127.0.0.1:52100",
		Codec:     "json",
		UIVersion: version,
		Lang:      "en",
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// tomlConfig mirrors Config for TOML decoding.
type tomlConfig struct {
	PluginDir        string   `toml:"plugin_dir"`
	Command          []string `toml:"command"`
	Listen           string   `toml:"listen"`
	Codec            string   `toml:"codec"`
	StoragePath      string   `toml:"storage_path"`
	ConfigPath       string   `toml:"config_path"`
	UIVersion        string   `toml:"ui_version"`
	PluginAlias      string   `toml:"plugin_alias"`
	PluginType       string   `toml:"plugin_type"`
	Lang             string   `toml:"lang"`
	TranslationsPath string   `toml:"translations_path"`
	Log              struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

// LoadConfig overlays the file at path onto DefaultConfig. The format is
// chosen by extension: .toml, .yaml or .yml. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := loadTOML(path, &cfg); err != nil {
			return Config{}, err
		}
	case ".yaml", ".yml":
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("load config: unsupported config format %q", filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

func loadTOML(path string, cfg *Config) error {
	var raw tomlConfig

	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown keys %v", undecoded)
	}

	if meta.IsDefined("plugin_dir") {
		cfg.PluginDir = strings.TrimSpace(raw.PluginDir)
	}
	if meta.IsDefined("command") {
		cfg.Command = raw.Command
	}
	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("codec") {
		cfg.Codec = strings.TrimSpace(raw.Codec)
	}
	if meta.IsDefined("storage_path") {
		cfg.StoragePath = strings.TrimSpace(raw.StoragePath)
	}
	if meta.IsDefined("config_path") {
		cfg.ConfigPath = strings.TrimSpace(raw.ConfigPath)
	}
	if meta.IsDefined("ui_version") {
		cfg.UIVersion = strings.TrimSpace(raw.UIVersion)
	}
	if meta.IsDefined("plugin_alias") {
		cfg.PluginAlias = strings.TrimSpace(raw.PluginAlias)
	}
	if meta.IsDefined("plugin_type") {
		cfg.PluginType = strings.TrimSpace(raw.PluginType)
	}
	if meta.IsDefined("lang") {
		cfg.Lang = strings.TrimSpace(raw.Lang)
	}
	if meta.IsDefined("translations_path") {
		cfg.TranslationsPath = strings.TrimSpace(raw.TranslationsPath)
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.TrimSpace(raw.Log.Format)
	}

	return nil
}

// loadYAML decodes onto cfg, so keys absent from the file keep their
// defaults.
func loadYAML(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("load config: parse %s: %w", path, err)
	}

	return nil
}

// Validate rejects configurations the host cannot run with.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	switch strings.ToLower(c.Codec) {
	case "", "json", "ndjson", "cbor":
	default:
		return fmt.Errorf("unsupported codec %q", c.Codec)
	}

	switch c.PluginType {
	case "", "platform", "accessory":
	default:
		return fmt.Errorf("unsupported plugin type %q", c.PluginType)
	}

	return nil
}
