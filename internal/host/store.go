package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"
)

// ConfigStore answers the host-owned correlated calls.
//
// Update stages a new set of config blocks for the plugin; Get returns the
// staged blocks until Save persists them.
type ConfigStore interface {
	Get(ctx context.Context) ([]any, error)
	Update(ctx context.Context, blocks []any) ([]any, error)
	Save(ctx context.Context) error
	Schema(ctx context.Context) (any, error)
	Lang(ctx context.Context) (string, error)
	Translations(ctx context.Context) (map[string]any, error)
}

// Compile-time verification that the stores implement ConfigStore.
var (
	_ ConfigStore = (*MemoryStore)(nil)
	_ ConfigStore = (*FileStore)(nil)
)

const defaultLang = "en"

// MemoryStore keeps plugin configuration in memory.
type MemoryStore struct {
	mu           sync.Mutex
	blocks       []any
	saved        []any
	saves        int
	schema       any
	lang         string
	translations map[string]any
}

// NewMemoryStore creates a store holding blocks as both the staged and the
// saved configuration.
func NewMemoryStore(blocks []any, schema any) *MemoryStore {
	if blocks == nil {
		blocks = []any{}
	}

	return &MemoryStore{
		blocks:       blocks,
		saved:        blocks,
		schema:       schema,
		lang:         defaultLang,
		translations: map[string]any{},
	}
}

// SetLang sets the language reported to the UI.
func (s *MemoryStore) SetLang(lang string, translations map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lang = lang
	s.translations = translations
}

func (s *MemoryStore) Get(context.Context) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.blocks, nil
}

func (s *MemoryStore) Update(_ context.Context, blocks []any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocks = blocks

	return s.blocks, nil
}

func (s *MemoryStore) Save(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saved = s.blocks
	s.saves++

	return nil
}

func (s *MemoryStore) Schema(context.Context) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.schema, nil
}

func (s *MemoryStore) Lang(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lang, nil
}

func (s *MemoryStore) Translations(context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.translations, nil
}

// Saved returns the last saved blocks and how many times Save ran.
func (s *MemoryStore) Saved() ([]any, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saved, s.saves
}

// FileStoreConfig locates a plugin's configuration on disk.
type FileStoreConfig struct {
	// ConfigPath is the Homebridge config.json. Comments and trailing commas
	// are tolerated when loading.
	ConfigPath string

	// SchemaPath is the plugin's config.schema.json. Optional.
	SchemaPath string

	// PluginAlias and PluginType select the plugin's blocks. When empty they
	// are read from the schema's pluginAlias and pluginType.
	PluginAlias string
	PluginType  string

	// Lang is reported by i18n.lang. Empty means "en".
	Lang string

	// TranslationsPath is a JSON file returned by i18n.translations. Optional.
	TranslationsPath string
}

// FileStore reads and writes a plugin's blocks in a Homebridge config.json.
// Platform plugins live under "platforms" keyed by "platform"; accessory
// plugins under "accessories" keyed by "accessory".
type FileStore struct {
	log *slog.Logger
	cfg FileStoreConfig

	schema map[string]any

	mu     sync.Mutex
	staged []any
}

// NewFileStore loads the plugin schema and prepares a store over
// cfg.ConfigPath.
func NewFileStore(log *slog.Logger, cfg FileStoreConfig) (*FileStore, error) {
	s := &FileStore{
		log: log.With("component", "file_store", "config_path", cfg.ConfigPath),
		cfg: cfg,
	}

	if cfg.SchemaPath != "" {
		schema, err := LoadSchema(cfg.SchemaPath)
		if err != nil {
			return nil, err
		}

		s.schema = schema

		if s.cfg.PluginAlias == "" {
			s.cfg.PluginAlias, _ = s.schema["pluginAlias"].(string)
		}

		if s.cfg.PluginType == "" {
			s.cfg.PluginType, _ = s.schema["pluginType"].(string)
		}
	}

	if s.cfg.PluginAlias == "" {
		return nil, fmt.Errorf("plugin alias is not set and no schema provides one")
	}

	if s.cfg.PluginType == "" {
		s.cfg.PluginType = "platform"
	}

	if s.cfg.PluginType != "platform" && s.cfg.PluginType != "accessory" {
		return nil, fmt.Errorf("unsupported plugin type %q", s.cfg.PluginType)
	}

	if s.cfg.Lang == "" {
		s.cfg.Lang = defaultLang
	}

	return s, nil
}

// section returns the top-level key holding this plugin's blocks.
func (s *FileStore) section() string {
	if s.cfg.PluginType == "accessory" {
		return "accessories"
	}

	return "platforms"
}

func (s *FileStore) Get(context.Context) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staged != nil {
		return s.staged, nil
	}

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	list, _ := doc[s.section()].([]any)

	blocks := []any{}

	for _, b := range list {
		if s.owns(b) {
			blocks = append(blocks, b)
		}
	}

	return blocks, nil
}

func (s *FileStore) Update(_ context.Context, blocks []any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if blocks == nil {
		blocks = []any{}
	}

	for i, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("config block %d is not an object", i)
		}

		block[s.cfg.PluginType] = s.cfg.PluginAlias
	}

	s.staged = blocks

	return s.staged, nil
}

// Save replaces this plugin's blocks in the config file with the staged
// blocks. Blocks belonging to other plugins keep their position and content.
func (s *FileStore) Save(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staged == nil {
		s.log.Debug("Nothing staged to save")

		return nil
	}

	doc, err := s.load()
	if err != nil {
		return err
	}

	list, _ := doc[s.section()].([]any)

	kept := make([]any, 0, len(list)+len(s.staged))

	for _, b := range list {
		if !s.owns(b) {
			kept = append(kept, b)
		}
	}

	doc[s.section()] = append(kept, s.staged...)

	if err := writeJSON(s.cfg.ConfigPath, doc); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	s.log.Info("Saved plugin config", "alias", s.cfg.PluginAlias, "blocks", len(s.staged))

	s.staged = nil

	return nil
}

func (s *FileStore) Schema(context.Context) (any, error) {
	if s.schema == nil {
		return map[string]any{}, nil
	}

	return s.schema, nil
}

func (s *FileStore) Lang(context.Context) (string, error) {
	return s.cfg.Lang, nil
}

func (s *FileStore) Translations(context.Context) (map[string]any, error) {
	translations := map[string]any{}

	if s.cfg.TranslationsPath == "" {
		return translations, nil
	}

	if err := readJSONC(s.cfg.TranslationsPath, &translations); err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}

	return translations, nil
}

func (s *FileStore) owns(b any) bool {
	block, ok := b.(map[string]any)

	return ok && block[s.cfg.PluginType] == s.cfg.PluginAlias
}

func (s *FileStore) load() (map[string]any, error) {
	doc := map[string]any{}

	if err := readJSONC(s.cfg.ConfigPath, &doc); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return doc, nil
}

// LoadSchema reads a plugin's config.schema.json. Comments and trailing
// commas are tolerated.
func LoadSchema(path string) (map[string]any, error) {
	var schema map[string]any
	if err := readJSONC(path, &schema); err != nil {
		return nil, fmt.Errorf("load plugin schema: %w", err)
	}

	return schema, nil
}

func readJSONC(path string, dst any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := json.Unmarshal(jsonc.ToJSON(raw), dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// writeJSON replaces path atomically with v, indented the way Homebridge
// writes its own config.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()

		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}
