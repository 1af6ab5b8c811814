package host

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const configWithComments = `{
    // bridge settings
    "bridge": {"name": "Homebridge", "port": 51826},
    "platforms": [
        {"platform": "Other", "name": "Other"},
        {"platform": "Test", "name": "Test One"},
        {"platform": "Test", "name": "Test Two"},
    ],
    "accessories": []
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestFileStore_GetFiltersByAlias(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileStore(quietLogger(), FileStoreConfig{
		ConfigPath: writeFile(t, dir, "config.json", configWithComments),
		SchemaPath: writeFile(t, dir, "config.schema.json", `{"pluginAlias": "Test", "pluginType": "platform"}`),
	})
	require.NoError(t, err)

	blocks, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, []any{
		map[string]any{"platform": "Test", "name": "Test One"},
		map[string]any{"platform": "Test", "name": "Test Two"},
	}, blocks)

	schema, err := store.Schema(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]any{"pluginAlias": "Test", "pluginType": "platform"}, schema)
}

func TestFileStore_UpdateStagesUntilSave(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.json", configWithComments)

	store, err := NewFileStore(quietLogger(), FileStoreConfig{ConfigPath: configPath, PluginAlias: "Test"})
	require.NoError(t, err)

	ctx := context.Background()

	_, err = store.Update(ctx, []any{map[string]any{"name": "Only"}})
	require.NoError(t, err)

	staged, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, []any{map[string]any{"platform": "Test", "name": "Only"}}, staged)

	raw, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Equal(t, configWithComments, string(raw), "update must not touch the file")

	require.NoError(t, store.Save(ctx))

	raw, err = os.ReadFile(configPath)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	require.Equal(t, []any{
		map[string]any{"platform": "Other", "name": "Other"},
		map[string]any{"platform": "Test", "name": "Only"},
	}, doc["platforms"])
	require.Equal(t, map[string]any{"name": "Homebridge", "port": float64(51826)}, doc["bridge"])

	blocks, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, []any{map[string]any{"platform": "Test", "name": "Only"}}, blocks)
}

func TestFileStore_AccessoryPlugin(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.json", `{"accessories": [{"accessory": "Lamp", "name": "Desk"}]}`)

	store, err := NewFileStore(quietLogger(), FileStoreConfig{
		ConfigPath:  configPath,
		PluginAlias: "Lamp",
		PluginType:  "accessory",
	})
	require.NoError(t, err)

	blocks, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, []any{map[string]any{"accessory": "Lamp", "name": "Desk"}}, blocks)
}

func TestFileStore_Lang(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileStore(quietLogger(), FileStoreConfig{
		ConfigPath:       writeFile(t, dir, "config.json", `{}`),
		PluginAlias:      "Test",
		Lang:             "fr",
		TranslationsPath: writeFile(t, dir, "fr.json", `{"title": "Paramètres"}`),
	})
	require.NoError(t, err)

	lang, err := store.Lang(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fr", lang)

	translations, err := store.Translations(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]any{"title": "Paramètres"}, translations)

	blocks, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Empty(t, blocks)
}

func TestFileStore_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFileStore(quietLogger(), FileStoreConfig{ConfigPath: filepath.Join(dir, "config.json")})
	require.ErrorContains(t, err, "plugin alias")

	_, err = NewFileStore(quietLogger(), FileStoreConfig{PluginAlias: "X", PluginType: "dynamic"})
	require.ErrorContains(t, err, "unsupported plugin type")

	store, err := NewFileStore(quietLogger(), FileStoreConfig{ConfigPath: filepath.Join(dir, "missing.json"), PluginAlias: "X"})
	require.NoError(t, err)

	_, err = store.Get(context.Background())
	require.ErrorContains(t, err, "load config")

	_, err = store.Update(context.Background(), []any{"not an object"})
	require.ErrorContains(t, err, "not an object")
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(nil, nil)
	ctx := context.Background()

	blocks, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, []any{}, blocks)

	store.SetLang("nl", map[string]any{"hello": "hallo"})

	lang, err := store.Lang(ctx)
	require.NoError(t, err)
	require.Equal(t, "nl", lang)

	translations, err := store.Translations(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"hello": "hallo"}, translations)
}
