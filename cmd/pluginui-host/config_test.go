package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
	require.Equal(t, "127.0.0.1:52100", cfg.Listen)
}

func TestLoadConfig_TOMLOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, "host.toml", `
plugin_dir = "/usr/lib/node_modules/homebridge-test"
listen = "0.0.0.0:9000"
command = ["node", "server.js"]
config_path = "/var/lib/homebridge/config.json"

[log]
level = "debug"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "/usr/lib/node_modules/homebridge-test", cfg.PluginDir)
	require.Equal(t, "0.0.0.0:9000", cfg.Listen)
	require.Equal(t, []string{"node", "server.js"}, cfg.Command)
	require.Equal(t, "/var/lib/homebridge/config.json", cfg.ConfigPath)
	require.Equal(t, "debug", cfg.Log.Level)

	// Untouched keys keep their defaults.
	require.Equal(t, "json", cfg.Codec)
	require.Equal(t, "text", cfg.Log.Format)
	require.Equal(t, "en", cfg.Lang)
}

func TestLoadConfig_TOMLEmptyValueIsExplicit(t *testing.T) {
	path := writeConfig(t, "host.toml", `lang = ""`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Empty(t, cfg.Lang)
}

func TestLoadConfig_YAMLOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, "host.yaml", `
plugin_dir: ./plugin
codec: cbor
plugin_alias: Test
log:
  format: json
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "./plugin", cfg.PluginDir)
	require.Equal(t, "cbor", cfg.Codec)
	require.Equal(t, "Test", cfg.PluginAlias)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "127.0.0.1:52100", cfg.Listen)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{name: "unknown extension", file: "host.ini", content: "", want: "unsupported config format"},
		{name: "unknown toml key", file: "host.toml", content: `lisen = "x"`, want: "unknown keys"},
		{name: "unknown yaml key", file: "host.yml", content: "lisen: x\n", want: "not found"},
		{name: "bad codec", file: "host.toml", content: `codec = "xml"`, want: "unsupported codec"},
		{name: "bad plugin type", file: "host.yaml", content: "plugin_type: dynamic\n", want: "unsupported plugin type"},
		{name: "empty listen", file: "host.toml", content: `listen = ""`, want: "listen address is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.file, tt.content))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "host.toml", "listen = \"0.0.0.0:9000\"\ncodec = \"cbor\"\n")

	flags := &rootFlags{}
	cmd := &cobra.Command{Use: "test", SilenceUsage: true}
	bindRootFlags(cmd, flags)

	var got Config

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		var err error

		got, err = resolveConfig(cmd, flags)

		return err
	}

	cmd.SetArgs([]string{"--config", path, "--codec", "json", "--log-level", "debug"})
	require.NoError(t, cmd.Execute())

	require.Equal(t, "0.0.0.0:9000", got.Listen)
	require.Equal(t, "json", got.Codec)
	require.Equal(t, "debug", got.Log.Level)
	require.Equal(t, "text", got.Log.Format)
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Equal(t, version, strings.TrimSpace(out.String()))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	log, err := newLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown", "component", "test")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = newLogger(LogConfig{Format: "xml"}, &buf)
	require.ErrorContains(t, err, "unsupported log format")

	_, err = newLogger(LogConfig{Level: "loud"}, &buf)
	require.ErrorContains(t, err, "unsupported log level")

	log, err = newLogger(LogConfig{Level: "debug"}, &buf)
	require.NoError(t, err)
	require.NotNil(t, log)
}
