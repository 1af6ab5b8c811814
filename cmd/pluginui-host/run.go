package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/codec"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/host"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/subprocess"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/transport"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var pluginDir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Spawn the plugin server and serve one UI peer",
		Long: "Waits for one UI peer on the listen address, spawns the plugin's homebridge-ui server, " +
			"and relays between them until either side goes away.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("plugin-dir") {
				cfg.PluginDir = pluginDir
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runHost(ctx, cfg, log)
		},
	}

	cmd.Flags().StringVarP(&pluginDir, "plugin-dir", "p", "", "plugin install directory")

	return cmd
}

func runHost(ctx context.Context, cfg Config, base *slog.Logger) error {
	log := base.With("component", "cmd.run")

	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return err
	}

	store, err := newStore(cfg, base)
	if err != nil {
		return err
	}

	ln, err := transport.Listen(base, cfg.Listen, c)
	if err != nil {
		return err
	}
	defer ln.Close()

	log.Info("Waiting for UI peer", "addr", ln.Addr().String(), "codec", c.Name())

	ui, err := ln.Accept(ctx)
	if err != nil {
		if stderrors.Is(err, context.Canceled) {
			return nil
		}

		return err
	}

	proc := subprocess.NewProcess(base, &subprocess.Config{
		PluginDir:   cfg.PluginDir,
		Command:     cfg.Command,
		StoragePath: cfg.StoragePath,
		ConfigPath:  cfg.ConfigPath,
		UIVersion:   cfg.UIVersion,
		Codec:       c,
		Stderr: func(line string) {
			log.Info("Plugin server", "stderr", line)
		},
	})

	h := host.New(host.Config{
		Logger:  base,
		UI:      ui,
		Server:  proc,
		Store:   store,
		Surface: host.LogSurface{Log: base.With("component", "surface")},
	})

	if err := h.Start(ctx); err != nil {
		_ = ui.Close()

		return err
	}

	log.Info("Host running", "plugin_dir", cfg.PluginDir, "pid", proc.Pid())

	if err := h.Run(ctx); err != nil {
		return fmt.Errorf("host stopped: %w", err)
	}

	log.Info("Host stopped")

	return nil
}

// newStore picks the file-backed store when a Homebridge config path is
// configured, otherwise an in-memory store seeded from the plugin schema.
func newStore(cfg Config, log *slog.Logger) (host.ConfigStore, error) {
	schemaPath := filepath.Join(cfg.PluginDir, "config.schema.json")
	if _, err := os.Stat(schemaPath); err != nil {
		schemaPath = ""
	}

	if cfg.ConfigPath == "" {
		log.Warn("No config_path set, plugin config is kept in memory")

		schema := map[string]any{}

		if schemaPath != "" {
			loaded, err := host.LoadSchema(schemaPath)
			if err != nil {
				return nil, err
			}

			schema = loaded
		}

		store := host.NewMemoryStore(nil, schema)
		store.SetLang(cfg.Lang, map[string]any{})

		return store, nil
	}

	store, err := host.NewFileStore(log, host.FileStoreConfig{
		ConfigPath:       cfg.ConfigPath,
		SchemaPath:       schemaPath,
		PluginAlias:      cfg.PluginAlias,
		PluginType:       cfg.PluginType,
		Lang:             cfg.Lang,
		TranslationsPath: cfg.TranslationsPath,
	})
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}

	return store, nil
}
