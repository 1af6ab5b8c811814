package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	pluginui "github.com/wagiedev/homebridge-plugin-ui-go"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/codec"
)

func newCallCmd(flags *rootFlags) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "call <path> [json-body]",
		Short: "Call a plugin server path as a UI peer",
		Long:  "Connects to a running host, waits for the plugin server to be ready, issues one request and prints the JSON result.",
		Example: `  pluginui-host call /token '{"username": "bob"}'
  pluginui-host call --listen 127.0.0.1:52100 /status`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}

			var body any = map[string]any{}

			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &body); err != nil {
					return fmt.Errorf("parse request body: %w", err)
				}
			}

			log, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			data, err := call(ctx, cfg, log, args[0], body)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(data, "", "  ")
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for ready and the response")

	return cmd
}

func call(ctx context.Context, cfg Config, log *slog.Logger, path string, body any) (any, error) {
	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	conn, err := pluginui.Dial(ctx, cfg.Listen, pluginui.WithCodec(c), pluginui.WithLogger(log))
	if err != nil {
		return nil, err
	}

	var data any

	err = pluginui.WithClient(ctx, func(client pluginui.Client) error {
		log.Debug("Plugin server ready, sending request", "path", path)

		resp, reqErr := client.Request(ctx, path, body)
		if reqErr != nil {
			return reqErr
		}

		data = resp

		return nil
	}, pluginui.WithTransport(conn), pluginui.WithLogger(log))
	if err != nil {
		return nil, err
	}

	return data, nil
}
