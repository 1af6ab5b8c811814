package pluginui

import (
	"context"
	"fmt"
)

// WithClient manages client lifecycle with automatic cleanup.
//
// This helper creates a client, starts it with the provided options, waits
// for the plugin server to announce ready, executes the callback function,
// and ensures proper cleanup via Close() when done.
//
// If the callback returns an error, it is returned to the caller.
// If Close() fails, a warning is logged but does not override the callback's error.
//
// Example usage:
//
//	err := pluginui.WithClient(ctx, func(c pluginui.Client) error {
//	    data, err := c.Request(ctx, "/token", map[string]any{"username": "bob"})
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(data)
//	    return nil
//	},
//	    pluginui.WithLogger(log),
//	    pluginui.WithTransport(conn),
//	)
func WithClient(ctx context.Context, fn func(Client) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	client := NewClient()
	if err := client.Start(ctx, opts...); err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}

	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Warn("failed to close client", "error", closeErr)
		}
	}()

	if err := client.WaitReady(ctx); err != nil {
		return fmt.Errorf("plugin server not ready: %w", err)
	}

	return fn(client)
}
