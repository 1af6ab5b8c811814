// Command pluginui-host runs a plugin's custom UI server and relays between
// it and a UI peer connected over TCP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	listen     string
	codec      string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "pluginui-host",
		Short:         "Host a Homebridge plugin custom UI server",
		Long:          "Spawns a plugin's homebridge-ui server, answers config and i18n calls, and relays requests from a UI peer.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	bindRootFlags(root, flags)

	root.AddCommand(newRunCmd(flags), newCallCmd(flags), newVersionCmd())

	return root
}

func bindRootFlags(cmd *cobra.Command, flags *rootFlags) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file (.toml, .yaml or .yml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&flags.listen, "listen", "", "TCP address of the host")
	pf.StringVar(&flags.codec, "codec", "", "message framing: json or cbor")
}

// resolveConfig loads the config file and applies the persistent flags the
// user set on top of it.
func resolveConfig(cmd *cobra.Command, flags *rootFlags) (Config, error) {
	cfg, err := LoadConfig(flags.configPath)
	if err != nil {
		return Config{}, err
	}

	changed := cmd.Flags().Changed

	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = flags.logFormat
	}
	if changed("listen") {
		cfg.Listen = flags.listen
	}
	if changed("codec") {
		cfg.Codec = flags.codec
	}

	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
