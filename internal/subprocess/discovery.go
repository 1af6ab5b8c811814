package subprocess

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
)

// uiDir is the directory inside a plugin that holds its custom UI.
const uiDir = "homebridge-ui"

// Discover returns the command that starts the plugin server.
//
// An explicit command is used as-is. Otherwise pluginDir is searched in order:
//  1. homebridge-ui/server, an executable
//  2. homebridge-ui/server.js, run with node from PATH
//
// Returns ServerNotFoundError listing every path that was tried.
func Discover(log *slog.Logger, pluginDir string, command []string) ([]string, error) {
	if len(command) > 0 {
		log.Debug("Using explicit server command", "command", command)

		return command, nil
	}

	searched := make([]string, 0, 3)

	binary := filepath.Join(pluginDir, uiDir, "server")
	searched = append(searched, binary)

	if info, err := os.Stat(binary); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
		log.Debug("Found server executable", "path", binary)

		return []string{binary}, nil
	}

	script := filepath.Join(pluginDir, uiDir, "server.js")
	searched = append(searched, script)

	if _, err := os.Stat(script); err == nil {
		node, err := exec.LookPath("node")
		if err != nil {
			searched = append(searched, "node in $PATH")
			log.Warn("Found server script but node is not in PATH", "path", script)

			return nil, &errors.ServerNotFoundError{SearchedPaths: searched}
		}

		log.Debug("Found server script", "path", script, "node", node)

		return []string{node, script}, nil
	}

	log.Warn("Plugin server not found in any searched paths", "searched_paths", searched)

	return nil, &errors.ServerNotFoundError{SearchedPaths: searched}
}
