package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/codec"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/config"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/transport"
)

// maxStderrBufferSize is the maximum size for the stderr buffer.
// Stderr reading continues indefinitely (callback receives all lines),
// but the buffer stops growing after this limit to prevent unbounded memory usage.
const maxStderrBufferSize = 1024 * 1024 // 1MB

// Config describes the plugin server child.
type Config struct {
	// PluginDir is the plugin's install directory, searched when Command is empty.
	PluginDir string

	// Command is an explicit argv for the server. It skips discovery.
	Command []string

	// Cwd sets the child's working directory. Empty means PluginDir.
	Cwd string

	// StoragePath, ConfigPath and UIVersion are exported as the HOMEBRIDGE_*
	// environment variables.
	StoragePath string
	ConfigPath  string
	UIVersion   string

	// Env provides additional environment variables for the child.
	Env map[string]string

	// Codec frames messages on the child's stdio. Nil means JSON.
	Codec codec.Codec

	// Stderr is a callback for each line the child writes to stderr.
	Stderr func(string)
}

// Process implements config.Transport over a spawned plugin server.
type Process struct {
	log *slog.Logger
	cfg *Config

	cmd    *exec.Cmd
	stream *transport.Stream
	stderr io.ReadCloser

	closing atomic.Bool

	stderrMu  sync.Mutex
	stderrBuf strings.Builder
}

// Compile-time verification that Process implements the Transport interface.
var _ config.Transport = (*Process)(nil)

// NewProcess creates a transport for the plugin server described by cfg.
// Nothing is spawned until Start.
func NewProcess(log *slog.Logger, cfg *Config) *Process {
	return &Process{
		log: log.With("component", "process_transport"),
		cfg: cfg,
	}
}

// Start discovers and spawns the plugin server.
//
// Returns ServerNotFoundError if no entry point exists, or ConnectionError if
// the process fails to start.
func (p *Process) Start(ctx context.Context) error {
	p.log.Info("Starting plugin server subprocess")

	argv, err := Discover(p.log, p.cfg.PluginDir, p.cfg.Command)
	if err != nil {
		return fmt.Errorf("discover plugin server: %w", err)
	}

	cwd := p.cfg.Cwd
	if cwd == "" {
		cwd = p.cfg.PluginDir
	}

	//nolint:gosec // G204: the server command is configured by the host operator
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = cwd
	cmd.Env = p.environment()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &errors.ConnectionError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &errors.ConnectionError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &errors.ConnectionError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		p.log.Error("Failed to start plugin server", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("start process: %w", err)}
	}

	p.cmd = cmd
	p.stderr = stderr

	// Closing stdin is the disconnect signal the child's liveness monitor sees.
	p.stream = transport.NewStream(p.log, stdout, stdin, p.cfg.Codec, stdin)
	if err := p.stream.Start(ctx); err != nil {
		return err
	}

	p.log.Info("Plugin server started", "pid", cmd.Process.Pid, "command", argv)

	return nil
}

// environment builds the child's environment: the parent's, the metadata
// variables, then cfg.Env.
func (p *Process) environment() []string {
	env := os.Environ()

	meta := map[string]string{
		config.EnvStoragePath: p.cfg.StoragePath,
		config.EnvConfigPath:  p.cfg.ConfigPath,
		config.EnvUIVersion:   p.cfg.UIVersion,
	}

	for _, k := range slices.Sorted(maps.Keys(meta)) {
		if meta[k] != "" {
			env = append(env, k+"="+meta[k])
		}
	}

	for _, k := range slices.Sorted(maps.Keys(p.cfg.Env)) {
		env = append(env, k+"="+p.cfg.Env[k])
	}

	return env
}

// ReadMessages reads messages from the child's stdout.
//
// After the child closes stdout, the process is reaped. A non-zero exit that
// was not caused by Close is reported as ProcessError on the error channel.
func (p *Process) ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error) {
	messages := make(chan map[string]any)
	errs := make(chan error, 1)

	if p.stream == nil {
		close(messages)
		errs <- errors.ErrTransportNotConnected
		close(errs)

		return messages, errs
	}

	inner, innerErrs := p.stream.ReadMessages(ctx)

	// Stderr must be fully read before Wait.
	var stderrWg sync.WaitGroup

	stderrWg.Go(func() {
		scanner := bufio.NewScanner(p.stderr)
		for scanner.Scan() {
			line := scanner.Text()

			p.stderrMu.Lock()

			if p.stderrBuf.Len() < maxStderrBufferSize {
				if p.stderrBuf.Len() > 0 {
					p.stderrBuf.WriteString("\n")
				}

				p.stderrBuf.WriteString(line)
			}

			p.stderrMu.Unlock()

			if p.cfg.Stderr != nil {
				p.cfg.Stderr(line)
			}
		}

		if err := scanner.Err(); err != nil {
			p.log.Debug("Stderr scanner error", "error", err)
		}
	})

	go func() {
		defer close(messages)
		defer close(errs)
		defer p.log.Debug("ReadMessages goroutine stopped")

		for msg := range inner {
			select {
			case messages <- msg:
			case <-ctx.Done():
				// Reap the child in the background once it exits.
				go func() {
					stderrWg.Wait()
					_ = p.cmd.Wait()
				}()

				return
			}
		}

		if err, ok := <-innerErrs; ok && err != nil {
			errs <- err

			return
		}

		stderrWg.Wait()

		p.log.Debug("Waiting for plugin server to exit")

		if err := p.cmd.Wait(); err != nil {
			if p.closing.Load() {
				p.log.Debug("Plugin server terminated during shutdown")

				return
			}

			exitCode := -1
			if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
				exitCode = exitErr.ExitCode()
			}

			stderrOutput := p.Stderr()

			p.log.Error("Plugin server exited with error", "exit_code", exitCode, "stderr", stderrOutput)

			errs <- &errors.ProcessError{ExitCode: exitCode, Stderr: stderrOutput, Err: err}

			return
		}

		p.log.Info("Plugin server exited")
	}()

	return messages, errs
}

// SendMessage writes one envelope to the child's stdin.
func (p *Process) SendMessage(ctx context.Context, msg map[string]any) error {
	if p.stream == nil {
		return errors.ErrTransportNotConnected
	}

	return p.stream.SendMessage(ctx, msg)
}

// IsConnected reports whether the child's stdio is still open.
func (p *Process) IsConnected() bool {
	return p.stream != nil && p.stream.IsConnected()
}

// Disconnected returns a channel closed when the child's stdout ends.
func (p *Process) Disconnected() <-chan struct{} {
	if p.stream == nil {
		return nil
	}

	return p.stream.Disconnected()
}

// Stderr returns the buffered stderr output.
func (p *Process) Stderr() string {
	p.stderrMu.Lock()
	defer p.stderrMu.Unlock()

	return strings.TrimSpace(p.stderrBuf.String())
}

// Pid returns the child's process id, or 0 before Start.
func (p *Process) Pid() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}

	return p.cmd.Process.Pid
}

// Close closes the child's stdin and sends it SIGTERM. It's safe to call
// Close multiple times or on an already-terminated process.
func (p *Process) Close() error {
	if !p.closing.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error

	if p.stream != nil {
		if err := p.stream.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if p.cmd != nil && p.cmd.Process != nil {
		p.log.Debug("Terminating plugin server", "pid", p.cmd.Process.Pid)

		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("terminate plugin server (pid %d): %w", p.cmd.Process.Pid, err))
		}
	}

	return stderrors.Join(errs...)
}
