// Package conda adapts the conda package manager for stenv. It owns the
// exact argument lists for every conda and pip invocation so the bootstrap
// layer can reason in terms of environments and packages, not command lines.
//
// Activation is expressed as `conda run -n NAME`, which executes a command
// inside the named environment without mutating the caller's shell.
package conda

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"stenv/internal/logging"
	"stenv/internal/shell"
)

// InstallVia selects the installer used for a package.
type InstallVia string

const (
	// ViaPip installs with `python -m pip install` inside the environment.
	ViaPip InstallVia = "pip"

	// ViaConda installs with `conda install -y` from the configured channels.
	ViaConda InstallVia = "conda"
)

// Options configures the conda client.
type Options struct {
	// Binary is the conda executable ("conda", "mamba", or a path).
	Binary string

	// Channels are extra channels for conda installs.
	Channels []string

	// CreateTimeout bounds environment creation.
	CreateTimeout time.Duration

	// InstallTimeout bounds package installation.
	InstallTimeout time.Duration

	// DefaultTimeout bounds quick queries (version, env list, pip show).
	DefaultTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Binary:         "conda",
		CreateTimeout:  5 * time.Minute,
		InstallTimeout: 10 * time.Minute,
		DefaultTimeout: 30 * time.Second,
	}
}

// Client talks to conda through a shell executor.
type Client struct {
	executor shell.Executor
	opts     Options
}

// NewClient creates a conda client on top of the given executor.
func NewClient(executor shell.Executor, opts Options) *Client {
	if opts.Binary == "" {
		opts.Binary = "conda"
	}
	if opts.CreateTimeout == 0 {
		opts.CreateTimeout = 5 * time.Minute
	}
	if opts.InstallTimeout == 0 {
		opts.InstallTimeout = 10 * time.Minute
	}
	if opts.DefaultTimeout == 0 {
		opts.DefaultTimeout = 30 * time.Second
	}
	return &Client{executor: executor, opts: opts}
}

// Binary returns the configured conda executable.
func (c *Client) Binary() string {
	return c.opts.Binary
}

// Version returns the conda version string (e.g., "conda 24.1.2").
// An infrastructure failure here means conda is not on PATH.
func (c *Client) Version(ctx context.Context) (string, error) {
	result, err := c.run(ctx, c.opts.DefaultTimeout, "--version")
	if err != nil {
		return "", err
	}
	if result.IsError() {
		return "", fmt.Errorf("conda not available: %s", result.Error)
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("conda --version exited %d: %s", result.ExitCode, result.Stderr)
	}
	return strings.TrimSpace(result.Output()), nil
}

// envList mirrors the JSON output of `conda env list --json`.
type envList struct {
	Envs []string `json:"envs"`
}

// ListEnvs returns the names of all conda environments.
// The base environment is reported as "base".
func (c *Client) ListEnvs(ctx context.Context) ([]string, error) {
	result, err := c.run(ctx, c.opts.DefaultTimeout, "env", "list", "--json")
	if err != nil {
		return nil, err
	}
	if result.IsError() {
		return nil, fmt.Errorf("conda env list failed: %s", result.Error)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("conda env list exited %d: %s", result.ExitCode, result.Stderr)
	}

	var parsed envList
	if err := json.Unmarshal([]byte(result.Stdout), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse conda env list output: %w", err)
	}

	names := make([]string, 0, len(parsed.Envs))
	for _, path := range parsed.Envs {
		names = append(names, envNameFromPath(path))
	}
	logging.CondaDebug("Found %d environments: %v", len(names), names)
	return names, nil
}

// envNameFromPath derives an environment name from its prefix path.
// Prefixes under an envs/ directory are named; anything else is the base env.
func envNameFromPath(path string) string {
	clean := filepath.ToSlash(path)
	parts := strings.Split(clean, "/")
	if len(parts) >= 2 && parts[len(parts)-2] == "envs" {
		return parts[len(parts)-1]
	}
	return "base"
}

// EnvExists reports whether a named environment exists.
func (c *Client) EnvExists(ctx context.Context, name string) (bool, error) {
	names, err := c.ListEnvs(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// CreateEnv creates a new environment with the given Python version.
func (c *Client) CreateEnv(ctx context.Context, name, pythonVersion string) error {
	logging.Conda("Creating environment %s (python=%s)", name, pythonVersion)

	args := []string{"create", "-n", name}
	if pythonVersion != "" {
		args = append(args, "python="+pythonVersion)
	}
	args = append(args, "-y")

	result, err := c.run(ctx, c.opts.CreateTimeout, args...)
	if err != nil {
		return err
	}
	if result.IsError() {
		return fmt.Errorf("conda create failed: %s", result.Error)
	}
	if result.Killed {
		return fmt.Errorf("conda create killed: %s", result.KillReason)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("conda create exited %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	logging.Conda("Environment %s created", name)
	return nil
}

// EnsureEnv creates the environment if absent, otherwise reuses it.
// Returns whether the environment was created by this call.
func (c *Client) EnsureEnv(ctx context.Context, name, pythonVersion string) (bool, error) {
	exists, err := c.EnvExists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		logging.Conda("Environment %s already exists, reusing", name)
		return false, nil
	}
	if err := c.CreateEnv(ctx, name, pythonVersion); err != nil {
		return false, err
	}
	return true, nil
}

// Run executes a command inside the named environment via `conda run`.
func (c *Client) Run(ctx context.Context, env, binary string, args ...string) (*shell.Result, error) {
	return c.RunWithTimeout(ctx, c.opts.DefaultTimeout, env, binary, args...)
}

// RunWithTimeout executes a command inside the named environment with an
// explicit timeout.
func (c *Client) RunWithTimeout(ctx context.Context, timeout time.Duration, env, binary string, args ...string) (*shell.Result, error) {
	full := append([]string{"run", "-n", env, binary}, args...)
	return c.run(ctx, timeout, full...)
}

// PythonVersion probes the environment's Python interpreter.
// This stands in for activation: if the probe succeeds, `conda run -n env`
// is usable for all subsequent commands.
func (c *Client) PythonVersion(ctx context.Context, env string) (string, error) {
	result, err := c.Run(ctx, env, "python", "--version")
	if err != nil {
		return "", err
	}
	if result.IsError() {
		return "", fmt.Errorf("python probe failed: %s", result.Error)
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("python probe exited %d: %s", result.ExitCode, result.Stderr)
	}
	return strings.TrimSpace(result.Output()), nil
}

// InstallPackage installs a package into the environment.
// Pip installs auto-confirm by nature; conda installs pass -y.
func (c *Client) InstallPackage(ctx context.Context, env, pkg string, via InstallVia) (*shell.Result, error) {
	logging.Conda("Installing %s into %s via %s", pkg, env, via)

	switch via {
	case ViaConda:
		args := []string{"install", "-n", env}
		for _, ch := range c.opts.Channels {
			args = append(args, "-c", ch)
		}
		args = append(args, "-y", pkg)
		return c.run(ctx, c.opts.InstallTimeout, args...)
	default:
		return c.RunWithTimeout(ctx, c.opts.InstallTimeout, env, "python", "-m", "pip", "install", pkg)
	}
}

// PackageInstalled reports whether a package is already present in the
// environment, via `python -m pip show`.
func (c *Client) PackageInstalled(ctx context.Context, env, pkg string) (bool, error) {
	result, err := c.Run(ctx, env, "python", "-m", "pip", "show", pkg)
	if err != nil {
		return false, err
	}
	if result.IsError() {
		return false, fmt.Errorf("pip show failed: %s", result.Error)
	}
	// pip show exits 1 when the package is absent
	return result.ExitCode == 0, nil
}

// ExecutablePath locates a command's entry point inside the environment.
// An empty result or non-zero exit means the executable is not on the
// environment's PATH.
func (c *Client) ExecutablePath(ctx context.Context, env, name string) (string, error) {
	result, err := c.Run(ctx, env, "which", name)
	if err != nil {
		return "", err
	}
	if result.IsError() {
		return "", fmt.Errorf("executable lookup failed: %s", result.Error)
	}
	path := strings.TrimSpace(result.Stdout)
	if result.ExitCode != 0 || path == "" {
		return "", fmt.Errorf("executable %q not found in environment %s", name, env)
	}
	return path, nil
}

// run invokes the conda binary with the given arguments.
func (c *Client) run(ctx context.Context, timeout time.Duration, args ...string) (*shell.Result, error) {
	return c.executor.Execute(ctx, shell.Command{
		Binary:    c.opts.Binary,
		Arguments: args,
		Timeout:   timeout,
	})
}
