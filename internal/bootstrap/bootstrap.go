// Package bootstrap runs the four-effect sequence that prepares the demo
// environment: ensure the conda env exists, prove it is usable, install the
// manifest packages, and launch the demo command. The sequence is strictly
// ordered and fail-fast: the first failed step aborts the rest.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stenv/internal/conda"
	"stenv/internal/logging"
	"stenv/internal/manifest"
)

// State tracks where the bootstrapper is in its lifecycle.
type State string

const (
	StateInitializing State = "initializing"
	StateCreating     State = "creating"
	StateActivating   State = "activating"
	StateInstalling   State = "installing"
	StateLaunching    State = "launching"
	StateReady        State = "ready"
	StateError        State = "error"
)

// Step names, in execution order.
const (
	StepEnsureEnv = "ensure_env"
	StepActivate  = "activate"
	StepInstall   = "install"
	StepLaunch    = "launch"
)

// StepResult records one executed step for the run ledger.
type StepResult struct {
	Name     string        `json:"name"`
	OK       bool          `json:"ok"`
	Skipped  bool          `json:"skipped"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output,omitempty"`
}

// Options configures a Bootstrapper.
type Options struct {
	// LaunchTimeout bounds the demo command. The demo is a server; reaching
	// the timeout counts as a successful launch, not a failure.
	LaunchTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		LaunchTimeout: 30 * time.Second,
	}
}

// Bootstrapper executes the bootstrap sequence against a conda client.
type Bootstrapper struct {
	mu sync.RWMutex

	client   *conda.Client
	manifest *manifest.Manifest
	opts     Options

	runID      string
	state      State
	lastError  error
	steps      []StepResult
	envCreated bool
	started    time.Time
	finished   time.Time
}

// New creates a Bootstrapper for the given manifest.
func New(client *conda.Client, m *manifest.Manifest, opts Options) *Bootstrapper {
	if opts.LaunchTimeout == 0 {
		opts.LaunchTimeout = 30 * time.Second
	}
	return &Bootstrapper{
		client:   client,
		manifest: m,
		opts:     opts,
		runID:    uuid.NewString(),
		state:    StateInitializing,
	}
}

// RunID returns this run's identifier.
func (b *Bootstrapper) RunID() string {
	return b.runID
}

// State returns the current lifecycle state.
func (b *Bootstrapper) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Err returns the error that stopped the sequence, if any.
func (b *Bootstrapper) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastError
}

// Steps returns the recorded step results.
func (b *Bootstrapper) Steps() []StepResult {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]StepResult, len(b.steps))
	copy(out, b.steps)
	return out
}

// EnvCreated reports whether this run created the environment (as opposed
// to reusing an existing one).
func (b *Bootstrapper) EnvCreated() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.envCreated
}

// StartedAt returns when Run began.
func (b *Bootstrapper) StartedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.started
}

// FinishedAt returns when Run completed.
func (b *Bootstrapper) FinishedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.finished
}

func (b *Bootstrapper) setState(state State) {
	b.mu.Lock()
	b.state = state
	b.mu.Unlock()
}

func (b *Bootstrapper) setError(err error) {
	b.mu.Lock()
	b.lastError = err
	b.state = StateError
	b.mu.Unlock()
}

func (b *Bootstrapper) record(step StepResult) {
	b.mu.Lock()
	b.steps = append(b.steps, step)
	b.mu.Unlock()
}

// Run executes the full bootstrap sequence. It returns the first error
// encountered; later steps never run after a failure.
func (b *Bootstrapper) Run(ctx context.Context) error {
	logging.Bootstrap("Bootstrap run %s starting (env=%s)", b.runID, b.manifest.Name)
	b.mu.Lock()
	b.started = time.Now()
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.finished = time.Now()
		b.mu.Unlock()
	}()

	if err := b.ensureEnv(ctx); err != nil {
		b.setError(err)
		return err
	}
	if err := b.activate(ctx); err != nil {
		b.setError(err)
		return err
	}
	if err := b.install(ctx); err != nil {
		b.setError(err)
		return err
	}
	if err := b.launch(ctx); err != nil {
		b.setError(err)
		return err
	}

	b.setState(StateReady)
	logging.Bootstrap("Bootstrap run %s complete", b.runID)
	return nil
}

// ensureEnv creates the environment if absent, otherwise reuses it.
func (b *Bootstrapper) ensureEnv(ctx context.Context) error {
	b.setState(StateCreating)
	start := time.Now()

	created, err := b.client.EnsureEnv(ctx, b.manifest.Name, b.manifest.Python)
	if err != nil {
		b.record(StepResult{Name: StepEnsureEnv, Duration: time.Since(start), ExitCode: -1, Output: err.Error()})
		logging.BootstrapError("ensure_env failed: %v", err)
		return &EnvCreateError{Env: b.manifest.Name, Err: err}
	}

	b.mu.Lock()
	b.envCreated = created
	b.mu.Unlock()

	action := "reused"
	if created {
		action = "created"
	}
	b.record(StepResult{Name: StepEnsureEnv, OK: true, Duration: time.Since(start), Output: action})
	logging.Bootstrap("Environment %s %s", b.manifest.Name, action)
	return nil
}

// activate proves the environment is usable by probing its interpreter.
func (b *Bootstrapper) activate(ctx context.Context) error {
	b.setState(StateActivating)
	start := time.Now()

	version, err := b.client.PythonVersion(ctx, b.manifest.Name)
	if err != nil {
		b.record(StepResult{Name: StepActivate, Duration: time.Since(start), ExitCode: -1, Output: err.Error()})
		logging.BootstrapError("activation probe failed: %v", err)
		return &EnvCreateError{Env: b.manifest.Name, Err: fmt.Errorf("environment not usable: %w", err)}
	}

	b.record(StepResult{Name: StepActivate, OK: true, Duration: time.Since(start), Output: version})
	logging.Bootstrap("Environment %s active (%s)", b.manifest.Name, version)
	return nil
}

// install installs each manifest package, skipping ones already present so
// re-invoking bootstrap is idempotent.
func (b *Bootstrapper) install(ctx context.Context) error {
	b.setState(StateInstalling)

	for _, pkg := range b.manifest.Packages {
		start := time.Now()

		installed, err := b.client.PackageInstalled(ctx, b.manifest.Name, pkg.Name)
		if err != nil {
			b.record(StepResult{Name: StepInstall, Duration: time.Since(start), ExitCode: -1, Output: err.Error()})
			return &InstallError{Env: b.manifest.Name, Package: pkg.Name, Err: err}
		}
		if installed {
			b.record(StepResult{Name: StepInstall, OK: true, Skipped: true, Duration: time.Since(start),
				Output: pkg.Name + " already installed"})
			logging.Bootstrap("Package %s already installed, skipping", pkg.Name)
			continue
		}

		result, err := b.client.InstallPackage(ctx, b.manifest.Name, pkg.Spec(), pkg.Via)
		if err != nil {
			b.record(StepResult{Name: StepInstall, Duration: time.Since(start), ExitCode: -1, Output: err.Error()})
			return &InstallError{Env: b.manifest.Name, Package: pkg.Name, Err: err}
		}
		if result.IsError() {
			b.record(StepResult{Name: StepInstall, Duration: time.Since(start), ExitCode: result.ExitCode, Output: result.Error})
			return &InstallError{Env: b.manifest.Name, Package: pkg.Name, Stderr: result.Stderr,
				Err: errors.New(result.Error)}
		}
		if result.Killed {
			b.record(StepResult{Name: StepInstall, Duration: time.Since(start), ExitCode: result.ExitCode, Output: result.KillReason})
			return &InstallError{Env: b.manifest.Name, Package: pkg.Name, Stderr: result.Stderr,
				Err: errors.New(result.KillReason)}
		}
		if result.ExitCode != 0 {
			b.record(StepResult{Name: StepInstall, Duration: time.Since(start), ExitCode: result.ExitCode,
				Output: excerpt(result.Stderr)})
			return &InstallError{Env: b.manifest.Name, Package: pkg.Name, Stderr: result.Stderr,
				Err: fmt.Errorf("installer exited %d", result.ExitCode)}
		}

		b.record(StepResult{Name: StepInstall, OK: true, Duration: time.Since(start),
			Output: pkg.Spec() + " installed"})
		logging.Bootstrap("Package %s installed into %s", pkg.Spec(), b.manifest.Name)
	}

	return nil
}

// launch locates the demo entry point and runs it. A missing executable
// after a reported-successful install is a LaunchError, per the resolved
// open question in the original scripts.
func (b *Bootstrapper) launch(ctx context.Context) error {
	b.setState(StateLaunching)
	start := time.Now()

	binary, args := b.manifest.DemoArgs()

	if _, err := b.client.ExecutablePath(ctx, b.manifest.Name, binary); err != nil {
		b.record(StepResult{Name: StepLaunch, Duration: time.Since(start), ExitCode: -1, Output: err.Error()})
		logging.BootstrapError("demo executable missing: %v", err)
		return &LaunchError{Env: b.manifest.Name, Command: b.manifest.Demo, Err: err}
	}

	result, err := b.client.RunWithTimeout(ctx, b.opts.LaunchTimeout, b.manifest.Name, binary, args...)
	if err != nil {
		b.record(StepResult{Name: StepLaunch, Duration: time.Since(start), ExitCode: -1, Output: err.Error()})
		return &LaunchError{Env: b.manifest.Name, Command: b.manifest.Demo, Err: err}
	}
	if result.IsError() {
		b.record(StepResult{Name: StepLaunch, Duration: time.Since(start), ExitCode: result.ExitCode, Output: result.Error})
		return &LaunchError{Env: b.manifest.Name, Command: b.manifest.Demo, Stderr: result.Stderr,
			Err: errors.New(result.Error)}
	}
	// The demo is a server; hitting the launch timeout means it was up and
	// serving until we stopped it.
	if !result.Killed && result.ExitCode != 0 {
		b.record(StepResult{Name: StepLaunch, Duration: time.Since(start), ExitCode: result.ExitCode,
			Output: excerpt(result.Stderr)})
		return &LaunchError{Env: b.manifest.Name, Command: b.manifest.Demo, Stderr: result.Stderr,
			Err: fmt.Errorf("demo exited %d", result.ExitCode)}
	}

	output := "demo launched"
	if result.Killed {
		output = "demo ran until " + result.KillReason
	}
	b.record(StepResult{Name: StepLaunch, OK: true, Duration: time.Since(start), ExitCode: result.ExitCode, Output: output})
	logging.Bootstrap("Demo %q launched in %s", b.manifest.Demo, b.manifest.Name)
	return nil
}

// excerpt trims command output for step records.
func excerpt(s string) string {
	s = strings.TrimSpace(s)
	const max = 512
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
