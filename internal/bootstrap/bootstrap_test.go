package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stenv/internal/conda"
	"stenv/internal/manifest"
	"stenv/internal/shell"
)

// fakeExecutor scripts results by command-string prefix.
type fakeExecutor struct {
	responses map[string]*shell.Result
	calls     []string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{responses: make(map[string]*shell.Result)}
}

func (f *fakeExecutor) respond(prefix string, result *shell.Result) {
	f.responses[prefix] = result
}

func (f *fakeExecutor) called(prefix string) bool {
	for _, call := range f.calls {
		if strings.HasPrefix(call, prefix) {
			return true
		}
	}
	return false
}

func (f *fakeExecutor) Validate(cmd shell.Command) error {
	if cmd.Binary == "" {
		return fmt.Errorf("binary is required")
	}
	return nil
}

func (f *fakeExecutor) Execute(ctx context.Context, cmd shell.Command) (*shell.Result, error) {
	line := cmd.CommandString()
	f.calls = append(f.calls, line)
	for prefix, result := range f.responses {
		if strings.HasPrefix(line, prefix) {
			return result, nil
		}
	}
	return &shell.Result{Success: true, ExitCode: 0}, nil
}

func ok(stdout string) *shell.Result {
	return &shell.Result{Success: true, ExitCode: 0, Stdout: stdout}
}

func exit(code int, stderr string) *shell.Result {
	return &shell.Result{Success: true, ExitCode: code, Stderr: stderr}
}

func killed(reason string) *shell.Result {
	return &shell.Result{Success: true, ExitCode: -1, Killed: true, KillReason: reason}
}

// scriptFreshMachine scripts a machine with conda but no stenv environment.
func scriptFreshMachine(fake *fakeExecutor) {
	fake.respond("conda env list --json", ok(`{"envs": ["/opt/conda"]}`))
	fake.respond("conda run -n stenv python --version", ok("Python 3.9.18"))
	fake.respond("conda run -n stenv python -m pip show streamlit", exit(1, "WARNING: Package(s) not found: streamlit"))
	fake.respond("conda run -n stenv python -m pip install streamlit", ok("Successfully installed streamlit-1.31.0"))
	fake.respond("conda run -n stenv which streamlit", ok("/opt/conda/envs/stenv/bin/streamlit"))
	fake.respond("conda run -n stenv streamlit hello", killed("timeout after 30s"))
}

func newBootstrapper(fake *fakeExecutor) *Bootstrapper {
	client := conda.NewClient(fake, conda.DefaultOptions())
	return New(client, manifest.Default(), DefaultOptions())
}

func TestRunFreshEnvironment(t *testing.T) {
	fake := newFakeExecutor()
	scriptFreshMachine(fake)

	b := newBootstrapper(fake)
	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, StateReady, b.State())
	assert.True(t, b.EnvCreated())
	assert.True(t, fake.called("conda create -n stenv python=3.9 -y"))
	assert.True(t, fake.called("conda run -n stenv python -m pip install streamlit"))
	assert.True(t, fake.called("conda run -n stenv streamlit hello"))

	steps := b.Steps()
	require.Len(t, steps, 4)
	want := []string{StepEnsureEnv, StepActivate, StepInstall, StepLaunch}
	for i, step := range steps {
		assert.Equal(t, want[i], step.Name)
		assert.True(t, step.OK, "step %s should be ok", step.Name)
	}
	assert.False(t, b.StartedAt().IsZero())
	assert.False(t, b.FinishedAt().IsZero())
}

func TestRunIdempotentReinvocation(t *testing.T) {
	fake := newFakeExecutor()
	scriptFreshMachine(fake)
	// Environment and package already present
	fake.respond("conda env list --json", ok(`{"envs": ["/opt/conda", "/opt/conda/envs/stenv"]}`))
	fake.respond("conda run -n stenv python -m pip show streamlit", ok("Name: streamlit\nVersion: 1.31.0"))

	b := newBootstrapper(fake)
	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, StateReady, b.State())
	assert.False(t, b.EnvCreated())
	assert.False(t, fake.called("conda create"), "create must not run for an existing env")
	assert.False(t, fake.called("conda run -n stenv python -m pip install"), "install must not run when package present")

	steps := b.Steps()
	require.Len(t, steps, 4)
	assert.True(t, steps[2].Skipped)
}

func TestRunEnvCreationFailure(t *testing.T) {
	fake := newFakeExecutor()
	scriptFreshMachine(fake)
	fake.respond("conda create", exit(1, "CondaHTTPError: connection failure"))

	b := newBootstrapper(fake)
	err := b.Run(context.Background())
	require.Error(t, err)

	var envErr *EnvCreateError
	require.True(t, errors.As(err, &envErr))
	assert.Equal(t, "stenv", envErr.Env)
	assert.Equal(t, StateError, b.State())

	// Nothing after the failed step runs
	assert.False(t, fake.called("conda run -n stenv python -m pip"))
	assert.False(t, fake.called("conda run -n stenv streamlit"))
}

func TestRunActivationProbeFailure(t *testing.T) {
	fake := newFakeExecutor()
	scriptFreshMachine(fake)
	fake.respond("conda run -n stenv python --version", exit(1, "EnvironmentNameNotFound"))

	b := newBootstrapper(fake)
	err := b.Run(context.Background())
	require.Error(t, err)

	var envErr *EnvCreateError
	require.True(t, errors.As(err, &envErr))
	assert.False(t, fake.called("conda run -n stenv python -m pip install"))
}

func TestRunRegistryUnreachable(t *testing.T) {
	fake := newFakeExecutor()
	scriptFreshMachine(fake)
	fake.respond("conda run -n stenv python -m pip install streamlit",
		exit(1, "ERROR: Could not find a version that satisfies the requirement streamlit (network unreachable)"))

	b := newBootstrapper(fake)
	err := b.Run(context.Background())
	require.Error(t, err)

	var installErr *InstallError
	require.True(t, errors.As(err, &installErr))
	assert.Equal(t, "streamlit", installErr.Package)
	assert.Contains(t, installErr.Stderr, "network unreachable")
	assert.Equal(t, StateError, b.State())

	// The launch step must never be attempted after a failed install
	assert.False(t, fake.called("conda run -n stenv which streamlit"))
	assert.False(t, fake.called("conda run -n stenv streamlit hello"))
}

func TestRunExecutableMissingAfterInstall(t *testing.T) {
	fake := newFakeExecutor()
	scriptFreshMachine(fake)
	fake.respond("conda run -n stenv which streamlit", exit(1, ""))

	b := newBootstrapper(fake)
	err := b.Run(context.Background())
	require.Error(t, err)

	var launchErr *LaunchError
	require.True(t, errors.As(err, &launchErr))
	assert.Equal(t, "streamlit hello", launchErr.Command)
	assert.False(t, fake.called("conda run -n stenv streamlit hello"))
}

func TestRunDemoImmediateExitIsLaunchError(t *testing.T) {
	fake := newFakeExecutor()
	scriptFreshMachine(fake)
	fake.respond("conda run -n stenv streamlit hello", exit(2, "Usage: streamlit hello"))

	b := newBootstrapper(fake)
	err := b.Run(context.Background())
	require.Error(t, err)

	var launchErr *LaunchError
	require.True(t, errors.As(err, &launchErr))
}

func TestRunDemoTimeoutCountsAsLaunched(t *testing.T) {
	fake := newFakeExecutor()
	scriptFreshMachine(fake)
	// scriptFreshMachine already scripts the demo as killed by timeout

	b := newBootstrapper(fake)
	require.NoError(t, b.Run(context.Background()))

	steps := b.Steps()
	last := steps[len(steps)-1]
	assert.Equal(t, StepLaunch, last.Name)
	assert.True(t, last.OK)
	assert.Contains(t, last.Output, "timeout")
}

func TestRunIDsAreUnique(t *testing.T) {
	fake := newFakeExecutor()
	a := newBootstrapper(fake)
	b := newBootstrapper(fake)
	assert.NotEmpty(t, a.RunID())
	assert.NotEqual(t, a.RunID(), b.RunID())
}

func TestMultiPackageInstallOrder(t *testing.T) {
	fake := newFakeExecutor()
	scriptFreshMachine(fake)
	fake.respond("conda run -n stenv python -m pip show pandas", exit(1, "not found"))
	fake.respond("conda install -n stenv -y pandas=2.2.0", ok("done"))

	m := manifest.Default()
	m.Packages = append(m.Packages, manifest.Package{Name: "pandas", Version: "2.2.0", Via: conda.ViaConda})

	client := conda.NewClient(fake, conda.DefaultOptions())
	b := New(client, m, DefaultOptions())
	require.NoError(t, b.Run(context.Background()))

	assert.True(t, fake.called("conda run -n stenv python -m pip install streamlit"))
	assert.True(t, fake.called("conda install -n stenv -y pandas=2.2.0"))
}
