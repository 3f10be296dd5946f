package bootstrap

import "fmt"

// EnvCreateError reports a failure to create or activate the conda
// environment (effects 1 and 2 of the bootstrap sequence).
type EnvCreateError struct {
	Env    string
	Stderr string
	Err    error
}

func (e *EnvCreateError) Error() string {
	return fmt.Sprintf("environment %q: %v", e.Env, e.Err)
}

func (e *EnvCreateError) Unwrap() error {
	return e.Err
}

// InstallError reports a failure to install a package into the environment
// (effect 3). Registry unreachability and unavailable packages both land here.
type InstallError struct {
	Env     string
	Package string
	Stderr  string
	Err     error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install %s into %q: %v", e.Package, e.Env, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// LaunchError reports a failure to launch the demo command (effect 4),
// including the case where the install reported success but the entry point
// is absent from the environment.
type LaunchError struct {
	Env     string
	Command string
	Stderr  string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %q in %q: %v", e.Command, e.Env, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
