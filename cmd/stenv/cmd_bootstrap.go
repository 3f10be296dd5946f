package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stenv/internal/bootstrap"
	"stenv/internal/config"
	"stenv/internal/history"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the environment, install packages, and launch the demo",
	Long: `Bootstrap runs the full sequence against the manifest:
environment creation (or reuse), an activation probe, package
installation, and the demo launch. Each step must succeed before
the next one runs.`,
	RunE: runBootstrap,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, err := resolveManifest(cfg)
	if err != nil {
		return err
	}

	opts := bootstrap.DefaultOptions()
	opts.LaunchTimeout = cfg.GetLaunchTimeout()
	if timeout > 0 {
		opts.LaunchTimeout = timeout
	}

	client := newCondaClient(cfg)
	b := bootstrap.New(client, m, opts)

	logger.Info("Starting bootstrap",
		zap.String("run_id", b.RunID()),
		zap.String("env", m.Name),
		zap.String("python", m.Python))

	runErr := b.Run(cmd.Context())

	if cfg.History.Enabled {
		if recErr := recordRun(cfg, b, m.Name, m.PrimaryPackage().Name); recErr != nil {
			logger.Warn("Failed to record run", zap.Error(recErr))
		}
	}

	printSteps(b.Steps())

	if runErr != nil {
		return describeFailure(runErr)
	}

	fmt.Printf("\nEnvironment %q ready. Demo %q launched.\n", m.Name, m.Demo)
	if b.EnvCreated() {
		fmt.Println("The environment was created fresh on this run.")
	} else {
		fmt.Println("An existing environment was reused.")
	}
	return nil
}

func recordRun(cfg *config.Config, b *bootstrap.Bootstrapper, envName, pkg string) error {
	store, err := history.NewStore(historyDBPath(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	rec := history.Record{
		ID:         b.RunID(),
		EnvName:    envName,
		Package:    pkg,
		State:      b.State(),
		EnvCreated: b.EnvCreated(),
		StartedAt:  b.StartedAt(),
		FinishedAt: b.FinishedAt(),
		Steps:      b.Steps(),
	}
	if err := b.Err(); err != nil {
		rec.Error = err.Error()
	}
	return store.RecordRun(rec)
}

// printSteps renders the step table for the terminal.
func printSteps(steps []bootstrap.StepResult) {
	if len(steps) == 0 {
		return
	}
	fmt.Println()
	for _, step := range steps {
		mark := markFail
		switch {
		case step.Skipped:
			mark = markSkip
		case step.OK:
			mark = markPass
		}
		line := fmt.Sprintf("%s %-12s %8s", mark, step.Name, step.Duration.Round(timeRounding))
		if step.Output != "" {
			line += "  " + step.Output
		}
		fmt.Println(line)
	}
}

// describeFailure maps the error taxonomy to actionable messages.
func describeFailure(err error) error {
	var envErr *bootstrap.EnvCreateError
	var installErr *bootstrap.InstallError
	var launchErr *bootstrap.LaunchError

	switch {
	case errors.As(err, &envErr):
		fmt.Println(failStyle.Render("\nEnvironment creation failed."))
		fmt.Println("Check that conda is installed and on PATH (try `stenv doctor`).")
		if envErr.Stderr != "" {
			fmt.Println(dimStyle.Render(envErr.Stderr))
		}
	case errors.As(err, &installErr):
		fmt.Println(failStyle.Render("\nPackage installation failed."))
		fmt.Printf("Package %q could not be installed into %q.\n", installErr.Package, installErr.Env)
		fmt.Println("Check network connectivity to the package registry.")
		if installErr.Stderr != "" {
			fmt.Println(dimStyle.Render(installErr.Stderr))
		}
	case errors.As(err, &launchErr):
		fmt.Println(failStyle.Render("\nDemo launch failed."))
		fmt.Printf("Command %q did not start in %q.\n", launchErr.Command, launchErr.Env)
		if launchErr.Stderr != "" {
			fmt.Println(dimStyle.Render(launchErr.Stderr))
		}
	}
	return err
}
