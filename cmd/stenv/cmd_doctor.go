package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"stenv/internal/history"
	"stenv/internal/manifest"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the machine can run a bootstrap",
	Long: `Doctor verifies the preconditions a bootstrap depends on: the conda
binary, the workspace configuration, the manifest, and the history
database. It does not change anything.`,
	RunE: runDoctor,
}

type check struct {
	name string
	run  func() (string, error)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("%s configuration: %v\n", markFail, err)
		return err
	}

	client := newCondaClient(cfg)
	ctx := cmd.Context()

	checks := []check{
		{
			name: "conda binary",
			run: func() (string, error) {
				return client.Version(ctx)
			},
		},
		{
			name: "configuration",
			run: func() (string, error) {
				return fmt.Sprintf("env=%s python=%s", cfg.Bootstrap.EnvName, cfg.Bootstrap.PythonVersion),
					cfg.Validate()
			},
		},
		{
			name: "manifest",
			run: func() (string, error) {
				m, err := resolveManifest(cfg)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d package(s), demo %q", len(m.Packages), m.Demo), nil
			},
		},
		{
			name: "target environment",
			run: func() (string, error) {
				exists, err := client.EnvExists(ctx, cfg.Bootstrap.EnvName)
				if err != nil {
					return "", err
				}
				if exists {
					return "exists (will be reused)", nil
				}
				return "absent (will be created)", nil
			},
		},
		{
			name: "history database",
			run: func() (string, error) {
				if !cfg.History.Enabled {
					return "disabled", nil
				}
				store, err := history.NewStore(historyDBPath(cfg))
				if err != nil {
					return "", err
				}
				defer store.Close()
				last, err := store.LastRun(cfg.Bootstrap.EnvName)
				if err != nil {
					return "", err
				}
				if last == nil {
					return "no previous runs", nil
				}
				return fmt.Sprintf("last run %s (%s)", last.ID, last.State), nil
			},
		},
	}

	fmt.Println(headerStyle.Render("stenv doctor"))
	fmt.Println()

	failed := 0
	for _, c := range checks {
		detail, err := c.run()
		if err != nil {
			failed++
			fmt.Printf("%s %-20s %v\n", markFail, c.name, err)
			continue
		}
		fmt.Printf("%s %-20s %s\n", markPass, c.name, detail)
	}

	if _, err := os.Stat(filepath.Join(workspace, manifest.DefaultFilename)); os.IsNotExist(err) {
		fmt.Println()
		fmt.Println(warnStyle.Render("No stenv.yaml in the workspace; defaults will be used. Run `stenv manifest init` to create one."))
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	fmt.Println()
	fmt.Println("All checks passed.")
	return nil
}
