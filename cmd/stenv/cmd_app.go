package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

var appCmd = &cobra.Command{
	Use:   "app <day>",
	Short: "Run one of the manifest's challenge apps",
	Long: `App runs a day script from the manifest's apps list with
"streamlit run" inside the bootstrap environment. The environment
must already be bootstrapped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("day must be a number, got %q", args[0])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m, err := resolveManifest(cfg)
		if err != nil {
			return err
		}

		var file string
		for _, app := range m.Apps {
			if app.Day == day {
				file = app.File
				break
			}
		}
		if file == "" {
			return fmt.Errorf("no app for day %d in the manifest", day)
		}
		if _, err := os.Stat(filepath.Join(workspace, file)); err != nil {
			return fmt.Errorf("app file %s not found in workspace: %w", file, err)
		}

		launchTimeout := cfg.GetLaunchTimeout()
		if timeout > 0 {
			launchTimeout = timeout
		}

		client := newCondaClient(cfg)
		fmt.Printf("Running day %d app %s in %q (up to %s)...\n", day, file, m.Name, launchTimeout)

		result, err := client.RunWithTimeout(cmd.Context(), launchTimeout, m.Name, "streamlit", "run", file)
		if err != nil {
			return err
		}
		if result.IsError() {
			return fmt.Errorf("streamlit run failed: %s", result.Error)
		}
		// A server killed by the timeout ran successfully until we stopped it.
		if !result.Killed && result.ExitCode != 0 {
			if result.Stderr != "" {
				fmt.Println(dimStyle.Render(result.Stderr))
			}
			return fmt.Errorf("app exited %d", result.ExitCode)
		}

		if result.Killed {
			fmt.Printf("App ran until %s.\n", result.KillReason)
		} else {
			fmt.Println("App exited cleanly.")
		}
		return nil
	},
}
