package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"stenv/internal/manifest"
)

var manifestForce bool

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Manage the stenv.yaml manifest",
}

var manifestInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default stenv.yaml into the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := manifestPath
		if path == "" {
			path = filepath.Join(workspace, manifest.DefaultFilename)
		}

		if _, err := os.Stat(path); err == nil && !manifestForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		m := manifest.Default()
		if err := m.Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s (env=%s, python=%s, %d package(s)).\n",
			path, m.Name, m.Python, len(m.Packages))
		return nil
	},
}

var manifestShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m, err := resolveManifest(cfg)
		if err != nil {
			return err
		}

		fmt.Printf("name:    %s\n", m.Name)
		fmt.Printf("python:  %s\n", m.Python)
		fmt.Printf("demo:    %s\n", m.Demo)
		fmt.Println("packages:")
		for _, pkg := range m.Packages {
			fmt.Printf("  - %s (via %s)\n", pkg.Spec(), pkg.Via)
		}
		if len(m.Apps) > 0 {
			fmt.Println("apps:")
			for _, app := range m.Apps {
				fmt.Printf("  - day %d: %s\n", app.Day, app.File)
			}
		}
		return nil
	},
}

func init() {
	manifestInitCmd.Flags().BoolVarP(&manifestForce, "force", "f", false, "overwrite an existing manifest")
	manifestCmd.AddCommand(manifestInitCmd)
	manifestCmd.AddCommand(manifestShowCmd)
}
