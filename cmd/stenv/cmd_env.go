package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Inspect conda environments",
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conda environments known to this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client := newCondaClient(cfg)

		envs, err := client.ListEnvs(cmd.Context())
		if err != nil {
			return err
		}
		for _, env := range envs {
			if env == cfg.Bootstrap.EnvName {
				fmt.Printf("%s %s (bootstrap target)\n", markPass, env)
				continue
			}
			fmt.Printf("  %s\n", env)
		}
		return nil
	},
}

var envExistsCmd = &cobra.Command{
	Use:   "exists <name>",
	Short: "Check whether a conda environment exists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client := newCondaClient(cfg)

		exists, err := client.EnvExists(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !exists {
			fmt.Printf("Environment %q does not exist.\n", args[0])
			return fmt.Errorf("environment %q not found", args[0])
		}
		fmt.Printf("Environment %q exists.\n", args[0])
		return nil
	},
}

func init() {
	envCmd.AddCommand(envListCmd)
	envCmd.AddCommand(envExistsCmd)
}
