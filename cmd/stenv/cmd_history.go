package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stenv/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past bootstrap runs",
	Long: `Without arguments, history lists recent runs newest first. With a
run id, it shows that run's step-by-step record.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.History.Enabled {
			return fmt.Errorf("history is disabled in the configuration")
		}

		store, err := history.NewStore(historyDBPath(cfg))
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			return showRun(store, args[0])
		}
		return listRuns(store)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum runs to list")
}

func listRuns(store *history.Store) error {
	runs, err := store.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No bootstrap runs recorded yet.")
		return nil
	}

	fmt.Println(headerStyle.Render("Bootstrap history"))
	fmt.Println()
	for _, run := range runs {
		mark := markPass
		if run.Error != "" {
			mark = markFail
		}
		fmt.Printf("%s %s  %-8s  env=%s  %s\n",
			mark, run.StartedAt.Local().Format(time.DateTime), run.State, run.EnvName, run.ID)
		if run.Error != "" {
			fmt.Printf("    %s\n", dimStyle.Render(run.Error))
		}
	}
	return nil
}

func showRun(store *history.Store, id string) error {
	run, err := store.GetRun(id)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s\n", run.ID)
	fmt.Printf("  env:      %s\n", run.EnvName)
	fmt.Printf("  package:  %s\n", run.Package)
	fmt.Printf("  state:    %s\n", run.State)
	fmt.Printf("  created:  %v\n", run.EnvCreated)
	fmt.Printf("  started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Printf("  duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(timeRounding))
	if run.Error != "" {
		fmt.Printf("  error:    %s\n", failStyle.Render(run.Error))
	}
	printSteps(run.Steps)
	return nil
}
