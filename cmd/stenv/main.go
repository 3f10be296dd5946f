package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"stenv/internal/conda"
	"stenv/internal/config"
	"stenv/internal/logging"
	"stenv/internal/manifest"
	"stenv/internal/shell"
)

var (
	// Global flags
	verbose      bool
	workspace    string
	manifestPath string
	timeout      time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "stenv",
	Short: "stenv - Streamlit demo environment bootstrapper",
	Long: `stenv prepares an isolated conda environment for the Streamlit
30-day challenge and launches the streamlit hello demo.

The bootstrap sequence is idempotent and fail-fast:
  1. Create the named environment if absent, else reuse it
  2. Probe the environment's interpreter (activation)
  3. Install the manifest packages, skipping ones already present
  4. Launch the demo command

Run without arguments to execute the full bootstrap.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(workspace); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: file logging unavailable: %v\n", err)
		}
		if err := logging.InitAudit(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: audit trail unavailable: %v\n", err)
		}

		// Initialize logger
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAudit()
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run the full bootstrap
		return runBootstrap(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "", "path to stenv.yaml (default <workspace>/stenv.yaml)")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 0, "override the demo launch timeout")

	rootCmd.AddCommand(appCmd)
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(manifestCmd)
}

// loadConfig loads workspace configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.DefaultConfigPath(workspace))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveManifest loads the manifest file when present, otherwise derives
// one from the config's bootstrap section.
func resolveManifest(cfg *config.Config) (*manifest.Manifest, error) {
	path := manifestPath
	if path == "" {
		path = filepath.Join(workspace, manifest.DefaultFilename)
	}

	if _, err := os.Stat(path); err == nil || manifestPath != "" {
		return manifest.Load(path)
	}

	m := &manifest.Manifest{
		Name:     cfg.Bootstrap.EnvName,
		Python:   cfg.Bootstrap.PythonVersion,
		Channels: cfg.Conda.Channels,
		Packages: []manifest.Package{{Name: cfg.Bootstrap.Package, Via: conda.ViaPip}},
		Demo:     cfg.Bootstrap.DemoCommand,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// newCondaClient assembles the executor and conda client from config.
func newCondaClient(cfg *config.Config) *conda.Client {
	execCfg := shell.DefaultConfig()
	execCfg.DefaultWorkingDir = workspace
	execCfg.DefaultTimeout = cfg.GetExecutionTimeout()
	execCfg.MaxOutputBytes = cfg.Execution.MaxOutputBytes
	if len(cfg.Execution.AllowedEnvVars) > 0 {
		execCfg.AllowedEnvironment = cfg.Execution.AllowedEnvVars
	}

	executor := shell.NewDirectExecutorWithConfig(execCfg)
	executor.SetAuditCallback(func(ev shell.AuditEvent) {
		event := logging.CommandEvent{
			Timestamp: ev.Timestamp.UnixMilli(),
			Type:      string(ev.Type),
			RunID:     ev.RunID,
			Command:   ev.Command.CommandString(),
		}
		if ev.Result != nil {
			event.ExitCode = ev.Result.ExitCode
			event.DurationMs = ev.Result.Duration.Milliseconds()
			event.Killed = ev.Result.Killed
			event.KillReason = ev.Result.KillReason
			event.Error = ev.Result.Error
		}
		logging.AuditCommand(event)
	})

	return conda.NewClient(executor, conda.Options{
		Binary:         cfg.Conda.Binary,
		Channels:       cfg.Conda.Channels,
		CreateTimeout:  cfg.GetCreateTimeout(),
		InstallTimeout: cfg.GetInstallTimeout(),
		DefaultTimeout: cfg.GetExecutionTimeout(),
	})
}

// historyDBPath resolves the ledger path against the workspace.
func historyDBPath(cfg *config.Config) string {
	path := cfg.History.DatabasePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(workspace, path)
	}
	return path
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
