package main

import (
	"fmt"
	"os"

	"github.com/san-kum/dynshot/internal/config"
	"github.com/san-kum/dynshot/internal/experiment"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dataDir  string
	logLevel string

	configFile string
	preset     string
	integrator string
	dt         float64
	steps      int
	shotLength int
	dofs       int
	tuneStart  bool
	fdMethod   string
	fdEps      float64

	tolerance    float64
	suiteTol     float64
	save         bool
	workers      int
	outFile      string
	exportFormat string

	settings config.Env
	log      = zap.NewNop()
	registry = experiment.NewRegistry()
)

// main registers the commands and exits with status 1 when the selected
// command fails.
func main() {
	rootCmd := &cobra.Command{
		Use:               "dynshot",
		Short:             "trajectory shots: rollouts, derivatives and their verification",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = log.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (default $DYNSHOT_DATA_DIR or .dynshot)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default $DYNSHOT_LOG_LEVEL or info)")

	rolloutCmd := &cobra.Command{
		Use:   "rollout [model]",
		Short: "unroll a problem and print its trajectory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRollout,
	}
	problemFlags(rolloutCmd)
	rolloutCmd.Flags().BoolVar(&save, "save", false, "save the rollout to the data directory")

	verifyCmd := &cobra.Command{
		Use:   "verify [model]",
		Short: "compare analytic derivatives against finite differences",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runVerify,
	}
	problemFlags(verifyCmd)
	verifyCmd.Flags().Float64Var(&tolerance, "tol", config.DefaultTolerance, "relative tolerance")

	suiteCmd := &cobra.Command{
		Use:   "suite [file]",
		Short: "verify every problem of a yaml suite",
		Args:  cobra.ExactArgs(1),
		RunE:  runSuite,
	}
	suiteCmd.Flags().Float64Var(&suiteTol, "tol", 0, "relative tolerance (default from the suite)")
	suiteCmd.Flags().IntVar(&workers, "workers", 0, "concurrent jobs (default $DYNSHOT_WORKERS)")

	sparsityCmd := &cobra.Command{
		Use:   "sparsity [model]",
		Short: "show the constraint jacobian sparsity pattern",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSparsity,
	}
	problemFlags(sparsityCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "plot a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	playCmd := &cobra.Command{
		Use:   "play [run_id]",
		Short: "replay a saved run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  playRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a saved run as json or svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "export format (json, svg)")

	deleteCmd := &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list models and integrators",
		Args:  cobra.NoArgs,
		RunE:  listModels,
	}

	rootCmd.AddCommand(rolloutCmd, verifyCmd, suiteCmd, sparsityCmd, listCmd, showCmd, playCmd, exportCmd, deleteCmd, presetsCmd, modelsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func problemFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "horizon in steps")
	cmd.Flags().IntVar(&shotLength, "shot-length", 0, "steps per shot; shorter than the horizon gives a multi-shot")
	cmd.Flags().IntVar(&dofs, "dofs", 0, "degrees of freedom (mass_chain)")
	cmd.Flags().BoolVar(&tuneStart, "tune-start", true, "include the start state in the flat vector")
	cmd.Flags().StringVar(&fdMethod, "fd-method", "central", "finite difference method (central, forward)")
	cmd.Flags().Float64Var(&fdEps, "fd-eps", 0, "finite difference step (default automatic)")
}

// setup reads the environment and builds the logger. Flags win over the
// environment.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if settings, err = config.LoadEnv(); err != nil {
		return err
	}
	if dataDir == "" {
		dataDir = settings.DataDir
	}
	if logLevel == "" {
		logLevel = settings.LogLevel
	}
	log, err = newLogger(logLevel)
	return err
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
