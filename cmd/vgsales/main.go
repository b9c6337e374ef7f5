// Command vgsales runs the offline pipeline: clean the raw sales CSV,
// aggregate it into summary tables and render the static charts.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"vgsales-dashboard/internal/config"
	"vgsales-dashboard/internal/observability"
	"vgsales-dashboard/internal/runner"
)

type options struct {
	configFile string
	rawFile    string
	cleanFile  string
	outputDir  string
}

// loadConfig resolves configuration the same way the server does, then
// applies any path flags given on the command line.
func (o *options) loadConfig() (*config.Config, error) {
	if o.configFile != "" {
		if err := os.Setenv(config.FileEnv, o.configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.rawFile != "" {
		cfg.Paths.RawFile = o.rawFile
	}
	if o.cleanFile != "" {
		cfg.Paths.CleanFile = o.cleanFile
	}
	if o.outputDir != "" {
		cfg.Paths.OutputDir = o.outputDir
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "vgsales",
		Short:         "Video game sales pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML config file (overrides "+config.FileEnv+")")
	flags.StringVar(&opts.rawFile, "raw", "", "raw dataset path")
	flags.StringVar(&opts.cleanFile, "clean", "", "cleaned dataset path")
	flags.StringVar(&opts.outputDir, "output", "", "directory for tables, charts and the manifest")

	root.AddCommand(
		stageCmd(opts, runner.StageClean, "Clean the raw dataset and write the cleaned CSV"),
		stageCmd(opts, runner.StageAggregate, "Write the aggregate tables from the cleaned CSV"),
		stageCmd(opts, runner.StageRender, "Render the static charts from the cleaned CSV"),
		&cobra.Command{
			Use:   "run",
			Short: "Run clean, aggregate and render in order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return execute(cmd, opts, runner.AllStages...)
			},
		},
		manifestCmd(opts),
	)

	return root
}

func stageCmd(opts *options, stage, short string) *cobra.Command {
	return &cobra.Command{
		Use:   stage,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd, opts, stage)
		},
	}
}

func manifestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest",
		Short: "Print the manifest of the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			m, err := runner.ReadManifest(cfg.Paths.OutputDir)
			if err != nil {
				return err
			}
			printManifest(cmd.OutOrStdout(), m)
			return nil
		},
	}
}

func execute(cmd *cobra.Command, opts *options, stages ...string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logger)

	shutdownTracing, err := observability.SetupTracing(cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := runner.New(cfg.Paths, logger).Run(ctx, stages...)
	if m != nil {
		printManifest(cmd.OutOrStdout(), m)
	}
	if err != nil {
		logger.Error("pipeline failed", "run_id", m.RunID, "error", err)
		return err
	}
	return nil
}

func printManifest(w io.Writer, m *runner.Manifest) {
	fmt.Fprintf(w, "run %s: %s\n", m.RunID, m.Status)
	for _, s := range m.Stages {
		fmt.Fprintf(w, "  %-9s %-9s %s\n", s.Stage, s.Status, s.Duration)

		keys := make([]string, 0, len(s.Counters))
		for k := range s.Counters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "    %s=%d\n", k, s.Counters[k])
		}
		for _, out := range s.Outputs {
			fmt.Fprintf(w, "    -> %s\n", out)
		}
		if s.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", s.Error)
		}
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vgsales:", err)
		os.Exit(1)
	}
}
