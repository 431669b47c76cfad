package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"segweaver/internal/cli"
	"segweaver/internal/config"
	"segweaver/internal/core"
	"segweaver/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is main without os.Exit so deferred cleanup happens.
func run(args []string) int {
	// A missing .env is normal; settings then come from the environment.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := cli.ExitSuccess
	root := newRootCmd(&code)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if code == cli.ExitSuccess {
			code = cli.ExitInvalidInvocation
		}
	}
	return code
}

func newRootCmd(code *int) *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "segweaver",
		Short:         "Customer segmentation pipeline with cached, fingerprinted steps",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: segweaver.yaml in . or ./config)")

	// setup loads config and logging for a subcommand. The returned closer
	// flushes the log file, if any.
	setup := func() (*config.Config, zerolog.Logger, io.Closer, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			*code = cli.ExitConfigError
			return nil, zerolog.Nop(), nil, err
		}
		logger, closer, err := logging.Init(cfg.Log)
		if err != nil {
			*code = cli.ExitConfigError
			return nil, zerolog.Nop(), nil, err
		}
		return cfg, logger, closer, nil
	}

	root.AddCommand(newRunCmd(code, setup), newModelCmd(code, setup))
	return root
}

type setupFunc func() (*config.Config, zerolog.Logger, io.Closer, error)

func newRunCmd(code *int, setup setupFunc) *cobra.Command {
	var (
		tracePath string
		progress  bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reduce, select k, cluster and label the input dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, closer, err := setup()
			if err != nil {
				return err
			}
			defer closer.Close()

			inv := cli.Invocation{Config: cfg, TracePath: tracePath, Logger: logger}
			if progress {
				inv.Progress = cmd.ErrOrStderr()
			}
			res, err := cli.Execute(cmd.Context(), inv)
			*code = res.ExitCode
			if err != nil {
				return fmt.Errorf("run %s: %w", res.RunID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: k=%d, %d rows written to %s\n",
				res.RunID, res.Segment.Selection.K, len(res.Segment.Clusters), cfg.Data.Output)
			return nil
		},
	}
	cmd.Flags().StringVar(&tracePath, "trace", "", "write the canonical run trace to this path")
	cmd.Flags().BoolVar(&progress, "progress", false, "show a node progress bar on stderr")
	return cmd
}

func newModelCmd(code *int, setup setupFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect saved cluster models",
	}

	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a saved model as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, closer, err := setup()
			if err != nil {
				return err
			}
			defer closer.Close()

			m, err := cli.LoadModel(cmd.Context(), cfg, args[0])
			if err != nil {
				*code = registryExitCode(err)
				return err
			}
			b, err := sonic.ConfigStd.MarshalIndent(m, "", "  ")
			if err != nil {
				*code = cli.ExitInternalError
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved model names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, closer, err := setup()
			if err != nil {
				return err
			}
			defer closer.Close()

			names, err := cli.ListModels(cmd.Context(), cfg)
			if err != nil {
				*code = registryExitCode(err)
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}

	cmd.AddCommand(show, list)
	return cmd
}

func registryExitCode(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrInvalidParameter):
		return cli.ExitInvalidInvocation
	default:
		return cli.ExitConfigError
	}
}
