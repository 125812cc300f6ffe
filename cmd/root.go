package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"secscan/internal/config"
	"secscan/internal/logging"
)

// app carries state shared by every subcommand.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	debug      bool
	log        *zap.Logger
}

func Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, log: zap.NewNop()}
	root := &cobra.Command{
		Use:           "secscan",
		Short:         "Static security scanner for source trees",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			log, err := logging.New(a.debug)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.log = log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file applied over ~/.secscan/config.yaml and ./.secscan/config.yaml")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newScanCmd(a),
		newWatchCmd(a),
		newScheduleCmd(a),
		newRulesCmd(a),
		newReportCmd(a),
		newVersionCmd(a),
	)
	return root
}

// settings loads layered config, applies flag overrides and resolves
// defaults. A config file can turn on debug logging too.
func (a *app) settings(overrides config.Config) (config.Settings, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return config.Settings{}, err
	}
	s, err := config.Merge(cfg, overrides).Resolve()
	if err != nil {
		return config.Settings{}, fmt.Errorf("invalid config: %w", err)
	}
	if s.Debug && !a.debug {
		if log, err := logging.New(true); err == nil {
			a.log = log
		}
	}
	return s, nil
}

func usageError(msg string) error {
	return errors.New(msg)
}
