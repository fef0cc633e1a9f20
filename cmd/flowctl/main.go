package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"flow/internal/backend"
	"flow/internal/cli"
	"flow/internal/config"
	"flow/internal/log"
	"flow/internal/services"
)

var version = "dev"

// app is what every command works against.
type app struct {
	transactions *services.TransactionService
	forecast     *services.ForecastService
	close        func() error
}

// opener builds the app for one command invocation.
type opener func(ctx context.Context, logLevel string) (*app, error)

type runFunc func(cmd *cobra.Command, args []string, a *app) error

// runner adapts a runFunc to cobra's RunE.
type runner func(fn runFunc) func(*cobra.Command, []string) error

func newRootCmd(open opener) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "flowctl",
		Short: "Manage recurring transactions and project your balance",
		Long: `flowctl edits the transaction list used by the flow server and projects
the running balance day by day.

Storage and change events are configured through the same environment
variables (or .env file) as the server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	// withApp opens the configured backend for the duration of fn.
	var withApp runner = func(fn runFunc) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context(), logLevel)
			if err != nil {
				return err
			}
			defer func() {
				if a.close == nil {
					return
				}
				if err := a.close(); err != nil {
					log.FromContext(cmd.Context()).Warn("Failed to close backend", "error", err)
				}
			}()
			return fn(cmd, args, a)
		}
	}

	root.AddCommand(
		listCmd(withApp),
		addCmd(withApp),
		editCmd(withApp),
		rmCmd(withApp),
		projectCmd(withApp),
		summaryCmd(withApp),
		importCmd(withApp),
	)
	return root
}

// openConfigured wires the backend selected by the environment.
func openConfigured(ctx context.Context, logLevel string) (*app, error) {
	cli.LoadEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := log.New(log.Config{
		Level:     log.ParseLevel(logLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentCLI,
		Output:    os.Stderr,
	})
	log.SetDefault(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
	}

	forecast := services.NewForecastService(result.Backend, nil, cfg.ForecastHorizonMonths)

	var publisher services.ChangePublisher
	if result.Publisher != nil {
		publisher = result.Publisher
	}

	return &app{
		transactions: services.NewTransactionService(result.Backend, publisher, forecast),
		forecast:     forecast,
		close:        result.Cleanup,
	}, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(openConfigured).ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
