package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jerkytreats/handyman/internal/config"
	"github.com/jerkytreats/handyman/internal/configuration"
	"github.com/jerkytreats/handyman/internal/dispatch"
	"github.com/jerkytreats/handyman/internal/logging"
	"github.com/jerkytreats/handyman/internal/service"
	"github.com/jerkytreats/handyman/internal/status"
	"github.com/jerkytreats/handyman/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func newRunCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:     "run",
		Aliases: []string{"systemd"},
		Short:   "Run every configuration in the configuration directory",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configDir != "" {
				config.Set(config.ConfigDirKey, configDir)
			}
			config.RegisterRequiredKey(config.ConfigDirKey)
			config.RegisterRequiredKey(config.ShellKey)
			if err := config.CheckRequiredKeys(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runService(ctx)
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "directory holding configuration files (default from settings)")
	return cmd
}

func runService(ctx context.Context) error {
	logging.Info("Starting Handyman service")

	dir := config.GetString(config.ConfigDirKey)
	configs, err := configuration.NewLoader(nil).LoadDir(dir)
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx, telemetry.ConfigFromSettings())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Telemetry shutdown: %v", err)
		}
	}()

	health := status.NewHandler(configs)
	if config.GetBool(config.ServerEnabledKey) {
		srv := status.NewServer(
			config.GetString(config.ServerAddrKey),
			config.GetDuration(config.ServerReadTimeoutKey),
			health,
			nil,
		)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logging.Error("Status server forced to shutdown: %v", err)
			}
		}()
	}

	if len(configs) == 0 {
		logging.Warn("No configurations found in %s, nothing to run", dir)
		return nil
	}

	logger := logging.Logger()
	dispatcher := dispatch.New(
		dispatch.WithShell(config.GetString(config.ShellKey)),
		dispatch.WithLogger(logger),
		dispatch.WithTracer(tel.Tracer()),
		dispatch.WithRecorder(tel.Instruments()),
	)

	orchestrator := service.NewOrchestrator(
		service.WithLogger(logger),
		service.WithTracer(tel.Tracer()),
		service.WithRecorder(tel.Instruments()),
		service.WithDispatcher(dispatcher),
		service.WithRunnerLost(health.RunnerLost),
	)

	logging.Info("Launching %d configurations", len(configs))
	if err := orchestrator.Run(ctx, configs); err != nil {
		return fmt.Errorf("service stopped with errors: %w", err)
	}
	logging.Info("Handyman service stopped")
	return nil
}
