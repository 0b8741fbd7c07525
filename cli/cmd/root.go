package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sflowg/randomnode/internal/telemetry"
	"github.com/sflowg/randomnode/plugins/random"
	"github.com/sflowg/randomnode/runtime"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "randomnode",
	Short: "randomnode - True random number node host",
	Long: `randomnode hosts the Random node: for each input item it fetches one
true random integer from random.org within the item's minimum/maximum range.

Run a single batch from the command line, or serve the node over HTTP.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the host config file (YAML)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(describeCmd)
}

// registeredNodes returns fresh instances of every node this binary hosts.
func registeredNodes() []runtime.NodeType {
	return []runtime.NodeType{
		random.New(),
	}
}

// host bundles what every command needs after startup.
type host struct {
	app       *runtime.App
	logger    *slog.Logger
	telemetry *telemetry.Telemetry
}

// bootstrap loads config, sets up logging and telemetry, and initializes the nodes.
// Logs go to stderr so command output on stdout stays machine readable.
func bootstrap(ctx context.Context) (*host, error) {
	cfg, err := runtime.LoadAppConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := runtime.NewLogger(cfg.Log, os.Stderr)

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		return nil, err
	}
	logger = tel.Tee(logger)
	slog.SetDefault(logger)

	app, err := runtime.NewApp(cfg, logger, registeredNodes()...)
	if err != nil {
		_ = tel.ShutdownWithTimeout(cfg.Server.ShutdownTimeout, logger)
		return nil, fmt.Errorf("failed to register nodes: %w", err)
	}

	if err := app.Container.Initialize(ctx); err != nil {
		_ = tel.ShutdownWithTimeout(cfg.Server.ShutdownTimeout, logger)
		return nil, err
	}

	return &host{app: app, logger: logger, telemetry: tel}, nil
}

func (h *host) close() {
	ctx, cancel := context.WithTimeout(context.Background(), h.app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := h.app.Container.Shutdown(ctx); err != nil {
		h.logger.Error("Node shutdown failed", "error", err)
	}
	_ = h.telemetry.ShutdownWithTimeout(h.app.Config.Server.ShutdownTimeout, h.logger)
}
