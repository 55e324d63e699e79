package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/woxQAQ/scriptbridge/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scriptbridge",
		Short: "Expose Go objects to JavaScript",
		Long: `scriptbridge - bridge native Go extensions into a JavaScript context.

Commands:
  scriptbridge run [page.js]     Run a page with all extensions attached
  scriptbridge proxy <name>      Print the generated script of an extension
  scriptbridge list              List cataloged extensions`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to configuration file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringSlice("extension-path", []string{"./extensions"}, "Directories scanned for extensions")
	flags.Bool("metrics", false, "Serve Prometheus metrics")
	flags.Int("metrics-port", 9090, "Metrics server port")
	flags.String("otlp-endpoint", "", "OTLP trace collector endpoint (host:port)")
	flags.String("otlp-protocol", "http", "OTLP protocol (http, grpc)")
	flags.Bool("view-debug", false, "Log every evaluated script")
	flags.Duration("view-eval-timeout", 5*time.Second, "Script evaluation time limit")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newProxyCmd())
	rootCmd.AddCommand(newListCmd())

	return rootCmd
}

// setup loads configuration and builds the logger for cmd.
func setup(cmd *cobra.Command) (*config.HostConfig, *zap.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadHostConfig(configPath, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	return cfg, logger, nil
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
