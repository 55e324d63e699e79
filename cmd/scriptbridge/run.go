package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/woxQAQ/scriptbridge/internal/host"
	"github.com/woxQAQ/scriptbridge/pkg/protocol"
)

func newRunCmd() *cobra.Command {
	var (
		once bool
		expr string
	)

	cmd := &cobra.Command{
		Use:   "run [page.js]",
		Short: "Run a page with all extensions attached",
		Long: `Run a page with all extensions attached.

The page runs in a fresh script context after every extension stub. The
view then processes messages until interrupted.

Examples:
  scriptbridge run page.js
  scriptbridge run page.js --once
  scriptbridge run --eval 'sample.version'
  scriptbridge run page.js --metrics --metrics-port 9100`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("Starting scriptbridge",
				zap.String("version", version),
				zap.String("commit", commit),
				zap.String("date", date),
			)

			// Create context with cancellation
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			h, err := host.New(ctx, cfg, version, logger)
			if err != nil {
				return fmt.Errorf("create host: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := shutdownContext()
				defer cancel()
				_ = h.Close(shutdownCtx)
			}()

			if err := h.Start(ctx); err != nil {
				return fmt.Errorf("start host: %w", err)
			}

			name, source := "page.js", ""
			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read page: %w", err)
				}
				name, source = filepath.Base(args[0]), string(data)
			}
			if err := h.Load(name, source); err != nil {
				return fmt.Errorf("load page: %w", err)
			}

			if expr != "" {
				return evalAndPrint(cmd, h, expr)
			}
			if once {
				h.Flush()
				return nil
			}

			// Handle shutdown signals
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			go func() {
				select {
				case sig := <-sigChan:
					logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
					cancel()
				case <-ctx.Done():
				}
			}()

			if err := h.Run(ctx); err != nil {
				return err
			}

			logger.Info("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "exit once the page and its pending messages are processed")
	cmd.Flags().StringVarP(&expr, "eval", "e", "", "evaluate an expression after the page loads and print the result")

	return cmd
}

// evalAndPrint settles pending work, evaluates expr and prints its value as
// a script literal.
func evalAndPrint(cmd *cobra.Command, h *host.Host, expr string) error {
	var (
		result  protocol.Value
		evalErr error
	)
	h.Flush()
	h.View().Evaluate(expr, func(v protocol.Value, err error) {
		result, evalErr = v, err
	})
	h.Flush()
	if evalErr != nil {
		return fmt.Errorf("evaluate: %w", evalErr)
	}

	literal, err := result.Literal()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), literal)
	return nil
}
