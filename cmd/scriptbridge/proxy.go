package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/woxQAQ/scriptbridge/internal/host"
)

func newProxyCmd() *cobra.Command {
	var stub bool

	cmd := &cobra.Command{
		Use:   "proxy <name>",
		Short: "Print the generated script of an extension",
		Long: `Print the generated script of an extension.

By default prints the member stubs followed by the extension's supplementary
script. With --stub prints the complete startup script injected into views.

Examples:
  scriptbridge proxy sample
  scriptbridge proxy sample --stub`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(cmd, func(h *host.Host) error {
				var (
					script string
					err    error
				)
				if stub {
					script, err = h.Stub(args[0])
				} else {
					script, err = h.Proxy(args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), script)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&stub, "stub", false, "print the startup script including the namespace wrapper")

	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cataloged extensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHost(cmd, func(h *host.Host) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tCLASS\tNAMESPACE\tVERSION")
				for _, entry := range h.Manager().Registry().List() {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", entry.Name(), entry.Class(), entry.Namespace(), entry.Version())
				}
				return w.Flush()
			})
		},
	}
}

// withHost starts a host with every extension attached, runs fn and shuts the
// host down.
func withHost(cmd *cobra.Command, fn func(h *host.Host) error) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	h, err := host.New(cmd.Context(), cfg, version, logger)
	if err != nil {
		return fmt.Errorf("create host: %w", err)
	}
	defer func() {
		ctx, cancel := shutdownContext()
		defer cancel()
		_ = h.Close(ctx)
	}()

	if err := h.Start(cmd.Context()); err != nil {
		return fmt.Errorf("start host: %w", err)
	}
	return fn(h)
}
