// Command p2pctl drives a running p2p-supplicant over gRPC.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr string

	root := &cobra.Command{
		Use:           "p2pctl",
		Short:         "Control Wi-Fi P2P interfaces of a p2p-supplicant daemon",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", envOr("P2P_ADDR", "localhost:50051"), "Address of the p2p-supplicant gRPC server")

	root.AddCommand(interfacesCmd(&addr))
	root.AddCommand(findCmd(&addr))
	root.AddCommand(stopFindCmd(&addr))
	root.AddCommand(connectCmd(&addr))
	root.AddCommand(networksCmd(&addr))
	root.AddCommand(sdRequestCmd(&addr))
	root.AddCommand(sdCancelCmd(&addr))
	root.AddCommand(watchCmd(&addr))
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
