package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/deskhand/deskhand/internal/defaults"
	"github.com/deskhand/deskhand/internal/local"
	"github.com/deskhand/deskhand/internal/logging"
	"github.com/deskhand/deskhand/internal/server"
	"github.com/deskhand/deskhand/internal/svc"
)

var quiet bool

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "deskhand",
		Short: "Local support-reply assistant daemon",
		Long: "deskhand watches customer-support pages through its page contexts,\n" +
			"matches inbound messages against a knowledge base, and drafts replies\n" +
			"the agent can paste back into the chat.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress request logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.AddCommand(serveCmd)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the daemon version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(defaults.Version)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe() error {
	if quiet {
		logging.Disable()
	}

	settings, err := local.LoadSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	svcCtx, err := svc.NewServiceContext(settings)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer svcCtx.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Infof("received signal %v, shutting down", sig)
		cancel()
	}()

	svcCtx.Coordinator.Start(ctx)
	svcCtx.Refresher.Start()

	return server.Run(ctx, svcCtx, server.Options{Quiet: quiet})
}
