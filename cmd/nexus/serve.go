package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexusshell/nexus/internal/kernel"
	"github.com/nexusshell/nexus/internal/replshim"
)

// serveCmd starts the interactive shell: a Kernel wired from the
// configuration, driven by a REPL front-end, torn down gracefully on
// SIGINT/SIGTERM. Grounded on cmd/serve.go's start-then-signal-wait-
// then-shutdown shape, generalized from "listen for SSH connections"
// to "read lines from stdin".
var serveCmd = &cobra.Command{
	Use:   "serve [config-path]",
	Short: "Start the interactive shell.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			cfgPath = args[0]
		}
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyEnvOverrides(cfg)

		k, err := kernel.New(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if err := k.Init(context.Background()); err != nil {
			return err
		}

		replCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

		done := make(chan error, 1)
		go func() {
			done <- replshim.Run(replCtx, k, replshim.Options{
				HistoryFile: replshim.DefaultHistoryFile(),
				Stdout:      cmd.OutOrStdout(),
				Stderr:      cmd.ErrOrStderr(),
			})
		}()

		var runErr error
		select {
		case runErr = <-done:
		case sig := <-sigs:
			log.Printf("got signal %q, shutting down", sig)
			cancel()
			<-done
			runErr = errInterrupted
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := k.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
