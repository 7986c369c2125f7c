package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve SCENARIO",
	Short: "Run a scenario behind a status and metrics server",
	Long: `Runs a scenario while exposing session status as JSON and Prometheus
metrics over HTTP. The server stays up after the scenario finishes so
the outcome stays inspectable; stop it with SIGINT or SIGTERM.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err := cli.RunServe(ctx, args[0], cli.ServeOptions{
			Logger: newLogger(cmd),
			Out:    os.Stdout,
			Addr:   addr,
		})
		if err != nil && ctx.Err() == nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")
}
