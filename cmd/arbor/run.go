package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/logging"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run SCENARIO",
	Short: "Run a scenario file to completion",
	Long:  `Loads a YAML scenario, starts its frames as a session, waits for every frame to finish, and prints the outcome.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ok, err := cli.RunScenario(cmd.Context(), args[0], cli.RunOptions{
			Logger:  newLogger(cmd),
			Out:     os.Stdout,
			Timeout: timeout,
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Duration("timeout", 0, "Abort the scenario after this duration (0 waits forever)")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	name, _ := cmd.Flags().GetString("log-level")
	level := slog.LevelInfo
	switch name {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return logging.New(level)
}
