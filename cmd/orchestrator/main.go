package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Plan, run, and supervise local workspace changes driven by an LLM planner",
	Long: `orchestrator drives a bounded plan/run/evaluate loop against a local git
workspace: it asks a planner for a small JSON plan, executes it step by step
under a command policy and a dependency-change approval gate, and can repeat
the loop autonomously (autobuild) up to a fixed number of iterations.`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to an orchestrator config file (YAML)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit events as newline-delimited JSON instead of colorized console lines")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(autobuildCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(runsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, for the two
// long-running commands (run, autobuild) that need to unwind cleanly on
// Ctrl-C rather than leaving a child process or a listening control socket
// behind.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
