package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "paddock",
	Short: "Paddock - Deployment replica controller",
	Long: `Paddock keeps fleets of worker replicas converged on their declared
targets: it scales them, rolls out new versions in waves, restarts
failed replicas with backoff, and drains them gracefully on shutdown.

State is checkpointed locally so deployments survive a controller
restart.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Paddock version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(runCmd)
}
