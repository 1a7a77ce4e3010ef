package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command with its subcommands
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	inspectFlags := &InspectFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(globalFlags, runFlags),
		createInspectCommand(inspectFlags),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "reflexive",
		Short: "Introspection agent demo host and inspector",
		Long: `reflexive runs a small workload with an embedded introspection agent and
inspects running instances through their HTTP API.

Examples:
  reflexive run --api-listen=:8091               # standalone, API on :8091
  reflexive run --spawn --debug                  # also spawn a monitor (npx reflexive)
  REFLEXIVE_CLI_MODE=true REFLEXIVE_CLI_PORT=3099 reflexive run   # child of a monitor
  reflexive inspect status --api-url=http://localhost:8091/reflexive/api
  reflexive inspect chat "what is the counter doing?"`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}
