package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/loykin/reflexive/pkg/client"
	"github.com/spf13/cobra"
)

const defaultAPIUrl = "http://localhost:8091/reflexive/api"

// createInspectCommand creates the inspect command tree
func createInspectCommand(flags *InspectFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Query a running instance through its introspection API",
		Long: `Query a running instance through its introspection API.

Examples:
  reflexive inspect status
  reflexive inspect logs --count=20 --type=error
  reflexive inspect search "timeout after \d+"
  reflexive inspect state counter
  reflexive inspect chat "why is the error rate rising?"`,
	}
	cmd.PersistentFlags().StringVar(&flags.APIUrl, "api-url", defaultAPIUrl, "introspection API base URL")
	cmd.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 90*time.Second, "request timeout")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show the process status snapshot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := newAPIClient(flags).Status(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			},
		},
		createLogsCommand(flags),
		&cobra.Command{
			Use:   "search <pattern>",
			Short: "Search log messages with a regular expression",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				entries, err := newAPIClient(flags).SearchLogs(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printLogs(cmd, entries)
			},
		},
		&cobra.Command{
			Use:   "state [key]",
			Short: "Show all state, or a single key",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c := newAPIClient(flags)
				if len(args) == 1 {
					v, err := c.GetState(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), v)
				}
				all, err := c.GetStateAll(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), all)
			},
		},
		&cobra.Command{
			Use:   "chat <message>",
			Short: "Ask the monitor about the instance",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				answer, err := newAPIClient(flags).Chat(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), answer)
				return err
			},
		},
	)
	return cmd
}

func createLogsCommand(flags *InspectFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := newAPIClient(flags).GetLogs(cmd.Context(), client.LogsRequest{Count: flags.Count, Type: flags.Type})
			if err != nil {
				return err
			}
			return printLogs(cmd, entries)
		},
	}
	cmd.Flags().IntVar(&flags.Count, "count", 0, "most recent N entries (0 for all)")
	cmd.Flags().StringVar(&flags.Type, "type", "", "only entries of this kind (info, warn, error, debug, stdout, stderr, system, custom)")
	return cmd
}

func newAPIClient(flags *InspectFlags) *client.Client {
	return client.New(client.Config{BaseURL: flags.APIUrl, Timeout: flags.APITimeout})
}
