package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/loykin/reflexive/pkg/client"
	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// printLogs writes one line per entry: time, kind, message.
func printLogs(cmd *cobra.Command, entries []client.LogEntry) error {
	w := cmd.OutOrStdout()
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s [%s] %s\n", e.Timestamp.Format(time.RFC3339), e.Type, e.Message); err != nil {
			return err
		}
	}
	return nil
}
