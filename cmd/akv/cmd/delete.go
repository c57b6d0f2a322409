package cmd

import (
	"github.com/spf13/cobra"
)

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Long: `Delete a key by appending a tombstone record.
Older records stay in the log; replay skips them.

Example:
  akv -f data.akv delete mykey`,
		Args: cobra.ExactArgs(1),
		RunE: a.withSession(func(s *session, args []string) error {
			return s.delete(args[0])
		}),
	}
}
