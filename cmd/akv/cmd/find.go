package cmd

import (
	"github.com/spf13/cobra"
)

func newFindCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find <key>",
		Short: "Find a key by scanning the whole log",
		Long: `Scan every record in the log, ignoring the index, and print the
offset and value of the last record for a key.

Example:
  akv -f data.akv find mykey`,
		Args: cobra.ExactArgs(1),
		RunE: a.withSession(func(s *session, args []string) error {
			return s.find(args[0])
		}),
	}
}
