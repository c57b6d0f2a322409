package cmd

import (
	"github.com/spf13/cobra"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a value for a key",
		Long: `Get the latest value for a key.

In memory mode the index is rebuilt from the log first; in disk mode the key
is resolved through the index snapshot stored in the log.

Example:
  akv -f data.akv get mykey
  akv -f data.akv --index-mode disk get mykey`,
		Args: cobra.ExactArgs(1),
		RunE: a.withSession(func(s *session, args []string) error {
			return s.get(args[0])
		}),
	}
}
