package cmd

import (
	"github.com/spf13/cobra"
)

func newInsertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <key> <value>",
		Short: "Store a value for a key",
		Long: `Append a record for a key. An existing key is overwritten.

Example:
  akv -f data.akv insert mykey myvalue
  akv -f data.akv insert "key with spaces" "value with spaces"`,
		Args: cobra.ExactArgs(2),
		RunE: a.withSession(func(s *session, args []string) error {
			return s.insert(args[0], args[1])
		}),
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <key> <value>",
		Short: "Replace the value of an existing key",
		Long: `Append a new record for a key that is already stored.
A key that does not exist is reported as not found and nothing is written.

Example:
  akv -f data.akv update mykey newvalue`,
		Args: cobra.ExactArgs(2),
		RunE: a.withSession(func(s *session, args []string) error {
			return s.update(args[0], args[1])
		}),
	}
}
