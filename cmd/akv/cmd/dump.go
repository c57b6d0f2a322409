package cmd

import (
	"github.com/spf13/cobra"
)

func newDumpCmd(a *app) *cobra.Command {
	var showValues bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "List every record in the log",
		Long: `Print one line per record: offset, kind (put or del), key and value size.

Example:
  akv -f data.akv dump
  akv -f data.akv dump --values`,
		Args: cobra.NoArgs,
		RunE: a.withSession(func(s *session, args []string) error {
			return s.dump(showValues)
		}),
	}

	cmd.Flags().BoolVar(&showValues, "values", false, "Include record values")
	return cmd
}

func newKeysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys [prefix]",
		Short: "List live keys",
		Long: `List the keys in the replayed index, sorted, optionally filtered by prefix.

Example:
  akv -f data.akv keys
  akv -f data.akv keys user:`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.withSession(func(s *session, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return s.keys(prefix)
		}),
	}
}
