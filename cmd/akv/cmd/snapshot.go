package cmd

import (
	"github.com/spf13/cobra"
)

func newSnapshotCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Persist the index into the log",
		Long: `Write the current index into the log under the reserved index key,
so --index-mode disk can resolve keys without a full replay.

Example:
  akv -f data.akv snapshot`,
		Args: cobra.NoArgs,
		RunE: a.withSession(func(s *session, args []string) error {
			return s.snapshot()
		}),
	}
}
