package cmd

import (
	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Long: `Show key count and log size. With --metrics the operation counters
collected during this run are printed too.

Example:
  akv -f data.akv --metrics stats`,
		Args: cobra.NoArgs,
		RunE: a.withSession(func(s *session, args []string) error {
			return s.stats()
		}),
	}
}
