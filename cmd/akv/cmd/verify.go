package cmd

import (
	"github.com/spf13/cobra"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every record checksum",
		Long: `Decode every record in the log and report the first corrupt one.
The file is never modified.

Example:
  akv -f data.akv verify`,
		Args: cobra.NoArgs,
		// A corrupt log fails Load, so verify opens the store itself
		Annotations: map[string]string{skipStore: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.openUnloaded(cmd); err != nil {
				return err
			}
			return a.session.verify()
		},
	}
}
