package cmd

import (
	"io"

	"github.com/nxsync/nxsync/pkg/report"
	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the profiles of the account.",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := defaultClient()
		if err != nil {
			return err
		}
		profiles, err := api.ListProfiles(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd, profiles, func(w io.Writer) error { return report.Profiles(w, profiles) })
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
