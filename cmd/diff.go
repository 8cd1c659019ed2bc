package cmd

import (
	"io"

	"github.com/nxsync/nxsync/internal/utils"
	"github.com/nxsync/nxsync/pkg/profilediff"
	"github.com/nxsync/nxsync/pkg/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare profile configurations side by side.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var sections []profilediff.Section
		for _, s := range splitFlag(cmd, "section") {
			sec, err := profilediff.ParseSection(s)
			if err != nil {
				return err
			}
			sections = append(sections, sec)
		}
		diffOnly, _ := cmd.Flags().GetBool("diff-only")

		api, err := defaultClient()
		if err != nil {
			return err
		}
		res, err := profilediff.Diff(cmd.Context(), api, profilediff.Request{
			ProfileIDs: splitFlag(cmd, "profiles"),
			Sections:   sections,
			DiffOnly:   diffOnly,
			Delay:      viper.GetDuration("throttle.delay"),
			Log:        utils.Log,
		})
		if err != nil {
			return err
		}
		return render(cmd, res, func(w io.Writer) error { return report.Diff(w, res) })
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringP("profiles", "p", "", "Comma-separated profile ids (default: all profiles)")
	diffCmd.Flags().StringP("section", "s", "all", "Comma-separated sections: security, privacy, parental, settings, lists or all")
	diffCmd.Flags().BoolP("diff-only", "d", false, "Only show rows that differ")
}
