package cmd

import (
	"fmt"
	"io"

	"github.com/nxsync/nxsync/internal/utils"
	"github.com/nxsync/nxsync/pkg/domains"
	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// manageCmd implements: nxsync manage <domain> --list denylist --action add
var manageCmd = &cobra.Command{
	Use:   "manage <domain>",
	Short: "Add, remove, enable or disable a domain on several profiles.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, err := domains.Normalize(args[0])
		if err != nil {
			return err
		}
		listFlag, _ := cmd.Flags().GetString("list")
		lt, err := nextdns.ParseListType(listFlag)
		if err != nil {
			return err
		}
		actionFlag, _ := cmd.Flags().GetString("action")
		action, err := domains.ParseAction(actionFlag)
		if err != nil {
			return err
		}

		api, err := defaultClient()
		if err != nil {
			return err
		}

		progress := progressWriter(cmd)
		var res *domains.Result
		err = withLock(viper.GetString("nextdns.apikey"), func() error {
			var err error
			res, err = domains.Manage(cmd.Context(), api, domains.Request{
				Domain:     domain,
				ListType:   lt,
				Action:     action,
				ProfileIDs: splitFlag(cmd, "profiles"),
				OnResult: func(pr domains.ProfileResult) {
					fmt.Fprintln(progress, report.DomainResultLine(pr))
				},
				Log: utils.Log,
			})
			return err
		})
		if err != nil {
			return err
		}

		if err := render(cmd, res, func(w io.Writer) error { return report.DomainResult(w, res) }); err != nil {
			return err
		}
		if res.FailCount > 0 {
			return errFailures{res.FailCount}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(manageCmd)
	manageCmd.Flags().String("list", "denylist", "List to change: denylist or allowlist")
	manageCmd.Flags().StringP("action", "a", "add", "Action: add, remove, enable or disable")
	manageCmd.Flags().StringP("profiles", "p", "", "Comma-separated profile ids (default: all profiles)")
}
