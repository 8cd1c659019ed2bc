package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/nxsync/nxsync/internal/utils"
	"github.com/nxsync/nxsync/pkg/clone"
	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type stepPrinter struct{ w io.Writer }

func (p stepPrinter) StepStarted(clone.Step) {}

func (p stepPrinter) StepFinished(step clone.Step, err error) {
	fmt.Fprintln(p.w, report.StepLine(step, err))
}

// copyCmd implements: nxsync copy --from <id> [--dest-key KEY] [--force]
var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Clone a profile into a new profile, in this or another account.",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		if from == "" {
			return errors.New("--from is required")
		}
		force, _ := cmd.Flags().GetBool("force")
		destKey, _ := cmd.Flags().GetString("dest-key")

		src, err := defaultClient()
		if err != nil {
			return err
		}
		var dst nextdns.API = src
		if destKey != "" {
			if dst, err = newClient(destKey); err != nil {
				return err
			}
		} else {
			destKey = viper.GetString("nextdns.apikey")
		}

		var res clone.Result
		err = withLock(destKey, func() error {
			res = clone.Copy(cmd.Context(), src, dst, clone.Options{
				SourceProfileID: from,
				Force:           force,
				Listener:        stepPrinter{progressWriter(cmd)},
				Log:             utils.Log,
			})
			return nil
		})
		if err != nil {
			return err
		}

		if err := render(cmd, res, func(w io.Writer) error { return report.Copy(w, res) }); err != nil {
			return err
		}
		if !res.Success {
			return errFailures{1}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(copyCmd)
	copyCmd.Flags().StringP("from", "f", "", "Source profile id")
	copyCmd.Flags().String("dest-key", "", "API key of the destination account (default: same account)")
	copyCmd.Flags().Bool("force", false, "Clone even if the source has fields this version does not know")
}
