package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/nxsync/nxsync/internal/utils"
	"github.com/nxsync/nxsync/pkg/report"
	"github.com/nxsync/nxsync/pkg/syncer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type syncOutput struct {
	Analysis *syncer.Analysis `json:"analysis" yaml:"analysis"`
	Summary  *syncer.Summary  `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// syncCmd implements: nxsync sync --target both [--dry-run] [--yes]
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Align denylists and allowlists across profiles by majority vote.",
	Long: `Every domain found in any selected profile gets the state most profiles agree on
(ties count as enabled). Profiles missing the domain get it added, profiles with a
different state get it updated. Requests are sent one at a time with a pause in
between to stay under the vendor rate limit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		targetFlag, _ := cmd.Flags().GetString("target")
		target, err := syncer.ParseTarget(targetFlag)
		if err != nil {
			return err
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		yes, _ := cmd.Flags().GetBool("yes")

		api, err := defaultClient()
		if err != nil {
			return err
		}
		delay := viper.GetDuration("throttle.delay")

		return withLock(viper.GetString("nextdns.apikey"), func() error {
			a, err := syncer.Analyze(cmd.Context(), api, syncer.Options{
				ProfileIDs: splitFlag(cmd, "profiles"),
				Delay:      delay,
				Log:        utils.Log,
			})
			if err != nil {
				return err
			}
			out := syncOutput{Analysis: a}

			ops := len(a.Operations(target))
			if ops == 0 || dryRun {
				if err := render(cmd, out, func(w io.Writer) error { return report.Analysis(w, a, target) }); err != nil {
					return err
				}
				if ops == 0 {
					fmt.Fprintln(progressWriter(cmd), "Profiles are already in sync.")
				}
				return nil
			}

			if err := report.Analysis(progressWriter(cmd), a, target); err != nil {
				return err
			}
			if !yes {
				ok, err := confirm(fmt.Sprintf("Apply %d operation(s) to %d profiles?", ops, len(a.Profiles)))
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("sync aborted")
				}
			}

			progress := progressWriter(cmd)
			summary := syncer.Execute(cmd.Context(), api, a, syncer.Config{
				Target:     target,
				Delay:      delay,
				RetryDelay: viper.GetDuration("throttle.retrydelay"),
				MaxRetries: viper.GetInt("throttle.maxretries"),
				Listener: syncer.ListenerFunc(func(res syncer.OperationResult, completed, total int) {
					fmt.Fprintln(progress, report.OperationLine(res, completed, total))
				}),
				Log: utils.Log,
			})
			out.Summary = &summary

			if err := render(cmd, out, func(w io.Writer) error { return report.Summary(w, summary) }); err != nil {
				return err
			}
			if n := summary.Failed(); n > 0 {
				return errFailures{n}
			}
			return nil
		})
	},
}

func confirm(title string) (bool, error) {
	ok := false
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Apply").
				Negative("Cancel").
				Value(&ok),
		),
	).Run()
	return ok, err
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringP("profiles", "p", "", "Comma-separated profile ids (default: all profiles)")
	syncCmd.Flags().StringP("target", "t", "both", "Lists to sync: denylist, allowlist or both")
	syncCmd.Flags().Bool("dry-run", false, "Only show what would change")
	syncCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}
