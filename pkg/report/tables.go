package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nxsync/nxsync/pkg/clone"
	"github.com/nxsync/nxsync/pkg/consensus"
	"github.com/nxsync/nxsync/pkg/domains"
	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/profilediff"
	"github.com/nxsync/nxsync/pkg/syncer"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
}

func Profiles(w io.Writer, profiles []nextdns.Profile) error {
	if len(profiles) == 0 {
		_, err := fmt.Fprintln(w, "No profiles found.")
		return err
	}
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "ID\tNAME\tFINGERPRINT\t")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", p.ID, p.Name, p.Fingerprint)
	}
	return tw.Flush()
}

// DomainResultLine is the progress line printed as each profile finishes.
func DomainResultLine(pr domains.ProfileResult) string {
	if pr.Success {
		return fmt.Sprintf("[OK]   %s (%s): %s", pr.ProfileName, pr.ProfileID, pr.Message)
	}
	return fmt.Sprintf("[FAIL] %s (%s): %s", pr.ProfileName, pr.ProfileID, pr.Error)
}

func DomainResult(w io.Writer, res *domains.Result) error {
	_, err := fmt.Fprintf(w, "\n%s %s on %s: %d succeeded, %d failed\n", res.Action, res.Domain, res.ListType, res.SuccessCount, res.FailCount)
	return err
}

// Analysis prints the consensus per list and the planned operations for target.
func Analysis(w io.Writer, a *syncer.Analysis, target syncer.Target) error {
	names := make(map[string]string, len(a.Profiles))
	for _, p := range a.Profiles {
		names[p.ID] = p.DisplayName()
	}

	for _, lt := range target.ListTypes() {
		la, ok := a.Lists[lt]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "\n%s: %d domains across %d profiles\n", strings.ToUpper(string(lt)), len(la.Canonical), len(a.Profiles))
		if la.Plan.Len() == 0 {
			fmt.Fprintln(w, "  already in sync")
			continue
		}
		tw := newTabWriter(w)
		fmt.Fprintln(tw, "  OP\tDOMAIN\tPROFILE\tTARGET\tVOTES\t")
		for _, op := range la.Plan.All() {
			c := consensus.Tally(la.Snapshots, op.Domain)
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%d/%d\t\n", op.Kind, op.Domain, names[op.ProfileID], mark(op.TargetActive), c.Enabled, c.Disabled)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	ops := len(a.Operations(target))
	_, err := fmt.Fprintf(w, "\n%d operation(s), estimated %s\n", ops, a.EstimatedDuration(target).Round(time.Second))
	return err
}

// OperationLine is the progress line printed as each sync operation finishes.
func OperationLine(res syncer.OperationResult, completed, total int) string {
	status := "OK"
	if res.Outcome != syncer.OutcomeSuccess {
		status = strings.ToUpper(string(res.Outcome))
	}
	line := fmt.Sprintf("[%d/%d] %-7s %s", completed, total, status, res.Operation)
	if res.Error != "" {
		line += ": " + res.Error
	}
	return line
}

func Summary(w io.Writer, s syncer.Summary) error {
	if s.DryRun {
		_, err := fmt.Fprintln(w, "\nDry run: no changes were made.")
		return err
	}
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "\nKIND\tSUCCEEDED\tFAILED\t")
	fmt.Fprintf(tw, "add\t%d\t%d\t\n", s.AddSuccess, s.AddFail)
	fmt.Fprintf(tw, "update\t%d\t%d\t\n", s.UpdateSuccess, s.UpdateFail)
	if err := tw.Flush(); err != nil {
		return err
	}
	if s.Canceled {
		_, err := fmt.Fprintln(w, "Sync was interrupted before all operations ran.")
		return err
	}
	return nil
}

func Diff(w io.Writer, res *profilediff.Result) error {
	if len(res.Tables) == 0 {
		_, err := fmt.Fprintln(w, "No differences found.")
		return err
	}
	for _, t := range res.Tables {
		fmt.Fprintf(w, "\n%s\n", t.Heading())
		if len(t.Rows) == 0 {
			continue
		}
		tw := newTabWriter(w)
		fmt.Fprint(tw, "FIELD\t")
		for _, p := range res.Profiles {
			fmt.Fprintf(tw, "%s\t", p.DisplayName())
		}
		fmt.Fprintln(tw)
		for _, r := range t.Rows {
			marker := " "
			if r.HasDiff {
				marker = "*"
			}
			fmt.Fprintf(tw, "%s %s\t%s\t\n", marker, r.Label, strings.Join(r.Values, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// StepLine is the progress line printed as each clone step finishes.
func StepLine(step clone.Step, err error) string {
	if err != nil {
		return fmt.Sprintf("[%s] %v", step, err)
	}
	return fmt.Sprintf("[%s] done", step)
}

func Copy(w io.Writer, res clone.Result) error {
	if !res.Success {
		fmt.Fprintf(w, "\nClone failed at %s: %s\n", res.FailedStep, res.Error)
	} else {
		fmt.Fprintf(w, "\nCreated profile %s\n", res.NewProfileID)
		fmt.Fprintf(w, "Rewrites copied: %d/%d\n", res.RewritesCopied, res.RewritesTotal)
	}
	section(w, "Schema warnings", res.SchemaWarnings)
	section(w, "Skipped fields", res.SkippedFields)
	section(w, "Warnings", res.Warnings)
	section(w, "Verification mismatches", res.VerificationMismatches)
	return nil
}

func section(w io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n", title, len(lines))
	for _, l := range lines {
		fmt.Fprintf(w, "  - %s\n", l)
	}
}

func mark(active bool) string {
	if active {
		return "enabled"
	}
	return "disabled"
}
