package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yous2911/fastrevedkids-sub011/internal/spacedrep"
	"github.com/yous2911/fastrevedkids-sub011/internal/ui/theme"
)

var revisionsCmd = &cobra.Command{
	Use:   "revisions",
	Short: "Inspect and adjust scheduled revisions",
}

var revisionsDueCmd = &cobra.Command{
	Use:   "due",
	Short: "List a student's due revisions, highest priority first",
	RunE: func(cmd *cobra.Command, args []string) error {
		student, err := requireString(cmd, "student")
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		ap, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		due, err := ap.Engine.GetDueRevisions(cmd.Context(), student, limit)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, due)
		}
		if len(due) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No revisions due.")
			return nil
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-36s  %-14s  %-16s  %8s  %8s  %7s\n",
			"ID", "Competence", "Scheduled", "Failures", "Streak", "Priority")
		fmt.Fprintln(out, theme.Divider(100))
		for _, d := range due {
			fmt.Fprintf(out, "%-36s  %-14s  %-16s  %8d  %8d  %7.2f\n",
				d.ID, d.CompetenceCode, d.ScheduledFor.Local().Format("2006-01-02 15:04"),
				d.FailureCount, d.ConsecutiveSuccesses, d.Priority)
		}
		fmt.Fprintf(out, "\n%d due\n", len(due))
		return nil
	},
}

var revisionsPostponeCmd = &cobra.Command{
	Use:   "postpone <id>",
	Short: "Move a revision to a later date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		by, _ := cmd.Flags().GetDuration("by")
		reason, _ := cmd.Flags().GetString("reason")
		if (to == "") == (by == 0) {
			return errors.New("use exactly one of --to and --by")
		}

		ap, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		var newDate time.Time
		if to != "" {
			if newDate, err = parseWhen(to); err != nil {
				return err
			}
		} else {
			it, err := ap.Engine.Revision(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			newDate = it.ScheduledFor.Add(by)
		}

		it, err := ap.Engine.PostponeRevision(cmd.Context(), args[0], newDate, reason)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, it)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Revision %s of %s now scheduled for %s\n",
			it.ID, it.CompetenceCode, it.ScheduledFor.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

var revisionsCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Withdraw a revision from scheduling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")

		ap, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		it, err := ap.Engine.CancelRevision(cmd.Context(), args[0], reason)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, it)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Revision %s of %s is %s\n", it.ID, it.CompetenceCode, it.Status)
		return nil
	},
}

var revisionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a revision and its scheduling history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ap, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		it, err := ap.Engine.Revision(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, it)
		}
		printRevision(cmd, it)
		return nil
	},
}

func init() {
	revisionsDueCmd.Flags().String("student", "", "Student ID (required)")
	revisionsDueCmd.Flags().Int("limit", 0, "Maximum number of revisions (0 = all)")

	revisionsPostponeCmd.Flags().String("to", "", "New date (YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC 3339)")
	revisionsPostponeCmd.Flags().Duration("by", 0, "Delay relative to the current schedule (e.g. 48h)")
	revisionsPostponeCmd.Flags().String("reason", "", "Why the revision moves")

	revisionsCancelCmd.Flags().String("reason", "", "Why the revision is withdrawn")

	revisionsCmd.AddCommand(revisionsDueCmd)
	revisionsCmd.AddCommand(revisionsPostponeCmd)
	revisionsCmd.AddCommand(revisionsCancelCmd)
	revisionsCmd.AddCommand(revisionsShowCmd)
}

func printRevision(cmd *cobra.Command, it *spacedrep.RevisionItem) {
	out := cmd.OutOrStdout()
	status := theme.Pending.Render(string(it.Status))
	if !it.IsActive() {
		status = theme.Hint.Render(string(it.Status))
	}
	fmt.Fprintf(out, "%s  %s  %s\n", theme.Title.Render(it.CompetenceCode), it.StudentID, status)
	fmt.Fprintf(out, "  scheduled  %s\n", it.ScheduledFor.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "  failures   %d, success streak %d\n", it.FailureCount, it.ConsecutiveSuccesses)
	fmt.Fprintln(out, theme.Divider(60))
	for _, h := range it.History {
		line := fmt.Sprintf("  %s  %-10s -> %s", h.At.Local().Format("2006-01-02 15:04"), h.Action,
			h.ScheduledFor.Local().Format("2006-01-02 15:04"))
		if h.Reason != "" {
			line += "  " + theme.Hint.Render(h.Reason)
		}
		fmt.Fprintln(out, line)
	}
}

// parseWhen accepts a date, a date and minute, or an RFC 3339 timestamp.
// The first two are read in local time.
func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", s)
}
