package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
	"github.com/yous2911/fastrevedkids-sub011/internal/store"
	"github.com/yous2911/fastrevedkids-sub011/internal/ui/theme"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show a student's competence states",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show every competence state, or one in detail with --competence",
	RunE: func(cmd *cobra.Command, args []string) error {
		student, err := requireString(cmd, "student")
		if err != nil {
			return err
		}
		code, _ := cmd.Flags().GetString("competence")

		ap, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()
		ctx := cmd.Context()

		if code == "" {
			states, err := ap.Engine.States(ctx, student)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd, states)
			}
			if len(states) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No attempts recorded.")
				return nil
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-14s  %-12s  %-27s  %8s  %7s  %s\n",
				"Competence", "Level", "Progress", "Attempts", "Average", "Last attempt")
			fmt.Fprintln(out, theme.Divider(100))
			for _, s := range states {
				fmt.Fprintf(out, "%-14s  %s  %s %3d%%  %8d  %7.1f  %s\n",
					s.CompetenceCode, theme.Pad(theme.LevelBadge(s.Level), 12),
					theme.ProgressBar(s.ProgressPercent, 20), s.ProgressPercent,
					s.TotalAttempts, s.AverageScore, s.LastAttemptAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		}

		s, err := ap.Engine.CompetenceState(ctx, student, code)
		if err != nil {
			return err
		}
		lastN, _ := cmd.Flags().GetInt("recent")
		accuracy, counted, err := ap.Events.RecentAccuracy(ctx, student, code, lastN)
		if err != nil {
			return err
		}
		transitions, err := ap.Events.MasteryEvents(ctx, student, code, store.QueryOpts{})
		if err != nil {
			return err
		}

		if wantJSON(cmd) {
			return printJSON(cmd, struct {
				State          mastery.CompetenceState `json:"state"`
				RecentAccuracy float64                 `json:"recent_accuracy"`
				RecentCounted  int                     `json:"recent_counted"`
				Transitions    []store.MasteryEvent    `json:"transitions"`
			}{s, accuracy, counted, transitions})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s\n", theme.Title.Render(code), theme.LevelBadge(s.Level))
		fmt.Fprintf(out, "  progress     %s %d%%\n", theme.ProgressBar(s.ProgressPercent, 20), s.ProgressPercent)
		fmt.Fprintf(out, "  attempts     %d (%d successful, %.0f%%)\n", s.TotalAttempts, s.SuccessfulAttempts, s.SuccessRate()*100)
		fmt.Fprintf(out, "  average      %.1f\n", s.AverageScore)
		fmt.Fprintf(out, "  streaks      %d successes, %d failures\n", s.ConsecutiveSuccesses, s.ConsecutiveFailures)
		fmt.Fprintf(out, "  difficulty   %.2f (%s)\n", s.DifficultyMultiplier, mastery.DisplayDifficulty(s.DifficultyMultiplier))
		if counted > 0 {
			fmt.Fprintf(out, "  recent       %.0f%% of the last %d scored attempts\n", accuracy*100, counted)
		}
		if s.MasteredAt != nil {
			fmt.Fprintf(out, "  mastered     %s\n", s.MasteredAt.Local().Format("2006-01-02 15:04"))
		}
		if len(transitions) > 0 {
			fmt.Fprintln(out, theme.Divider(60))
			for _, t := range transitions {
				fmt.Fprintf(out, "  %s  %s -> %s  %s\n",
					t.Timestamp.Local().Format("2006-01-02 15:04"), t.From, t.To, theme.Hint.Render(t.Trigger))
			}
		}
		return nil
	},
}

var stateHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List a student's recorded attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		student, err := requireString(cmd, "student")
		if err != nil {
			return err
		}
		code, _ := cmd.Flags().GetString("competence")
		limit, _ := cmd.Flags().GetInt("limit")

		ap, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		events, err := ap.Events.AttemptEvents(cmd.Context(), student, code, store.QueryOpts{Limit: limit})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		if wantJSON(cmd) {
			return printJSON(cmd, events)
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No attempts recorded.")
			return nil
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-5s  %-16s  %-14s  %-20s  %9s  %s\n",
			"Seq", "Submitted", "Competence", "Exercise", "Composite", "Result")
		fmt.Fprintln(out, theme.Divider(90))
		for _, e := range events {
			result := theme.PassBadge(e.Validated, e.Passed)
			if !e.Validated {
				result += " " + theme.Hint.Render(e.Reason)
			}
			fmt.Fprintf(out, "%-5d  %-16s  %-14s  %-20s  %9.2f  %s\n",
				e.Sequence, e.SubmittedAt.Local().Format("2006-01-02 15:04"),
				e.CompetenceCode, truncate(e.ExerciseID, 20), e.Composite, result)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{stateShowCmd, stateHistoryCmd} {
		c.Flags().String("student", "", "Student ID (required)")
		c.Flags().String("competence", "", "Competence code")
	}
	stateShowCmd.Flags().Int("recent", 10, "Attempts counted for recent accuracy")
	stateHistoryCmd.Flags().Int("limit", 20, "Maximum number of attempts (0 = all)")

	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateHistoryCmd)
}
