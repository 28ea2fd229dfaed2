package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yous2911/fastrevedkids-sub011/internal/engine"
	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
	"github.com/yous2911/fastrevedkids-sub011/internal/ui/theme"
)

var attemptCmd = &cobra.Command{
	Use:   "attempt",
	Short: "Record exercise attempts",
}

var attemptRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Evaluate an attempt and apply it to the student's state",
	Long: "Evaluate an attempt and apply it to the student's state.\n\n" +
		"Correctness exercises pass --score and --success. Fine-motor exercises\n" +
		"pass --trace-file, a JSON file holding {\"trace\": [...], \"reference_path\": [...]}\n" +
		"(\"-\" reads standard input).",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := attemptFromFlags(cmd)
		if err != nil {
			return err
		}

		ap, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		out, err := ap.Engine.RecordAttempt(cmd.Context(), a)
		if err != nil {
			return fmt.Errorf("record attempt: %w", err)
		}
		if wantJSON(cmd) {
			return printJSON(cmd, out)
		}
		printOutcome(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	f := attemptRecordCmd.Flags()
	f.String("student", "", "Student ID (required)")
	f.String("competence", "", "Competence code (required)")
	f.String("exercise", "", "Exercise ID")
	f.String("family", "", "Exercise family, selects the scoring profile")
	f.Float64("score", 0, "Score, 0-100")
	f.Bool("success", false, "Whether the exercise reported success")
	f.Float64("time", 0, "Time spent, in seconds")
	f.String("trace-file", "", "JSON trace capture for fine-motor exercises")

	attemptCmd.AddCommand(attemptRecordCmd)
}

func attemptFromFlags(cmd *cobra.Command) (mastery.AttemptResult, error) {
	student, err := requireString(cmd, "student")
	if err != nil {
		return mastery.AttemptResult{}, err
	}
	code, err := requireString(cmd, "competence")
	if err != nil {
		return mastery.AttemptResult{}, err
	}
	a := mastery.AttemptResult{StudentID: student, CompetenceCode: code}
	a.ExerciseID, _ = cmd.Flags().GetString("exercise")
	a.ExerciseFamily, _ = cmd.Flags().GetString("family")
	a.Score, _ = cmd.Flags().GetFloat64("score")
	a.Success, _ = cmd.Flags().GetBool("success")
	a.TimeSpentSeconds, _ = cmd.Flags().GetFloat64("time")

	if path, _ := cmd.Flags().GetString("trace-file"); path != "" {
		capture, err := readTrace(cmd.InOrStdin(), path)
		if err != nil {
			return mastery.AttemptResult{}, err
		}
		a.Trace = capture.Trace
		a.ReferencePath = capture.ReferencePath
	}
	return a, nil
}

type traceCapture struct {
	Trace         []mastery.TraceSample `json:"trace"`
	ReferencePath []mastery.Point       `json:"reference_path"`
}

func readTrace(stdin io.Reader, path string) (traceCapture, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return traceCapture{}, fmt.Errorf("read trace: %w", err)
	}
	var c traceCapture
	if err := json.Unmarshal(data, &c); err != nil {
		return traceCapture{}, fmt.Errorf("parse trace: %w", err)
	}
	return c, nil
}

func printOutcome(w io.Writer, out *engine.AttemptOutcome) {
	ev := out.Evaluation
	s := out.NewState

	fmt.Fprintf(w, "%s  %s  composite %.2f (threshold %.0f, profile %s/%s)\n",
		theme.Title.Render(s.CompetenceCode), theme.PassBadge(ev.Validated, ev.Passed),
		ev.Composite, ev.PassThreshold, ev.Profile, ev.ProfileVersion)
	if !ev.Validated {
		fmt.Fprintln(w, theme.Hint.Render("  not scored: "+ev.Reason+"; state unchanged"))
		return
	}
	if len(ev.Axes) > 1 {
		for _, axis := range []mastery.Axis{
			mastery.AxisPrecision, mastery.AxisSpeed, mastery.AxisFluidity,
			mastery.AxisInclination, mastery.AxisPressure,
		} {
			fmt.Fprintf(w, "  %-12s %6.2f\n", axis, ev.Axes[axis])
		}
	}

	fmt.Fprintf(w, "  level       %s\n", theme.LevelBadge(s.Level))
	fmt.Fprintf(w, "  progress    %s %d%%\n", theme.ProgressBar(s.ProgressPercent, 20), s.ProgressPercent)
	fmt.Fprintf(w, "  attempts    %d (%d successful)\n", s.TotalAttempts, s.SuccessfulAttempts)
	fmt.Fprintf(w, "  difficulty  %.2f (%s)\n", s.DifficultyMultiplier, mastery.DisplayDifficulty(s.DifficultyMultiplier))

	if tr := out.Transition; tr != nil {
		fmt.Fprintf(w, "  %s %s -> %s (%s)\n", theme.Title.Render("level change"), tr.From, tr.To, tr.Trigger)
	}
	if len(out.Unlocked) > 0 {
		fmt.Fprintf(w, "  %s %s\n", theme.Correct.Render("unlocked"), strings.Join(out.Unlocked, ", "))
	}
	if r := out.Revision; r != nil {
		fmt.Fprintf(w, "  next revision %s (id %s)\n", r.ScheduledFor.Local().Format("2006-01-02 15:04"), r.ID)
	}
}
