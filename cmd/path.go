package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yous2911/fastrevedkids-sub011/internal/engine"
	"github.com/yous2911/fastrevedkids-sub011/internal/learningpath"
	"github.com/yous2911/fastrevedkids-sub011/internal/ui/theme"
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show and steer a student's learning path",
}

var pathShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Recommend what the student should work on next",
	RunE: func(cmd *cobra.Command, args []string) error {
		student, err := requireString(cmd, "student")
		if err != nil {
			return err
		}
		maxItems, _ := cmd.Flags().GetInt("max")

		ap, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		recs, err := ap.Engine.GetLearningPath(cmd.Context(), student, maxItems)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, recs)
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to recommend.")
			return nil
		}

		g, err := ap.Engine.Graph()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, r := range recs {
			code := r.CompetenceCode()
			title := ""
			if n, err := g.Node(code); err == nil {
				title = n.Title
			}
			kind := theme.Title.Render("new")
			detail := ""
			if r.Kind == learningpath.KindRevision {
				kind = theme.Pending.Render("revise")
				detail = theme.Hint.Render(fmt.Sprintf("priority %.2f", r.Revision.Priority))
			}
			fmt.Fprintf(out, "%2d. %s  %-14s  %-44s  %s\n", i+1, theme.Pad(kind, 6), code, truncate(title, 44), detail)
		}
		return nil
	},
}

var pathEntriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List the student's path status for every competence",
	RunE: func(cmd *cobra.Command, args []string) error {
		student, err := requireString(cmd, "student")
		if err != nil {
			return err
		}

		ap, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		entries, err := ap.Engine.PathEntries(cmd.Context(), student)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, entries)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%5s  %-14s  %-12s  %s\n", "Order", "Competence", "Status", "Blocked by")
		fmt.Fprintln(out, theme.Divider(70))
		for _, e := range entries {
			fmt.Fprintf(out, "%5d  %-14s  %s  %s\n",
				e.OrderIndex, e.CompetenceCode, theme.Pad(theme.StatusBadge(e.Status), 12), strings.Join(e.BlockingReasons, ", "))
		}
		return nil
	},
}

var pathSkipCmd = &cobra.Command{
	Use:   "skip",
	Short: "Take a competence out of the student's recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return pathTransition(cmd, func(ctx context.Context, e *engine.Engine, student, code string) (learningpath.Entry, error) {
			return e.SkipCompetence(ctx, student, code)
		})
	},
}

var pathRelockCmd = &cobra.Command{
	Use:   "relock",
	Short: "Lock a competence again after its prerequisites were invalidated",
	RunE: func(cmd *cobra.Command, args []string) error {
		blockers, _ := cmd.Flags().GetStringSlice("blocker")
		return pathTransition(cmd, func(ctx context.Context, e *engine.Engine, student, code string) (learningpath.Entry, error) {
			return e.RelockCompetence(ctx, student, code, blockers...)
		})
	},
}

var pathRecheckCmd = &cobra.Command{
	Use:   "recheck",
	Short: "Re-evaluate the dependents of a competence and unlock those now reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		student, err := requireString(cmd, "student")
		if err != nil {
			return err
		}
		code, err := requireString(cmd, "competence")
		if err != nil {
			return err
		}

		ap, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		unlocked, err := ap.Engine.OnMastered(cmd.Context(), student, code)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, unlocked)
		}
		if len(unlocked) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No competence unlocked.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), theme.Correct.Render("unlocked"), strings.Join(unlocked, ", "))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{pathShowCmd, pathEntriesCmd, pathSkipCmd, pathRelockCmd, pathRecheckCmd} {
		c.Flags().String("student", "", "Student ID (required)")
	}
	for _, c := range []*cobra.Command{pathSkipCmd, pathRelockCmd, pathRecheckCmd} {
		c.Flags().String("competence", "", "Competence code (required)")
	}
	pathShowCmd.Flags().Int("max", 10, "Maximum number of recommendations (0 = all)")
	pathRelockCmd.Flags().StringSlice("blocker", nil, "Blocking competence (default: unmet prerequisites)")

	pathCmd.AddCommand(pathShowCmd)
	pathCmd.AddCommand(pathEntriesCmd)
	pathCmd.AddCommand(pathSkipCmd)
	pathCmd.AddCommand(pathRelockCmd)
	pathCmd.AddCommand(pathRecheckCmd)
}

type entryFunc func(ctx context.Context, e *engine.Engine, student, code string) (learningpath.Entry, error)

// pathTransition runs one status change on --student/--competence and
// prints the resulting entry.
func pathTransition(cmd *cobra.Command, fn entryFunc) error {
	student, err := requireString(cmd, "student")
	if err != nil {
		return err
	}
	code, err := requireString(cmd, "competence")
	if err != nil {
		return err
	}

	ap, closeApp, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp()

	entry, err := fn(cmd.Context(), ap.Engine, student, code)
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return printJSON(cmd, entry)
	}
	line := fmt.Sprintf("%s is now %s", entry.CompetenceCode, theme.StatusBadge(entry.Status))
	if len(entry.BlockingReasons) > 0 {
		line += " (blocked by " + strings.Join(entry.BlockingReasons, ", ") + ")"
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)
	return nil
}
