package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yous2911/fastrevedkids-sub011/internal/ui/theme"
)

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Manage the student directory",
}

var studentAddCmd = &cobra.Command{
	Use:   "add [id]",
	Short: "Register a student (a random ID is generated when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := uuid.NewString()
		if len(args) == 1 {
			id = args[0]
		}
		name, _ := cmd.Flags().GetString("name")

		ap, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		st, err := ap.Students.Add(cmd.Context(), id, name)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, st)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s %s\n", theme.Title.Render(st.ID), st.DisplayName)
		return nil
	},
}

var studentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered students",
	RunE: func(cmd *cobra.Command, args []string) error {
		ap, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		students, err := ap.Students.List(cmd.Context())
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd, students)
		}
		if len(students) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No students registered.")
			return nil
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-36s  %-24s  %s\n", "ID", "Name", "Registered")
		fmt.Fprintln(out, theme.Divider(80))
		for _, st := range students {
			fmt.Fprintf(out, "%-36s  %-24s  %s\n", st.ID, truncate(st.DisplayName, 24), st.CreatedAt.Local().Format("2006-01-02"))
		}
		fmt.Fprintf(out, "\n%d students\n", len(students))
		return nil
	},
}

func init() {
	studentAddCmd.Flags().String("name", "", "Display name")

	studentCmd.AddCommand(studentAddCmd)
	studentCmd.AddCommand(studentListCmd)
}
