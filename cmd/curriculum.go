package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yous2911/fastrevedkids-sub011/internal/competence"
	"github.com/yous2911/fastrevedkids-sub011/internal/curriculum"
	"github.com/yous2911/fastrevedkids-sub011/internal/ui/theme"
)

var curriculumCmd = &cobra.Command{
	Use:   "curriculum",
	Short: "Inspect and validate competence curricula",
}

var curriculumValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a curriculum file and build its competence graph",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path = cfg.Curriculum
		}

		file, g, err := buildCurriculum(path)
		if err != nil {
			var cfgErr *competence.ConfigError
			if errors.As(err, &cfgErr) {
				out := cmd.ErrOrStderr()
				fmt.Fprintln(out, theme.Incorrect.Render("Curriculum refused"))
				for _, p := range cfgErr.Problems {
					fmt.Fprintln(out, "  -", p)
				}
				if len(cfgErr.Cycle) > 0 {
					fmt.Fprintln(out, "  cycle:", strings.Join(cfgErr.Cycle, " -> "))
				}
			}
			return err
		}

		sum := file.Summarize()
		if wantJSON(cmd) {
			return printJSON(cmd, sum)
		}
		fmt.Fprintln(cmd.OutOrStdout(), theme.Correct.Render("Curriculum OK"))
		fmt.Fprintf(cmd.OutOrStdout(), "  version      %s\n", sum.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "  competences  %d\n", sum.Competences)
		fmt.Fprintf(cmd.OutOrStdout(), "  edges        %d required, %d recommended, %d helpful\n",
			sum.Edges[competence.EdgeRequired], sum.Edges[competence.EdgeRecommended], sum.Edges[competence.EdgeHelpful])
		fmt.Fprintf(cmd.OutOrStdout(), "  levels       %s\n", strings.Join(sum.Levels, ", "))
		fmt.Fprintf(cmd.OutOrStdout(), "  subjects     %s\n", strings.Join(sum.Subjects, ", "))
		fmt.Fprintf(cmd.OutOrStdout(), "  roots        %s\n", strings.Join(g.Roots(), ", "))
		return nil
	},
}

var curriculumListCmd = &cobra.Command{
	Use:   "list",
	Short: "List competences in prerequisite order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		_, g, err := buildCurriculum(cfg.Curriculum)
		if err != nil {
			return err
		}

		subject, _ := cmd.Flags().GetString("subject")
		level, _ := cmd.Flags().GetString("level")

		var nodes []competence.Node
		for _, code := range g.TopologicalOrder() {
			n, _ := g.Node(code)
			if subject != "" && n.Subject != subject {
				continue
			}
			if level != "" && n.Level != level {
				continue
			}
			nodes = append(nodes, n)
		}
		if wantJSON(cmd) {
			return printJSON(cmd, nodes)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-14s  %-44s  %-5s  %5s  %s\n", "Code", "Title", "Level", "Depth", "Requires")
		fmt.Fprintln(out, theme.Divider(100))
		for _, n := range nodes {
			prereqs, _ := g.Prerequisites(n.Code)
			var required []string
			for _, e := range prereqs {
				if e.Blocks() {
					required = append(required, fmt.Sprintf("%s>=%d", e.Source, e.Threshold))
				}
			}
			fmt.Fprintf(out, "%-14s  %-44s  %-5s  %5d  %s\n",
				n.Code, truncate(n.Title, 44), n.Level, g.Depth(n.Code), strings.Join(required, ", "))
		}
		fmt.Fprintf(out, "\n%d competences\n", len(nodes))
		return nil
	},
}

func init() {
	curriculumListCmd.Flags().String("subject", "", "Filter by subject (e.g. MA, FR)")
	curriculumListCmd.Flags().String("level", "", "Filter by school level (e.g. CP, CE1)")

	curriculumCmd.AddCommand(curriculumValidateCmd)
	curriculumCmd.AddCommand(curriculumListCmd)
}

// buildCurriculum loads path, or the built-in seed when path is empty,
// and builds its graph.
func buildCurriculum(path string) (*curriculum.File, *competence.Graph, error) {
	var (
		file *curriculum.File
		err  error
	)
	if path == "" {
		file, err = curriculum.Seed()
	} else {
		file, err = curriculum.Load(path)
	}
	if err != nil {
		return nil, nil, err
	}
	g, err := file.Graph()
	if err != nil {
		return nil, nil, err
	}
	return file, g, nil
}
