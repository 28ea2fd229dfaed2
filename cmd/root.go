package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yous2911/fastrevedkids-sub011/internal/app"
	"github.com/yous2911/fastrevedkids-sub011/internal/config"
	"github.com/yous2911/fastrevedkids-sub011/internal/platform/logger"
	"github.com/yous2911/fastrevedkids-sub011/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "revedkids",
	Short: "Adaptive learning engine",
	Long: "revedkids tracks each student's mastery of a curriculum of competences, " +
		"schedules spaced revisions and recommends what to learn next.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides REVEDKIDS_DB env var)")
	rootCmd.PersistentFlags().String("curriculum", "", "Curriculum YAML file (overrides REVEDKIDS_CURRICULUM, default: built-in seed)")
	rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON")

	rootCmd.AddCommand(curriculumCmd)
	rootCmd.AddCommand(attemptCmd)
	rootCmd.AddCommand(revisionsCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(studentCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		if err := store.EnsureDir(p); err != nil {
			return config.Config{}, fmt.Errorf("resolve DB path: %w", err)
		}
		cfg.DBPath = p
	}
	if p, _ := cmd.Flags().GetString("curriculum"); p != "" {
		cfg.Curriculum = p
	}
	return cfg, nil
}

// openApp wires the engine for one command. The caller closes it.
func openApp(cmd *cobra.Command) (*app.App, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return a, func() {
		if err := a.Close(); err != nil {
			log.Warn("close failed", "error", err)
		}
		log.Sync()
	}, nil
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireString(cmd *cobra.Command, name string) (string, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return "", fmt.Errorf("--%s is required", name)
	}
	return v, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
