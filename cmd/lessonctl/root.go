package main

import (
	"encoding/json"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ligth279/xilov5-overhual/internal/config"
	"github.com/ligth279/xilov5-overhual/internal/repository"
	"github.com/ligth279/xilov5-overhual/internal/service"
)

var rootCmd = &cobra.Command{
	Use:           "lessonctl",
	Short:         "Inspect and validate Xilo lesson content",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("dir", "", "Lessons directory (overrides XILO_LESSONS_DIR)")
	rootCmd.PersistentFlags().Bool("json", false, "Print machine readable JSON")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
}

// resolveLessonsDir returns the --dir flag, then the configured lessons directory.
func resolveLessonsDir(cmd *cobra.Command) (string, error) {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.LessonsDir, nil
}

func openLessons(cmd *cobra.Command) (repository.LessonRepository, service.LessonService, error) {
	dir, err := resolveLessonsDir(cmd)
	if err != nil {
		return nil, nil, err
	}
	repo, err := repository.NewFileLessonRepository(dir)
	if err != nil {
		return nil, nil, err
	}
	return repo, service.NewLessonService(repo, nil, 0, zerolog.Nop()), nil
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
