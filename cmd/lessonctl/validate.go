package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Schema-check every lesson listed in metadata.json",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, _, err := openLessons(cmd)
		if err != nil {
			return err
		}

		issues := repo.Validate(cmd.Context())
		out := cmd.OutOrStdout()
		if wantJSON(cmd) {
			report := make([]map[string]string, 0, len(issues))
			for _, issue := range issues {
				report = append(report, map[string]string{
					"grade":     issue.Grade,
					"subject":   issue.Subject,
					"lesson_id": issue.LessonID,
					"file":      issue.File,
					"error":     issue.Err.Error(),
				})
			}
			if err := printJSON(out, report); err != nil {
				return err
			}
		} else {
			for _, issue := range issues {
				fmt.Fprintf(out, "FAIL %s\n", issue.Error())
			}
		}

		if len(issues) > 0 {
			return fmt.Errorf("%d lesson(s) failed validation", len(issues))
		}
		if !wantJSON(cmd) {
			fmt.Fprintln(out, "all lessons valid")
		}
		return nil
	},
}
