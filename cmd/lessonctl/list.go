package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [grade] [subject]",
	Short: "List grades, subjects of a grade, or lessons of a subject",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, lessons, err := openLessons(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer tw.Flush()

		switch len(args) {
		case 0:
			grades, err := lessons.ListGrades(ctx)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), grades)
			}
			fmt.Fprintln(tw, "GRADE\tNAME\tSUBJECTS")
			for _, g := range grades {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", g.ID, g.Name, len(g.Subjects))
			}
		case 1:
			subjects, err := lessons.ListSubjects(ctx, args[0])
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), subjects)
			}
			fmt.Fprintln(tw, "SUBJECT\tNAME\tLESSONS")
			for _, s := range subjects {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", s.ID, s.Name, s.LessonCount)
			}
		default:
			summaries, err := lessons.ListLessons(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), summaries)
			}
			fmt.Fprintln(tw, "LESSON\tTITLE\tDIFFICULTY\tMINUTES")
			for _, l := range summaries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", l.ID, l.Title, l.Difficulty, l.EstimatedTimeMinutes)
			}
		}
		return nil
	},
}
