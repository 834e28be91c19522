package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find lessons whose title or id matches the query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, lessons, err := openLessons(cmd)
		if err != nil {
			return err
		}

		results, err := lessons.Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(cmd.OutOrStdout(), results)
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no lessons found")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer tw.Flush()
		fmt.Fprintln(tw, "GRADE\tSUBJECT\tLESSON\tTITLE")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Grade, r.Subject, r.LessonID, r.Title)
		}
		return nil
	},
}
