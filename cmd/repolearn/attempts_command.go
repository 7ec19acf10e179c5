package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"repolearn/internal/learning"
)

func newAttemptsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "attempts <repo-url> <chapter-id>",
		Short: "List quiz attempts for a chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession(cmd, args[0], "attempts")
			if err != nil {
				return err
			}
			defer sess.Close()

			attempts, err := sess.store.Attempts(sess.ctx, sess.ref.FullName(), args[1])
			if err != nil {
				return err
			}
			if handled, err := writeStructured(ctx, cmd, attempts); handled {
				return err
			}

			out := cmd.OutOrStdout()
			if len(attempts) == 0 {
				fmt.Fprintf(out, "No quiz attempts for %s yet. Start one with: repolearn quiz %s %s\n", args[1], sess.ref.URL, args[1])
				return nil
			}
			latest, _ := learning.LatestAttempt(attempts, args[1])
			rows := make([][]string, 0, len(attempts))
			for _, attempt := range attempts {
				marker := ""
				if attempt.ID == latest.ID {
					marker = "*"
				}
				score := "-"
				if attempt.Score != nil {
					score = formatScore(*attempt.Score)
				}
				answered := fmt.Sprintf("%d/%d", attempt.Answered(), len(attempt.Questions))
				rows = append(rows, []string{marker, attempt.ID, string(attempt.Status), answered, score, attempt.UpdatedAt.Local().Format(time.DateTime)})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"", "Attempt", "Status", "Answered", "Score", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}
