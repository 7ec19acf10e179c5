package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"repolearn/internal/learning"
)

func newAskCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <repo-url> <chapter-id> <question...>",
		Short: "Ask a question about a chapter",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args[2:], " ")

			sess, err := ctx.openSession(cmd, args[0], "ask")
			if err != nil {
				return err
			}
			defer sess.Close()

			ingested, chapterRecord, _, err := sess.chapter(args[1], false)
			if err != nil {
				return err
			}
			repo := sess.ref.FullName()
			history, err := sess.store.Messages(sess.ctx, repo, chapterRecord.Chapter.ID)
			if err != nil {
				return err
			}
			outcome, err := sess.tutor.AnswerQuestion(sess.ctx, ingested.Context, chapterRecord.Chapter, history, question)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			if err := sess.store.AppendMessages(sess.ctx, repo, chapterRecord.Chapter.ID,
				learning.Message{Role: learning.RoleUser, Content: strings.TrimSpace(question), CreatedAt: now},
				learning.Message{Role: learning.RoleAssistant, Content: outcome.Value.Answer, CreatedAt: now},
			); err != nil {
				return err
			}

			if handled, err := writeStructured(ctx, cmd, outcome.Value); handled {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderMarkdown(out, outcome.Value.Answer+"\n"))
			if len(outcome.Value.Citations) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Sources:")
				for _, citation := range outcome.Value.Citations {
					fmt.Fprintf(out, "  - %s\n", citation)
				}
			}
			if note := fallbackNote(outcome.Fallback, outcome.Reason); note != "" {
				fmt.Fprintln(out, note)
			}
			return nil
		},
	}
}
