package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"repolearn/internal/learning"
	"repolearn/internal/logging"
	"repolearn/internal/services"
)

func newGradeCommand(ctx *commandContext) *cobra.Command {
	var (
		answersPath  string
		allowPartial bool
	)

	cmd := &cobra.Command{
		Use:   "grade <repo-url> <attempt-id>",
		Short: "Record answers for a quiz attempt and grade it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			answers, err := readAnswers(cmd, answersPath)
			if err != nil {
				return err
			}

			sess, err := ctx.openSession(cmd, args[0], "grade")
			if err != nil {
				return err
			}
			defer sess.Close()

			repo := sess.ref.FullName()
			attempt, err := sess.store.Attempt(sess.ctx, repo, args[1])
			if err != nil {
				return err
			}

			attempt.Responses = learning.BuildResponses(attempt.Questions, answers, attempt.Responses)
			attempt.UpdatedAt = time.Now().UTC()
			answered := make(map[string]string, len(attempt.Responses))
			for _, response := range attempt.Responses {
				answered[response.QuestionID] = response.Answer
			}
			if !learning.AllAnswered(attempt.Questions, answered) && !allowPartial {
				if err := sess.store.SaveAttempt(sess.ctx, repo, attempt); err != nil {
					return err
				}
				return services.Wrap(services.ErrValidation, "cli", "grade",
					"unanswered questions: "+strings.Join(unanswered(attempt.Questions, answered), ", ")+" (answers saved; use --allow-partial to grade anyway)", nil)
			}

			ingested, chapterRecord, _, err := sess.chapter(attempt.ChapterID, false)
			if err != nil {
				return err
			}
			outcome, err := sess.tutor.GradeQuiz(sess.ctx, ingested.Context, chapterRecord.Chapter, attempt)
			if err != nil {
				return err
			}
			graded := learning.ApplyGrading(attempt, outcome.Value, time.Now())
			if err := sess.store.SaveAttempt(sess.ctx, repo, graded); err != nil {
				return err
			}
			logging.WithContext(sess.ctx, sess.logger).Info("quiz graded",
				logging.String("attempt_id", graded.ID),
				logging.Float64("score", *graded.Score),
				logging.Int("answered", graded.Answered()),
				logging.Bool("fallback", outcome.Fallback),
			)

			if handled, err := writeStructured(ctx, cmd, graded); handled {
				return err
			}
			printGrading(cmd, graded, outcome.Fallback, outcome.Reason)
			return nil
		},
	}

	cmd.Flags().StringVarP(&answersPath, "answers", "a", "", "YAML file mapping question ids to answers (- for stdin)")
	cmd.Flags().BoolVar(&allowPartial, "allow-partial", false, "Grade even when some questions are unanswered")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func readAnswers(cmd *cobra.Command, path string) (map[string]string, error) {
	var (
		data []byte
		err  error
	)
	if strings.TrimSpace(path) == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "cli", "grade", "read answers", err)
	}
	answers := map[string]string{}
	if err := yaml.Unmarshal(data, &answers); err != nil {
		return nil, services.Wrap(services.ErrValidation, "cli", "grade", "answers must map question ids to text", err)
	}
	return answers, nil
}

func unanswered(questions []learning.QuizQuestion, answers map[string]string) []string {
	var missing []string
	for _, question := range questions {
		if strings.TrimSpace(answers[question.ID]) == "" {
			missing = append(missing, question.ID)
		}
	}
	return missing
}

func printGrading(cmd *cobra.Command, attempt learning.QuizAttempt, fallback bool, reason string) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(attempt.Responses))
	for _, response := range attempt.Responses {
		score := "-"
		if response.Score != nil {
			score = formatScore(*response.Score)
		}
		rows = append(rows, []string{response.QuestionID, score, response.Feedback})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Question", "Score", "Feedback"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft},
	))
	if attempt.Score != nil {
		fmt.Fprintf(out, "Overall: %s\n", formatScore(*attempt.Score))
	}
	if attempt.Feedback != "" {
		fmt.Fprintln(out, attempt.Feedback)
	}
	if note := fallbackNote(fallback, reason); note != "" {
		fmt.Fprintln(out, note)
	}
}
