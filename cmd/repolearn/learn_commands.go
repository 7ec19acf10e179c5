package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"repolearn/internal/config"
	"repolearn/internal/fileutil"
	"repolearn/internal/learning"
	"repolearn/internal/store"
	"repolearn/internal/textutil"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "plan <repo-url>",
		Short: "Generate (or show the cached) chapter plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession(cmd, args[0], "plan")
			if err != nil {
				return err
			}
			defer sess.Close()

			_, record, err := sess.plan(refresh)
			if err != nil {
				return err
			}
			if handled, err := writeStructured(ctx, cmd, record.Plans); handled {
				return err
			}
			printPlan(cmd, record)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Regenerate the plan even when a cached one exists")
	return cmd
}

func printPlan(cmd *cobra.Command, record store.PlanRecord) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(record.Plans))
	for _, plan := range record.Plans {
		minutes := ""
		if plan.EstimatedMinutes > 0 {
			minutes = strconv.Itoa(plan.EstimatedMinutes)
		}
		rows = append(rows, []string{plan.ID, plan.Title, plan.Summary, minutes, strconv.Itoa(len(plan.Tasks))})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Title", "Summary", "Minutes", "Tasks"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	))
	if note := fallbackNote(record.Fallback, ""); note != "" {
		fmt.Fprintln(out, note)
	}
}

func newChapterCommand(ctx *commandContext) *cobra.Command {
	var (
		refresh bool
		saveDir string
	)

	cmd := &cobra.Command{
		Use:   "chapter <repo-url> <chapter-id>",
		Short: "Generate (or show the cached) content for one chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession(cmd, args[0], "chapter")
			if err != nil {
				return err
			}
			defer sess.Close()

			_, record, reason, err := sess.chapter(args[1], refresh)
			if err != nil {
				return err
			}
			markdown := chapterMarkdown(record.Chapter)
			if strings.TrimSpace(saveDir) != "" {
				path, err := saveChapter(saveDir, sess.ref.FullName(), record.Chapter, markdown)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved chapter to %s\n", path)
			}
			if handled, err := writeStructured(ctx, cmd, record.Chapter); handled {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderMarkdown(out, markdown))
			if note := fallbackNote(record.Fallback, reason); note != "" {
				fmt.Fprintln(out, note)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Regenerate the chapter even when a cached one exists")
	cmd.Flags().StringVar(&saveDir, "save-dir", "", "Also write the chapter as markdown into this directory")
	return cmd
}

func chapterMarkdown(chapter learning.Chapter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", chapter.Title, chapter.Summary)
	if len(chapter.Objectives) > 0 {
		b.WriteString("## Objectives\n\n")
		for _, objective := range chapter.Objectives {
			fmt.Fprintf(&b, "- %s\n", objective)
		}
		b.WriteString("\n")
	}
	b.WriteString(strings.TrimSpace(chapter.Content))
	b.WriteString("\n\n")
	if len(chapter.ReadingItems) > 0 {
		b.WriteString("## Reading\n\n")
		for _, item := range chapter.ReadingItems {
			target := item.Path
			if target == "" {
				target = item.URL
			}
			fmt.Fprintf(&b, "- %s (`%s`)", item.Title, target)
			if item.Description != "" {
				fmt.Fprintf(&b, ": %s", item.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(chapter.Tasks) > 0 {
		b.WriteString("## Tasks\n\n")
		for _, task := range chapter.Tasks {
			box := " "
			if task.Status == learning.TaskDone {
				box = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s", box, task.Title)
			if task.Description != "" {
				fmt.Fprintf(&b, ": %s", task.Description)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func saveChapter(dir, repo string, chapter learning.Chapter, markdown string) (string, error) {
	expanded, err := config.ExpandPath(dir)
	if err != nil {
		return "", fmt.Errorf("resolve save directory: %w", err)
	}
	name := textutil.FileStem(repo, chapter.ID) + ".md"
	path := filepath.Join(expanded, name)
	if err := fileutil.WriteFileAtomic(path, []byte(markdown), 0o644); err != nil {
		return "", fmt.Errorf("write chapter: %w", err)
	}
	return path, nil
}

func newQuizCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "quiz <repo-url> <chapter-id>",
		Short: "Start a quiz attempt for a chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession(cmd, args[0], "quiz")
			if err != nil {
				return err
			}
			defer sess.Close()

			ingested, chapterRecord, _, err := sess.chapter(args[1], false)
			if err != nil {
				return err
			}
			outcome, err := sess.tutor.GenerateQuiz(sess.ctx, ingested.Context, chapterRecord.Chapter)
			if err != nil {
				return err
			}
			attempt := learning.NewQuizAttempt(chapterRecord.Chapter.ID, outcome.Value, time.Now())
			if err := sess.store.SaveAttempt(sess.ctx, sess.ref.FullName(), attempt); err != nil {
				return err
			}

			if handled, err := writeStructured(ctx, cmd, attempt); handled {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Quiz attempt %s (%s)\n\n", attempt.ID, attempt.ChapterID)
			for _, question := range attempt.Questions {
				fmt.Fprintf(out, "%s. %s\n", question.ID, question.Prompt)
				if question.Rubric != "" {
					fmt.Fprintf(out, "   Rubric: %s\n", question.Rubric)
				}
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Answer in a YAML file keyed by question id, then run:\n  repolearn grade %s %s --answers answers.yaml\n", sess.ref.URL, attempt.ID)
			if note := fallbackNote(outcome.Fallback, outcome.Reason); note != "" {
				fmt.Fprintln(out, note)
			}
			return nil
		},
	}
}
