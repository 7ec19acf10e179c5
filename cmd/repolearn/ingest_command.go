package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"repolearn/internal/ingest"
	"repolearn/internal/store"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var opts ingest.Options

	cmd := &cobra.Command{
		Use:   "ingest <repo-url>",
		Short: "Fetch a bounded, representative set of repository files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession(cmd, args[0], "ingest")
			if err != nil {
				return err
			}
			defer sess.Close()

			record, err := sess.runIngest(opts)
			if err != nil {
				return err
			}
			if handled, err := writeStructured(ctx, cmd, record.Context); handled {
				return err
			}
			printIngest(cmd, record)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.MaxFiles, "max-files", 0, "Maximum number of files to select (default from config)")
	cmd.Flags().Int64Var(&opts.MaxBytes, "max-bytes", 0, "Maximum total bytes to fetch (default from config)")
	cmd.Flags().Int64Var(&opts.MaxFileBytes, "max-file-bytes", 0, "Maximum size of a single file (default from config)")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "Maximum path depth (default from config)")
	return cmd
}

func printIngest(cmd *cobra.Command, record store.IngestRecord) {
	out := cmd.OutOrStdout()
	repo := record.Context

	rows := make([][]string, 0, len(repo.Files))
	for _, file := range repo.Files {
		rows = append(rows, []string{file.Path, string(file.Category), strconv.FormatInt(file.Size, 10)})
	}
	fmt.Fprintf(out, "%s (%s)\n", repo.Repo.URL, repo.Repo.DefaultBranch)
	if repo.Repo.Description != "" {
		fmt.Fprintln(out, repo.Repo.Description)
	}
	fmt.Fprintln(out, renderTable([]string{"Path", "Category", "Bytes"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
	fmt.Fprintf(out, "Selected %d of %d files (%d bytes, %d skipped)\n",
		repo.Stats.SelectedFiles, repo.Stats.TotalTreeFiles, repo.Stats.TotalBytes, repo.Stats.SkippedFiles)
	for _, warning := range repo.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", warning)
	}
	fmt.Fprintf(out, "Digest: %s\n", record.Digest)
}
