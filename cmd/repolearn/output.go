package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"repolearn/internal/textutil"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"

	markdownWrap = 100
)

// writeStructured encodes v as JSON or YAML according to the --format flag.
// It reports false for text output so callers render their own view.
func writeStructured(ctx *commandContext, cmd *cobra.Command, v any) (bool, error) {
	switch ctx.format() {
	case formatJSON:
		return true, writeJSON(cmd, v)
	case formatYAML:
		return true, writeYAML(cmd, v)
	default:
		return false, nil
	}
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML encodes v as YAML to the command's stdout.
func writeYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    72,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// renderMarkdown styles markdown for terminals and returns it unchanged for
// pipes and files.
func renderMarkdown(out io.Writer, markdown string) string {
	if !isTerminal(out) {
		return markdown
	}
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(markdownWrap))
	if err != nil {
		return markdown
	}
	styled, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return styled
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func formatScore(score float64) string {
	return fmt.Sprintf("%.0f%%", score*100)
}

func fallbackNote(fallback bool, reason string) string {
	if !fallback {
		return ""
	}
	if strings.TrimSpace(reason) == "" {
		return "Note: generation failed; showing placeholder content."
	}
	return "Note: generation failed (" + textutil.Snippet(reason, textutil.DefaultSnippetRunes) + "); showing placeholder content."
}
