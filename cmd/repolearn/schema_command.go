package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"repolearn/internal/learning"
	"repolearn/internal/services"
)

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "schema [name]",
		Short:       "List or print the JSON schemas model output is validated against",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, name := range learning.SchemaNames() {
					fmt.Fprintln(out, name)
				}
				return nil
			}
			data, err := learning.Schema(args[0])
			if err != nil {
				return services.Wrap(services.ErrNotFound, "cli", "schema",
					fmt.Sprintf("unknown schema %q (available: %s)", args[0], strings.Join(learning.SchemaNames(), ", ")), err)
			}
			_, err = out.Write(data)
			return err
		},
	}
}
