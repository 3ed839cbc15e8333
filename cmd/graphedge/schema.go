package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	language "github.com/hanpama/graphedge/internal/language"
	schema "github.com/hanpama/graphedge/internal/schema"
)

func newSchemaCmd() *subCommand {
	sc := &subCommand{}
	sc.Cmd = &cobra.Command{
		Use:   "schema",
		Short: "Validate SDL files and print the merged schema",
		Long: `
Loads every --graphql.schema file, validates the merged result and prints it
as normalized SDL. Exits non-zero when the schema is invalid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sources, err := readSources(sc.Conf.GetStringSlice("graphql.schema"))
			if err != nil {
				return err
			}
			ast, err := language.LoadSchema(sources...)
			if err != nil {
				return errors.Wrap(err, "load schema")
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), language.FormatSchema(ast))
			return err
		},
	}
	sc.Cmd.Flags().StringSlice("graphql.schema", nil, "GraphQL SDL file. Repeatable")
	return sc
}

func readSources(paths []string) ([]*language.Source, error) {
	if len(paths) == 0 {
		return nil, errors.New("at least one --graphql.schema file is required")
	}
	sources := make([]*language.Source, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrap(err, "read schema")
		}
		sources = append(sources, &language.Source{Name: p, Input: string(b)})
	}
	return sources, nil
}

func loadSchema(paths []string) (*schema.Schema, error) {
	sources, err := readSources(paths)
	if err != nil {
		return nil, err
	}
	return schema.BuildFromSDL(sources...)
}
