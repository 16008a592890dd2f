package main

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/spf13/cobra"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var (
		reset  bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ingest [paths...]",
		Short: "Chunk and index documents",
		Long: `Chunk and index documents. Paths are absolute or relative to the source directory.
Without paths, every supported file under the source directory is ingested.
Ingesting a file twice stores its chunks twice; use --reset to rebuild the collection.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if reset {
				if err := a.service.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Collection reset.")
			}
			stats, err := a.service.Ingest(cmd.Context(), args)
			if err != nil {
				return err
			}
			return cli.WriteIngestion(cmd.OutOrStdout(), stats, outputFormat(asJSON))
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "remove every indexed entry before ingesting")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func outputFormat(asJSON bool) cli.OutputFormat {
	if asJSON {
		return cli.OutputJSON
	}
	return cli.OutputText
}
