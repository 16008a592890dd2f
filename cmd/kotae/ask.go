package main

import (
	"strings"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/spf13/cobra"
)

// joinArgs joins positional arguments so multi-word questions work with or without quotes.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		topK   int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			answer, err := a.service.Query(cmd.Context(), joinArgs(args), topK)
			if err != nil {
				return err
			}
			return cli.WriteAnswer(cmd.OutOrStdout(), answer, outputFormat(asJSON))
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to retrieve (0 = config default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON including the prompt")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		topK   int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the chunks nearest to a query without generating an answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			query := joinArgs(args)
			results, err := a.service.Retrieve(cmd.Context(), query, topK)
			if err != nil {
				return err
			}
			return cli.WriteResults(cmd.OutOrStdout(), query, results, outputFormat(asJSON))
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to return (0 = config default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.service.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteStatus(cmd.OutOrStdout(), st, outputFormat(asJSON))
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
