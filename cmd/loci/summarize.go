package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewSummarizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <scope>",
		Short: "Summarize a scope with the configured provider",
		Long: `Send every memory under a scope prefix to the default LLM provider and
print a structured summary. Requires a configured provider.`,
		Args: cobra.ExactArgs(1),
		RunE: makeSummarizeRunner(a),
	}
}

func makeSummarizeRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		summary, err := eng.SummarizeScope(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("summarize: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, summary)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n\n%s\n", summary.Title, summary.Overview)
		if len(summary.KeyPoints) > 0 {
			fmt.Fprintln(out)
			for _, p := range summary.KeyPoints {
				fmt.Fprintf(out, "- %s\n", p)
			}
		}
		if len(summary.Tags) > 0 {
			fmt.Fprintf(out, "\ntags: %v\n", summary.Tags)
		}
		return nil
	}
}
