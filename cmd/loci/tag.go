package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewTagCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag <id>",
		Short: "Suggest tags for a memory",
		Long: `Ask the default LLM provider for tags describing a memory. With --apply
the suggestions are written back to the memory's metadata.`,
		Args: cobra.ExactArgs(1),
		RunE: makeTagRunner(a),
	}

	cmd.Flags().Bool("apply", false, "Write suggested tags to the memory")
	return cmd
}

func makeTagRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		apply, _ := cmd.Flags().GetBool("apply")

		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		id, err := eng.ResolveID(args[0])
		if err != nil {
			return err
		}

		suggestion, err := eng.SuggestTags(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("suggest tags: %w", err)
		}

		if apply {
			mem, err := eng.ApplyTags(cmd.Context(), id, suggestion.Tags)
			if err != nil {
				return fmt.Errorf("apply tags: %w", err)
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd, mem)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tagged %s: %v\n", short(id), mem.Metadata.Tags())
			return nil
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, suggestion)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "tags: %v\n", suggestion.Tags)
		if suggestion.Category != "" {
			fmt.Fprintf(out, "category: %s\n", suggestion.Category)
		}
		fmt.Fprintf(out, "confidence: %.2f\n", suggestion.Confidence)
		return nil
	}
}
