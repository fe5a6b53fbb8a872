package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRebuildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Re-embed every memory with the current backend",
		Long: `Recompute all vectors and associations. Needed after switching the
embedding backend or changing its dimension.`,
		Args: cobra.NoArgs,
		RunE: makeRebuildRunner(a),
	}
}

func makeRebuildRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		n, err := eng.Rebuild(cmd.Context())
		if err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "re-embedded %d memories\n", n)
		return nil
	}
}
