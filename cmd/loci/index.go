package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the approximate search index",
		Long: `Build or inspect the on-disk annoy index used by "search --ann".
The index is a snapshot; rebuild it after bulk changes.`,
	}

	cmd.AddCommand(newIndexBuildCmd(a))
	cmd.AddCommand(newIndexStatusCmd(a))
	return cmd
}

func newIndexBuildCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the annoy index from current vectors",
		Args:  cobra.NoArgs,
		RunE:  makeIndexBuildRunner(a),
	}

	cmd.Flags().Int("trees", 0, "Number of annoy trees (0 uses the configured default)")
	return cmd
}

func makeIndexBuildRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		trees, _ := cmd.Flags().GetInt("trees")

		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		n, err := eng.BuildAnn(trees)
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d memories\n", n)
		return nil
	}
}

func newIndexStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show how many memories the index covers",
		Args:  cobra.NoArgs,
		RunE:  makeIndexStatusRunner(a),
	}
}

func makeIndexStatusRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		st := eng.Stats()
		if st.AnnItems == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "index not built, run \"loci index build\"")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "index covers %d of %d memories\n", st.AnnItems, st.Memories)
		return nil
	}
}
