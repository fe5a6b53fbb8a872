package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewAssocCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assoc <id>",
		Short: "Discover associated memories",
		Long:  `Walk the association graph from a memory and list what it connects to, strongest association first. Multi-hop associations carry the weight of their weakest link.`,
		Args:  cobra.ExactArgs(1),
		RunE:  makeAssocRunner(a),
	}

	cmd.Flags().Int("depth", 0, "Maximum hops to follow (0 uses the default)")
	cmd.Flags().IntP("limit", "n", 0, "Maximum results (0 uses the default)")
	return cmd
}

func makeAssocRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		depth, _ := cmd.Flags().GetInt("depth")
		limit, _ := cmd.Flags().GetInt("limit")

		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}
		id, err := eng.ResolveID(args[0])
		if err != nil {
			return fmt.Errorf("resolve id: %w", err)
		}

		results, err := eng.Discover(id, depth, limit)
		if err != nil {
			return fmt.Errorf("discover: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, results)
		}
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%.4f  hop %d  %s  %s\n",
				r.Weight, r.Hops, short(r.ID), oneline(r.Memory.Content, 60))
		}
		return nil
	}
}
