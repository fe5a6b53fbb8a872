package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list [scope]",
		Aliases: []string{"ls"},
		Short:   "List memories",
		Long:    `List memories, optionally restricted to a scope subtree.`,
		Args:    cobra.MaximumNArgs(1),
		RunE:    makeListRunner(a),
	}

	return cmd
}

func makeListRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}

		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}
		mems, err := eng.List(prefix)
		if err != nil {
			return fmt.Errorf("list memories: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, mems)
		}

		for _, mem := range mems {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-24s  %s\n",
				short(mem.ID), mem.Scope, oneline(mem.Content, 60))
		}
		return nil
	}
}
