package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRmCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"del"},
		Short:   "Delete memories",
		Long:    `Delete one or more memories by id or unique id prefix.`,
		Args:    cobra.MinimumNArgs(1),
		RunE:    makeRmRunner(a),
	}

	return cmd
}

func makeRmRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		for _, arg := range args {
			id, err := eng.ResolveID(arg)
			if err != nil {
				return fmt.Errorf("resolve id %q: %w", arg, err)
			}
			if err := eng.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete %s: %w", short(id), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", short(id))
		}
		return nil
	}
}
