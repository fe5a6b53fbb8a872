package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewScopesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scopes [prefix]",
		Short: "Show the scope hierarchy",
		Long:  `Without an argument, list every scope that holds memories or sessions. With a prefix, list its direct children.`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  makeScopesRunner(a),
	}

	return cmd
}

func makeScopesRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		if len(args) == 0 {
			scopes := eng.Scopes()
			if asJSON {
				return writeJSON(cmd, scopes)
			}
			for _, sc := range scopes {
				fmt.Fprintln(cmd.OutOrStdout(), sc)
			}
			return nil
		}

		children, err := eng.Children(args[0])
		if err != nil {
			return fmt.Errorf("list children: %w", err)
		}
		if asJSON {
			return writeJSON(cmd, children)
		}
		for _, child := range children {
			fmt.Fprintln(cmd.OutOrStdout(), child)
		}
		return nil
	}
}
