package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewGetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Retrieve a memory",
		Long:  `Retrieve a memory by id. A unique id prefix works like the full id.`,
		Args:  cobra.ExactArgs(1),
		RunE:  makeGetRunner(a),
	}

	return cmd
}

func makeGetRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		id, err := eng.ResolveID(args[0])
		if err != nil {
			return fmt.Errorf("resolve id: %w", err)
		}
		mem, err := eng.Get(id)
		if err != nil {
			return fmt.Errorf("get memory: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, mem)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "id:      %s\n", mem.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "scope:   %s\n", mem.Scope)
		if tags := mem.Metadata.Tags(); len(tags) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "tags:    %v\n", tags)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created: %s\n", mem.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", mem.Content)
		return nil
	}
}
