package main

import (
	"fmt"
	"strings"

	"github.com/loci-dev/loci/internal"
	"github.com/spf13/cobra"
)

func NewEditCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id> [content]",
		Short: "Rewrite a memory",
		Long: `Replace a memory's content, scope or both. New content is re-embedded
and its associations recomputed; a bare scope change keeps the vector.`,
		Args: cobra.MinimumNArgs(1),
		RunE: makeEditRunner(a),
	}

	cmd.Flags().StringP("scope", "s", "", "Move the memory to this scope")
	return cmd
}

func makeEditRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		scope, _ := cmd.Flags().GetString("scope")

		var req internal.UpdateRequest
		if len(args) > 1 {
			content := strings.Join(args[1:], " ")
			req.Content = &content
		}
		if scope != "" {
			req.Scope = &scope
		}
		if req.Content == nil && req.Scope == nil {
			return fmt.Errorf("nothing to change, pass new content or --scope")
		}

		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}
		id, err := eng.ResolveID(args[0])
		if err != nil {
			return fmt.Errorf("resolve id: %w", err)
		}

		mem, err := eng.Update(cmd.Context(), id, req)
		if err != nil {
			return fmt.Errorf("update memory: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, mem)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", short(mem.ID), mem.Scope)
		return nil
	}
}
