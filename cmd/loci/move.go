package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewMoveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <id>... --to <scope>",
		Short: "Move memories to another scope",
		Long:  `Rescope memories without re-embedding them. Associations survive the move.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  makeMoveRunner(a),
	}

	cmd.Flags().String("to", "", "Target scope")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func makeMoveRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("to")

		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(args))
		for _, arg := range args {
			id, err := eng.ResolveID(arg)
			if err != nil {
				ids = append(ids, arg) // let the engine report it
				continue
			}
			ids = append(ids, id)
		}

		report, err := eng.Move(cmd.Context(), ids, target)
		if err != nil {
			return fmt.Errorf("move: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, report)
		}
		for _, id := range report.Moved {
			fmt.Fprintf(cmd.OutOrStdout(), "moved %s -> %s\n", short(id), target)
		}
		for _, f := range report.Failed {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed %s: %s\n", short(f.ID), f.Reason)
		}
		return nil
	}
}
