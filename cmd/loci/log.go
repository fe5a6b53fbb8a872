package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewLogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the store's change history",
		Long:  `Print recent commits from the underlying git store, newest first.`,
		Args:  cobra.NoArgs,
		RunE:  makeLogRunner(a),
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum commits to show")
	return cmd
}

func makeLogRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := a.gitStore(cmd)
		if err != nil {
			return err
		}

		commits, err := store.History(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, commits)
		}
		for _, c := range commits {
			hash := c.Hash
			if len(hash) > 7 {
				hash = hash[:7]
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n",
				hash, c.Timestamp.Format("2006-01-02 15:04"), c.Message)
		}
		return nil
	}
}
