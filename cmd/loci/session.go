package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func NewSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage session scopes",
		Long: `Sessions are named scratch scopes under session/. Memories stored in a
session with a TTL are swept by "session cleanup" once the TTL passes.`,
	}

	cmd.AddCommand(newSessionCreateCmd(a))
	cmd.AddCommand(newSessionListCmd(a))
	cmd.AddCommand(newSessionRmCmd(a))
	cmd.AddCommand(newSessionCleanupCmd(a))
	return cmd
}

func newSessionCreateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a new session",
		Args:  cobra.ExactArgs(1),
		RunE:  makeSessionCreateRunner(a),
	}

	cmd.Flags().Duration("ttl", 0, "Expire the session after this duration (omit for durable)")
	return cmd
}

func makeSessionCreateRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		var ttl *time.Duration
		if cmd.Flags().Changed("ttl") {
			d, _ := cmd.Flags().GetDuration("ttl")
			ttl = &d
		}

		s, err := eng.CreateSession(cmd.Context(), args[0], ttl)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, s)
		}
		if s.ExpiresAt != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "session %s (%s) expires %s\n",
				s.Name, s.Scope, s.ExpiresAt.Format("2006-01-02 15:04"))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "session %s (%s)\n", s.Name, s.Scope)
		}
		return nil
	}
}

func newSessionListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered sessions",
		Args:    cobra.NoArgs,
		RunE:    makeSessionListRunner(a),
	}
}

func makeSessionListRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		sessions := eng.Sessions()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, sessions)
		}
		for _, s := range sessions {
			expiry := "never"
			if s.ExpiresAt != nil {
				expiry = s.ExpiresAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s  %-28s  expires %s\n", s.Name, s.Scope, expiry)
		}
		return nil
	}
}

func newSessionRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a session and everything stored under it",
		Args:  cobra.ExactArgs(1),
		RunE:  makeSessionRmRunner(a),
	}
}

func makeSessionRmRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		n, err := eng.DeleteSession(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted session %s (%d memories removed)\n", args[0], n)
		return nil
	}
}

func newSessionCleanupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired sessions and their memories",
		Args:  cobra.NoArgs,
		RunE:  makeSessionCleanupRunner(a),
	}
}

func makeSessionCleanupRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		n, err := eng.CleanupSessions(cmd.Context(), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("cleanup sessions: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d memories from expired sessions\n", n)
		return nil
	}
}
