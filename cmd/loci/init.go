package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/loci-dev/loci/internal"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a memory store",
		Long:  `Create the data directory with git-backed storage and a default configuration.`,
		RunE:  runInit,
	}

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	dir, err := resolveDataDir(cmd)
	if err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return fmt.Errorf("already initialized at %s", dir)
	}

	if err := internal.InitStore(dir); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	if err := internal.SaveConfig(dir, internal.DefaultConfig()); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized loci store at %s\n", dir)
	return nil
}
