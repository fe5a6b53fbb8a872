package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [scope]",
		Short: "Export memories to a manifest",
		Long: `Write memories as a JSON manifest, optionally restricted to a scope
prefix. Without --output the manifest goes to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: makeExportRunner(a),
	}

	cmd.Flags().StringP("output", "o", "", "Write the manifest to this file")
	cmd.Flags().Bool("gzip", false, "Compress the manifest with gzip")
	return cmd
}

func makeExportRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}
		output, _ := cmd.Flags().GetString("output")
		compress, _ := cmd.Flags().GetBool("gzip")

		if output == "" {
			n, err := eng.Export(cmd.Context(), cmd.OutOrStdout(), prefix, compress)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d memories\n", n)
			return nil
		}

		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create %s: %w", output, err)
		}
		n, err := eng.Export(cmd.Context(), f, prefix, compress)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d memories to %s\n", n, output)
		return nil
	}
}
