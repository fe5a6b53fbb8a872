package main

import (
	"fmt"
	"os"

	"github.com/loci-dev/loci/internal"
	"github.com/spf13/cobra"
)

func NewImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import memories from a manifest",
		Long: `Read a manifest produced by "loci export" and merge it into the store.
Without a file argument the manifest is read from stdin. Gzip input is
detected automatically.`,
		Args: cobra.MaximumNArgs(1),
		RunE: makeImportRunner(a),
	}

	cmd.Flags().String("strategy", "skip_duplicates", "Merge strategy: skip_duplicates, overwrite or version")
	return cmd
}

func makeImportRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("strategy")
		strategy, err := internal.ParseMergeStrategy(raw)
		if err != nil {
			return err
		}

		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		in := cmd.InOrStdin()
		if len(args) > 0 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()
			in = f
		}

		report, err := eng.Import(cmd.Context(), in, strategy)
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, report)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d, overwritten %d, versioned %d\n",
			report.Imported, report.Skipped, report.Overwritten, report.Versioned)
		for _, f := range report.Failed {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed record %d: %s\n", f.Index, f.Reason)
		}
		return nil
	}
}
