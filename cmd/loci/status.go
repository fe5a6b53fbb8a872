package main

import (
	"fmt"

	"github.com/loci-dev/loci/internal"
	"github.com/spf13/cobra"
)

func NewStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store statistics",
		Long:  `Report memory, session and association counts plus embedding cache usage.`,
		Args:  cobra.NoArgs,
		RunE:  makeStatusRunner(a),
	}
}

func makeStatusRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		dataDir, err := resolveDataDir(cmd)
		if err != nil {
			return err
		}
		cfg, err := internal.LoadConfig(dataDir)
		if err != nil {
			return err
		}

		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}
		st := eng.Stats()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, st)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "store      %s\n", dataDir)
		fmt.Fprintf(out, "backend    %s (%d dims)\n", cfg.Embeddings.Backend, cfg.Embeddings.Dimension)
		fmt.Fprintf(out, "memories   %d in %d scopes\n", st.Memories, st.Scopes)
		fmt.Fprintf(out, "sessions   %d\n", st.Sessions)
		fmt.Fprintf(out, "graph      %d nodes, %d edges\n", st.GraphNodes, st.GraphEdges)
		if st.AnnItems > 0 {
			fmt.Fprintf(out, "ann index  %d items\n", st.AnnItems)
		}
		fmt.Fprintf(out, "cache      %d entries, %d hits, %d misses, %d evictions\n",
			st.Cache.Entries, st.Cache.Hits, st.Cache.Misses, st.Cache.Evictions)
		return nil
	}
}
