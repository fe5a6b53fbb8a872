package main

import (
	"fmt"

	"github.com/loci-dev/loci/internal"
	"github.com/spf13/cobra"
)

func NewSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memories by meaning",
		Long:  `Embed the query and rank memories by cosine similarity. Diversified mode reranks the candidates with maximal marginal relevance so near-duplicates stop crowding out distinct results.`,
		Args:  cobra.ExactArgs(1),
		RunE:  makeSearchRunner(a),
	}

	cmd.Flags().IntP("top", "n", 10, "Maximum results")
	cmd.Flags().StringP("scope", "s", "", "Restrict to a scope subtree")
	cmd.Flags().BoolP("diversify", "d", false, "Rerank for diversity")
	cmd.Flags().Float64("lambda", -1, "Relevance weight in [0,1] for diversified mode; -1 uses the configured default")
	cmd.Flags().Bool("ann", false, "Query the approximate index (build it with \"loci index build\")")
	return cmd
}

func makeSearchRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		query := args[0]
		top, _ := cmd.Flags().GetInt("top")
		scope, _ := cmd.Flags().GetString("scope")
		diversify, _ := cmd.Flags().GetBool("diversify")
		lambda, _ := cmd.Flags().GetFloat64("lambda")
		useAnn, _ := cmd.Flags().GetBool("ann")
		asJSON, _ := cmd.Flags().GetBool("json")

		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		var results []internal.SearchResult
		if useAnn {
			results, err = eng.AnnSearch(cmd.Context(), query, top, scope)
		} else {
			req := internal.SearchRequest{Query: query, Scope: scope, TopK: top}
			if diversify {
				req.Mode = internal.SearchDiversified
				if lambda >= 0 {
					req.Lambda = &lambda
				}
			}
			results, err = eng.Search(cmd.Context(), req)
		}
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		if asJSON {
			return writeJSON(cmd, results)
		}
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%.4f  %s  %-20s  %s\n",
				r.Score, short(r.Memory.ID), r.Memory.Scope, oneline(r.Memory.Content, 60))
		}
		return nil
	}
}
