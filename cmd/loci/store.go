package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/loci-dev/loci/internal"
	"github.com/spf13/cobra"
)

func NewStoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store [content]",
		Short: "Store a new memory",
		Long:  `Embed content and index it as a new memory. With no argument the content is read from stdin.`,
		Args:  cobra.ArbitraryArgs,
		RunE:  makeStoreRunner(a),
	}

	cmd.Flags().StringP("scope", "s", "inbox", "Scope to store under")
	cmd.Flags().StringArray("meta", nil, "Metadata entry as key=value (repeatable)")
	cmd.Flags().StringSlice("tag", nil, "Tag to attach (repeatable)")
	return cmd
}

func makeStoreRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		content := strings.Join(args, " ")
		if content == "" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			content = strings.TrimRight(string(data), "\n")
		}

		scope, _ := cmd.Flags().GetString("scope")
		md, err := collectMetadata(cmd)
		if err != nil {
			return err
		}

		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}
		mem, err := eng.Store(cmd.Context(), content, scope, md)
		if err != nil {
			return fmt.Errorf("store memory: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd, mem)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", short(mem.ID), mem.Scope)
		return nil
	}
}

func collectMetadata(cmd *cobra.Command) (internal.Metadata, error) {
	pairs, _ := cmd.Flags().GetStringArray("meta")
	tags, _ := cmd.Flags().GetStringSlice("tag")
	if len(pairs) == 0 && len(tags) == 0 {
		return nil, nil
	}

	md := internal.Metadata{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("metadata %q: want key=value", pair)
		}
		md[key] = value
	}
	if len(tags) > 0 {
		vals := make([]any, len(tags))
		for i, t := range tags {
			vals[i] = t
		}
		md["tags"] = vals
	}
	return md, nil
}
