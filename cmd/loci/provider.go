package main

import (
	"fmt"
	"sort"

	"github.com/loci-dev/loci/internal"
	"github.com/spf13/cobra"
)

func NewProviderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage LLM providers",
		Long:  `List, add, remove and test the providers used by summarize and tag.`,
	}

	cmd.AddCommand(
		newProviderListCmd(),
		newProviderAddCmd(),
		newProviderRemoveCmd(),
		newProviderDefaultCmd(),
		newProviderTestCmd(),
	)
	return cmd
}

func loadProviderConfig(cmd *cobra.Command) (*internal.Config, error) {
	dataDir, err := resolveDataDir(cmd)
	if err != nil {
		return nil, err
	}
	return internal.LoadConfig(dataDir)
}

func newProviderListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadProviderConfig(cmd)
			if err != nil {
				return err
			}

			if len(cfg.Providers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no providers configured")
				return nil
			}

			names := make([]string, 0, len(cfg.Providers))
			for name := range cfg.Providers {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				marker := " "
				if name == cfg.DefaultProvider {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-12s  %s\n", marker, name, cfg.Providers[name].Model)
			}
			return nil
		},
	}
}

func newProviderAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a provider",
		Long:  `Register a provider by name (openai, anthropic or openrouter).`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			apiKey, _ := cmd.Flags().GetString("api-key")
			baseURL, _ := cmd.Flags().GetString("base-url")
			model, _ := cmd.Flags().GetString("model")

			cfg, err := loadProviderConfig(cmd)
			if err != nil {
				return err
			}

			if cfg.Providers == nil {
				cfg.Providers = map[string]internal.ProviderConfig{}
			}
			cfg.Providers[name] = internal.ProviderConfig{
				APIKey:  apiKey,
				BaseURL: baseURL,
				Model:   model,
			}
			if cfg.DefaultProvider == "" {
				cfg.DefaultProvider = name
			}

			if err := internal.SaveConfig(cfg.DataDir, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added provider %s\n", name)
			return nil
		},
	}

	cmd.Flags().String("api-key", "", "API key (supports ${ENV_VAR} expansion)")
	cmd.Flags().String("base-url", "", "Base URL override")
	cmd.Flags().String("model", "", "Model name")
	return cmd
}

func newProviderRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProviderConfig(cmd)
			if err != nil {
				return err
			}

			if _, ok := cfg.Providers[args[0]]; !ok {
				return fmt.Errorf("provider %s not configured", args[0])
			}
			delete(cfg.Providers, args[0])
			if cfg.DefaultProvider == args[0] {
				cfg.DefaultProvider = ""
			}

			if err := internal.SaveConfig(cfg.DataDir, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed provider %s\n", args[0])
			return nil
		},
	}
}

func newProviderDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "default <name>",
		Aliases: []string{"set-default"},
		Short:   "Set the default provider",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProviderConfig(cmd)
			if err != nil {
				return err
			}

			if _, ok := cfg.Providers[args[0]]; !ok {
				return fmt.Errorf("provider %s not configured", args[0])
			}
			cfg.DefaultProvider = args[0]

			if err := internal.SaveConfig(cfg.DataDir, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "default provider set to %s\n", args[0])
			return nil
		},
	}
}

func newProviderTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <name>",
		Short: "Test provider connectivity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProviderConfig(cmd)
			if err != nil {
				return err
			}

			pc, ok := cfg.Providers[args[0]]
			if !ok {
				return fmt.Errorf("provider %s not configured", args[0])
			}

			provider, err := internal.NewFantasyProvider(cmd.Context(), args[0], pc)
			if err != nil {
				return fmt.Errorf("test provider: %w", err)
			}
			if _, err := provider.Complete(cmd.Context(), "Reply with the single word: ok"); err != nil {
				return fmt.Errorf("test provider: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "provider %s is working\n", args[0])
			return nil
		},
	}
}
