package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/loci-dev/loci/internal"
	"github.com/spf13/cobra"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx := context.Background()

	if tryExternalCommand(ctx) {
		return
	}

	rootCmd := NewRootCmd(version, &app{})
	if err := fang.Execute(ctx, rootCmd); err != nil {
		os.Exit(1)
	}
}

func tryExternalCommand(ctx context.Context) bool {
	if len(os.Args) < 2 {
		return false
	}

	cmd := os.Args[1]
	if cmd == "" || cmd[0] == '-' {
		return false
	}

	if _, err := findExternal(cmd); err != nil {
		return false
	}

	if err := executeExternal(ctx, cmd, os.Args[2:], version); err != nil {
		fmt.Fprintf(os.Stderr, "loci %s: %v\n", cmd, err)
		os.Exit(1)
	}

	return true
}

// app carries the engine shared by the subcommands. It is built on first use,
// after cobra has parsed the data-dir and verbosity flags.
type app struct {
	mu    sync.Mutex
	eng   *internal.Engine
	store *internal.GitStore
}

func (a *app) engine(cmd *cobra.Command) (*internal.Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.eng != nil {
		return a.eng, nil
	}

	dir, err := resolveDataDir(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := internal.LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd, cfg)

	store, err := internal.NewGitStore(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("%w (run \"loci init\" first)", err)
	}
	embedder, err := internal.NewEmbedder(cfg.Embeddings)
	if err != nil {
		return nil, err
	}

	opts := []internal.EngineOption{internal.WithLogger(logger)}
	if name := cfg.DefaultProvider; name != "" {
		pc, ok := cfg.Providers[name]
		if !ok {
			return nil, fmt.Errorf("default provider %q is not configured", name)
		}
		provider, err := internal.NewFantasyProvider(cmd.Context(), name, pc)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		opts = append(opts, internal.WithProvider(provider))
	}

	eng, err := internal.NewEngine(cmd.Context(), cfg, embedder, store, opts...)
	if err != nil {
		return nil, err
	}
	a.eng, a.store = eng, store
	return eng, nil
}

// gitStore exposes the concrete store for commands that walk the git log.
func (a *app) gitStore(cmd *cobra.Command) (*internal.GitStore, error) {
	if _, err := a.engine(cmd); err != nil {
		return nil, err
	}
	return a.store, nil
}

func resolveDataDir(cmd *cobra.Command) (string, error) {
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		return dir, nil
	}
	if dir := os.Getenv("LOCI_DATA_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".loci"), nil
}

func newLogger(cmd *cobra.Command, cfg *internal.Config) *log.Logger {
	logger := log.New(cmd.ErrOrStderr())

	level := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	if lvl, err := log.ParseLevel(level); err == nil && level != "" {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}
