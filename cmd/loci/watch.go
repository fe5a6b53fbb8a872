package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/loci-dev/loci/internal"
	"github.com/spf13/cobra"
)

func NewWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the store and reload on external changes",
		Long: `Watch the data directory for memory files written by other processes
(another loci, a git pull, an editor) and fold them into the running view.`,
		RunE: makeWatchRunner(a),
	}

	cmd.Flags().Duration("debounce", 500*time.Millisecond, "Debounce window for batching changes")
	return cmd
}

func makeWatchRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		debounce, _ := cmd.Flags().GetDuration("debounce")

		dataDir, err := resolveDataDir(cmd)
		if err != nil {
			return err
		}
		eng, err := a.engine(cmd)
		if err != nil {
			return err
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		defer watcher.Close()

		if err := watcher.Add(dataDir); err != nil {
			return fmt.Errorf("watch %s: %w", dataDir, err)
		}
		memDir := filepath.Join(dataDir, "memories")
		// May not exist until the first store; picked up via the create event below.
		_ = watcher.Add(memDir)

		fmt.Fprintf(cmd.OutOrStdout(), "watching %s for changes...\n", dataDir)

		timer := time.NewTimer(0)
		if !timer.Stop() {
			<-timer.C
		}
		pending := false

		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&fsnotify.Create != 0 && event.Name == memDir {
					_ = watcher.Add(memDir)
				}
				if shouldIgnoreEvent(event) {
					continue
				}
				if !pending {
					timer.Reset(debounce)
					pending = true
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
			case <-timer.C:
				pending = false
				if err := eng.Refresh(cmd.Context()); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "reload error: %v\n", err)
					continue
				}
				st := eng.Stats()
				fmt.Fprintf(cmd.OutOrStdout(), "reloaded, %d memories\n", st.Memories)
			}
		}
	}
}

// shouldIgnoreEvent filters out git internals and our own write-back files,
// which would otherwise trigger reload loops.
func shouldIgnoreEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}

	sep := string(filepath.Separator)
	if strings.Contains(event.Name, sep+".git"+sep) || strings.HasSuffix(event.Name, sep+".git") {
		return true
	}

	switch filepath.Base(event.Name) {
	case internal.IndexFilename, internal.MappingFilename, internal.ConfigFilename:
		return true
	}
	return false
}
