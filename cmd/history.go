package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	appreg "github.com/zjrosen/hotswap/internal/application/registry"
	"github.com/zjrosen/hotswap/internal/domain/artifact"
	"github.com/zjrosen/hotswap/internal/presentation"
)

var historyJSON bool

var historyCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "Show the archived versions of an entry",
	Long: `Show the versions archived for an entry, read straight from the artifact
store. When the entry's version log was persisted (registry.resume_history)
that log is shown, otherwise every version artifact found for the name.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	h, err := storedHistory(cmd.Context(), store, args[0])
	if err != nil {
		return err
	}
	f := presentation.NewFormatter(cmd.OutOrStdout())
	if historyJSON {
		return f.FormatHistory(h)
	}
	return f.RenderHistory(h)
}

func storedHistory(ctx context.Context, store artifact.Store, name string) (presentation.HistoryDTO, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	l, err := appreg.StoredLog(ctx, store, name)
	if err != nil {
		return presentation.HistoryDTO{}, fmt.Errorf("reading version log: %w", err)
	}
	if l != nil {
		return presentation.HistoryFromLog(name, l.Versions()), nil
	}
	infos, err := appreg.Versions(ctx, store, name)
	if err != nil {
		return presentation.HistoryDTO{}, fmt.Errorf("listing versions: %w", err)
	}
	return presentation.HistoryFromArtifacts(name, infos), nil
}
