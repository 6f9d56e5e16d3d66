package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/hotswap/internal/domain/artifact"
	"github.com/zjrosen/hotswap/internal/presentation"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and edit the artifact store",
}

var storeLsJSON bool

var storeLsCmd = &cobra.Command{
	Use:   "ls [prefix]",
	Short: "List artifact keys",
	Args:  cobra.MaximumNArgs(1),
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, store artifact.Store, args []string) error {
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		infos, err := store.List(ctx, prefix)
		if err != nil {
			return err
		}
		dtos := presentation.FromArtifactInfos(infos)
		if storeLsJSON {
			return presentation.NewFormatter(cmd.OutOrStdout()).FormatArtifacts(dtos)
		}
		for _, d := range dtos {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", d.Key, d.Size, d.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	}),
}

var storeGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print an artifact's payload",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, store artifact.Store, args []string) error {
		payload, found, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no artifact %q", args[0])
		}
		_, err = cmd.OutOrStdout().Write(payload)
		return err
	}),
}

var storePutCmd = &cobra.Command{
	Use:   "put <key> [file]",
	Short: "Store a file (or stdin) under key",
	Args:  cobra.RangeArgs(1, 2),
	RunE: withStore(func(ctx context.Context, cmd *cobra.Command, store artifact.Store, args []string) error {
		var (
			payload []byte
			err     error
		)
		if len(args) == 2 {
			payload, err = os.ReadFile(args[1])
		} else {
			payload, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
		return store.Put(ctx, args[0], payload)
	}),
}

var storeRmCmd = &cobra.Command{
	Use:   "rm <key>...",
	Short: "Delete artifacts",
	Args:  cobra.MinimumNArgs(1),
	RunE: withStore(func(ctx context.Context, _ *cobra.Command, store artifact.Store, args []string) error {
		for _, key := range args {
			if err := store.Delete(ctx, key); err != nil {
				return err
			}
		}
		return nil
	}),
}

func init() {
	storeLsCmd.Flags().BoolVar(&storeLsJSON, "json", false, "output as JSON")
	storeCmd.AddCommand(storeLsCmd, storeGetCmd, storePutCmd, storeRmCmd)
	rootCmd.AddCommand(storeCmd)
}

// withStore opens the configured store around fn.
func withStore(fn func(ctx context.Context, cmd *cobra.Command, store artifact.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return fn(ctx, cmd, store, args)
	}
}
