package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/hotswap/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create and edit the config file",
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := configPath()
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configAddEntryCmd = &cobra.Command{
	Use:   "add-entry <name> <path>",
	Short: "Add an entry registered at startup",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry := config.EntryConfig{Name: args[0], Path: args[1]}
		if err := config.AddEntry(configPath(), entry, cfg.Entries); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s -> %s\n", entry.Name, entry.Path)
		return nil
	},
}

var configRmEntryCmd = &cobra.Command{
	Use:   "rm-entry <name>",
	Short: "Remove a startup entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.RemoveEntry(configPath(), args[0], cfg.Entries); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configAddEntryCmd, configRmEntryCmd)
	rootCmd.AddCommand(configCmd)
}
