package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avelardi/margo/pkg/margo/history"
)

// newHistoryCmd creates the `margo history` command group.
func newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the conversation history",
	}
	historyCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the persisted conversation history",
		RunE:  runHistoryClear,
	})
	return historyCmd
}

func runHistoryClear(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd)

	store := history.New(cfg.History.File, logger)
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Println("Conversation history cleared.")
	return nil
}
