package cmd

import (
	"fmt"

	"github.com/otakuflix/adata/pkg/storage"
	"github.com/spf13/cobra"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Show recent catalog changes (default 50)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		env, err := newReadEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		db, ok := env.store.(*storage.DB)
		if !ok {
			return fmt.Errorf("the change log is only kept by the sqlite backend")
		}
		changes, err := db.ListRecentChanges(cmd.Context(), limit)
		if err != nil {
			return err
		}
		printChanges(changes)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.Flags().Int("limit", 50, "Number of recent changes to show")
}

func printChanges(changes []storage.Change) {
	for _, c := range changes {
		ts := c.OccurredAt.Format("2006-01-02 15:04:05")
		fmt.Printf("%s  %-7s  %5d  %s\n", ts, c.ChangeType, c.ID, c.Name)
	}
}
