package cmd

import (
	"github.com/otakuflix/adata/pkg/completion"
	"github.com/spf13/cobra"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Refresh the hosting locations of every listed entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := newRunEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		listers, err := env.listers()
		if err != nil {
			return err
		}
		res, err := completion.Run(cmd.Context(), env.store, &completion.LocationRefresh{Listers: listers, Log: env.log}, env.log)
		if err != nil {
			return err
		}
		printChanges(res.Changes)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serversCmd)
}
