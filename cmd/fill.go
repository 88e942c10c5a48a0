package cmd

import (
	"github.com/otakuflix/adata/pkg/completion"
	"github.com/spf13/cobra"
)

// fillCmd groups the completion passes: adata fill status|images|ratings|stats
var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Fill missing catalog fields from the metadata providers",
}

func newFillCmd(use, short string, build func(*completion.Config) completion.Pass) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := newRunEnv(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			res, err := completion.Run(cmd.Context(), env.store, build(env.completionConfig()), env.log)
			if err != nil {
				return err
			}
			printChanges(res.Changes)
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(fillCmd)
	fillCmd.AddCommand(
		newFillCmd("status", "Recheck status and airing of unfinished entries", func(c *completion.Config) completion.Pass {
			return completion.NewStatusRecheck(c)
		}),
		newFillCmd("images", "Fill missing posters and banners", func(c *completion.Config) completion.Pass {
			return completion.NewImageFill(c)
		}),
		newFillCmd("ratings", "Fill missing ratings and vote counts", func(c *completion.Config) completion.Pass {
			return completion.NewRatingFill(c)
		}),
		newFillCmd("stats", "Fill missing type, status, airing, studio, producers and episode counts", func(c *completion.Config) completion.Pass {
			return completion.NewStatsFill(c)
		}),
	)
}
