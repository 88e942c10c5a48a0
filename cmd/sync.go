package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/otakuflix/adata/pkg/completion"
	"github.com/otakuflix/adata/pkg/pipeline"
	"github.com/otakuflix/adata/pkg/reconcile"
	"github.com/otakuflix/adata/pkg/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// syncCmd implements: adata sync
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Scan hosting providers, reconcile the catalog and enrich new entries",
	Long: `Scan every configured hosting provider, reconcile the catalog against the
folders found and enrich new entries from the metadata providers.

Entries no longer listed by any provider are deleted. An entry stored on a
provider that failed during the scan is kept instead, and is only deleted by a
later sync in which all of its providers answered. Use --keep-missing to keep
every missing entry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'adata sync --help'", args[0])
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		keepMissing, _ := cmd.Flags().GetBool("keep-missing")
		noRecheck, _ := cmd.Flags().GetBool("no-recheck")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if !cmd.Flags().Changed("concurrency") {
			concurrency = viper.GetInt("pipeline.concurrency")
		}

		removal, err := reconcile.ParseRemovalPolicy(viper.GetString("pipeline.removal"))
		if err != nil {
			return err
		}
		if keepMissing {
			removal = reconcile.KeepMissing
		}

		env, err := newRunEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		listers, err := env.listers()
		if err != nil {
			return err
		}

		cfg := pipeline.Config{
			Store:    env.store,
			Listers:  listers,
			Enricher: env.enricher(concurrency),
			Removal:  removal,
			DryRun:   dryRun,
			Log:      env.log,
		}
		if !noRecheck && !dryRun {
			cfg.OnNoChanges = func(ctx context.Context) error {
				env.log.Infof("Running status recheck instead")
				res, err := completion.Run(ctx, env.store, completion.NewStatusRecheck(env.completionConfig()), env.log)
				if err != nil {
					return err
				}
				printChanges(res.Changes)
				return nil
			}
		}

		res, err := pipeline.Sync(cmd.Context(), cfg)
		if err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return fmt.Errorf("%w; nothing was written, run sync again", err)
			}
			return err
		}

		printChanges(res.Changes)
		switch {
		case res.Written:
			env.log.Infof("Catalog written (%d entries, version %s)", len(res.Reconcile.Catalog), shortVersion(res.Version))
		case dryRun && res.Reconcile.Changed():
			env.log.Infof("Dry run finished; %d change(s) not written", len(res.Changes))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Bool("dry-run", false, "Reconcile and enrich but do not write the catalog")
	syncCmd.Flags().Bool("keep-missing", false, "Keep entries that are no longer listed by any provider instead of deleting them")
	syncCmd.Flags().Bool("no-recheck", false, "Do not run the status recheck when nothing changed")
	syncCmd.Flags().Int("concurrency", 3, "Number of entries enriched concurrently")
}

func shortVersion(v storage.Version) string {
	if len(v) > 12 {
		return string(v[:12])
	}
	return string(v)
}
