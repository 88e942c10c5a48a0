package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/otakuflix/adata/internal/utils"
	"github.com/otakuflix/adata/pkg/completion"
	"github.com/otakuflix/adata/pkg/hosting"
	"github.com/otakuflix/adata/pkg/logger"
	"github.com/otakuflix/adata/pkg/metadata"
	"github.com/otakuflix/adata/pkg/storage"
	"github.com/otakuflix/adata/pkg/whttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runEnv bundles what every catalog command needs for one run.
type runEnv struct {
	log    logger.Logger
	client *retryablehttp.Client
	store  storage.Store
	lock   *utils.RunLock
	closer io.Closer
}

// newRunEnv builds the HTTP client, opens the store and takes the run lock.
func newRunEnv(cmd *cobra.Command) (*runEnv, error) {
	return openEnv(cmd, true)
}

// newReadEnv is newRunEnv without the lock, for commands that never write.
func newReadEnv(cmd *cobra.Command) (*runEnv, error) {
	return openEnv(cmd, false)
}

func openEnv(cmd *cobra.Command, lock bool) (*runEnv, error) {
	runID := uuid.NewString()
	env := &runEnv{log: utils.RunLogger(runID)}

	proxy, _ := cmd.Flags().GetString("proxy")
	client, err := whttp.NewClient(whttp.ClientConfig{
		Timeout:  viper.GetDuration("metadata.timeout"),
		RetryMax: viper.GetInt("metadata.retries"),
		Proxy:    proxy,
	})
	if err != nil {
		return nil, err
	}
	env.client = client

	name, err := openStore(env, client)
	if err != nil {
		return nil, err
	}
	if !lock {
		return env, nil
	}

	runLock, err := utils.NewRunLock(name)
	if err != nil {
		env.Close()
		return nil, err
	}
	if err := runLock.Lock(); err != nil {
		env.Close()
		return nil, err
	}
	env.lock = runLock
	return env, nil
}

// openStore opens the configured backend and returns the lock name for it.
func openStore(env *runEnv, client *retryablehttp.Client) (string, error) {
	switch backend := strings.ToLower(viper.GetString("store.backend")); backend {
	case "github":
		cfg := storage.GitHubConfig{
			Owner:   viper.GetString("store.github.owner"),
			Repo:    viper.GetString("store.github.repo"),
			Path:    viper.GetString("store.github.path"),
			Token:   viper.GetString("store.github.token"),
			Branch:  viper.GetString("store.github.branch"),
			Message: viper.GetString("store.github.message"),
		}
		gh, err := storage.NewGitHubStore(cfg, client)
		if err != nil {
			return "", err
		}
		env.store = gh
		return "github-" + cfg.Owner + "-" + cfg.Repo, nil
	case "sqlite", "":
		path, err := utils.GetAbsDBPath(viper.GetString("store.sqlite.path"))
		if err != nil {
			return "", err
		}
		name := viper.GetString("store.sqlite.name")
		db, err := storage.Open(path, name)
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", path, err)
		}
		env.store = db
		env.closer = db
		return "sqlite-" + name, nil
	default:
		return "", fmt.Errorf("unknown store backend %q (use github or sqlite)", backend)
	}
}

func (e *runEnv) Close() {
	if e.lock != nil {
		if err := e.lock.Unlock(); err != nil {
			utils.Log.Warn(err)
		}
	}
	if e.closer != nil {
		_ = e.closer.Close()
	}
}

// listers builds the configured hosting providers.
func (e *runEnv) listers() ([]hosting.Lister, error) {
	var cfgs []hosting.Config
	if err := viper.UnmarshalKey("hosting", &cfgs); err != nil {
		return nil, fmt.Errorf("reading hosting config: %w", err)
	}
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no hosting providers configured; add them under 'hosting' in ~/.adata.yaml")
	}
	var out []hosting.Lister
	for _, c := range cfgs {
		p, err := hosting.New(c, e.client)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// providers builds the metadata providers. Each gets its own pacer so calls to
// one service are spaced out no matter how many workers share it.
func (e *runEnv) providers() []metadata.Provider {
	delay := viper.GetDuration("metadata.delay")
	providers := []metadata.Provider{
		metadata.NewJikan(viper.GetString("metadata.jikan.base_url"), e.client, whttp.NewPacer(delay)),
		metadata.NewKitsu(viper.GetString("metadata.kitsu.base_url"), e.client, whttp.NewPacer(delay)),
		metadata.NewAniList(viper.GetString("metadata.anilist.endpoint"), e.client, whttp.NewPacer(delay)),
	}
	if key := viper.GetString("metadata.tmdb.api_key"); key != "" {
		tmdb, err := metadata.NewTMDB(key, viper.GetString("metadata.tmdb.base_url"), e.client, whttp.NewPacer(delay))
		if err == nil {
			providers = append(providers, tmdb)
		}
	} else {
		e.log.Debugf("Skipping TMDB: api key not found in config.")
	}
	return providers
}

func (e *runEnv) shortener() metadata.Shortener {
	key := viper.GetString("shortener.api_key")
	if key == "" {
		e.log.Debugf("Image shortening disabled: shortener.api_key not set.")
		return metadata.NopShortener{}
	}
	return metadata.NewFreeImage(key, viper.GetString("shortener.endpoint"), e.client, e.log)
}

func (e *runEnv) enricher(concurrency int) *metadata.Enricher {
	return metadata.NewEnricher(metadata.EnricherConfig{
		Providers:   e.providers(),
		Shortener:   e.shortener(),
		Concurrency: concurrency,
		Log:         e.log,
	})
}

func (e *runEnv) completionConfig() *completion.Config {
	return &completion.Config{
		Providers:  e.providers(),
		Shortener:  e.shortener(),
		EntryDelay: viper.GetDuration("pipeline.entry_delay"),
		Debounce:   viper.GetDuration("pipeline.debounce"),
		Log:        e.log,
	}
}
