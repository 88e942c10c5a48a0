package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/otakuflix/adata/internal/utils"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "adata",
	Short: "Keeps the anime catalog in sync with the hosting providers.",
	Long: `adata scans every configured hosting provider, reconciles the folders it finds
against the stored catalog, enriches new entries from Jikan, Kitsu, AniList and
TMDB, and writes the catalog back under optimistic concurrency control.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		utils.Log.Error(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.adata.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".adata")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("adata")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.adata.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

func setDefaults() {
	viper.SetDefault("store.backend", "sqlite")
	viper.SetDefault("store.github.owner", "")
	viper.SetDefault("store.github.repo", "")
	viper.SetDefault("store.github.path", "anime.json")
	viper.SetDefault("store.github.token", "")
	viper.SetDefault("store.github.branch", "")
	viper.SetDefault("store.github.message", "♦️ DONE UPDATING ♦️")
	viper.SetDefault("store.sqlite.path", "")
	viper.SetDefault("store.sqlite.name", "catalog")

	viper.SetDefault("hosting", []map[string]string{})

	viper.SetDefault("metadata.timeout", "10s")
	viper.SetDefault("metadata.delay", "1s")
	viper.SetDefault("metadata.retries", 2)
	viper.SetDefault("metadata.jikan.base_url", "")
	viper.SetDefault("metadata.kitsu.base_url", "")
	viper.SetDefault("metadata.anilist.endpoint", "")
	viper.SetDefault("metadata.tmdb.api_key", "")
	viper.SetDefault("metadata.tmdb.base_url", "")

	viper.SetDefault("shortener.api_key", "")
	viper.SetDefault("shortener.endpoint", "")

	viper.SetDefault("pipeline.concurrency", 3)
	viper.SetDefault("pipeline.entry_delay", "2s")
	viper.SetDefault("pipeline.debounce", "2s")
	viper.SetDefault("pipeline.removal", "delete")
}
