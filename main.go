// Package main provides the entry point for the pipervoice CLI application.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/pipervoice/internal/catalog"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	language   string
	engineName string
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "pipervoice",
		Short: "Speak text with downloadable neural voices",
		Long: paragraph(
			fmt.Sprintf("\nSpeak text with %s, downloaded on first use.", keyword("piper voices")),
		),
		SilenceErrors:     false,
		SilenceUsage:      true,
		TraverseChildren:  true,
		PersistentPreRunE: validateOptions,
	}
)

func validateOptions(cmd *cobra.Command, _ []string) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	locale, err := catalog.NormalizeLocale(viper.GetString("language"))
	if err != nil {
		return fmt.Errorf("invalid language: %w", err)
	}
	viper.Set("language", locale)

	switch e := viper.GetString("engine"); e {
	case "piper", "mock":
	default:
		return fmt.Errorf("unknown engine %q: use piper or mock", e)
	}

	log.Debug("Options", "command", cmd.Name(), "language", locale, "engine", viper.GetString("engine"))
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&language, "language", "l", "en-US", "voice locale")
	rootCmd.PersistentFlags().StringVar(&engineName, "engine", "piper", "synthesis engine (piper or mock)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug logs")

	_ = viper.BindPFlag("language", rootCmd.PersistentFlags().Lookup("language"))
	_ = viper.BindPFlag("engine", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	setDefaults()

	rootCmd.AddCommand(sayCmd, voicesCmd, speakersCmd, installCmd, watchCmd, cacheCmd, configCmd, manCmd)
}

func setDefaults() {
	viper.SetDefault("language", "en-US")
	viper.SetDefault("engine", "piper")
	viper.SetDefault("debug", false)

	viper.SetDefault("piper.voice", "arctic")
	viper.SetDefault("piper.speaker", "")
	viper.SetDefault("piper.models_dir", "")
	viper.SetDefault("piper.binary", "piper")
	viper.SetDefault("piper.length_scale", 1.0)
	viper.SetDefault("piper.noise_scale", 0.667)
	viper.SetDefault("piper.noise_w", 0.8)
	viper.SetDefault("piper.sentence_silence", 0.2)

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.dir", "")
	viper.SetDefault("cache.memory_mb", 32)
	viper.SetDefault("cache.disk_mb", 256)
	viper.SetDefault("cache.ttl_days", 7)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "pipervoice")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "pipervoice")}, dirs...)
	}

	if c := os.Getenv("PIPERVOICE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("pipervoice")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("pipervoice")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	// Created on demand by the config command.
	defaultConfigFile = filepath.Join(dirs[0], "pipervoice.yml")
}
