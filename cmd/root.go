// Package cmd implements the dndj command line.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dndj/dndj/internal/config"
	"github.com/dndj/dndj/internal/log"
)

var (
	cfgFile  string
	logLevel string
	cfg      config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dndj",
	Short: "Music and sound effects for tabletop sessions",
	Long: `dndj plays scene music and sound effects described in an ambiance file
and lets any browser or remote on the network control them over a websocket.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	PersistentPostRun: func(*cobra.Command, []string) { _ = log.Close() },
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newViper reads settings from path, or from the default location when path
// is empty. A missing default file is not an error.
func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DNDJ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	config.SetDefaults(v)

	explicit := path != ""
	if !explicit {
		path = config.DefaultPath()
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}
	return v, nil
}

func initConfig(cmd *cobra.Command, _ []string) error {
	v, err := newViper(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		v.Set("log.level", logLevel)
	}
	cfg, err = config.Load(v)
	if err != nil {
		return err
	}
	if err := log.Init(log.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Stderr:     cmd.ErrOrStderr(),
	}); err != nil {
		return fmt.Errorf("initializing log: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debug(log.CatConfig, "Loaded settings", "path", used)
	}
	return nil
}
