package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/dndj/dndj/internal/config"
)

var force bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a settings file with the default values",
	Args:  cobra.NoArgs,
	// The settings file may not exist yet, so skip loading it.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing settings file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := config.WriteDefaultConfig(path); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
