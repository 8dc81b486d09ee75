package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dndj/dndj/internal/ui/styles"
)

var listCmd = &cobra.Command{
	Use:   "list <ambiance.yaml>",
	Short: "Show the music and sound library of an ambiance file",
	Long:  `Print every group, track list and sound with the indices remote controls use.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := loadAmbiance(args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), styles.RenderLibrary(lib))
		return err
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
