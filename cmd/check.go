package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dndj/dndj/internal/checker"
	"github.com/dndj/dndj/internal/log"
	"github.com/dndj/dndj/internal/ui/styles"
)

var watch bool

var checkCmd = &cobra.Command{
	Use:   "check <ambiance.yaml>",
	Short: "Validate an ambiance file",
	Long: `Check that track list names are unique, every "next" exists, every local
file is on disk and every remote link is reachable. With --watch the file is
checked again whenever it (or a YAML file next to it) changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-check on every change")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, closeCache, err := openChecker()
	if err != nil {
		return err
	}
	defer closeCache()

	path := args[0]
	out := cmd.OutOrStdout()
	if err := checkOnce(ctx, c, path, out); !watch {
		return err
	}

	return checker.Watch(ctx, path, func() {
		_ = checkOnce(ctx, c, path, out)
	})
}

// checkOnce loads and validates path, printing a one-line verdict.
func checkOnce(ctx context.Context, c *checker.Checker, path string, out io.Writer) error {
	lib, err := loadAmbiance(path)
	if err == nil {
		err = c.Check(ctx, lib)
	}
	if err != nil {
		log.ErrorErr(log.CatCheck, "Ambiance is invalid", err, "path", path)
		_, _ = fmt.Fprintf(out, "%s %s\n%v\n", styles.ErrorStyle.Render("✗"), path, err)
		return err
	}
	_, _ = fmt.Fprintf(out, "%s %s\n", styles.SuccessStyle.Render("✓"), path)
	return nil
}
