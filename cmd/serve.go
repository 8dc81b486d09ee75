package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dndj/dndj/internal/audio/mpv"
	"github.com/dndj/dndj/internal/audio/sfx"
	"github.com/dndj/dndj/internal/checker"
	"github.com/dndj/dndj/internal/config"
	"github.com/dndj/dndj/internal/events"
	"github.com/dndj/dndj/internal/frontend"
	"github.com/dndj/dndj/internal/infrastructure/sqlite"
	"github.com/dndj/dndj/internal/library"
	"github.com/dndj/dndj/internal/log"
	"github.com/dndj/dndj/internal/music"
	"github.com/dndj/dndj/internal/sound"
	"github.com/dndj/dndj/internal/stream"
	"github.com/dndj/dndj/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

var skipCheck bool

var serveCmd = &cobra.Command{
	Use:   "serve <ambiance.yaml>",
	Short: "Validate an ambiance and serve it to remote controls",
	Args:  cobra.ExactArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipCheck, "skip-check", false, "start without validating files and remote links")
	rootCmd.AddCommand(serveCmd)
}

func musicOptions(f config.FadeConfig) music.Options {
	return music.Options{Steps: f.Steps, FadeIn: f.FadeIn, FadeOut: f.FadeOut, VolumeChange: f.VolumeChange}
}

// openChecker opens the link cache and returns a checker backed by it.
func openChecker() (*checker.Checker, func(), error) {
	db, err := sqlite.NewDB(cfg.Cache.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening link cache: %w", err)
	}
	c := checker.New(db.LinkCache(cfg.Cache.MaxLinks), checker.NewOEmbedProber(cfg.Stream.Timeout))
	return c, func() { _ = db.Close() }, nil
}

// validate runs the full check, or only the name check with --skip-check.
func validate(ctx context.Context, lib *library.Library) error {
	if skipCheck {
		return checker.CheckNames(lib.Music)
	}
	c, closeCache, err := openChecker()
	if err != nil {
		return err
	}
	defer closeCache()
	return c.Check(ctx, lib)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn(log.CatServer, "Tracing shutdown failed", "error", err)
		}
	}()

	lib, err := loadAmbiance(args[0])
	if err != nil {
		return err
	}
	if err := validate(ctx, lib); err != nil {
		return fmt.Errorf("%s is not valid: %w", args[0], err)
	}

	bus := events.NewBus()
	defer bus.Shutdown()

	resolver := stream.NewYTDLP(cfg.Stream.Format, cfg.Stream.TTL, cfg.Stream.Timeout)
	musicManager := music.NewManager(lib.Music, mpv.New(cfg.Audio.MPVPath), resolver, bus, musicOptions(cfg.Fade))
	soundManager := sound.NewManager(lib.Sound, sfx.New(cfg.Audio.SampleRate), bus)

	handler := frontend.NewHandler(musicManager, soundManager, bus, frontend.Options{
		OriginPatterns: cfg.Server.AllowedOrigins,
	})
	mux := http.NewServeMux()
	handler.RegisterAPIRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	log.SafeGo("http.serve", func() { errCh <- srv.ListenAndServe() })

	log.Info(log.CatServer, "Serving", "addr", srv.Addr, "ambiance", args[0])
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "dndj listening on http://%s (websocket at /ws)\n", srv.Addr)

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info(log.CatServer, "Shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serving on %s: %w", srv.Addr, err)
		}
	}

	handler.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn(log.CatServer, "HTTP shutdown incomplete", "error", err)
	}
	musicManager.Close()
	soundManager.Close()
	return serveErr
}
