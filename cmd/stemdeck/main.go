package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/satindergrewal/stemdeck/internal/api"
	"github.com/satindergrewal/stemdeck/internal/asset"
	"github.com/satindergrewal/stemdeck/internal/config"
	"github.com/satindergrewal/stemdeck/internal/engine"
	"github.com/satindergrewal/stemdeck/internal/keys"
	"github.com/satindergrewal/stemdeck/internal/logging"
	"github.com/satindergrewal/stemdeck/internal/mixgraph"
	"github.com/satindergrewal/stemdeck/internal/output"
	"github.com/satindergrewal/stemdeck/internal/stream"
	"github.com/satindergrewal/stemdeck/internal/web"
)

type args struct {
	Song     string `arg:"positional" help:"song id to load at startup"`
	Assets   string `arg:"--assets" help:"stem directory or http(s) base URL"`
	Catalog  string `arg:"--catalog" help:"YAML song catalog, reloaded on change"`
	Output   string `arg:"--output" help:"speaker, oto, portaudio or headless"`
	Port     int    `arg:"--port" help:"HTTP port"`
	LogLevel string `arg:"--log-level" help:"debug, info, warn or error"`
	NoKeys   bool   `arg:"--no-keys" help:"disable keyboard controls"`
}

func (args) Description() string {
	return "stemdeck plays the stems of a song in sync and lets you mute them live."
}

// apply overrides cfg with every flag that was given.
func (a args) apply(cfg *config.Config) {
	if a.Assets != "" {
		cfg.Assets = a.Assets
	}
	if a.Catalog != "" {
		cfg.Catalog = a.Catalog
	}
	if a.Output != "" {
		cfg.Output = a.Output
	}
	if a.Port != 0 {
		cfg.Port = a.Port
	}
	if a.LogLevel != "" {
		cfg.LogLevel = a.LogLevel
	}
	if a.NoKeys {
		cfg.Keyboard = false
	}
}

func main() {
	cfg := config.Load()
	var a args
	arg.MustParse(&a)
	a.apply(&cfg)

	logger := logging.New(cfg.LogLevel, cfg.LogPretty)
	if err := run(cfg, a.Song, logger); err != nil {
		logger.Fatal().Err(err).Msg("stemdeck failed")
	}
}

func run(cfg config.Config, song string, logger zerolog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info().Str("assets", cfg.Assets).Str("output", cfg.Output).Msg("stemdeck starting up...")

	var store asset.Store
	if cfg.RemoteAssets() {
		store = asset.NewHTTPStore(cfg.Assets)
	} else {
		store = asset.NewFSStore(cfg.Assets)
	}

	catalog := asset.NewCatalog(asset.DefaultTitles)
	if cfg.Catalog != "" {
		c, err := asset.LoadCatalog(cfg.Catalog)
		if err != nil {
			return err
		}
		catalog = c
	}

	graph := mixgraph.New(cfg.MasterGain, logger)

	backend, err := output.New(output.Options{Kind: cfg.Output, Buffer: cfg.Buffer}, graph, logger)
	if err != nil {
		return err
	}

	// Broadcaster: fan-out rendered mix frames to remote listeners
	broadcaster := stream.NewBroadcaster(logger)
	hub := api.NewHub(logger)

	eng := engine.New(graph, store, engine.MultiSink{engine.NewLogSink(logger), hub}, engine.Options{
		Fade:        cfg.Fade,
		EndDebounce: cfg.EndDebounce,
		Tick:        cfg.Tick,
		Names:       catalog,
	}, logger)

	mux := http.NewServeMux()
	mux.Handle("/", web.Handler())
	mux.Handle("/stream", stream.NewHTTPHandler(broadcaster, cfg.MP3Bitrate, logger))
	mux.Handle("/offer", stream.NewWebRTCHandler(broadcaster, cfg.OpusBitrate, logger))
	api.New(eng, catalog, hub, logger).Register(mux)

	g, ctx := errgroup.WithContext(ctx)
	server := &http.Server{
		Addr:        cfg.ListenAddr(),
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error { return eng.Run(ctx) })
	g.Go(func() error { return backend.Run(ctx) })
	g.Go(func() error {
		broadcaster.Run(ctx, backend.Frames())
		return nil
	})
	if cfg.Catalog != "" {
		g.Go(func() error { return catalog.Watch(ctx, cfg.Catalog, logger) })
	}
	g.Go(func() error {
		logger.Info().Str("addr", cfg.ListenAddr()).Msg("stemdeck live")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down...")
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return server.Shutdown(shutdownCtx)
	})

	keysDone := make(chan struct{})
	if cfg.Keyboard {
		go func() {
			defer close(keysDone)
			err := keys.Run(ctx, eng, cancel, logger)
			if errors.Is(err, keys.ErrNotTerminal) {
				logger.Info().Msg("stdin is not a terminal, keyboard controls off")
			} else if err != nil {
				logger.Warn().Err(err).Msg("keyboard controls stopped")
			}
		}()
	} else {
		close(keysDone)
	}

	if song != "" {
		go func() {
			if err := eng.SelectSong(song); err != nil {
				logger.Warn().Err(err).Str("song", song).Msg("initial song not loaded")
			}
		}()
	}

	err = g.Wait()
	<-keysDone // terminal restored
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("bye")
	return nil
}
