package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bnema/mediaq/config"
	"github.com/bnema/mediaq/internal/adapter/classify"
	"github.com/bnema/mediaq/internal/adapter/converter/ffmpeg"
	httpadapter "github.com/bnema/mediaq/internal/adapter/http"
	sqlitestore "github.com/bnema/mediaq/internal/adapter/storage/sqlite"
	"github.com/bnema/mediaq/internal/domain"
	"github.com/bnema/mediaq/internal/infrastructure/logger"
	"github.com/bnema/mediaq/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.LogLevel, cfg.LogPretty)

	layout := domain.Layout{Root: cfg.DataDir}
	if err := layout.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Str("data_dir", cfg.DataDir).Msg("failed to create data directories")
	}

	store, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() { _ = store.Close() }()

	engine := ffmpeg.NewEngine(engineParams(cfg))
	eventBus := service.NewEventBus()

	queue := service.NewQueue(
		store,
		store,
		classify.NewClassifier(),
		engine,
		service.NewRelocator(layout),
		eventBus,
		layout,
	)

	// Crash recovery must finish before the ingress accepts submissions:
	// orphaned records from a previous run are failed and their transient
	// files deleted, then the drain loop starts.
	queueCtx, queueCancel := context.WithCancel(context.Background())
	defer queueCancel()
	if err := queue.Start(queueCtx); err != nil {
		log.Fatal().Err(err).Msg("queue startup failed")
	}

	server := httpadapter.NewServer(queue, eventBus, layout, cfg.MaxUploadSizeMB)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown error")
		}

		// Cancel the pipeline last so an in-flight encode gets the shutdown
		// window to finish or abort cleanly.
		queueCancel()
	}()

	log.Info().Str("addr", addr).Str("data_dir", cfg.DataDir).Msg("mediaq listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// engineParams overlays configured tunables onto the pipeline defaults. Unset
// values (zero or empty) keep the default.
func engineParams(cfg *config.Config) ffmpeg.Params {
	p := ffmpeg.DefaultParams()
	p.FFmpegBin = cfg.FFmpegBin
	p.FFprobeBin = cfg.FFprobeBin

	overlays := []struct {
		dst *int
		v   int
	}{
		{&p.ImageMaxDim, cfg.ImageMaxDim},
		{&p.ImageQuality, cfg.ImageQuality},
		{&p.ThumbMaxDim, cfg.ThumbMaxDim},
		{&p.ThumbQuality, cfg.ThumbQuality},
		{&p.VideoMaxHeight, cfg.VideoMaxHeight},
		{&p.VideoCRF, cfg.VideoCRF},
		{&p.WebmCRF, cfg.WebmCRF},
		{&p.ThumbVideoWidth, cfg.ThumbVideoWidth},
		{&p.ThumbVideoSeconds, cfg.ThumbVideoSeconds},
		{&p.ThumbVideoCRF, cfg.ThumbVideoCRF},
		{&p.GifFPS, cfg.GifFPS},
		{&p.GifWidth, cfg.GifWidth},
	}
	for _, o := range overlays {
		if o.v > 0 {
			*o.dst = o.v
		}
	}
	if cfg.AudioBitrate != "" {
		p.AudioBitrate = cfg.AudioBitrate
	}
	if cfg.PosterOffset != "" {
		p.PosterOffset = cfg.PosterOffset
	}
	return p
}
