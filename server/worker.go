package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"media-convert/config"
	"media-convert/pkg/metrics"
	"media-convert/pkg/objectstore"
	"media-convert/pkg/queue"
	"media-convert/repository"
	"media-convert/service"
	"media-convert/worker"
)

// RunWorker starts the conversion worker process: N dispatch loops over the
// shared queue plus a health/metrics HTTP endpoint.
func RunWorker(cfg *config.Config) {
	ctx, cancel := signalContext(cfg)
	defer cancel()

	rdb, err := config.NewRedisConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRedisConn")
		return
	}

	q := queue.New(rdb, cfg.Queue.Queue)
	repo := repository.NewRepo(cfg.DB)
	store := objectstore.New(cfg.Storage)
	engine := service.NewEngine(cfg.Worker.FFmpegPath)

	reg := prometheus.NewRegistry()
	m := metrics.NewWorker(reg, cfg.Worker.ID)

	w := worker.New(q, repo, store, engine, m, worker.Options{
		ID:          cfg.Worker.ID,
		TempDir:     cfg.Worker.TempDir,
		PollTimeout: cfg.Worker.PollTimeout,
		RetryDelay:  cfg.Worker.RetryDelay,
	})

	go func() {
		if err := w.RunPool(ctx, cfg.Server.Workers); err != nil {
			zerolog.Ctx(ctx).Info().Err(err).Msg("worker pool stopped")
		}
	}()

	r := gin.Default()
	addHealth(r)
	addMetrics(r, reg)
	serveHTTP(ctx, cfg, r)
}
