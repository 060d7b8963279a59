package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"media-convert/config"
	jobHandler "media-convert/handler"
	"media-convert/pkg/metrics"
	"media-convert/pkg/objectstore"
	"media-convert/pkg/queue"
	"media-convert/repository"
	"media-convert/service"
)

// RunAPI starts the API process: upload, enqueue and retrieval endpoints.
func RunAPI(cfg *config.Config) {
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

	reg := prometheus.NewRegistry()
	m := metrics.NewAPI(reg)

	h := &jobHandler.Handler{
		Media:      service.NewMediaService(repo, store, cfg.Buckets.Uploads),
		Enqueuer:   service.NewEnqueuer(repo, q, cfg.Buckets.Outputs),
		Metrics:    m,
		PresignTTL: time.Hour,
	}

	r := gin.Default()
	addHealth(r)
	addMetrics(r, reg)
	jobHandler.Register(r, h)
	serveHTTP(ctx, cfg, r)
}
