package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"media-convert/config"
	"media-convert/constant"
)

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}

func signalContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}
	return ctx, cancel
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func addMetrics(r *gin.Engine, reg *prometheus.Registry) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
}

// serveHTTP runs the gin engine until ctx is done, then shuts down
// gracefully. Request contexts inherit ctx so handlers and services can use
// the process logger.
func serveHTTP(ctx context.Context, cfg *config.Config, r *gin.Engine) {
	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Str("port", cfg.Server.HttpPort).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}
