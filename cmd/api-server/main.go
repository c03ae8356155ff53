package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"dramahub/internal/aggregator"
	"dramahub/internal/cache"
	"dramahub/internal/catalog"
	"dramahub/internal/explore"
	"dramahub/internal/history"
	"dramahub/internal/ratings"
	"dramahub/internal/realtime"
	"dramahub/internal/source"
	"dramahub/pkg/database"
	"dramahub/pkg/logger"
	"dramahub/pkg/utils"
)

func main() {
	cfg := utils.LoadConfig()

	zlog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer zlog.Sync()

	dbCfg := database.DefaultConfig()
	db := database.MustOpen(dbCfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		zlog.Fatalw("db migrate failed", "error", err)
	}

	fastCache := cache.New(zlog, cfg.RedisAddr)
	defer fastCache.Close()

	registry := source.NewRegistry(zlog,
		source.NewDramaBox(),
		source.NewFlickReels(cfg.EnrichLimit),
		source.NewNetShort(cfg.EnrichLimit),
	)

	router := gin.Default()

	// Optional: avoid “trusted all proxies” warning
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	hub := realtime.NewHub()
	router.GET("/ws", realtime.WSHandler(hub, zlog))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbCfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"db_error":   err.Error(),
				"cache":      fastCache.Enabled(),
				"ws_clients": stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "ready",
			"db":         "ok",
			"cache":      fastCache.Enabled(),
			"ws_clients": stats.WSClients,
		})
	})

	videoRepo := catalog.NewRepo(db)
	historyRepo := history.NewRepo(db)
	ratingRepo := ratings.NewRepo(db)
	indexRepo := explore.NewRepo(db)

	svc := aggregator.NewService(zlog, registry, videoRepo, historyRepo,
		fastCache, hub, cfg.ResponseTTL)
	aggHandler := aggregator.NewHandler(svc, historyRepo, zlog)
	aggHandler.RegisterRoutes(router)

	videos := router.Group("/videos")
	catalogHandler := catalog.NewHandler(videoRepo, fastCache, zlog, cfg.ResponseTTL)
	catalogHandler.RegisterRoutes(videos)
	aggHandler.RegisterRankingRoutes(videos)

	builder := explore.NewBuilder(zlog, videoRepo, indexRepo, ratingRepo,
		fastCache, explore.ViewProxyRating{})
	exploreHandler := explore.NewHandler(indexRepo, builder, zlog)
	exploreHandler.RegisterRoutes(videos)

	ratingHandler := ratings.NewHandler(ratingRepo, zlog)
	ratingHandler.RegisterRoutes(router.Group("/ratings"))

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Infow("http api server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		zlog.Infow("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		zlog.Errorw("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zlog.Errorw("http shutdown error", "error", err)
	}
	zlog.Infow("server stopped")
}
