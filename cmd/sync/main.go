package main

import (
	"context"
	"log"
	"time"

	"dramahub/internal/aggregator"
	"dramahub/internal/cache"
	"dramahub/internal/catalog"
	"dramahub/internal/history"
	"dramahub/internal/source"
	"dramahub/pkg/database"
	"dramahub/pkg/logger"
	"dramahub/pkg/utils"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := utils.LoadConfig()

	zlog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer zlog.Sync()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	// Ensure schema exists
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

	svc := aggregator.NewService(zlog, registry, catalog.NewRepo(db),
		history.NewRepo(db), fastCache, nil, cfg.ResponseTTL)

	report := svc.SyncAll(ctx)
	if len(report.Errors) > 0 {
		zlog.Warnw("some sources failed", "errors", report.Errors)
	}
	zlog.Infow("sync complete",
		"run_id", report.RunID, "total", report.Total, "per_source", report.Synced)
}
