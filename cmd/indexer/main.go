package main

import (
	"context"
	"flag"
	"log"
	"time"

	"dramahub/internal/cache"
	"dramahub/internal/catalog"
	"dramahub/internal/explore"
	"dramahub/internal/ratings"
	"dramahub/pkg/database"
	"dramahub/pkg/logger"
	"dramahub/pkg/utils"
)

func main() {
	strategyName := flag.String("strategy", "view-proxy", "rating strategy: view-proxy or community")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cfg := utils.LoadConfig()

	zlog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer zlog.Sync()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		zlog.Fatalw("db migrate failed", "error", err)
	}

	fastCache := cache.New(zlog, cfg.RedisAddr)
	defer fastCache.Close()

	var strategy explore.RatingStrategy = explore.ViewProxyRating{}
	if *strategyName == "community" {
		strategy = explore.CommunityRating{}
	}

	builder := explore.NewBuilder(zlog, catalog.NewRepo(db), explore.NewRepo(db),
		ratings.NewRepo(db), fastCache, strategy)

	rows, err := builder.Run(ctx)
	if err != nil {
		zlog.Fatalw("index rebuild failed", "error", err)
	}
	zlog.Infow("index rebuild complete", "rows", rows)
}
