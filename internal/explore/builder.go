package explore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"dramahub/internal/cache"
	"dramahub/internal/catalog"
	"dramahub/internal/ratings"
	"dramahub/pkg/models"
)

// Builder recomputes the explore index from a snapshot of
// videos + video_stats. The job is idempotent and re-entrant: running
// it twice back to back leaves the index unchanged, and it is safe to
// run while syncs are writing (the snapshot read plus idempotent
// upserts make ordering irrelevant).
type Builder struct {
	log      *zap.SugaredLogger
	videos   *catalog.Repo
	index    *Repo
	ratings  *ratings.Repo
	cache    *cache.Service
	strategy RatingStrategy
}

func NewBuilder(log *zap.SugaredLogger, videos *catalog.Repo, index *Repo,
	ratingRepo *ratings.Repo, c *cache.Service, strategy RatingStrategy) *Builder {
	if strategy == nil {
		strategy = ViewProxyRating{}
	}
	return &Builder{
		log:      log,
		videos:   videos,
		index:    index,
		ratings:  ratingRepo,
		cache:    c,
		strategy: strategy,
	}
}

// Run rebuilds the whole index and refreshes the cache's hot sorted
// set. Returns the number of index rows written.
func (b *Builder) Run(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	// Refresh the trailing 24h window first. The decay factor derives
	// from the time since the previous run, so an immediate re-run has
	// a factor of ~1 and changes nothing.
	if err := b.applyDecay(ctx, now); err != nil {
		return 0, err
	}

	snapshot, err := b.videos.ListWithStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot videos: %w", err)
	}

	avgs, err := b.ratings.Averages(ctx)
	if err != nil {
		return 0, fmt.Errorf("load rating averages: %w", err)
	}

	written := 0
	for _, vws := range snapshot {
		entry := models.ExploreEntry{
			Source:          vws.Source,
			ExternalID:      vws.ExternalID,
			Title:           vws.Title,
			Poster:          vws.Poster,
			Genres:          vws.Genres,
			ReleaseYear:     vws.ReleaseYear,
			TotalEpisodes:   vws.TotalEpisodes,
			PopularityScore: PopularityScore(vws.Stats.ViewsTotal, vws.Stats.Views24h),
			LatestScore:     LatestScore(vws.CreatedAt),
			RatingScore:     b.strategy.RatingScore(vws, avgs[cache.Key(vws.Source, vws.ExternalID)]),
		}
		if err := b.index.Upsert(ctx, entry); err != nil {
			b.log.Warnw("index upsert failed, skipping",
				"source", vws.Source, "external_id", vws.ExternalID, "error", err)
			continue
		}
		written++
	}

	if err := b.cache.UpdateHotScores(ctx, now); err != nil {
		b.log.Warnw("hot score refresh failed", "error", err)
	}

	if err := b.markBuilt(ctx, now); err != nil {
		b.log.Warnw("builder bookkeeping failed", "error", err)
	}

	b.log.Infow("explore index rebuilt",
		"rows", written, "strategy", b.strategy.Name())
	return written, nil
}

func (b *Builder) applyDecay(ctx context.Context, now time.Time) error {
	// last_built_at is declared TIMESTAMP, so the sqlite driver hands
	// back a time.Time even though we store unix seconds.
	var lastBuilt sql.NullTime
	err := b.videos.DB.QueryRowContext(ctx,
		`SELECT last_built_at FROM index_meta WHERE id = 1`).Scan(&lastBuilt)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read last build time: %w", err)
	}
	if !lastBuilt.Valid || lastBuilt.Time.Unix() <= 0 {
		return nil
	}

	elapsed := now.Sub(lastBuilt.Time)
	if elapsed <= 0 {
		return nil
	}
	if elapsed > 24*time.Hour {
		elapsed = 24 * time.Hour
	}
	factor := math.Exp(-elapsed.Hours() / 24)
	return b.videos.DecayRecentViews(ctx, factor)
}

func (b *Builder) markBuilt(ctx context.Context, now time.Time) error {
	_, err := b.videos.DB.ExecContext(ctx, `
		INSERT INTO index_meta (id, last_built_at) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET last_built_at = excluded.last_built_at
	`, now.Unix())
	return err
}
