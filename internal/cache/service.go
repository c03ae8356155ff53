package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ScoredKey is one ranked member of a trending/hot sorted set.
type ScoredKey struct {
	Key   string
	Score float64
}

// Service wraps the redis fast cache. The cache is advisory: when the
// backend is unconfigured or unreachable every operation degrades to a
// no-op miss and callers fall through to the durable store. Cache
// problems are logged, never returned to request handlers.
type Service struct {
	log *zap.SugaredLogger
	rdb *goredis.Client
}

// New connects to redis at addr. An empty addr, or a failed ping,
// yields a disabled service rather than an error.
func New(log *zap.SugaredLogger, addr string) *Service {
	if addr == "" {
		log.Infow("fast cache disabled, no redis address configured")
		return &Service{log: log}
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warnw("redis unreachable, fast cache disabled", "addr", addr, "error", err)
		_ = rdb.Close()
		return &Service{log: log}
	}

	return &Service{log: log, rdb: rdb}
}

func (s *Service) Enabled() bool { return s != nil && s.rdb != nil }

func (s *Service) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.rdb.Close()
}

// GetJSON loads key into dest. Returns false on miss, disabled cache,
// or any backend/decode error.
func (s *Service) GetJSON(ctx context.Context, key string, dest any) bool {
	if !s.Enabled() {
		return false
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			s.log.Debugw("cache get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.log.Debugw("cache entry undecodable, treating as miss", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Service) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Debugw("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := s.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		s.log.Debugw("cache set failed", "key", key, "error", err)
	}
}

func (s *Service) Del(ctx context.Context, keys ...string) {
	if !s.Enabled() || len(keys) == 0 {
		return
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.log.Debugw("cache del failed", "error", err)
	}
}

// IncrTrending bumps the lifetime trending score for a key. Monotonic,
// never decays.
func (s *Service) IncrTrending(ctx context.Context, key string) {
	if !s.Enabled() {
		return
	}
	if err := s.rdb.ZIncrBy(ctx, trendingSet, 1, key).Err(); err != nil {
		s.log.Debugw("trending incr failed", "key", key, "error", err)
	}
}

// RecordHotView counts one view in the current hourly bucket. Buckets
// expire after 24h so the window maintains itself.
func (s *Service) RecordHotView(ctx context.Context, key string, now time.Time) {
	if !s.Enabled() {
		return
	}
	bk := bucketKey(key, hourEpoch(now))
	pipe := s.rdb.Pipeline()
	pipe.Incr(ctx, bk)
	pipe.Expire(ctx, bk, bucketTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Debugw("hot view record failed", "key", key, "error", err)
	}
}

// HotScore computes the decayed 24h score for one key by scanning its
// hourly buckets. O(hours) per key; top-N reads go through the hot
// sorted set instead, which UpdateHotScores refreshes in batch.
func (s *Service) HotScore(ctx context.Context, key string, now time.Time) float64 {
	if !s.Enabled() {
		return 0
	}
	current := hourEpoch(now)
	bucketKeys := make([]string, 0, hotWindowHours)
	for h := 0; h < hotWindowHours; h++ {
		bucketKeys = append(bucketKeys, bucketKey(key, current-int64(h)))
	}

	vals, err := s.rdb.MGet(ctx, bucketKeys...).Result()
	if err != nil {
		s.log.Debugw("hot score read failed", "key", key, "error", err)
		return 0
	}

	counts := make([]int64, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		counts[i] = n
	}
	return DecayedScore(counts)
}

// UpdateHotScores recomputes the hot score for every key that has ever
// trended and rewrites the hot sorted set. Run from the index builder.
func (s *Service) UpdateHotScores(ctx context.Context, now time.Time) error {
	if !s.Enabled() {
		return nil
	}
	keys, err := s.rdb.ZRange(ctx, trendingSet, 0, -1).Result()
	if err != nil {
		return err
	}

	members := make([]goredis.Z, 0, len(keys))
	for _, key := range keys {
		if _, _, ok := ParseKey(key); !ok {
			continue
		}
		members = append(members, goredis.Z{Member: key, Score: s.HotScore(ctx, key, now)})
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, hotSet)
	if len(members) > 0 {
		pipe.ZAdd(ctx, hotSet, members...)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Service) TopTrending(ctx context.Context, n int) []ScoredKey {
	return s.topN(ctx, trendingSet, n)
}

func (s *Service) TopHot(ctx context.Context, n int) []ScoredKey {
	return s.topN(ctx, hotSet, n)
}

func (s *Service) topN(ctx context.Context, set string, n int) []ScoredKey {
	if !s.Enabled() || n <= 0 {
		return nil
	}
	zs, err := s.rdb.ZRevRangeWithScores(ctx, set, 0, int64(n-1)).Result()
	if err != nil {
		s.log.Debugw("sorted set read failed", "set", set, "error", err)
		return nil
	}
	out := make([]ScoredKey, 0, len(zs))
	for _, z := range zs {
		key, ok := z.Member.(string)
		if !ok {
			continue
		}
		if _, _, valid := ParseKey(key); !valid {
			continue
		}
		out = append(out, ScoredKey{Key: key, Score: z.Score})
	}
	return out
}

// InvalidateHome drops every home response-cache entry after a sync.
func (s *Service) InvalidateHome(ctx context.Context, sources []string) {
	keys := make([]string, 0, len(sources)+1)
	keys = append(keys, HomeCacheKey(""))
	for _, src := range sources {
		keys = append(keys, HomeCacheKey(src))
	}
	s.Del(ctx, keys...)
}
