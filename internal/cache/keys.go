package cache

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	trendingSet = "trending:videos"
	hotSet      = "hot:videos"

	homeCachePrefix   = "cache:home:"
	videosCachePrefix = "cache:videos:all:"

	hotWindowHours = 24
	bucketTTL      = 24 * time.Hour
)

// Key encodes the system-wide natural key for the fast cache.
func Key(source, externalID string) string {
	return source + ":" + externalID
}

// ParseKey splits a cache key back into (source, externalID). Cache
// contents can be stale relative to the key scheme, so anything that is
// not exactly two non-empty parts is rejected rather than panicking.
func ParseKey(key string) (source, externalID string, ok bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// HomeCacheKey returns the response-cache key for one source's home, or
// the aggregated home when source is empty.
func HomeCacheKey(source string) string {
	if source == "" {
		return homeCachePrefix + "aggregate"
	}
	return homeCachePrefix + source
}

func VideosCacheKey(limit, offset int) string {
	return fmt.Sprintf("%s%d:%d", videosCachePrefix, limit, offset)
}

// hourEpoch buckets a timestamp into hours since the Unix epoch.
func hourEpoch(t time.Time) int64 {
	return t.Unix() / 3600
}

func bucketKey(key string, hour int64) string {
	return fmt.Sprintf("views_24h:%s:%d", key, hour)
}

// HotWeight is the decay weight applied to a view h full hours old:
// e^(-h/24). The current hour weighs 1, views a day old ~0.37.
func HotWeight(hoursAgo int) float64 {
	return math.Exp(-float64(hoursAgo) / float64(hotWindowHours))
}

// DecayedScore folds hourly view counts into one hot score. counts[0]
// is the current hour, counts[1] one hour ago, and so on.
func DecayedScore(counts []int64) float64 {
	var score float64
	for h, c := range counts {
		if c == 0 {
			continue
		}
		score += float64(c) * HotWeight(h)
	}
	return score
}
