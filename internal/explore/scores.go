package explore

import (
	"time"

	"dramahub/internal/ratings"
	"dramahub/pkg/models"
)

// PopularityScore weighs recent activity 3x over lifetime views.
func PopularityScore(viewsTotal, views24h int64) int64 {
	return viewsTotal + views24h*3
}

// LatestScore is a monotonic proxy for recency.
func LatestScore(createdAt time.Time) int64 {
	return createdAt.Unix()
}

// RatingStrategy computes the rating score for one title. It is
// pluggable: no genuine rating signal existed originally, so the
// default is a lifetime-views proxy, with a community-vote strategy
// available once votes accumulate.
type RatingStrategy interface {
	Name() string
	RatingScore(v models.VideoWithStats, community ratings.Average) int64
}

// ViewProxyRating reproduces the historical placeholder:
// ratingScore = viewsTotal.
type ViewProxyRating struct{}

func (ViewProxyRating) Name() string { return "view-proxy" }

func (ViewProxyRating) RatingScore(v models.VideoWithStats, _ ratings.Average) int64 {
	return v.Stats.ViewsTotal
}

// CommunityRating scores by the average community vote (scaled to keep
// integer resolution) and falls back to the proxy for unrated titles.
type CommunityRating struct{}

func (CommunityRating) Name() string { return "community" }

func (CommunityRating) RatingScore(v models.VideoWithStats, community ratings.Average) int64 {
	if community.Votes == 0 {
		return v.Stats.ViewsTotal
	}
	return int64(community.Avg * 1000)
}
