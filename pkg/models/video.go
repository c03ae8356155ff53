package models

import "time"

// Video is the durable representation of a drama. The surrogate ID is
// assigned by the store; (Source, ExternalID) is the upsert key.
type Video struct {
	ID            int64     `json:"id"`
	Source        string    `json:"source"`
	ExternalID    string    `json:"external_id"`
	Title         string    `json:"title"`
	Poster        string    `json:"poster,omitempty"`
	Description   string    `json:"description,omitempty"`
	Genres        []string  `json:"genres"`
	ReleaseYear   int       `json:"release_year,omitempty"`
	Rating        float64   `json:"rating,omitempty"`
	TotalEpisodes int       `json:"total_episodes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// VideoStats is one-to-one with Video. ViewsTotal only ever grows;
// Views24h is a trailing window maintained by decay, not truncation.
type VideoStats struct {
	VideoID      int64      `json:"video_id"`
	ViewsTotal   int64      `json:"views_total"`
	Views24h     int64      `json:"views_24h"`
	LastViewedAt *time.Time `json:"last_viewed_at,omitempty"`
}

type VideoWithStats struct {
	Video
	Stats VideoStats `json:"stats"`
}

// RankedVideo pairs a video with the score that ranked it, either from
// the fast cache or a store fallback query.
type RankedVideo struct {
	Video
	Score float64 `json:"score"`
}

// ExploreEntry is a rebuildable projection of Video+VideoStats with
// precomputed integer scores. It is a cache, never a source of truth.
type ExploreEntry struct {
	ID              int64    `json:"id"`
	Source          string   `json:"source"`
	ExternalID      string   `json:"external_id"`
	Title           string   `json:"title"`
	Poster          string   `json:"poster,omitempty"`
	Genres          []string `json:"genres"`
	ReleaseYear     int      `json:"release_year,omitempty"`
	TotalEpisodes   int      `json:"total_episodes,omitempty"`
	PopularityScore int64    `json:"popularity_score"`
	LatestScore     int64    `json:"latest_score"`
	RatingScore     int64    `json:"rating_score"`
}

// WatchEntry is one row of user watch history.
type WatchEntry struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"user_id"`
	VideoID         int64     `json:"video_id"`
	EpisodeNumber   int       `json:"episode_number"`
	ProgressSeconds int       `json:"progress_seconds"`
	At              time.Time `json:"at"`
}

// VideoRating is one community rating vote for a title.
type VideoRating struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Source     string    `json:"source"`
	ExternalID string    `json:"external_id"`
	Rating     int       `json:"rating"` // 1..5
	At         time.Time `json:"at"`
}
