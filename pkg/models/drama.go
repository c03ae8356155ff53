package models

// NormalizedDrama is the canonical form of a title entry produced by
// every source adapter.
//
// All upstream payloads are mapped into this structure first, then the
// aggregator writes to the DB from this representation. The pair
// (Source, ID) identifies a title across the whole system; ID alone is
// only unique within its provider.
type NormalizedDrama struct {
	ID            string   `json:"id"`
	Source        string   `json:"source"`
	Title         string   `json:"title"`
	Poster        string   `json:"poster,omitempty"`
	Description   string   `json:"description,omitempty"`
	Genres        []string `json:"genres"`
	ReleaseYear   int      `json:"release_year,omitempty"`
	Rating        float64  `json:"rating,omitempty"`
	TotalEpisodes *int     `json:"total_episodes,omitempty"` // nil when the provider did not say
	ViewCount     int64    `json:"view_count,omitempty"`
}

// Stream is one playable rendition of an episode.
type Stream struct {
	Quality string `json:"quality"` // 1080p/720p/540p/480p/360p/auto
	URL     string `json:"url"`
	Type    string `json:"type"` // "hls" or "mp4"
}

type Subtitle struct {
	Language string `json:"language"`
	URL      string `json:"url"`
}

// NormalizedEpisode belongs to exactly one drama. EpisodeNumber is
// 1-based and unique within its drama.
type NormalizedEpisode struct {
	ID            string     `json:"id"`
	EpisodeNumber int        `json:"episode_number"`
	Streams       []Stream   `json:"streams,omitempty"`
	Subtitles     []Subtitle `json:"subtitles,omitempty"`
	IsLocked      bool       `json:"is_locked"`
	Duration      int        `json:"duration,omitempty"` // seconds
}

// HomeData is a provider's home page, already normalized.
type HomeData struct {
	Banners  []NormalizedDrama `json:"banners"`
	Trending []NormalizedDrama `json:"trending"`
	Latest   []NormalizedDrama `json:"latest"`
}

// DramaDetail is full title detail plus the episode list.
type DramaDetail struct {
	NormalizedDrama
	Episodes []NormalizedEpisode `json:"episodes"`
}
