package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEpisodeNumberPriority(t *testing.T) {
	explicit := 7
	idx := 4

	// Explicit field beats everything.
	assert.Equal(t, 7, EpisodeNumber(&explicit, "EP 12", &idx, 0))

	// Label beats index and position.
	assert.Equal(t, 12, EpisodeNumber(nil, "EP 12", &idx, 0))

	// Zero-based index beats position.
	assert.Equal(t, 5, EpisodeNumber(nil, "", &idx, 0))

	// Position is the last resort, always 1-based.
	assert.Equal(t, 1, EpisodeNumber(nil, "", nil, 0))
	assert.Equal(t, 10, EpisodeNumber(nil, "", nil, 9))
}

func TestEpisodeNumberIgnoresUselessInputs(t *testing.T) {
	zero := 0
	// Explicit zero is not a valid number, fall through.
	assert.Equal(t, 3, EpisodeNumber(&zero, "Episode 3", nil, 0))

	// Label without digits falls through too.
	assert.Equal(t, 2, EpisodeNumber(nil, "Finale", nil, 1))

	idx := 0
	// Index 0 is valid and means episode 1.
	assert.Equal(t, 1, EpisodeNumber(nil, "no digits", &idx, 8))
}

func TestParseEpisodeLabel(t *testing.T) {
	assert.Equal(t, 12, parseEpisodeLabel("EP 12"))
	assert.Equal(t, 3, parseEpisodeLabel("Episode 3 (final)"))
	assert.Equal(t, 101, parseEpisodeLabel("101"))
	assert.Equal(t, 0, parseEpisodeLabel(""))
	assert.Equal(t, 0, parseEpisodeLabel("Finale"))
}

func TestQuality(t *testing.T) {
	assert.Equal(t, "1080p", Quality("1080"))
	assert.Equal(t, "720p", Quality("720P"))
	assert.Equal(t, "540p", Quality("FHD 540"))
	assert.Equal(t, "auto", Quality("default"))
	assert.Equal(t, "auto", Quality(""))
}

func TestStreamType(t *testing.T) {
	assert.Equal(t, "hls", StreamType("hls", "https://cdn.example.com/v.mp4"))
	assert.Equal(t, "hls", StreamType("", "https://cdn.example.com/master.M3U8"))
	assert.Equal(t, "mp4", StreamType("", "https://cdn.example.com/v.mp4"))
	assert.Equal(t, "mp4", StreamType("", "https://cdn.example.com/v"))
}

func TestGenres(t *testing.T) {
	assert.Equal(t, []string{"Romance", "Drama"}, Genres([]string{" Romance ", "Drama", ""}, "CEO"))
	assert.Equal(t, []string{"CEO"}, Genres(nil, " CEO "))

	out := Genres(nil, "")
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
