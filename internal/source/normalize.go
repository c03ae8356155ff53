package source

import (
	"strconv"
	"strings"
	"unicode"
)

// EpisodeNumber resolves an episode number from provider fields, first
// non-null source wins:
//
//  1. explicit numeric field
//  2. integer parsed from a human label ("EP 12" -> 12)
//  3. zero-based chapter index + 1
//  4. array position + 1
//
// The result is always 1-based.
func EpisodeNumber(explicit *int, label string, chapterIndex *int, position int) int {
	if explicit != nil && *explicit > 0 {
		return *explicit
	}
	if n := parseEpisodeLabel(label); n > 0 {
		return n
	}
	if chapterIndex != nil && *chapterIndex >= 0 {
		return *chapterIndex + 1
	}
	return position + 1
}

// parseEpisodeLabel extracts the first run of digits from a label.
// "EP 12" -> 12, "Episode 3 (final)" -> 3, "" -> 0.
func parseEpisodeLabel(label string) int {
	start := -1
	for i, r := range label {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, _ := strconv.Atoi(label[start:i])
			return n
		}
	}
	if start >= 0 {
		n, _ := strconv.Atoi(label[start:])
		return n
	}
	return 0
}

// Quality canonicalizes a provider quality string via substring match
// on digits. Unrecognized values map to "auto".
func Quality(raw string) string {
	for _, q := range []string{"1080", "720", "540", "480", "360"} {
		if strings.Contains(raw, q) {
			return q + "p"
		}
	}
	return "auto"
}

// StreamType prefers the explicit provider value; otherwise it is
// inferred from the URL suffix (.m3u8 -> hls, else mp4).
func StreamType(explicit, url string) string {
	if t := strings.ToLower(strings.TrimSpace(explicit)); t != "" {
		return t
	}
	if strings.HasSuffix(strings.ToLower(url), ".m3u8") {
		return "hls"
	}
	return "mp4"
}

// Genres falls back to a single category field when the provider has
// no genre list, else an empty list (never nil, so JSON stays []).
func Genres(genres []string, category string) []string {
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		g = strings.TrimSpace(g)
		if g != "" {
			out = append(out, g)
		}
	}
	if len(out) > 0 {
		return out
	}
	if c := strings.TrimSpace(category); c != "" {
		return []string{c}
	}
	return out
}
