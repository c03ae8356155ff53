package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"dramahub/pkg/models"
)

// FlickReelsAdapter is a second provider with a different JSON shape:
// numeric ids, a flat category string instead of a genre list, and
// episode labels instead of indices. Its public endpoints need no auth.
type FlickReelsAdapter struct {
	BaseURL string
	Client  *http.Client

	// EnrichLimit bounds how many "latest" items get a detail fetch to
	// fill in episode counts the feed omits.
	EnrichLimit int
}

func NewFlickReels(enrichLimit int) *FlickReelsAdapter {
	return &FlickReelsAdapter{
		BaseURL:     "https://open.flickreels.app",
		Client:      &http.Client{Timeout: 30 * time.Second},
		EnrichLimit: enrichLimit,
	}
}

func (a *FlickReelsAdapter) Name() string { return FlickReels }

func (a *FlickReelsAdapter) Init(ctx context.Context) error { return nil }

type frItem struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Cover         string `json:"cover"`
	Desc          string `json:"desc"`
	Category      string `json:"category"`
	TotalEpisodes int    `json:"total_episodes"`
	Views         int64  `json:"views"`
	Year          int    `json:"year"`
	Score         string `json:"score"` // "8.6"
}

type frEpisode struct {
	EpisodeID   string `json:"episode_id"`
	Label       string `json:"label"` // "EP 12"
	Locked      bool   `json:"locked"`
	Duration    int    `json:"duration"`
	Resolutions []struct {
		Name string `json:"name"` // "720P"
		URL  string `json:"url"`
	} `json:"resolutions"`
	Subtitles []struct {
		Lang string `json:"lang"`
		URL  string `json:"url"`
	} `json:"subtitles"`
}

func (a *FlickReelsAdapter) GetHome(ctx context.Context) (*models.HomeData, error) {
	var out struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			Banner []frItem `json:"banner"`
			Hot    []frItem `json:"hot"`
			Newest []frItem `json:"newest"`
		} `json:"data"`
	}
	if err := a.get(ctx, "/open/v1/feed", &out); err != nil {
		return nil, err
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("flickreels: code %d: %s", out.Code, out.Msg)
	}

	home := &models.HomeData{
		Banners:  mapFRItems(out.Data.Banner),
		Trending: mapFRItems(out.Data.Hot),
		Latest:   mapFRItems(out.Data.Newest),
	}
	// The feed omits episode counts for newest titles; enrich a bounded
	// prefix so one home load cannot fan out across the whole list.
	enrichLatest(ctx, a, home.Latest, a.EnrichLimit)
	return home, nil
}

func (a *FlickReelsAdapter) Search(ctx context.Context, query string) ([]models.NormalizedDrama, error) {
	var out struct {
		Code int      `json:"code"`
		Msg  string   `json:"msg"`
		Data []frItem `json:"data"`
	}
	if err := a.get(ctx, "/open/v1/search?q="+urlQuery(query), &out); err != nil {
		return nil, err
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("flickreels: code %d: %s", out.Code, out.Msg)
	}
	return mapFRItems(out.Data), nil
}

func (a *FlickReelsAdapter) GetDrama(ctx context.Context, id string) (*models.DramaDetail, error) {
	var out struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			Info     *frItem     `json:"info"`
			Episodes []frEpisode `json:"episodes"`
		} `json:"data"`
	}
	if err := a.get(ctx, "/open/v1/drama/"+urlQuery(id), &out); err != nil {
		return nil, err
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("flickreels: code %d: %s", out.Code, out.Msg)
	}
	if out.Data.Info == nil {
		return nil, ErrNotFound
	}

	detail := &models.DramaDetail{NormalizedDrama: mapFRItem(*out.Data.Info)}
	for i, e := range out.Data.Episodes {
		ep := models.NormalizedEpisode{
			ID:            e.EpisodeID,
			EpisodeNumber: EpisodeNumber(nil, e.Label, nil, i),
			IsLocked:      e.Locked,
			Duration:      e.Duration,
		}
		for _, res := range e.Resolutions {
			ep.Streams = append(ep.Streams, models.Stream{
				Quality: Quality(res.Name),
				URL:     res.URL,
				Type:    StreamType("", res.URL),
			})
		}
		for _, sub := range e.Subtitles {
			ep.Subtitles = append(ep.Subtitles, models.Subtitle{Language: sub.Lang, URL: sub.URL})
		}
		detail.Episodes = append(detail.Episodes, ep)
	}
	if detail.TotalEpisodes == nil && len(detail.Episodes) > 0 {
		n := len(detail.Episodes)
		detail.TotalEpisodes = &n
	}
	return detail, nil
}

func (a *FlickReelsAdapter) GetEpisode(ctx context.Context, id string, episodeNumber int) (*models.NormalizedEpisode, error) {
	detail, err := a.GetDrama(ctx, id)
	if err != nil {
		return nil, err
	}
	return episodeFromDetail(detail, episodeNumber)
}

func mapFRItems(items []frItem) []models.NormalizedDrama {
	out := make([]models.NormalizedDrama, 0, len(items))
	for _, it := range items {
		if it.ID == 0 {
			continue
		}
		out = append(out, mapFRItem(it))
	}
	return out
}

func mapFRItem(it frItem) models.NormalizedDrama {
	score, _ := strconv.ParseFloat(it.Score, 64)
	d := models.NormalizedDrama{
		ID:          strconv.FormatInt(it.ID, 10),
		Source:      FlickReels,
		Title:       it.Title,
		Poster:      it.Cover,
		Description: it.Desc,
		Genres:      Genres(nil, it.Category),
		ReleaseYear: it.Year,
		Rating:      score,
		ViewCount:   it.Views,
	}
	if it.TotalEpisodes > 0 {
		n := it.TotalEpisodes
		d.TotalEpisodes = &n
	}
	return d
}

func (a *FlickReelsAdapter) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("flickreels: build request: %w", err)
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return fmt.Errorf("flickreels: request: %w", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("flickreels: status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("flickreels: decode: %w", err)
	}
	return nil
}
