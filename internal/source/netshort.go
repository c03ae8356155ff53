package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dramahub/pkg/models"
)

// NetShortAdapter is the slowest of the three upstreams, hence the
// generous client timeout. Episodes carry an explicit episodeNo and a
// single stream whose type is never stated.
type NetShortAdapter struct {
	BaseURL     string
	Client      *http.Client
	EnrichLimit int

	token string
}

func NewNetShort(enrichLimit int) *NetShortAdapter {
	return &NetShortAdapter{
		BaseURL:     "https://api.netshort.tv",
		Client:      &http.Client{Timeout: 60 * time.Second},
		EnrichLimit: enrichLimit,
	}
}

func (a *NetShortAdapter) Name() string { return NetShort }

func (a *NetShortAdapter) Init(ctx context.Context) error {
	var out struct {
		Token string `json:"token"`
	}
	if err := a.get(ctx, "/api/auth/anonymous", &out); err != nil {
		return fmt.Errorf("netshort: anonymous auth: %w", err)
	}
	if out.Token == "" {
		return fmt.Errorf("netshort: empty token")
	}
	a.token = out.Token
	return nil
}

type nsItem struct {
	ShortPlayID   string `json:"shortPlayId"`
	ShortPlayName string `json:"shortPlayName"`
	PicURL        string `json:"picUrl"`
	Blurb         string `json:"blurb"`
	Category      string `json:"category"`
	ScoreStr      string `json:"scoreStr"` // "8.9"
	Year          int    `json:"year"`
	EpisodeTotal  int    `json:"episodeTotal"`
	HotValue      int64  `json:"hotValue"`
}

type nsEpisode struct {
	EpisodeID string `json:"episodeId"`
	EpisodeNo int    `json:"episodeNo"` // explicit, 1-based
	PlayURL   string `json:"playUrl"`
	Quality   string `json:"quality"` // "540p"
	Locked    bool   `json:"locked"`
	Duration  int    `json:"duration"`
	SubURL    string `json:"subUrl"`
	SubLang   string `json:"subLang"`
}

func (a *NetShortAdapter) GetHome(ctx context.Context) (*models.HomeData, error) {
	var out struct {
		Banners []nsItem `json:"banners"`
		Ranking []nsItem `json:"ranking"`
		Recent  []nsItem `json:"recent"`
	}
	if err := a.get(ctx, "/api/home", &out); err != nil {
		return nil, err
	}

	home := &models.HomeData{
		Banners:  mapNSItems(out.Banners),
		Trending: mapNSItems(out.Ranking),
		Latest:   mapNSItems(out.Recent),
	}
	enrichLatest(ctx, a, home.Latest, a.EnrichLimit)
	return home, nil
}

func (a *NetShortAdapter) Search(ctx context.Context, query string) ([]models.NormalizedDrama, error) {
	var out struct {
		Results []nsItem `json:"results"`
	}
	if err := a.get(ctx, "/api/search?keyword="+urlQuery(query), &out); err != nil {
		return nil, err
	}
	return mapNSItems(out.Results), nil
}

func (a *NetShortAdapter) GetDrama(ctx context.Context, id string) (*models.DramaDetail, error) {
	var out struct {
		ShortPlay *nsItem     `json:"shortPlay"`
		Episodes  []nsEpisode `json:"episodes"`
	}
	if err := a.get(ctx, "/api/shortplay/detail?id="+urlQuery(id), &out); err != nil {
		return nil, err
	}
	if out.ShortPlay == nil {
		return nil, ErrNotFound
	}

	detail := &models.DramaDetail{NormalizedDrama: mapNSItem(*out.ShortPlay)}
	for i, e := range out.Episodes {
		no := e.EpisodeNo
		ep := models.NormalizedEpisode{
			ID:            e.EpisodeID,
			EpisodeNumber: EpisodeNumber(&no, "", nil, i),
			IsLocked:      e.Locked,
			Duration:      e.Duration,
		}
		if e.PlayURL != "" {
			ep.Streams = append(ep.Streams, models.Stream{
				Quality: Quality(e.Quality),
				URL:     e.PlayURL,
				Type:    StreamType("", e.PlayURL),
			})
		}
		if e.SubURL != "" {
			ep.Subtitles = append(ep.Subtitles, models.Subtitle{Language: e.SubLang, URL: e.SubURL})
		}
		detail.Episodes = append(detail.Episodes, ep)
	}
	if detail.TotalEpisodes == nil && len(detail.Episodes) > 0 {
		n := len(detail.Episodes)
		detail.TotalEpisodes = &n
	}
	return detail, nil
}

func (a *NetShortAdapter) GetEpisode(ctx context.Context, id string, episodeNumber int) (*models.NormalizedEpisode, error) {
	detail, err := a.GetDrama(ctx, id)
	if err != nil {
		return nil, err
	}
	return episodeFromDetail(detail, episodeNumber)
}

func mapNSItems(items []nsItem) []models.NormalizedDrama {
	out := make([]models.NormalizedDrama, 0, len(items))
	for _, it := range items {
		if it.ShortPlayID == "" {
			continue
		}
		out = append(out, mapNSItem(it))
	}
	return out
}

func mapNSItem(it nsItem) models.NormalizedDrama {
	score, _ := strconv.ParseFloat(strings.TrimSpace(it.ScoreStr), 64)
	d := models.NormalizedDrama{
		ID:          it.ShortPlayID,
		Source:      NetShort,
		Title:       it.ShortPlayName,
		Poster:      it.PicURL,
		Description: it.Blurb,
		Genres:      Genres(nil, it.Category),
		ReleaseYear: it.Year,
		Rating:      score,
		ViewCount:   it.HotValue,
	}
	if it.EpisodeTotal > 0 {
		n := it.EpisodeTotal
		d.TotalEpisodes = &n
	}
	return d
}

func (a *NetShortAdapter) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("netshort: build request: %w", err)
	}
	if a.token != "" {
		req.Header.Set("X-Auth-Token", a.token)
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return fmt.Errorf("netshort: request: %w", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("netshort: status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("netshort: decode: %w", err)
	}
	return nil
}
