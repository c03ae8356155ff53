package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"dramahub/pkg/models"
)

// DramaBoxAdapter talks to the DramaBox mobile API. It needs a device
// token for most endpoints, acquired in Init.
type DramaBoxAdapter struct {
	BaseURL string
	Client  *http.Client

	token string
}

func NewDramaBox() *DramaBoxAdapter {
	return &DramaBoxAdapter{
		BaseURL: "https://api.dramaboxdb.com",
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *DramaBoxAdapter) Name() string { return DramaBox }

// Init obtains a device token. Failure is non-fatal: the caller keeps
// using the adapter unauthenticated.
func (a *DramaBoxAdapter) Init(ctx context.Context) error {
	payload, _ := json.Marshal(map[string]string{"deviceId": uuid.NewString()})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/api/v1/token", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("dramabox: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Status int `json:"status"`
		Data   struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := a.do(req, &out); err != nil {
		return fmt.Errorf("dramabox: token: %w", err)
	}
	if out.Data.Token == "" {
		return fmt.Errorf("dramabox: empty token")
	}
	a.token = out.Data.Token
	return nil
}

// dbItem is a title entry as DramaBox returns it.
type dbItem struct {
	BookID       string   `json:"bookId"`
	BookName     string   `json:"bookName"`
	CoverWap     string   `json:"coverWap"`
	Introduction string   `json:"introduction"`
	TagNames     []string `json:"tagNames"`
	PlayCount    int64    `json:"playCount"`
	ChapterCount int      `json:"chapterCount"`
	Score        float64  `json:"score"`
	PublishYear  int      `json:"publishYear"`
}

type dbChapter struct {
	ChapterID    string `json:"chapterId"`
	ChapterIndex int    `json:"chapterIndex"` // zero-based
	ChapterName  string `json:"chapterName"`  // "EP 1"
	IsCharge     int    `json:"isCharge"`
	Duration     int    `json:"duration"`
	CDNList      []struct {
		Quality   int    `json:"quality"`
		VideoPath string `json:"videoPath"`
	} `json:"cdnList"`
	SubtitleList []struct {
		Language string `json:"language"`
		URL      string `json:"url"`
	} `json:"subtitleList"`
}

func (a *DramaBoxAdapter) GetHome(ctx context.Context) (*models.HomeData, error) {
	var out struct {
		Status int `json:"status"`
		Data   struct {
			Banners  []dbItem `json:"banners"`
			Trending []dbItem `json:"trending"`
			Latest   []dbItem `json:"latest"`
		} `json:"data"`
	}
	if err := a.get(ctx, "/api/v1/home", &out); err != nil {
		return nil, err
	}

	return &models.HomeData{
		Banners:  a.mapItems(out.Data.Banners),
		Trending: a.mapItems(out.Data.Trending),
		Latest:   a.mapItems(out.Data.Latest),
	}, nil
}

func (a *DramaBoxAdapter) Search(ctx context.Context, query string) ([]models.NormalizedDrama, error) {
	var out struct {
		Status int `json:"status"`
		Data   struct {
			SuggestList []dbItem `json:"suggestList"`
		} `json:"data"`
	}
	if err := a.get(ctx, "/api/v1/search?keyword="+urlQuery(query), &out); err != nil {
		return nil, err
	}
	return a.mapItems(out.Data.SuggestList), nil
}

func (a *DramaBoxAdapter) GetDrama(ctx context.Context, id string) (*models.DramaDetail, error) {
	var out struct {
		Status int `json:"status"`
		Data   struct {
			Book        *dbItem     `json:"book"`
			ChapterList []dbChapter `json:"chapterList"`
		} `json:"data"`
	}
	if err := a.get(ctx, "/api/v1/chapterv2/batch/load?bookId="+urlQuery(id), &out); err != nil {
		return nil, err
	}
	if out.Data.Book == nil {
		return nil, ErrNotFound
	}

	detail := &models.DramaDetail{NormalizedDrama: a.mapItem(*out.Data.Book)}
	for i, ch := range out.Data.ChapterList {
		idx := ch.ChapterIndex
		ep := models.NormalizedEpisode{
			ID: ch.ChapterID,
			// DramaBox has no explicit episode field; chapter names
			// like "EP 1" win over the zero-based index.
			EpisodeNumber: EpisodeNumber(nil, ch.ChapterName, &idx, i),
			IsLocked:      ch.IsCharge == 1,
			Duration:      ch.Duration,
		}
		for _, cdn := range ch.CDNList {
			ep.Streams = append(ep.Streams, models.Stream{
				Quality: Quality(strconv.Itoa(cdn.Quality)),
				URL:     cdn.VideoPath,
				Type:    StreamType("", cdn.VideoPath),
			})
		}
		for _, sub := range ch.SubtitleList {
			ep.Subtitles = append(ep.Subtitles, models.Subtitle{Language: sub.Language, URL: sub.URL})
		}
		detail.Episodes = append(detail.Episodes, ep)
	}
	return detail, nil
}

func (a *DramaBoxAdapter) GetEpisode(ctx context.Context, id string, episodeNumber int) (*models.NormalizedEpisode, error) {
	detail, err := a.GetDrama(ctx, id)
	if err != nil {
		return nil, err
	}
	return episodeFromDetail(detail, episodeNumber)
}

func (a *DramaBoxAdapter) mapItems(items []dbItem) []models.NormalizedDrama {
	out := make([]models.NormalizedDrama, 0, len(items))
	for _, it := range items {
		if it.BookID == "" {
			continue
		}
		out = append(out, a.mapItem(it))
	}
	return out
}

func (a *DramaBoxAdapter) mapItem(it dbItem) models.NormalizedDrama {
	d := models.NormalizedDrama{
		ID:          it.BookID,
		Source:      DramaBox,
		Title:       it.BookName,
		Poster:      it.CoverWap,
		Description: it.Introduction,
		Genres:      Genres(it.TagNames, ""),
		ReleaseYear: it.PublishYear,
		Rating:      it.Score,
		ViewCount:   it.PlayCount,
	}
	if it.ChapterCount > 0 {
		n := it.ChapterCount
		d.TotalEpisodes = &n
	}
	return d
}

func (a *DramaBoxAdapter) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("dramabox: build request: %w", err)
	}
	return a.do(req, out)
}

func (a *DramaBoxAdapter) do(req *http.Request, out any) error {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return fmt.Errorf("dramabox: request: %w", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dramabox: status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("dramabox: decode: %w", err)
	}
	return nil
}
