package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dramahub/internal/cache"
	"dramahub/internal/catalog"
	"dramahub/internal/history"
	"dramahub/internal/realtime"
	"dramahub/internal/source"
	"dramahub/pkg/models"
)

// hotProgressThreshold is the minimum watch progress, in seconds, for a
// watch event to count toward the hot score.
const hotProgressThreshold = 30

// Broadcaster publishes events to connected clients. Implemented by
// the realtime hub; nil disables broadcasting.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// Service drives multi-source sync and composes the read paths:
// cache first, durable store as fallback.
type Service struct {
	log      *zap.SugaredLogger
	registry *source.Registry
	videos   *catalog.Repo
	history  *history.Repo
	cache    *cache.Service
	hub      Broadcaster
	ttl      time.Duration
}

func NewService(log *zap.SugaredLogger, registry *source.Registry, videos *catalog.Repo,
	hist *history.Repo, c *cache.Service, hub Broadcaster, responseTTL time.Duration) *Service {
	return &Service{
		log:      log,
		registry: registry,
		videos:   videos,
		history:  hist,
		cache:    c,
		hub:      hub,
		ttl:      responseTTL,
	}
}

func (s *Service) Sources() []string { return s.registry.Sources() }

func (s *Service) Supported(src string) bool { return s.registry.Supported(src) }

// Home returns one source's normalized home page, response-cached.
func (s *Service) Home(ctx context.Context, src string) (*models.HomeData, error) {
	cacheKey := cache.HomeCacheKey(src)
	var cached models.HomeData
	if s.cache.GetJSON(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	ad, err := s.registry.Get(ctx, src)
	if err != nil {
		return nil, err
	}
	home, err := ad.GetHome(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.SetJSON(ctx, cacheKey, home, s.ttl)
	return home, nil
}

// AggregatedHome fans out across every source with all-settled
// semantics: one failing source is reported in errs and must not take
// the others down with it.
func (s *Service) AggregatedHome(ctx context.Context) (map[string]*models.HomeData, map[string]string) {
	cacheKey := cache.HomeCacheKey("")
	var cached map[string]*models.HomeData
	if s.cache.GetJSON(ctx, cacheKey, &cached) && len(cached) > 0 {
		return cached, nil
	}

	sources := s.registry.Sources()
	homes := make([]*models.HomeData, len(sources))
	fails := make([]error, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src string) {
			defer wg.Done()
			ad, err := s.registry.Get(ctx, src)
			if err != nil {
				fails[i] = err
				return
			}
			homes[i], fails[i] = ad.GetHome(ctx)
		}(i, src)
	}
	wg.Wait()

	out := make(map[string]*models.HomeData, len(sources))
	errs := make(map[string]string)
	for i, src := range sources {
		if fails[i] != nil {
			s.log.Warnw("source home failed", "source", src, "error", fails[i])
			errs[src] = fails[i].Error()
			continue
		}
		out[src] = homes[i]
	}

	if len(errs) == 0 {
		s.cache.SetJSON(ctx, cacheKey, out, s.ttl)
	}
	return out, errs
}

func (s *Service) Search(ctx context.Context, src, query string) ([]models.NormalizedDrama, error) {
	ad, err := s.registry.Get(ctx, src)
	if err != nil {
		return nil, err
	}
	return ad.Search(ctx, query)
}

func (s *Service) Drama(ctx context.Context, src, id string) (*models.DramaDetail, error) {
	ad, err := s.registry.Get(ctx, src)
	if err != nil {
		return nil, err
	}
	return ad.GetDrama(ctx, id)
}

// StreamView is one episode's playable payload plus pointers to its
// neighbors so a player can step without refetching the whole detail.
type StreamView struct {
	Source      string                   `json:"source"`
	DramaID     string                   `json:"drama_id"`
	Title       string                   `json:"title"`
	Episode     models.NormalizedEpisode `json:"episode"`
	PrevEpisode *int                     `json:"prev_episode,omitempty"`
	NextEpisode *int                     `json:"next_episode,omitempty"`
}

func (s *Service) Stream(ctx context.Context, src, id string, episodeNumber int) (*StreamView, error) {
	detail, err := s.Drama(ctx, src, id)
	if err != nil {
		return nil, err
	}

	var episode *models.NormalizedEpisode
	var prev, next *int
	for i := range detail.Episodes {
		switch detail.Episodes[i].EpisodeNumber {
		case episodeNumber:
			episode = &detail.Episodes[i]
		case episodeNumber - 1:
			n := episodeNumber - 1
			prev = &n
		case episodeNumber + 1:
			n := episodeNumber + 1
			next = &n
		}
	}
	if episode == nil {
		return nil, source.ErrNotFound
	}

	return &StreamView{
		Source:      src,
		DramaID:     id,
		Title:       detail.Title,
		Episode:     *episode,
		PrevEpisode: prev,
		NextEpisode: next,
	}, nil
}

// SyncSource pulls one source's home page, dedupes the combined
// banner/trending/latest list by external id (first occurrence wins,
// order preserved) and upserts. One bad record is logged and skipped,
// never aborts the batch.
func (s *Service) SyncSource(ctx context.Context, src string) (int, error) {
	ad, err := s.registry.Get(ctx, src)
	if err != nil {
		return 0, err
	}
	home, err := ad.GetHome(ctx)
	if err != nil {
		return 0, err
	}

	combined := make([]models.NormalizedDrama, 0,
		len(home.Banners)+len(home.Trending)+len(home.Latest))
	combined = append(combined, home.Banners...)
	combined = append(combined, home.Trending...)
	combined = append(combined, home.Latest...)

	seen := make(map[string]struct{}, len(combined))
	synced := 0
	for _, d := range combined {
		if d.ID == "" {
			continue
		}
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}

		if _, err := s.videos.Upsert(ctx, d); err != nil {
			s.log.Warnw("upsert failed, skipping item",
				"source", src, "external_id", d.ID, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

// SyncReport summarizes one full multi-source sync run.
type SyncReport struct {
	RunID  string            `json:"run_id"`
	Total  int               `json:"total"`
	Synced map[string]int    `json:"synced"`
	Errors map[string]string `json:"errors,omitempty"`
}

// SyncAll runs every source independently; a failing source is recorded
// and the rest proceed. Afterwards the home response cache is dropped.
func (s *Service) SyncAll(ctx context.Context) SyncReport {
	report := SyncReport{
		RunID:  uuid.NewString(),
		Synced: make(map[string]int),
		Errors: make(map[string]string),
	}

	for _, src := range s.registry.Sources() {
		n, err := s.SyncSource(ctx, src)
		if err != nil {
			s.log.Warnw("source sync failed", "source", src, "error", err)
			report.Errors[src] = err.Error()
			continue
		}
		report.Synced[src] = n
		report.Total += n
	}

	s.cache.InvalidateHome(ctx, s.registry.Sources())

	if s.hub != nil {
		s.hub.BroadcastJSON(realtime.SyncEvent{
			Type:   "sync.completed",
			RunID:  report.RunID,
			Synced: report.Synced,
			Errors: report.Errors,
			At:     time.Now().UTC(),
		})
	}
	return report
}

// RecordView counts a view: fast-cache increments synchronously, the
// durable counter asynchronously and best-effort. A view for a title
// the store has not synced yet is silently skipped on the durable side;
// the fast cache stays authoritative until the next sync catches up.
func (s *Service) RecordView(ctx context.Context, src, externalID string) {
	key := cache.Key(src, externalID)
	now := time.Now().UTC()
	s.cache.IncrTrending(ctx, key)
	s.cache.RecordHotView(ctx, key, now)

	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.videos.IncrementViews(bg, src, externalID); err != nil {
			s.log.Warnw("durable view increment failed",
				"source", src, "external_id", externalID, "error", err)
		}
	}()

	if s.hub != nil {
		s.hub.BroadcastJSON(realtime.ViewEvent{
			Type:       "view.recorded",
			Source:     src,
			ExternalID: externalID,
			At:         now,
		})
	}
}

type WatchInput struct {
	Source          string
	ExternalID      string
	EpisodeNumber   int
	ProgressSeconds int
	UserID          string
}

// RecordWatch stores watch progress and, past the threshold, counts the
// watch toward the hot score. History persistence is best-effort: a
// store hiccup must not fail the event.
func (s *Service) RecordWatch(ctx context.Context, in WatchInput) {
	if in.ProgressSeconds >= hotProgressThreshold {
		s.cache.RecordHotView(ctx, cache.Key(in.Source, in.ExternalID), time.Now().UTC())
	}

	if in.UserID == "" {
		return
	}
	vws, err := s.videos.GetByKey(ctx, in.Source, in.ExternalID)
	if err != nil || vws == nil {
		if err != nil {
			s.log.Warnw("watch history lookup failed",
				"source", in.Source, "external_id", in.ExternalID, "error", err)
		}
		return
	}
	if err := s.history.Add(ctx, models.WatchEntry{
		UserID:          in.UserID,
		VideoID:         vws.Video.ID,
		EpisodeNumber:   in.EpisodeNumber,
		ProgressSeconds: in.ProgressSeconds,
	}); err != nil {
		s.log.Warnw("watch history insert failed", "user_id", in.UserID, "error", err)
	}
}

// Trending ranks by lifetime views: fast-cache sorted set first,
// durable fallback when the cache is cold or disabled.
func (s *Service) Trending(ctx context.Context, limit int) ([]models.RankedVideo, error) {
	return s.ranked(ctx, limit, s.cache.TopTrending, s.videos.TopByLifetimeViews)
}

// Hot ranks by the decayed 24h score.
func (s *Service) Hot(ctx context.Context, limit int) ([]models.RankedVideo, error) {
	return s.ranked(ctx, limit, s.cache.TopHot, s.videos.TopByRecentViews)
}

func (s *Service) ranked(ctx context.Context, limit int,
	top func(context.Context, int) []cache.ScoredKey,
	fallback func(context.Context, int) ([]models.RankedVideo, error)) ([]models.RankedVideo, error) {

	if limit <= 0 || limit > 50 {
		limit = 20
	}

	scored := top(ctx, limit)
	if len(scored) > 0 {
		ranked, err := s.hydrate(ctx, scored)
		if err != nil {
			return nil, err
		}
		if len(ranked) > 0 {
			return ranked, nil
		}
	}
	return fallback(ctx, limit)
}

// hydrate loads full rows for cache-ranked keys, keeping the cache's
// ranking order, and zips the scores back on.
func (s *Service) hydrate(ctx context.Context, scored []cache.ScoredKey) ([]models.RankedVideo, error) {
	keys := make([][2]string, 0, len(scored))
	scores := make(map[string]float64, len(scored))
	for _, sk := range scored {
		src, id, ok := cache.ParseKey(sk.Key)
		if !ok {
			continue
		}
		keys = append(keys, [2]string{src, id})
		scores[sk.Key] = sk.Score
	}

	vids, err := s.videos.GetByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]models.RankedVideo, 0, len(vids))
	for _, v := range vids {
		out = append(out, models.RankedVideo{
			Video: v,
			Score: scores[cache.Key(v.Source, v.ExternalID)],
		})
	}
	return out, nil
}
