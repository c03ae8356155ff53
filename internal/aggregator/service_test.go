package aggregator

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dramahub/internal/cache"
	"dramahub/internal/catalog"
	"dramahub/internal/history"
	"dramahub/internal/source"
	"dramahub/pkg/database"
	"dramahub/pkg/logger"
	"dramahub/pkg/models"
)

// fakeAdapter satisfies source.Adapter from canned data.
type fakeAdapter struct {
	name    string
	home    *models.HomeData
	detail  *models.DramaDetail
	homeErr error
}

func (f *fakeAdapter) Name() string               { return f.name }
func (f *fakeAdapter) Init(context.Context) error { return nil }

func (f *fakeAdapter) GetHome(context.Context) (*models.HomeData, error) {
	if f.homeErr != nil {
		return nil, f.homeErr
	}
	return f.home, nil
}

func (f *fakeAdapter) Search(context.Context, string) ([]models.NormalizedDrama, error) {
	return f.home.Trending, nil
}

func (f *fakeAdapter) GetDrama(_ context.Context, id string) (*models.DramaDetail, error) {
	if f.detail == nil || f.detail.ID != id {
		return nil, source.ErrNotFound
	}
	return f.detail, nil
}

func (f *fakeAdapter) GetEpisode(ctx context.Context, id string, n int) (*models.NormalizedEpisode, error) {
	d, err := f.GetDrama(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range d.Episodes {
		if d.Episodes[i].EpisodeNumber == n {
			return &d.Episodes[i], nil
		}
	}
	return nil, source.ErrNotFound
}

func title(source, id, name string) models.NormalizedDrama {
	return models.NormalizedDrama{ID: id, Source: source, Title: name, Genres: []string{}}
}

func newTestService(t *testing.T, adapters ...source.Adapter) (*Service, *catalog.Repo) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	log := logger.NewNop()
	videos := catalog.NewRepo(db)
	svc := NewService(log, source.NewRegistry(log, adapters...), videos,
		history.NewRepo(db), cache.New(log, ""), nil, time.Minute)
	return svc, videos
}

func TestSyncSourceDedupesAcrossSections(t *testing.T) {
	// The same title appearing in banners, trending and latest must land
	// exactly once.
	dup := title("dramabox", "1", "Dup")
	ad := &fakeAdapter{name: "dramabox", home: &models.HomeData{
		Banners:  []models.NormalizedDrama{dup},
		Trending: []models.NormalizedDrama{dup, title("dramabox", "2", "Other")},
		Latest:   []models.NormalizedDrama{dup},
	}}

	svc, videos := newTestService(t, ad)

	n, err := svc.SyncSource(context.Background(), "dramabox")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	total, err := videos.Count(context.Background(), catalog.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestSyncSourceSkipsEmptyIDs(t *testing.T) {
	ad := &fakeAdapter{name: "dramabox", home: &models.HomeData{
		Trending: []models.NormalizedDrama{
			title("dramabox", "", "No ID"),
			title("dramabox", "1", "Fine"),
		},
	}}
	svc, _ := newTestService(t, ad)

	n, err := svc.SyncSource(context.Background(), "dramabox")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSyncAllSurvivesOneFailingSource(t *testing.T) {
	good := &fakeAdapter{name: "dramabox", home: &models.HomeData{
		Trending: []models.NormalizedDrama{title("dramabox", "1", "A")},
	}}
	bad := &fakeAdapter{name: "netshort", homeErr: errors.New("upstream down")}
	alsoGood := &fakeAdapter{name: "flickreels", home: &models.HomeData{
		Trending: []models.NormalizedDrama{title("flickreels", "9", "B")},
	}}

	svc, _ := newTestService(t, good, bad, alsoGood)

	report := svc.SyncAll(context.Background())
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Synced["dramabox"])
	assert.Equal(t, 1, report.Synced["flickreels"])
	assert.Contains(t, report.Errors, "netshort")
	assert.NotEmpty(t, report.RunID)
}

func TestSyncKeepsSameExternalIDDistinctPerSource(t *testing.T) {
	a := &fakeAdapter{name: "dramabox", home: &models.HomeData{
		Trending: []models.NormalizedDrama{title("dramabox", "777", "From A")},
	}}
	b := &fakeAdapter{name: "netshort", home: &models.HomeData{
		Trending: []models.NormalizedDrama{title("netshort", "777", "From B")},
	}}

	svc, videos := newTestService(t, a, b)
	report := svc.SyncAll(context.Background())
	assert.Equal(t, 2, report.Total)

	total, err := videos.Count(context.Background(), catalog.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestAggregatedHomeAllSettled(t *testing.T) {
	good := &fakeAdapter{name: "dramabox", home: &models.HomeData{
		Trending: []models.NormalizedDrama{title("dramabox", "1", "A")},
	}}
	bad := &fakeAdapter{name: "netshort", homeErr: errors.New("timeout")}

	svc, _ := newTestService(t, good, bad)

	homes, errs := svc.AggregatedHome(context.Background())
	require.Contains(t, homes, "dramabox")
	assert.Len(t, homes["dramabox"].Trending, 1)
	assert.NotContains(t, homes, "netshort")
	assert.Contains(t, errs, "netshort")
}

func TestStreamNeighborPointers(t *testing.T) {
	detail := &models.DramaDetail{
		NormalizedDrama: title("dramabox", "1", "Serial"),
		Episodes: []models.NormalizedEpisode{
			{ID: "e1", EpisodeNumber: 1},
			{ID: "e2", EpisodeNumber: 2},
			{ID: "e3", EpisodeNumber: 3},
		},
	}
	ad := &fakeAdapter{name: "dramabox", home: &models.HomeData{}, detail: detail}
	svc, _ := newTestService(t, ad)
	ctx := context.Background()

	mid, err := svc.Stream(ctx, "dramabox", "1", 2)
	require.NoError(t, err)
	require.NotNil(t, mid.PrevEpisode)
	require.NotNil(t, mid.NextEpisode)
	assert.Equal(t, 1, *mid.PrevEpisode)
	assert.Equal(t, 3, *mid.NextEpisode)

	first, err := svc.Stream(ctx, "dramabox", "1", 1)
	require.NoError(t, err)
	assert.Nil(t, first.PrevEpisode)
	require.NotNil(t, first.NextEpisode)

	_, err = svc.Stream(ctx, "dramabox", "1", 99)
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestTrendingFallsBackToStore(t *testing.T) {
	ad := &fakeAdapter{name: "dramabox", home: &models.HomeData{
		Trending: []models.NormalizedDrama{
			title("dramabox", "cold", "Cold"),
			title("dramabox", "warm", "Warm"),
		},
	}}
	svc, videos := newTestService(t, ad)
	ctx := context.Background()

	svc.SyncAll(ctx)
	for i := 0; i < 4; i++ {
		_, err := videos.IncrementViews(ctx, "dramabox", "warm")
		require.NoError(t, err)
	}

	// Cache is disabled in tests, so the durable counters must carry
	// the ranking alone.
	ranked, err := svc.Trending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "warm", ranked[0].ExternalID)
	assert.Equal(t, float64(4), ranked[0].Score)
}

func TestRecordWatchPersistsHistoryOnlyWhenSynced(t *testing.T) {
	ad := &fakeAdapter{name: "dramabox", home: &models.HomeData{
		Trending: []models.NormalizedDrama{title("dramabox", "1", "A")},
	}}
	svc, _ := newTestService(t, ad)
	ctx := context.Background()
	svc.SyncAll(ctx)

	svc.RecordWatch(ctx, WatchInput{
		Source: "dramabox", ExternalID: "1",
		EpisodeNumber: 3, ProgressSeconds: 120, UserID: "u1",
	})
	// Unsynced title: dropped silently.
	svc.RecordWatch(ctx, WatchInput{
		Source: "dramabox", ExternalID: "ghost",
		EpisodeNumber: 1, ProgressSeconds: 120, UserID: "u1",
	})
	// Anonymous: counted for heat only, never stored.
	svc.RecordWatch(ctx, WatchInput{
		Source: "dramabox", ExternalID: "1",
		EpisodeNumber: 4, ProgressSeconds: 120,
	})

	items, total, err := svc.history.ListByUser(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].EpisodeNumber)
}
