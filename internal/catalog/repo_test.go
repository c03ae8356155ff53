package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dramahub/pkg/database"
	"dramahub/pkg/models"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db))
	return NewRepo(db)
}

func drama(source, id, title string) models.NormalizedDrama {
	return models.NormalizedDrama{
		ID:     id,
		Source: source,
		Title:  title,
		Genres: []string{"Romance"},
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	d := drama("dramabox", "41000123906", "Hidden Heir")
	id1, err := repo.Upsert(ctx, d)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		id2, err := repo.Upsert(ctx, d)
		require.NoError(t, err)
		assert.Equal(t, id1, id2)
	}

	total, err := repo.Count(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	vws, err := repo.GetByKey(ctx, "dramabox", "41000123906")
	require.NoError(t, err)
	require.NotNil(t, vws)
	assert.Equal(t, int64(0), vws.Stats.ViewsTotal)
}

func TestUpsertLastWriteWinsButKeepsCounters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	d := drama("netshort", "sp-1", "Old Title")
	_, err := repo.Upsert(ctx, d)
	require.NoError(t, err)

	synced, err := repo.IncrementViews(ctx, "netshort", "sp-1")
	require.NoError(t, err)
	assert.True(t, synced)

	d.Title = "New Title"
	_, err = repo.Upsert(ctx, d)
	require.NoError(t, err)

	vws, err := repo.GetByKey(ctx, "netshort", "sp-1")
	require.NoError(t, err)
	require.NotNil(t, vws)
	assert.Equal(t, "New Title", vws.Title)
	assert.Equal(t, int64(1), vws.Stats.ViewsTotal)
	assert.Equal(t, int64(1), vws.Stats.Views24h)
}

func TestUpsertNilEpisodesNeverClobbers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	eps := 80
	d := drama("flickreels", "fr-9", "Title")
	d.TotalEpisodes = &eps
	_, err := repo.Upsert(ctx, d)
	require.NoError(t, err)

	d.TotalEpisodes = nil
	_, err = repo.Upsert(ctx, d)
	require.NoError(t, err)

	vws, err := repo.GetByKey(ctx, "flickreels", "fr-9")
	require.NoError(t, err)
	assert.Equal(t, 80, vws.TotalEpisodes)
}

func TestSameExternalIDAcrossSourcesStaysDistinct(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	idA, err := repo.Upsert(ctx, drama("dramabox", "100", "A"))
	require.NoError(t, err)
	idB, err := repo.Upsert(ctx, drama("netshort", "100", "B"))
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)

	total, err := repo.Count(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestIncrementViewsUnsyncedIsSilentSkip(t *testing.T) {
	repo := newTestRepo(t)

	synced, err := repo.IncrementViews(context.Background(), "dramabox", "never-seen")
	require.NoError(t, err)
	assert.False(t, synced)
}

func TestGetByKeyMissingIsNilNil(t *testing.T) {
	repo := newTestRepo(t)

	vws, err := repo.GetByKey(context.Background(), "dramabox", "nope")
	require.NoError(t, err)
	assert.Nil(t, vws)
}

func TestGetByKeysPreservesOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := repo.Upsert(ctx, drama("dramabox", fmt.Sprintf("%d", i), fmt.Sprintf("T%d", i)))
		require.NoError(t, err)
	}

	got, err := repo.GetByKeys(ctx, [][2]string{
		{"dramabox", "3"},
		{"dramabox", "1"},
		{"dramabox", "missing"},
		{"dramabox", "2"},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "3", got[0].ExternalID)
	assert.Equal(t, "1", got[1].ExternalID)
	assert.Equal(t, "2", got[2].ExternalID)
}

func TestListByCursorVisitsEveryRowOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	const n = 7
	for i := 0; i < n; i++ {
		_, err := repo.Upsert(ctx, drama("dramabox", fmt.Sprintf("d-%d", i), "T"))
		require.NoError(t, err)
	}

	// Every created_at is identical here, so the id tiebreak carries the
	// whole ordering. Walk with every page size and demand no dups, no
	// gaps, regardless.
	for limit := 1; limit <= n+1; limit++ {
		seen := make(map[string]bool)
		cursor := ""
		for {
			page, next, hasMore, err := repo.ListByCursor(ctx, "", cursor, limit)
			require.NoError(t, err)
			for _, v := range page {
				assert.False(t, seen[v.ExternalID], "limit=%d revisited %s", limit, v.ExternalID)
				seen[v.ExternalID] = true
			}
			if !hasMore {
				break
			}
			require.NotEmpty(t, next)
			cursor = next
		}
		assert.Len(t, seen, n, "limit=%d", limit)
	}
}

func TestListByCursorRejectsMalformed(t *testing.T) {
	repo := newTestRepo(t)

	for _, bad := range []string{"garbage", "1:2:3", "abc:1", "1:abc"} {
		_, _, _, err := repo.ListByCursor(context.Background(), "", bad, 10)
		require.Error(t, err, "cursor %q", bad)
		assert.Contains(t, err.Error(), "malformed cursor")
	}
}

func TestTopByLifetimeViews(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, drama("dramabox", "cold", "Cold"))
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, drama("dramabox", "warm", "Warm"))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := repo.IncrementViews(ctx, "dramabox", "warm")
		require.NoError(t, err)
	}

	top, err := repo.TopByLifetimeViews(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "warm", top[0].ExternalID)
	assert.Equal(t, float64(5), top[0].Score)
}

func TestDecayRecentViews(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, drama("dramabox", "d", "T"))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := repo.IncrementViews(ctx, "dramabox", "d")
		require.NoError(t, err)
	}

	require.NoError(t, repo.DecayRecentViews(ctx, 0.5))

	vws, err := repo.GetByKey(ctx, "dramabox", "d")
	require.NoError(t, err)
	assert.Equal(t, int64(5), vws.Stats.Views24h)
	assert.Equal(t, int64(10), vws.Stats.ViewsTotal)

	// Factor 1 means nothing elapsed, nothing changes.
	require.NoError(t, repo.DecayRecentViews(ctx, 1))
	vws, err = repo.GetByKey(ctx, "dramabox", "d")
	require.NoError(t, err)
	assert.Equal(t, int64(5), vws.Stats.Views24h)
}
