package ratings

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dramahub/pkg/database"
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

func TestAddRejectsOutOfRange(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, bad := range []int{0, -1, 6} {
		_, err := repo.Add(ctx, "u1", "dramabox", "1", bad)
		require.Error(t, err, "rating %d", bad)
	}
}

func TestGetAveragesVotes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Add(ctx, "u1", "dramabox", "1", 4)
	require.NoError(t, err)
	_, err = repo.Add(ctx, "u2", "dramabox", "1", 5)
	require.NoError(t, err)

	avg, err := repo.Get(ctx, "dramabox", "1")
	require.NoError(t, err)
	assert.Equal(t, 4.5, avg.Avg)
	assert.Equal(t, 2, avg.Votes)
}

func TestGetUnratedIsZero(t *testing.T) {
	repo := newTestRepo(t)

	avg, err := repo.Get(context.Background(), "dramabox", "never")
	require.NoError(t, err)
	assert.Zero(t, avg.Avg)
	assert.Zero(t, avg.Votes)
}

func TestAveragesKeyedByNaturalKey(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Add(ctx, "u1", "dramabox", "1", 3)
	require.NoError(t, err)
	_, err = repo.Add(ctx, "u1", "netshort", "1", 5)
	require.NoError(t, err)

	avgs, err := repo.Averages(ctx)
	require.NoError(t, err)
	require.Len(t, avgs, 2)
	assert.Equal(t, 3.0, avgs["dramabox:1"].Avg)
	assert.Equal(t, 5.0, avgs["netshort:1"].Avg)
}
