package explore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dramahub/pkg/logger"
)

func newTestHandler(t *testing.T) (*gin.Engine, *Repo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := NewRepo(newTestDB(t))
	r := gin.New()
	h := NewHandler(repo, nil, logger.NewNop())
	h.RegisterRoutes(r.Group("/videos"))
	return r, repo
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestExploreRejectsUnknownSort(t *testing.T) {
	r, _ := newTestHandler(t)
	assert.Equal(t, http.StatusBadRequest, get(r, "/videos/explore?sort=views").Code)
}

func TestExploreRejectsMalformedCursor(t *testing.T) {
	r, _ := newTestHandler(t)
	assert.Equal(t, http.StatusBadRequest, get(r, "/videos/explore?cursor=garbage").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/videos/explore?cursor=abc:def").Code)
}

func TestExplorePageShape(t *testing.T) {
	r, repo := newTestHandler(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Upsert(ctx, entry("dramabox", id, int64(30-i), 1, 1)))
	}

	w := get(r, "/videos/explore?sort=popular&limit=2")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status int `json:"status"`
		Data   struct {
			Items      []json.RawMessage `json:"items"`
			NextCursor string            `json:"next_cursor"`
			HasMore    bool              `json:"has_more"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Items, 2)
	assert.True(t, resp.Data.HasMore)
	require.NotEmpty(t, resp.Data.NextCursor)

	// The returned cursor must fetch the remainder.
	w = get(r, "/videos/explore?sort=popular&limit=2&cursor="+resp.Data.NextCursor)
	require.Equal(t, http.StatusOK, w.Code)
	// next_cursor is omitempty, so clear stale fields from the first
	// page before decoding the final one.
	resp.Data.Items = nil
	resp.Data.NextCursor = ""
	resp.Data.HasMore = false
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Items, 1)
	assert.False(t, resp.Data.HasMore)
	assert.Empty(t, resp.Data.NextCursor)
}

func TestExploreEmptyIndexIsEmptyArray(t *testing.T) {
	r, _ := newTestHandler(t)

	w := get(r, "/videos/explore")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Items   []json.RawMessage `json:"items"`
			HasMore bool              `json:"has_more"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Data.Items)
	assert.Empty(t, resp.Data.Items)
	assert.False(t, resp.Data.HasMore)
}
