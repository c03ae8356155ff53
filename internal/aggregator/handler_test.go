package aggregator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dramahub/pkg/logger"
	"dramahub/pkg/models"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ad := &fakeAdapter{name: "dramabox", home: &models.HomeData{
		Trending: []models.NormalizedDrama{title("dramabox", "1", "A")},
	}}
	svc, _ := newTestService(t, ad)

	r := gin.New()
	h := NewHandler(svc, svc.history, logger.NewNop())
	h.RegisterRoutes(r)
	h.RegisterRankingRoutes(r.Group("/videos"))
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSearchValidation(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(r, "GET", "/search?source=unknown&query=x", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, "GET", "/search?source=dramabox", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, "GET", "/search?source=dramabox&query=%20%20", "").Code)
	assert.Equal(t, http.StatusOK, do(r, "GET", "/search?source=dramabox&query=love", "").Code)
}

func TestDramaValidation(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(r, "GET", "/drama?source=bogus&id=1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, "GET", "/drama?source=dramabox", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, "GET", "/drama?source=dramabox&id=1", "").Code)
}

func TestStreamValidation(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(r, "GET", "/stream?source=dramabox&id=1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, "GET", "/stream?source=dramabox&id=1&episode=abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, "GET", "/stream?source=dramabox&id=1&episode=0", "").Code)
}

func TestViewEventValidation(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(r, "POST", "/events/view", `{`).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(r, "POST", "/events/view", `{"source":"bogus","externalId":"1"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(r, "POST", "/events/view", `{"source":"dramabox"}`).Code)
	assert.Equal(t, http.StatusOK,
		do(r, "POST", "/events/view", `{"source":"dramabox","externalId":"1"}`).Code)
}

func TestWatchEventValidation(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest,
		do(r, "POST", "/events/watch", `{"source":"dramabox","externalId":"1","episodeNumber":0,"progress":10}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(r, "POST", "/events/watch", `{"source":"dramabox","externalId":"1","episodeNumber":1,"progress":-1}`).Code)
	assert.Equal(t, http.StatusOK,
		do(r, "POST", "/events/watch", `{"source":"dramabox","externalId":"1","episodeNumber":1,"progress":45}`).Code)
}

func TestHistoryRequiresUserID(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, http.StatusBadRequest, do(r, "GET", "/history", "").Code)
}

func TestTrendingEnvelope(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, "GET", "/videos/trending", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status int             `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, resp.Status)
	// Always a JSON array, never null, even with nothing ranked yet.
	assert.True(t, strings.HasPrefix(string(resp.Data), "["))
}
