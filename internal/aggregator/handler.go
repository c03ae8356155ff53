package aggregator

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dramahub/internal/history"
	"dramahub/internal/source"
	"dramahub/pkg/models"
)

type Handler struct {
	Svc     *Service
	History *history.Repo
	Log     *zap.SugaredLogger
}

func NewHandler(svc *Service, hist *history.Repo, log *zap.SugaredLogger) *Handler {
	return &Handler{Svc: svc, History: hist, Log: log}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/home", h.home)
	r.GET("/search", h.search)
	r.GET("/drama", h.drama)
	r.GET("/stream", h.stream)
	r.GET("/history", h.watchHistory)
	r.POST("/videos/sync", h.sync)
	r.POST("/events/view", h.viewEvent)
	r.POST("/events/watch", h.watchEvent)
}

func (h *Handler) RegisterRankingRoutes(rg *gin.RouterGroup) {
	rg.GET("/trending", h.trending) // GET /videos/trending
	rg.GET("/hot", h.hot)           // GET /videos/hot
}

// home serves one source's home page or, without a source param (or
// with aggregate=true), the all-sources fan-out. Partial upstream
// failures are reported alongside the data, never as a request error.
func (h *Handler) home(c *gin.Context) {
	src := c.Query("source")
	aggregate := c.Query("aggregate") == "true"

	if src != "" && !aggregate {
		if !h.Svc.Supported(src) {
			c.JSON(http.StatusBadRequest, models.Err(400, "unsupported source"))
			return
		}
		data, err := h.Svc.Home(c.Request.Context(), src)
		if err != nil {
			h.Log.Warnw("home fetch failed", "source", src, "error", err)
			c.JSON(http.StatusInternalServerError, models.Err(500, "upstream fetch failed"))
			return
		}
		c.JSON(http.StatusOK, models.OK(data))
		return
	}

	homes, errs := h.Svc.AggregatedHome(c.Request.Context())
	payload := gin.H{"sources": homes}
	if len(errs) > 0 {
		payload["errors"] = errs
	}
	c.JSON(http.StatusOK, models.OK(payload))
}

func (h *Handler) search(c *gin.Context) {
	src := c.Query("source")
	query := strings.TrimSpace(c.Query("query"))
	if !h.Svc.Supported(src) {
		c.JSON(http.StatusBadRequest, models.Err(400, "unsupported source"))
		return
	}
	if query == "" {
		c.JSON(http.StatusBadRequest, models.Err(400, "query required"))
		return
	}

	items, err := h.Svc.Search(c.Request.Context(), src, query)
	if err != nil {
		h.Log.Warnw("search failed", "source", src, "error", err)
		c.JSON(http.StatusInternalServerError, models.Err(500, "upstream search failed"))
		return
	}
	c.JSON(http.StatusOK, models.OK(items))
}

func (h *Handler) drama(c *gin.Context) {
	src, id := c.Query("source"), c.Query("id")
	if !h.Svc.Supported(src) {
		c.JSON(http.StatusBadRequest, models.Err(400, "unsupported source"))
		return
	}
	if id == "" {
		c.JSON(http.StatusBadRequest, models.Err(400, "id required"))
		return
	}

	detail, err := h.Svc.Drama(c.Request.Context(), src, id)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.Err(404, "drama not found"))
			return
		}
		h.Log.Warnw("drama fetch failed", "source", src, "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, models.Err(500, "upstream fetch failed"))
		return
	}
	c.JSON(http.StatusOK, models.OK(detail))
}

// stream returns one episode's streams plus prev/next pointers, and
// records the view asynchronously.
func (h *Handler) stream(c *gin.Context) {
	src, id := c.Query("source"), c.Query("id")
	if !h.Svc.Supported(src) {
		c.JSON(http.StatusBadRequest, models.Err(400, "unsupported source"))
		return
	}
	if id == "" {
		c.JSON(http.StatusBadRequest, models.Err(400, "id required"))
		return
	}
	episodeNumber, err := strconv.Atoi(c.Query("episode"))
	if err != nil || episodeNumber < 1 {
		c.JSON(http.StatusBadRequest, models.Err(400, "episode must be a positive number"))
		return
	}

	view, err := h.Svc.Stream(c.Request.Context(), src, id, episodeNumber)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.Err(404, "episode not found"))
			return
		}
		h.Log.Warnw("stream fetch failed", "source", src, "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, models.Err(500, "upstream fetch failed"))
		return
	}

	h.Svc.RecordView(c.Request.Context(), src, id)
	c.JSON(http.StatusOK, models.OK(view))
}

func (h *Handler) watchHistory(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, models.Err(400, "userId required"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, total, err := h.History.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.Log.Errorw("watch history list failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, models.Err(500, "history list failed"))
		return
	}
	c.JSON(http.StatusOK, models.OK(gin.H{"total": total, "items": items}))
}

func (h *Handler) sync(c *gin.Context) {
	report := h.Svc.SyncAll(c.Request.Context())
	c.JSON(http.StatusOK, models.OK(report))
}

type viewEventBody struct {
	Source     string `json:"source"`
	ExternalID string `json:"externalId"`
}

func (h *Handler) viewEvent(c *gin.Context) {
	var body viewEventBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, models.Err(400, "invalid body"))
		return
	}
	if !h.Svc.Supported(body.Source) {
		c.JSON(http.StatusBadRequest, models.Err(400, "unsupported source"))
		return
	}
	if body.ExternalID == "" {
		c.JSON(http.StatusBadRequest, models.Err(400, "externalId required"))
		return
	}

	h.Svc.RecordView(c.Request.Context(), body.Source, body.ExternalID)
	c.JSON(http.StatusOK, models.OK(gin.H{"recorded": true}))
}

type watchEventBody struct {
	Source        string `json:"source"`
	ExternalID    string `json:"externalId"`
	EpisodeNumber int    `json:"episodeNumber"`
	Progress      int    `json:"progress"` // seconds watched
	UserID        string `json:"userId"`
}

func (h *Handler) watchEvent(c *gin.Context) {
	var body watchEventBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, models.Err(400, "invalid body"))
		return
	}
	if !h.Svc.Supported(body.Source) {
		c.JSON(http.StatusBadRequest, models.Err(400, "unsupported source"))
		return
	}
	if body.ExternalID == "" {
		c.JSON(http.StatusBadRequest, models.Err(400, "externalId required"))
		return
	}
	if body.EpisodeNumber < 1 || body.Progress < 0 {
		c.JSON(http.StatusBadRequest, models.Err(400, "invalid episode or progress"))
		return
	}

	h.Svc.RecordWatch(c.Request.Context(), WatchInput{
		Source:          body.Source,
		ExternalID:      body.ExternalID,
		EpisodeNumber:   body.EpisodeNumber,
		ProgressSeconds: body.Progress,
		UserID:          body.UserID,
	})
	c.JSON(http.StatusOK, models.OK(gin.H{"recorded": true}))
}

func (h *Handler) trending(c *gin.Context) {
	h.rankedResponse(c, h.Svc.Trending)
}

func (h *Handler) hot(c *gin.Context) {
	h.rankedResponse(c, h.Svc.Hot)
}

func (h *Handler) rankedResponse(c *gin.Context,
	fetch func(ctx context.Context, limit int) ([]models.RankedVideo, error)) {

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	items, err := fetch(c.Request.Context(), limit)
	if err != nil {
		h.Log.Errorw("ranking query failed", "error", err)
		c.JSON(http.StatusInternalServerError, models.Err(500, "ranking query failed"))
		return
	}
	if items == nil {
		items = []models.RankedVideo{}
	}
	c.JSON(http.StatusOK, models.OK(items))
}
