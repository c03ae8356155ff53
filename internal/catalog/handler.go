package catalog

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dramahub/internal/cache"
	"dramahub/pkg/models"
)

type Handler struct {
	Repo  *Repo
	Cache *cache.Service
	Log   *zap.SugaredLogger
	TTL   time.Duration
}

func NewHandler(repo *Repo, c *cache.Service, log *zap.SugaredLogger, ttl time.Duration) *Handler {
	return &Handler{Repo: repo, Cache: c, Log: log, TTL: ttl}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/all", h.listAll) // GET /videos/all
}

type listAllPage struct {
	Total      int            `json:"total,omitempty"`
	Limit      int            `json:"limit"`
	Offset     int            `json:"offset,omitempty"`
	Items      []models.Video `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more,omitempty"`
}

// listAll serves the catalog listing. Default queries are offset-based
// and response-cached; a cursor param switches to keyset pagination
// over (created_at, id). Filtered queries bypass the response cache.
func (h *Handler) listAll(c *gin.Context) {
	limit := parseInt(c.Query("limit"), 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := parseInt(c.Query("offset"), 0)
	if offset < 0 {
		offset = 0
	}
	source := c.Query("source")

	if cursor := c.Query("cursor"); cursor != "" {
		items, next, hasMore, err := h.Repo.ListByCursor(c.Request.Context(), source, cursor, limit)
		if err != nil {
			if strings.Contains(err.Error(), "malformed cursor") {
				c.JSON(http.StatusBadRequest, models.Err(400, "malformed cursor"))
				return
			}
			h.Log.Errorw("cursor list failed", "error", err)
			c.JSON(http.StatusInternalServerError, models.Err(500, "list failed"))
			return
		}
		c.JSON(http.StatusOK, models.OK(listAllPage{
			Limit: limit, Items: items, NextCursor: next, HasMore: hasMore,
		}))
		return
	}

	cacheable := source == ""
	cacheKey := cache.VideosCacheKey(limit, offset)
	if cacheable {
		var page listAllPage
		if h.Cache.GetJSON(c.Request.Context(), cacheKey, &page) {
			c.JSON(http.StatusOK, models.OK(page))
			return
		}
	}

	q := ListQuery{Source: source, Limit: limit, Offset: offset}
	total, err := h.Repo.Count(c.Request.Context(), q)
	if err != nil {
		h.Log.Errorw("count failed", "error", err)
		c.JSON(http.StatusInternalServerError, models.Err(500, "count failed"))
		return
	}
	items, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		h.Log.Errorw("list failed", "error", err)
		c.JSON(http.StatusInternalServerError, models.Err(500, "list failed"))
		return
	}

	page := listAllPage{Total: total, Limit: limit, Offset: offset, Items: items}
	if cacheable {
		h.Cache.SetJSON(c.Request.Context(), cacheKey, page, h.TTL)
	}
	c.JSON(http.StatusOK, models.OK(page))
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
