package explore

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dramahub/pkg/models"
)

type Handler struct {
	Repo    *Repo
	Builder *Builder
	Log     *zap.SugaredLogger
}

func NewHandler(repo *Repo, builder *Builder, log *zap.SugaredLogger) *Handler {
	return &Handler{Repo: repo, Builder: builder, Log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/explore", h.explore)  // GET /videos/explore
	rg.POST("/reindex", h.reindex) // POST /videos/reindex
}

type explorePage struct {
	Items      []models.ExploreEntry `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
	HasMore    bool                  `json:"has_more"`
}

func (h *Handler) explore(c *gin.Context) {
	sort := c.DefaultQuery("sort", SortPopular)
	if !ValidSort(sort) {
		c.JSON(http.StatusBadRequest, models.Err(400, "sort must be popular, latest or rating"))
		return
	}
	src := c.Query("source")
	cursor := c.Query("cursor")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	items, next, hasMore, err := h.Repo.ListByCursor(c.Request.Context(), sort, src, cursor, limit)
	if err != nil {
		if strings.Contains(err.Error(), "malformed cursor") {
			c.JSON(http.StatusBadRequest, models.Err(400, "malformed cursor"))
			return
		}
		h.Log.Errorw("explore query failed", "sort", sort, "error", err)
		c.JSON(http.StatusInternalServerError, models.Err(500, "explore query failed"))
		return
	}
	if items == nil {
		items = []models.ExploreEntry{}
	}
	c.JSON(http.StatusOK, models.OK(explorePage{
		Items:      items,
		NextCursor: next,
		HasMore:    hasMore,
	}))
}

func (h *Handler) reindex(c *gin.Context) {
	rows, err := h.Builder.Run(c.Request.Context())
	if err != nil {
		h.Log.Errorw("index rebuild failed", "error", err)
		c.JSON(http.StatusInternalServerError, models.Err(500, "index rebuild failed"))
		return
	}
	c.JSON(http.StatusOK, models.OK(gin.H{"indexed": rows}))
}
