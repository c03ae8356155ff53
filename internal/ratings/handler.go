package ratings

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dramahub/pkg/models"
)

type Handler struct {
	Repo *Repo
	Log  *zap.SugaredLogger
}

func NewHandler(repo *Repo, log *zap.SugaredLogger) *Handler {
	return &Handler{Repo: repo, Log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.get)
	rg.POST("", h.add)
}

type rateBody struct {
	UserID     string `json:"userId"`
	Source     string `json:"source"`
	ExternalID string `json:"externalId"`
	Rating     int    `json:"rating"`
}

func (h *Handler) add(c *gin.Context) {
	var body rateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, models.Err(400, "invalid body"))
		return
	}
	if strings.TrimSpace(body.UserID) == "" || body.Source == "" || body.ExternalID == "" {
		c.JSON(http.StatusBadRequest, models.Err(400, "userId, source and externalId required"))
		return
	}
	if body.Rating < 1 || body.Rating > 5 {
		c.JSON(http.StatusBadRequest, models.Err(400, "rating must be 1..5"))
		return
	}

	rating, err := h.Repo.Add(c.Request.Context(), body.UserID, body.Source, body.ExternalID, body.Rating)
	if err != nil {
		h.Log.Errorw("rating insert failed", "source", body.Source, "error", err)
		c.JSON(http.StatusInternalServerError, models.Err(500, "rating insert failed"))
		return
	}
	c.JSON(http.StatusCreated, models.OK(rating))
}

func (h *Handler) get(c *gin.Context) {
	src, id := c.Query("source"), c.Query("id")
	if src == "" || id == "" {
		c.JSON(http.StatusBadRequest, models.Err(400, "source and id required"))
		return
	}

	avg, err := h.Repo.Get(c.Request.Context(), src, id)
	if err != nil {
		h.Log.Errorw("rating lookup failed", "source", src, "error", err)
		c.JSON(http.StatusInternalServerError, models.Err(500, "rating lookup failed"))
		return
	}
	c.JSON(http.StatusOK, models.OK(gin.H{
		"source":  src,
		"id":      id,
		"average": avg.Avg,
		"votes":   avg.Votes,
	}))
}
