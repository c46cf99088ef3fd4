package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"placedex/internal/database"
	"placedex/internal/models"
)

// maxRandomLimit bounds the random sample endpoints.
const maxRandomLimit = 15

// Store is the read-only storage surface the handlers need.
type Store interface {
	GetBrand(ctx context.Context, id int32) (*models.Brand, error)
	GetPOI(ctx context.Context, id int32) (*models.POI, error)
	RandomBrands(ctx context.Context, limit int) ([]models.Brand, error)
	RandomPOIs(ctx context.Context, limit int) ([]models.POI, error)
	CountPOIsByBrand(ctx context.Context, brandID int32) (int64, error)
}

type Handler struct {
	store  Store
	logger *logrus.Logger
}

func NewHandler(store Store, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		store:  store,
		logger: logger,
	}
}

func (h *Handler) GetBrand(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	brand, err := h.store.GetBrand(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No brand found with id " + c.Param("id")})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get brand")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get brand"})
		return
	}

	c.JSON(http.StatusOK, brand)
}

func (h *Handler) GetRandomBrands(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	brands, err := h.store.RandomBrands(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get random brands")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get random brands"})
		return
	}

	c.JSON(http.StatusOK, brands)
}

func (h *Handler) GetPOI(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	poi, err := h.store.GetPOI(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No poi found with id " + c.Param("id")})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get poi")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get poi"})
		return
	}

	c.JSON(http.StatusOK, poi)
}

func (h *Handler) GetRandomPOIs(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	pois, err := h.store.RandomPOIs(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get random pois")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get random pois"})
		return
	}

	c.JSON(http.StatusOK, pois)
}

func (h *Handler) CountPOIsByBrand(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	count, err := h.store.CountPOIsByBrand(c.Request.Context(), id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to count pois")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count pois"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

func parseID(c *gin.Context) (int32, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id: " + c.Param("id")})
		return 0, false
	}
	return int32(id), true
}

func parseLimit(c *gin.Context) (int, bool) {
	limit, err := strconv.Atoi(c.Param("count"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid count: " + c.Param("count")})
		return 0, false
	}
	if limit > maxRandomLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Limit must be at most " + strconv.Itoa(maxRandomLimit)})
		return 0, false
	}
	return limit, true
}
