package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func SetupRoutes(router *gin.Engine, store Store, logger *logrus.Logger) {
	handler := NewHandler(store, logger)

	// Sample endpoints live under /random because gin does not allow a
	// static "random" segment beside the :id wildcard.
	api := router.Group("/api")
	{
		api.GET("/brands/:id", handler.GetBrand)
		api.GET("/brands/:id/pois/count", handler.CountPOIsByBrand)
		api.GET("/pois/:id", handler.GetPOI)
		api.GET("/random/brands/:count", handler.GetRandomBrands)
		api.GET("/random/pois/:count", handler.GetRandomPOIs)
	}
}
