// Package handler assembles the HTTP surface of the service.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/dmehra2102/prod-golang-projects/glucoflow/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/service"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/metrics"
)

type Deps struct {
	Readings    *service.ReadingService
	Metrics     *metrics.Collector
	RateLimiter *middleware.RateLimiter
	Log         *zap.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Recovery goes innermost so the access log and request metrics still
	// see the 500 of a panicking handler.
	r.Use(middleware.RequestID(), middleware.Logger(deps.Log))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(middleware.Recovery(deps.Log))

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"store":  deps.Readings.Backend(),
		})
	})

	api := r.Group("/v1")
	if deps.RateLimiter != nil {
		api.Use(deps.RateLimiter.Handler())
	}
	v1.NewReadingHandler(deps.Readings).Register(api)

	return r
}
