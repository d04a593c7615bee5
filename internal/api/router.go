package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/benty101/Meddycare-sub000/config"
	"github.com/benty101/Meddycare-sub000/internal/matching"
	"github.com/benty101/Meddycare-sub000/internal/mw"
	"github.com/benty101/Meddycare-sub000/internal/store"
)

// NewRouter creates and configures the Gin router.
func NewRouter(cfg *config.ServerConfig, s store.Store, generator *matching.Generator, webpushOptions *webpush.Options, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	handler := NewHandler(s, generator, webpushOptions, log)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/care-requests", handler.CreateCareRequest)
		api.POST("/care-requests/:id/generate-matches", handler.GenerateMatches)
		api.GET("/care-requests/:id/matches", caching, handler.ListMatches)
		api.POST("/care-requests/:id/cancel", handler.CancelCareRequest)

		api.POST("/matches/:id/hire", handler.Hire)

		api.GET("/families/:id/active-placement", handler.GetActivePlacement)

		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
