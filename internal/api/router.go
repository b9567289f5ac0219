package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"game-station/internal/mw"
	"game-station/internal/station"
)

// RouterConfig tunes the middleware.
type RouterConfig struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
	// ResponseCache is shared with InvalidatingRecorder; a private cache is used when nil.
	ResponseCache *cache.Cache
}

const sessionsPath = "/api/sessions"

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = 10
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 5
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Second
	}
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// The command list only changes with the ruleset; sessions change after every game.
	cacheStore := cfg.ResponseCache
	if cacheStore == nil {
		cacheStore = cache.New(5*time.Minute, 10*time.Minute)
	}
	commandsCache := mw.Cache(cacheStore, 5*time.Minute)
	sessionsCache := mw.Cache(cacheStore, cfg.CacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/status", handler.GetStatus)
		api.GET("/commands", commandsCache, handler.GetCommands)
		api.POST("/commands", handler.PostCommand)
		api.POST("/heartbeat", handler.PostHeartbeat)
		api.POST("/console", handler.PostConsole)
		api.GET("/sessions", sessionsCache, handler.GetSessions)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type invalidatingRecorder struct {
	next  station.ResultRecorder
	cache *cache.Cache
}

// InvalidatingRecorder drops cached session listings once next has stored a result.
func InvalidatingRecorder(next station.ResultRecorder, c *cache.Cache) station.ResultRecorder {
	return invalidatingRecorder{next: next, cache: c}
}

func (r invalidatingRecorder) RecordSession(ctx context.Context, result station.SessionResult) error {
	if err := r.next.RecordSession(ctx, result); err != nil {
		return err
	}
	mw.Invalidate(r.cache, sessionsPath)
	return nil
}
