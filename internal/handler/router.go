package handler

import (
	"net/http"

	"github.com/SergeiKhy/linkgate/internal/middleware"
	"github.com/SergeiKhy/linkgate/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services зависимости HTTP-слоя
type Services struct {
	Links  service.LinkService
	Ads    service.AdService
	Gate   service.GateService
	Events service.EventProcessor
	Auth   service.AuthService
}

func NewRouter(services Services, rateLimiter *middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: kindNotFound, Message: "Route not found"})
	})

	gateHandler := NewGateHandler(services.Gate, services.Ads, logger)
	adminHandler := NewAdminHandler(services.Links, services.Ads, services.Events, services.Auth, logger)
	healthHandler := NewHealthHandler(services.Events)

	api := router.Group("/api")
	api.GET("/health", healthHandler.HealthCheck)

	// Публичные эндпоинты воронки и вход в админку ограничены по IP
	public := api.Group("", rateLimiter.Middleware())
	{
		public.POST("/links/:id/init", gateHandler.InitSession)
		public.POST("/session/verify", gateHandler.VerifyStep)
		public.GET("/session/:sessionId/final", gateHandler.FinalURL)
		public.GET("/ads/public", gateHandler.PublicAds)
		public.POST("/admin/login", adminHandler.Login)
	}

	admin := api.Group("/admin",
		middleware.AdminAuth(services.Auth),
		rateLimiter.MiddlewareWithKey(middleware.AdminSubject),
	)
	{
		admin.GET("/links", adminHandler.ListLinks)
		admin.POST("/links", adminHandler.CreateLink)
		admin.DELETE("/links/:id", adminHandler.DeleteLink)
		admin.GET("/links/:id/stats", adminHandler.LinkStats)

		admin.GET("/ads", adminHandler.ListAds)
		admin.POST("/ads", adminHandler.CreateAd)
		admin.DELETE("/ads/:id", adminHandler.DeleteAd)
	}

	return router
}
