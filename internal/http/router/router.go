package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stroybirzha/backend/internal/config"
	"github.com/stroybirzha/backend/internal/http/handlers"
	"github.com/stroybirzha/backend/internal/http/middleware"
	"github.com/stroybirzha/backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	profileHandler *handlers.ProfileHandler,
	projectHandler *handlers.ProjectHandler,
	bidHandler *handlers.BidHandler,
	messageHandler *handlers.MessageHandler,
	notificationHandler *handlers.NotificationHandler,
	mediaHandler *handlers.MediaHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.StaticFS("/docs", http.Dir(cfg.DocsStoragePath))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// Публичные маршруты
	api.GET("/projects", projectHandler.ListProjects)
	api.GET("/projects/:id", middleware.UUIDValidator("id"), projectHandler.GetProject)
	api.GET("/users/:id", middleware.UUIDValidator("id"), profileHandler.GetUserProfile)
	api.GET("/users/:id/evaluations", middleware.UUIDValidator("id"), profileHandler.ListUserEvaluations)
	api.GET("/ws", wsHandler.Handle)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/profile", profileHandler.GetMe)
		protected.PUT("/profile", profileHandler.UpdateMe)

		protected.POST("/projects", projectHandler.CreateProject)
		protected.GET("/projects/my", projectHandler.ListMyProjects)
		protected.PUT("/projects/:id", middleware.UUIDValidator("id"), projectHandler.UpdateProject)
		protected.DELETE("/projects/:id", middleware.UUIDValidator("id"), projectHandler.DeleteProject)

		protected.POST("/projects/:id/bids", middleware.UUIDValidator("id"), bidHandler.SubmitBid)
		protected.GET("/projects/:id/bids", middleware.UUIDValidator("id"), bidHandler.ListProjectBids)
		protected.POST("/projects/:id/bids/:bidId/select", middleware.UUIDValidator("id"), middleware.UUIDValidator("bidId"), projectHandler.SelectBid)
		protected.POST("/projects/:id/complete", middleware.UUIDValidator("id"), projectHandler.CompleteProject)

		protected.GET("/bids/my", bidHandler.ListMyBids)
		protected.GET("/bids/:id", middleware.UUIDValidator("id"), bidHandler.GetBid)
		protected.POST("/bids/:id/messages", middleware.UUIDValidator("id"), messageHandler.PostMessage)
		protected.GET("/bids/:id/messages", middleware.UUIDValidator("id"), messageHandler.ListThread)
		protected.PUT("/bids/:id/messages/read", middleware.UUIDValidator("id"), messageHandler.MarkThreadRead)
		protected.GET("/bids/:id/messages/unread/count", middleware.UUIDValidator("id"), messageHandler.CountUnreadInThread)
		protected.GET("/messages/unread/count", messageHandler.CountUnread)

		protected.GET("/notifications", notificationHandler.ListNotifications)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.DELETE("/notifications/:id", middleware.UUIDValidator("id"), notificationHandler.DeleteNotification)

		protected.POST("/media/documents", mediaHandler.UploadDocument)
		protected.DELETE("/media/:id", middleware.UUIDValidator("id"), mediaHandler.DeleteMedia)
	}

	return r
}
