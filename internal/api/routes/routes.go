package routes

import (
	"aiconsole/internal/api/handlers"
	"aiconsole/internal/api/middleware"
	"aiconsole/internal/config"
	"aiconsole/internal/services"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config, svc *services.Container) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(svc, cfg)
	logsHandler := handlers.NewLogsHandler(svc)
	adminHandler := handlers.NewAdminHandler(svc)
	healthHandler := handlers.NewHealthHandler(svc)

	// Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))

	api := r.Group(cfg.Server.APIPrefix)
	api.Use(middleware.SessionMiddleware(svc.Sessions, cfg.Session.CookieName))

	// Public routes
	api.GET("/health", healthHandler.Health)
	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/check", authHandler.Check)
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.RequireAuth())
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/profile", authHandler.GetProfile)
		protected.PUT("/auth/profile", authHandler.UpdateProfile)
		protected.POST("/auth/change-password", authHandler.ChangePassword)

		logs := protected.Group("/logs")
		{
			logs.GET("/searches", logsHandler.GetSearches)
			logs.GET("/actions", logsHandler.GetActions)
			logs.GET("/logins", logsHandler.GetLogins)
			logs.GET("/stats", logsHandler.GetStats)
			logs.GET("/export", logsHandler.Export)
		}
	}

	// Admin routes
	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		admin.POST("/signup-codes", adminHandler.CreateSignupCode)
		admin.GET("/signup-codes", adminHandler.GetSignupCodes)

		users := admin.Group("/users")
		{
			users.GET("", adminHandler.GetUsers)
			users.GET("/:id", adminHandler.GetUser)
			users.PUT("/:id", adminHandler.UpdateUser)
			users.DELETE("/:id", adminHandler.DeleteUser)
			users.POST("/:id/block", adminHandler.BlockUser)
			users.POST("/:id/reset-password", adminHandler.ResetPassword)
			users.POST("/:id/make-admin", adminHandler.MakeAdmin)
			users.POST("/:id/remove-admin", adminHandler.RemoveAdmin)
		}
	}
}
