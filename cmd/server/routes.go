package main

import (
	"github.com/charmverse/governance/internal/app"
	"github.com/charmverse/governance/internal/handlers"
	"github.com/charmverse/governance/internal/middleware"
	"github.com/charmverse/governance/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes and returns a func releasing
// route-scoped resources.
func registerRoutes(r *gin.Engine, a *app.App) func() {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for credential endpoints
	authLimiter := middleware.NewRateLimiter(1, 10)

	healthHandler := handlers.NewHealthHandler(a.DB, a.Queue, a.Hub)
	authHandler := handlers.NewAuthHandler(a.Auth)
	sseHandler := handlers.NewSSEHandler(a.Hub, a.Members)
	spaceHandler := handlers.NewSpaceHandler(a.Spaces, a.Members, a.Roles)
	permissionHandler := handlers.NewPermissionHandler()
	bountyHandler := handlers.NewBountyHandler(a.Bounties)
	proposalHandler := handlers.NewProposalHandler(a.Proposals, a.Evaluations)
	voteHandler := handlers.NewVoteHandler(a.Votes)
	webhookHandler := handlers.NewWebhookHandler(a.Subscriptions)
	systemLogHandler := handlers.NewSystemLogHandler(a.SystemLogs)
	userHandler := handlers.NewUserHandler(a.Users)
	systemConfigHandler := handlers.NewSystemConfigHandler(a.Auth)
	metricsHandler := handlers.NewMetricsHandler(a.DB, a.Queue, a.Hub)

	r.GET("/health", healthHandler.CheckHealth)
	r.GET("/metrics", metricsHandler.Metrics)

	api := r.Group("/api")
	{
		// Auth routes (public, rate limited)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
		}

		// Static permission tables
		api.GET("/permissions/:resource/levels", permissionHandler.ListLevels)
		api.GET("/permissions/:resource/levels/:level", permissionHandler.GetLevel)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired(), middleware.AuditLog(a.SystemLogs))
		{
			// Auth
			protected.GET("/auth/me", authHandler.GetCurrentUser)
			protected.POST("/auth/logout", authHandler.Logout)
			protected.PUT("/auth/password", authHandler.ChangePassword)

			// Events (token may be passed as ?token= for EventSource)
			protected.GET("/events", sseHandler.StreamEvents)

			// Spaces
			protected.POST("/spaces", spaceHandler.Create)
			protected.GET("/spaces", spaceHandler.List)
			protected.GET("/spaces/:id", spaceHandler.Get)
			protected.GET("/spaces/:id/role", spaceHandler.Role)

			// Members
			protected.GET("/spaces/:id/members", spaceHandler.ListMembers)
			protected.POST("/spaces/:id/members", spaceHandler.AddMember)
			protected.DELETE("/spaces/:id/members/:userId", spaceHandler.RemoveMember)
			protected.PUT("/spaces/:id/members/:userId/admin", spaceHandler.SetAdmin)

			// Custom roles
			protected.GET("/spaces/:id/roles", spaceHandler.ListRoles)
			protected.POST("/spaces/:id/roles", spaceHandler.CreateRole)
			protected.DELETE("/spaces/:id/roles/:roleId", spaceHandler.DeleteRole)
			protected.POST("/spaces/:id/roles/:roleId/members", spaceHandler.AssignRole)
			protected.DELETE("/spaces/:id/roles/:roleId/members/:userId", spaceHandler.UnassignRole)

			// Bounties
			protected.POST("/spaces/:id/bounties", bountyHandler.Create)
			protected.GET("/spaces/:id/bounties", bountyHandler.List)
			protected.GET("/bounties/:id", bountyHandler.GetByID)
			protected.DELETE("/bounties/:id", bountyHandler.Delete)
			protected.GET("/bounties/:id/permissions", bountyHandler.Permissions)
			protected.POST("/bounties/:id/permissions", bountyHandler.Grant)
			protected.DELETE("/bounties/:id/permissions/:permissionId", bountyHandler.Revoke)

			// Proposals
			protected.POST("/spaces/:id/proposals", proposalHandler.Create)
			protected.GET("/spaces/:id/proposals", proposalHandler.List)
			protected.GET("/proposals/:id", proposalHandler.GetByID)
			protected.PUT("/proposals/evaluations/:id/result", proposalHandler.SubmitResult)

			// Votes
			protected.POST("/votes", voteHandler.Create)
			protected.GET("/votes/:id", voteHandler.Get)
			protected.GET("/pages/:id/votes", voteHandler.ListByPage)
			protected.POST("/votes/:id/cast", voteHandler.Cast)
			protected.POST("/votes/:id/cancel", voteHandler.Cancel)

			// Webhooks (space admins)
			protected.GET("/spaces/:id/webhooks", webhookHandler.List)
			protected.POST("/spaces/:id/webhooks", webhookHandler.Create)
			protected.DELETE("/webhooks/:id", webhookHandler.Delete)
			protected.POST("/webhooks/:id/test", webhookHandler.Test)
			protected.GET("/webhooks/:id/deliveries", webhookHandler.Deliveries)
		}

		// Admin only routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog(a.SystemLogs))
		{
			admin.GET("/system-logs", systemLogHandler.List)
			admin.GET("/system-logs/modules", systemLogHandler.GetModules)
			admin.GET("/system-logs/retention", systemLogHandler.GetRetentionDays)
			admin.PUT("/system-logs/retention", systemLogHandler.SetRetentionDays)

			// Users
			admin.GET("/users", userHandler.List)
			admin.PUT("/users/:id", userHandler.Update)
			admin.DELETE("/users/:id", userHandler.Delete)

			// System Config
			admin.GET("/system-config/auth-session", systemConfigHandler.GetAuthSessionConfig)
			admin.PUT("/system-config/auth-session", systemConfigHandler.UpdateAuthSessionConfig)
		}
	}

	return authLimiter.Stop
}
