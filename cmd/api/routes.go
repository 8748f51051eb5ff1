package main

import (
	"github.com/gin-gonic/gin"

	"github.com/ibaf-upi/ibaf-api/internal/handler"
	"github.com/ibaf-upi/ibaf-api/internal/middleware"
	"github.com/ibaf-upi/ibaf-api/internal/models"
	"github.com/ibaf-upi/ibaf-api/internal/repository"
	"github.com/ibaf-upi/ibaf-api/internal/service"
)

type handlers struct {
	auth          *handler.AuthHandler
	member        *handler.MemberHandler
	workouts      *handler.WorkoutHandler
	messages      *handler.MessageHandler
	announcements *handler.AnnouncementHandler
	users         *handler.UserHandler
	identities    *handler.IdentityHandler
	exports       *handler.ExportHandler
	realtime      *handler.RealtimeHandler
	metrics       *handler.MetricsHandler
}

func registerRoutes(api *gin.RouterGroup, h handlers, authSvc *service.AuthService, userRepo *repository.UserRepository) {
	authenticated := middleware.JWT(authSvc)
	session := middleware.Session(userRepo)

	auth := api.Group("/auth")
	auth.POST("/register", h.auth.Register)
	auth.POST("/login", h.auth.Login)
	auth.POST("/federated", h.auth.Federated)
	auth.POST("/refresh", h.auth.Refresh)
	auth.POST("/logout", authenticated, h.auth.Logout)
	auth.GET("/me", authenticated, h.auth.Me)
	auth.POST("/change-password", authenticated, h.auth.ChangePassword)

	api.GET("/exports/download", h.exports.Download)
	api.GET("/ws", middleware.WebsocketJWT(authSvc), session, middleware.NotBanned(), h.realtime.Stream)

	me := api.Group("/me", authenticated, session)
	me.GET("/access", h.member.Access)
	me.POST("/verification",
		middleware.RequireView(models.ViewVerificationForm, models.ViewRejected, models.ViewMessagesOnly),
		h.member.SubmitVerification)
	me.PUT("/profile", middleware.RequireView(models.ViewDashboard, models.ViewAdmin), h.member.UpdateProfile)
	me.PUT("/email", middleware.NotBanned(), h.auth.ChangeEmail)

	workouts := me.Group("/workout-logs", middleware.RequireView(models.ViewDashboard, models.ViewAdmin))
	workouts.GET("", h.workouts.List)
	workouts.POST("", h.workouts.Create)
	workouts.GET("/stats", h.workouts.Stats)
	workouts.GET("/export", h.workouts.Export)
	workouts.PUT("/:id", h.workouts.Update)
	workouts.DELETE("/:id", h.workouts.Delete)

	messages := me.Group("/messages", middleware.NotBanned())
	messages.GET("", h.messages.Thread)
	messages.POST("", h.messages.Send)
	messages.POST("/:kind/:id/read", h.messages.MarkRead)
	messages.DELETE("/:kind/:id", h.messages.Delete)

	api.GET("/announcements", authenticated, session, middleware.NotBanned(), h.announcements.List)

	admin := api.Group("/admin", authenticated, session, middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/stats", middleware.WithResponseMeta(), h.users.Stats)
	admin.GET("/metrics", h.metrics.Snapshot)

	users := admin.Group("/users")
	users.GET("", h.users.List)
	users.GET("/:id", h.users.Get)
	users.POST("/:id/approve", h.users.Approve)
	users.POST("/:id/reject", h.users.Reject)
	users.POST("/:id/ban", h.users.Ban)
	users.POST("/:id/unban", h.users.Unban)
	users.PUT("/:id/active", h.users.SetActive)
	users.DELETE("/:id", h.users.Delete)
	users.GET("/:id/workout-logs", h.workouts.AdminList)
	users.GET("/:id/workout-logs/export", h.workouts.AdminExport)
	users.POST("/:id/workout-logs/share", h.workouts.AdminShare)
	users.POST("/:id/messages", middleware.Audit(userRepo, models.AuditActionAdminMessage, "admin_messages"), h.messages.SendToUser)

	admin.GET("/conversations", h.messages.Inbox)
	admin.GET("/conversations/:userId", h.messages.Conversation)
	admin.POST("/messages/:id/reply", h.messages.Reply)
	admin.POST("/messages/:id/read", h.messages.AdminMarkRead)
	admin.DELETE("/messages/:kind/:id", middleware.Audit(userRepo, models.AuditActionAdminMessage, "messages"), h.messages.AdminDelete)

	announcements := admin.Group("/announcements")
	announcementAudit := middleware.Audit(userRepo, models.AuditActionAnnouncement, "announcements")
	announcements.GET("", h.announcements.AdminList)
	announcements.POST("", announcementAudit, h.announcements.Create)
	announcements.PUT("/:id", announcementAudit, h.announcements.Update)
	announcements.DELETE("/:id", announcementAudit, h.announcements.Delete)

	identities := admin.Group("/identities")
	identities.POST("/cleanup", middleware.Audit(userRepo, models.AuditActionOrphanCleanup, "identities"), h.identities.CleanupOrphans)
	identities.DELETE("/:uid", h.identities.Delete)
}
