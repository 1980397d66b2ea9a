package handlers

import (
	"github.com/gin-gonic/gin"

	"casei/internal/middleware"
	"casei/internal/permissions"
	"casei/internal/registry"
	"casei/internal/services"
)

// Services bundles what the API routes depend on.
type Services struct {
	Users           services.UserServicer
	Permissions     services.PermissionServicer
	Changes         services.ChangeServicer
	ApprovalLogs    services.ApprovalLogServicer
	Published       services.PublishedServicer
	Recommendations services.RecommendationServicer
	Deploy          services.DeployServicer
	Audit           services.AuditServicer

	// GcmdSync is optional; the pipeline route is only mounted when set.
	GcmdSync       GcmdSyncer
	PipelineAPIKey string
	ReportDir      string
}

// RegisterRoutes mounts every /api route on the router.
func RegisterRoutes(router *gin.Engine, s Services) {
	authHandler := NewAuthHandler(s.Users, s.Permissions, s.Audit)
	entityHandler := NewEntityHandler(s.Published, s.Changes, s.Audit)
	changeHandler := NewChangeHandler(s.Changes, s.Audit)
	logHandler := NewApprovalLogHandler(s.ApprovalLogs)
	recHandler := NewRecommendationHandler(s.Recommendations, s.Audit)
	userHandler := NewUserHandler(s.Users, s.Permissions, s.Audit)
	deployHandler := NewDeployHandler(s.Deploy, s.Audit)

	can := func(codename string) gin.HandlerFunc {
		return middleware.RequirePermission(s.Permissions, codename)
	}
	changeCodename := func(verb string) string { return "api_app." + verb + "_change" }

	api := router.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

	RegisterEntityRoutes(api, protected, entityHandler, registry.Names(), can(changeCodename("add")))

	changes := protected.Group("/change_request")
	changes.GET("", can(changeCodename("view")), changeHandler.ListChanges)
	changes.GET("/:id", can(changeCodename("view")), changeHandler.GetChange)
	changes.PATCH("/:id", can(changeCodename("change")), changeHandler.PatchChange)
	changes.PUT("/:id", can(changeCodename("change")), changeHandler.ReplaceChange)
	changes.DELETE("/:id", can(changeCodename("delete")), changeHandler.DeleteChange)
	changes.POST("/:id/validate", can(changeCodename("view")), changeHandler.ValidateChange)
	changeHandler.TransitionRoutes(changes, can(changeCodename("change")))

	changes.GET("/:id/recommendations", can("api_app.view_recommendation"), recHandler.List)
	changes.POST("/:id/recommendations", can("api_app.add_recommendation"), recHandler.Create)
	changes.POST("/:id/recommendations/submit", can("api_app.change_recommendation"), recHandler.Submit)
	protected.PUT("/recommendation/:id", can("api_app.change_recommendation"), recHandler.SetResult)

	protected.GET("/approval_log", can("api_app.view_approval_log"), logHandler.ListLogs)
	protected.GET("/unpublished", can(changeCodename("view")), changeHandler.ListUnpublished)
	protected.POST("/validate", can(changeCodename("view")), changeHandler.ValidateData)

	users := protected.Group("/users")
	users.GET("", can("users.view_user"), userHandler.ListUsers)
	users.PUT("/:id/role", can("users.change_user"), userHandler.UpdateRole)

	protected.POST("/admin/deploy", can(permissions.CanDeploy), deployHandler.Deploy)

	if s.GcmdSync != nil {
		pipeline := api.Group("/pipeline")
		pipeline.Use(middleware.PipelineKey(s.PipelineAPIKey))
		pipeline.POST("/gcmd/sync", NewPipelineHandler(s.GcmdSync, s.ReportDir).SyncGcmd)
	}
}
