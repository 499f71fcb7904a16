// Package api - Router setup
package api

import (
	"time"

	"github.com/a2s-dz/gestion/internal/auth"
	"github.com/a2s-dz/gestion/internal/config"
	"github.com/a2s-dz/gestion/internal/logging"
	"github.com/a2s-dz/gestion/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterOptions carries the settings the router needs beyond the handler
type RouterOptions struct {
	CORS           config.CORSConfig
	MetricsEnabled bool
	// InsightLimiter throttles the AI insight endpoint; nil disables it
	InsightLimiter *RateLimiter
}

// SetupRouter creates and configures the Gin router
func SetupRouter(handler *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinMiddleware())
	r.Use(metrics.GinMiddleware())

	// When credentials are used, specific origins must be provided (not *)
	corsConfig := cors.Config{
		AllowOrigins:     opts.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "X-Request-ID", "Retry-After"},
		AllowCredentials: opts.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(corsConfig))

	// Health check (no auth required)
	r.GET("/api/health", handler.Health)
	if opts.MetricsEnabled {
		r.GET("/metrics", metrics.Handler())
	}

	api := r.Group("/api")
	api.Use(handler.AuthMiddleware())

	perm := handler.PermissionMiddleware
	api.GET("/me", handler.Me)

	// ==========================================================================
	// PROSPECTS & CLIENTS
	// ==========================================================================
	prospects := api.Group("/prospects")
	{
		prospects.GET("", perm(auth.ResourceProspects, auth.ActionView), handler.ListProspects)
		prospects.POST("", perm(auth.ResourceProspects, auth.ActionCreate), handler.CreateProspect)
		prospects.GET("/:id", perm(auth.ResourceProspects, auth.ActionView), handler.GetProspect)
		prospects.PUT("/:id", perm(auth.ResourceProspects, auth.ActionEdit), handler.UpdateProspect)
		prospects.DELETE("/:id", perm(auth.ResourceProspects, auth.ActionDelete), handler.DeleteProspect)
		prospects.GET("/:id/historique", perm(auth.ResourceProspects, auth.ActionView), handler.ProspectHistory)
	}

	clients := api.Group("/clients")
	{
		clients.GET("", perm(auth.ResourceClients, auth.ActionView), handler.ListClients)
		clients.GET("/:id", perm(auth.ResourceClients, auth.ActionView), handler.GetClient)
		clients.GET("/:id/paiements/resume", perm(auth.ResourcePaiements, auth.ActionView), handler.ClientPaymentSummary)
	}

	// ==========================================================================
	// INSTALLATIONS, ABONNEMENTS, PAIEMENTS
	// ==========================================================================
	installations := api.Group("/installations")
	{
		installations.GET("", perm(auth.ResourceInstallations, auth.ActionView), handler.ListInstallations)
		installations.POST("", perm(auth.ResourceInstallations, auth.ActionCreate), handler.CreateInstallation)
		installations.GET("/:id", perm(auth.ResourceInstallations, auth.ActionView), handler.GetInstallation)
		installations.PUT("/:id", perm(auth.ResourceInstallations, auth.ActionEdit), handler.UpdateInstallation)
		installations.DELETE("/:id", perm(auth.ResourceInstallations, auth.ActionDelete), handler.DeleteInstallation)
		installations.GET("/:id/paiements/resume", perm(auth.ResourcePaiements, auth.ActionView), handler.InstallationSummary)
	}

	subscriptions := api.Group("/abonnements")
	{
		subscriptions.GET("", perm(auth.ResourceAbonnements, auth.ActionView), handler.ListSubscriptions)
		subscriptions.GET("/expiring", perm(auth.ResourceAbonnements, auth.ActionView), handler.ExpiringSubscriptions)
		subscriptions.POST("", perm(auth.ResourceAbonnements, auth.ActionCreate), handler.CreateSubscription)
		subscriptions.POST("/reconcile", handler.RequireAdminMiddleware(), handler.ReconcileSubscriptions)
		subscriptions.GET("/:id", perm(auth.ResourceAbonnements, auth.ActionView), handler.GetSubscription)
		subscriptions.POST("/:id/renouveler", perm(auth.ResourceAbonnements, auth.ActionEdit), handler.RenewSubscription)
		subscriptions.DELETE("/:id", perm(auth.ResourceAbonnements, auth.ActionDelete), handler.DeleteSubscription)
	}

	payments := api.Group("/paiements")
	{
		payments.GET("", perm(auth.ResourcePaiements, auth.ActionView), handler.ListPayments)
		payments.POST("", perm(auth.ResourcePaiements, auth.ActionCreate), handler.CreatePayment)
		payments.GET("/:id", perm(auth.ResourcePaiements, auth.ActionView), handler.GetPayment)
		payments.PUT("/:id", perm(auth.ResourcePaiements, auth.ActionEdit), handler.UpdatePayment)
		payments.DELETE("/:id", perm(auth.ResourcePaiements, auth.ActionDelete), handler.DeletePayment)
	}

	// ==========================================================================
	// INTERVENTIONS & MISSIONS
	// ==========================================================================
	interventions := api.Group("/interventions")
	{
		interventions.GET("", perm(auth.ResourceInterventions, auth.ActionView), handler.ListInterventions)
		interventions.POST("", perm(auth.ResourceInterventions, auth.ActionCreate), handler.CreateIntervention)
		interventions.GET("/:id", perm(auth.ResourceInterventions, auth.ActionView), handler.GetIntervention)
		interventions.PUT("/:id", perm(auth.ResourceInterventions, auth.ActionEdit), handler.UpdateIntervention)
		interventions.POST("/:id/cloturer", perm(auth.ResourceInterventions, auth.ActionClose), handler.CloseIntervention)
		interventions.DELETE("/:id", perm(auth.ResourceInterventions, auth.ActionDelete), handler.DeleteIntervention)
	}

	missions := api.Group("/missions")
	{
		missions.GET("", perm(auth.ResourceMissions, auth.ActionView), handler.ListMissions)
		missions.POST("", perm(auth.ResourceMissions, auth.ActionCreate), handler.CreateMission)
		missions.GET("/:id", perm(auth.ResourceMissions, auth.ActionView), handler.GetMission)
		missions.PUT("/:id", perm(auth.ResourceMissions, auth.ActionEdit), handler.UpdateMission)
		missions.POST("/:id/demarrer", perm(auth.ResourceMissions, auth.ActionEdit), handler.StartMission)
		missions.POST("/:id/cloturer", perm(auth.ResourceMissions, auth.ActionClose), handler.CloseMission)
		missions.POST("/:id/valider", handler.RequireAdminMiddleware(), handler.ValidateMission)
		missions.DELETE("/:id", perm(auth.ResourceMissions, auth.ActionDelete), handler.DeleteMission)
	}

	// ==========================================================================
	// DASHBOARD
	// ==========================================================================
	dashboard := api.Group("/dashboard")
	dashboard.Use(perm(auth.ResourceDashboard, auth.ActionView))
	{
		dashboard.GET("/stats", handler.DashboardStats)
		if opts.InsightLimiter != nil {
			dashboard.GET("/insights", opts.InsightLimiter.Middleware(), handler.DashboardInsights)
		} else {
			dashboard.GET("/insights", handler.DashboardInsights)
		}
	}

	// ==========================================================================
	// ADMIN API - users and role permissions
	// ==========================================================================
	admin := api.Group("/admin")
	admin.Use(handler.RequireAdminMiddleware())
	{
		admin.GET("/users", handler.ListUsers)
		admin.POST("/users", handler.CreateUser)
		admin.PUT("/users/:id", handler.UpdateUser)

		admin.GET("/permissions", handler.ListPermissions)
		admin.PUT("/permissions", handler.GrantPermission)
		admin.DELETE("/permissions/:role/:resource", handler.RevokePermission)
	}

	return r
}
