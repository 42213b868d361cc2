package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/sitebridgehq/sitebridge/internal/app"
	iauth "github.com/sitebridgehq/sitebridge/internal/auth"
	"github.com/sitebridgehq/sitebridge/internal/handlers"
	"github.com/sitebridgehq/sitebridge/internal/middleware"
	"github.com/sitebridgehq/sitebridge/internal/services"
)

// Dependencies carries everything the router needs. The caller owns
// construction so tests can swap in stubs for the remote pieces.
type Dependencies struct {
	DB            *gorm.DB
	Config        *app.Config
	Broker        *iauth.SessionBroker
	Directory     *services.DirectoryService
	Organizations *services.OrganizationService
	Metering      *services.MeteringService
	Tickets       *services.TicketService
	Helpdesk      *services.HelpdeskService
	Backups       *services.BackupService
	RateStore     middleware.RateStore
	ProjectLister handlers.ProjectLister
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Broker == nil {
		return nil, fmt.Errorf("session broker must be provided")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("directory service must be provided")
	}
	if deps.RateStore == nil {
		deps.RateStore = middleware.NewMemoryRateStore()
	}
	if deps.ProjectLister == nil {
		deps.ProjectLister = handlers.DefaultProjectLister(deps.Config.Remote.ClientTag, deps.Config.Remote.Timeout)
	}

	cfg := deps.Config

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())
	r.Use(middleware.RateLimitWithStore(deps.RateStore, cfg.Server.RateLimit.PerMinute, time.Minute))
	r.NoRoute(middleware.NotFoundHandler)

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(deps.DB))
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(deps.Broker, deps.Directory)

	// Public auth routes. Logout resolves the bearer token itself so the
	// call stays idempotent even for tokens that already expired.
	auth := r.Group("/api/auth")
	{
		auth.POST("/login",
			middleware.RateLimitWithStore(deps.RateStore, cfg.Server.RateLimit.LoginPerMinute, time.Minute),
			authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
	}

	// Everything below requires a live session.
	protected := r.Group("/api")
	protected.Use(middleware.RequireSession(deps.Broker))
	if deps.Metering != nil {
		protected.Use(middleware.Meter(deps.Metering))
	}

	protected.GET("/auth/me", authHandler.Me)

	// Admin realm: tenant directory, platform metrics, ticket queue.
	admin := protected.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		if deps.Organizations != nil {
			orgHandler := handlers.NewOrganizationHandler(deps.Organizations)
			admin.GET("/orgs", orgHandler.List)
			admin.POST("/orgs", orgHandler.Create)
			admin.GET("/orgs/:id", orgHandler.Get)
			admin.PUT("/orgs/:id", orgHandler.Update)
			admin.DELETE("/orgs/:id", orgHandler.Delete)
			admin.POST("/orgs/:id/companies", orgHandler.CreateCompany)
			admin.PUT("/companies/:id", orgHandler.UpdateCompany)
			admin.DELETE("/companies/:id", orgHandler.DeleteCompany)
		}

		if deps.Metering != nil {
			metricsHandler := handlers.NewMetricsHandler(deps.Metering)
			admin.GET("/metrics/overview", metricsHandler.Overview)
		}

		if deps.Tickets != nil {
			ticketHandler := handlers.NewTicketHandler(deps.Tickets)
			admin.GET("/tickets", ticketHandler.AdminList)
			admin.POST("/tickets/:id/reply", ticketHandler.AdminReply)
			admin.PUT("/tickets/:id/status", ticketHandler.AdminUpdateStatus)
		}
	}

	// Tenant realm: tickets, helpdesk assistant, project register.
	user := protected.Group("/user")
	user.Use(middleware.RequireTenantUser())
	{
		if deps.Tickets != nil {
			ticketHandler := handlers.NewTicketHandler(deps.Tickets)
			user.GET("/tickets", ticketHandler.ListMine)
			user.POST("/tickets", ticketHandler.Create)
			user.GET("/tickets/:id", ticketHandler.GetMine)
			user.POST("/tickets/:id/reply", ticketHandler.Reply)
		}

		if deps.Helpdesk != nil {
			helpdeskHandler := handlers.NewHelpdeskHandler(deps.Helpdesk, deps.Directory)
			user.POST("/helpdesk/chat", helpdeskHandler.Chat)
			user.GET("/helpdesk/conversations", helpdeskHandler.History)
			user.DELETE("/helpdesk/conversations", helpdeskHandler.Clear)
		}

		projectsHandler := handlers.NewProjectsHandler(deps.Broker, deps.Directory, deps.Metering, deps.Backups, deps.ProjectLister)
		user.GET("/projects", projectsHandler.List)
		if deps.Backups != nil {
			user.POST("/projects/backup", projectsHandler.QueueBackup)
			user.GET("/projects/backup/:id", projectsHandler.GetBackup)
		}
	}

	return r, nil
}
