package routes

import (
	"context"
	"net/http"
	"os"

	"github.com/casbin/casbin/v2"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"HRPortal/internal/auth"
	"HRPortal/internal/birthday"
	"HRPortal/internal/cache"
	"HRPortal/internal/config"
	"HRPortal/internal/notification"
	"HRPortal/internal/realtime"
	"HRPortal/pkg/middleware"
)

// Modules wires the whole application graph.
var Modules = fx.Module("hrportal",
	fx.Provide(
		NewLogger,
		NewEchoServer,
		config.NewMongoDBConfig,
		config.NewMongoDBClient,
		config.NewMailer,
		auth.NewUserRepository,
		cache.NewCaches,
		notification.NewRepository,
		newNotificationService,
		notification.NewHandler,
		realtime.NewHub,
		newRealtimeHandler,
		newBirthdayService,
		birthday.NewScheduler,
		birthday.NewHandler,
		middleware.NewEnforcer,
	),
	fx.Invoke(
		RegisterRoutes,
		startScheduler,
		closeHubOnShutdown,
	),
)

func NewLogger() (*zap.Logger, error) {
	if os.Getenv("APP_ENV") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Adapter constructors keep the service packages on narrow interfaces while
// fx wires concrete types.

func newNotificationService(
	repo *notification.Repository,
	users *auth.UserRepository,
	mailer config.Mailer,
	hub *realtime.Hub,
	caches *cache.Caches,
	logger *zap.Logger,
) *notification.Service {
	return notification.NewService(repo, users, mailer, hub, caches, logger)
}

func newRealtimeHandler(
	hub *realtime.Hub,
	users *auth.UserRepository,
	service *notification.Service,
	logger *zap.Logger,
) *realtime.Handler {
	return realtime.NewHandler(hub, users, service, logger)
}

func newBirthdayService(
	users *auth.UserRepository,
	mailer config.Mailer,
	logger *zap.Logger,
) *birthday.Service {
	return birthday.NewService(users, mailer, logger)
}

func startScheduler(lc fx.Lifecycle, scheduler *birthday.Scheduler) {
	scheduler.Start(lc)
}

func closeHubOnShutdown(lc fx.Lifecycle, hub *realtime.Hub) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			hub.CloseAll()
			return nil
		},
	})
}

func NewEchoServer(lc fx.Lifecycle, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{frontendURL},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting HTTP server", zap.String("port", port))
			go func() {
				if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
					logger.Fatal("failed to start the server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down HTTP server")
			return e.Shutdown(ctx)
		},
	})
	return e
}

// RegisterRoutes builds the route table. Admin-only routes carry the RBAC
// gate on top of bearer auth.
func RegisterRoutes(
	e *echo.Echo,
	notificationHandler *notification.Handler,
	realtimeHandler *realtime.Handler,
	birthdayHandler *birthday.Handler,
	enforcer *casbin.Enforcer,
	logger *zap.Logger,
) {
	adminOnly := middleware.CasbinMiddleware(enforcer, logger)

	api := e.Group("/api", middleware.JWTMiddleware)

	n := api.Group("/notifications")
	n.GET("", notificationHandler.List, adminOnly)
	n.POST("", notificationHandler.Create, adminOnly)
	n.GET("/user", notificationHandler.ListUser)
	n.GET("/stats", notificationHandler.Stats)
	n.GET("/types", notificationHandler.Types)
	n.GET("/unread-count", notificationHandler.UnreadCount)
	n.PUT("/mark-multiple-read", notificationHandler.MarkMultipleRead)
	n.PUT("/:id/read", notificationHandler.MarkRead)
	n.PUT("/:id/unread", notificationHandler.MarkUnread)
	n.DELETE("/:id", notificationHandler.Delete, adminOnly)

	api.GET("/birthdays/upcoming", birthdayHandler.Upcoming, adminOnly)

	e.GET("/ws", realtimeHandler.ServeWS)
}
