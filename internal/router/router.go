package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/tableside/api/internal/config"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/handler"
	mw "github.com/tableside/api/internal/middleware"
	"github.com/tableside/api/internal/notify"
	"github.com/tableside/api/internal/service"
	"github.com/tableside/api/internal/ws"
)

// Services bundles what the handlers need.
type Services struct {
	Users  handler.AuthStore
	Orders *service.OrderService
	Menu   *service.MenuService
	Tables *service.TableService
}

// NewServices wires the services onto one pool. broker and images may be nil.
func NewServices(pool *pgxpool.Pool, queries *database.Queries, broker notify.Broker, images service.ImageStore, loc *time.Location) Services {
	return Services{
		Users: queries,
		Orders: service.NewOrderService(pool, queries, func(db database.DBTX) service.OrderStore {
			return database.New(db)
		}, broker, loc),
		Menu: service.NewMenuService(pool, queries, func(db database.DBTX) service.MenuStore {
			return database.New(db)
		}, images, broker),
		Tables: service.NewTableService(pool, queries, func(db database.DBTX) service.TableStore {
			return database.New(db)
		}, broker),
	}
}

// New creates a Chi router with all application routes wired up.
// Customers reach the public routes; the kitchen display needs ADMIN or
// KITCHEN; everything else is ADMIN only.
func New(cfg *config.Config, svc Services, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(log.StandardLogger()))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	authHandler := handler.NewAuthHandler(svc.Users, cfg.JWTSecret)
	menuHandler := handler.NewMenuHandler(svc.Menu)
	tableHandler := handler.NewTableHandler(svc.Tables, svc.Orders, cfg.PublicBaseURL)
	orderHandler := handler.NewOrderHandler(svc.Orders)
	reportsHandler := handler.NewReportsHandler(svc.Orders)

	// Public
	authHandler.RegisterRoutes(r)
	menuHandler.RegisterPublicRoutes(r)
	tableHandler.RegisterPublicRoutes(r)

	// Change feed (handles auth internally via ?token=)
	r.Get("/ws/{table}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleKitchen))
			orderHandler.RegisterStaffRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			orderHandler.RegisterAdminRoutes(r)
			tableHandler.RegisterAdminRoutes(r)
			menuHandler.RegisterAdminRoutes(r)
			reportsHandler.RegisterRoutes(r)
		})
	})

	log.Debug("router initialized")
	return r
}
