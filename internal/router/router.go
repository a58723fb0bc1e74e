package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qr-efficient/api/internal/config"
	"github.com/qr-efficient/api/internal/database"
	"github.com/qr-efficient/api/internal/enum"
	"github.com/qr-efficient/api/internal/handler"
	mw "github.com/qr-efficient/api/internal/middleware"
	"github.com/qr-efficient/api/internal/service"
	"github.com/qr-efficient/api/internal/ws"
)

// New creates a Chi router with all application routes wired up. Diner
// routes are public (the table QR is the credential); staff routes sit
// behind JWT auth plus capability and restaurant scoping middleware.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // client/waiter dev server
			"http://localhost:3000", // admin dev server
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/restaurants/{rid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Service and store wiring shared by diner and staff routes.
	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newOrderStore)

	newTableStore := func(db database.DBTX) service.TableStore {
		return database.New(db)
	}
	tableService := service.NewTableService(pool, newTableStore)

	newBillStore := func(db database.DBTX) service.BillStore {
		return database.New(db)
	}
	billingService := service.NewBillingService(pool, newBillStore)

	orderHandler := handler.NewOrderHandler(orderService, queries, hub)
	tableHandler := handler.NewTableHandler(tableService, queries, hub)
	visitHandler := handler.NewVisitHandler(tableService, billingService, queries, queries, hub, cfg.JWTSecret)
	billHandler := handler.NewBillHandler(billingService, queries)
	menuHandler := handler.NewMenuHandler(queries)
	categoryHandler := handler.NewCategoryHandler(queries)

	// Diner routes (public: reached by scanning the table QR)
	visitHandler.RegisterRoutes(r)
	orderHandler.RegisterClientRoutes(r)
	billHandler.RegisterRoutes(r)
	r.Get("/restaurants/{rid}/menu", menuHandler.ListPublic)
	r.Get("/categories", categoryHandler.List)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireCapability(enum.CapManageOrders))
			orderHandler.RegisterStaffRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireCapability(enum.CapManageTables))
			tableHandler.RegisterStaffRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireCapability(enum.CapManageMenu))
			r.Put("/menu-items/{id}", menuHandler.Update)
			r.Post("/categories", categoryHandler.Create)
		})

		waiterHandler := handler.NewWaiterHandler(queries)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireCapability(enum.CapManageStaff))
			r.Put("/waiters/{id}/active", waiterHandler.SetActive)
		})

		// Restaurant-scoped routes
		r.Route("/restaurants/{rid}", func(r chi.Router) {
			r.Use(mw.RequireRestaurant)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireCapability(enum.CapManageTables))
				r.Get("/tables", tableHandler.List)
				r.Post("/tables", tableHandler.Create)
			})

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireCapability(enum.CapManageOrders))
				r.Get("/orders", orderHandler.ListKitchen)
			})

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireCapability(enum.CapManageMenu))
				r.Get("/menu-items", menuHandler.ListAll)
				r.Post("/menu-items", menuHandler.Create)
			})

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireCapability(enum.CapManageStaff))
				r.Get("/waiters", waiterHandler.List)
				r.Post("/waiters", waiterHandler.Create)
			})

			reportHandler := handler.NewReportHandler(queries)
			auditHandler := handler.NewAuditHandler(queries)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireCapability(enum.CapViewReports))
				r.Get("/reports/earnings", reportHandler.Earnings)
				r.Get("/reports/categories", reportHandler.Categories)
				r.Get("/audit", auditHandler.List)
			})
		})
	})

	return r
}
