package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/plateful/plateful/internal/config"
	"github.com/plateful/plateful/internal/handler"
	mw "github.com/plateful/plateful/internal/middleware"
	"github.com/plateful/plateful/internal/service"
	"github.com/plateful/plateful/internal/store"
	"github.com/plateful/plateful/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Restaurant discovery is public; everything cart- or customer-scoped
// requires a signed-in customer.
func New(cfg *config.Config, st *store.Store, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"}, // mobile clients, no cookie auth
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	// Services
	cartService := service.NewCartService(st)
	restaurantService := service.NewRestaurantService(st)
	paymentService := service.NewPaymentService(st)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(st, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Restaurant discovery (public)
	restaurantHandler := handler.NewRestaurantHandler(restaurantService)
	r.Route("/restaurants", restaurantHandler.RegisterRoutes)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		cartHandler := handler.NewCartHandler(cartService, hub)
		r.Route("/carts", cartHandler.RegisterRoutes)

		customerHandler := handler.NewCustomerHandler(cartService)
		r.Route("/customers", customerHandler.RegisterRoutes)

		paymentHandler := handler.NewPaymentHandler(paymentService)
		r.Route("/payments", paymentHandler.RegisterRoutes)
	})

	log.Println("Router initialized with all handlers")
	return r
}
