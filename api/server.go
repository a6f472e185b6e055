/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/accounts/*      Account management and balance caches
  /api/categories/*    Category management and deletion
  /api/transactions/*  Manual ledger entries
  /api/transfers/*     Paired transfer operations
  /api/recurring/*     Recurring rules and materialization
  /api/budgets/*       Budgets and consumption caches

SECURITY NOTE:
  Identity comes from the X-Owner-ID header, which an upstream gateway is
  expected to set after authentication. The engine itself does no auth.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Owner-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Get("/{id}/transactions", h.GetAccountTransactions)
			r.Post("/{id}/favorite", h.SetFavoriteAccount)
			r.Post("/{id}/balance", h.SetAccountBalance)
			r.Post("/{id}/recompute", h.RecomputeAccountBalance)
			r.Delete("/{id}", h.DeleteAccount)
		})

		// Category routes
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
			r.Put("/{id}", h.RenameCategory)
			r.Post("/{id}/recompute", h.RecomputeCategoryBudgets)
			r.Delete("/{id}", h.DeleteCategory)
		})

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", h.CreateTransaction)
			r.Put("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		// Transfer routes
		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", h.CreateTransfer)
			r.Put("/{id}", h.UpdateTransfer)
			r.Delete("/{id}", h.DeleteTransfer)
		})

		// Recurring rule routes
		r.Route("/recurring", func(r chi.Router) {
			r.Post("/", h.CreateRecurringRule)
			r.Post("/transfer", h.CreateRecurringTransfer)
			r.Get("/{id}", h.GetRecurringRule)
			r.Delete("/{id}", h.DeleteRecurringRule)
			r.Delete("/{id}/pair", h.DeleteRecurringPair)
		})

		// Materialization
		r.Post("/materialize", h.Materialize)

		// Budget routes
		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", h.ListBudgets)
			r.Post("/", h.CreateBudget)
			r.Get("/{id}", h.GetBudget)
			r.Post("/{id}/recompute", h.RecomputeBudget)
			r.Delete("/{id}", h.DeleteBudget)
		})
	})

	return r
}
