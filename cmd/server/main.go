/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the finance engine server. Handles configuration,
  dependency injection, and graceful shutdown.

COMMANDS:
  serve         Start the HTTP server and background scheduler
  materialize   One-shot materialization for a single owner

STARTUP SEQUENCE (serve):
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Build the engine and API handler
  4. Start the materialization scheduler
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server serve --db=./data/finance.db

  # Run with in-memory database on a different port
  ./server serve --db=":memory:" --port=3000

  # Materialize one owner up to a date
  ./server materialize --owner=user-1 --as-of=2026-01-31

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background materialization
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/moneta/finance-engine/api"
	"github.com/moneta/finance-engine/engine"
	"github.com/moneta/finance-engine/finance"
	"github.com/moneta/finance-engine/store/sqlite"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "server",
		Short:        "Recurring transaction materialization and cache engine",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMaterializeCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	var (
		port   int
		dbPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and background scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.New(dbPath)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer store.Close()

			eng := engine.New(store)
			handler := api.NewHandler(eng)
			router := api.NewRouter(handler)

			scheduler := api.NewMaterializationScheduler(eng)
			scheduler.Start()
			defer scheduler.Stop()

			server := &http.Server{
				Addr:         fmt.Sprintf(":%d", port),
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			go func() {
				log.Printf("[Server] Listening on http://localhost:%d", port)
				log.Printf("[Server] API available at http://localhost:%d/api", port)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("[Server] Failed: %v", err)
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Println("[Server] Shutting down...")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("forced shutdown: %w", err)
			}

			log.Println("[Server] Stopped")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	cmd.Flags().StringVar(&dbPath, "db", "finance.db", "SQLite database path (\":memory:\" for in-memory)")

	return cmd
}

func newMaterializeCommand() *cobra.Command {
	var (
		dbPath string
		owner  string
		asOf   string
	)

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Run one materialization pass for a single owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				return fmt.Errorf("--owner is required")
			}

			store, err := sqlite.New(dbPath)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer store.Close()

			eng := engine.New(store)

			date := eng.Now()
			if asOf != "" {
				date, err = finance.ParseDate(asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of (use YYYY-MM-DD): %w", err)
				}
			}

			summary, err := eng.Materialize(cmd.Context(), finance.OwnerID(owner), date)
			if err != nil {
				return fmt.Errorf("materialization failed: %w", err)
			}

			log.Printf("[Materialize] owner=%s as_of=%s generated=%d rules=%d accounts=%d budgets=%d",
				owner, date, summary.TransactionsGenerated, summary.RulesProcessed,
				summary.AccountsTouched, summary.BudgetsTouched)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "finance.db", "SQLite database path")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner to materialize (required)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "Materialize up to this date (default: today)")

	return cmd
}
