/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger engine service. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse flags
  2. Open the store (SQLite by default, PostgreSQL when DATABASE_URL is set)
  3. Wire the API handler, periodic sync scheduler, and (optionally) the
     Kafka change-notification consumer
  4. Start the HTTP server with graceful shutdown

CONFIGURATION:
  Flags:
    -port    HTTP server port (default: 8080)
    -db      SQLite database path (default: ledger.db; ":memory:" works)
  Environment (.env supported via godotenv):
    DATABASE_URL     PostgreSQL DSN; when set, overrides the SQLite flag
    KAFKA_BROKERS    Comma-separated brokers; enables the change-notification
                     consumer when set
    KAFKA_GROUP_ID   Consumer group (default: ledger-sync)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop the scheduler and consumer, drain in-flight HTTP
  requests (30s timeout), close the store.

SEE ALSO:
  - api/server.go: Router configuration
  - notify/kafka.go: Change-notification consumer
*/
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/warp/ledger-engine/api"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/notify"
	"github.com/warp/ledger-engine/store/postgres"
	"github.com/warp/ledger-engine/store/sqlite"
)

// storage is what both production stores provide: the ledger table plus
// read access to the source tables.
type storage interface {
	ledger.Store
	ledger.SourceReader
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "ledger.db", "SQLite database path")
	flag.Parse()

	st, cleanup, err := openStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer cleanup()

	handler := api.NewHandler(st, st)
	router := api.NewRouter(handler)

	scheduler := api.NewSyncScheduler(handler.Coordinator)
	scheduler.Start()
	defer scheduler.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		groupID := os.Getenv("KAFKA_GROUP_ID")
		if groupID == "" {
			groupID = "ledger-sync"
		}
		consumer := notify.NewConsumer(strings.Split(brokers, ","), groupID, handler.Coordinator)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Printf("Notification consumer stopped: %v", err)
			}
		}()
		log.Printf("Change-notification consumer started (brokers: %s)", brokers)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Ledger engine listening on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server stopped")
}

// openStore picks PostgreSQL when DATABASE_URL is set, SQLite otherwise.
func openStore(sqlitePath string) (storage, func(), error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, nil, err
		}
		st := postgres.New(db)
		if err := st.Migrate(context.Background()); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Println("Using PostgreSQL store")
		return st, func() { db.Close() }, nil
	}

	st, err := sqlite.New(sqlitePath)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Using SQLite store at %s", sqlitePath)
	return st, func() { st.Close() }, nil
}
