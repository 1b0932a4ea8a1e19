package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/nats-io/nats.go"

	"github.com/aaronwang/auction-house/internal/broadcast"
	"github.com/aaronwang/auction-house/internal/config"
	"github.com/aaronwang/auction-house/internal/events"
	"github.com/aaronwang/auction-house/internal/handlers"
	"github.com/aaronwang/auction-house/internal/metrics"
	"github.com/aaronwang/auction-house/internal/pricecache"
	"github.com/aaronwang/auction-house/internal/scheduler"
	"github.com/aaronwang/auction-house/internal/service"
	"github.com/aaronwang/auction-house/internal/store"
)

func main() {
	log.Println("Starting auction-house server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var (
		auctions store.AuctionStore
		bids     store.BidLedger
	)
	switch cfg.StorageBackend {
	case "memory":
		mem := store.NewMemoryStore()
		auctions, bids = mem, mem
		log.Println("Using in-memory storage")
	default:
		runMigration(cfg.MigrationURL, cfg.PostgresConn)
		pg, err := store.NewPostgresStore(cfg.PostgresConn)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pg.Close()
		auctions, bids = pg, pg
		log.Println("Connected to postgres")
	}

	// Realtime hub
	hub := broadcast.NewHub()
	go hub.Run(ctx)

	// Events: NATS when configured, direct hub delivery otherwise
	var publisher events.Publisher
	if cfg.NatsEnabled {
		natsConn, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		defer natsConn.Close()

		publisher, err = events.NewNATSPublisher(natsConn)
		if err != nil {
			log.Fatalf("failed to create NATS publisher: %v", err)
		}

		bridge := events.NewBridge(natsConn, hub)
		go func() {
			if err := bridge.Start(ctx); err != nil && ctx.Err() == nil {
				log.Printf("event bridge stopped: %v", err)
			}
		}()
		defer bridge.Close()
		log.Println("Connected to NATS")
	} else {
		publisher = events.NewLocalPublisher(hub)
		log.Println("NATS disabled, broadcasting in-process")
	}

	// Optional price cache
	var cache service.PriceCache
	if cfg.RedisEnabled {
		rc, err := pricecache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		defer rc.Close()
		cache = rc
		log.Println("Connected to Redis")
	}

	m := metrics.New()
	clock := service.RealClock{}
	locks := service.NewAuctionLocks()

	admission := service.NewAdmissionService(auctions, bids, locks, publisher, cache, clock)
	auctionSvc := service.NewAuctionService(auctions, bids, locks, publisher, clock)

	sched := scheduler.New(auctions, auctionSvc, cfg.SchedulerInterval(), clock)
	sched.SetTickCounter(m.SchedulerTicks)
	sched.Start()
	defer sched.Stop()
	log.Printf("Scheduler started (interval %s)", cfg.SchedulerInterval())

	handler := handlers.NewHandler(admission, auctionSvc, bids, broadcast.NewHandler(hub), m)
	server := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     handler.SetupRoutes(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
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
		log.Printf("server forced to shutdown: %v", err)
	}
	log.Println("Server stopped gracefully")
}

func runMigration(migrationURL, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		log.Fatalf("cannot create migrate instance: %v", err)
	}
	if err := migration.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("failed to run migrate up: %v", err)
	}
	log.Println("db migrated successfully")
}
